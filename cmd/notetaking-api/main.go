package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jsh/notetaking/internal/auth"
	"github.com/jsh/notetaking/internal/config"
	"github.com/jsh/notetaking/internal/database"
	"github.com/jsh/notetaking/internal/logging"
	"github.com/jsh/notetaking/internal/notes"
	"github.com/jsh/notetaking/internal/server"
	"github.com/jsh/notetaking/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultEnvFile = ".env"

var (
	cfgFile string
	envFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notetaking-api",
		Short: "Note-taking backend service",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newMigrateCommand(), newSeedTagsCommand(), newIssueTokenCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to a .env file loaded before reading the environment")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "PostgreSQL connection string")
	cmd.PersistentFlags().String("seed-tags-file", defaults.GetString("database.seed_tags_file"), "YAML file of reference tags applied at startup")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-file", defaults.GetString("log.file"), "Optional rotating log file")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret; enables authentication of write routes")
	cmd.PersistentFlags().StringSlice("cors-allowed-origins", defaults.GetStringSlice("cors.allowed_origins"), "Allowed CORS origins")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "database.seed_tags_file", "seed-tags-file")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "log.file", "log-file")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "cors.allowed_origins", "cors-allowed-origins")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if err := loadEnvFile(); err != nil {
		return err
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("notetaking")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

// loadEnvFile applies an explicit --env-file, or ./.env when present. Existing variables win.
func loadEnvFile() error {
	if envFile != "" {
		return godotenv.Load(envFile)
	}
	if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

type appRuntime struct {
	config config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
}

func openRuntime() (*appRuntime, error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, appConfig.LogFile)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(database.Options{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	return &appRuntime{config: appConfig, logger: logger, db: db}, nil
}

func (r *appRuntime) Close() {
	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = r.logger.Sync()
}

func seedTagsFromFile(ctx context.Context, notesService *notes.Service, path string) (int, error) {
	names, err := notes.LoadTagSeed(path)
	if err != nil {
		return 0, err
	}
	return notesService.SeedTags(ctx, names)
}

func runServer(ctx context.Context) error {
	rt, err := openRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()
	logger := rt.logger

	notesService, err := notes.NewService(notes.ServiceConfig{Database: rt.db, Logger: logger})
	if err != nil {
		return err
	}
	usersService, err := users.NewService(users.ServiceConfig{Database: rt.db, Logger: logger})
	if err != nil {
		return err
	}

	if rt.config.SeedTagsFile != "" {
		if _, err := seedTagsFromFile(ctx, notesService, rt.config.SeedTagsFile); err != nil {
			return err
		}
	}

	dependencies := server.Dependencies{
		UsersService:   usersService,
		NotesService:   notesService,
		Realtime:       server.NewRealtimeDispatcher(),
		AllowedOrigins: rt.config.CORSAllowedOrigins,
		Logger:         logger,
	}
	if rt.config.AuthEnabled() {
		tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
			SigningSecret: []byte(rt.config.AuthSigningSecret),
			Issuer:        rt.config.AuthIssuer,
			TokenTTL:      rt.config.AuthTokenTTL,
		})
		if err != nil {
			return err
		}
		dependencies.Tokens = tokenIssuer
	} else {
		logger.Warn("auth.signing_secret not set; write routes are unauthenticated")
	}

	handler, err := server.NewHTTPHandler(dependencies)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              rt.config.HTTPAddress,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", rt.config.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSeedTagsCommand() *cobra.Command {
	var seedFile string
	cmd := &cobra.Command{
		Use:   "seed-tags",
		Short: "Create the reference tags listed in a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			notesService, err := notes.NewService(notes.ServiceConfig{Database: rt.db, Logger: rt.logger})
			if err != nil {
				return err
			}
			created, err := seedTagsFromFile(cmd.Context(), notesService, seedFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d tags\n", created)
			return nil
		},
	}
	cmd.Flags().StringVar(&seedFile, "file", "tags.yaml", "YAML file with a top-level tags list")
	return cmd
}

func newIssueTokenCommand() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Mint a bearer token for the write routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			appConfig, err := config.Load(viper.GetViper())
			if err != nil {
				return err
			}
			if !appConfig.AuthEnabled() {
				return errors.New("auth.signing_secret must be set to issue tokens")
			}
			tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
				SigningSecret: []byte(appConfig.AuthSigningSecret),
				Issuer:        appConfig.AuthIssuer,
				TokenTTL:      appConfig.AuthTokenTTL,
			})
			if err != nil {
				return err
			}
			token, expiresAt, err := tokenIssuer.Issue(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "Token subject recorded in request logs")
	return cmd
}
