package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "NOTETAKING"
	defaultHTTPAddress    = "0.0.0.0:8080"
	defaultDatabaseDriver = "sqlite"
	defaultDatabasePath   = "notetaking.db"
	defaultLogLevel       = "info"
	defaultAuthIssuer     = "notetaking-api"
	defaultTokenTTL       = 60
	defaultAllowedOrigin  = "*"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress        string
	DatabaseDriver     string
	DatabasePath       string
	DatabaseDSN        string
	SeedTagsFile       string
	LogLevel           string
	LogFile            string
	AuthSigningSecret  string
	AuthIssuer         string
	AuthTokenTTL       time.Duration
	CORSAllowedOrigins []string
}

// AuthEnabled reports whether mutating routes require a bearer token.
func (c AppConfig) AuthEnabled() bool {
	return strings.TrimSpace(c.AuthSigningSecret) != ""
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("database.seed_tags_file", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("cors.allowed_origins", []string{defaultAllowedOrigin})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:        configViper.GetString("http.address"),
		DatabaseDriver:     strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:       configViper.GetString("database.path"),
		DatabaseDSN:        configViper.GetString("database.dsn"),
		SeedTagsFile:       configViper.GetString("database.seed_tags_file"),
		LogLevel:           configViper.GetString("log.level"),
		LogFile:            configViper.GetString("log.file"),
		AuthSigningSecret:  configViper.GetString("auth.signing_secret"),
		AuthIssuer:         configViper.GetString("auth.issuer"),
		AuthTokenTTL:       time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		CORSAllowedOrigins: normalizeOrigins(configViper.GetStringSlice("cors.allowed_origins")),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.AuthEnabled() && strings.TrimSpace(c.AuthIssuer) == "" {
		return fmt.Errorf("auth.issuer is required when auth.signing_secret is set")
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins must list at least one origin")
	}
	return nil
}

func normalizeOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				origins = append(origins, origin)
			}
		}
	}
	return origins
}
