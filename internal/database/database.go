package database

import (
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/jsh/notetaking/internal/notes"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

const (
	// DriverSQLite selects the embedded pure-Go SQLite driver.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the PostgreSQL driver.
	DriverPostgres = "postgres"
)

var (
	errMissingSQLitePath  = errors.New("database path is required")
	errMissingPostgresDSN = errors.New("database dsn is required")
)

// Options selects and addresses the backing database.
type Options struct {
	Driver string
	Path   string
	DSN    string
}

// Open connects to the configured database and brings the schema up to date.
func Open(options Options, logger *zap.Logger) (*gorm.DB, error) {
	switch strings.ToLower(strings.TrimSpace(options.Driver)) {
	case DriverSQLite, "":
		return OpenSQLite(options.Path, logger)
	case DriverPostgres:
		return OpenPostgres(options.DSN, logger)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", options.Driver)
	}
}

// OpenSQLite establishes a SQLite connection and performs schema migrations.
func OpenSQLite(path string, logger *zap.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, errMissingSQLitePath
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, err
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverSQLite), zap.String("path", path))
	}

	return db, nil
}

// OpenPostgres establishes a PostgreSQL connection and performs schema migrations.
func OpenPostgres(dsn string, logger *zap.Logger) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errMissingPostgresDSN
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: newGormLogger(logger)})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db, logger); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("database initialized", zap.String("driver", DriverPostgres))
	}

	return db, nil
}

// newGormLogger routes GORM warnings, errors and slow queries into zap. Missing-record lookups are expected and stay silent.
func newGormLogger(logger *zap.Logger) gormlogger.Interface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return gormlogger.New(zap.NewStdLog(logger.Named("gorm")), gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Migrate creates the users, notes, tags and note_tags tables and applies pending named migrations.
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	if err := db.AutoMigrate(&notes.User{}, &notes.Tag{}, &notes.Note{}, &migrationRecord{}); err != nil {
		return err
	}
	return applyMigrations(db, logger)
}
