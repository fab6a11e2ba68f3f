package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/jsh/notetaking/internal/notes"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

func TestApplyMigrationsPurgesOrphanedNotes(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		testContext.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	defer sqlDB.Close()

	if err := database.AutoMigrate(&notes.User{}, &notes.Tag{}, &notes.Note{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}
	if err := database.Exec("PRAGMA foreign_keys = OFF").Error; err != nil {
		testContext.Fatalf("failed to disable foreign keys: %v", err)
	}

	statements := []string{
		"INSERT INTO users (id, name, email) VALUES (1, 'ada', 'ada@example.com')",
		"INSERT INTO tags (id, name) VALUES (1, 'kept')",
		"INSERT INTO notes (id, text, author_id) VALUES (1, 'owned', 1)",
		"INSERT INTO notes (id, text, author_id) VALUES (2, 'orphaned', 42)",
		"INSERT INTO note_tags (note_id, tag_id) VALUES (1, 1)",
		"INSERT INTO note_tags (note_id, tag_id) VALUES (2, 1)",
		"INSERT INTO note_tags (note_id, tag_id) VALUES (1, 9)",
	}
	for _, statement := range statements {
		if err := database.Exec(statement).Error; err != nil {
			testContext.Fatalf("failed to seed %q: %v", statement, err)
		}
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var noteIDs []uint
	if err := database.Model(&notes.Note{}).Order("id").Pluck("id", &noteIDs).Error; err != nil {
		testContext.Fatalf("failed to list notes: %v", err)
	}
	if len(noteIDs) != 1 || noteIDs[0] != 1 {
		testContext.Fatalf("expected only note 1 to remain, got %v", noteIDs)
	}

	var linkCount int64
	if err := database.Table("note_tags").Count(&linkCount).Error; err != nil {
		testContext.Fatalf("failed to count links: %v", err)
	}
	if linkCount != 1 {
		testContext.Fatalf("expected one surviving link, got %d", linkCount)
	}

	for _, name := range []string{migrationPurgeOrphanedNotes, migrationPurgeDanglingLinks} {
		var record migrationRecord
		if err := database.Where("name = ?", name).Take(&record).Error; err != nil {
			testContext.Fatalf("expected migration record %s: %v", name, err)
		}
		if record.AppliedAtSeconds == 0 {
			testContext.Fatalf("expected migration timestamp to be set")
		}
	}

	if err := database.Exec("INSERT INTO notes (id, text, author_id) VALUES (3, 'late orphan', 77)").Error; err != nil {
		testContext.Fatalf("failed to seed late orphan: %v", err)
	}
	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to reapply migrations: %v", err)
	}
	var lateCount int64
	database.Model(&notes.Note{}).Where("id = ?", 3).Count(&lateCount)
	if lateCount != 1 {
		testContext.Fatalf("expected applied migrations to be skipped on rerun")
	}
}

func TestOpenRejectsUnsupportedDriver(testContext *testing.T) {
	if _, err := Open(Options{Driver: "mysql"}, zap.NewNop()); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
	if _, err := Open(Options{Driver: DriverSQLite}, zap.NewNop()); err == nil {
		testContext.Fatalf("expected missing path error")
	}
	if _, err := Open(Options{Driver: DriverPostgres}, zap.NewNop()); err == nil {
		testContext.Fatalf("expected missing dsn error")
	}
}

func TestOpenSQLiteMigratesSchema(testContext *testing.T) {
	databasePath := filepath.Join(testContext.TempDir(), "notes.db")
	database, err := Open(Options{Driver: "SQLite", Path: databasePath}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	sqlDB, _ := database.DB()
	defer sqlDB.Close()

	for _, table := range []string{"users", "notes", "tags", "note_tags", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestGormLoggerWritesThroughZap(testContext *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	databasePath := filepath.Join(testContext.TempDir(), "logged.db")
	database, err := OpenSQLite(databasePath, zap.New(core))
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	sqlDB, _ := database.DB()
	defer sqlDB.Close()

	before := observed.FilterLoggerName("gorm").Len()
	var user notes.User
	if err := database.Take(&user, 404).Error; err == nil {
		testContext.Fatalf("expected missing user")
	}
	if observed.FilterLoggerName("gorm").Len() != before {
		testContext.Fatalf("expected missing-record lookups to stay silent")
	}

	if err := database.Exec("SELECT * FROM missing_table").Error; err == nil {
		testContext.Fatalf("expected query against missing table to fail")
	}
	entries := observed.FilterLoggerName("gorm").FilterMessageSnippet("missing_table").All()
	if len(entries) == 0 {
		testContext.Fatalf("expected failed query to be logged through zap")
	}
}
