package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationPurgeOrphanedNotes = "2026-10-01_purge_orphaned_notes"
	migrationPurgeDanglingLinks = "2026-10-01_purge_dangling_note_tags"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationPurgeOrphanedNotes, apply: purgeOrphanedNotes},
		{name: migrationPurgeDanglingLinks, apply: purgeDanglingNoteTags},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Notes written before author enforcement could reference a missing user.
func purgeOrphanedNotes(db *gorm.DB) error {
	return db.Exec("DELETE FROM notes WHERE author_id IS NULL OR author_id NOT IN (SELECT id FROM users)").Error
}

func purgeDanglingNoteTags(db *gorm.DB) error {
	return db.Exec("DELETE FROM note_tags WHERE note_id NOT IN (SELECT id FROM notes) OR tag_id NOT IN (SELECT id FROM tags)").Error
}
