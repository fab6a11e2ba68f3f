package notes

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// ServiceError carries a stable machine-readable code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

// NewServiceError builds a ServiceError whose code is "<operation>.<reason>".
func NewServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

const (
	opServiceNew     = "notes.service.new"
	opListNotes      = "notes.list_notes"
	opListNotesByTag = "notes.list_notes_by_tag"
	opListTags       = "notes.list_tags"
	opAddTag         = "notes.add_tag"
	opRemoveTag      = "notes.remove_tag"
	opSeedTags       = "notes.seed_tags"
)

const (
	reasonMissingDatabase = "missing_database"
	reasonQueryFailed     = "query_failed"
	reasonNoteNotFound    = "note_not_found"
	reasonTagNotFound     = "tag_not_found"
	reasonInvalidTag      = "invalid_tag"
	reasonSaveFailed      = "save_failed"
)

type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service exposes note listing and tagging on top of the repositories.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, NewServiceError(opServiceNew, reasonMissingDatabase, errMissingDatabase)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:     cfg.Database,
		logger: logger,
	}, nil
}

// ListNotes returns every note, or only the notes carrying a tag named exactly tagName when it is non-empty.
func (s *Service) ListNotes(ctx context.Context, tagName string) ([]Note, error) {
	if s.db == nil {
		s.logError(opListNotes, reasonMissingDatabase, errMissingDatabase)
		return nil, NewServiceError(opListNotes, reasonMissingDatabase, errMissingDatabase)
	}

	repository := NewNoteRepository(s.db)
	var (
		notes []Note
		err   error
	)
	if tagName != "" {
		notes, err = repository.FindByTagName(ctx, tagName)
	} else {
		notes, err = repository.FindAll(ctx)
	}
	if err != nil {
		s.logError(opListNotes, reasonQueryFailed, err, zap.String("tag", tagName))
		return nil, NewServiceError(opListNotes, reasonQueryFailed, err)
	}
	return notes, nil
}

// ListNotesByTag returns the notes labelled with the tag id. An unknown tag yields no notes.
func (s *Service) ListNotesByTag(ctx context.Context, tagID uint) ([]Note, error) {
	if s.db == nil {
		s.logError(opListNotesByTag, reasonMissingDatabase, errMissingDatabase)
		return nil, NewServiceError(opListNotesByTag, reasonMissingDatabase, errMissingDatabase)
	}

	notes, err := NewNoteRepository(s.db).FindByTagID(ctx, tagID)
	if err != nil {
		s.logError(opListNotesByTag, reasonQueryFailed, err, zap.Uint("tag_id", tagID))
		return nil, NewServiceError(opListNotesByTag, reasonQueryFailed, err)
	}
	return notes, nil
}

// ListTags returns all reference tags.
func (s *Service) ListTags(ctx context.Context) ([]Tag, error) {
	if s.db == nil {
		s.logError(opListTags, reasonMissingDatabase, errMissingDatabase)
		return nil, NewServiceError(opListTags, reasonMissingDatabase, errMissingDatabase)
	}

	tags, err := NewTagRepository(s.db).FindAll(ctx)
	if err != nil {
		s.logError(opListTags, reasonQueryFailed, err)
		return nil, NewServiceError(opListTags, reasonQueryFailed, err)
	}
	return tags, nil
}

// AddTag labels an existing note with the referenced tag and returns the updated note.
func (s *Service) AddTag(ctx context.Context, noteID uint, ref TagRef) (*Note, error) {
	if s.db == nil {
		s.logError(opAddTag, reasonMissingDatabase, errMissingDatabase)
		return nil, NewServiceError(opAddTag, reasonMissingDatabase, errMissingDatabase)
	}

	var updated *Note
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		noteRepository := NewNoteRepository(tx)
		note, err := noteRepository.FindByID(ctx, noteID)
		if err != nil {
			return s.classify(opAddTag, err, zap.Uint("note_id", noteID))
		}
		tags, err := NewTagRepository(tx).Resolve(ctx, []TagRef{ref})
		if err != nil {
			return s.classify(opAddTag, err, zap.Uint("note_id", noteID))
		}
		for _, tag := range tags {
			note.AddTag(tag)
		}
		if err := noteRepository.Save(ctx, note); err != nil {
			s.logError(opAddTag, reasonSaveFailed, err, zap.Uint("note_id", noteID))
			return NewServiceError(opAddTag, reasonSaveFailed, err)
		}
		updated = note
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

// RemoveTag unlabels a note. The tag itself is never deleted.
func (s *Service) RemoveTag(ctx context.Context, noteID, tagID uint) (*Note, error) {
	if s.db == nil {
		s.logError(opRemoveTag, reasonMissingDatabase, errMissingDatabase)
		return nil, NewServiceError(opRemoveTag, reasonMissingDatabase, errMissingDatabase)
	}

	var updated *Note
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		noteRepository := NewNoteRepository(tx)
		note, err := noteRepository.FindByID(ctx, noteID)
		if err != nil {
			return s.classify(opRemoveTag, err, zap.Uint("note_id", noteID))
		}
		tag, err := NewTagRepository(tx).FindByID(ctx, tagID)
		if err != nil {
			return s.classify(opRemoveTag, err, zap.Uint("tag_id", tagID))
		}
		note.RemoveTag(tag)
		if err := noteRepository.Save(ctx, note); err != nil {
			s.logError(opRemoveTag, reasonSaveFailed, err, zap.Uint("note_id", noteID))
			return NewServiceError(opRemoveTag, reasonSaveFailed, err)
		}
		updated = note
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

// SeedTags makes sure a tag exists for every name and reports how many were created.
func (s *Service) SeedTags(ctx context.Context, names []string) (int, error) {
	if s.db == nil {
		s.logError(opSeedTags, reasonMissingDatabase, errMissingDatabase)
		return 0, NewServiceError(opSeedTags, reasonMissingDatabase, errMissingDatabase)
	}

	created := 0
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repository := NewTagRepository(tx)
		for _, name := range names {
			_, isNew, err := repository.FindOrCreate(ctx, name)
			if err != nil {
				return s.classify(opSeedTags, err, zap.String("tag", name))
			}
			if isNew {
				created++
			}
		}
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	if created > 0 {
		s.loggerOrDefault().Info("reference tags seeded", zap.Int("created", created), zap.Int("requested", len(names)))
	}
	return created, nil
}

func (s *Service) classify(operation string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, ErrNoteNotFound):
		return NewServiceError(operation, reasonNoteNotFound, err)
	case errors.Is(err, ErrTagNotFound):
		return NewServiceError(operation, reasonTagNotFound, err)
	case errors.Is(err, ErrInvalidTag):
		return NewServiceError(operation, reasonInvalidTag, err)
	default:
		s.logError(operation, reasonQueryFailed, err, fields...)
		return NewServiceError(operation, reasonQueryFailed, err)
	}
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil {
		return noOpLogger
	}
	if s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("notes service error", attrs...)
}
