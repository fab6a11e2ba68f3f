package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jsh/notetaking/internal/notes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errMissingDatabase = errors.New("users: database connection required")
	errMissingUser     = errors.New("users: user payload required")
)

const (
	opListUsers  = "users.list_users"
	opCreateUser = "users.create_user"
	opAddNote    = "users.add_note"
	opListNotes  = "users.list_notes"
	opRemoveNote = "users.remove_note"
	opDeleteUser = "users.delete_user"
)

const (
	reasonMissingDatabase = "missing_database"
	reasonMissingUser     = "missing_user"
	reasonQueryFailed     = "query_failed"
	reasonSaveFailed      = "save_failed"
	reasonUserNotFound    = "user_not_found"
	reasonNoteNotFound    = "note_not_found"
	reasonTagNotFound     = "tag_not_found"
	reasonInvalidTag      = "invalid_tag"
)

// ServiceConfig describes the dependencies required by the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Logger   *zap.Logger
}

// Service manages users and the notes they own.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NoteDraft is the client-submitted content of a new note.
type NoteDraft struct {
	Text string
	Tags []notes.TagRef
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		logger: logger,
	}, nil
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]notes.User, error) {
	if s.db == nil {
		return nil, notes.NewServiceError(opListUsers, reasonMissingDatabase, errMissingDatabase)
	}
	users, err := notes.NewUserRepository(s.db).FindAll(ctx)
	if err != nil {
		s.logError(opListUsers, reasonQueryFailed, err)
		return nil, notes.NewServiceError(opListUsers, reasonQueryFailed, err)
	}
	return users, nil
}

// CreateUser persists the submitted user as given, including a client-chosen id.
func (s *Service) CreateUser(ctx context.Context, user *notes.User) (*notes.User, error) {
	if s.db == nil {
		return nil, notes.NewServiceError(opCreateUser, reasonMissingDatabase, errMissingDatabase)
	}
	if user == nil {
		return nil, notes.NewServiceError(opCreateUser, reasonMissingUser, errMissingUser)
	}
	if err := notes.NewUserRepository(s.db).Save(ctx, user); err != nil {
		s.logError(opCreateUser, reasonSaveFailed, err)
		return nil, notes.NewServiceError(opCreateUser, reasonSaveFailed, err)
	}
	return user, nil
}

// AddNote attaches a new note to the user and saves the user, which persists the note.
// Nothing is written when the user does not exist.
func (s *Service) AddNote(ctx context.Context, userID uint, draft NoteDraft) (*notes.Note, error) {
	if s.db == nil {
		return nil, notes.NewServiceError(opAddNote, reasonMissingDatabase, errMissingDatabase)
	}

	var created *notes.Note
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userRepository := notes.NewUserRepository(tx)
		user, err := userRepository.FindWithNotes(ctx, userID)
		if err != nil {
			return s.classify(opAddNote, err, zap.Uint("user_id", userID))
		}
		tags, err := notes.NewTagRepository(tx).Resolve(ctx, draft.Tags)
		if err != nil {
			return s.classify(opAddNote, err, zap.Uint("user_id", userID))
		}

		note := &notes.Note{Text: draft.Text}
		for _, tag := range tags {
			note.AddTag(tag)
		}
		user.AddNote(note)

		if err := userRepository.Save(ctx, user); err != nil {
			s.logError(opAddNote, reasonSaveFailed, err, zap.Uint("user_id", userID))
			return notes.NewServiceError(opAddNote, reasonSaveFailed, err)
		}
		created = note
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// ListNotes returns the notes authored by userID. An unknown user simply has no notes.
func (s *Service) ListNotes(ctx context.Context, userID uint) ([]notes.Note, error) {
	if s.db == nil {
		return nil, notes.NewServiceError(opListNotes, reasonMissingDatabase, errMissingDatabase)
	}
	authored, err := notes.NewNoteRepository(s.db).FindByAuthorID(ctx, userID)
	if err != nil {
		s.logError(opListNotes, reasonQueryFailed, err, zap.Uint("user_id", userID))
		return nil, notes.NewServiceError(opListNotes, reasonQueryFailed, err)
	}
	return authored, nil
}

// RemoveNote detaches a note from its author; the orphaned note is deleted with the save.
func (s *Service) RemoveNote(ctx context.Context, userID, noteID uint) (*notes.Note, error) {
	if s.db == nil {
		return nil, notes.NewServiceError(opRemoveNote, reasonMissingDatabase, errMissingDatabase)
	}

	var removed *notes.Note
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userRepository := notes.NewUserRepository(tx)
		user, err := userRepository.FindWithNotes(ctx, userID)
		if err != nil {
			return s.classify(opRemoveNote, err, zap.Uint("user_id", userID))
		}
		var target *notes.Note
		for _, note := range user.Notes {
			if note.ID == noteID {
				target = note
				break
			}
		}
		if target == nil {
			return notes.NewServiceError(opRemoveNote, reasonNoteNotFound,
				fmt.Errorf("%w: %d", notes.ErrNoteNotFound, noteID))
		}

		user.RemoveNote(target)
		if err := userRepository.Save(ctx, user); err != nil {
			s.logError(opRemoveNote, reasonSaveFailed, err,
				zap.Uint("user_id", userID), zap.Uint("note_id", noteID))
			return notes.NewServiceError(opRemoveNote, reasonSaveFailed, err)
		}
		removed = target
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return removed, nil
}

// DeleteUser removes the user and all of its notes.
func (s *Service) DeleteUser(ctx context.Context, userID uint) error {
	if s.db == nil {
		return notes.NewServiceError(opDeleteUser, reasonMissingDatabase, errMissingDatabase)
	}
	if err := notes.NewUserRepository(s.db).Delete(ctx, userID); err != nil {
		return s.classify(opDeleteUser, err, zap.Uint("user_id", userID))
	}
	s.logger.Info("user deleted", zap.Uint("user_id", userID))
	return nil
}

func (s *Service) classify(operation string, err error, fields ...zap.Field) error {
	switch {
	case errors.Is(err, notes.ErrUserNotFound):
		return notes.NewServiceError(operation, reasonUserNotFound, err)
	case errors.Is(err, notes.ErrTagNotFound):
		return notes.NewServiceError(operation, reasonTagNotFound, err)
	case errors.Is(err, notes.ErrInvalidTag):
		return notes.NewServiceError(operation, reasonInvalidTag, err)
	default:
		s.logError(operation, reasonQueryFailed, err, fields...)
		return notes.NewServiceError(operation, reasonQueryFailed, err)
	}
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("users service error", attrs...)
}
