package notes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	orderIDAsc         = "id ASC"
	queryAuthorID      = "author_id = ?"
	queryNoteIDIn      = "note_id IN ?"
	queryNoteID        = "note_id = ?"
	queryIDInSubquery  = "id IN (?)"
	queryTagName       = "name = ?"
	associationTags    = "Tags"
	associationNotes   = "Notes"
	associationNoteTag = "Notes.Tags"
)

var errMissingRepositoryDatabase = errors.New("notes: repository database handle is required")

func orderedByID(db *gorm.DB) *gorm.DB {
	return db.Order(orderIDAsc)
}

// UserRepository persists users together with the notes they own.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository binds a repository to the provided handle, which may be a transaction.
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindAll returns every user ordered by id, without notes.
func (r *UserRepository) FindAll(ctx context.Context) ([]User, error) {
	if r.db == nil {
		return nil, errMissingRepositoryDatabase
	}
	var users []User
	if err := r.db.WithContext(ctx).Order(orderIDAsc).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// FindByID loads a single user without notes.
func (r *UserRepository) FindByID(ctx context.Context, id uint) (*User, error) {
	if r.db == nil {
		return nil, errMissingRepositoryDatabase
	}
	var user User
	err := r.db.WithContext(ctx).Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// FindWithNotes loads a user with its notes and their tags, wiring the author back-references.
func (r *UserRepository) FindWithNotes(ctx context.Context, id uint) (*User, error) {
	if r.db == nil {
		return nil, errMissingRepositoryDatabase
	}
	var user User
	err := r.db.WithContext(ctx).
		Preload(associationNotes, orderedByID).
		Preload(associationNoteTag, orderedByID).
		Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	for _, note := range user.Notes {
		note.Author = &user
	}
	return &user, nil
}

// Save upserts the user, deletes notes removed from it and writes the notes added to it,
// all inside one transaction. Notes the user already owned when loaded are left as stored;
// persist edits to them through NoteRepository.Save.
func (r *UserRepository) Save(ctx context.Context, user *User) error {
	if r.db == nil {
		return errMissingRepositoryDatabase
	}
	if user == nil {
		return fmt.Errorf("%w: nil user", ErrUserNotFound)
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(user).Error; err != nil {
			return err
		}
		for _, orphan := range user.orphans {
			if err := deleteNotes(tx, []uint{orphan.ID}); err != nil {
				return err
			}
		}
		for _, note := range user.Notes {
			if note.ID != 0 && indexOf(user.attached, note, (*Note).Equal) < 0 {
				continue
			}
			note.AuthorID = user.ID
			note.Author = user
			if err := saveNote(tx, note); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	user.attached = nil
	user.orphans = nil
	return nil
}

// Delete removes the user and every note it owns. Tags are left untouched.
func (r *UserRepository) Delete(ctx context.Context, id uint) error {
	if r.db == nil {
		return errMissingRepositoryDatabase
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user User
		err := tx.Take(&user, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", ErrUserNotFound, id)
		}
		if err != nil {
			return err
		}
		var noteIDs []uint
		if err := tx.Model(&Note{}).Where(queryAuthorID, id).Pluck("id", &noteIDs).Error; err != nil {
			return err
		}
		if err := deleteNotes(tx, noteIDs); err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
}

// NoteRepository answers the note read queries and persists single notes.
type NoteRepository struct {
	db *gorm.DB
}

// NewNoteRepository binds a repository to the provided handle, which may be a transaction.
func NewNoteRepository(db *gorm.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// FindAll returns every note with its tags.
func (r *NoteRepository) FindAll(ctx context.Context) ([]Note, error) {
	return r.find(ctx, nil)
}

// FindByID loads one note with its tags.
func (r *NoteRepository) FindByID(ctx context.Context, id uint) (*Note, error) {
	if r.db == nil {
		return nil, errMissingRepositoryDatabase
	}
	var note Note
	err := r.db.WithContext(ctx).Preload(associationTags, orderedByID).Take(&note, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrNoteNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &note, nil
}

// FindByAuthorID returns the notes written by the given user id.
func (r *NoteRepository) FindByAuthorID(ctx context.Context, authorID uint) ([]Note, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where(queryAuthorID, authorID)
	})
}

// FindByTagID returns the notes labelled with the given tag id.
func (r *NoteRepository) FindByTagID(ctx context.Context, tagID uint) ([]Note, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		subquery := r.db.Session(&gorm.Session{NewDB: true}).
			Model(&noteTag{}).
			Select("note_id").
			Where("tag_id = ?", tagID)
		return db.Where(queryIDInSubquery, subquery)
	})
}

// FindByTagName returns the notes labelled with a tag whose name matches exactly.
func (r *NoteRepository) FindByTagName(ctx context.Context, name string) ([]Note, error) {
	return r.find(ctx, func(db *gorm.DB) *gorm.DB {
		subquery := r.db.Session(&gorm.Session{NewDB: true}).
			Model(&noteTag{}).
			Select("note_tags.note_id").
			Joins("JOIN tags ON tags.id = note_tags.tag_id").
			Where("tags.name = ?", name)
		return db.Where(queryIDInSubquery, subquery)
	})
}

// Save persists a note that already has an author, replacing its tag links.
func (r *NoteRepository) Save(ctx context.Context, note *Note) error {
	if r.db == nil {
		return errMissingRepositoryDatabase
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveNote(tx, note)
	})
}

// Delete removes a note and its tag links.
func (r *NoteRepository) Delete(ctx context.Context, id uint) error {
	if r.db == nil {
		return errMissingRepositoryDatabase
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteNotes(tx, []uint{id})
	})
}

func (r *NoteRepository) find(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]Note, error) {
	if r.db == nil {
		return nil, errMissingRepositoryDatabase
	}
	query := r.db.WithContext(ctx).Preload(associationTags, orderedByID).Order(orderIDAsc)
	if scope != nil {
		query = scope(query)
	}
	var notes []Note
	if err := query.Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

// TagRepository manages the shared tag reference data.
type TagRepository struct {
	db *gorm.DB
}

// NewTagRepository binds a repository to the provided handle, which may be a transaction.
func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{db: db}
}

// FindAll returns every tag ordered by id.
func (r *TagRepository) FindAll(ctx context.Context) ([]Tag, error) {
	if r.db == nil {
		return nil, errMissingRepositoryDatabase
	}
	var tags []Tag
	if err := r.db.WithContext(ctx).Order(orderIDAsc).Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

// FindByID loads one tag.
func (r *TagRepository) FindByID(ctx context.Context, id uint) (*Tag, error) {
	if r.db == nil {
		return nil, errMissingRepositoryDatabase
	}
	var tag Tag
	err := r.db.WithContext(ctx).Take(&tag, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &TagLookupError{ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindByName loads the tag with exactly the given name.
func (r *TagRepository) FindByName(ctx context.Context, name string) (*Tag, error) {
	if r.db == nil {
		return nil, errMissingRepositoryDatabase
	}
	var tag Tag
	err := r.db.WithContext(ctx).Where(queryTagName, name).Take(&tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &TagLookupError{Name: name}
	}
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindOrCreate returns the tag named name, creating it when absent. The boolean reports creation.
func (r *TagRepository) FindOrCreate(ctx context.Context, name string) (*Tag, bool, error) {
	if strings.TrimSpace(name) == "" {
		return nil, false, ErrInvalidTag
	}
	existing, err := r.FindByName(ctx, name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrTagNotFound) {
		return nil, false, err
	}
	tag := &Tag{Name: name}
	if err := r.Save(ctx, tag); err != nil {
		return nil, false, err
	}
	return tag, true, nil
}

// Save inserts or updates a tag without touching the notes that carry it.
func (r *TagRepository) Save(ctx context.Context, tag *Tag) error {
	if r.db == nil {
		return errMissingRepositoryDatabase
	}
	if tag == nil || strings.TrimSpace(tag.Name) == "" {
		return ErrInvalidTag
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(tag).Error
}

// Resolve maps client tag references onto persisted tags. A reference with an id must name an
// existing tag unless it also carries a name, in which case the name is looked up or created.
func (r *TagRepository) Resolve(ctx context.Context, refs []TagRef) ([]*Tag, error) {
	resolved := make([]*Tag, 0, len(refs))
	for _, ref := range refs {
		tag, err := r.resolveOne(ctx, ref)
		if err != nil {
			return nil, err
		}
		if indexOf(resolved, tag, (*Tag).Equal) < 0 {
			resolved = append(resolved, tag)
		}
	}
	return resolved, nil
}

func (r *TagRepository) resolveOne(ctx context.Context, ref TagRef) (*Tag, error) {
	if ref.ID != 0 {
		tag, err := r.FindByID(ctx, ref.ID)
		if err == nil {
			return tag, nil
		}
		if !errors.Is(err, ErrTagNotFound) || ref.Name == "" {
			return nil, err
		}
	}
	if ref.Name == "" {
		return nil, ErrInvalidTag
	}
	tag, _, err := r.FindOrCreate(ctx, ref.Name)
	return tag, err
}

func saveNote(tx *gorm.DB, note *Note) error {
	if note == nil {
		return fmt.Errorf("%w: nil note", ErrNoteNotFound)
	}
	if note.AuthorID == 0 {
		return ErrMissingAuthor
	}
	if err := tx.Omit(clause.Associations).Save(note).Error; err != nil {
		return err
	}
	if err := tx.Where(queryNoteID, note.ID).Delete(&noteTag{}).Error; err != nil {
		return err
	}
	if len(note.Tags) == 0 {
		return nil
	}
	links := make([]noteTag, 0, len(note.Tags))
	for _, tag := range note.Tags {
		if tag.ID == 0 {
			if err := tx.Omit(clause.Associations).Create(tag).Error; err != nil {
				return err
			}
		}
		links = append(links, noteTag{NoteID: note.ID, TagID: tag.ID})
	}
	return tx.Create(&links).Error
}

func deleteNotes(tx *gorm.DB, noteIDs []uint) error {
	if len(noteIDs) == 0 {
		return nil
	}
	if err := tx.Where(queryNoteIDIn, noteIDs).Delete(&noteTag{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", noteIDs).Delete(&Note{}).Error
}
