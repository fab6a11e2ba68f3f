package notes

import (
	"errors"
	"fmt"
)

var (
	// ErrUserNotFound indicates that no user matches the requested identifier.
	ErrUserNotFound = errors.New("notes: user not found")
	// ErrNoteNotFound indicates that no note matches the requested identifier.
	ErrNoteNotFound = errors.New("notes: note not found")
	// ErrTagNotFound indicates that no tag matches the requested identifier.
	ErrTagNotFound = errors.New("notes: tag not found")
	// ErrInvalidTag indicates that a tag reference carries neither an id nor a name.
	ErrInvalidTag = errors.New("notes: invalid tag reference")
	// ErrMissingAuthor indicates an attempt to persist a note without an author.
	ErrMissingAuthor = errors.New("notes: note author is required")
)

// TagLookupError names the tag reference that matched no stored tag. It matches ErrTagNotFound.
type TagLookupError struct {
	ID   uint
	Name string
}

func (e *TagLookupError) Error() string {
	if e.Name != "" && e.ID == 0 {
		return fmt.Sprintf("%v: %q", ErrTagNotFound, e.Name)
	}
	return fmt.Sprintf("%v: %d", ErrTagNotFound, e.ID)
}

func (e *TagLookupError) Unwrap() error {
	return ErrTagNotFound
}

// User owns a set of notes. Deleting a user deletes its notes, and a note
// removed from a user is deleted on the next save.
type User struct {
	ID    uint    `gorm:"column:id;primaryKey;autoIncrement"`
	Name  string  `gorm:"column:name;size:320;not null;default:''"`
	Email string  `gorm:"column:email;size:320;not null;default:''"`
	Notes []*Note `gorm:"foreignKey:AuthorID;references:ID;constraint:OnDelete:CASCADE"`

	// attached holds notes added since the user was loaded; orphans holds persisted notes removed since then.
	attached []*Note
	orphans  []*Note
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Equal reports whether both users refer to the same persisted identity.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return false
	}
	if u == other {
		return true
	}
	return u.ID != 0 && u.ID == other.ID
}

// Note is a piece of text written by exactly one author and labelled by any number of tags.
type Note struct {
	ID       uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Text     string `gorm:"column:text;type:text;not null;default:''"`
	AuthorID uint   `gorm:"column:author_id;not null;index:idx_notes_author"`
	Author   *User  `gorm:"foreignKey:AuthorID;references:ID"`
	Tags     []*Tag `gorm:"many2many:note_tags;"`
}

// TableName provides the explicit table binding for GORM.
func (Note) TableName() string {
	return "notes"
}

// Equal reports whether both notes refer to the same persisted identity.
// Notes without an assigned id only equal themselves.
func (n *Note) Equal(other *Note) bool {
	if n == nil || other == nil {
		return false
	}
	if n == other {
		return true
	}
	return n.ID != 0 && n.ID == other.ID
}

// Tag is shared reference data; notes point at tags, tags never own notes.
type Tag struct {
	ID    uint    `gorm:"column:id;primaryKey;autoIncrement"`
	Name  string  `gorm:"column:name;size:190;not null;uniqueIndex:idx_tags_name"`
	Notes []*Note `gorm:"many2many:note_tags;"`
}

// TableName provides the explicit table binding for GORM.
func (Tag) TableName() string {
	return "tags"
}

// Equal reports whether both tags refer to the same persisted identity.
func (t *Tag) Equal(other *Tag) bool {
	if t == nil || other == nil {
		return false
	}
	if t == other {
		return true
	}
	return t.ID != 0 && t.ID == other.ID
}

// noteTag binds the many-to-many join table so the aggregate save can write it explicitly.
type noteTag struct {
	NoteID uint `gorm:"column:note_id;primaryKey"`
	TagID  uint `gorm:"column:tag_id;primaryKey"`
}

// TableName provides the explicit table binding for GORM.
func (noteTag) TableName() string {
	return "note_tags"
}

// TagRef identifies a tag in a client payload, either by id or by exact name.
type TagRef struct {
	ID   uint
	Name string
}
