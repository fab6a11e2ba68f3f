package notes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *UserRepository) {
	t.Helper()
	db := newTestDatabase(t)
	service, err := NewService(ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, NewUserRepository(db)
}

func TestNewServiceRequiresDatabase(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected service error, got %v", err)
	}
	if serviceErr.Code() != "notes.service.new.missing_database" {
		t.Fatalf("unexpected code %q", serviceErr.Code())
	}
}

func TestServiceListNotesFiltersByExactTagName(t *testing.T) {
	service, users := newTestService(t)
	ctx := context.Background()

	seedUserWithNotes(t, users, "alan", map[string][]*Tag{
		"tagged":   {{Name: "Draft"}},
		"untagged": nil,
	})

	all, err := service.ListNotes(ctx, "")
	if err != nil {
		t.Fatalf("list notes failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(all))
	}

	filtered, err := service.ListNotes(ctx, "Draft")
	if err != nil {
		t.Fatalf("list notes by tag failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Text != "tagged" {
		t.Fatalf("unexpected filtered notes %+v", filtered)
	}

	none, err := service.ListNotes(ctx, "draft")
	if err != nil {
		t.Fatalf("list notes by tag failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected case-sensitive match, got %d notes", len(none))
	}
}

func TestServiceAddAndRemoveTag(t *testing.T) {
	service, users := newTestService(t)
	ctx := context.Background()

	user := seedUserWithNotes(t, users, "edsger", map[string][]*Tag{"note": nil})
	noteID := user.Notes[0].ID

	updated, err := service.AddTag(ctx, noteID, TagRef{Name: "review"})
	require.NoError(t, err)
	require.Equal(t, []string{"review"}, updated.TagNames())
	tagID := updated.Tags[0].ID

	again, err := service.AddTag(ctx, noteID, TagRef{ID: tagID})
	require.NoError(t, err)
	require.Len(t, again.Tags, 1)

	byTag, err := service.ListNotesByTag(ctx, tagID)
	require.NoError(t, err)
	require.Len(t, byTag, 1)

	cleared, err := service.RemoveTag(ctx, noteID, tagID)
	require.NoError(t, err)
	require.Empty(t, cleared.Tags)

	tags, err := service.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
}

func TestServiceAddTagReportsMissingRecords(t *testing.T) {
	service, users := newTestService(t)
	ctx := context.Background()

	_, err := service.AddTag(ctx, 77, TagRef{Name: "x"})
	require.ErrorIs(t, err, ErrNoteNotFound)
	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	require.Equal(t, "notes.add_tag.note_not_found", serviceErr.Code())

	user := seedUserWithNotes(t, users, "barbara", map[string][]*Tag{"note": nil})
	_, err = service.AddTag(ctx, user.Notes[0].ID, TagRef{ID: 55})
	require.ErrorIs(t, err, ErrTagNotFound)

	_, err = service.AddTag(ctx, user.Notes[0].ID, TagRef{})
	require.ErrorIs(t, err, ErrInvalidTag)

	_, err = service.RemoveTag(ctx, user.Notes[0].ID, 55)
	require.ErrorIs(t, err, ErrTagNotFound)
}

func TestServiceSeedTagsIsIdempotent(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	created, err := service.SeedTags(ctx, []string{"work", "home"})
	require.NoError(t, err)
	require.Equal(t, 2, created)

	created, err = service.SeedTags(ctx, []string{"home", "travel"})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	tags, err := service.ListTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 3)
}
