package server

import "github.com/jsh/notetaking/internal/notes"

// Views are one-directional: a note shows its tags but not its author,
// a user shows no notes and a tag shows no notes.

type tagView struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type noteView struct {
	ID   uint      `json:"id"`
	Text string    `json:"text"`
	Tags []tagView `json:"tags"`
}

type userView struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userPayload struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type tagPayload struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type notePayload struct {
	Text string       `json:"text"`
	Tags []tagPayload `json:"tags"`
}

func newTagView(tag *notes.Tag) tagView {
	return tagView{ID: tag.ID, Name: tag.Name}
}

func newNoteView(note *notes.Note) noteView {
	view := noteView{
		ID:   note.ID,
		Text: note.Text,
		Tags: make([]tagView, 0, len(note.Tags)),
	}
	for _, tag := range note.Tags {
		view.Tags = append(view.Tags, newTagView(tag))
	}
	return view
}

func newNoteViews(records []notes.Note) []noteView {
	views := make([]noteView, 0, len(records))
	for index := range records {
		views = append(views, newNoteView(&records[index]))
	}
	return views
}

func newUserView(user *notes.User) userView {
	return userView{ID: user.ID, Name: user.Name, Email: user.Email}
}

func (p tagPayload) ref() notes.TagRef {
	return notes.TagRef{ID: p.ID, Name: p.Name}
}

func (p notePayload) tagRefs() []notes.TagRef {
	refs := make([]notes.TagRef, 0, len(p.Tags))
	for _, tag := range p.Tags {
		refs = append(refs, tag.ref())
	}
	return refs
}
