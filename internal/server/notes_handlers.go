package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jsh/notetaking/internal/notes"
)

func (h *httpHandler) handleListNotes(c *gin.Context) {
	records, err := h.notesService.ListNotes(c.Request.Context(), c.Query("tag"))
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, newNoteViews(records))
}

func (h *httpHandler) handleListTags(c *gin.Context) {
	records, err := h.notesService.ListTags(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	views := make([]tagView, 0, len(records))
	for index := range records {
		views = append(views, newTagView(&records[index]))
	}
	c.JSON(http.StatusOK, views)
}

func (h *httpHandler) handleListTagNotes(c *gin.Context) {
	tagID, ok := parseIDParam(c, "tagId", "invalid_tag_id")
	if !ok {
		return
	}
	records, err := h.notesService.ListNotesByTag(c.Request.Context(), tagID)
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, newNoteViews(records))
}

func (h *httpHandler) handleAddNoteTag(c *gin.Context) {
	noteID, ok := parseIDParam(c, "noteId", "invalid_note_id")
	if !ok {
		return
	}
	var request tagPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.notesService.AddTag(c.Request.Context(), noteID, request.ref())
	if err != nil {
		h.respondServiceError(c, err, tagNotFoundMessage(err, noteID))
		return
	}
	c.JSON(http.StatusOK, newNoteView(note))
}

func (h *httpHandler) handleRemoveNoteTag(c *gin.Context) {
	noteID, ok := parseIDParam(c, "noteId", "invalid_note_id")
	if !ok {
		return
	}
	tagID, ok := parseIDParam(c, "tagId", "invalid_tag_id")
	if !ok {
		return
	}

	note, err := h.notesService.RemoveTag(c.Request.Context(), noteID, tagID)
	if err != nil {
		h.respondServiceError(c, err, tagNotFoundMessage(err, noteID))
		return
	}
	c.JSON(http.StatusOK, newNoteView(note))
}

func tagNotFoundMessage(err error, noteID uint) string {
	if errors.Is(err, notes.ErrNoteNotFound) {
		return fmt.Sprintf("Note %d not found", noteID)
	}
	return tagErrorMessage(err)
}

func tagErrorMessage(err error) string {
	var missing *notes.TagLookupError
	switch {
	case errors.As(err, &missing):
		if missing.ID == 0 {
			return fmt.Sprintf("Tag %q not found", missing.Name)
		}
		return fmt.Sprintf("Tag %d not found", missing.ID)
	case errors.Is(err, notes.ErrInvalidTag):
		return "tag requires an id or a name"
	default:
		return ""
	}
}
