package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jsh/notetaking/internal/notes"
	"github.com/jsh/notetaking/internal/users"
	"go.uber.org/zap"
)

func (h *httpHandler) handleListUsers(c *gin.Context) {
	records, err := h.usersService.ListUsers(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	views := make([]userView, 0, len(records))
	for index := range records {
		views = append(views, newUserView(&records[index]))
	}
	c.JSON(http.StatusOK, views)
}

func (h *httpHandler) handleCreateUser(c *gin.Context) {
	var request userPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.usersService.CreateUser(c.Request.Context(), &notes.User{
		ID:    request.ID,
		Name:  request.Name,
		Email: request.Email,
	})
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, newUserView(user))
}

func (h *httpHandler) handleDeleteUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId", "invalid_user_id")
	if !ok {
		return
	}
	if err := h.usersService.DeleteUser(c.Request.Context(), userID); err != nil {
		h.respondServiceError(c, err, notFoundMessage(err, userID, 0))
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleAddUserNote(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId", "invalid_user_id")
	if !ok {
		return
	}
	var request notePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	note, err := h.usersService.AddNote(c.Request.Context(), userID, users.NoteDraft{
		Text: request.Text,
		Tags: request.tagRefs(),
	})
	if err != nil {
		h.respondServiceError(c, err, notFoundMessage(err, userID, 0))
		return
	}

	h.realtime.NoteCreated(userID, note.ID)
	h.logger.Debug("note created",
		zap.Uint("user_id", userID),
		zap.Uint("note_id", note.ID),
		zap.Strings("tags", note.TagNames()))
	c.JSON(http.StatusOK, newNoteView(note))
}

func (h *httpHandler) handleListUserNotes(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId", "invalid_user_id")
	if !ok {
		return
	}
	records, err := h.usersService.ListNotes(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err, "")
		return
	}
	c.JSON(http.StatusOK, newNoteViews(records))
}

func (h *httpHandler) handleRemoveUserNote(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId", "invalid_user_id")
	if !ok {
		return
	}
	noteID, ok := parseIDParam(c, "noteId", "invalid_note_id")
	if !ok {
		return
	}
	removed, err := h.usersService.RemoveNote(c.Request.Context(), userID, noteID)
	if err != nil {
		h.respondServiceError(c, err, notFoundMessage(err, userID, noteID))
		return
	}
	h.realtime.NoteRemoved(userID, removed.ID)
	c.Status(http.StatusNoContent)
}

// handleUserNoteEvents streams note-created and note-removed events for one user as server-sent events.
func (h *httpHandler) handleUserNoteEvents(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId", "invalid_user_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, userID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatInterval)
	defer heartbeat.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(message.EventType, message.eventPayload())
			return true
		case tick := <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{
				"source":    realtimeSourceBackend,
				"timestamp": tick.UTC().Format(time.RFC3339),
			})
			return true
		}
	})
}

func notFoundMessage(err error, userID, noteID uint) string {
	switch {
	case errors.Is(err, notes.ErrUserNotFound):
		return fmt.Sprintf("User %d not found", userID)
	case errors.Is(err, notes.ErrNoteNotFound):
		return fmt.Sprintf("Note %d not found for user %d", noteID, userID)
	case errors.Is(err, notes.ErrTagNotFound), errors.Is(err, notes.ErrInvalidTag):
		return tagErrorMessage(err)
	default:
		return ""
	}
}
