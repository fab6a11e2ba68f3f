package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jsh/notetaking/internal/notes"
	"github.com/jsh/notetaking/internal/users"
	"go.uber.org/zap"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "notetaking_request_id"
	subjectContextKey   = "notetaking_subject"
)

var (
	errMissingUsersService  = errors.New("users service dependency required")
	errMissingNotesService  = errors.New("notes service dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// RequestValidator authenticates a request and returns the token subject.
type RequestValidator interface {
	ValidateRequest(r *http.Request) (string, error)
}

type Dependencies struct {
	UsersService *users.Service
	NotesService *notes.Service
	// Tokens guards the mutating routes; nil leaves them open.
	Tokens            RequestValidator
	Realtime          *RealtimeDispatcher
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.UsersService == nil {
		return nil, errMissingUsersService
	}
	if deps.NotesService == nil {
		return nil, errMissingNotesService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		usersService:      deps.UsersService,
		notesService:      deps.NotesService,
		tokens:            deps.Tokens,
		realtime:          realtime,
		heartbeatInterval: heartbeat,
		logger:            logger,
	}

	router.GET("/healthz", handler.handleHealth)

	router.GET("/notes", handler.handleListNotes)
	router.GET("/tags", handler.handleListTags)
	router.GET("/tags/:tagId/notes", handler.handleListTagNotes)

	router.GET("/users", handler.handleListUsers)
	router.GET("/users/", handler.handleListUsers)
	router.GET("/users/:userId/notes", handler.handleListUserNotes)
	router.GET("/users/:userId/notes/events", handler.handleUserNoteEvents)

	writes := router.Group("/")
	writes.Use(handler.authorizeWrite)
	writes.POST("/users", handler.handleCreateUser)
	writes.POST("/users/", handler.handleCreateUser)
	writes.DELETE("/users/:userId", handler.handleDeleteUser)
	writes.POST("/users/:userId/notes", handler.handleAddUserNote)
	writes.DELETE("/users/:userId/notes/:noteId", handler.handleRemoveUserNote)
	writes.POST("/notes/:noteId/tags", handler.handleAddNoteTag)
	writes.DELETE("/notes/:noteId/tags/:tagId", handler.handleRemoveNoteTag)

	return router, nil
}

type httpHandler struct {
	usersService      *users.Service
	notesService      *notes.Service
	tokens            RequestValidator
	realtime          *RealtimeDispatcher
	heartbeatInterval time.Duration
	logger            *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeWrite(c *gin.Context) {
	if h.tokens == nil {
		c.Next()
		return
	}
	subject, err := h.tokens.ValidateRequest(c.Request)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err), zap.String("request_id", c.GetString(requestIDContextKey)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": errInvalidAuthorization.Error()})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders: []string{requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			if generated, err := uuid.NewV7(); err == nil {
				requestID = generated.String()
			}
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDContextKey)),
		}
		if subject := c.GetString(subjectContextKey); subject != "" {
			fields = append(fields, zap.String("subject", subject))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("http request", fields...)
	}
}

// respondServiceError maps service failures onto HTTP statuses.
func (h *httpHandler) respondServiceError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	errorLabel := "internal_error"
	switch {
	case errors.Is(err, notes.ErrUserNotFound),
		errors.Is(err, notes.ErrNoteNotFound),
		errors.Is(err, notes.ErrTagNotFound):
		status = http.StatusNotFound
		errorLabel = "not_found"
	case errors.Is(err, notes.ErrInvalidTag):
		status = http.StatusBadRequest
		errorLabel = "invalid_tag"
	}

	body := gin.H{"error": errorLabel}
	if message != "" && status != http.StatusInternalServerError {
		body["message"] = message
	}
	var serviceErr *notes.ServiceError
	if errors.As(err, &serviceErr) {
		body["code"] = serviceErr.Code()
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("request_id", c.GetString(requestIDContextKey)))
	}
	c.JSON(status, body)
}

// parseIDParam reads a numeric path parameter, answering 400 with errorLabel when it is malformed.
func parseIDParam(c *gin.Context, name, errorLabel string) (uint, bool) {
	value, err := strconv.ParseUint(c.Param(name), 10, 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errorLabel})
		return 0, false
	}
	return uint(value), true
}
