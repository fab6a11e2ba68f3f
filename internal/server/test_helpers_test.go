package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jsh/notetaking/internal/database"
	"github.com/jsh/notetaking/internal/notes"
	"github.com/jsh/notetaking/internal/users"
	"go.uber.org/zap"
)

var testDatabaseCounter atomic.Int64

type testServices struct {
	users *users.Service
	notes *notes.Service
}

func newTestServices(t *testing.T) testServices {
	t.Helper()
	dsn := fmt.Sprintf("file:server_%d?mode=memory&cache=shared", testDatabaseCounter.Add(1))
	db, err := database.OpenSQLite(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	usersService, err := users.NewService(users.ServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build users service: %v", err)
	}
	notesService, err := notes.NewService(notes.ServiceConfig{Database: db, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build notes service: %v", err)
	}
	return testServices{users: usersService, notes: notesService}
}

func newTestHandler(t *testing.T, configure func(*Dependencies)) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	services := newTestServices(t)
	deps := Dependencies{
		UsersService:      services.users,
		NotesService:      services.notes,
		HeartbeatInterval: time.Hour,
		Logger:            zap.NewNop(),
	}
	if configure != nil {
		configure(&deps)
	}
	handler, err := NewHTTPHandler(deps)
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func performRequest(t *testing.T, handler http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else if raw, ok := body.(string); ok {
		reader = bytes.NewReader([]byte(raw))
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		request.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var value T
	if err := json.Unmarshal(recorder.Body.Bytes(), &value); err != nil {
		t.Fatalf("failed to decode body %q: %v", recorder.Body.String(), err)
	}
	return value
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
}
