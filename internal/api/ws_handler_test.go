package api

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func TestWsRejectsBeforeUpgrade(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	ws := NewWsHandler(db, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	r := gin.New()
	r.GET("/v1/ws", ws.HandleConnection)

	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"missing id", "", http.StatusBadRequest},
		{"not a uuid", "?document_id=abc", http.StatusBadRequest},
		{"unknown document", "?document_id=" + uuid.NewString(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ws"+tt.query, nil))
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestWsCheckOrigin(t *testing.T) {
	sameHost := NewWsHandler(nil, nil, slog.Default(), nil)
	listed := NewWsHandler(nil, nil, slog.Default(), []string{"https://cv.example.com"})

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/v1/ws", nil)
	req.Header.Set("Origin", "http://api.example.com")
	if !sameHost.checkOrigin(req) {
		t.Fatal("same host origin must be allowed")
	}
	if listed.checkOrigin(req) {
		t.Fatal("unlisted origin must be rejected")
	}

	req.Header.Set("Origin", "https://cv.example.com")
	if !listed.checkOrigin(req) {
		t.Fatal("listed origin must be allowed")
	}
}
