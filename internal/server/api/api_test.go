package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ayusman/airsketch/internal/app"
	"github.com/ayusman/airsketch/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func createArtwork(t *testing.T, s *store.Store, name string, at time.Time) *store.Artwork {
	t.Helper()
	a := &store.Artwork{Name: name, Width: 4, Height: 2, PNG: []byte("\x89PNG-" + name), CreatedAt: at}
	if err := s.Artworks().Create(a); err != nil {
		t.Fatalf("failed to create artwork: %v", err)
	}
	return a
}

func TestArtworksHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewArtworksHandler(s.Artworks())

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	createArtwork(t, s, "old.png", base)
	newest := createArtwork(t, s, "new.png", base.Add(time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/api/artworks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var response struct {
		Artworks []map[string]any `json:"artworks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Artworks) != 2 {
		t.Fatalf("expected 2 artworks, got %d", len(response.Artworks))
	}
	if response.Artworks[0]["id"] != newest.ID {
		t.Errorf("expected newest artwork first, got %v", response.Artworks[0]["id"])
	}
	if _, ok := response.Artworks[0]["png"]; ok {
		t.Error("list response must not embed PNG bytes")
	}
}

func TestArtworksHandler_ListEmpty(t *testing.T) {
	s := newTestStore(t)
	handler := NewArtworksHandler(s.Artworks())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artworks", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); body != "{\"artworks\":[]}\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestArtworksHandler_GetPNG(t *testing.T) {
	s := newTestStore(t)
	handler := NewArtworksHandler(s.Artworks())
	art := createArtwork(t, s, "artwork_1.png", time.Now())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/artworks/"+art.ID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected Content-Type image/png, got %s", ct)
	}
	if !bytes.Equal(rec.Body.Bytes(), art.PNG) {
		t.Errorf("body = %q, want %q", rec.Body.Bytes(), art.PNG)
	}
}

func TestArtworksHandler_NotFound(t *testing.T) {
	s := newTestStore(t)
	handler := NewArtworksHandler(s.Artworks())

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, "/api/artworks/missing", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}

func TestArtworksHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewArtworksHandler(s.Artworks())
	art := createArtwork(t, s, "artwork_1.png", time.Now())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/artworks/"+art.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	if _, err := s.Artworks().GetByID(art.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetByID after delete error = %v, want ErrNotFound", err)
	}
}

func TestArtworksHandler_MethodNotAllowed(t *testing.T) {
	s := newTestStore(t)
	handler := NewArtworksHandler(s.Artworks())

	tests := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/artworks"},
		{http.MethodDelete, "/api/artworks"},
		{http.MethodPut, "/api/artworks/abc"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

type fakeSession struct {
	cleared   int
	undo      bool
	redo      bool
	exportErr error
	brush     app.BrushSettings
}

func (f *fakeSession) Clear()     { f.cleared++ }
func (f *fakeSession) Undo() bool { return f.undo }
func (f *fakeSession) Redo() bool { return f.redo }

func (f *fakeSession) Export(ctx context.Context) (*store.Artwork, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}
	return &store.Artwork{ID: "a1", Name: "artwork_1.png", Width: 8, Height: 6, Size: 42}, nil
}

func (f *fakeSession) Brush() app.BrushSettings { return f.brush }

func (f *fakeSession) ApplyBrush(b app.BrushSettings) error {
	if b.Size < 1 {
		return errors.New("brush size must be at least 1")
	}
	f.brush = b
	return nil
}

func serveSession(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	return rec
}

func TestSessionHandler_HistoryActions(t *testing.T) {
	fs := &fakeSession{undo: true}
	h := NewSessionHandler(fs, zerolog.Nop())

	rec := serveSession(h, http.MethodPost, "/api/session/clear", "")
	if rec.Code != http.StatusNoContent || fs.cleared != 1 {
		t.Errorf("clear: status %d, cleared %d", rec.Code, fs.cleared)
	}

	rec = serveSession(h, http.MethodPost, "/api/session/undo", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"changed\":true}\n" {
		t.Errorf("undo: status %d, body %q", rec.Code, rec.Body.String())
	}

	rec = serveSession(h, http.MethodPost, "/api/session/redo", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "{\"changed\":false}\n" {
		t.Errorf("redo: status %d, body %q", rec.Code, rec.Body.String())
	}

	rec = serveSession(h, http.MethodGet, "/api/session/undo", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET undo: status %d", rec.Code)
	}

	rec = serveSession(h, http.MethodPost, "/api/session/explode", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown action: status %d", rec.Code)
	}
}

func TestSessionHandler_Export(t *testing.T) {
	fs := &fakeSession{}
	h := NewSessionHandler(fs, zerolog.Nop())

	rec := serveSession(h, http.MethodPost, "/api/session/export", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rec.Code)
	}
	var art store.Artwork
	if err := json.NewDecoder(rec.Body).Decode(&art); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if art.ID != "a1" || art.Name != "artwork_1.png" {
		t.Errorf("artwork = %+v", art)
	}

	fs.exportErr = errors.New("disk full")
	rec = serveSession(h, http.MethodPost, "/api/session/export", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestSessionHandler_Brush(t *testing.T) {
	fs := &fakeSession{brush: app.DefaultBrushSettings()}
	h := NewSessionHandler(fs, zerolog.Nop())

	rec := serveSession(h, http.MethodPut, "/api/session/brush", `{"size": 12, "mode": "neon"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if fs.brush.Size != 12 || fs.brush.Mode != "neon" {
		t.Errorf("brush = %+v", fs.brush)
	}
	if fs.brush.Color != app.DefaultBrushSettings().Color {
		t.Errorf("unspecified fields must keep their value, color = %q", fs.brush.Color)
	}

	rec = serveSession(h, http.MethodGet, "/api/session/brush", "")
	var got app.BrushSettings
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got != fs.brush {
		t.Errorf("GET brush = %+v, want %+v", got, fs.brush)
	}

	rec = serveSession(h, http.MethodPut, "/api/session/brush", `{"size": 0}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid size: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = serveSession(h, http.MethodPut, "/api/session/brush", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad body: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}
