package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ayusman/airsketch/internal/app"
	"github.com/ayusman/airsketch/internal/store"
)

// Session is the drawing session controlled over HTTP. *app.Painter
// implements it.
type Session interface {
	Clear()
	Undo() bool
	Redo() bool
	Export(ctx context.Context) (*store.Artwork, error)
	Brush() app.BrushSettings
	ApplyBrush(b app.BrushSettings) error
}

// SessionHandler exposes the drawing controls of the paint page.
type SessionHandler struct {
	session Session
	log     zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler for s.
func NewSessionHandler(s Session, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{session: s, log: log}
}

type historyResponse struct {
	Changed bool `json:"changed"`
}

// ServeHTTP routes /api/session/{clear|undo|redo|export|brush}.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/api/session/")

	switch action {
	case "clear", "undo", "redo", "export":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
	case "brush":
		if r.Method != http.MethodGet && r.Method != http.MethodPut {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
	default:
		writeError(w, http.StatusNotFound, "Unknown session action")
		return
	}

	switch action {
	case "clear":
		h.session.Clear()
		w.WriteHeader(http.StatusNoContent)
	case "undo":
		writeJSON(w, http.StatusOK, historyResponse{Changed: h.session.Undo()})
	case "redo":
		writeJSON(w, http.StatusOK, historyResponse{Changed: h.session.Redo()})
	case "export":
		h.export(w, r)
	case "brush":
		h.brush(w, r)
	}
}

// export handles POST /api/session/export.
func (h *SessionHandler) export(w http.ResponseWriter, r *http.Request) {
	art, err := h.session.Export(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Export failed")
		writeError(w, http.StatusInternalServerError, "Failed to export artwork")
		return
	}
	writeJSON(w, http.StatusCreated, art)
}

// brush handles GET and PUT /api/session/brush. PUT merges the given fields
// into the current settings.
func (h *SessionHandler) brush(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, h.session.Brush())
		return
	}

	b := h.session.Brush()
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.session.ApplyBrush(b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.session.Brush())
}
