package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/airsketch/internal/store"
)

// ArtworksHandler serves exported artworks.
type ArtworksHandler struct {
	repo *store.ArtworkRepository
}

// NewArtworksHandler creates a new ArtworksHandler backed by repo.
func NewArtworksHandler(repo *store.ArtworkRepository) *ArtworksHandler {
	return &ArtworksHandler{repo: repo}
}

type listArtworksResponse struct {
	Artworks []*store.Artwork `json:"artworks"`
}

// ServeHTTP routes /api/artworks and /api/artworks/{id}.
func (h *ArtworksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/artworks")
	id = strings.TrimPrefix(id, "/")

	if id == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// list handles GET /api/artworks, optionally filtered by ?session=.
func (h *ArtworksHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		artworks []*store.Artwork
		err      error
	)
	if session := r.URL.Query().Get("session"); session != "" {
		artworks, err = h.repo.ListBySession(session)
	} else {
		artworks, err = h.repo.List()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list artworks")
		return
	}
	writeJSON(w, http.StatusOK, listArtworksResponse{Artworks: artworks})
}

// get handles GET /api/artworks/{id} and returns the PNG.
func (h *ArtworksHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	art, err := h.repo.GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Artwork not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get artwork")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(art.PNG)))
	w.Header().Set("Content-Disposition", `inline; filename="`+art.Name+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(art.PNG)
}

// delete handles DELETE /api/artworks/{id}.
func (h *ArtworksHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.repo.Delete(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Artwork not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete artwork")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
