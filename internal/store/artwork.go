package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Artwork is an exported drawing. PNG is only populated by GetByID.
type Artwork struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId,omitempty"`
	Name      string    `json:"name"`
	Path      string    `json:"path,omitempty"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Size      int       `json:"size"`
	PNG       []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

// ArtworkRepository provides CRUD operations for artworks.
type ArtworkRepository struct {
	db *sql.DB
}

// Artworks returns the artwork repository for this store.
func (s *Store) Artworks() *ArtworkRepository {
	return &ArtworkRepository{db: s.db}
}

// Create inserts an artwork. ID and CreatedAt are assigned when unset.
func (r *ArtworkRepository) Create(a *Artwork) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.Size = len(a.PNG)

	var session any
	if a.SessionID != "" {
		session = a.SessionID
	}

	_, err := r.db.Exec(
		`INSERT INTO artworks (id, session_id, name, path, width, height, size, png, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, session, a.Name, a.Path, a.Width, a.Height, a.Size, a.PNG, a.CreatedAt,
	)
	return err
}

// GetByID retrieves an artwork including its PNG bytes.
func (r *ArtworkRepository) GetByID(id string) (*Artwork, error) {
	a := &Artwork{}
	var session sql.NullString

	err := r.db.QueryRow(
		`SELECT id, session_id, name, path, width, height, size, png, created_at
		 FROM artworks WHERE id = ?`,
		id,
	).Scan(&a.ID, &session, &a.Name, &a.Path, &a.Width, &a.Height, &a.Size, &a.PNG, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.SessionID = session.String
	return a, nil
}

// List retrieves artwork metadata, newest first.
func (r *ArtworkRepository) List() ([]*Artwork, error) {
	return r.list(`SELECT id, session_id, name, path, width, height, size, created_at
		FROM artworks ORDER BY created_at DESC`)
}

// ListBySession retrieves artwork metadata of one session, newest first.
func (r *ArtworkRepository) ListBySession(sessionID string) ([]*Artwork, error) {
	return r.list(`SELECT id, session_id, name, path, width, height, size, created_at
		FROM artworks WHERE session_id = ? ORDER BY created_at DESC`, sessionID)
}

func (r *ArtworkRepository) list(query string, args ...any) ([]*Artwork, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artworks := []*Artwork{}
	for rows.Next() {
		a := &Artwork{}
		var session sql.NullString
		if err := rows.Scan(&a.ID, &session, &a.Name, &a.Path, &a.Width, &a.Height, &a.Size, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.SessionID = session.String
		artworks = append(artworks, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return artworks, nil
}

// Delete removes an artwork by its ID.
func (r *ArtworkRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM artworks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(result)
}
