package store

import (
	"errors"
	"testing"
	"time"
)

func TestSettingsRepository_GetSet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get("brush"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on empty store error = %v, want ErrNotFound", err)
	}

	if err := repo.Set("brush", "neon"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set("brush", "spray"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}

	v, err := repo.Get("brush")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != "spray" {
		t.Errorf("Get() = %q, want spray", v)
	}

	repo.Set("background", "grid")
	all, err := repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 || all["background"] != "grid" {
		t.Errorf("All() = %v", all)
	}
}

func TestSettingsRepository_JSON(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	type brush struct {
		Mode string `json:"mode"`
		Size int    `json:"size"`
	}

	if err := repo.SetJSON("brush", brush{Mode: "glow", Size: 12}); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	var got brush
	if err := repo.GetJSON("brush", &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got.Mode != "glow" || got.Size != 12 {
		t.Errorf("GetJSON() = %+v", got)
	}

	repo.Set("broken", "{")
	if err := repo.GetJSON("broken", &got); err == nil {
		t.Error("GetJSON() should fail on invalid JSON")
	}
}

func TestSessionRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Sessions()

	sess := &Session{Mode: "dashboard"}
	if err := repo.Create(sess); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(sess.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Mode != "dashboard" || got.EndedAt != nil {
		t.Errorf("GetByID() = %+v", got)
	}

	end := sess.StartedAt.Add(time.Minute)
	if err := repo.End(sess.ID, end); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	got, _ = repo.GetByID(sess.ID)
	if got.EndedAt == nil {
		t.Fatal("EndedAt should be set")
	}

	if err := repo.End("missing", end); !errors.Is(err, ErrNotFound) {
		t.Errorf("End() on missing session error = %v, want ErrNotFound", err)
	}
	if err := repo.Create(&Session{Mode: "sculpt"}); err == nil {
		t.Error("Create() with an unknown mode should violate the check constraint")
	}
}
