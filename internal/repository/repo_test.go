package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := OpenDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewRepo(db)
}

func TestSettingsDefaults(t *testing.T) {
	ctx := context.Background()
	r := openTestRepo(t)

	if _, err := r.GetSettings(ctx, "g1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("GetSettings on new guild = %v", err)
	}
	vol, err := r.DefaultVolume(ctx, "g1")
	if err != nil || vol != 100 {
		t.Fatalf("DefaultVolume = %d, %v", vol, err)
	}

	s, err := r.UpsertSettings(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if s.DefaultVolume != 100 || !s.StopOnEnd {
		t.Fatalf("defaults = %+v", s)
	}
}

func TestWithDefaults(t *testing.T) {
	ctx := context.Background()
	r := openTestRepo(t).WithDefaults(60, false)

	vol, err := r.DefaultVolume(ctx, "g1")
	if err != nil || vol != 60 {
		t.Fatalf("DefaultVolume = %d, %v", vol, err)
	}
	s, err := r.UpsertSettings(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if s.DefaultVolume != 60 || s.StopOnEnd {
		t.Fatalf("seeded settings = %+v", s)
	}
}

func TestSetDefaultVolume(t *testing.T) {
	ctx := context.Background()
	r := openTestRepo(t)

	if err := r.SetDefaultVolume(ctx, "g1", 40); err != nil {
		t.Fatal(err)
	}
	vol, err := r.DefaultVolume(ctx, "g1")
	if err != nil || vol != 40 {
		t.Fatalf("DefaultVolume = %d, %v", vol, err)
	}
	if err := r.SetDefaultVolume(ctx, "g1", 250); err == nil {
		t.Fatalf("out of range volume stored")
	}

	s, _ := r.GetSettings(ctx, "g1")
	s.StopOnEnd = false
	if err := r.UpdateSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	if s, _ = r.GetSettings(ctx, "g1"); s.StopOnEnd || s.DefaultVolume != 40 {
		t.Fatalf("settings = %+v", s)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	for range 2 {
		db, err := OpenDB(dir)
		if err != nil {
			t.Fatalf("OpenDB: %v", err)
		}
		_ = db.Close()
	}
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	fav := NewFavoritesService(openTestRepo(t))

	if err := fav.Create(ctx, "g1", "u1", "  ", "x"); !errors.Is(err, ErrEmptyFavorite) {
		t.Fatalf("empty name accepted: %v", err)
	}
	if err := fav.Create(ctx, "g1", "u1", " lofi ", " lofi hip hop "); err != nil {
		t.Fatal(err)
	}
	if err := fav.Create(ctx, "g1", "u2", "lofi", "other"); !errors.Is(err, ErrFavoriteExists) {
		t.Fatalf("duplicate name accepted")
	}
	_ = fav.Create(ctx, "g1", "u1", "anime", "op songs")
	_ = fav.Create(ctx, "g2", "u1", "zzz", "elsewhere")

	f, err := fav.Use(ctx, "g1", "lofi")
	if err != nil || f.Query != "lofi hip hop" || f.Author != "u1" {
		t.Fatalf("Use = %+v, %v", f, err)
	}

	list, err := fav.List(ctx, "g1")
	if err != nil || len(list) != 2 || list[0].Name != "anime" {
		t.Fatalf("List = %+v, %v", list, err)
	}

	n, err := fav.Remove(ctx, "g1", "lofi ")
	if err != nil || n != 1 {
		t.Fatalf("Remove = %d, %v", n, err)
	}
	if _, err := fav.Use(ctx, "g1", "lofi"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("removed favorite still found: %v", err)
	}
}
