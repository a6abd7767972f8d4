package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sakif/game-gateway/internal/model"
)

// newTestDB returns an in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleAccounts() []model.Account {
	created := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	image := "http://img/1.png"
	return []model.Account{
		{
			ID:           1,
			Name:         "Ana",
			Email:        "ana@example.com",
			PasswordHash: "hash-a",
			PasswordSalt: "salt-a",
			Categories:   []string{"rpg", "fps"},
			CreatedAt:    created,
			Ratings: []model.Rating{
				{GameID: 30, Title: "Third", Score: 10, RatedAt: created.Add(time.Hour)},
				{GameID: 10, Title: "First", Image: &image, Score: 95, RatedAt: created.Add(2 * time.Hour)},
			},
		},
		{
			ID:         2,
			Name:       "Bruno",
			Email:      "bruno@example.com",
			Categories: []string{"strategy"},
			CreatedAt:  created.Add(24 * time.Hour),
			Ratings:    []model.Rating{},
		},
	}
}

// =========================================================================
// Load / Save TESTS
// =========================================================================

func TestLoad_EmptyDatabase(t *testing.T) {
	db := newTestDB(t)

	got, err := db.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Load() returned %d accounts, want 0", len(got))
	}
}

func TestSaveThenLoad(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Save(ctx, sampleAccounts()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Load() returned %d accounts, want 2", len(got))
	}

	ana := got[0]
	if ana.Email != "ana@example.com" || ana.PasswordSalt != "salt-a" {
		t.Errorf("account fields did not round-trip: %+v", ana)
	}
	if len(ana.Categories) != 2 || ana.Categories[1] != "fps" {
		t.Errorf("Categories = %v, want [rpg fps]", ana.Categories)
	}
	if len(ana.Ratings) != 2 {
		t.Fatalf("len(Ratings) = %d, want 2", len(ana.Ratings))
	}
	// Submission order is preserved via the position column.
	if ana.Ratings[0].GameID != 30 || ana.Ratings[1].GameID != 10 {
		t.Errorf("rating order = %d, %d; want 30, 10", ana.Ratings[0].GameID, ana.Ratings[1].GameID)
	}
	if ana.Ratings[0].Image != nil {
		t.Error("NULL image should load as nil")
	}
	if ana.Ratings[1].Image == nil || *ana.Ratings[1].Image != "http://img/1.png" {
		t.Errorf("Image = %v, want http://img/1.png", ana.Ratings[1].Image)
	}
	if got[1].Ratings == nil {
		t.Error("account without ratings should load an empty slice")
	}
}

func TestSave_IsFullRewrite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Save(ctx, sampleAccounts()); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	if err := db.Save(ctx, sampleAccounts()[:1]); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("Load() returned %d accounts, want 1 after rewrite", len(got))
	}
}

func TestSave_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := db.Save(ctx, sampleAccounts()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	db.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Load() after reopen returned %d accounts, want 2", len(got))
	}
}

func TestSave_DuplicateEmailRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Save(ctx, sampleAccounts()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	bad := sampleAccounts()
	bad[1].Email = bad[0].Email
	if err := db.Save(ctx, bad); err == nil {
		t.Fatal("Save() should fail on duplicate email")
	}

	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != 2 || got[1].Email != "bruno@example.com" {
		t.Errorf("failed Save() must leave the previous snapshot, got %+v", got)
	}
}
