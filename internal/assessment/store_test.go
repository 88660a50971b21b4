package assessment_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/fluencycoach/internal/assessment"
	"github.com/nikhilbhutani/fluencycoach/internal/database"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/models"
)

// testDSN skips the test unless FLUENCY_TEST_POSTGRES_DSN is set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("FLUENCY_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FLUENCY_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *assessment.Store {
	t.Helper()
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, stmt := range []string{
		"DROP TABLE IF EXISTS assessments",
		"DROP TABLE IF EXISTS schema_migrations",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("reset schema: %v", err)
		}
	}
	if err := database.RunMigrations(ctx, pool, database.Migrations()); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	return assessment.NewStore(pool)
}

func TestStore_Lifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := uuid.New()

	a := &models.Assessment{UserID: &user, Title: "Describe your hometown", Filename: "take1.mp3"}
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == uuid.Nil || a.Status != models.AssessmentPending || a.CreatedAt.IsZero() {
		t.Fatalf("Create did not fill defaults: %+v", a)
	}

	if err := store.MarkProcessing(ctx, a.ID); err != nil {
		t.Fatalf("MarkProcessing: %v", err)
	}

	report := &fluency.Report{Text: "hello there", ConfidenceScore: 81.5, OverallRating: fluency.RatingGood, Recommendations: []string{"Keep going"}}
	if err := store.Complete(ctx, a.ID, report); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := store.Get(ctx, a.ID, &user)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != models.AssessmentCompleted {
		t.Errorf("Status = %q", got.Status)
	}
	if got.Report == nil || got.Report.Text != "hello there" {
		t.Errorf("Report = %+v", got.Report)
	}
	if got.ConfidenceScore == nil || *got.ConfidenceScore != 81.5 || got.OverallRating != fluency.RatingGood {
		t.Errorf("summary = %v %q", got.ConfidenceScore, got.OverallRating)
	}

	other := uuid.New()
	if _, err := store.Get(ctx, a.ID, &other); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("Get as other user: err = %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, a.ID, nil); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("Get anonymously: err = %v, want ErrNotFound", err)
	}
}

func TestStore_ListAndFail(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if err := store.Create(ctx, &models.Assessment{Title: title}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := store.List(ctx, nil, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d rows, want 2", len(list))
	}

	if err := store.Fail(ctx, list[0].ID, "transcription failed"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	got, err := store.Lookup(ctx, list[0].ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Status != models.AssessmentFailed || got.Error != "transcription failed" {
		t.Errorf("after Fail: %+v", got)
	}

	if err := store.Fail(ctx, uuid.New(), "x"); !errors.Is(err, assessment.ErrNotFound) {
		t.Errorf("Fail unknown id: err = %v, want ErrNotFound", err)
	}
}
