// Package assessment persists fluency assessments and their reports.
package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
	"github.com/nikhilbhutani/fluencycoach/internal/models"
)

var ErrNotFound = errors.New("assessment not found")

const columns = `id, user_id, status, title, level, category, audio_digest, storage_path, filename,
	confidence_score, overall_rating, report, error, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Create inserts a. A zero ID is replaced with a new one and an empty
// status with pending. CreatedAt and UpdatedAt are filled from the database.
func (s *Store) Create(ctx context.Context, a *models.Assessment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = models.AssessmentPending
	}

	report, err := encodeReport(a.Report)
	if err != nil {
		return err
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO assessments (id, user_id, status, title, level, category, audio_digest, storage_path, filename,
		                          confidence_score, overall_rating, report, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING created_at, updated_at`,
		a.ID, a.UserID, a.Status, a.Title, a.Level, a.Category, a.AudioDigest, a.StoragePath, a.Filename,
		a.ConfidenceScore, a.OverallRating, report, a.Error,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

// Get returns the assessment with id owned by userID (nil for anonymous).
func (s *Store) Get(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*models.Assessment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+columns+` FROM assessments WHERE id = $1 AND user_id IS NOT DISTINCT FROM $2`,
		id, userID,
	)
	a, err := scanAssessment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get assessment: %w", err)
	}
	return a, nil
}

// Lookup returns the assessment with id regardless of owner. Workers use it.
func (s *Store) Lookup(ctx context.Context, id uuid.UUID) (*models.Assessment, error) {
	a, err := scanAssessment(s.db.QueryRow(ctx, `SELECT `+columns+` FROM assessments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup assessment: %w", err)
	}
	return a, nil
}

func (s *Store) List(ctx context.Context, userID *uuid.UUID, limit, offset int) ([]models.Assessment, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+columns+` FROM assessments
		 WHERE user_id IS NOT DISTINCT FROM $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	out := []models.Assessment{}
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	return s.update(ctx,
		`UPDATE assessments SET status = $2, error = '', updated_at = now() WHERE id = $1`,
		id, models.AssessmentProcessing)
}

// Complete stores the report and marks the assessment completed.
func (s *Store) Complete(ctx context.Context, id uuid.UUID, r *fluency.Report) error {
	report, err := encodeReport(r)
	if err != nil {
		return err
	}
	return s.update(ctx,
		`UPDATE assessments
		 SET status = $2, report = $3, confidence_score = $4, overall_rating = $5, error = '', updated_at = now()
		 WHERE id = $1`,
		id, models.AssessmentCompleted, report, r.ConfidenceScore, r.OverallRating)
}

func (s *Store) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	return s.update(ctx,
		`UPDATE assessments SET status = $2, error = $3, updated_at = now() WHERE id = $1`,
		id, models.AssessmentFailed, reason)
}

func (s *Store) update(ctx context.Context, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update assessment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAssessment(row pgx.Row) (*models.Assessment, error) {
	var (
		a      models.Assessment
		report []byte
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Status, &a.Title, &a.Level, &a.Category, &a.AudioDigest,
		&a.StoragePath, &a.Filename, &a.ConfidenceScore, &a.OverallRating, &report, &a.Error,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(report) > 0 {
		a.Report = &fluency.Report{}
		if err := json.Unmarshal(report, a.Report); err != nil {
			return nil, fmt.Errorf("decode report: %w", err)
		}
	}
	return &a, nil
}

func encodeReport(r *fluency.Report) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return b, nil
}
