package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/fluencycoach/internal/fluency"
)

type Assessment struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          *uuid.UUID      `json:"user_id,omitempty" db:"user_id"`
	Status          string          `json:"status" db:"status"`
	Title           string          `json:"title,omitempty" db:"title"`
	Level           string          `json:"level,omitempty" db:"level"`
	Category        string          `json:"category,omitempty" db:"category"`
	AudioDigest     string          `json:"audio_digest,omitempty" db:"audio_digest"`
	StoragePath     string          `json:"-" db:"storage_path"`
	Filename        string          `json:"filename,omitempty" db:"filename"`
	ConfidenceScore *float64        `json:"confidence_score,omitempty" db:"confidence_score"`
	OverallRating   string          `json:"overall_rating,omitempty" db:"overall_rating"`
	Report          *fluency.Report `json:"report,omitempty" db:"report"`
	Error           string          `json:"error,omitempty" db:"error"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

const (
	AssessmentPending    = "pending"
	AssessmentProcessing = "processing"
	AssessmentCompleted  = "completed"
	AssessmentFailed     = "failed"
)
