package models

import (
	"math"
	"time"

	"github.com/uptrace/bun"
)

const (
	MinRating = 1.0
	MaxRating = 5.0
)

// Attendance is a user's "going" mark on an event. Unique per (event, user).
type Attendance struct {
	bun.BaseModel `bun:"table:attendances,alias:a"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id,notnull,unique:attendance_event_user" json:"event_id"`
	UserID    string    `bun:"user_id,notnull,unique:attendance_event_user" json:"user_id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Rating is unique per (event, user).
type Rating struct {
	bun.BaseModel `bun:"table:ratings,alias:r"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id,notnull,unique:rating_event_user" json:"event_id"`
	UserID    string    `bun:"user_id,notnull,unique:rating_event_user" json:"user_id"`
	Value     float64   `bun:"value,notnull" json:"value"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// ValidateRatingValue accepts values in [1.0, 5.0] with at most one decimal.
func ValidateRatingValue(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < MinRating || v > MaxRating {
		return NewValidationError("value", "must be between %.1f and %.1f", MinRating, MaxRating)
	}
	tenths := v * 10
	if math.Abs(tenths-math.Round(tenths)) > 1e-9 {
		return NewValidationError("value", "must have at most one decimal place")
	}
	return nil
}

// RoundRating snaps an accepted value to its one-decimal representation.
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

// RatingSummary is the read-time aggregate for an event. Average is nil when
// there are no ratings.
type RatingSummary struct {
	EventID string   `json:"event_id"`
	Count   int      `json:"count"`
	Average *float64 `json:"average"`
}

type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:c"`

	ID        string    `bun:"id,pk" json:"id"`
	EventID   string    `bun:"event_id,notnull" json:"event_id"`
	AuthorID  string    `bun:"author_id,notnull" json:"author_id"`
	Body      string    `bun:"body,notnull" json:"body"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}

// EventImage is a photo an attendee uploaded after an event. Ref is the
// stored media reference, a bucket path or an absolute URL.
type EventImage struct {
	bun.BaseModel `bun:"table:event_images,alias:i"`

	ID         string    `bun:"id,pk" json:"id"`
	EventID    string    `bun:"event_id,notnull" json:"event_id"`
	UploaderID string    `bun:"uploader_id,notnull" json:"uploader_id"`
	Ref        string    `bun:"ref,notnull" json:"-"`
	URL        string    `bun:"-" json:"url"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// Follow is a user following an organizer. Unique per pair.
type Follow struct {
	bun.BaseModel `bun:"table:follows,alias:f"`

	ID          string    `bun:"id,pk" json:"id"`
	OrganizerID string    `bun:"organizer_id,notnull,unique:follow_organizer_user" json:"organizer_id"`
	UserID      string    `bun:"user_id,notnull,unique:follow_organizer_user" json:"user_id"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

// ViewerFacts are what the interaction policy needs to know about a user's
// relation to one event.
type ViewerFacts struct {
	Going      bool
	RatingID   string
	Rating     *float64
	ImageCount int
}
