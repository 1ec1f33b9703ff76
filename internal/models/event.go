package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/joshua-takyi/eventradar/internal/policy"
)

type EventStatus string

const (
	StatusDraft     EventStatus = "draft"
	StatusPublished EventStatus = "published"
	StatusCancelled EventStatus = "cancelled"
)

type Genre string

// Genres is the closed genre set.
var Genres = []Genre{
	"techno", "house", "hiphop", "rnb", "pop", "rock", "latin", "dnb", "jazz", "commercial", "other",
}

func (g Genre) Valid() bool {
	for _, known := range Genres {
		if g == known {
			return true
		}
	}
	return false
}

type PriceType string

const (
	PriceFree PriceType = "free"
	PricePaid PriceType = "paid"
)

type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          string      `bun:"id,pk" json:"id"`
	OrganizerID string      `bun:"organizer_id,notnull" json:"organizer_id" validate:"required"`
	Title       string      `bun:"title,notnull" json:"title" validate:"required,max=200"`
	Description string      `bun:"description,notnull" json:"description" validate:"max=5000"`
	Lineup      string      `bun:"lineup,notnull" json:"lineup" validate:"max=2000"`
	Region      string      `bun:"region,notnull" json:"region" validate:"max=100"`
	City        string      `bun:"city,notnull" json:"city" validate:"max=100"`
	Address     string      `bun:"address,notnull" json:"address" validate:"max=300"`
	Latitude    *float64    `bun:"latitude" json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude   *float64    `bun:"longitude" json:"longitude,omitempty" validate:"omitempty,longitude"`
	StartsAt    time.Time   `bun:"starts_at,notnull" json:"starts_at" validate:"required"`
	EndsAt      time.Time   `bun:"ends_at,notnull" json:"ends_at" validate:"required,gtfield=StartsAt"`
	Genre       Genre       `bun:"genre,notnull" json:"genre" validate:"required"`
	AgeLabel    string      `bun:"age_label,notnull" json:"age_label" validate:"max=20"`
	PriceType   PriceType   `bun:"price_type,notnull" json:"price_type" validate:"required,oneof=free paid"`
	Price       *float64    `bun:"price" json:"price,omitempty"`
	TicketURL   string      `bun:"ticket_url,notnull" json:"ticket_url" validate:"omitempty,url"`
	Status      EventStatus `bun:"status,notnull" json:"status" validate:"required,oneof=draft published cancelled"`
	CreatedAt   time.Time   `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time   `bun:"updated_at,notnull" json:"updated_at"`
}

// Normalize trims free text and moves timestamps to UTC.
func (e *Event) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.Description = strings.TrimSpace(e.Description)
	e.Lineup = strings.TrimSpace(e.Lineup)
	e.Region = strings.TrimSpace(e.Region)
	e.City = strings.TrimSpace(e.City)
	e.Address = strings.TrimSpace(e.Address)
	e.AgeLabel = strings.TrimSpace(e.AgeLabel)
	e.TicketURL = strings.TrimSpace(e.TicketURL)
	e.Genre = Genre(strings.ToLower(strings.TrimSpace(string(e.Genre))))
	e.StartsAt = e.StartsAt.UTC()
	e.EndsAt = e.EndsAt.UTC()
	if e.PriceType == PriceFree {
		e.Price = nil
	}
}

// Validate checks the record invariants. It must pass before a row is
// written, so ranking and window logic only ever see well-formed events.
func (e *Event) Validate() error {
	if err := Validate.Struct(e); err != nil {
		return FromValidator(err)
	}
	if !e.Genre.Valid() {
		return NewValidationError("genre", "unknown genre %q", e.Genre)
	}
	if (e.Latitude == nil) != (e.Longitude == nil) {
		return NewValidationError("latitude", "latitude and longitude must be set together")
	}
	switch e.PriceType {
	case PricePaid:
		if e.Price == nil || *e.Price <= 0 {
			return NewValidationError("price", "is required and must be positive for paid events")
		}
	case PriceFree:
		if e.Price != nil {
			return NewValidationError("price", "must be empty for free events")
		}
	}
	return nil
}

// Window is the event's interaction interval.
func (e *Event) Window() policy.Window {
	return policy.Window{Start: e.StartsAt, End: e.EndsAt}
}

// OwnedBy reports whether userID organizes this event.
func (e *Event) OwnedBy(userID string) bool {
	return userID != "" && e.OrganizerID == userID
}

// EventStats are the grouped per-event counters.
type EventStats struct {
	GoingCount    int      `bun:"going_count,scanonly" json:"going_count"`
	CommentCount  int      `bun:"comment_count,scanonly" json:"comment_count"`
	ImageCount    int      `bun:"image_count,scanonly" json:"image_count"`
	RatingCount   int      `bun:"rating_count,scanonly" json:"rating_count"`
	AverageRating *float64 `bun:"average_rating,scanonly" json:"average_rating"`
}

// EventWithStats is an event row joined with its aggregate counters.
type EventWithStats struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	Event `bun:",extend"`
	EventStats
}

// EventPatch is a partial update. Nil fields are left unchanged.
type EventPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Lineup      *string    `json:"lineup"`
	Region      *string    `json:"region"`
	City        *string    `json:"city"`
	Address     *string    `json:"address"`
	Latitude    *float64   `json:"latitude"`
	Longitude   *float64   `json:"longitude"`
	ClearCoords bool       `json:"clear_coordinates"`
	StartsAt    *time.Time `json:"starts_at"`
	EndsAt      *time.Time `json:"ends_at"`
	Genre       *Genre     `json:"genre"`
	AgeLabel    *string    `json:"age_label"`
	PriceType   *PriceType `json:"price_type"`
	Price       *float64   `json:"price"`
	TicketURL   *string    `json:"ticket_url"`
}

// Apply writes the set fields onto e.
func (p EventPatch) Apply(e *Event) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&e.Title, p.Title)
	set(&e.Description, p.Description)
	set(&e.Lineup, p.Lineup)
	set(&e.Region, p.Region)
	set(&e.City, p.City)
	set(&e.Address, p.Address)
	set(&e.AgeLabel, p.AgeLabel)
	set(&e.TicketURL, p.TicketURL)
	if p.ClearCoords {
		e.Latitude, e.Longitude = nil, nil
	}
	if p.Latitude != nil {
		e.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		e.Longitude = p.Longitude
	}
	if p.StartsAt != nil {
		e.StartsAt = *p.StartsAt
	}
	if p.EndsAt != nil {
		e.EndsAt = *p.EndsAt
	}
	if p.Genre != nil {
		e.Genre = *p.Genre
	}
	if p.PriceType != nil {
		e.PriceType = *p.PriceType
	}
	if p.Price != nil {
		e.Price = p.Price
	}
}
