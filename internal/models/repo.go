package models

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/supabase-community/supabase-go"
	"github.com/uptrace/bun"
	"go.mongodb.org/mongo-driver/mongo"
)

var Validate = validator.New()

// EventQuery selects events for the feed and organizer pages. Visibility is
// part of the query: rows a caller may not see are never loaded.
type EventQuery struct {
	// IncludeAll lifts the status restriction (admin).
	IncludeAll bool
	// VisibleTo additionally admits this organizer's non-published events.
	VisibleTo   string
	OrganizerID string
	Region      string
	City        string
	Genre       Genre
	Text        string
	Status      EventStatus
}

type EventRepo interface {
	CreateEvent(ctx context.Context, e *Event) error
	GetEvent(ctx context.Context, id string) (*Event, error)
	GetEventWithStats(ctx context.Context, id string) (*EventWithStats, error)
	UpdateEvent(ctx context.Context, e *Event) error
	// DeleteEvent removes the event and its children, returning the media
	// references of the deleted images.
	DeleteEvent(ctx context.Context, id string) ([]string, error)
	ListEvents(ctx context.Context, q EventQuery) ([]EventWithStats, error)
}

type AttendanceRepo interface {
	AddAttendance(ctx context.Context, a *Attendance) error
	RemoveAttendance(ctx context.Context, eventID, userID string) (bool, error)
	ListAttendees(ctx context.Context, eventID string) ([]Attendance, error)
	ViewerFacts(ctx context.Context, eventID, userID string) (ViewerFacts, error)
}

type RatingRepo interface {
	CreateRating(ctx context.Context, r *Rating) error
	GetRating(ctx context.Context, id string) (*Rating, error)
	UpdateRating(ctx context.Context, r *Rating) error
	DeleteRating(ctx context.Context, id string) error
	RatingSummary(ctx context.Context, eventID string) (RatingSummary, error)
}

type CommentRepo interface {
	CreateComment(ctx context.Context, c *Comment) error
	GetComment(ctx context.Context, id string) (*Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListComments(ctx context.Context, eventID string, limit, offset int) ([]Comment, int, error)
}

type ImageRepo interface {
	CreateImage(ctx context.Context, img *EventImage) error
	GetImage(ctx context.Context, id string) (*EventImage, error)
	DeleteImage(ctx context.Context, id string) error
	ListImages(ctx context.Context, eventID string) ([]EventImage, error)
}

type FollowRepo interface {
	CreateFollow(ctx context.Context, f *Follow) error
	DeleteFollow(ctx context.Context, organizerID, userID string) (bool, error)
	ListFollowing(ctx context.Context, userID string) ([]Follow, error)
	CountFollowers(ctx context.Context, organizerID string) (int, error)
}

type ModerationRepo interface {
	// PurgeUser deletes every row referencing userID and returns the media
	// references of deleted images.
	PurgeUser(ctx context.Context, userID string) ([]string, error)
}

// ProfileRepo reads and removes app profiles.
type ProfileRepo interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	DeleteUser(ctx context.Context, userID string) error
}

// SQLRepo is the relational store for events and everything hanging off them.
type SQLRepo struct {
	db *bun.DB
}

func NewSQLRepo(db *bun.DB) *SQLRepo {
	return &SQLRepo{db: db}
}

func (r *SQLRepo) DB() *bun.DB { return r.db }

type SupabaseRepo struct {
	supabaseClient *supabase.Client
	serviceKey     string
}

func SupabaseNewRepo(supabaseClient *supabase.Client, serviceKey string) *SupabaseRepo {
	return &SupabaseRepo{
		supabaseClient: supabaseClient,
		serviceKey:     serviceKey,
	}
}

type MongodbRepo struct {
	mongodbClient *mongo.Client
	dbName        string
}

func MongodbNewRepo(mongodbClient *mongo.Client, dbName string) *MongodbRepo {
	if dbName == "" {
		dbName = DefaultMongoDB
	}
	return &MongodbRepo{
		mongodbClient: mongodbClient,
		dbName:        dbName,
	}
}
