// Package database creates the relational schema.
package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/joshua-takyi/eventradar/internal/models"
)

type table struct {
	model       interface{}
	foreignKeys []string
}

var tables = []table{
	{model: (*models.Event)(nil)},
	{
		model:       (*models.Attendance)(nil),
		foreignKeys: []string{`("event_id") REFERENCES "events" ("id") ON DELETE CASCADE`},
	},
	{
		model:       (*models.Rating)(nil),
		foreignKeys: []string{`("event_id") REFERENCES "events" ("id") ON DELETE CASCADE`},
	},
	{
		model:       (*models.Comment)(nil),
		foreignKeys: []string{`("event_id") REFERENCES "events" ("id") ON DELETE CASCADE`},
	},
	{
		model:       (*models.EventImage)(nil),
		foreignKeys: []string{`("event_id") REFERENCES "events" ("id") ON DELETE CASCADE`},
	},
	{model: (*models.Follow)(nil)},
}

type index struct {
	model   interface{}
	name    string
	columns []string
}

var indexes = []index{
	{(*models.Event)(nil), "events_status_starts_at_idx", []string{"status", "starts_at"}},
	{(*models.Event)(nil), "events_organizer_idx", []string{"organizer_id"}},
	{(*models.Attendance)(nil), "attendances_user_idx", []string{"user_id"}},
	{(*models.Rating)(nil), "ratings_user_idx", []string{"user_id"}},
	{(*models.Comment)(nil), "comments_event_created_idx", []string{"event_id", "created_at"}},
	{(*models.Comment)(nil), "comments_author_idx", []string{"author_id"}},
	{(*models.EventImage)(nil), "event_images_event_uploader_idx", []string{"event_id", "uploader_id"}},
	{(*models.Follow)(nil), "follows_user_idx", []string{"user_id"}},
}

// Migrate creates tables, unique constraints, foreign keys and indexes if
// they do not exist yet. It is safe to run on every start.
func Migrate(ctx context.Context, db *bun.DB) error {
	for _, t := range tables {
		q := db.NewCreateTable().Model(t.model).IfNotExists()
		for _, fk := range t.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", t.model, err)
		}
	}

	for _, ix := range indexes {
		if _, err := db.NewCreateIndex().
			Model(ix.model).
			Index(ix.name).
			Column(ix.columns...).
			IfNotExists().
			Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", ix.name, err)
		}
	}
	return nil
}
