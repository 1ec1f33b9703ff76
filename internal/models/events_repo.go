package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// childTables hold rows that reference an event by event_id.
var childTables = []interface{}{
	(*Attendance)(nil),
	(*Rating)(nil),
	(*Comment)(nil),
	(*EventImage)(nil),
}

func (r *SQLRepo) CreateEvent(ctx context.Context, e *Event) error {
	if _, err := r.db.NewInsert().Model(e).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "event", Reason: "already exists"}
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (r *SQLRepo) GetEvent(ctx context.Context, id string) (*Event, error) {
	var e Event
	err := r.db.NewSelect().
		Model(&e).
		Where("e.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select event: %w", err)
	}
	return &e, nil
}

func (r *SQLRepo) UpdateEvent(ctx context.Context, e *Event) error {
	res, err := r.db.NewUpdate().
		Model(e).
		ExcludeColumn("id", "organizer_id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes children explicitly inside the transaction, so the
// cascade holds even where foreign keys are not enforced.
func (r *SQLRepo) DeleteEvent(ctx context.Context, id string) ([]string, error) {
	var refs []string
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().
			Model((*EventImage)(nil)).
			Column("ref").
			Where("event_id = ?", id).
			Scan(ctx, &refs); err != nil {
			return fmt.Errorf("collect image refs: %w", err)
		}

		for _, model := range childTables {
			if _, err := tx.NewDelete().Model(model).Where("event_id = ?", id).Exec(ctx); err != nil {
				return fmt.Errorf("delete event children: %w", err)
			}
		}

		res, err := tx.NewDelete().Model((*Event)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *SQLRepo) GetEventWithStats(ctx context.Context, id string) (*EventWithStats, error) {
	var row EventWithStats
	err := r.statsQuery(&row).
		Where("e.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select event with stats: %w", err)
	}
	return &row, nil
}

// ListEvents returns matching events with their counters in start order.
// Distance ordering is applied by the caller.
func (r *SQLRepo) ListEvents(ctx context.Context, q EventQuery) ([]EventWithStats, error) {
	var rows []EventWithStats
	query := r.statsQuery(&rows)

	switch {
	case q.IncludeAll:
	case q.VisibleTo != "":
		query = query.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where("e.status = ?", StatusPublished).
				WhereOr("e.organizer_id = ?", q.VisibleTo)
		})
	default:
		query = query.Where("e.status = ?", StatusPublished)
	}

	if q.Status != "" {
		query = query.Where("e.status = ?", q.Status)
	}
	if q.OrganizerID != "" {
		query = query.Where("e.organizer_id = ?", q.OrganizerID)
	}
	if region := strings.TrimSpace(q.Region); region != "" {
		query = query.Where("LOWER(e.region) = ?", strings.ToLower(region))
	}
	if city := strings.TrimSpace(q.City); city != "" {
		query = query.Where("LOWER(e.city) = ?", strings.ToLower(city))
	}
	if q.Genre != "" {
		query = query.Where("e.genre = ?", q.Genre)
	}
	if text := strings.TrimSpace(q.Text); text != "" {
		pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
		query = query.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.Where(`LOWER(e.title) LIKE ? ESCAPE '\'`, pattern).
				WhereOr(`LOWER(e.description) LIKE ? ESCAPE '\'`, pattern)
		})
	}

	if err := query.OrderExpr("e.starts_at ASC, e.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return rows, nil
}

// statsQuery selects events joined with pre-aggregated child counts. Each
// child table is grouped once, so the cost does not grow per row.
func (r *SQLRepo) statsQuery(model interface{}) *bun.SelectQuery {
	going := r.db.NewSelect().
		TableExpr("attendances").
		ColumnExpr("event_id").
		ColumnExpr("COUNT(*) AS going_count").
		Group("event_id")
	comments := r.db.NewSelect().
		TableExpr("comments").
		ColumnExpr("event_id").
		ColumnExpr("COUNT(*) AS comment_count").
		Group("event_id")
	images := r.db.NewSelect().
		TableExpr("event_images").
		ColumnExpr("event_id").
		ColumnExpr("COUNT(*) AS image_count").
		Group("event_id")
	ratings := r.db.NewSelect().
		TableExpr("ratings").
		ColumnExpr("event_id").
		ColumnExpr("COUNT(*) AS rating_count").
		ColumnExpr("AVG(value) AS average_rating").
		Group("event_id")

	return r.db.NewSelect().
		Model(model).
		ColumnExpr("e.*").
		ColumnExpr("COALESCE(ga.going_count, 0) AS going_count").
		ColumnExpr("COALESCE(ca.comment_count, 0) AS comment_count").
		ColumnExpr("COALESCE(ia.image_count, 0) AS image_count").
		ColumnExpr("COALESCE(ra.rating_count, 0) AS rating_count").
		ColumnExpr("ra.average_rating AS average_rating").
		Join("LEFT JOIN (?) AS ga ON ga.event_id = e.id", going).
		Join("LEFT JOIN (?) AS ca ON ca.event_id = e.id", comments).
		Join("LEFT JOIN (?) AS ia ON ia.event_id = e.id", images).
		Join("LEFT JOIN (?) AS ra ON ra.event_id = e.id", ratings)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
