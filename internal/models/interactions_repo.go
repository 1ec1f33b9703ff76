package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// ---------------- ATTENDANCE ----------------

// AddAttendance inserts the going mark. A second mark for the same pair is
// rejected by the unique constraint and reported as a *ConflictError.
func (r *SQLRepo) AddAttendance(ctx context.Context, a *Attendance) error {
	if _, err := r.db.NewInsert().Model(a).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "attendance", Reason: "already going"}
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (r *SQLRepo) RemoveAttendance(ctx context.Context, eventID, userID string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*Attendance)(nil)).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SQLRepo) ListAttendees(ctx context.Context, eventID string) ([]Attendance, error) {
	var rows []Attendance
	err := r.db.NewSelect().
		Model(&rows).
		Where("event_id = ?", eventID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return rows, nil
}

func (r *SQLRepo) ViewerFacts(ctx context.Context, eventID, userID string) (ViewerFacts, error) {
	var facts ViewerFacts
	if userID == "" {
		return facts, nil
	}

	going, err := r.db.NewSelect().
		Model((*Attendance)(nil)).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Exists(ctx)
	if err != nil {
		return facts, fmt.Errorf("check attendance: %w", err)
	}
	facts.Going = going

	var rating Rating
	err = r.db.NewSelect().
		Model(&rating).
		Where("event_id = ? AND user_id = ?", eventID, userID).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		facts.RatingID = rating.ID
		facts.Rating = &rating.Value
	case !errors.Is(err, sql.ErrNoRows):
		return facts, fmt.Errorf("select rating: %w", err)
	}

	facts.ImageCount, err = r.db.NewSelect().
		Model((*EventImage)(nil)).
		Where("event_id = ? AND uploader_id = ?", eventID, userID).
		Count(ctx)
	if err != nil {
		return facts, fmt.Errorf("count images: %w", err)
	}
	return facts, nil
}

// ---------------- RATINGS ----------------

func (r *SQLRepo) CreateRating(ctx context.Context, rt *Rating) error {
	if _, err := r.db.NewInsert().Model(rt).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "rating", Reason: "already rated"}
		}
		return fmt.Errorf("insert rating: %w", err)
	}
	return nil
}

func (r *SQLRepo) GetRating(ctx context.Context, id string) (*Rating, error) {
	var rt Rating
	if err := r.db.NewSelect().Model(&rt).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select rating: %w", err)
	}
	return &rt, nil
}

func (r *SQLRepo) UpdateRating(ctx context.Context, rt *Rating) error {
	res, err := r.db.NewUpdate().
		Model(rt).
		Column("value", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepo) DeleteRating(ctx context.Context, id string) error {
	return r.deleteByID(ctx, (*Rating)(nil), id, "rating")
}

// RatingSummary computes the mean at read time. Average stays nil when the
// event has no ratings.
func (r *SQLRepo) RatingSummary(ctx context.Context, eventID string) (RatingSummary, error) {
	summary := RatingSummary{EventID: eventID}
	var avg sql.NullFloat64
	err := r.db.NewSelect().
		Model((*Rating)(nil)).
		ColumnExpr("COUNT(*)").
		ColumnExpr("AVG(value)").
		Where("event_id = ?", eventID).
		Scan(ctx, &summary.Count, &avg)
	if err != nil {
		return summary, fmt.Errorf("rating summary: %w", err)
	}
	if avg.Valid && summary.Count > 0 {
		summary.Average = &avg.Float64
	}
	return summary, nil
}

// ---------------- COMMENTS ----------------

func (r *SQLRepo) CreateComment(ctx context.Context, c *Comment) error {
	if _, err := r.db.NewInsert().Model(c).Exec(ctx); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (r *SQLRepo) GetComment(ctx context.Context, id string) (*Comment, error) {
	var c Comment
	if err := r.db.NewSelect().Model(&c).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select comment: %w", err)
	}
	return &c, nil
}

func (r *SQLRepo) DeleteComment(ctx context.Context, id string) error {
	return r.deleteByID(ctx, (*Comment)(nil), id, "comment")
}

func (r *SQLRepo) ListComments(ctx context.Context, eventID string, limit, offset int) ([]Comment, int, error) {
	var rows []Comment
	total, err := r.db.NewSelect().
		Model(&rows).
		Where("event_id = ?", eventID).
		OrderExpr("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list comments: %w", err)
	}
	return rows, total, nil
}

// ---------------- IMAGES ----------------

func (r *SQLRepo) CreateImage(ctx context.Context, img *EventImage) error {
	if _, err := r.db.NewInsert().Model(img).Exec(ctx); err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (r *SQLRepo) GetImage(ctx context.Context, id string) (*EventImage, error) {
	var img EventImage
	if err := r.db.NewSelect().Model(&img).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select image: %w", err)
	}
	return &img, nil
}

func (r *SQLRepo) DeleteImage(ctx context.Context, id string) error {
	return r.deleteByID(ctx, (*EventImage)(nil), id, "image")
}

func (r *SQLRepo) ListImages(ctx context.Context, eventID string) ([]EventImage, error) {
	var rows []EventImage
	err := r.db.NewSelect().
		Model(&rows).
		Where("event_id = ?", eventID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return rows, nil
}

// ---------------- FOLLOWS ----------------

func (r *SQLRepo) CreateFollow(ctx context.Context, f *Follow) error {
	if _, err := r.db.NewInsert().Model(f).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "follow", Reason: "already following"}
		}
		return fmt.Errorf("insert follow: %w", err)
	}
	return nil
}

func (r *SQLRepo) DeleteFollow(ctx context.Context, organizerID, userID string) (bool, error) {
	res, err := r.db.NewDelete().
		Model((*Follow)(nil)).
		Where("organizer_id = ? AND user_id = ?", organizerID, userID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete follow: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SQLRepo) ListFollowing(ctx context.Context, userID string) ([]Follow, error) {
	var rows []Follow
	err := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list following: %w", err)
	}
	return rows, nil
}

func (r *SQLRepo) CountFollowers(ctx context.Context, organizerID string) (int, error) {
	n, err := r.db.NewSelect().
		Model((*Follow)(nil)).
		Where("organizer_id = ?", organizerID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count followers: %w", err)
	}
	return n, nil
}

// ---------------- MODERATION ----------------

// PurgeUser removes the user's own rows, both sides of their follows, and
// every event they organize together with that event's children.
func (r *SQLRepo) PurgeUser(ctx context.Context, userID string) ([]string, error) {
	var refs []string
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var eventIDs []string
		if err := tx.NewSelect().
			Model((*Event)(nil)).
			Column("id").
			Where("organizer_id = ?", userID).
			Scan(ctx, &eventIDs); err != nil {
			return fmt.Errorf("collect organized events: %w", err)
		}

		imgQuery := tx.NewSelect().
			Model((*EventImage)(nil)).
			Column("ref").
			Where("uploader_id = ?", userID)
		if len(eventIDs) > 0 {
			imgQuery = imgQuery.WhereOr("event_id IN (?)", bun.In(eventIDs))
		}
		if err := imgQuery.Scan(ctx, &refs); err != nil {
			return fmt.Errorf("collect image refs: %w", err)
		}

		owned := []struct {
			model  interface{}
			column string
		}{
			{(*Attendance)(nil), "user_id"},
			{(*Rating)(nil), "user_id"},
			{(*Comment)(nil), "author_id"},
			{(*EventImage)(nil), "uploader_id"},
			{(*Follow)(nil), "user_id"},
			{(*Follow)(nil), "organizer_id"},
		}
		for _, o := range owned {
			if _, err := tx.NewDelete().Model(o.model).Where("? = ?", bun.Ident(o.column), userID).Exec(ctx); err != nil {
				return fmt.Errorf("purge %s rows: %w", o.column, err)
			}
		}

		if len(eventIDs) == 0 {
			return nil
		}
		for _, model := range childTables {
			if _, err := tx.NewDelete().Model(model).Where("event_id IN (?)", bun.In(eventIDs)).Exec(ctx); err != nil {
				return fmt.Errorf("purge event children: %w", err)
			}
		}
		if _, err := tx.NewDelete().Model((*Event)(nil)).Where("id IN (?)", bun.In(eventIDs)).Exec(ctx); err != nil {
			return fmt.Errorf("purge events: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func (r *SQLRepo) deleteByID(ctx context.Context, model interface{}, id, resource string) error {
	res, err := r.db.NewDelete().Model(model).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", resource, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
