package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/metrics"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/policy"
)

// RatingService records one rating per (event, user). The policy check runs
// first, but the unique constraint in storage is what settles races.
type RatingService struct {
	events     models.EventRepo
	attendance models.AttendanceRepo
	ratings    models.RatingRepo
	policy     policy.Policy
	clock      clock.Clock
	logger     *slog.Logger
}

func NewRatingService(events models.EventRepo, attendance models.AttendanceRepo, ratings models.RatingRepo, p policy.Policy, clk clock.Clock, logger *slog.Logger) *RatingService {
	return &RatingService{
		events:     events,
		attendance: attendance,
		ratings:    ratings,
		policy:     p,
		clock:      clk,
		logger:     logger,
	}
}

func (s *RatingService) Submit(ctx context.Context, viewer models.Viewer, eventID string, value float64) (*models.Rating, error) {
	if err := models.ValidateRatingValue(value); err != nil {
		return nil, err
	}
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	e, err := loadVisible(ctx, s.events, viewer, eventID)
	if err != nil {
		return nil, err
	}
	facts, err := s.attendance.ViewerFacts(ctx, eventID, viewer.UserID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if err := gate(s.policy, policy.ActionRate, viewer, e, facts, now); err != nil {
		return nil, err
	}

	r := &models.Rating{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    viewer.UserID,
		Value:     models.RoundRating(value),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := s.ratings.CreateRating(ctx, r); err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			metrics.RecordDenial(string(policy.ActionRate), string(policy.ReasonAlreadyRated))
			return nil, &policy.DeniedError{
				Action: policy.ActionRate,
				Reason: policy.ReasonAlreadyRated,
				State:  s.policy.StateAt(e.Window(), now),
			}
		}
		return nil, err
	}
	return r, nil
}

// Update changes the value of an existing rating. Owners may only do so
// while the interaction window is open; admins may always correct.
func (s *RatingService) Update(ctx context.Context, viewer models.Viewer, ratingID string, value float64) (*models.Rating, error) {
	if err := models.ValidateRatingValue(value); err != nil {
		return nil, err
	}
	r, e, err := s.loadOwned(ctx, viewer, ratingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if !viewer.IsAdmin() {
		switch st := s.policy.StateAt(e.Window(), now); st {
		case policy.StateEndedInteractable:
		case policy.StateEndedLocked:
			return nil, &policy.DeniedError{Action: policy.ActionRate, Reason: policy.ReasonWindowClosed, State: st}
		default:
			return nil, &policy.DeniedError{Action: policy.ActionRate, Reason: policy.ReasonWindowNotOpen, State: st}
		}
	}

	r.Value = models.RoundRating(value)
	r.UpdatedAt = now.UTC()
	if err := s.ratings.UpdateRating(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *RatingService) Delete(ctx context.Context, viewer models.Viewer, ratingID string) error {
	if _, _, err := s.loadOwned(ctx, viewer, ratingID); err != nil {
		return err
	}
	return s.ratings.DeleteRating(ctx, ratingID)
}

// Summary is the read-time mean. Average is nil when nobody has rated.
func (s *RatingService) Summary(ctx context.Context, viewer models.Viewer, eventID string) (models.RatingSummary, error) {
	if _, err := loadVisible(ctx, s.events, viewer, eventID); err != nil {
		return models.RatingSummary{}, err
	}
	return s.ratings.RatingSummary(ctx, eventID)
}

func (s *RatingService) loadOwned(ctx context.Context, viewer models.Viewer, ratingID string) (*models.Rating, *models.Event, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, nil, err
	}
	r, err := s.ratings.GetRating(ctx, ratingID)
	if err != nil {
		return nil, nil, err
	}
	if r.UserID != viewer.UserID && !viewer.IsAdmin() {
		return nil, nil, models.ErrForbidden
	}
	e, err := s.events.GetEvent(ctx, r.EventID)
	if err != nil {
		return nil, nil, err
	}
	return r, e, nil
}
