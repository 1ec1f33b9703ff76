package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/models"
)

type FollowService struct {
	follows models.FollowRepo
	clock   clock.Clock
}

func NewFollowService(follows models.FollowRepo, clk clock.Clock) *FollowService {
	return &FollowService{follows: follows, clock: clk}
}

// Follow is idempotent.
func (s *FollowService) Follow(ctx context.Context, viewer models.Viewer, organizerID string) error {
	if err := requireAuth(viewer); err != nil {
		return err
	}
	organizerID = strings.TrimSpace(organizerID)
	if organizerID == "" {
		return models.NewValidationError("organizer", "is required")
	}
	if organizerID == viewer.UserID {
		return models.NewValidationError("organizer", "you cannot follow yourself")
	}
	err := s.follows.CreateFollow(ctx, &models.Follow{
		ID:          uuid.NewString(),
		OrganizerID: organizerID,
		UserID:      viewer.UserID,
		CreatedAt:   s.clock.Now().UTC(),
	})
	var conflict *models.ConflictError
	if err != nil && !errors.As(err, &conflict) {
		return err
	}
	return nil
}

func (s *FollowService) Unfollow(ctx context.Context, viewer models.Viewer, organizerID string) error {
	if err := requireAuth(viewer); err != nil {
		return err
	}
	_, err := s.follows.DeleteFollow(ctx, organizerID, viewer.UserID)
	return err
}

func (s *FollowService) ListFollowing(ctx context.Context, viewer models.Viewer) ([]models.Follow, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	return s.follows.ListFollowing(ctx, viewer.UserID)
}

func (s *FollowService) FollowerCount(ctx context.Context, organizerID string) (int, error) {
	return s.follows.CountFollowers(ctx, organizerID)
}
