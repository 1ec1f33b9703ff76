package services

import (
	"context"
	"time"

	"github.com/joshua-takyi/eventradar/internal/metrics"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/policy"
)

// canManage reports whether viewer may edit or delete e.
func canManage(viewer models.Viewer, e *models.Event) bool {
	return viewer.IsAdmin() || e.OwnedBy(viewer.UserID)
}

// canSee hides non-published events from everyone but the owner and admins.
func canSee(viewer models.Viewer, e *models.Event) bool {
	return e.Status == models.StatusPublished || canManage(viewer, e)
}

func requireAuth(viewer models.Viewer) error {
	if !viewer.Authenticated() {
		return models.ErrUnauthorized
	}
	return nil
}

// loadVisible returns ErrNotFound for events the viewer may not see, so
// drafts are indistinguishable from missing rows.
func loadVisible(ctx context.Context, repo models.EventRepo, viewer models.Viewer, id string) (*models.Event, error) {
	e, err := repo.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(viewer, e) {
		return nil, models.ErrNotFound
	}
	return e, nil
}

// loadManaged loads an event the viewer must be allowed to change.
func loadManaged(ctx context.Context, repo models.EventRepo, viewer models.Viewer, id string) (*models.Event, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	e, err := loadVisible(ctx, repo, viewer, id)
	if err != nil {
		return nil, err
	}
	if !canManage(viewer, e) {
		return nil, models.ErrForbidden
	}
	return e, nil
}

func policyViewer(viewer models.Viewer, e *models.Event, facts models.ViewerFacts) policy.Viewer {
	return policy.Viewer{
		IsOwner:    e.OwnedBy(viewer.UserID),
		IsAdmin:    viewer.IsAdmin(),
		Going:      facts.Going,
		HasRated:   facts.RatingID != "",
		ImageCount: facts.ImageCount,
	}
}

// gate evaluates one action for viewer on e and counts denials.
func gate(p policy.Policy, action policy.Action, viewer models.Viewer, e *models.Event, facts models.ViewerFacts, now time.Time) error {
	err := p.Check(action, e.Window(), policyViewer(viewer, e, facts), now)
	if de, ok := policy.AsDenied(err); ok {
		metrics.RecordDenial(string(de.Action), string(de.Reason))
	}
	return err
}
