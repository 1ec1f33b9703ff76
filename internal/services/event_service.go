package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/media"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/policy"
)

// EventInput is the body of a create request.
type EventInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Lineup      string             `json:"lineup"`
	Region      string             `json:"region"`
	City        string             `json:"city"`
	Address     string             `json:"address"`
	Latitude    *float64           `json:"latitude"`
	Longitude   *float64           `json:"longitude"`
	StartsAt    time.Time          `json:"starts_at"`
	EndsAt      time.Time          `json:"ends_at"`
	Genre       models.Genre       `json:"genre"`
	AgeLabel    string             `json:"age_label"`
	PriceType   models.PriceType   `json:"price_type"`
	Price       *float64           `json:"price"`
	TicketURL   string             `json:"ticket_url"`
	Status      models.EventStatus `json:"status"`
}

// EventDetail is an event with its counters and what the viewer may do.
type EventDetail struct {
	Event       *models.EventWithStats `json:"event"`
	Going       bool                   `json:"going"`
	MyRating    *float64               `json:"my_rating"`
	MyRatingID  string                 `json:"my_rating_id,omitempty"`
	Eligibility policy.Evaluation      `json:"eligibility"`
}

type EventService struct {
	events     models.EventRepo
	attendance models.AttendanceRepo
	uploader   media.Uploader
	policy     policy.Policy
	clock      clock.Clock
	logger     *slog.Logger
}

func NewEventService(events models.EventRepo, attendance models.AttendanceRepo, uploader media.Uploader, p policy.Policy, clk clock.Clock, logger *slog.Logger) *EventService {
	return &EventService{
		events:     events,
		attendance: attendance,
		uploader:   uploader,
		policy:     p,
		clock:      clk,
		logger:     logger,
	}
}

func (s *EventService) Create(ctx context.Context, viewer models.Viewer, in EventInput) (*models.Event, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	if !viewer.IsOrganizer() {
		return nil, models.ErrForbidden
	}

	now := s.clock.Now().UTC()
	status := in.Status
	if status == "" {
		status = models.StatusDraft
	}
	e := &models.Event{
		ID:          uuid.NewString(),
		OrganizerID: viewer.UserID,
		Title:       in.Title,
		Description: in.Description,
		Lineup:      in.Lineup,
		Region:      in.Region,
		City:        in.City,
		Address:     in.Address,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		Genre:       in.Genre,
		AgeLabel:    in.AgeLabel,
		PriceType:   in.PriceType,
		Price:       in.Price,
		TicketURL:   in.TicketURL,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if e.PriceType == "" {
		e.PriceType = models.PriceFree
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	if err := s.events.CreateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", e.ID, "organizer_id", e.OrganizerID, "status", e.Status)
	return e, nil
}

func (s *EventService) Get(ctx context.Context, viewer models.Viewer, id string) (*models.Event, error) {
	return loadVisible(ctx, s.events, viewer, id)
}

func (s *EventService) Update(ctx context.Context, viewer models.Viewer, id string, patch models.EventPatch) (*models.Event, error) {
	e, err := loadManaged(ctx, s.events, viewer, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(e)
	e.Normalize()
	if err := e.Validate(); err != nil {
		return nil, err
	}
	e.UpdatedAt = s.clock.Now().UTC()
	if err := s.events.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EventService) SetStatus(ctx context.Context, viewer models.Viewer, id string, status models.EventStatus) (*models.Event, error) {
	switch status {
	case models.StatusDraft, models.StatusPublished, models.StatusCancelled:
	default:
		return nil, models.NewValidationError("status", "must be one of [draft published cancelled]")
	}
	e, err := loadManaged(ctx, s.events, viewer, id)
	if err != nil {
		return nil, err
	}
	if e.Status == status {
		return e, nil
	}
	e.Status = status
	e.UpdatedAt = s.clock.Now().UTC()
	if err := s.events.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info("event status changed", "event_id", e.ID, "status", status)
	return e, nil
}

// Delete removes the event with its attendance, ratings, comments and
// images. Stored image objects are removed afterwards on a best-effort basis.
func (s *EventService) Delete(ctx context.Context, viewer models.Viewer, id string) error {
	if _, err := loadManaged(ctx, s.events, viewer, id); err != nil {
		return err
	}
	refs, err := s.events.DeleteEvent(ctx, id)
	if err != nil {
		return err
	}
	removeObjects(ctx, s.uploader, refs, s.logger)
	s.logger.Info("event deleted", "event_id", id, "images", len(refs))
	return nil
}

// ListByOrganizer is the organizer page. Drafts and cancelled events are
// only listed for the organizer themselves and admins.
func (s *EventService) ListByOrganizer(ctx context.Context, viewer models.Viewer, organizerID string) ([]models.EventWithStats, error) {
	if organizerID == "" {
		return nil, models.NewValidationError("organizer", "is required")
	}
	q := models.EventQuery{OrganizerID: organizerID}
	if viewer.IsAdmin() || (viewer.Authenticated() && viewer.UserID == organizerID) {
		q.IncludeAll = true
	}
	return s.events.ListEvents(ctx, q)
}

func (s *EventService) Detail(ctx context.Context, viewer models.Viewer, id string) (*EventDetail, error) {
	row, err := s.events.GetEventWithStats(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canSee(viewer, &row.Event) {
		return nil, models.ErrNotFound
	}

	facts, err := s.attendance.ViewerFacts(ctx, id, viewer.UserID)
	if err != nil {
		return nil, err
	}
	return &EventDetail{
		Event:       row,
		Going:       facts.Going,
		MyRating:    facts.Rating,
		MyRatingID:  facts.RatingID,
		Eligibility: s.policy.Evaluate(row.Window(), policyViewer(viewer, &row.Event, facts), s.clock.Now()),
	}, nil
}

func removeObjects(ctx context.Context, u media.Uploader, refs []string, logger *slog.Logger) {
	if u == nil || len(refs) == 0 {
		return
	}
	if err := u.Remove(context.WithoutCancel(ctx), refs); err != nil {
		logger.Warn("failed to remove stored images", "count", len(refs), "error", err)
	}
}
