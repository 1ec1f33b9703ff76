package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/helpers"
	"github.com/joshua-takyi/eventradar/internal/media"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/policy"
)

const (
	DefaultCommentMaxLength = 1000
	DefaultMaxUploadBytes   = 10 << 20
)

// URLResolver turns a stored media reference into a displayable URL.
type URLResolver interface {
	Resolve(ctx context.Context, bucket, ref string, ttl time.Duration) string
}

type InteractionConfig struct {
	Bucket           string
	URLTTL           time.Duration
	CommentMaxLength int
	MaxUploadBytes   int64
}

type InteractionRepos struct {
	Events     models.EventRepo
	Attendance models.AttendanceRepo
	Comments   models.CommentRepo
	Images     models.ImageRepo
}

// GoingState is the result of a going toggle.
type GoingState struct {
	EventID string `json:"event_id"`
	Going   bool   `json:"going"`
}

// ImageUpload is an image file received from a client.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type InteractionService struct {
	repos    InteractionRepos
	uploader media.Uploader
	urls     URLResolver
	policy   policy.Policy
	clock    clock.Clock
	cfg      InteractionConfig
	logger   *slog.Logger
}

func NewInteractionService(repos InteractionRepos, uploader media.Uploader, urls URLResolver, p policy.Policy, clk clock.Clock, cfg InteractionConfig, logger *slog.Logger) *InteractionService {
	if cfg.CommentMaxLength <= 0 {
		cfg.CommentMaxLength = DefaultCommentMaxLength
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &InteractionService{
		repos:    repos,
		uploader: uploader,
		urls:     urls,
		policy:   p,
		clock:    clk,
		cfg:      cfg,
		logger:   logger,
	}
}

// prepare loads the event and the viewer's facts and checks action against
// the interaction policy.
func (s *InteractionService) prepare(ctx context.Context, viewer models.Viewer, eventID string, action policy.Action) (*models.Event, models.ViewerFacts, error) {
	var facts models.ViewerFacts
	if err := requireAuth(viewer); err != nil {
		return nil, facts, err
	}
	e, err := loadVisible(ctx, s.repos.Events, viewer, eventID)
	if err != nil {
		return nil, facts, err
	}
	facts, err = s.repos.Attendance.ViewerFacts(ctx, eventID, viewer.UserID)
	if err != nil {
		return nil, facts, err
	}
	if err := gate(s.policy, action, viewer, e, facts, s.clock.Now()); err != nil {
		return nil, facts, err
	}
	return e, facts, nil
}

// MarkGoing is idempotent: marking an event twice is reported as going.
func (s *InteractionService) MarkGoing(ctx context.Context, viewer models.Viewer, eventID string) (*GoingState, error) {
	if _, _, err := s.prepare(ctx, viewer, eventID, policy.ActionMarkGoing); err != nil {
		return nil, err
	}
	err := s.repos.Attendance.AddAttendance(ctx, &models.Attendance{
		ID:        uuid.NewString(),
		EventID:   eventID,
		UserID:    viewer.UserID,
		CreatedAt: s.clock.Now().UTC(),
	})
	var conflict *models.ConflictError
	if err != nil && !errors.As(err, &conflict) {
		return nil, err
	}
	return &GoingState{EventID: eventID, Going: true}, nil
}

func (s *InteractionService) UnmarkGoing(ctx context.Context, viewer models.Viewer, eventID string) (*GoingState, error) {
	if _, _, err := s.prepare(ctx, viewer, eventID, policy.ActionUnmarkGoing); err != nil {
		return nil, err
	}
	if _, err := s.repos.Attendance.RemoveAttendance(ctx, eventID, viewer.UserID); err != nil {
		return nil, err
	}
	return &GoingState{EventID: eventID, Going: false}, nil
}

// Toggle flips the viewer's going mark.
func (s *InteractionService) Toggle(ctx context.Context, viewer models.Viewer, eventID string) (*GoingState, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	facts, err := s.repos.Attendance.ViewerFacts(ctx, eventID, viewer.UserID)
	if err != nil {
		return nil, err
	}
	if facts.Going {
		return s.UnmarkGoing(ctx, viewer, eventID)
	}
	return s.MarkGoing(ctx, viewer, eventID)
}

func (s *InteractionService) ListAttendees(ctx context.Context, viewer models.Viewer, eventID string) ([]models.Attendance, error) {
	if _, _, err := s.prepare(ctx, viewer, eventID, policy.ActionViewAttendees); err != nil {
		return nil, err
	}
	return s.repos.Attendance.ListAttendees(ctx, eventID)
}

// Eligibility reports the full policy evaluation for the viewer, so clients
// can render affordances. It never authorizes anything by itself.
func (s *InteractionService) Eligibility(ctx context.Context, viewer models.Viewer, eventID string) (policy.Evaluation, error) {
	e, err := loadVisible(ctx, s.repos.Events, viewer, eventID)
	if err != nil {
		return policy.Evaluation{}, err
	}
	facts, err := s.repos.Attendance.ViewerFacts(ctx, eventID, viewer.UserID)
	if err != nil {
		return policy.Evaluation{}, err
	}
	return s.policy.Evaluate(e.Window(), policyViewer(viewer, e, facts), s.clock.Now()), nil
}

// SanitizeComment trims the body and strips links. The result must be
// non-empty and within maxLen runes.
func SanitizeComment(body string, maxLen int) (string, error) {
	body = helpers.StripURLs(body)
	if body == "" {
		return "", models.NewValidationError("body", "must not be empty")
	}
	if n := utf8.RuneCountInString(body); n > maxLen {
		return "", models.NewValidationError("body", "must be at most %d characters", maxLen)
	}
	return body, nil
}

func (s *InteractionService) AddComment(ctx context.Context, viewer models.Viewer, eventID, body string) (*models.Comment, error) {
	clean, err := SanitizeComment(body, s.cfg.CommentMaxLength)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.prepare(ctx, viewer, eventID, policy.ActionComment); err != nil {
		return nil, err
	}
	c := &models.Comment{
		ID:        uuid.NewString(),
		EventID:   eventID,
		AuthorID:  viewer.UserID,
		Body:      clean,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.repos.Comments.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteComment is allowed for the author and admins.
func (s *InteractionService) DeleteComment(ctx context.Context, viewer models.Viewer, commentID string) error {
	if err := requireAuth(viewer); err != nil {
		return err
	}
	c, err := s.repos.Comments.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.AuthorID != viewer.UserID && !viewer.IsAdmin() {
		return models.ErrForbidden
	}
	return s.repos.Comments.DeleteComment(ctx, commentID)
}

func (s *InteractionService) ListComments(ctx context.Context, viewer models.Viewer, eventID string, limit, offset int) ([]models.Comment, int, error) {
	if _, err := loadVisible(ctx, s.repos.Events, viewer, eventID); err != nil {
		return nil, 0, err
	}
	return s.repos.Comments.ListComments(ctx, eventID, limit, offset)
}

// UploadImage stores a photo for an attendee inside the interaction window.
// The quota is checked just before the upload; a race may admit one extra
// image, which is tolerated.
func (s *InteractionService) UploadImage(ctx context.Context, viewer models.Viewer, eventID string, up ImageUpload) (*models.EventImage, error) {
	if !strings.HasPrefix(strings.ToLower(up.ContentType), "image/") {
		return nil, models.NewValidationError("file", "must be an image")
	}
	if up.Size <= 0 {
		return nil, models.NewValidationError("file", "is empty")
	}
	if up.Size > s.cfg.MaxUploadBytes {
		return nil, models.NewValidationError("file", "must be at most %d bytes", s.cfg.MaxUploadBytes)
	}
	if _, _, err := s.prepare(ctx, viewer, eventID, policy.ActionUploadImage); err != nil {
		return nil, err
	}
	if s.uploader == nil {
		return nil, &models.TransientIOError{Op: "upload image", Err: errors.New("no uploader configured")}
	}

	ref, err := s.uploader.Upload(ctx, media.Upload{
		EventID:     eventID,
		UploaderID:  viewer.UserID,
		Filename:    up.Filename,
		ContentType: up.ContentType,
		Body:        up.Body,
	})
	if err != nil {
		return nil, &models.TransientIOError{Op: "upload image", Err: err}
	}

	img := &models.EventImage{
		ID:         uuid.NewString(),
		EventID:    eventID,
		UploaderID: viewer.UserID,
		Ref:        ref,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.repos.Images.CreateImage(ctx, img); err != nil {
		removeObjects(ctx, s.uploader, []string{ref}, s.logger)
		return nil, fmt.Errorf("record image: %w", err)
	}
	s.resolveURL(ctx, img)
	return img, nil
}

// DeleteImage is allowed for the uploader and admins.
func (s *InteractionService) DeleteImage(ctx context.Context, viewer models.Viewer, imageID string) error {
	if err := requireAuth(viewer); err != nil {
		return err
	}
	img, err := s.repos.Images.GetImage(ctx, imageID)
	if err != nil {
		return err
	}
	if img.UploaderID != viewer.UserID && !viewer.IsAdmin() {
		return models.ErrForbidden
	}
	if err := s.repos.Images.DeleteImage(ctx, imageID); err != nil {
		return err
	}
	removeObjects(ctx, s.uploader, []string{img.Ref}, s.logger)
	return nil
}

func (s *InteractionService) ListImages(ctx context.Context, viewer models.Viewer, eventID string) ([]models.EventImage, error) {
	if _, err := loadVisible(ctx, s.repos.Events, viewer, eventID); err != nil {
		return nil, err
	}
	images, err := s.repos.Images.ListImages(ctx, eventID)
	if err != nil {
		return nil, err
	}
	for i := range images {
		s.resolveURL(ctx, &images[i])
	}
	return images, nil
}

func (s *InteractionService) resolveURL(ctx context.Context, img *models.EventImage) {
	if s.urls == nil {
		img.URL = img.Ref
		return
	}
	img.URL = s.urls.Resolve(ctx, s.cfg.Bucket, img.Ref, s.cfg.URLTTL)
}
