package services

import (
	"context"
	"strings"
	"time"

	"github.com/joshua-takyi/eventradar/internal/geo"
	"github.com/joshua-takyi/eventradar/internal/metrics"
	"github.com/joshua-takyi/eventradar/internal/models"
)

type FeedScope string

const (
	ScopeGeneral   FeedScope = "general"
	ScopeOrganizer FeedScope = "organizer"
	ScopeAdmin     FeedScope = "admin"
)

// FeedRequest carries the feed filters and what the client knows about its
// position.
type FeedRequest struct {
	Scope       FeedScope
	OrganizerID string
	Region      string
	City        string
	Genre       models.Genre
	Text        string
	Device      *geo.Coordinate
	Refresh     bool
	Limit       int
	Offset      int
}

// FeedItem is an event with its distance from the viewer. DistanceKm is nil
// when the event could not be located.
type FeedItem struct {
	models.EventWithStats
	DistanceKm *float64 `json:"distance_km"`
}

type FeedPage struct {
	Location geo.Result `json:"location"`
	Items    []FeedItem `json:"items"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}

type FeedService struct {
	events   models.EventRepo
	location *geo.Resolver
	cities   *geo.CityTable
}

func NewFeedService(events models.EventRepo, location *geo.Resolver, cities *geo.CityTable) *FeedService {
	if cities == nil {
		cities = geo.DefaultCities()
	}
	return &FeedService{events: events, location: location, cities: cities}
}

// Query turns the request scope into a storage query. Visibility is decided
// here so non-published rows are never loaded for callers who may not see
// them.
func (s *FeedService) Query(viewer models.Viewer, req FeedRequest) (models.EventQuery, error) {
	q := models.EventQuery{
		Region: req.Region,
		City:   req.City,
		Genre:  req.Genre,
		Text:   req.Text,
	}
	if q.Genre != "" && !q.Genre.Valid() {
		return q, models.NewValidationError("genre", "unknown genre %q", q.Genre)
	}

	switch req.Scope {
	case "", ScopeGeneral:
		q.OrganizerID = req.OrganizerID
	case ScopeOrganizer:
		if err := requireAuth(viewer); err != nil {
			return q, err
		}
		q.OrganizerID = req.OrganizerID
		if q.OrganizerID == "" {
			q.OrganizerID = viewer.UserID
		}
		if viewer.IsAdmin() || q.OrganizerID == viewer.UserID {
			q.VisibleTo = q.OrganizerID
		}
	case ScopeAdmin:
		if err := requireAuth(viewer); err != nil {
			return q, err
		}
		if !viewer.IsAdmin() {
			return q, models.ErrForbidden
		}
		q.IncludeAll = true
		q.OrganizerID = req.OrganizerID
	default:
		return q, models.NewValidationError("scope", "must be one of [general organizer admin]")
	}
	return q, nil
}

// List returns the ranked feed. Filtering and counters come from storage;
// distance ordering is applied here using the resolved viewer position.
func (s *FeedService) List(ctx context.Context, viewer models.Viewer, req FeedRequest) (*FeedPage, error) {
	start := time.Now()
	defer func() { metrics.FeedDuration.Observe(time.Since(start).Seconds()) }()

	q, err := s.Query(viewer, req)
	if err != nil {
		return nil, err
	}

	loc, err := s.location.Resolve(ctx, geo.Request{
		ViewerKey: viewer.Key(),
		Device:    req.Device,
		City:      viewer.City,
		Refresh:   req.Refresh,
	})
	if err != nil {
		return nil, err
	}

	rows, err := s.events.ListEvents(ctx, q)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &models.TransientIOError{Op: "list events", Err: err}
	}

	ranked := geo.Rank(loc.Coordinate, rows, func(e models.EventWithStats) (geo.Coordinate, bool) {
		return s.cities.Locate(e.Latitude, e.Longitude, e.City)
	})

	page := &FeedPage{Location: loc, Total: len(ranked), Limit: req.Limit, Offset: req.Offset}
	from := min(req.Offset, len(ranked))
	to := len(ranked)
	if req.Limit > 0 {
		to = min(from+req.Limit, len(ranked))
	}
	page.Items = make([]FeedItem, 0, to-from)
	for _, r := range ranked[from:to] {
		item := FeedItem{EventWithStats: r.Item}
		if r.Known() {
			d := r.DistanceKm
			item.DistanceKm = &d
		}
		page.Items = append(page.Items, item)
	}
	return page, ctx.Err()
}

// ParseScope maps a query value onto a scope; unknown values are kept so
// Query can reject them.
func ParseScope(s string) FeedScope {
	return FeedScope(strings.ToLower(strings.TrimSpace(s)))
}
