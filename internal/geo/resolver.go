package geo

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/metrics"
)

// Source tags where a resolved coordinate came from.
type Source string

const (
	SourceCached  Source = "cached"
	SourceDevice  Source = "device"
	SourceCity    Source = "city"
	SourceCountry Source = "country"
)

const DefaultLocationTTL = 24 * time.Hour

// Result is a best-effort viewer position.
type Result struct {
	Coordinate
	Source Source `json:"source"`
}

// Request is what a caller knows about the viewer at resolution time.
type Request struct {
	// ViewerKey identifies whose location is persisted. Empty disables the store.
	ViewerKey string
	Device    *Coordinate
	City      string
	// Refresh skips the persisted coordinate.
	Refresh bool
}

// StoredLocation is a previously persisted resolution.
type StoredLocation struct {
	Result
	ExpiresAt time.Time
}

// Store persists the last resolved coordinate per viewer. GetLocation returns
// (nil, nil) when nothing usable is stored.
type Store interface {
	GetLocation(ctx context.Context, viewerKey string) (*StoredLocation, error)
	SaveLocation(ctx context.Context, viewerKey string, loc Result, expiresAt time.Time) error
}

// Strategy is one link in the fallback chain. A strategy that cannot answer
// returns false and the resolver moves on.
type Strategy interface {
	Source() Source
	Resolve(ctx context.Context, req Request) (Coordinate, bool)
}

type cachedStrategy struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger
}

func (s cachedStrategy) Source() Source { return SourceCached }

func (s cachedStrategy) Resolve(ctx context.Context, req Request) (Coordinate, bool) {
	if req.Refresh || req.ViewerKey == "" {
		return Coordinate{}, false
	}
	loc, err := s.store.GetLocation(ctx, req.ViewerKey)
	if err != nil {
		s.logger.Warn("location store read failed", "error", err)
		return Coordinate{}, false
	}
	if loc == nil || !loc.Valid() || !s.clock.Now().Before(loc.ExpiresAt) {
		return Coordinate{}, false
	}
	return loc.Coordinate, true
}

type deviceStrategy struct{}

func (deviceStrategy) Source() Source { return SourceDevice }

func (deviceStrategy) Resolve(_ context.Context, req Request) (Coordinate, bool) {
	if req.Device == nil || !req.Device.Valid() {
		return Coordinate{}, false
	}
	return *req.Device, true
}

type cityStrategy struct {
	cities *CityTable
}

func (s cityStrategy) Source() Source { return SourceCity }

func (s cityStrategy) Resolve(_ context.Context, req Request) (Coordinate, bool) {
	return s.cities.Lookup(req.City)
}

type countryStrategy struct {
	fallback Coordinate
}

func (s countryStrategy) Source() Source { return SourceCountry }

func (s countryStrategy) Resolve(context.Context, Request) (Coordinate, bool) {
	return s.fallback, true
}

// Resolver walks an ordered list of strategies; the first answer wins. The
// final country strategy always answers, so resolution never fails.
type Resolver struct {
	strategies []Strategy
	store      Store
	ttl        time.Duration
	clock      clock.Clock
	logger     *slog.Logger
	group      singleflight.Group
}

type ResolverOption func(*resolverConfig)

type resolverConfig struct {
	cities   *CityTable
	fallback Coordinate
	ttl      time.Duration
	clock    clock.Clock
	logger   *slog.Logger
}

func WithCities(t *CityTable) ResolverOption {
	return func(c *resolverConfig) { c.cities = t }
}

func WithCountryFallback(coord Coordinate) ResolverOption {
	return func(c *resolverConfig) {
		if coord.Valid() {
			c.fallback = coord
		}
	}
}

func WithLocationTTL(d time.Duration) ResolverOption {
	return func(c *resolverConfig) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithClock(clk clock.Clock) ResolverOption {
	return func(c *resolverConfig) { c.clock = clk }
}

func WithLogger(l *slog.Logger) ResolverOption {
	return func(c *resolverConfig) { c.logger = l }
}

// NewResolver builds the default chain: cached, device, city, country.
func NewResolver(store Store, opts ...ResolverOption) *Resolver {
	cfg := resolverConfig{
		cities:   DefaultCities(),
		fallback: CountryFallback,
		ttl:      DefaultLocationTTL,
		clock:    clock.NewSystem(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Resolver{
		store:  store,
		ttl:    cfg.ttl,
		clock:  cfg.clock,
		logger: cfg.logger,
	}
	if store != nil {
		r.strategies = append(r.strategies, cachedStrategy{store: store, clock: cfg.clock, logger: cfg.logger})
	}
	r.strategies = append(r.strategies,
		deviceStrategy{},
		cityStrategy{cities: cfg.cities},
		countryStrategy{fallback: cfg.fallback},
	)
	return r
}

// Strategies returns the chain's sources in evaluation order.
func (r *Resolver) Strategies() []Source {
	out := make([]Source, len(r.strategies))
	for i, s := range r.strategies {
		out[i] = s.Source()
	}
	return out
}

// Resolve returns the viewer's best-known position. Concurrent calls for the
// same viewer share one in-flight resolution. The only error is ctx's.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Result, error) {
	if req.ViewerKey == "" {
		return r.resolve(ctx, req), nil
	}

	key := req.ViewerKey
	if req.Refresh {
		key += "|refresh"
	}

	// the shared call must outlive any single waiter's cancellation
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (interface{}, error) {
		return r.resolve(shared, req), nil
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		return res.Val.(Result), nil
	}
}

func (r *Resolver) resolve(ctx context.Context, req Request) Result {
	for _, s := range r.strategies {
		coord, ok := s.Resolve(ctx, req)
		if !ok {
			continue
		}
		res := Result{Coordinate: coord, Source: s.Source()}
		metrics.RecordLocation(string(res.Source))
		if res.Source != SourceCached {
			r.persist(ctx, req.ViewerKey, res)
		}
		return res
	}
	// unreachable while the country strategy terminates the chain
	return Result{Coordinate: CountryFallback, Source: SourceCountry}
}

func (r *Resolver) persist(ctx context.Context, viewerKey string, res Result) {
	if r.store == nil || viewerKey == "" {
		return
	}
	if err := r.store.SaveLocation(ctx, viewerKey, res, r.clock.Now().Add(r.ttl)); err != nil {
		r.logger.Warn("location store write failed", "error", err, "source", res.Source)
	}
}
