package container

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/config"
	"github.com/joshua-takyi/eventradar/internal/connect"
	"github.com/joshua-takyi/eventradar/internal/geo"
	"github.com/joshua-takyi/eventradar/internal/helpers"
	"github.com/joshua-takyi/eventradar/internal/media"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/policy"
	"github.com/joshua-takyi/eventradar/internal/services"
)

// Container holds all application dependencies
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clients *connect.Clients
	Tokens  *helpers.TokenValidator

	Repo          *models.SQLRepo
	MediaResolver *media.Resolver
	Locations     *geo.Resolver

	EventService       *services.EventService
	InteractionService *services.InteractionService
	RatingService      *services.RatingService
	FollowService      *services.FollowService
	UserService        *services.UserService
	LocationService    *services.LocationService
	FeedService        *services.FeedService
	FeedCoordinator    *services.FeedCoordinator

	closers []func()
}

// NewContainer wires repositories, media and services from already opened
// clients.
func NewContainer(ctx context.Context, cfg *config.Config, clients *connect.Clients, logger *slog.Logger) (*Container, error) {
	clk := clock.NewSystem()
	c := &Container{Config: cfg, Logger: logger, Clients: clients}

	tokens, err := helpers.NewTokenValidator(ctx, cfg.Supabase.JWKSURL, cfg.Supabase.JWTSecret, logger)
	if err != nil {
		return nil, fmt.Errorf("token validator: %w", err)
	}
	c.Tokens = tokens
	c.closers = append(c.closers, tokens.Close)

	c.Repo = models.NewSQLRepo(clients.DB)

	var profiles models.ProfileRepo
	if clients.Supabase != nil {
		profiles = models.SupabaseNewRepo(clients.Supabase, cfg.Supabase.ServiceRoleKey)
	}

	var store geo.Store
	if clients.Mongo != nil {
		mongoRepo := models.MongodbNewRepo(clients.Mongo, cfg.MongoDB.Database)
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("location indexes: %w", err)
		}
		store = mongoRepo
	} else {
		store = geo.NewMemoryStore(clk)
	}
	cities := geo.DefaultCities()
	c.Locations = geo.NewResolver(store,
		geo.WithCities(cities),
		geo.WithCountryFallback(geo.Coordinate{Lat: cfg.Geo.CountryLat, Lng: cfg.Geo.CountryLng}),
		geo.WithLocationTTL(cfg.Geo.LocationTTL),
		geo.WithClock(clk),
		geo.WithLogger(logger.With("component", "location")),
	)

	uploader, err := c.buildMedia(cfg, clk, logger)
	if err != nil {
		return nil, err
	}

	p := policy.New(
		policy.WithGracePeriod(cfg.Interaction.GracePeriod),
		policy.WithImageQuota(cfg.Interaction.ImageQuota),
	)

	c.EventService = services.NewEventService(c.Repo, c.Repo, uploader, p, clk, logger)
	c.InteractionService = services.NewInteractionService(
		services.InteractionRepos{Events: c.Repo, Attendance: c.Repo, Comments: c.Repo, Images: c.Repo},
		uploader, c.MediaResolver, p, clk,
		services.InteractionConfig{
			Bucket:           cfg.Media.Bucket,
			URLTTL:           cfg.Media.SignedURLTTL,
			CommentMaxLength: cfg.Interaction.CommentMaxLength,
			MaxUploadBytes:   cfg.Media.MaxUploadBytes,
		},
		logger,
	)
	c.RatingService = services.NewRatingService(c.Repo, c.Repo, c.Repo, p, clk, logger)
	c.FollowService = services.NewFollowService(c.Repo, clk)
	c.UserService = services.NewUserService(profiles, c.Repo, uploader, logger)
	c.LocationService = services.NewLocationService(c.Locations)
	c.FeedService = services.NewFeedService(c.Repo, c.Locations, cities)
	c.FeedCoordinator = services.NewFeedCoordinator()

	logger.Info("container ready",
		"location_store", cfg.Geo.LocationStore,
		"country", cfg.Geo.CountryName,
		"uploader", cfg.Media.Uploader,
		"redis_cache", clients.Redis != nil,
	)
	return c, nil
}

// buildMedia assembles signer, breaker, cache and uploader.
func (c *Container) buildMedia(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (media.Uploader, error) {
	if c.Clients.Supabase == nil {
		return nil, fmt.Errorf("media: supabase client is required for signing")
	}
	mediaLogger := logger.With("component", "media")

	breaker := media.DefaultBreakerConfig()
	if cfg.Media.BreakerFailures > 0 {
		breaker.FailureThreshold = cfg.Media.BreakerFailures
	}
	if cfg.Media.BreakerTimeout > 0 {
		breaker.Timeout = cfg.Media.BreakerTimeout
	}
	signer := media.NewBreakerSigner(media.NewSupabaseSigner(c.Clients.Supabase.Storage), breaker, mediaLogger)

	var cache media.Cache
	if c.Clients.Redis != nil {
		cache = media.NewRedisCache(c.Clients.Redis, clk, mediaLogger)
	} else {
		mem := media.NewMemoryCache(clk, cfg.Media.CachePurge)
		c.closers = append(c.closers, mem.Close)
		cache = mem
	}
	c.MediaResolver = media.NewResolver(signer, cache,
		media.WithClock(clk),
		media.WithLogger(mediaLogger),
		media.WithDefaultTTL(cfg.Media.SignedURLTTL),
		media.WithSafetyMargin(cfg.Media.SafetyMargin),
	)

	switch cfg.Media.Uploader {
	case "cloudinary":
		if c.Clients.Cloudinary == nil {
			return nil, fmt.Errorf("media: cloudinary uploader selected but not configured")
		}
		return media.NewCloudinaryUploader(c.Clients.Cloudinary, media.EventsFolder, mediaLogger), nil
	default:
		return media.NewSupabaseUploader(c.Clients.Supabase.Storage, cfg.Media.Bucket, mediaLogger), nil
	}
}

// Close stops background work started by the container. Clients are closed
// by their owner.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
