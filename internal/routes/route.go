package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventradar/internal/container"
	"github.com/joshua-takyi/eventradar/internal/handlers"
	"github.com/joshua-takyi/eventradar/internal/middleware"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all routes with the dependency container
func SetupRoutes(c *container.Container) *gin.Engine {
	if c.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     c.Config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader, middleware.SessionHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, handlers.SupersededHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(c.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.ErrorHandler(c.Logger))
	r.Use(gin.Recovery())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	optional := middleware.OptionalAuth(c.Tokens, c.UserService, c.Logger)
	required := middleware.Auth(c.Tokens, c.UserService, c.Logger)

	v1 := r.Group("/api/v1")
	v1.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"service": "eventradar-api",
		})
	})

	public := v1.Group("/", optional)
	{
		public.GET("/events", handlers.ListFeed(c.FeedService, c.FeedCoordinator))
		public.GET("/events/:id", handlers.GetEvent(c.EventService))
		public.GET("/events/:id/comments", handlers.ListComments(c.InteractionService))
		public.GET("/events/:id/images", handlers.ListImages(c.InteractionService))
		public.GET("/events/:id/rating", handlers.RatingSummary(c.RatingService))
		public.POST("/location/resolve", handlers.ResolveLocation(c.LocationService))
		public.GET("/media/url", handlers.MediaURL(c.MediaResolver, c.Config.Media.Bucket))
	}

	protected := v1.Group("/", required)
	{
		protected.GET("/me", handlers.GetMe(c.UserService))
		protected.GET("/me/following", handlers.ListFollowing(c.FollowService))
		protected.GET("/organizers/:id/events", handlers.ListOrganizerEvents(c.EventService))
		protected.POST("/organizers/:id/follow", handlers.FollowOrganizer(c.FollowService))
		protected.DELETE("/organizers/:id/follow", handlers.UnfollowOrganizer(c.FollowService))
	}

	events := protected.Group("/events")
	{
		events.POST("", middleware.RequireRole(models.RoleOrganizer), handlers.CreateEvent(c.EventService))
		events.PATCH("/:id", handlers.UpdateEvent(c.EventService))
		events.POST("/:id/status", handlers.SetEventStatus(c.EventService))
		events.DELETE("/:id", handlers.DeleteEvent(c.EventService))

		events.POST("/:id/going", handlers.MarkGoing(c.InteractionService))
		events.DELETE("/:id/going", handlers.UnmarkGoing(c.InteractionService))
		events.POST("/:id/going/toggle", handlers.ToggleGoing(c.InteractionService))
		events.GET("/:id/attendees", handlers.ListAttendees(c.InteractionService))
		events.GET("/:id/eligibility", handlers.Eligibility(c.InteractionService))

		events.POST("/:id/comments", handlers.AddComment(c.InteractionService))
		events.POST("/:id/images", handlers.UploadImage(c.InteractionService, c.Config.Media.MaxUploadBytes))
		events.POST("/:id/ratings", handlers.SubmitRating(c.RatingService))
	}

	protected.DELETE("/comments/:id", handlers.DeleteComment(c.InteractionService))
	protected.DELETE("/images/:id", handlers.DeleteImage(c.InteractionService))
	protected.PATCH("/ratings/:id", handlers.UpdateRating(c.RatingService))
	protected.DELETE("/ratings/:id", handlers.DeleteRating(c.RatingService))

	admin := protected.Group("/admin", middleware.RequireRole(models.RoleAdmin))
	admin.DELETE("/users/:id", handlers.BanUser(c.UserService))

	return r
}
