package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/eventradar/internal/helpers"
	"github.com/joshua-takyi/eventradar/internal/metrics"
	"github.com/joshua-takyi/eventradar/internal/models"
)

const (
	viewerKey       = "viewer"
	SessionHeader   = "X-Session-ID"
	AccessCookie    = "access_token"
	RequestIDHeader = "X-Request-ID"
)

// ViewerResolver turns validated token claims into the request viewer.
type ViewerResolver interface {
	ViewerFromClaims(ctx context.Context, claims *helpers.Claims) models.Viewer
}

// RequestID middleware adds a unique request ID to each request
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// StructuredLogger provides structured logging middleware
func StructuredLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		// Process request
		c.Next()

		// Log request completion
		if raw != "" {
			path = path + "?" + raw
		}
		requestID, _ := c.Get("request_id")

		attrs := []any{
			"request_id", requestID,
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if v, ok := c.Get(viewerKey); ok {
			if viewer, ok := v.(models.Viewer); ok && viewer.Authenticated() {
				attrs = append(attrs, "user_id", viewer.UserID)
			}
		}
		logger.Info("HTTP Request", attrs...)
	}
}

// Metrics records request counts and latency by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}

// ErrorHandler provides centralized error handling
func ErrorHandler(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		// Handle any errors that occurred during request processing
		err := c.Errors.Last()
		requestID, _ := c.Get("request_id")

		logger.Error("Request error",
			"request_id", requestID,
			"error", err.Error(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		// Don't return error details to the client
		if !c.Writer.Written() {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      "Internal server error",
				"request_id": requestID,
			})
		}
	}
}

// Auth rejects requests without a valid access token.
func Auth(tokens *helpers.TokenValidator, viewers ViewerResolver, logger *slog.Logger) gin.HandlerFunc {
	return authenticate(tokens, viewers, logger, true)
}

// OptionalAuth resolves the viewer when a token is present and lets
// anonymous requests through. A present but invalid token is still rejected.
func OptionalAuth(tokens *helpers.TokenValidator, viewers ViewerResolver, logger *slog.Logger) gin.HandlerFunc {
	return authenticate(tokens, viewers, logger, false)
}

func authenticate(tokens *helpers.TokenValidator, viewers ViewerResolver, logger *slog.Logger, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := strings.TrimSpace(c.GetHeader(SessionHeader))

		// Get JWT token from header or cookie
		token := bearerToken(c)
		if token == "" {
			if required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse("authentication required", "unauthorized"))
				return
			}
			c.Set(viewerKey, models.Viewer{SessionKey: session})
			c.Next()
			return
		}

		// Validate token using Supabase JWKS
		claims, err := tokens.Validate(token)
		if err != nil {
			logger.Info("rejected access token", "error", err, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse("invalid or expired token", "unauthorized"))
			return
		}

		// Fetch profile data and store the viewer in context
		viewer := viewers.ViewerFromClaims(c.Request.Context(), claims)
		viewer.SessionKey = session
		c.Set(viewerKey, viewer)
		c.Next()
	}
}

// RequireRole lets through viewers holding one of roles. Admins always pass.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := ViewerFrom(c)
		if !viewer.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse("authentication required", "unauthorized"))
			return
		}
		if viewer.IsAdmin() {
			c.Next()
			return
		}
		for _, r := range roles {
			if viewer.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse("insufficient role", "forbidden"))
	}
}

// ViewerFrom returns the viewer set by Auth or OptionalAuth, or an anonymous
// viewer.
func ViewerFrom(c *gin.Context) models.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(models.Viewer); ok {
			return viewer
		}
	}
	return models.Viewer{SessionKey: strings.TrimSpace(c.GetHeader(SessionHeader))}
}

// SetViewer is used by tests and internal callers to inject a viewer.
func SetViewer(c *gin.Context, v models.Viewer) {
	c.Set(viewerKey, v)
}

func bearerToken(c *gin.Context) string {
	if h := strings.TrimSpace(c.GetHeader("Authorization")); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return h
	}
	if cookie, err := c.Cookie(AccessCookie); err == nil {
		return cookie
	}
	return ""
}
