package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventradar/internal/middleware"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/services"
)

func GetMe(us *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := middleware.ViewerFrom(c)
		profile, err := us.Profile(c.Request.Context(), viewer)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{
			"profile":  profile,
			"role":     viewer.Role,
			"city":     viewer.City,
			"is_admin": viewer.IsAdmin(),
		}, ""))
	}
}

// BanUser removes a user and everything they created. Admin only.
func BanUser(us *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := us.Ban(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "User banned"))
	}
}

func FollowOrganizer(fs *services.FollowService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := fs.Follow(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"organizer_id": id, "following": true}, ""))
	}
}

func UnfollowOrganizer(fs *services.FollowService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := fs.Unfollow(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"organizer_id": id, "following": false}, ""))
	}
}

func ListFollowing(fs *services.FollowService) gin.HandlerFunc {
	return func(c *gin.Context) {
		follows, err := fs.ListFollowing(c.Request.Context(), middleware.ViewerFrom(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(follows, ""))
	}
}

func ResolveLocation(ls *services.LocationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.LocationInput
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&in); err != nil {
				badRequest(c, "invalid request body: "+err.Error())
				return
			}
		}
		res, err := ls.Resolve(c.Request.Context(), middleware.ViewerFrom(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(res, ""))
	}
}

// MediaURL resolves a stored reference to a loadable URL. It always answers
// 200; when signing fails the public or original URL is returned.
func MediaURL(urls services.URLResolver, defaultBucket string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ref := c.Query("ref")
		if ref == "" {
			badRequest(c, "ref is required")
			return
		}
		bucket := c.DefaultQuery("bucket", defaultBucket)

		var ttl time.Duration
		if s := c.Query("ttl"); s != "" {
			d, err := parseTTL(s)
			if err != nil || d <= 0 {
				badRequest(c, "ttl must be seconds or a duration such as 30m")
				return
			}
			ttl = d
		}
		url := urls.Resolve(c.Request.Context(), bucket, ref, ttl)
		c.JSON(http.StatusOK, models.SuccessResponse(gin.H{"url": url}, ""))
	}
}

// parseTTL accepts plain seconds or a Go duration string.
func parseTTL(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
