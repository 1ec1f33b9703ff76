package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventradar/internal/geo"
	"github.com/joshua-takyi/eventradar/internal/middleware"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/services"
)

// SupersededHeader marks a feed response dropped because a newer fetch for
// the same session started.
const SupersededHeader = "X-Feed-Superseded"

func CreateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in services.EventInput
		if err := c.ShouldBindJSON(&in); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
		event, err := es.Create(c.Request.Context(), middleware.ViewerFrom(c), in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(event, "Event created successfully"))
	}
}

// GetEvent returns the event with counters, the viewer's own state and the
// current eligibility.
func GetEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		detail, err := es.Detail(c.Request.Context(), middleware.ViewerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(detail, ""))
	}
}

func UpdateEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var patch models.EventPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			badRequest(c, "invalid request body: "+err.Error())
			return
		}
		event, err := es.Update(c.Request.Context(), middleware.ViewerFrom(c), id, patch)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, "Event updated successfully"))
	}
}

func SetEventStatus(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body struct {
			Status models.EventStatus `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "status is required")
			return
		}
		event, err := es.SetStatus(c.Request.Context(), middleware.ViewerFrom(c), id, body.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(event, "Event status updated"))
	}
}

func DeleteEvent(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := es.Delete(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Event deleted successfully"))
	}
}

func ListOrganizerEvents(es *services.EventService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		events, err := es.ListByOrganizer(c.Request.Context(), middleware.ViewerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(events, ""))
	}
}

// ListFeed serves the ranked feed. Fetches are keyed by session: when a newer
// fetch for the same session starts, this one is cancelled and answers 204
// with SupersededHeader set.
func ListFeed(fs *services.FeedService, coord *services.FeedCoordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		viewer := middleware.ViewerFrom(c)
		req, err := feedRequest(c)
		if err != nil {
			respondError(c, err)
			return
		}

		ticket := coord.Begin(c.Request.Context(), viewer.Key())
		page, err := fs.List(ticket.Context(), viewer, req)
		latest := coord.Commit(ticket)

		if !latest {
			c.Header(SupersededHeader, "true")
			c.Status(http.StatusNoContent)
			return
		}
		if err != nil {
			if errors.Is(err, context.Canceled) && c.Request.Context().Err() == nil {
				c.Header(SupersededHeader, "true")
				c.Status(http.StatusNoContent)
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(page, ""))
	}
}

func feedRequest(c *gin.Context) (services.FeedRequest, error) {
	limit, offset, ok := pagination(c)
	if !ok {
		return services.FeedRequest{}, models.NewValidationError("limit", "invalid limit or offset")
	}
	req := services.FeedRequest{
		Scope:       services.ParseScope(c.Query("scope")),
		OrganizerID: strings.TrimSpace(c.Query("organizer")),
		Region:      c.Query("region"),
		City:        c.Query("city"),
		Genre:       models.Genre(strings.ToLower(strings.TrimSpace(c.Query("genre")))),
		Text:        c.Query("q"),
		Refresh:     c.Query("refresh") == "true",
		Limit:       limit,
		Offset:      offset,
	}

	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if (latStr == "") != (lngStr == "") {
		return req, models.NewValidationError("lat", "lat and lng must be sent together")
	}
	if latStr != "" {
		lat, err1 := strconv.ParseFloat(latStr, 64)
		lng, err2 := strconv.ParseFloat(lngStr, 64)
		if err1 != nil || err2 != nil {
			return req, models.NewValidationError("lat", "lat and lng must be numbers")
		}
		// out-of-range device readings fall through to the next strategy
		if coord := (geo.Coordinate{Lat: lat, Lng: lng}); coord.Valid() {
			req.Device = &coord
		}
	}
	return req, nil
}
