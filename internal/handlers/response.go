package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventradar/internal/helpers"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/policy"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// denialBody is returned with 403 when the interaction policy refuses an
// action, so clients can show the specific reason.
type denialBody struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Code    policy.Reason `json:"code"`
	Reason  policy.Reason `json:"reason"`
	Action  policy.Action `json:"action"`
	State   policy.State  `json:"state"`
}

// respondError maps service errors onto HTTP statuses. Unknown errors are
// attached to the context for ErrorHandler to log.
func respondError(c *gin.Context, err error) {
	var (
		validation *models.ValidationError
		conflict   *models.ConflictError
		transient  *models.TransientIOError
	)
	if de, ok := policy.AsDenied(err); ok {
		c.JSON(http.StatusForbidden, denialBody{
			Error:  de.Reason.Message(),
			Code:   de.Reason,
			Reason: de.Reason,
			Action: de.Action,
			State:  de.State,
		})
		return
	}

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, models.ErrorResponse(validation.Error(), "validation"))
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse("not found", "not-found"))
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, models.ErrorResponse("authentication required", "unauthorized"))
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, models.ErrorResponse("you are not allowed to do this", "forbidden"))
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, models.ErrorResponse(conflict.Error(), "conflict"))
	case errors.As(err, &transient):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse("a backing service is unavailable, try again", "unavailable"))
	case errors.Is(err, context.Canceled):
		// client went away; nothing useful to send
		c.Status(499)
	default:
		_ = c.Error(err)
		requestID, _ := c.Get("request_id")
		c.JSON(http.StatusInternalServerError, gin.H{
			"success":    false,
			"error":      "Internal server error",
			"request_id": requestID,
		})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse(msg, "validation"))
}

func pathID(c *gin.Context, name string) (string, bool) {
	id := helpers.CleanID(c.Param(name))
	if id == "" {
		badRequest(c, name+" is required")
		return "", false
	}
	return id, true
}

func pagination(c *gin.Context) (int, int, bool) {
	limit, offset, ok := helpers.ParsePagination(c.Query("limit"), c.Query("offset"), defaultPageSize, maxPageSize)
	if !ok {
		badRequest(c, "invalid limit or offset")
	}
	return limit, offset, ok
}
