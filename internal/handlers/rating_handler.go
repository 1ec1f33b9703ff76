package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventradar/internal/middleware"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/services"
)

type ratingBody struct {
	Value *float64 `json:"value" binding:"required"`
}

func SubmitRating(rs *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body ratingBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "value is required")
			return
		}
		rating, err := rs.Submit(c.Request.Context(), middleware.ViewerFrom(c), id, *body.Value)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(rating, "Rating submitted"))
	}
}

func UpdateRating(rs *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body ratingBody
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "value is required")
			return
		}
		rating, err := rs.Update(c.Request.Context(), middleware.ViewerFrom(c), id, *body.Value)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(rating, "Rating updated"))
	}
}

func DeleteRating(rs *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := rs.Delete(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Rating deleted"))
	}
}

func RatingSummary(rs *services.RatingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		summary, err := rs.Summary(c.Request.Context(), middleware.ViewerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(summary, ""))
	}
}
