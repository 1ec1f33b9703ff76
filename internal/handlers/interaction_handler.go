package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/eventradar/internal/middleware"
	"github.com/joshua-takyi/eventradar/internal/models"
	"github.com/joshua-takyi/eventradar/internal/services"
)

func MarkGoing(is *services.InteractionService) gin.HandlerFunc {
	return goingHandler(is.MarkGoing)
}

func UnmarkGoing(is *services.InteractionService) gin.HandlerFunc {
	return goingHandler(is.UnmarkGoing)
}

func ToggleGoing(is *services.InteractionService) gin.HandlerFunc {
	return goingHandler(is.Toggle)
}

type goingOp func(ctx context.Context, viewer models.Viewer, eventID string) (*services.GoingState, error)

func goingHandler(op goingOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		state, err := op(c.Request.Context(), middleware.ViewerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(state, ""))
	}
}

func ListAttendees(is *services.InteractionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		attendees, err := is.ListAttendees(c.Request.Context(), middleware.ViewerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(attendees, ""))
	}
}

func Eligibility(is *services.InteractionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		ev, err := is.Eligibility(c.Request.Context(), middleware.ViewerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(ev, ""))
	}
}

func AddComment(is *services.InteractionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		var body struct {
			Body string `json:"body" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "body is required")
			return
		}
		comment, err := is.AddComment(c.Request.Context(), middleware.ViewerFrom(c), id, body.Body)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(comment, "Comment added"))
	}
}

func DeleteComment(is *services.InteractionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := is.DeleteComment(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Comment deleted"))
	}
}

func ListComments(is *services.InteractionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		limit, offset, ok := pagination(c)
		if !ok {
			return
		}
		comments, total, err := is.ListComments(c.Request.Context(), middleware.ViewerFrom(c), id, limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PaginatedResponse(comments, limit, offset, total))
	}
}

// UploadImage takes a multipart form with the photo in the "file" field.
func UploadImage(is *services.InteractionService, maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		// leave room for the multipart envelope
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)

		fh, err := c.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse("file is too large", "validation"))
				return
			}
			badRequest(c, "file is required")
			return
		}
		f, err := fh.Open()
		if err != nil {
			badRequest(c, "could not read file")
			return
		}
		defer f.Close()

		img, err := is.UploadImage(c.Request.Context(), middleware.ViewerFrom(c), id, services.ImageUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, models.SuccessResponse(img, "Image uploaded"))
	}
}

func DeleteImage(is *services.InteractionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		if err := is.DeleteImage(c.Request.Context(), middleware.ViewerFrom(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(nil, "Image deleted"))
	}
}

func ListImages(is *services.InteractionService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c, "id")
		if !ok {
			return
		}
		images, err := is.ListImages(c.Request.Context(), middleware.ViewerFrom(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.SuccessResponse(images, ""))
	}
}
