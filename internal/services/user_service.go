package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joshua-takyi/eventradar/internal/helpers"
	"github.com/joshua-takyi/eventradar/internal/media"
	"github.com/joshua-takyi/eventradar/internal/models"
)

type UserService struct {
	profiles   models.ProfileRepo
	moderation models.ModerationRepo
	uploader   media.Uploader
	logger     *slog.Logger
}

func NewUserService(profiles models.ProfileRepo, moderation models.ModerationRepo, uploader media.Uploader, logger *slog.Logger) *UserService {
	return &UserService{
		profiles:   profiles,
		moderation: moderation,
		uploader:   uploader,
		logger:     logger,
	}
}

// ViewerFromClaims builds the request viewer. The profile row is the source
// of truth for role and city; token metadata is used when it is missing.
func (us *UserService) ViewerFromClaims(ctx context.Context, claims *helpers.Claims) models.Viewer {
	v := models.Viewer{
		UserID: claims.UserID(),
		Role:   models.Role(claims.AppRole()),
		City:   claims.DeclaredCity(),
	}
	if us.profiles != nil {
		p, err := us.profiles.GetProfile(ctx, v.UserID)
		switch {
		case err == nil:
			v.Role = p.Role
			if p.City != "" {
				v.City = p.City
			}
		case errors.Is(err, models.ErrNotFound):
			us.logger.Info("profile not found, using token claims", "user_id", v.UserID)
		default:
			us.logger.Warn("profile lookup failed, using token claims", "user_id", v.UserID, "error", err)
		}
	}
	switch v.Role {
	case models.RoleUser, models.RoleOrganizer, models.RoleAdmin:
	default:
		v.Role = models.RoleUser
	}
	return v
}

func (us *UserService) Profile(ctx context.Context, viewer models.Viewer) (*models.Profile, error) {
	if err := requireAuth(viewer); err != nil {
		return nil, err
	}
	if us.profiles == nil {
		return &models.Profile{ID: viewer.UserID, Role: viewer.Role, City: viewer.City}, nil
	}
	return us.profiles.GetProfile(ctx, viewer.UserID)
}

// Ban removes every row referencing userID in one transaction, then deletes
// stored images and the auth profile on a best-effort basis.
func (us *UserService) Ban(ctx context.Context, viewer models.Viewer, userID string) error {
	if err := requireAuth(viewer); err != nil {
		return err
	}
	if !viewer.IsAdmin() {
		return models.ErrForbidden
	}
	if userID == "" {
		return models.NewValidationError("user", "is required")
	}
	if userID == viewer.UserID {
		return models.NewValidationError("user", "admins cannot ban themselves")
	}

	refs, err := us.moderation.PurgeUser(ctx, userID)
	if err != nil {
		return err
	}
	removeObjects(ctx, us.uploader, refs, us.logger)

	if us.profiles != nil {
		if err := us.profiles.DeleteUser(context.WithoutCancel(ctx), userID); err != nil {
			us.logger.Warn("failed to delete banned user's profile", "user_id", userID, "error", err)
		}
	}
	us.logger.Info("user banned", "user_id", userID, "by", viewer.UserID, "images", len(refs))
	return nil
}
