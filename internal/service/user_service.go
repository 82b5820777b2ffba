package service

import (
	"context"
	"mime/multipart"
	"strings"

	"ripple/internal/media"
	"ripple/internal/middleware"
	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
	media    media.Store
}

type UpdateProfileInput struct {
	UserID     uint
	FullName   string
	Username   string
	ProfilePic *multipart.FileHeader
}

func NewUserService(userRepo repository.UserRepository, mediaStore media.Store) *UserService {
	return &UserService{userRepo: userRepo, media: mediaStore}
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.FullName != "" {
		user.FullName = in.FullName
	}
	if in.Username != "" {
		username := strings.ToLower(in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		if username != user.Username {
			existing, err := s.userRepo.GetByUsername(ctx, username)
			if err != nil {
				return nil, models.NewInternalError(err)
			}
			if existing != nil {
				return nil, models.NewValidationError("Username is already taken")
			}
			user.Username = username
		}
	}

	oldPic := user.ProfilePic
	if in.ProfilePic != nil {
		upload, err := media.FromMultipart(in.ProfilePic)
		if err != nil {
			return nil, err
		}
		newURL, err := s.media.Upload(ctx, upload)
		if err != nil {
			return nil, models.NewUploadError(err)
		}
		user.ProfilePic = newURL
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, models.NewInternalError(err)
	}

	if in.ProfilePic != nil && oldPic != "" && oldPic != user.ProfilePic {
		if err := s.media.Delete(ctx, oldPic); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to release replaced profile picture",
				"user_id", user.ID, "url", oldPic, "error", err)
		}
	}

	return user, nil
}
