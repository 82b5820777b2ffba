package service

import (
	"context"
	"mime/multipart"
	"strings"

	"ripple/internal/media"
	"ripple/internal/middleware"
	"ripple/internal/models"
	"ripple/internal/observability"
	"ripple/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// PostService owns the post lifecycle: creation, feed listing, edits,
// deletion, likes and comments. Image handling goes through the media
// store and is always validated before any bytes leave the process.
type PostService struct {
	postRepo repository.PostRepository
	media    media.Store
}

type CreatePostInput struct {
	UserID  uint
	Content string
	Image   *multipart.FileHeader
}

type UpdatePostInput struct {
	UserID  uint
	PostID  uint
	Content string
	Image   *multipart.FileHeader
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

type AddCommentInput struct {
	UserID  uint
	PostID  uint
	Content string
}

func NewPostService(postRepo repository.PostRepository, mediaStore media.Store) *PostService {
	return &PostService{
		postRepo: postRepo,
		media:    mediaStore,
	}
}

const maxContentLen = 50000

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (post *models.Post, err error) {
	span, ctx := observability.NewSpan(ctx, "post.create")
	span.AddAttributes(attribute.Int("user.id", int(in.UserID)))
	defer func() {
		span.SetError(err)
		span.End()
	}()

	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if len(in.Content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}

	var imageURL string
	if in.Image != nil {
		upload, err := media.FromMultipart(in.Image)
		if err != nil {
			return nil, err
		}
		imageURL, err = s.media.Upload(ctx, upload)
		if err != nil {
			return nil, models.NewUploadError(err)
		}
	}

	post = &models.Post{
		Content:  in.Content,
		ImageURL: imageURL,
		UserID:   in.UserID,
	}
	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}

	return s.postRepo.GetByID(ctx, post.ID)
}

func (s *PostService) ListFeed(ctx context.Context) ([]*models.Post, error) {
	return s.postRepo.ListFeed(ctx)
}

func (s *PostService) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	return s.postRepo.GetByID(ctx, id)
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only update your own posts")
	}
	if len(in.Content) > maxContentLen {
		return nil, models.NewValidationError("Content too long (max 50000 characters)")
	}

	oldImageURL := post.ImageURL
	if in.Image != nil {
		upload, err := media.FromMultipart(in.Image)
		if err != nil {
			return nil, err
		}
		// Upload the replacement before touching the row so a store failure
		// leaves the post and its current image intact.
		newURL, err := s.media.Upload(ctx, upload)
		if err != nil {
			return nil, models.NewUploadError(err)
		}
		post.ImageURL = newURL
	}
	if in.Content != "" {
		post.Content = in.Content
	}

	if err := s.postRepo.Update(ctx, post); err != nil {
		return nil, models.NewInternalError(err)
	}

	if in.Image != nil && oldImageURL != "" && oldImageURL != post.ImageURL {
		if err := s.media.Delete(ctx, oldImageURL); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to release replaced image",
				"post_id", post.ID, "url", oldImageURL, "error", err)
		}
	}

	return s.postRepo.GetByID(ctx, in.PostID)
}

func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (err error) {
	span, ctx := observability.NewSpan(ctx, "post.delete")
	span.AddAttributes(attribute.Int("post.id", int(in.PostID)))
	defer func() {
		span.SetError(err)
		span.End()
	}()

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return err
	}
	if post.UserID != in.UserID {
		return models.NewUnauthorizedError("You can only delete your own posts")
	}

	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return models.NewInternalError(err)
	}

	// The row is gone; a failed object removal only leaks storage, so it is
	// logged rather than surfaced.
	if post.ImageURL != "" {
		if err := s.media.Delete(ctx, post.ImageURL); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to release deleted post image",
				"post_id", in.PostID, "url", post.ImageURL, "error", err)
		}
	}
	return nil
}

// ToggleLike flips the caller's like on a post and returns the fresh post.
// Applying it twice restores the original like set.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (*models.Post, error) {
	if _, err := s.postRepo.GetByID(ctx, postID); err != nil {
		return nil, err
	}

	isLiked, err := s.postRepo.IsLiked(ctx, userID, postID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	if isLiked {
		if err := s.postRepo.Unlike(ctx, userID, postID); err != nil {
			return nil, models.NewInternalError(err)
		}
	} else {
		if err := s.postRepo.Like(ctx, userID, postID); err != nil {
			return nil, models.NewInternalError(err)
		}
	}

	return s.postRepo.GetByID(ctx, postID)
}

func (s *PostService) AddComment(ctx context.Context, in AddCommentInput) (*models.Post, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewValidationError("Comment content is required")
	}
	if _, err := s.postRepo.GetByID(ctx, in.PostID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		Content: in.Content,
		UserID:  in.UserID,
		PostID:  in.PostID,
	}
	if err := s.postRepo.AddComment(ctx, comment); err != nil {
		return nil, models.NewInternalError(err)
	}

	return s.postRepo.GetByID(ctx, in.PostID)
}
