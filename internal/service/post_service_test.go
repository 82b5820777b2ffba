package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"ripple/internal/media"
	"ripple/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn     func(context.Context, *models.Post) error
	getByIDFn    func(context.Context, uint) (*models.Post, error)
	listFeedFn   func(context.Context) ([]*models.Post, error)
	updateFn     func(context.Context, *models.Post) error
	deleteFn     func(context.Context, uint) error
	isLikedFn    func(context.Context, uint, uint) (bool, error)
	likeFn       func(context.Context, uint, uint) error
	unlikeFn     func(context.Context, uint, uint) error
	addCommentFn func(context.Context, *models.Comment) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) ListFeed(ctx context.Context) ([]*models.Post, error) {
	return s.listFeedFn(ctx)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	return s.isLikedFn(ctx, userID, postID)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) error {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) error {
	return s.unlikeFn(ctx, userID, postID)
}
func (s *postRepoStub) AddComment(ctx context.Context, comment *models.Comment) error {
	return s.addCommentFn(ctx, comment)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:     func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:    func(_ context.Context, id uint) (*models.Post, error) { return &models.Post{ID: id}, nil },
		listFeedFn:   func(_ context.Context) ([]*models.Post, error) { return nil, nil },
		updateFn:     func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:     func(_ context.Context, _ uint) error { return nil },
		isLikedFn:    func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		likeFn:       func(_ context.Context, _, _ uint) error { return nil },
		unlikeFn:     func(_ context.Context, _, _ uint) error { return nil },
		addCommentFn: func(_ context.Context, _ *models.Comment) error { return nil },
	}
}

// fakeMediaStore records calls; it implements media.Store.
type fakeMediaStore struct {
	uploads   int
	deleted   []string
	uploadErr error
	deleteErr error
}

func (f *fakeMediaStore) Upload(_ context.Context, _ *media.Upload) (string, error) {
	f.uploads++
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	return fmt.Sprintf("http://media.test/posts/object-%d.png", f.uploads), nil
}

func (f *fakeMediaStore) Delete(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return f.deleteErr
}

// pngFileHeader builds a real multipart file header containing a valid PNG.
func pngFileHeader(t *testing.T) *multipart.FileHeader {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return fileHeader(t, "photo.png", "image/png", img.Bytes())
}

func fileHeader(t *testing.T, name, contentType string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, name))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	return form.File["image"][0]
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{}
	repo := noopPostRepo()
	created := 0
	repo.createFn = func(_ context.Context, _ *models.Post) error { created++; return nil }
	svc := NewPostService(repo, store)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreatePostInput
	}{
		{"empty content", CreatePostInput{UserID: 1}},
		{"whitespace content", CreatePostInput{UserID: 1, Content: "   \n\t "}},
		{"content too long", CreatePostInput{UserID: 1, Content: strings.Repeat("x", 50001)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreatePost(ctx, tt.input)
			assertAppErrorCode(t, err, models.CodeValidation)
		})
	}
	assert.Zero(t, created, "no post may be persisted on validation failure")
	assert.Zero(t, store.uploads, "no media call may happen on validation failure")
}

func TestPostService_CreatePost_WithImage(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{}
	repo := noopPostRepo()
	var persisted *models.Post
	repo.createFn = func(_ context.Context, p *models.Post) error {
		persisted = p
		p.ID = 7
		return nil
	}
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, Content: persisted.Content, ImageURL: persisted.ImageURL, UserID: persisted.UserID}, nil
	}
	svc := NewPostService(repo, store)

	post, err := svc.CreatePost(context.Background(), CreatePostInput{
		UserID:  3,
		Content: "look at this",
		Image:   pngFileHeader(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.uploads)
	assert.Equal(t, uint(3), post.UserID)
	assert.NotEmpty(t, post.ImageURL)
}

func TestPostService_CreatePost_OversizedImageRejectedBeforeStore(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{}
	repo := noopPostRepo()
	created := 0
	repo.createFn = func(_ context.Context, _ *models.Post) error { created++; return nil }
	svc := NewPostService(repo, store)

	// Declared size above the cap; validation must trip before the file is
	// even opened.
	oversized := &multipart.FileHeader{
		Filename: "big.jpg",
		Size:     6 * 1024 * 1024,
		Header:   textproto.MIMEHeader{"Content-Type": []string{"image/jpeg"}},
	}

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		UserID:  1,
		Content: "too big",
		Image:   oversized,
	})
	assertAppErrorCode(t, err, models.CodeValidation)
	assert.Zero(t, store.uploads)
	assert.Zero(t, created)
}

func TestPostService_CreatePost_UploadFailureAbortsCreate(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{uploadErr: errors.New("store down")}
	repo := noopPostRepo()
	created := 0
	repo.createFn = func(_ context.Context, _ *models.Post) error { created++; return nil }
	svc := NewPostService(repo, store)

	_, err := svc.CreatePost(context.Background(), CreatePostInput{
		UserID:  1,
		Content: "hello",
		Image:   pngFileHeader(t),
	})
	assertAppErrorCode(t, err, models.CodeUpload)
	assert.Zero(t, created, "upload failure must not persist a partial post")
}

func TestPostService_UpdatePost_OwnerOnly(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 10, Content: "original"}, nil
	}
	updated := 0
	repo.updateFn = func(_ context.Context, _ *models.Post) error { updated++; return nil }
	svc := NewPostService(repo, &fakeMediaStore{})

	_, err := svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 99, PostID: 1, Content: "hijack"})
	assertAppErrorCode(t, err, models.CodeUnauthorized)
	assert.Zero(t, updated, "non-owner update must leave the post unchanged")
}

func TestPostService_UpdatePost_NotFound(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return nil, models.NewNotFoundError("Post", id)
	}
	svc := NewPostService(repo, &fakeMediaStore{})

	_, err := svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 1, PostID: 404, Content: "x"})
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestPostService_UpdatePost_ReplacesImageAfterNewUploadSucceeds(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{}
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 1, Content: "old", ImageURL: "http://media.test/posts/old.png"}, nil
	}
	var saved *models.Post
	repo.updateFn = func(_ context.Context, p *models.Post) error { saved = p; return nil }
	svc := NewPostService(repo, store)

	_, err := svc.UpdatePost(context.Background(), UpdatePostInput{
		UserID: 1, PostID: 5, Content: "new", Image: pngFileHeader(t),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, store.uploads)
	require.NotNil(t, saved)
	assert.NotEqual(t, "http://media.test/posts/old.png", saved.ImageURL)
	assert.Equal(t, []string{"http://media.test/posts/old.png"}, store.deleted,
		"old image is released only after the replacement is stored")
}

func TestPostService_UpdatePost_FailedUploadKeepsOldImage(t *testing.T) {
	t.Parallel()

	store := &fakeMediaStore{uploadErr: errors.New("store down")}
	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 1, ImageURL: "http://media.test/posts/old.png"}, nil
	}
	updated := 0
	repo.updateFn = func(_ context.Context, _ *models.Post) error { updated++; return nil }
	svc := NewPostService(repo, store)

	_, err := svc.UpdatePost(context.Background(), UpdatePostInput{
		UserID: 1, PostID: 5, Content: "new", Image: pngFileHeader(t),
	})
	assertAppErrorCode(t, err, models.CodeUpload)
	assert.Zero(t, updated)
	assert.Empty(t, store.deleted, "a failed replacement must not destroy the old image")
}

func TestPostService_DeletePost(t *testing.T) {
	t.Parallel()

	t.Run("owner delete releases media best-effort", func(t *testing.T) {
		store := &fakeMediaStore{deleteErr: errors.New("object gone")}
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1, ImageURL: "http://media.test/posts/x.png"}, nil
		}
		deleted := 0
		repo.deleteFn = func(_ context.Context, _ uint) error { deleted++; return nil }
		svc := NewPostService(repo, store)

		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 2})
		assert.NoError(t, err, "media delete failure is logged, not surfaced")
		assert.Equal(t, 1, deleted)
		assert.Equal(t, []string{"http://media.test/posts/x.png"}, store.deleted)
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1}, nil
		}
		deleted := 0
		repo.deleteFn = func(_ context.Context, _ uint) error { deleted++; return nil }
		svc := NewPostService(repo, &fakeMediaStore{})

		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 2, PostID: 2})
		assertAppErrorCode(t, err, models.CodeUnauthorized)
		assert.Zero(t, deleted)
	})

	t.Run("unknown post", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		svc := NewPostService(repo, &fakeMediaStore{})

		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 404})
		assertAppErrorCode(t, err, models.CodeNotFound)
	})
}

func TestPostService_ToggleLike(t *testing.T) {
	t.Parallel()

	t.Run("adds when absent, removes when present", func(t *testing.T) {
		repo := noopPostRepo()
		liked := false
		repo.isLikedFn = func(_ context.Context, _, _ uint) (bool, error) { return liked, nil }
		repo.likeFn = func(_ context.Context, _, _ uint) error { liked = true; return nil }
		repo.unlikeFn = func(_ context.Context, _, _ uint) error { liked = false; return nil }
		svc := NewPostService(repo, &fakeMediaStore{})
		ctx := context.Background()

		_, err := svc.ToggleLike(ctx, 1, 2)
		require.NoError(t, err)
		assert.True(t, liked)

		// Toggling twice restores the original state.
		_, err = svc.ToggleLike(ctx, 1, 2)
		require.NoError(t, err)
		assert.False(t, liked)
	})

	t.Run("unknown post", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		svc := NewPostService(repo, &fakeMediaStore{})

		_, err := svc.ToggleLike(context.Background(), 1, 404)
		assertAppErrorCode(t, err, models.CodeNotFound)
	})
}

func TestPostService_AddComment(t *testing.T) {
	t.Parallel()

	t.Run("empty content", func(t *testing.T) {
		svc := NewPostService(noopPostRepo(), &fakeMediaStore{})
		_, err := svc.AddComment(context.Background(), AddCommentInput{UserID: 1, PostID: 2, Content: "  "})
		assertAppErrorCode(t, err, models.CodeValidation)
	})

	t.Run("appends to the post", func(t *testing.T) {
		repo := noopPostRepo()
		var added *models.Comment
		repo.addCommentFn = func(_ context.Context, c *models.Comment) error { added = c; return nil }
		svc := NewPostService(repo, &fakeMediaStore{})

		_, err := svc.AddComment(context.Background(), AddCommentInput{UserID: 4, PostID: 9, Content: "nice"})
		require.NoError(t, err)
		require.NotNil(t, added)
		assert.Equal(t, uint(4), added.UserID)
		assert.Equal(t, uint(9), added.PostID)
		assert.Equal(t, "nice", added.Content)
	})

	t.Run("unknown post", func(t *testing.T) {
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id uint) (*models.Post, error) {
			return nil, models.NewNotFoundError("Post", id)
		}
		svc := NewPostService(repo, &fakeMediaStore{})

		_, err := svc.AddComment(context.Background(), AddCommentInput{UserID: 1, PostID: 404, Content: "hi"})
		assertAppErrorCode(t, err, models.CodeNotFound)
	})
}
