package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"ripple/internal/config"
	"ripple/internal/database"
	"ripple/internal/media"
	"ripple/internal/models"
	"ripple/internal/repository"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	uploads int
	deleted []string
}

func (m *memoryStore) Upload(_ context.Context, _ *media.Upload) (string, error) {
	m.uploads++
	return fmt.Sprintf("http://media.test/posts/%d.png", m.uploads), nil
}

func (m *memoryStore) Delete(_ context.Context, url string) error {
	m.deleted = append(m.deleted, url)
	return nil
}

// setupPostAPI wires the post routes against an in-memory database, with
// authentication stubbed to a fixed user set via the X-Test-User header.
func setupPostAPI(t *testing.T) (*fiber.App, *memoryStore, []*models.User) {
	t.Helper()

	db, err := database.ConnectTest()
	require.NoError(t, err)

	store := &memoryStore{}
	s := &Server{
		config:   &config.Config{JWTSecret: "test_secret"},
		db:       db,
		userRepo: repository.NewUserRepository(db),
		postRepo: repository.NewPostRepository(db),
	}
	s.postService = service.NewPostService(s.postRepo, store)

	users := make([]*models.User, 2)
	for i := range users {
		u := &models.User{
			FullName: fmt.Sprintf("User %d", i+1),
			Username: fmt.Sprintf("user%d", i+1),
			Email:    fmt.Sprintf("user%d@example.com", i+1),
			Password: "hashed",
		}
		require.NoError(t, s.userRepo.Create(context.Background(), u))
		users[i] = u
	}

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		var id uint
		_, err := fmt.Sscanf(c.Get("X-Test-User", "1"), "%d", &id)
		require.NoError(t, err)
		c.Locals("userID", users[id-1].ID)
		return c.Next()
	})
	app.Post("/posts/create", s.CreatePost)
	app.Get("/posts/feed", s.GetFeed)
	app.Put("/posts/like/:id", s.LikePost)
	app.Post("/posts/comment/:id", s.CommentPost)
	app.Put("/posts/:id", s.UpdatePost)
	app.Delete("/posts/:id", s.DeletePost)

	return app, store, users
}

type multipartBody struct {
	buf bytes.Buffer
	w   *multipart.Writer
}

func newMultipartBody(_ *testing.T) *multipartBody {
	b := &multipartBody{}
	b.w = multipart.NewWriter(&b.buf)
	return b
}

func (b *multipartBody) field(t *testing.T, name, value string) *multipartBody {
	t.Helper()
	require.NoError(t, b.w.WriteField(name, value))
	return b
}

func (b *multipartBody) pngFile(t *testing.T, field string) *multipartBody {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	part, err := b.w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="%s"; filename="pic.png"`, field)},
		"Content-Type":        {"image/png"},
	})
	require.NoError(t, err)
	_, err = part.Write(img.Bytes())
	require.NoError(t, err)
	return b
}

func (b *multipartBody) request(t *testing.T, method, path string) *http.Request {
	t.Helper()
	require.NoError(t, b.w.Close())
	req := httptest.NewRequest(method, path, &b.buf)
	req.Header.Set("Content-Type", b.w.FormDataContentType())
	return req
}

func decodePost(t *testing.T, resp *http.Response) models.Post {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var post models.Post
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
	return post
}

func TestCreatePost(t *testing.T) {
	app, store, users := setupPostAPI(t)

	t.Run("text only", func(t *testing.T) {
		req := newMultipartBody(t).field(t, "content", "hello feed").request(t, http.MethodPost, "/posts/create")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		post := decodePost(t, resp)
		assert.Equal(t, "hello feed", post.Content)
		assert.Equal(t, users[0].ID, post.UserID)
		assert.Empty(t, post.ImageURL)
	})

	t.Run("with image", func(t *testing.T) {
		req := newMultipartBody(t).
			field(t, "content", "with a picture").
			pngFile(t, "image").
			request(t, http.MethodPost, "/posts/create")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		post := decodePost(t, resp)
		assert.NotEmpty(t, post.ImageURL)
		assert.Equal(t, 1, store.uploads)
	})

	t.Run("empty content", func(t *testing.T) {
		req := newMultipartBody(t).field(t, "content", "   ").request(t, http.MethodPost, "/posts/create")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("two image files", func(t *testing.T) {
		req := newMultipartBody(t).
			field(t, "content", "greedy").
			pngFile(t, "image").
			pngFile(t, "image").
			request(t, http.MethodPost, "/posts/create")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong file type", func(t *testing.T) {
		b := newMultipartBody(t).field(t, "content", "not an image")
		part, err := b.w.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {`form-data; name="image"; filename="notes.txt"`},
			"Content-Type":        {"text/plain"},
		})
		require.NoError(t, err)
		_, err = part.Write([]byte("plain text"))
		require.NoError(t, err)

		resp, err := app.Test(b.request(t, http.MethodPost, "/posts/create"))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetFeed_EmptyFeedIsAnArray(t *testing.T) {
	app, _, _ := setupPostAPI(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts/feed", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(body)))
}

func TestFeedAndInteractions(t *testing.T) {
	app, _, users := setupPostAPI(t)

	createPost := func(content string) models.Post {
		req := newMultipartBody(t).field(t, "content", content).request(t, http.MethodPost, "/posts/create")
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		return decodePost(t, resp)
	}

	first := createPost("first")
	second := createPost("second")

	t.Run("feed lists newest first", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts/feed", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var feed []models.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&feed))
		require.Len(t, feed, 2)
		assert.Equal(t, second.ID, feed[0].ID)
		assert.Equal(t, first.ID, feed[1].ID)
	})

	t.Run("like toggles", func(t *testing.T) {
		path := fmt.Sprintf("/posts/like/%d", first.ID)

		resp, err := app.Test(httptest.NewRequest(http.MethodPut, path, nil))
		require.NoError(t, err)
		post := decodePost(t, resp)
		assert.Equal(t, []uint{users[0].ID}, post.LikeUserIDs)

		resp, err = app.Test(httptest.NewRequest(http.MethodPut, path, nil))
		require.NoError(t, err)
		post = decodePost(t, resp)
		assert.Empty(t, post.LikeUserIDs)
	})

	t.Run("comment appends", func(t *testing.T) {
		body, _ := json.Marshal(map[string]string{"content": "nice post"})
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/posts/comment/%d", first.ID), bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-User", "2")

		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		post := decodePost(t, resp)
		require.Len(t, post.Comments, 1)
		assert.Equal(t, "nice post", post.Comments[0].Content)
		assert.Equal(t, users[1].ID, post.Comments[0].UserID)
	})

	t.Run("non-owner cannot update", func(t *testing.T) {
		req := newMultipartBody(t).field(t, "content", "hijacked").
			request(t, http.MethodPut, fmt.Sprintf("/posts/%d", first.ID))
		req.Header.Set("X-Test-User", "2")

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("owner updates content", func(t *testing.T) {
		req := newMultipartBody(t).field(t, "content", "first, edited").
			request(t, http.MethodPut, fmt.Sprintf("/posts/%d", first.ID))
		resp, err := app.Test(req)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		post := decodePost(t, resp)
		assert.Equal(t, "first, edited", post.Content)
	})

	t.Run("non-owner cannot delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/posts/%d", second.ID), nil)
		req.Header.Set("X-Test-User", "2")
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("owner deletes", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/posts/%d", second.ID), nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp2, err := app.Test(httptest.NewRequest(http.MethodPut, fmt.Sprintf("/posts/like/%d", second.ID), nil))
		require.NoError(t, err)
		defer func() { _ = resp2.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/posts/like/abc", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown post", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodPut, "/posts/like/99999", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}
