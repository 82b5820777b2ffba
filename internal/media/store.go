// Package media implements the object storage layer for uploaded images.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	_ "image/gif"  // register GIF decoder
	_ "image/png"  // register PNG decoder

	"ripple/internal/models"

	xdraw "golang.org/x/image/draw"
)

const (
	// MaxUploadBytes is the hard ceiling for a single image upload.
	MaxUploadBytes = 5 * 1024 * 1024

	// FileField is the only multipart field accepted for image uploads.
	FileField = "image"

	// ThumbnailMaxSize bounds the longest edge of the generated thumbnail.
	ThumbnailMaxSize = 256

	thumbnailJPEGQuality = 80
)

// allowedMIMETypes is the upload whitelist. image/jpg is not a registered
// MIME type but browsers send it, so it is accepted and normalized.
var allowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/jpg":  {},
}

// Store is the media storage boundary: it accepts validated image bytes and
// returns a durable URL, and deletes objects by that URL.
type Store interface {
	Upload(ctx context.Context, u *Upload) (string, error)
	Delete(ctx context.Context, url string) error
}

// Upload is a validated image ready for storage.
type Upload struct {
	Filename    string
	ContentType string
	Content     []byte
	// Thumbnail is a down-scaled JPEG variant stored alongside the original.
	Thumbnail []byte
}

// FromMultipart reads and validates the uploaded file. Size and MIME type
// are checked before any bytes reach the store, so an oversized or
// non-image upload never causes a media store call.
func FromMultipart(fh *multipart.FileHeader) (*Upload, error) {
	if fh.Size > MaxUploadBytes {
		return nil, models.NewValidationError("File size too large. Maximum size is 5MB")
	}

	declared := normalizeContentType(fh.Header.Get("Content-Type"))
	if _, ok := allowedMIMETypes[declared]; !ok {
		return nil, models.NewValidationError(
			"Invalid file type. Allowed types are: image/jpeg, image/png, image/gif, image/jpg")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, models.NewValidationError("Unreadable upload")
	}
	defer f.Close()

	buf := &bytes.Buffer{}
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, models.NewValidationError("Unreadable upload")
	}
	content := buf.Bytes()
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > MaxUploadBytes {
		return nil, models.NewValidationError("File size too large. Maximum size is 5MB")
	}

	// The declared type is not trusted on its own; sniff the content too.
	detected := http.DetectContentType(content)
	if _, ok := allowedMIMETypes[detected]; !ok {
		return nil, models.NewValidationError(
			"Invalid file type. Allowed types are: image/jpeg, image/png, image/gif, image/jpg")
	}

	up := &Upload{
		Filename:    fh.Filename,
		ContentType: detected,
		Content:     content,
	}
	if thumb, err := buildThumbnail(content); err == nil {
		up.Thumbnail = thumb
	}
	return up, nil
}

// buildThumbnail decodes the image and scales it down to the thumbnail
// bound, re-encoded as JPEG. Animated GIFs lose animation in the thumbnail;
// the original object is untouched.
func buildThumbnail(content []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= ThumbnailMaxSize && h <= ThumbnailMaxSize {
		w, h = b.Dx(), b.Dy()
	} else if w >= h {
		h = h * ThumbnailMaxSize / w
		w = ThumbnailMaxSize
	} else {
		w = w * ThumbnailMaxSize / h
		h = ThumbnailMaxSize
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)

	out := &bytes.Buffer{}
	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func normalizeContentType(ct string) string {
	ct = strings.ToLower(strings.TrimSpace(ct))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct
}

// extForContentType maps an accepted MIME type to an object name extension.
func extForContentType(ct string) string {
	switch ct {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}

// objectNameFromURL recovers the object key from a durable URL produced by
// this package. Returns "" when the URL does not reference this store.
func objectNameFromURL(publicBase, rawURL string) string {
	base := strings.TrimRight(publicBase, "/")
	if base == "" || !strings.HasPrefix(rawURL, base+"/") {
		return ""
	}
	name := strings.TrimPrefix(rawURL, base+"/")
	// Durable URLs are flat "posts/<uuid>.<ext>" keys; anything else is foreign.
	if name == "" || path.Clean(name) != name || strings.HasPrefix(name, "..") {
		return ""
	}
	return name
}

// ThumbnailObjectName derives the thumbnail key for an original object key.
func ThumbnailObjectName(objectName string) string {
	dir, file := path.Split(objectName)
	ext := path.Ext(file)
	return fmt.Sprintf("%sthumbs/%s.jpg", dir, strings.TrimSuffix(file, ext))
}
