package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrEmptyImage       = errors.New("image is empty")
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrInvalidKey       = errors.New("invalid image path")
)

// AfterPrefix marks completion photos.
const AfterPrefix = "after_"

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+\.[a-z]{3,4}$`)

// Images stores complaint photos under generated keys.
type Images struct {
	store Store
}

func NewImages(store Store) *Images {
	return &Images{store: store}
}

// Save sniffs the content type, rejects non-images and stores data under
// prefix + uuid + extension. The returned key is what complaints reference.
func (i *Images) Save(ctx context.Context, prefix string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyImage
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, contentType)
	}
	key := prefix + uuid.NewString() + ext
	if err := i.store.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Open returns the stored image. The content type falls back to the key's extension.
func (i *Images) Open(ctx context.Context, key string) (*Object, error) {
	key = strings.TrimSpace(key)
	if !keyPattern.MatchString(key) {
		return nil, ErrInvalidKey
	}
	obj, err := i.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if obj.ContentType == "" || obj.ContentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(path.Ext(key)); byExt != "" {
			obj.ContentType = byExt
		}
	}
	return obj, nil
}

// Delete removes a stored image. Removing a missing key is not an error.
func (i *Images) Delete(ctx context.Context, key string) error {
	return i.store.Delete(ctx, key)
}

// Ping reports storage reachability for readiness.
func (i *Images) Ping(ctx context.Context) error {
	return i.store.Ping(ctx)
}
