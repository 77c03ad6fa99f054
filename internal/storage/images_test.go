package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestImagesSaveAndOpen(t *testing.T) {
	ctx := context.Background()
	images := NewImages(NewMemoryStore())

	key, err := images.Save(ctx, AfterPrefix, pngHeader)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !strings.HasPrefix(key, AfterPrefix) || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key %q", key)
	}

	obj, err := images.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer obj.Body.Close()
	body, _ := io.ReadAll(obj.Body)
	if obj.ContentType != "image/png" || len(body) != len(pngHeader) {
		t.Fatalf("content type %q, %d bytes", obj.ContentType, len(body))
	}
}

func TestImagesSaveRejectsNonImages(t *testing.T) {
	images := NewImages(NewMemoryStore())
	if _, err := images.Save(context.Background(), "", nil); !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("empty: %v", err)
	}
	if _, err := images.Save(context.Background(), "", []byte("plain text body")); !errors.Is(err, ErrUnsupportedImage) {
		t.Fatalf("text: %v", err)
	}
}

func TestImagesOpenRejectsTraversal(t *testing.T) {
	images := NewImages(NewMemoryStore())
	for _, key := range []string{"../etc/passwd", "a/b.png", ""} {
		if _, err := images.Open(context.Background(), key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: %v", key, err)
		}
	}
	if _, err := images.Open(context.Background(), "missing.png"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("missing: %v", err)
	}
}
