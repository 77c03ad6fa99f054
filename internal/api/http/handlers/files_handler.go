package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/civicpulse/hub/internal/storage"
	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// FilesHandler streams complaint images out of object storage.
type FilesHandler struct {
	images *storage.Images
}

// NewFilesHandler constructs handler.
func NewFilesHandler(images *storage.Images) *FilesHandler {
	return &FilesHandler{images: images}
}

// Download handles GET /api/files/download/:path. Unknown or malformed keys answer
// 404 with an empty body.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("path"))
	if err != nil {
		return c.SendStatus(http.StatusNotFound)
	}
	obj, err := h.images.Open(c.UserContext(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return c.SendStatus(http.StatusNotFound)
		}
		return apperrors.NewUnavailable("image storage unavailable", err)
	}
	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+key+`"`)
	return c.SendStream(obj.Body, int(obj.Size))
}
