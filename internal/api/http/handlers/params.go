package handlers

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/civicpulse/hub/pkg/util/errorutil"
)

// int64Param parses a positive numeric path parameter.
func int64Param(c *fiber.Ctx, name string) (int64, error) {
	raw := c.Params(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid %s", name), map[string]any{name: raw})
	}
	return id, nil
}

// parseIDList reads a comma-joined id list such as "7,9". Blank entries are skipped.
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, apperrors.NewValidationError("invalid workerIds", map[string]any{"workerIds": raw})
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// formFileBytes returns the uploaded file content, or nil when the field is absent.
func formFileBytes(c *fiber.Ctx, field string) ([]byte, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return data, nil
}
