package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/robin-raq/collabboard/pkg/errors"
)

// writeError renders err as the JSON error body, translating the
// AppError taxonomy to an HTTP status. Wrapped causes surface in a
// separate details field so the top-level error stays short.
func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		body["error"] = appErr.Message
		if appErr.Err != nil {
			body["details"] = appErr.Err.Error()
		}
	}
	c.JSON(httpStatus(err), body)
}

func httpStatus(err error) int {
	switch {
	case apperrors.IsInvalidInput(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsCancelled(err):
		return http.StatusRequestTimeout
	case apperrors.IsServiceUnavail(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
