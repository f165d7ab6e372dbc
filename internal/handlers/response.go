package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"spreadsheet-data-cleaner/internal/models"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RespondError writes an error body. err, when non-nil, becomes the details.
func RespondError(c *gin.Context, status int, message string, err error) {
	body := ErrorResponse{Error: message}
	if err != nil {
		body.Details = err.Error()
	}
	c.JSON(status, body)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	var uploadErr *models.UploadError
	switch {
	case errors.As(err, &uploadErr):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotConfigured):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
