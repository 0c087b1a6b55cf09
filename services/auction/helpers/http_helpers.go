package helpers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"auction-house/internal/auctionerrors"
	"auction-house/utils"
)

// HandleBindError responds to malformed request payloads.
func HandleBindError(c *gin.Context, err error) {
	utils.Warn("Failed to bind request payload", map[string]any{
		"path":  c.Request.URL.Path,
		"error": err.Error(),
	})
	utils.JSONError(c, http.StatusBadRequest, err, "invalid request payload")
}

// MapErrorToHTTP translates domain errors into HTTP responses.
func MapErrorToHTTP(c *gin.Context, err error, operation string) {
	switch {
	case errors.Is(err, auctionerrors.ErrValidation):
		utils.JSONError(c, http.StatusBadRequest, err, operation+" rejected")
	case errors.Is(err, auctionerrors.ErrNotFound):
		utils.JSONError(c, http.StatusNotFound, err, "resource not found")
	case errors.Is(err, auctionerrors.ErrStateTransition):
		utils.JSONError(c, http.StatusBadRequest, err, "transition not allowed")
	case errors.Is(err, auctionerrors.ErrBidConflict):
		utils.JSONError(c, http.StatusConflict, err, "bid lost the race, refresh and retry")
	default:
		utils.Error("Unexpected error during "+operation, map[string]any{
			"error": err.Error(),
		})
		utils.JSONError(c, http.StatusInternalServerError, err, "internal server error")
	}
}

// LogSuccess records a completed operation with its context fields.
func LogSuccess(operation string, fields map[string]any) {
	utils.Info(operation+" succeeded", fields)
}
