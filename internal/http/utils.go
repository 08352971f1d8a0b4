package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inthisone/dashcore/internal/domain/ingest"
	"github.com/inthisone/dashcore/internal/shared/types"
)

// statusFor maps domain sentinel errors onto HTTP status codes. Anything
// unrecognized is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnknownWidget),
		errors.Is(err, types.ErrUnknownPlugin),
		errors.Is(err, ingest.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, types.ErrAlreadyDisposed),
		errors.Is(err, types.ErrDuplicateID),
		errors.Is(err, types.ErrUnsupportedVersion):
		return http.StatusConflict
	case errors.Is(err, types.ErrInvalidManifest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrFetchFailed),
		errors.Is(err, types.ErrParseFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the uniform error envelope with the mapped status
func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
