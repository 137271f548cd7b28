// Package httperr maps domain errors to HTTP status codes at the transport
// boundary.
package httperr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/alanyang/annotation-desk/internal/domain/artifact"
	"github.com/alanyang/annotation-desk/internal/domain/assignment"
	"github.com/alanyang/annotation-desk/internal/domain/raster"
)

// Status returns the HTTP status for err. Unrecognised errors are 500.
func Status(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, assignment.ErrUnknownWorker), errors.Is(err, artifact.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, assignment.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, artifact.ErrExtensionNotAllowed), errors.Is(err, artifact.ErrNoFiles):
		return http.StatusBadRequest
	case errors.Is(err, raster.ErrDecode), errors.Is(err, raster.ErrIncompatibleImage):
		return http.StatusUnprocessableEntity
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// Abort writes {"error": ...} with the mapped status and stops the chain.
func Abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(Status(err), gin.H{"error": err.Error()})
}
