package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"dogshare/internal/app/commands"
	availabilityhandlers "dogshare/internal/app/handlers/availability"
	rentalhandlers "dogshare/internal/app/handlers/rentals"
	"dogshare/internal/app/middleware"
	"dogshare/internal/app/queries"
	appavailability "dogshare/internal/app/services/availability"
	apprentals "dogshare/internal/app/services/rentals"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/dog"
	"dogshare/internal/domain/rental"
	"dogshare/internal/domain/shared/daykey"
	"dogshare/internal/infra/obs"
)

const msgDatesUnavailable = "dates currently unavailable, please retry"

var errRangeTooLong = errors.New("http: day range too long")

// handleError maps domain and application errors onto HTTP statuses.
func handleError(c *gin.Context, logger *slog.Logger, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(), "request_id", obs.RequestIDFromContext(c.Request.Context()), "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domainavailability.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, msgDatesUnavailable
	case errors.Is(err, apprentals.ErrDatesUnavailable),
		errors.Is(err, domainavailability.ErrDaysUnavailable):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domainavailability.ErrNotFound),
		errors.Is(err, rental.ErrNotFound),
		errors.Is(err, dog.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domainavailability.ErrNotOwner),
		errors.Is(err, rental.ErrSelfRental):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domainavailability.ErrVersionConflict),
		errors.Is(err, rental.ErrInvalidTransition),
		errors.Is(err, middleware.ErrIdempotencyKeyReused):
		return http.StatusConflict, err.Error()
	case errors.Is(err, daykey.ErrInvalidRange),
		errors.Is(err, daykey.ErrInvalidDayKey),
		errors.Is(err, errRangeTooLong),
		errors.Is(err, daykey.ErrRangeTooLong),
		errors.Is(err, appavailability.ErrRangeTooLong),
		errors.Is(err, domainavailability.ErrDogIDRequired),
		errors.Is(err, domainavailability.ErrNoDays),
		errors.Is(err, domainavailability.ErrPatternKind),
		errors.Is(err, domainavailability.ErrPatternEmpty),
		errors.Is(err, domainavailability.ErrPatternMonthDay),
		errors.Is(err, domainavailability.ErrPatternWindow),
		errors.Is(err, availabilityhandlers.ErrOwnerRequired),
		errors.Is(err, availabilityhandlers.ErrRentalRequired),
		errors.Is(err, availabilityhandlers.ErrRangeRequired),
		errors.Is(err, rentalhandlers.ErrRentalIDRequired),
		errors.Is(err, rentalhandlers.ErrDatesRequired),
		errors.Is(err, rental.ErrRenterRequired),
		errors.Is(err, dog.ErrIDRequired):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, commands.ErrHandlerNotFound),
		errors.Is(err, queries.ErrHandlerNotFound):
		return http.StatusNotImplemented, "operation unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
