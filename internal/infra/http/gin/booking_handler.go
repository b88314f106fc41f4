package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"dogshare/internal/app/commands"
	"dogshare/internal/app/dto"
	availabilityapp "dogshare/internal/app/handlers/availability"
)

type BookingHTTP interface {
	Mark(c *gin.Context)
	Unmark(c *gin.Context)
}

// BookingHandler exposes the booking hooks for callers that manage rentals
// elsewhere.
type BookingHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

type markBookedRequest struct {
	dayRange
	RentalID string `json:"rental_id"`
}

func (h BookingHandler) Mark(c *gin.Context) {
	var req markBookedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	days, err := req.keys()
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	cmd := availabilityapp.MarkBookedCommand{
		DogID:           c.Param("id"),
		RentalID:        req.RentalID,
		Days:            days,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	res, err := commands.Dispatch[availabilityapp.MarkBookedCommand, *dto.Ack](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h BookingHandler) Unmark(c *gin.Context) {
	var req dayRange
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	days, err := req.keys()
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	cmd := availabilityapp.UnmarkBookedCommand{DogID: c.Param("id"), Days: days}
	res, err := commands.Dispatch[availabilityapp.UnmarkBookedCommand, *dto.ApplyResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

var _ BookingHTTP = BookingHandler{}
