package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"dogshare/internal/app/commands"
	"dogshare/internal/app/dto"
	rentalapp "dogshare/internal/app/handlers/rentals"
	"dogshare/internal/app/queries"
)

type RentalHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Approve(c *gin.Context)
	Cancel(c *gin.Context)
}

type RentalHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createRentalRequest struct {
	DogID     string `json:"dog_id"`
	RenterID  string `json:"renter_id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type cancelRentalRequest struct {
	Reason string `json:"reason"`
}

func (h RentalHandler) Create(c *gin.Context) {
	var req createRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	start, end, err := parseRentalDates(req.StartDate, req.EndDate)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	cmd := rentalapp.RequestRentalCommand{
		DogID:           req.DogID,
		RenterID:        req.RenterID,
		StartDate:       start,
		EndDate:         end,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	res, err := commands.Dispatch[rentalapp.RequestRentalCommand, *dto.Rental](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h RentalHandler) Get(c *gin.Context) {
	res, err := queries.Ask[rentalapp.GetRentalQuery, dto.Rental](c.Request.Context(), h.Queries, rentalapp.GetRentalQuery{RentalID: c.Param("id")})
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h RentalHandler) Approve(c *gin.Context) {
	cmd := rentalapp.ApproveRentalCommand{RentalID: c.Param("id"), IdempotencyKeyV: c.GetHeader("Idempotency-Key")}
	res, err := commands.Dispatch[rentalapp.ApproveRentalCommand, *dto.Rental](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h RentalHandler) Cancel(c *gin.Context) {
	var req cancelRentalRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	cmd := rentalapp.CancelRentalCommand{RentalID: c.Param("id"), Reason: req.Reason, IdempotencyKeyV: c.GetHeader("Idempotency-Key")}
	res, err := commands.Dispatch[rentalapp.CancelRentalCommand, *dto.Rental](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// parseRentalDates accepts day keys or timestamps. A bare end day runs to
// the last instant of that day.
func parseRentalDates(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, err := parseInstant(rawStart)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseInstant(rawEnd)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(rawEnd) == len("2006-01-02") {
		end = end.AddDate(0, 0, 1).Add(-time.Second)
	}
	return start, end, nil
}

var _ RentalHTTP = RentalHandler{}
