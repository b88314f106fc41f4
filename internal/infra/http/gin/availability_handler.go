package ginserver

import (
	"log/slog"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"dogshare/internal/app/commands"
	"dogshare/internal/app/dto"
	availabilityapp "dogshare/internal/app/handlers/availability"
	"dogshare/internal/app/queries"
	domainavailability "dogshare/internal/domain/availability"
	"dogshare/internal/domain/shared/daykey"
)

type AvailabilityHTTP interface {
	Get(c *gin.Context)
	Set(c *gin.Context)
	SetDefault(c *gin.Context)
	SetPatterns(c *gin.Context)
	Check(c *gin.Context)
	Bookable(c *gin.Context)
	Calendar(c *gin.Context)
}

type AvailabilityHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type setAvailabilityRequest struct {
	dayRange
	OwnerID   string   `json:"owner_id"`
	Available bool     `json:"available"`
	Blocked   bool     `json:"blocked"`
	Reason    string   `json:"reason"`
	Price     *float64 `json:"price"`
}

type setDefaultRequest struct {
	OwnerID          string `json:"owner_id"`
	DefaultAvailable *bool  `json:"default_available"`
}

type setPatternsRequest struct {
	OwnerID  string        `json:"owner_id"`
	Patterns []dto.Pattern `json:"patterns"`
}

func (h AvailabilityHandler) Get(c *gin.Context) {
	res, err := queries.Ask[availabilityapp.GetAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries,
		availabilityapp.GetAvailabilityQuery{DogID: c.Param("id")})
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Set applies an owner edit. Booked days are returned under "protected".
func (h AvailabilityHandler) Set(c *gin.Context) {
	var req setAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	days, err := req.keys()
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	cmd := availabilityapp.SetAvailabilityCommand{
		DogID:   c.Param("id"),
		OwnerID: req.OwnerID,
		Days:    days,
		Intent: domainavailability.StatusIntent{
			Available: req.Available,
			Blocked:   req.Blocked,
			Reason:    req.Reason,
			Price:     req.Price,
		},
	}
	res, err := commands.Dispatch[availabilityapp.SetAvailabilityCommand, *dto.ApplyResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h AvailabilityHandler) SetDefault(c *gin.Context) {
	var req setDefaultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.DefaultAvailable == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "default_available is required"})
		return
	}
	cmd := availabilityapp.SetDefaultCommand{DogID: c.Param("id"), OwnerID: req.OwnerID, DefaultAvailable: *req.DefaultAvailable}
	res, err := commands.Dispatch[availabilityapp.SetDefaultCommand, *dto.Ack](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h AvailabilityHandler) SetPatterns(c *gin.Context) {
	var req setPatternsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	patterns := make([]domainavailability.RecurringPattern, 0, len(req.Patterns))
	for _, p := range req.Patterns {
		patterns = append(patterns, p.ToDomain())
	}
	cmd := availabilityapp.SetPatternsCommand{DogID: c.Param("id"), OwnerID: req.OwnerID, Patterns: patterns}
	res, err := commands.Dispatch[availabilityapp.SetPatternsCommand, *dto.ApplyResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Check answers whether every day of from..to is bookable. A store failure
// is reported as 503 rather than a plain "not bookable".
func (h AvailabilityHandler) Check(c *gin.Context) {
	days, err := expandQuery(c.Query("from"), c.Query("to"))
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	res, err := queries.Ask[availabilityapp.CheckBookableQuery, dto.Bookable](c.Request.Context(), h.Queries,
		availabilityapp.CheckBookableQuery{DogID: c.Param("id"), Days: days})
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h AvailabilityHandler) Bookable(c *gin.Context) {
	start, err := parseInstant(c.Query("from"))
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	end, err := parseInstant(c.Query("to"))
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	if end.Sub(start) > maxRequestDays*24*time.Hour {
		handleError(c, h.Logger, errRangeTooLong)
		return
	}
	res, err := queries.Ask[availabilityapp.ListBookableQuery, dto.BookableDays](c.Request.Context(), h.Queries,
		availabilityapp.ListBookableQuery{DogID: c.Param("id"), Start: start, End: end})
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	from, err := daykey.Parse(c.Query("from"))
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	to, err := daykey.Parse(c.Query("to"))
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	res, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries,
		availabilityapp.GetCalendarQuery{DogID: c.Param("id"), From: from, To: to})
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

var _ AvailabilityHTTP = AvailabilityHandler{}
