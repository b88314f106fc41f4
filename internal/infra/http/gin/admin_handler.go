package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"dogshare/internal/app/commands"
	"dogshare/internal/app/dto"
	rentalapp "dogshare/internal/app/handlers/rentals"
)

type AdminHTTP interface {
	Sweep(c *gin.Context)
}

type AdminHandler struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

// Sweep runs the rental lifecycle sweep on demand.
func (h AdminHandler) Sweep(c *gin.Context) {
	res, err := commands.Dispatch[rentalapp.SweepCommand, *dto.SweepResult](c.Request.Context(), h.Commands, rentalapp.SweepCommand{})
	if err != nil {
		handleError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

var _ AdminHTTP = AdminHandler{}
