package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"dogshare/internal/infra/config"
	"dogshare/internal/infra/obs"
)

type Handlers struct {
	Availability AvailabilityHTTP
	Booking      BookingHTTP
	Rental       RentalHTTP
	Admin        AdminHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key", "X-Request-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Availability != nil {
		dogs := api.Group("/dogs/:id")
		dogs.GET("/availability", h.Availability.Get)
		dogs.PUT("/availability", h.Availability.Set)
		dogs.PUT("/availability/default", h.Availability.SetDefault)
		dogs.PUT("/availability/patterns", h.Availability.SetPatterns)
		dogs.GET("/availability/check", h.Availability.Check)
		dogs.GET("/availability/bookable", h.Availability.Bookable)
		dogs.GET("/calendar", h.Availability.Calendar)
	}
	if h.Booking != nil {
		api.POST("/dogs/:id/bookings", h.Booking.Mark)
		api.DELETE("/dogs/:id/bookings", h.Booking.Unmark)
	}
	if h.Rental != nil {
		api.POST("/rentals", h.Rental.Create)
		api.GET("/rentals/:id", h.Rental.Get)
		api.POST("/rentals/:id/approve", h.Rental.Approve)
		api.POST("/rentals/:id/cancel", h.Rental.Cancel)
	}
	if h.Admin != nil {
		api.POST("/admin/sweep", h.Admin.Sweep)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
