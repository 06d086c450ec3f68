package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"rentspace/internal/infra/config"
	"rentspace/internal/infra/obs"
)

type BookingHTTP interface {
	Quote(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	CreatePaymentIntent(c *gin.Context)
	ConfirmPayment(c *gin.Context)
}

type RefundHTTP interface {
	Request(c *gin.Context)
}

type WalletHTTP interface {
	Get(c *gin.Context)
}

type SandboxHTTP interface {
	Capture(c *gin.Context)
}

type Handlers struct {
	Booking BookingHTTP
	Refund  RefundHTTP
	Wallet  WalletHTTP
	// Sandbox is only set when the in-process payment provider is active.
	Sandbox SandboxHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Idempotency-Key", "X-Request-ID"},
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
	if h.Booking != nil {
		api.GET("/listings/:id/quote", h.Booking.Quote)
		api.POST("/bookings", h.Booking.Create)
		api.GET("/bookings", h.Booking.List)
		api.GET("/bookings/:id", h.Booking.Get)
		api.POST("/bookings/:id/payment-intent", h.Booking.CreatePaymentIntent)
		api.POST("/bookings/:id/confirm", h.Booking.ConfirmPayment)
	}
	if h.Refund != nil {
		api.POST("/bookings/:id/refund", h.Refund.Request)
	}
	if h.Wallet != nil {
		api.GET("/hosts/:id/wallet", h.Wallet.Get)
	}
	if h.Sandbox != nil {
		api.POST("/sandbox/payments/:id/capture", h.Sandbox.Capture)
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
