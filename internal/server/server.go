package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"weddinghub/internal/domain/booking"
	"weddinghub/internal/middleware"
	jwtsvc "weddinghub/internal/pkg/jwt"
	"weddinghub/internal/pkg/response"
	"weddinghub/internal/realtime"
)

// Deps are the collaborators of the router. Realtime and Metrics are
// optional: /ws/bookings and /metrics are only served when they are set.
type Deps struct {
	DB             *gorm.DB
	JWT            *jwtsvc.Service
	Bookings       *booking.Handler
	Realtime       *realtime.Handler
	WebhookToken   string
	AllowedOrigins []string
	Metrics        prometheus.Gatherer
}

// NewRouter wires middleware and routes. It does not touch gin's mode.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), middleware.ErrorLogger(), middleware.CORS(d.AllowedOrigins))

	r.GET("/health", health(d.DB))
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	}

	if d.Realtime != nil {
		d.Realtime.RegisterRoutes(r)
	}

	v1 := r.Group("/api/v1")

	webhooks := v1.Group("")
	webhooks.Use(middleware.WebhookTokenAuth(d.WebhookToken))
	d.Bookings.RegisterWebhookRoutes(webhooks)

	protected := v1.Group("")
	protected.Use(middleware.JWTAuth(d.JWT))
	d.Bookings.RegisterRoutes(protected, middleware.RequireRole)

	return r
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database is not reachable")
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
