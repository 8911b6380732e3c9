package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/stayloop/pulse/internal/app"
	iauth "github.com/stayloop/pulse/internal/auth"
	"github.com/stayloop/pulse/internal/handlers"
	"github.com/stayloop/pulse/internal/middleware"
	"github.com/stayloop/pulse/internal/realtime"
	"github.com/stayloop/pulse/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, service *services.NotificationService, hub *realtime.Hub) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if service == nil {
		return nil, fmt.Errorf("notification service must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Health endpoint (public)
	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health(db))
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	requireAuth := middleware.Auth(jwt)

	api := r.Group("/api")
	api.Use(requireAuth)

	notificationHandler, err := handlers.NewNotificationHandler(service)
	if err != nil {
		return nil, err
	}
	registerNotificationRoutes(api, notificationHandler)

	// The websocket endpoint authenticates via query token inside the
	// handler, so it stays outside the bearer-header group.
	realtimeHandler := handlers.NewRealtimeHandler(hub, jwt)
	r.GET("/api/realtime", realtimeHandler.Stream)

	return r, nil
}
