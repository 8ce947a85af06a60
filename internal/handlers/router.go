package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harentsoaR/bloodbank-api/internal/middleware"
)

// NewRouter wires the endpoint, the event stream, health and metrics.
func NewRouter(h *Handler, allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(h.Logger), middleware.Logger(h.Logger), middleware.Metrics(h.Known))

	if len(allowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := middleware.Authenticate(h.Tokens)
	r.GET("/api", auth, h.Dispatch)
	r.POST("/api", auth, h.Dispatch)
	r.GET("/events", auth, middleware.RequireAuth(), h.Events)
	return r
}
