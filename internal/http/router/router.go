// Package router builds the gin engine from the composed application.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "portal_insights_backend/internal/http"
	"portal_insights_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	apiRateLimit     = rate.Limit(20)
	apiRateBurst     = 40
	readinessTimeout = 2 * time.Second
)

func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/ready", readiness(app.Health))

	limiter := httpkit.NewIPRateLimiter(apiRateLimit, apiRateBurst, app.Logger)
	v1 := engine.Group("/api/v1", limiter.RateLimit())

	rc := &apphttp.RouterContext{
		V1:        v1,
		Protected: v1.Group("", httpkit.AuthRequired(app.Config)),
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Debug("registered module routes", "module", m.Name())
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept-Language", "X-Request-ID"},
		ExposeHeaders:    []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: cfg.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if cfg.GetCORSAllowAll() {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.GetCORSOrigins()
	}
	return c
}

// readiness pings every dependency and reports the ones that failed.
func readiness(checks map[string]apphttp.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()

		failed := make(map[string]string)
		for name, check := range checks {
			if err := check.Ping(ctx); err != nil {
				failed[name] = err.Error()
			}
		}
		if len(failed) > 0 {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
