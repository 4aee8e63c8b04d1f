package app

import (
	"github.com/gin-gonic/gin"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
)

const metricsRealm = "kalyan metrics"

// metricsAuth guards /metrics with HTTP Basic auth when enabled in cfg.
// Credentials are checked by gin in constant time.
func metricsAuth(cfg *config.Config) gin.HandlerFunc {
	if !cfg.MetricsAuthEnabled {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuthForRealm(gin.Accounts{cfg.MetricsUsername: cfg.MetricsPassword}, metricsRealm)
}
