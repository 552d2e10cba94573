package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Health pings the store; the database is the only hard dependency.
func Health(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := env.Store.Ping(ctx); err != nil {
			env.Log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok", "time": time.Now().UTC()})
	}
}
