package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/easylesson/easylesson-server/pkg/response"
)

// Health returns a status payload useful for readiness checks, including
// database reachability.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "ok"
		dbStatus := "ok"

		if db == nil {
			dbStatus = "unavailable"
			status = "degraded"
		} else if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(requestContext(c)) != nil {
			dbStatus = "unreachable"
			status = "degraded"
		}

		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		response.Success(c, code, gin.H{"status": status, "database": dbStatus})
	}
}
