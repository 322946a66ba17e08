package handlers

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
)

const greeting = "<h1>Hello from claim-oracle!</h1>"

// PingHandler liveness
// GET /ping
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// HealthCheckHandler health
// GET /health
func HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "claim-oracle",
	})
}

// IndexHandler serves the static index page, or a greeting when it is missing
func IndexHandler(indexPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if indexPath != "" {
			if info, err := os.Stat(indexPath); err == nil && !info.IsDir() {
				c.File(indexPath)
				return
			}
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(greeting))
	}
}
