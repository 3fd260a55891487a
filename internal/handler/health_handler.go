package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports process liveness only; upstream services are not consulted.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
