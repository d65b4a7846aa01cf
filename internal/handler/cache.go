package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"momoguard/internal/perm_cache"
)

// CacheStatser reports permission cache sizes.
type CacheStatser interface {
	Stats() perm_cache.Stats
}

// CacheStats returns the current permission cache sizes.
func CacheStats(cache CacheStatser) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, cache.Stats())
	}
}
