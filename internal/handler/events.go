package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"momoguard/internal/repository"
)

type EventHandler interface {
	ListRecent(c *gin.Context)
	Stats(c *gin.Context)
}

type eventHandler struct {
	repo repository.ModerationEventRepository
	log  *logrus.Logger
}

// NewEventHandler serves the moderation log. repo may be nil when persistence
// is disabled.
func NewEventHandler(repo repository.ModerationEventRepository, log *logrus.Logger) EventHandler {
	return &eventHandler{repo: repo, log: log}
}

func (h *eventHandler) ListRecent(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event storage is disabled"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	events, err := h.repo.ListRecent(limit)
	if err != nil {
		h.log.Errorf("Failed to list moderation events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *eventHandler) Stats(c *gin.Context) {
	if h.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event storage is disabled"})
		return
	}

	counts, err := h.repo.CountByAction()
	if err != nil {
		h.log.Errorf("Failed to count moderation events: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count events"})
		return
	}

	var total int64
	for _, n := range counts {
		total += n
	}
	c.JSON(http.StatusOK, gin.H{"by_action": counts, "total": total})
}
