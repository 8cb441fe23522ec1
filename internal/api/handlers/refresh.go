package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-resolver/backend/internal/services"
)

type RefreshHandler struct {
	refreshWorker *services.CardRefreshWorker
}

func NewRefreshHandler(refreshWorker *services.CardRefreshWorker) *RefreshHandler {
	return &RefreshHandler{
		refreshWorker: refreshWorker,
	}
}

// GetRefreshStatus returns the refresh worker's progress
func (h *RefreshHandler) GetRefreshStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.refreshWorker.GetStatus())
}

// RefreshCard re-fetches a single cached card now. With ?queue=true the card
// is queued for the next batch instead.
func (h *RefreshHandler) RefreshCard(c *gin.Context) {
	cardID := c.Param("id")
	if cardID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card id is required"})
		return
	}

	if c.Query("queue") == "true" {
		position := h.refreshWorker.QueueRefresh(cardID)
		c.JSON(http.StatusAccepted, gin.H{
			"card_id":        cardID,
			"queue_position": position,
		})
		return
	}

	card, err := h.refreshWorker.RefreshCard(c.Request.Context(), cardID)
	if errors.Is(err, services.ErrRateLimited) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"card": services.NewCardView(card),
	})
}
