package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-resolver/backend/internal/services"
)

type ScanHandler struct {
	history *services.ScanHistory
}

func NewScanHandler(history *services.ScanHistory) *ScanHandler {
	return &ScanHandler{history: history}
}

func (h *ScanHandler) ListScans(c *gin.Context) {
	filter := services.ScanFilter{
		Status: c.Query("status"),
		Source: c.Query("source"),
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		filter.Limit = limit
	}
	if v := c.Query("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		filter.Offset = offset
	}

	records, total, err := h.history.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"scans": records,
		"total": total,
	})
}

func (h *ScanHandler) GetScan(c *gin.Context) {
	rec, err := h.history.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, services.ErrScanNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *ScanHandler) GetStats(c *gin.Context) {
	stats, err := h.history.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
