package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-resolver/backend/internal/models"
	"github.com/codyseavey/card-resolver/backend/internal/services"
)

// maxImageBytes bounds uploaded card photos.
const maxImageBytes = 10 << 20

type CardHandler struct {
	scanService *services.ScanService
	cardSource  services.CardSource
}

func NewCardHandler(scan *services.ScanService, source services.CardSource) *CardHandler {
	return &CardHandler{
		scanService: scan,
		cardSource:  source,
	}
}

// cacheCardAsync saves a fetched card so later lookups skip the card source.
func cacheCardAsync(history *services.ScanHistory, card models.Card) {
	if history == nil {
		return
	}
	go func(cardToCache models.Card) {
		if err := history.CacheCard(cardToCache); err != nil {
			log.Printf("Warning: failed to cache card %s: %v", cardToCache.ID, err)
		}
	}(card)
}

// ResolveCard resolves posted attributes to a card.
func (h *CardHandler) ResolveCard(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := h.scanService.ResolveAttributes(c.Request.Context(), req.Attributes, models.ScanSourceResolve, req.Record)
	respondWithOutcome(c, outcome)
}

// ScanCard extracts attributes from a card photo and resolves them. The image
// comes either as a multipart "image" file or as base64 in a JSON body.
func (h *CardHandler) ScanCard(c *gin.Context) {
	if !h.scanService.ExtractionEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Card scanning is not available",
			"message": "Gemini API key not configured",
		})
		return
	}

	imageBytes, mimeType, ok := readImage(c)
	if !ok {
		return
	}

	outcome, err := h.scanService.ScanImage(c.Request.Context(), imageBytes, mimeType)
	if err != nil {
		respondWithScanError(c, err)
		return
	}
	respondWithOutcome(c, outcome)
}

func readImage(c *gin.Context) ([]byte, string, bool) {
	file, err := c.FormFile("image")
	if err == nil {
		if file.Size > maxImageBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large"})
			return nil, "", false
		}
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to open uploaded file"})
			return nil, "", false
		}
		defer src.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(src); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
			return nil, "", false
		}
		return buf.Bytes(), file.Header.Get("Content-Type"), true
	}

	var req models.ScanImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "No image provided",
			"message": "Upload an image file or provide base64 encoded image_data in JSON body",
		})
		return nil, "", false
	}

	imageBytes, err := base64.StdEncoding.DecodeString(req.ImageData)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64 image data"})
		return nil, "", false
	}
	if len(imageBytes) > maxImageBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Image too large"})
		return nil, "", false
	}
	return imageBytes, req.MimeType, true
}

func respondWithScanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrGeminiDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Card scanning is not available"})
	case errors.Is(err, services.ErrCardBack):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       "Card back detected. Please flip the card and scan the front side with the Pokemon artwork.",
			"error_type":  "card_back_detected",
			"suggestions": []string{"Flip the card over to show the front side"},
		})
	case errors.Is(err, services.ErrNotPokemonCard):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":       "This appears to be a card but not a Pokemon card.",
			"error_type":  "non_pokemon_card",
			"suggestions": []string{"Please scan a Pokemon Trading Card Game card"},
		})
	case errors.Is(err, services.ErrNonTCGCard):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "This does not appear to be an official Pokemon TCG card.",
			"error_type": "non_tcg_card",
			"suggestions": []string{
				"Please scan an official Pokemon Trading Card Game card",
				"Fan-made, proxy and custom cards cannot be identified",
			},
		})
	case errors.Is(err, services.ErrUnreadableImage):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "Card details could not be read clearly",
			"error_type": "image_quality_too_low",
			"suggestions": []string{
				"Ensure the card is well-lit with no shadows",
				"Hold the camera steady and wait for auto-focus",
				"Try taking the photo from directly above the card",
			},
		})
	case errors.Is(err, services.ErrNoExtraction):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "No card could be identified in the image",
			"error_type": "no_card_detected",
		})
	default:
		log.Printf("Card scan failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Card scan failed",
			"details": err.Error(),
		})
	}
}

// respondWithOutcome maps a resolution status to an HTTP answer.
func respondWithOutcome(c *gin.Context, outcome *services.ScanOutcome) {
	res := outcome.Resolution
	scanID := ""
	if outcome.Record != nil {
		scanID = outcome.Record.ID
	}

	switch {
	case res.Status == services.ResolveStatusMatched:
		resp := services.NewScanResponse(res)
		resp.ScanID = scanID
		resp.ProcessingMS = outcome.Elapsed.Milliseconds()
		c.JSON(http.StatusOK, resp)
	case res.Status == services.ResolveStatusNoName:
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      "No Pokemon name identified",
			"error_type": "no_card_name",
			"scan_id":    scanID,
		})
	case res.RateLimited():
		c.Header("Retry-After", "60")
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":           "Card search rate limit exceeded",
			"error_type":      "rate_limited",
			"search_attempts": res.Attempts,
		})
	default:
		c.JSON(http.StatusNotFound, services.NewNotFoundResponse(res))
	}
}

// GetCard returns a card from the local cache or the card source.
func (h *CardHandler) GetCard(c *gin.Context) {
	id := c.Param("id")
	history := h.scanService.History()

	if history != nil {
		if cached, err := history.CachedCard(c.Request.Context(), id); err == nil && cached != nil {
			c.JSON(http.StatusOK, services.NewCardView(cached))
			return
		}
	}

	if h.cardSource == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}

	start := time.Now()
	card, err := h.cardSource.GetCard(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if card == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "card not found"})
		return
	}

	log.Printf("Fetched card %s in %v", card.ID, time.Since(start))
	cacheCardAsync(history, *card)

	c.JSON(http.StatusOK, services.NewCardView(card))
}
