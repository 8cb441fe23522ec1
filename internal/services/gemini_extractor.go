package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/codyseavey/card-resolver/backend/internal/metrics"
	"github.com/codyseavey/card-resolver/backend/internal/models"
)

const (
	// Gemini 2.0 Flash - fast, no thinking overhead
	defaultGeminiModel   = "gemini-2.0-flash"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	geminiTimeout        = 30 * time.Second
	geminiCacheSize      = 100
)

// ErrGeminiDisabled is returned when no API key is configured.
var ErrGeminiDisabled = errors.New("gemini extraction not enabled")

// GeminiOptions configures the extractor. Zero values fall back to defaults.
type GeminiOptions struct {
	APIKey  string
	Model   string
	BaseURL string
}

// GeminiExtractor reads card attributes from a photo with the Gemini API.
type GeminiExtractor struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	enabled    bool
	cache      *lru.Cache[string, models.ExtractedAttributes]
}

// geminiRequest is the request body for Gemini API
type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64 encoded
}

type geminiGenConfig struct {
	ResponseMimeType   string         `json:"responseMimeType"`
	ResponseJSONSchema map[string]any `json:"responseJsonSchema"`
	Temperature        float64        `json:"temperature"`
	MaxOutputTokens    int            `json:"maxOutputTokens"`
}

// geminiAPIResponse is the response from Gemini API
type geminiAPIResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

var stringSchema = map[string]any{"type": "string"}

// extractionSchema is the flat attribute object the model must return.
var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":                stringSchema,
		"set_name":            stringSchema,
		"number":              stringSchema,
		"hp":                  stringSchema,
		"types":               map[string]any{"type": "array", "items": stringSchema},
		"card_type":           stringSchema,
		"language":            stringSchema,
		"set_symbol":          stringSchema,
		"card_series":         stringSchema,
		"visual_era":          stringSchema,
		"foil_pattern":        stringSchema,
		"border_color":        stringSchema,
		"energy_symbol_style": stringSchema,
		"authenticity_score":  map[string]any{"type": "integer"},
		"readability_score":   map[string]any{"type": "integer"},
	},
	"required": []string{"name", "card_type"},
}

const geminiExtractionPrompt = `You are a Pokemon TCG card identification expert. Look at this card photo and report what is printed on it.

RULES:
- name: the English card name including suffixes (e.g., "Pikachu V", "Charizard VMAX", "Dark Raichu")
- set_name: the full set name only if you can tell it; otherwise leave it empty
- number: the collector number exactly as printed, including the set total (e.g., "4/102", "SV56/SV94")
- hp: the HP value if printed
- types: the Pokemon type(s) (Fire, Water, Grass, ...)
- card_type: "pokemon_front", "pokemon_back", "non_pokemon" or "unknown"
- language: the card language code (en, fr, ja, de, es, ...)
- set_symbol, card_series, visual_era, foil_pattern, border_color, energy_symbol_style: short descriptions of what you see
- authenticity_score and readability_score: 0-100
- Do not guess. Leave a field empty rather than writing "unknown" or "possibly".`

func NewGeminiExtractor(opts GeminiOptions) *GeminiExtractor {
	if opts.Model == "" {
		opts.Model = defaultGeminiModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultGeminiBaseURL
	}
	cache, _ := lru.New[string, models.ExtractedAttributes](geminiCacheSize)

	svc := &GeminiExtractor{
		apiKey:     opts.APIKey,
		model:      opts.Model,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: geminiTimeout},
		enabled:    opts.APIKey != "",
		cache:      cache,
	}

	if svc.enabled {
		// Only show first 10 chars of key
		keyPreview := opts.APIKey
		if len(keyPreview) > 10 {
			keyPreview = keyPreview[:10] + "..."
		}
		infoLog("Gemini extractor: enabled (model=%s, key=%s)", svc.model, keyPreview)
	} else {
		infoLog("Gemini extractor: disabled (no GOOGLE_API_KEY)")
	}
	return svc
}

// IsEnabled returns whether image extraction is available
func (s *GeminiExtractor) IsEnabled() bool {
	return s.enabled
}

func imageHash(imageBytes []byte) string {
	sum := sha256.Sum256(imageBytes)
	return hex.EncodeToString(sum[:])
}

// ExtractAttributes sends the image to Gemini and parses the attributes it
// reports. Identical images are answered from cache.
func (s *GeminiExtractor) ExtractAttributes(ctx context.Context, imageBytes []byte, mimeType string) (models.ExtractedAttributes, error) {
	if !s.enabled {
		return models.ExtractedAttributes{}, ErrGeminiDisabled
	}
	if len(imageBytes) == 0 {
		return models.ExtractedAttributes{}, fmt.Errorf("empty image data")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	key := imageHash(imageBytes)
	if cached, ok := s.cache.Get(key); ok {
		metrics.GeminiCacheHits.Inc()
		debugLog("Gemini cache hit for image %s", key[:12])
		return cached, nil
	}

	text, err := s.generate(ctx, imageBytes, mimeType)
	if err != nil {
		return models.ExtractedAttributes{}, err
	}

	attrs, err := ParseExtraction(text)
	if err != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("parse").Inc()
		debugLog("Gemini response without attributes: %s", truncateForLog(text, 300))
		return models.ExtractedAttributes{}, err
	}

	s.cache.Add(key, attrs)
	return attrs, nil
}

// generate runs one generateContent call and returns the first text part.
func (s *GeminiExtractor) generate(ctx context.Context, imageBytes []byte, mimeType string) (string, error) {
	startTime := time.Now()

	req := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(imageBytes),
				}},
				{Text: geminiExtractionPrompt},
			}},
		},
		GenerationConfig: geminiGenConfig{
			ResponseMimeType:   "application/json",
			ResponseJSONSchema: extractionSchema,
			Temperature:        0.1,
			MaxOutputTokens:    600,
		},
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	debugLog("Gemini image request: model=%s, image_size=%d bytes", s.model, len(imageBytes))
	metrics.GeminiRequestsTotal.Inc()

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("network").Inc()
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	latency := time.Since(startTime)
	metrics.GeminiAPILatency.Observe(latency.Seconds())

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("read").Inc()
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.GeminiErrorsTotal.WithLabelValues("api").Inc()
		debugLog("Gemini API error: status=%d body=%s", resp.StatusCode, string(body))
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncateForLog(string(body), 200))
	}

	var apiResp geminiAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("parse").Inc()
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}

	if apiResp.Error != nil {
		metrics.GeminiErrorsTotal.WithLabelValues("api").Inc()
		return "", fmt.Errorf("API error %d: %s", apiResp.Error.Code, apiResp.Error.Message)
	}

	if len(apiResp.Candidates) == 0 || len(apiResp.Candidates[0].Content.Parts) == 0 {
		metrics.GeminiErrorsTotal.WithLabelValues("empty").Inc()
		return "", fmt.Errorf("no response from Gemini")
	}

	infoLog("Gemini extraction finished in %v", latency)
	return apiResp.Candidates[0].Content.Parts[0].Text, nil
}
