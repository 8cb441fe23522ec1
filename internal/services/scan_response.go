package services

import (
	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// Route-level confidence thresholds. These are looser than the scorer's own
// confidence because the response only ever shows accepted matches.
const (
	routeHighConfidence   = 1500
	routeMediumConfidence = 500
)

// Price variants in the order used to pick the price shown for a card.
var priceVariantPriority = []string{
	"normal",
	"holofoil",
	"reverseHolofoil",
	"1stEditionNormal",
	"1stEditionHolofoil",
}

var notFoundSuggestions = []string{
	"Try a clearer image with better lighting",
	"Ensure the card is fully visible and centered",
	"Make sure the image is not blurry or distorted",
	"Check that it's a Pokemon trading card (not a different card game)",
}

// RouteConfidence buckets a score for API responses.
func RouteConfidence(score int) models.Confidence {
	switch {
	case score >= routeHighConfidence:
		return models.ConfidenceHigh
	case score >= routeMediumConfidence:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// FlattenMarketPrices picks one price row following priceVariantPriority.
// Rows are returned as stored; a zero market price is a reported value.
func FlattenMarketPrices(prices map[string]models.MarketPrice) *models.MarketPrice {
	if len(prices) == 0 {
		return nil
	}
	for _, variant := range priceVariantPriority {
		p, ok := prices[variant]
		if !ok {
			continue
		}
		return &p
	}
	return nil
}

// CardView is the flattened card shape returned by the API.
type CardView struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	SetName      string              `json:"set_name,omitempty"`
	Number       string              `json:"number,omitempty"`
	HP           string              `json:"hp,omitempty"`
	Types        []string            `json:"types,omitempty"`
	Rarity       string              `json:"rarity,omitempty"`
	Image        string              `json:"image,omitempty"`
	MarketPrices *models.MarketPrice `json:"market_prices,omitempty"`
}

func NewCardView(card *models.Card) CardView {
	return CardView{
		ID:           card.ID,
		Name:         card.Name,
		SetName:      card.SetName,
		Number:       card.Number,
		HP:           card.HP,
		Types:        card.Types,
		Rarity:       card.Rarity,
		Image:        card.ImageURL(),
		MarketPrices: FlattenMarketPrices(card.MarketPrices),
	}
}

// MatchView is a card with the score that placed it.
type MatchView struct {
	CardView
	MatchScore     int               `json:"match_score"`
	Confidence     models.Confidence `json:"confidence"`
	Reasoning      []string          `json:"reasoning"`
	ScoreBreakdown map[string]int    `json:"score_breakdown,omitempty"`
}

func newMatchView(m *models.ScoredMatch) MatchView {
	return MatchView{
		CardView:       NewCardView(&m.Card),
		MatchScore:     m.Score,
		Confidence:     RouteConfidence(m.Score),
		Reasoning:      m.Reasoning,
		ScoreBreakdown: m.ScoreBreakdown,
	}
}

// ScanResponse is the success body of the resolve and scan endpoints.
type ScanResponse struct {
	ScanID         string                      `json:"scan_id,omitempty"`
	Match          MatchView                   `json:"match"`
	Alternatives   []MatchView                 `json:"alternatives"`
	Attributes     models.NormalizedAttributes `json:"attributes"`
	SearchAttempts []models.SearchAttempt      `json:"search_attempts"`
	ProcessingMS   int64                       `json:"processing_ms"`
}

// NewScanResponse builds the response for a matched resolution. It returns
// nil when the resolution has no winner.
func NewScanResponse(res *Resolution) *ScanResponse {
	best := res.Best()
	if res.Winner == nil || best == nil {
		return nil
	}

	alternatives := res.Alternatives()
	views := make([]MatchView, 0, len(alternatives))
	for i := range alternatives {
		views = append(views, newMatchView(&alternatives[i]))
	}

	return &ScanResponse{
		Match:          newMatchView(best),
		Alternatives:   views,
		Attributes:     res.Attributes,
		SearchAttempts: res.Attempts,
	}
}

// NotFoundDetails explains how close the resolution came to a match.
type NotFoundDetails struct {
	HighestScore    int               `json:"highest_score"`
	RequiredScore   int               `json:"required_score"`
	ScoreGap        int               `json:"score_gap"`
	AttemptedSearch map[string]string `json:"attempted_search,omitempty"`
	BestCandidate   *MatchView        `json:"best_candidate,omitempty"`
}

// NotFoundResponse is the 404 body when no candidate cleared the threshold.
type NotFoundResponse struct {
	Error       string          `json:"error"`
	ErrorType   string          `json:"error_type"`
	Details     NotFoundDetails `json:"details"`
	Suggestions []string        `json:"suggestions"`
}

// NewNotFoundResponse builds the card_not_found payload. With no candidates
// at all the highest score is zero and the gap is the full threshold.
func NewNotFoundResponse(res *Resolution) *NotFoundResponse {
	details := NotFoundDetails{
		HighestScore:  res.HighestScore,
		RequiredScore: MinimumScoreThreshold,
		ScoreGap:      MinimumScoreThreshold - res.HighestScore,
	}

	attempted := map[string]string{}
	for key, value := range map[string]string{
		"name":   res.Attributes.Name,
		"set":    res.Attributes.SetName,
		"number": res.Attributes.Number,
	} {
		if value != "" {
			attempted[key] = value
		}
	}
	if len(attempted) > 0 {
		details.AttemptedSearch = attempted
	}

	if best := res.Best(); best != nil {
		view := newMatchView(best)
		details.BestCandidate = &view
	}

	suggestions := make([]string, len(notFoundSuggestions))
	copy(suggestions, notFoundSuggestions)

	return &NotFoundResponse{
		Error:       "Card not found: No matching Pokemon cards found in database",
		ErrorType:   "card_not_found",
		Details:     details,
		Suggestions: suggestions,
	}
}
