package services

import (
	"context"
	"strings"
	"time"

	"github.com/codyseavey/card-resolver/backend/internal/metrics"
	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// ResolveStatus is the terminal state of a resolution.
type ResolveStatus string

const (
	ResolveStatusMatched        ResolveStatus = "matched"
	ResolveStatusNoName         ResolveStatus = "no_name"
	ResolveStatusNoResults      ResolveStatus = "no_results"
	ResolveStatusBelowThreshold ResolveStatus = "below_threshold"
)

// Resolution is the outcome of resolving one set of extracted attributes.
type Resolution struct {
	Attributes   models.NormalizedAttributes `json:"attributes"`
	Winner       *models.Card                `json:"winner"`
	Ranked       []models.ScoredMatch        `json:"ranked_matches"`
	Attempts     []models.SearchAttempt      `json:"search_attempts"`
	Status       ResolveStatus               `json:"status"`
	HighestScore int                         `json:"highest_score"`
	ScoreGap     int                         `json:"score_gap,omitempty"`
}

// Best returns the top-ranked match, accepted or not.
func (r *Resolution) Best() *models.ScoredMatch {
	if len(r.Ranked) == 0 {
		return nil
	}
	return &r.Ranked[0]
}

// Alternatives returns accepted matches ranked after the winner.
func (r *Resolution) Alternatives() []models.ScoredMatch {
	if r.Winner == nil {
		return []models.ScoredMatch{}
	}
	return AlternativeMatches(r.Ranked)
}

// RateLimited reports whether the search came back empty because the card
// source refused queries.
func (r *Resolution) RateLimited() bool {
	if r.Status != ResolveStatusNoResults {
		return false
	}
	for _, a := range r.Attempts {
		if strings.Contains(a.Error, ErrRateLimited.Error()) {
			return true
		}
	}
	return false
}

// ResolveCard normalizes the extraction, runs the search cascade, scores
// every candidate and selects a winner. A missing winner is reported through
// Status, never as an error.
func ResolveCard(ctx context.Context, extracted models.ExtractedAttributes, searcher CardSearcher) *Resolution {
	start := time.Now()
	attrs := NormalizeAttributes(extracted)

	res := &Resolution{
		Attributes: attrs,
		Ranked:     []models.ScoredMatch{},
		Attempts:   []models.SearchAttempt{},
	}
	defer func() {
		metrics.ResolutionsTotal.WithLabelValues(string(res.Status)).Inc()
		metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	}()

	if attrs.Name == "" {
		infoLog("Card search skipped: no Pokemon name identified")
		res.Status = ResolveStatusNoName
		return res
	}

	candidates, attempts := SearchForCard(ctx, searcher, attrs)
	res.Attempts = attempts
	metrics.SearchCandidates.Observe(float64(len(candidates)))

	if len(candidates) == 0 {
		res.Status = ResolveStatusNoResults
		return res
	}

	scored := make([]models.ScoredMatch, 0, len(candidates))
	for _, card := range candidates {
		scored = append(scored, ScoreMatch(card, attrs))
	}

	sel := SelectBestMatch(scored)
	res.Ranked = sel.Ranked
	res.HighestScore = sel.HighestScore
	metrics.TopMatchScore.Observe(float64(sel.HighestScore))

	if sel.Winner == nil {
		res.Status = ResolveStatusBelowThreshold
		res.ScoreGap = sel.ScoreGap
		return res
	}

	winner := sel.Winner.Card
	res.Winner = &winner
	res.Status = ResolveStatusMatched
	infoLog("Resolved %q to %s (%s #%s) with score %d",
		attrs.Name, winner.ID, winner.SetName, winner.Number, sel.Winner.Score)
	return res
}

// CardResolver binds a searcher to ResolveCard.
type CardResolver struct {
	searcher CardSearcher
}

func NewCardResolver(searcher CardSearcher) *CardResolver {
	return &CardResolver{searcher: searcher}
}

func (r *CardResolver) Resolve(ctx context.Context, extracted models.ExtractedAttributes) *Resolution {
	return ResolveCard(ctx, extracted, r.searcher)
}

// Searcher exposes the underlying card searcher.
func (r *CardResolver) Searcher() CardSearcher {
	return r.searcher
}
