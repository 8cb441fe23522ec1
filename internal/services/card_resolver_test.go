package services

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/codyseavey/card-resolver/backend/internal/models"
)

func catalogSearcher(cards ...models.Card) *fakeSearcher {
	return &fakeSearcher{respond: func(q CardQuery) ([]models.Card, error) {
		var out []models.Card
		for _, c := range cards {
			if q.SetName != "" && q.SetName != c.SetName {
				continue
			}
			if q.Number != "" && q.Number != c.Number {
				continue
			}
			out = append(out, c)
		}
		return out, nil
	}}
}

func TestResolveCard(t *testing.T) {
	pikachu := models.Card{ID: "base1-58", Name: "Pikachu", SetName: "Base Set", Number: "58", SetTotal: 102}
	raichu := models.Card{ID: "base1-14", Name: "Raichu", SetName: "Base Set", Number: "14", SetTotal: 102}
	charizard := models.Card{ID: "sma-SV49", Name: "Charizard GX", SetName: "Hidden Fates", Number: "SV49"}

	tests := []struct {
		name       string
		extracted  models.ExtractedAttributes
		searcher   *fakeSearcher
		wantStatus ResolveStatus
		wantWinner string
	}{
		{
			name:       "exact match",
			extracted:  models.ExtractedAttributes{Name: "Pikachu", SetName: "Base Set", Number: "58/102"},
			searcher:   catalogSearcher(pikachu, raichu),
			wantStatus: ResolveStatusMatched,
			wantWinner: "base1-58",
		},
		{
			name:       "shiny vault",
			extracted:  models.ExtractedAttributes{Name: "Charizard GX", SetName: "Hidden Fates", Number: "49"},
			searcher:   catalogSearcher(charizard),
			wantStatus: ResolveStatusMatched,
			wantWinner: "sma-SV49",
		},
		{
			name:       "no name",
			extracted:  models.ExtractedAttributes{SetName: "Base Set", Number: "58"},
			searcher:   catalogSearcher(pikachu),
			wantStatus: ResolveStatusNoName,
		},
		{
			name:       "no results",
			extracted:  models.ExtractedAttributes{Name: "Missingno"},
			searcher:   &fakeSearcher{},
			wantStatus: ResolveStatusNoResults,
		},
		{
			name:       "below threshold",
			extracted:  models.ExtractedAttributes{Name: "Pikachu", SetName: "Jungle", Number: "60"},
			searcher:   &fakeSearcher{respond: func(CardQuery) ([]models.Card, error) { return []models.Card{raichu}, nil }},
			wantStatus: ResolveStatusBelowThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveCard(context.Background(), tt.extracted, tt.searcher)
			if res.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", res.Status, tt.wantStatus)
			}
			gotWinner := ""
			if res.Winner != nil {
				gotWinner = res.Winner.ID
			}
			if gotWinner != tt.wantWinner {
				t.Errorf("Winner = %q, want %q", gotWinner, tt.wantWinner)
			}
			if res.Ranked == nil || res.Attempts == nil {
				t.Error("Ranked and Attempts should never be nil")
			}
		})
	}
}

func TestResolveCard_NoNameSkipsSearch(t *testing.T) {
	searcher := &fakeSearcher{}
	res := ResolveCard(context.Background(), models.ExtractedAttributes{Name: "?"}, searcher)

	if len(searcher.queries) != 0 {
		t.Errorf("searcher called %d times, want 0", len(searcher.queries))
	}
	if len(res.Attempts) != 0 {
		t.Errorf("Attempts = %v, want none", res.Attempts)
	}
}

func TestResolveCard_BelowThresholdReportsGap(t *testing.T) {
	raichu := models.Card{ID: "base1-14", Name: "Raichu", SetName: "Base Set", Number: "14"}
	searcher := &fakeSearcher{respond: func(CardQuery) ([]models.Card, error) { return []models.Card{raichu}, nil }}

	res := ResolveCard(context.Background(), models.ExtractedAttributes{Name: "Pikachu", SetName: "Jungle", Number: "60"}, searcher)

	if res.HighestScore != -2000 {
		t.Errorf("HighestScore = %d, want -2000", res.HighestScore)
	}
	if res.ScoreGap != MinimumScoreThreshold+2000 {
		t.Errorf("ScoreGap = %d, want %d", res.ScoreGap, MinimumScoreThreshold+2000)
	}
	if best := res.Best(); best == nil || best.Card.ID != "base1-14" {
		t.Errorf("Best() = %+v, want base1-14", best)
	}
	if alts := res.Alternatives(); len(alts) != 0 {
		t.Errorf("Alternatives() = %v, want none without a winner", alts)
	}
}

func TestResolveCard_AlternativesAfterWinner(t *testing.T) {
	cards := []models.Card{
		{ID: "base1-58", Name: "Pikachu", SetName: "Base Set", Number: "58"},
		{ID: "base4-87", Name: "Pikachu", SetName: "Base Set 2", Number: "87"},
		{ID: "jungle-60", Name: "Pikachu", SetName: "Jungle", Number: "60"},
	}
	searcher := &fakeSearcher{respond: func(CardQuery) ([]models.Card, error) { return cards, nil }}

	res := ResolveCard(context.Background(), models.ExtractedAttributes{Name: "Pikachu", SetName: "Base Set", Number: "58"}, searcher)

	if res.Winner == nil || res.Winner.ID != "base1-58" {
		t.Fatalf("Winner = %+v, want base1-58", res.Winner)
	}
	// The other printings carry the wrong number.
	if alts := res.Alternatives(); len(alts) != 0 {
		t.Errorf("Alternatives() = %v, want none", alts)
	}
	if len(res.Ranked) != 3 {
		t.Errorf("Ranked has %d entries, want 3", len(res.Ranked))
	}
}

func TestResolveCard_Deterministic(t *testing.T) {
	cards := []models.Card{
		{ID: "base1-58", Name: "Pikachu", SetName: "Base Set", Number: "58", HP: "40", Types: []string{"Lightning"}},
		{ID: "base4-87", Name: "Pikachu", SetName: "Base Set 2", Number: "87", HP: "40"},
		{ID: "jungle-60", Name: "Pikachu", SetName: "Jungle", Number: "60", HP: "50"},
	}
	extracted := models.ExtractedAttributes{Name: "Pikachu", SetName: "Base Set", Number: "58", HP: "40", Types: []string{"Lightning"}}

	first := ResolveCard(context.Background(), extracted, &fakeSearcher{respond: func(CardQuery) ([]models.Card, error) { return cards, nil }})
	second := ResolveCard(context.Background(), extracted, &fakeSearcher{respond: func(CardQuery) ([]models.Card, error) { return cards, nil }})

	if !reflect.DeepEqual(first.Ranked, second.Ranked) {
		t.Error("ranked matches differ between identical runs")
	}
	if !reflect.DeepEqual(first.Attempts, second.Attempts) {
		t.Error("search attempts differ between identical runs")
	}
}

func TestResolution_RateLimited(t *testing.T) {
	limited := &fakeSearcher{respond: func(CardQuery) ([]models.Card, error) {
		return nil, fmt.Errorf("search failed: %w", ErrRateLimited)
	}}
	res := ResolveCard(context.Background(), models.ExtractedAttributes{Name: "Pikachu"}, limited)
	if res.Status != ResolveStatusNoResults {
		t.Fatalf("Status = %q, want %q", res.Status, ResolveStatusNoResults)
	}
	if !res.RateLimited() {
		t.Error("RateLimited() = false, want true")
	}

	empty := ResolveCard(context.Background(), models.ExtractedAttributes{Name: "Pikachu"}, &fakeSearcher{})
	if empty.RateLimited() {
		t.Error("RateLimited() = true for an empty search")
	}
}

func TestCardResolver(t *testing.T) {
	searcher := catalogSearcher(models.Card{ID: "base1-58", Name: "Pikachu", SetName: "Base Set", Number: "58"})
	resolver := NewCardResolver(searcher)

	if resolver.Searcher() != searcher {
		t.Error("Searcher() should return the bound searcher")
	}
	res := resolver.Resolve(context.Background(), models.ExtractedAttributes{Name: "Pikachu", SetName: "Base Set", Number: "58"})
	if res.Status != ResolveStatusMatched {
		t.Errorf("Status = %q, want matched", res.Status)
	}
}
