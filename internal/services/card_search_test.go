package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// fakeSearcher answers queries from a function and records every query.
type fakeSearcher struct {
	mu      sync.Mutex
	queries []CardQuery
	respond func(q CardQuery) ([]models.Card, error)
	cards   map[string]models.Card
}

func (f *fakeSearcher) SearchCards(_ context.Context, q CardQuery) ([]models.Card, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.respond == nil {
		return []models.Card{}, nil
	}
	return f.respond(q)
}

func (f *fakeSearcher) GetCard(_ context.Context, id string) (*models.Card, error) {
	card, ok := f.cards[id]
	if !ok {
		return nil, nil
	}
	return &card, nil
}

func strategies(attempts []models.SearchAttempt) []string {
	out := make([]string, len(attempts))
	for i, a := range attempts {
		out[i] = a.Strategy
	}
	return out
}

func assertStrategies(t *testing.T, attempts []models.SearchAttempt, want ...string) {
	t.Helper()
	got := strategies(attempts)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("strategies = %v, want %v", got, want)
	}
}

func TestSearchForCard_NoName(t *testing.T) {
	searcher := &fakeSearcher{}
	cards, attempts := SearchForCard(context.Background(), searcher, models.NormalizedAttributes{SetName: "Base Set", Number: "58"})

	if len(cards) != 0 || cards == nil {
		t.Errorf("cards = %#v, want empty slice", cards)
	}
	if len(attempts) != 0 || attempts == nil {
		t.Errorf("attempts = %#v, want empty slice", attempts)
	}
	if len(searcher.queries) != 0 {
		t.Errorf("searcher called %d times, want 0", len(searcher.queries))
	}
}

func TestSearchForCard_ExactHit(t *testing.T) {
	pikachu := models.Card{ID: "base1-58", Name: "Pikachu", SetName: "Base Set", Number: "58"}
	searcher := &fakeSearcher{respond: func(q CardQuery) ([]models.Card, error) {
		return []models.Card{pikachu}, nil
	}}

	cards, attempts := SearchForCard(context.Background(), searcher,
		models.NormalizedAttributes{Name: "Pikachu", SetName: "Base Set", Number: "58"})

	assertStrategies(t, attempts, StrategySetNumberNameExact, StrategySetNameOnly, StrategyFuzzyNameOnlyFallback)
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1 after dedup", len(cards))
	}

	first := searcher.queries[0]
	if first.SetName != "Base Set" || first.Number != "58" || first.PageSize != exactPageSize {
		t.Errorf("first query = %+v", first)
	}
	last := searcher.queries[len(searcher.queries)-1]
	if !last.Fuzzy || last.PageSize != fuzzyFallbackPageSize {
		t.Errorf("fallback query = %+v, want fuzzy with page size %d", last, fuzzyFallbackPageSize)
	}
	for _, a := range attempts {
		if a.ResultCount != 1 {
			t.Errorf("%s ResultCount = %d, want raw count 1", a.Strategy, a.ResultCount)
		}
	}
}

func TestSearchForCard_EnoughResultsSkipsFallback(t *testing.T) {
	searcher := &fakeSearcher{respond: func(q CardQuery) ([]models.Card, error) {
		if q.Number == "" {
			return nil, nil
		}
		cards := make([]models.Card, 5)
		for i := range cards {
			cards[i] = models.Card{ID: fmt.Sprintf("card-%d", i)}
		}
		return cards, nil
	}}

	cards, attempts := SearchForCard(context.Background(), searcher,
		models.NormalizedAttributes{Name: "Pikachu", SetName: "Base Set", Number: "58", HP: "40"})

	assertStrategies(t, attempts, StrategySetNumberNameExact, StrategySetNameOnly)
	if len(cards) != 5 {
		t.Errorf("got %d cards, want 5", len(cards))
	}
}

func TestSearchForCard_WrongSetFallsBackToNumber(t *testing.T) {
	searcher := &fakeSearcher{respond: func(q CardQuery) ([]models.Card, error) {
		if q.SetName == "" && q.Number == "58" {
			return []models.Card{{ID: "base1-58", Name: "Pikachu", SetName: "Base Set", Number: "58"}}, nil
		}
		return nil, nil
	}}

	cards, attempts := SearchForCard(context.Background(), searcher,
		models.NormalizedAttributes{Name: "Pikachu", SetName: "Jungle", Number: "58"})

	assertStrategies(t, attempts,
		StrategySetNumberNameExact, StrategyCrossSetNumberName, StrategySetNameOnly, StrategyFuzzyNameOnlyFallback)
	if len(cards) != 1 || cards[0].ID != "base1-58" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestSearchForCard_SetFamily(t *testing.T) {
	searcher := &fakeSearcher{respond: func(q CardQuery) ([]models.Card, error) {
		if q.SetName == "Neo Genesis" {
			return []models.Card{{ID: "neo1-17", Name: "Typhlosion", SetName: "Neo Genesis", Number: "17"}}, nil
		}
		return nil, nil
	}}

	cards, attempts := SearchForCard(context.Background(), searcher,
		models.NormalizedAttributes{Name: "Typhlosion", SetName: "Neo", Number: "17"})

	assertStrategies(t, attempts,
		StrategySetNumberNameExact, StrategyCrossSetNumberName, StrategySetFamilyNumberName,
		StrategySetNameOnly, StrategyFuzzyNameOnlyFallback)
	if len(cards) != 1 {
		t.Fatalf("got %d cards, want 1", len(cards))
	}

	family := attempts[2]
	if family.ResultCount != 1 {
		t.Errorf("family ResultCount = %d, want 1", family.ResultCount)
	}
	members, ok := family.Query["set_family"].([]string)
	if !ok || len(members) != 4 {
		t.Errorf("family query = %v", family.Query)
	}

	var familyQueries []string
	for _, q := range searcher.queries {
		if q.PageSize == familyMemberPageSize {
			familyQueries = append(familyQueries, q.SetName)
		}
	}
	want := "Neo Genesis,Neo Discovery,Neo Destiny,Neo Revelation"
	if strings.Join(familyQueries, ",") != want {
		t.Errorf("family queried %v, want %s", familyQueries, want)
	}
}

func TestSearchForCard_HiddenFatesShinyVault(t *testing.T) {
	searcher := &fakeSearcher{respond: func(q CardQuery) ([]models.Card, error) {
		if q.Number == "SV49" {
			return []models.Card{{ID: "sma-SV49", Name: "Charizard-GX", SetName: "Hidden Fates", Number: "SV49"}}, nil
		}
		return nil, nil
	}}

	cards, attempts := SearchForCard(context.Background(), searcher,
		models.NormalizedAttributes{Name: "Charizard GX", SetName: "Hidden Fates", Number: "49"})

	assertStrategies(t, attempts,
		StrategySetNumberNameExact, StrategyCrossSetNumberName, StrategySetFamilyNumberName,
		StrategySetNameOnly, StrategyHiddenFatesSVPrefix, StrategyFuzzyNameOnlyFallback)
	if len(cards) != 1 || cards[0].ID != "sma-SV49" {
		t.Errorf("cards = %+v", cards)
	}
}

func TestSearchForCard_NameAndHP(t *testing.T) {
	searcher := &fakeSearcher{}
	_, attempts := SearchForCard(context.Background(), searcher,
		models.NormalizedAttributes{Name: "Pikachu", HP: "60"})

	assertStrategies(t, attempts, StrategyNameHPCrossSet, StrategyFuzzyNameOnlyFallback)
	if searcher.queries[0].HP != "60" {
		t.Errorf("hp query = %+v", searcher.queries[0])
	}
	if _, ok := attempts[0].Query["hp"]; !ok {
		t.Errorf("attempt query missing hp: %v", attempts[0].Query)
	}
}

func TestSearchForCard_FuzzyFallbackCap(t *testing.T) {
	searcher := &fakeSearcher{respond: func(q CardQuery) ([]models.Card, error) {
		cards := make([]models.Card, 15)
		for i := range cards {
			cards[i] = models.Card{ID: fmt.Sprintf("pika-%d", i), Name: "Pikachu"}
		}
		return cards, nil
	}}

	cards, attempts := SearchForCard(context.Background(), searcher, models.NormalizedAttributes{Name: "Pikachu"})

	assertStrategies(t, attempts, StrategyFuzzyNameOnlyFallback)
	if len(cards) != maxFuzzyFallbackAdded {
		t.Errorf("got %d cards, want %d", len(cards), maxFuzzyFallbackAdded)
	}
	if attempts[0].ResultCount != 15 {
		t.Errorf("ResultCount = %d, want 15", attempts[0].ResultCount)
	}
}

func TestSearchForCard_SearcherErrors(t *testing.T) {
	boom := errors.New("boom")
	searcher := &fakeSearcher{respond: func(q CardQuery) ([]models.Card, error) {
		return nil, boom
	}}

	cards, attempts := SearchForCard(context.Background(), searcher,
		models.NormalizedAttributes{Name: "Pikachu", SetName: "Base Set", Number: "58"})

	if len(cards) != 0 {
		t.Errorf("got %d cards, want 0", len(cards))
	}
	assertStrategies(t, attempts,
		StrategySetNumberNameExact, StrategyCrossSetNumberName, StrategySetFamilyNumberName,
		StrategySetNameOnly, StrategyFuzzyNameOnlyFallback)
	for _, a := range attempts {
		if a.Error == "" {
			t.Errorf("%s: Error empty, want searcher error", a.Strategy)
		}
		if a.ResultCount != 0 {
			t.Errorf("%s: ResultCount = %d, want 0", a.Strategy, a.ResultCount)
		}
	}
	if family := attempts[2]; !strings.Contains(family.Error, "Base Set 2: boom") {
		t.Errorf("family Error = %q", family.Error)
	}
}

func TestSearchForCard_InvalidSetAndNumber(t *testing.T) {
	searcher := &fakeSearcher{}
	_, attempts := SearchForCard(context.Background(), searcher,
		models.NormalizedAttributes{Name: "Pikachu", SetName: "possibly Jungle", Number: "unknown"})

	assertStrategies(t, attempts, StrategyFuzzyNameOnlyFallback)
}
