package services

import (
	"context"
	"strings"

	"github.com/codyseavey/card-resolver/backend/internal/metrics"
	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// CardQuery is one query against a card database. Empty fields are omitted.
type CardQuery struct {
	Name     string
	SetName  string
	Number   string
	HP       string
	PageSize int
	Fuzzy    bool
}

// CardSearcher looks up candidate cards. A query with no matches returns an
// empty slice and a nil error.
type CardSearcher interface {
	SearchCards(ctx context.Context, q CardQuery) ([]models.Card, error)
}

// Search strategy names, in cascade order.
const (
	StrategySetNumberNameExact    = "set_number_name_exact"
	StrategyCrossSetNumberName    = "cross_set_number_name"
	StrategySetFamilyNumberName   = "set_family_number_name"
	StrategySetNameOnly           = "set_name_only"
	StrategyNameHPCrossSet        = "name_hp_cross_set"
	StrategyHiddenFatesSVPrefix   = "hidden_fates_sv_prefix"
	StrategyFuzzyNameOnlyFallback = "fuzzy_name_only_fallback"
)

const (
	fewResultsThreshold    = 5
	shinyVaultSearchBelow  = 3
	maxFuzzyFallbackAdded  = 10
	exactPageSize          = 5
	crossSetPageSize       = 10
	familyMemberPageSize   = 3
	setNameOnlyPageSize    = 10
	nameHPPageSize         = 10
	shinyVaultPageSize     = 5
	fuzzyFallbackPageSize  = 15
	shinyVaultNumberPrefix = "SV"
)

// searchState accumulates deduplicated results for a single cascade run.
type searchState struct {
	searcher CardSearcher
	cards    []models.Card
	seen     map[string]struct{}
	attempts []models.SearchAttempt
}

func newSearchState(searcher CardSearcher) *searchState {
	return &searchState{
		searcher: searcher,
		cards:    []models.Card{},
		seen:     make(map[string]struct{}),
		attempts: []models.SearchAttempt{},
	}
}

func queryFields(q CardQuery) map[string]any {
	fields := map[string]any{"name": q.Name, "page_size": q.PageSize}
	if q.SetName != "" {
		fields["set_name"] = q.SetName
	}
	if q.Number != "" {
		fields["number"] = q.Number
	}
	if q.HP != "" {
		fields["hp"] = q.HP
	}
	if q.Fuzzy {
		fields["fuzzy"] = true
	}
	return fields
}

// fetch sends one query, counting the outcome. Searcher errors are logged
// and returned for the attempt record.
func (s *searchState) fetch(ctx context.Context, strategy string, q CardQuery) ([]models.Card, error) {
	results, err := s.searcher.SearchCards(ctx, q)
	switch {
	case err != nil:
		warnLog("Search strategy %s failed: %v", strategy, err)
		metrics.SearchStrategyRuns.WithLabelValues(strategy, "error").Inc()
	case len(results) > 0:
		metrics.SearchStrategyRuns.WithLabelValues(strategy, "hit").Inc()
	default:
		metrics.SearchStrategyRuns.WithLabelValues(strategy, "empty").Inc()
	}
	return results, err
}

// merge appends up to limit unseen cards (0 = unlimited) and returns how
// many were added.
func (s *searchState) merge(results []models.Card, limit int) int {
	added := 0
	for _, card := range results {
		if limit > 0 && added >= limit {
			break
		}
		if _, dup := s.seen[card.ID]; dup {
			continue
		}
		s.seen[card.ID] = struct{}{}
		s.cards = append(s.cards, card)
		added++
	}
	return added
}

// run executes one query and records it as an attempt. Searcher errors
// count as zero results.
func (s *searchState) run(ctx context.Context, strategy string, q CardQuery, limit int) {
	attempt := models.SearchAttempt{Strategy: strategy, Query: queryFields(q)}
	results, err := s.fetch(ctx, strategy, q)
	if err != nil {
		attempt.Error = err.Error()
	}
	attempt.ResultCount = len(results)
	s.attempts = append(s.attempts, attempt)

	added := s.merge(results, limit)
	debugLog("Strategy %s returned %d results, %d new", strategy, len(results), added)
}

// runFamily queries every set in the family and records a single attempt
// whose count is the number of new cards found.
func (s *searchState) runFamily(ctx context.Context, name, number string, family []string) {
	query := map[string]any{"name": name, "number": number, "set_family": family, "page_size": familyMemberPageSize}
	attempt := models.SearchAttempt{Strategy: StrategySetFamilyNumberName, Query: query}

	var errs []string
	for _, member := range family {
		results, err := s.fetch(ctx, StrategySetFamilyNumberName, CardQuery{
			Name: name, SetName: member, Number: number, PageSize: familyMemberPageSize,
		})
		if err != nil {
			errs = append(errs, member+": "+err.Error())
			continue
		}
		added := s.merge(results, 0)
		attempt.ResultCount += added
		debugLog("Set family member %q returned %d results, %d new", member, len(results), added)
	}
	if len(errs) > 0 {
		attempt.Error = strings.Join(errs, "; ")
	}
	s.attempts = append(s.attempts, attempt)
}

// SearchForCard runs the search cascade for the normalized attributes and
// returns the deduplicated candidates plus one SearchAttempt per strategy run.
// Without a name nothing is searched.
func SearchForCard(ctx context.Context, searcher CardSearcher, attrs models.NormalizedAttributes) ([]models.Card, []models.SearchAttempt) {
	state := newSearchState(searcher)
	if attrs.Name == "" {
		return state.cards, state.attempts
	}

	name := attrs.Name
	setValid := IsValidSetName(attrs.SetName)
	numberValid := IsValidCardNumber(attrs.Number)

	// 1. set + number + name
	if setValid && numberValid {
		state.run(ctx, StrategySetNumberNameExact, CardQuery{
			Name: name, SetName: attrs.SetName, Number: attrs.Number, PageSize: exactPageSize,
		}, 0)
	}

	// 2. the set may be wrong; try number + name anywhere
	if len(state.cards) == 0 && numberValid {
		state.run(ctx, StrategyCrossSetNumberName, CardQuery{
			Name: name, Number: attrs.Number, PageSize: crossSetPageSize,
		}, 0)
	}

	// 3. generic set name ("XY", "Neo"): try every set in the family
	if len(state.cards) == 0 && attrs.SetName != "" && numberValid {
		if family := GetSetFamily(attrs.SetName); len(family) > 0 {
			state.runFamily(ctx, name, attrs.Number, family)
		}
	}

	// 4. set + name
	if setValid {
		state.run(ctx, StrategySetNameOnly, CardQuery{
			Name: name, SetName: attrs.SetName, PageSize: setNameOnlyPageSize,
		}, 0)
	}

	// 5. name + HP
	if attrs.HP != "" && len(state.cards) < fewResultsThreshold {
		state.run(ctx, StrategyNameHPCrossSet, CardQuery{
			Name: name, HP: attrs.HP, PageSize: nameHPPageSize,
		}, 0)
	}

	// 6. Shiny Vault cards are numbered SV1..SV94
	if attrs.SetName == HiddenFatesSetName && attrs.Number != "" && len(state.cards) < shinyVaultSearchBelow {
		state.run(ctx, StrategyHiddenFatesSVPrefix, CardQuery{
			Name: name, SetName: attrs.SetName, Number: shinyVaultNumberPrefix + attrs.Number, PageSize: shinyVaultPageSize,
		}, 0)
	}

	// 7. fuzzy name
	if len(state.cards) < fewResultsThreshold {
		state.run(ctx, StrategyFuzzyNameOnlyFallback, CardQuery{
			Name: name, PageSize: fuzzyFallbackPageSize, Fuzzy: true,
		}, maxFuzzyFallbackAdded)
	}

	infoLog("Search for %q finished: %d candidates from %d queries", name, len(state.cards), len(state.attempts))
	return state.cards, state.attempts
}

// CardSource is a searcher that can also fetch a single card by id.
type CardSource interface {
	CardSearcher
	GetCard(ctx context.Context, id string) (*models.Card, error)
}
