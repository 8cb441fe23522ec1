package services

import (
	"fmt"
	"strings"

	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// Score factor names. Every breakdown carries all of them.
const (
	FactorSetNumberNameTriple   = "set_number_name_triple"
	FactorSetNumberCombo        = "set_number_combo"
	FactorNameExact             = "name_exact"
	FactorNameVariantMatch      = "name_variant_match"
	FactorNamePartial           = "name_partial"
	FactorNameTagTeamPenalty    = "name_tag_team_penalty"
	FactorNumberExact           = "number_exact"
	FactorNumberPartial         = "number_partial"
	FactorNumberMismatchPenalty = "number_mismatch_penalty"
	FactorHPMatch               = "hp_match"
	FactorSetExact              = "set_exact"
	FactorSetPartial            = "set_partial"
	FactorSetFamilyMatch        = "set_family_match"
	FactorSetSizeExact          = "set_size_exact"
	FactorSetSizeClose          = "set_size_close"
	FactorShinyVaultBonus       = "shiny_vault_bonus"
	FactorVisualSeriesMatch     = "visual_series_match"
	FactorVisualEraMatch        = "visual_era_match"
	FactorVisualFoilMatch       = "visual_foil_match"
	FactorPrimeCardMatch        = "prime_card_match"
	FactorPrimeVsRegularPenalty = "prime_vs_regular_penalty"
	FactorMissedPrimePenalty    = "missed_prime_penalty"
	FactorTypePerfectMatch      = "type_perfect_match"
	FactorTypeAICompleteMatch   = "type_ai_complete_match"
	FactorTypePartialMatch      = "type_partial_match"
	FactorTypeMismatchPenalty   = "type_mismatch_penalty"
	FactorTypeMissingPenalty    = "type_missing_penalty"
)

var scoreFactors = []string{
	FactorSetNumberNameTriple, FactorSetNumberCombo,
	FactorNameExact, FactorNameVariantMatch, FactorNamePartial, FactorNameTagTeamPenalty,
	FactorNumberExact, FactorNumberPartial, FactorNumberMismatchPenalty,
	FactorHPMatch,
	FactorSetExact, FactorSetPartial, FactorSetFamilyMatch, FactorSetSizeExact, FactorSetSizeClose,
	FactorShinyVaultBonus,
	FactorVisualSeriesMatch, FactorVisualEraMatch, FactorVisualFoilMatch,
	FactorPrimeCardMatch, FactorPrimeVsRegularPenalty, FactorMissedPrimePenalty,
	FactorTypePerfectMatch, FactorTypeAICompleteMatch, FactorTypePartialMatch,
	FactorTypeMismatchPenalty, FactorTypeMissingPenalty,
}

const (
	scoreSetExact           = 2000
	scoreSetFamily          = 800
	scoreSetPartial         = 500
	scoreNumberExact        = 2000
	scoreNumberPartial      = 800
	scoreSetSizeExact       = 300
	scoreSetSizeClose       = 100
	setSizeCloseTolerance   = 5
	scoreNameExact          = 1500
	scoreNameVariant        = 1400
	scoreNamePartial        = 300
	scoreNameTagTeamPartial = 100
	penaltyNameTagTeam      = -500
	scorePrimeMatch         = 800
	penaltyPrimeVsRegular   = -400
	penaltyMissedPrime      = -200
	scoreTripleCombo        = 5000
	scoreSetNumberCombo     = 3000
	penaltyNumberMismatch   = -2000
	scoreHPMatch            = 400
	scoreTypePerfect        = 800
	scoreTypeAIComplete     = 600
	scoreTypePartialEach    = 300
	penaltyTypeMismatch     = -1500
	penaltyTypeMissing      = -200
	scoreShinyVault         = 300
	scoreVisualSeries       = 500
	scoreVisualEra          = 300
	scoreVisualFoil         = 100
	scorerHighConfidence    = 1000
	scorerMediumConfidence  = 600
)

// HiddenFatesSetName is the set whose Shiny Vault cards carry an "SV" number prefix.
const HiddenFatesSetName = "Hidden Fates"

type seriesPattern struct {
	series   string
	patterns []string
}

// Card series the model reports, mapped to fragments of matching set names.
var visualSeriesPatterns = []seriesPattern{
	{"e-card", []string{"aquapolis", "skyridge", "expedition"}},
	{"ex", []string{"ruby", "sapphire", "emerald", "firered", "leafgreen"}},
	{"xy", []string{"xy", "breakpoint", "breakthrough", "fates collide", "steam siege", "evolutions",
		"flashfire", "furious fists", "phantom forces", "primal clash", "roaring skies", "ancient origins"}},
	{"sun moon", []string{"sun", "moon", "ultra", "cosmic", "guardians rising", "burning shadows",
		"crimson invasion", "forbidden light", "celestial storm", "lost thunder"}},
	{"sword shield", []string{"sword", "shield", "battle styles", "chilling reign", "rebel clash",
		"darkness ablaze", "vivid voltage", "evolving skies", "fusion strike"}},
}

var (
	vintageSetFragments = []string{"base", "jungle", "fossil", "aquapolis", "skyridge", "expedition"}
	modernSetFragments  = []string{"xy", "sun", "moon", "sword", "shield", "scarlet", "violet"}
	foilKeywords        = []string{"holo", "foil", "crystal", "rainbow", "cosmos"}
)

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func mutuallyContains(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ScoreMatch scores one candidate card against the normalized attributes.
// The returned Score is exactly the sum of ScoreBreakdown.
func ScoreMatch(card models.Card, attrs models.NormalizedAttributes) models.ScoredMatch {
	breakdown := make(map[string]int, len(scoreFactors))
	for _, f := range scoreFactors {
		breakdown[f] = 0
	}

	var hasSet, hasNumber, hasName bool

	if attrs.SetName != "" && card.SetName != "" {
		querySet := strings.ToLower(strings.TrimSpace(attrs.SetName))
		cardSet := strings.ToLower(strings.TrimSpace(card.SetName))
		switch {
		case querySet == cardSet:
			hasSet = true
			breakdown[FactorSetExact] = scoreSetExact
		case mutuallyContains(querySet, cardSet):
			if IsXYFamilyMatch(querySet, cardSet) {
				breakdown[FactorSetFamilyMatch] = scoreSetFamily
			} else {
				breakdown[FactorSetPartial] = scoreSetPartial
			}
		}
	}

	queryNumber := strings.TrimSpace(attrs.Number)
	cardNumber := strings.TrimSpace(card.Number)
	if queryNumber != "" && cardNumber != "" {
		switch {
		case queryNumber == cardNumber:
			hasNumber = true
			breakdown[FactorNumberExact] = scoreNumberExact
		case mutuallyContains(queryNumber, cardNumber):
			breakdown[FactorNumberPartial] = scoreNumberPartial
		default:
			breakdown[FactorNumberMismatchPenalty] = penaltyNumberMismatch
		}
	}

	if attrs.SetSize > 0 && card.SetTotal > 0 {
		diff := attrs.SetSize - card.SetTotal
		if diff < 0 {
			diff = -diff
		}
		if diff == 0 {
			breakdown[FactorSetSizeExact] = scoreSetSizeExact
		} else if diff <= setSizeCloseTolerance {
			breakdown[FactorSetSizeClose] = scoreSetSizeClose
		}
	}

	if attrs.Name != "" && card.Name != "" {
		queryName := strings.ToLower(strings.TrimSpace(attrs.Name))
		cardName := strings.ToLower(strings.TrimSpace(card.Name))

		switch {
		case queryName == cardName:
			hasName = true
			breakdown[FactorNameExact] = scoreNameExact
		case IsPokemonVariantMatch(queryName, cardName):
			hasName = true
			breakdown[FactorNameVariantMatch] = scoreNameVariant
		case strings.Contains(cardName, "&") && !strings.Contains(queryName, "&"):
			// tag team card for a single Pokémon query
			if strings.Contains(cardName, queryName) {
				breakdown[FactorNamePartial] = scoreNameTagTeamPartial
				breakdown[FactorNameTagTeamPenalty] = penaltyNameTagTeam
			}
		case mutuallyContains(queryName, cardName):
			breakdown[FactorNamePartial] = scoreNamePartial
		}

		queryPrime := strings.Contains(queryName, "prime")
		cardPrime := strings.Contains(cardName, "prime")
		switch {
		case queryPrime && cardPrime:
			breakdown[FactorPrimeCardMatch] = scorePrimeMatch
		case queryPrime:
			base := strings.TrimSpace(strings.ReplaceAll(queryName, " prime", ""))
			if strings.Contains(cardName, base) {
				breakdown[FactorPrimeVsRegularPenalty] = penaltyPrimeVsRegular
			}
		case cardPrime:
			base := strings.TrimSpace(strings.ReplaceAll(cardName, " prime", ""))
			if strings.Contains(queryName, base) {
				breakdown[FactorMissedPrimePenalty] = penaltyMissedPrime
			}
		}
	}

	if hasSet && hasNumber && hasName {
		breakdown[FactorSetNumberNameTriple] = scoreTripleCombo
	} else if hasSet && hasNumber {
		breakdown[FactorSetNumberCombo] = scoreSetNumberCombo
	}

	if attrs.HP != "" && card.HP != "" && strings.TrimSpace(attrs.HP) == strings.TrimSpace(card.HP) {
		breakdown[FactorHPMatch] = scoreHPMatch
	}

	scoreTypes(breakdown, attrs.Types, card.Types)

	if strings.HasPrefix(card.Number, "SV") && attrs.SetName == HiddenFatesSetName {
		breakdown[FactorShinyVaultBonus] = scoreShinyVault
	}

	scoreVisualFeatures(breakdown, attrs, strings.ToLower(card.SetName))

	total := 0
	for _, v := range breakdown {
		total += v
	}

	return models.ScoredMatch{
		Card:           card,
		Score:          total,
		ScoreBreakdown: breakdown,
		Confidence:     scorerConfidence(total),
		Reasoning:      MatchReasoning(breakdown),
	}
}

func cleanTypeList(types []string) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		out = append(out, titleCase(strings.TrimSpace(t)))
	}
	return out
}

func scoreTypes(breakdown map[string]int, queryTypes, cardTypes []string) {
	if len(queryTypes) == 0 {
		return
	}
	if len(cardTypes) == 0 {
		breakdown[FactorTypeMissingPenalty] = penaltyTypeMissing
		return
	}

	query := cleanTypeList(queryTypes)
	cardClean := cleanTypeList(cardTypes)
	matching := 0
	for _, t := range query {
		if containsString(cardClean, t) {
			matching++
		}
	}

	switch {
	case matching > 0 && matching == len(query) && matching == len(cardClean):
		breakdown[FactorTypePerfectMatch] = scoreTypePerfect
	case matching > 0 && matching == len(query):
		breakdown[FactorTypeAICompleteMatch] = scoreTypeAIComplete
	case matching > 0:
		breakdown[FactorTypePartialMatch] = matching * scoreTypePartialEach
	case len(query) > 0 && len(cardClean) > 0:
		breakdown[FactorTypeMismatchPenalty] = penaltyTypeMismatch
	}
}

func scoreVisualFeatures(breakdown map[string]int, attrs models.NormalizedAttributes, cardSet string) {
	if cardSet == "" {
		return
	}

	if series := strings.ToLower(attrs.Feature(models.FeatureCardSeries)); series != "" {
		for _, sp := range visualSeriesPatterns {
			if strings.Contains(series, sp.series) && containsAny(cardSet, sp.patterns) {
				breakdown[FactorVisualSeriesMatch] = scoreVisualSeries
				break
			}
		}
	}

	if era := strings.ToLower(attrs.Feature(models.FeatureVisualEra)); era != "" {
		if strings.Contains(era, "vintage") || strings.Contains(era, "classic") {
			if containsAny(cardSet, vintageSetFragments) {
				breakdown[FactorVisualEraMatch] = scoreVisualEra
			}
		} else if strings.Contains(era, "modern") && containsAny(cardSet, modernSetFragments) {
			breakdown[FactorVisualEraMatch] = scoreVisualEra
		}
	}

	if foil := strings.ToLower(attrs.Feature(models.FeatureFoilPattern)); foil != "" && containsAny(foil, foilKeywords) {
		breakdown[FactorVisualFoilMatch] = scoreVisualFoil
	}
}

func scorerConfidence(score int) models.Confidence {
	switch {
	case score >= scorerHighConfidence:
		return models.ConfidenceHigh
	case score >= scorerMediumConfidence:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

type reasonLine struct {
	factor string
	label  string
}

// Reasoning lines in display order. Within a group only the first non-zero
// factor is reported.
var reasoningGroups = [][]reasonLine{
	{{FactorSetNumberNameTriple, "PERFECT MATCH: Set+Number+Name"}, {FactorSetNumberCombo, "STRONG MATCH: Set+Number"}},
	{{FactorNameExact, "Exact name match"}, {FactorNameVariantMatch, "Name variant match"}, {FactorNamePartial, "Partial name match"}},
	{{FactorNumberExact, "Exact number match"}, {FactorNumberPartial, "Partial number match"}},
	{{FactorSetExact, "Exact set match"}, {FactorSetFamilyMatch, "Same-era set match"}, {FactorSetPartial, "Partial set match"}},
	{{FactorSetSizeExact, "Set size match"}, {FactorSetSizeClose, "Set size close"}},
	{{FactorHPMatch, "HP match"}},
	{{FactorTypePerfectMatch, "Type match"}, {FactorTypeAICompleteMatch, "Detected types match"}, {FactorTypePartialMatch, "Partial type match"}},
	{{FactorPrimeCardMatch, "Prime match"}},
	{{FactorShinyVaultBonus, "Shiny Vault bonus"}},
	{{FactorVisualSeriesMatch, "Series match"}},
	{{FactorVisualEraMatch, "Era match"}},
	{{FactorVisualFoilMatch, "Foil match"}},
	{{FactorNameTagTeamPenalty, "Tag team penalty"}},
	{{FactorPrimeVsRegularPenalty, "Prime detected but card is not Prime"}},
	{{FactorMissedPrimePenalty, "Card is Prime but Prime not detected"}},
	{{FactorTypeMismatchPenalty, "Type mismatch"}},
	{{FactorTypeMissingPenalty, "Card has no types"}},
	{{FactorNumberMismatchPenalty, "WRONG NUMBER"}},
}

// MatchReasoning turns a score breakdown into human-readable lines.
func MatchReasoning(breakdown map[string]int) []string {
	reasons := []string{}
	for _, group := range reasoningGroups {
		for _, line := range group {
			v := breakdown[line.factor]
			if v == 0 {
				continue
			}
			if v > 0 {
				reasons = append(reasons, fmt.Sprintf("%s (+%d)", line.label, v))
			} else {
				reasons = append(reasons, fmt.Sprintf("%s (%d)", line.label, v))
			}
			break
		}
	}
	return reasons
}
