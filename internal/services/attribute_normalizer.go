package services

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// Phrases that mean the model could not read the set name.
var invalidSetNamePhrases = []string{
	"not visible", "likely", "but", "era", "possibly", "unknown",
	"can't see", "cannot see", "unclear", "maybe", "appears to be",
	"looks like", "seems like", "hard to tell", "difficult to see",
}

// Phrases that mean the model could not read the card number.
var invalidCardNumberPhrases = []string{
	"not visible", "unknown", "unclear", "can't see", "cannot see",
	"hard to tell", "difficult", "n/a", "none", "not found",
}

// Hedging phrases checked on word boundaries by ContainsVagueIndicators.
var vaguePhrases = []string{
	"not visible", "not fully visible", "likely", "possibly",
	"appears to be", "hard to tell", "unclear", "can't see",
	"cannot see", "difficult to see", "seems like", "looks like",
	"maybe", "unknown", "uncertain", "not sure",
}

// Placeholder set names that carry no information.
var setNamePlaceholders = map[string]struct{}{
	"unknown":     {},
	"n/a":         {},
	"not visible": {},
}

var knownPokemonTypes = map[string]struct{}{
	"Fire": {}, "Water": {}, "Grass": {}, "Electric": {}, "Psychic": {},
	"Fighting": {}, "Dark": {}, "Metal": {}, "Fairy": {}, "Dragon": {},
	"Normal": {}, "Flying": {}, "Bug": {}, "Rock": {}, "Ghost": {},
	"Ice": {}, "Steel": {}, "Poison": {}, "Ground": {},
}

const (
	maxSetNameLength = 50
	maxTypes         = 2
	// ReadabilityTrustThreshold is the readability score at which hedging
	// heuristics are skipped.
	ReadabilityTrustThreshold = 90
)

var (
	cardNumberCharset   = regexp.MustCompile(`^[A-Za-z0-9\-]+$`)
	cardNumberToken     = regexp.MustCompile(`[A-Za-z]*\d+[A-Za-z]*`)
	parentheticalSuffix = regexp.MustCompile(`\s*\(.*?\)`)
	nameSpecialChars    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s-]`)
)

type energySymbol struct {
	symbol string
	energy string
}

// Energy glyphs the model copies from the card face, mapped to database words.
var energySymbols = []energySymbol{
	{"⚡", "Lightning"},
	{"🔥", "Fire"},
	{"💧", "Water"},
	{"🍃", "Grass"},
	{"🔮", "Psychic"},
	{"👊", "Fighting"},
	{"☠️", "Darkness"},
	{"⚙️", "Metal"},
	{"🌈", "Rainbow"},
	{"💥", "Lightning"},
	{"🌿", "Grass"},
	{"💀", "Darkness"},
	{"🔩", "Metal"},
}

// IsValidSetName reports whether a set name is usable as a query filter.
// Whitespace-only names are accepted.
func IsValidSetName(setName string) bool {
	if setName == "" {
		return false
	}
	lower := strings.ToLower(setName)
	for _, phrase := range invalidSetNamePhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	if utf8.RuneCountInString(setName) > maxSetNameLength {
		return false
	}
	return !strings.Contains(setName, ",")
}

// IsValidCardNumber reports whether a card number looks like a printed
// collector number ("25", "SV56", "177a", "XY-P001").
func IsValidCardNumber(number string) bool {
	number = strings.TrimSpace(number)
	if number == "" {
		return false
	}
	lower := strings.ToLower(number)
	for _, phrase := range invalidCardNumberPhrases {
		if strings.Contains(lower, phrase) {
			return false
		}
	}
	if strings.Contains(number, " ") {
		return false
	}
	if !cardNumberCharset.MatchString(number) {
		return false
	}
	return strings.IndexFunc(number, unicode.IsDigit) >= 0
}

func containsVaguePhrase(value string) bool {
	padded := " " + value + " "
	for _, phrase := range vaguePhrases {
		if strings.Contains(padded, " "+phrase+" ") ||
			strings.HasPrefix(value, phrase+" ") ||
			strings.HasSuffix(value, " "+phrase) ||
			value == phrase {
			return true
		}
	}
	return false
}

// ContainsVagueIndicators reports whether the extraction suggests the model
// could not read the card: hedging phrases in the name, set or number, or a
// missing name. Card backs and high readability scores are trusted.
func ContainsVagueIndicators(attrs models.NormalizedAttributes) bool {
	if attrs.CardType == models.CardTypePokemonBack {
		return false
	}
	if attrs.ReadabilityScore >= ReadabilityTrustThreshold {
		return false
	}

	fields := []struct {
		name  string
		value string
	}{
		{"set_name", attrs.SetName},
		{"number", attrs.Number},
		{"name", attrs.Name},
	}
	for _, f := range fields {
		value := strings.ToLower(f.value)
		if value != "" && containsVaguePhrase(value) {
			debugLog("Vague indicator in %s: %q", f.name, value)
			return true
		}
	}

	name := strings.TrimSpace(attrs.Name)
	if utf8.RuneCountInString(name) < 2 {
		debugLog("Vague indicator: name missing or too short")
		return true
	}
	return false
}

// NormalizeEnergySymbols replaces energy glyphs with their type names
// ("Basic ⚡ Energy" -> "Basic Lightning Energy").
func NormalizeEnergySymbols(name string) string {
	for _, e := range energySymbols {
		if !strings.Contains(name, e.symbol) {
			continue
		}
		quoted := regexp.QuoteMeta(e.symbol)
		name = regexp.MustCompile(`Basic\s*`+quoted+`\s*Energy`).ReplaceAllString(name, "Basic "+e.energy+" Energy")
		name = regexp.MustCompile(quoted+`\s*Energy`).ReplaceAllString(name, e.energy+" Energy")
		name = strings.ReplaceAll(name, e.symbol, e.energy)
	}
	return name
}

// titleCase upper-cases the first letter of every word and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

func cleanCardName(raw string) string {
	name := NormalizeEnergySymbols(strings.TrimSpace(raw))
	name = parentheticalSuffix.ReplaceAllString(name, "")
	name = nameSpecialChars.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// splitCardNumber separates "4/102" into the collector number and the
// printed set size. Prefix and suffix letters are kept ("H11", "177a").
func splitCardNumber(raw string) (number string, setSize int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0
	}
	if parts := strings.Split(raw, "/"); len(parts) == 2 {
		if size, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil && size > 0 {
			setSize = size
		}
	}
	if token := cardNumberToken.FindString(raw); token != "" {
		return token, setSize
	}
	return strings.TrimSpace(strings.Split(raw, "/")[0]), setSize
}

func cleanTypes(raw []string) []string {
	var types []string
	for _, t := range raw {
		clean := titleCase(strings.TrimSpace(t))
		if _, ok := knownPokemonTypes[clean]; ok {
			types = append(types, clean)
		}
	}
	if len(types) > maxTypes {
		types = types[:maxTypes]
	}
	return types
}

func boundedScore(score int) int {
	if score < 0 || score > 100 {
		return 0
	}
	return score
}

// correctSetName applies number-range corrections to an extracted set name.
// It returns the set unchanged when no rule applies.
func correctSetName(setName, rawNumber string) string {
	if corrected := CorrectSetBasedOnNumberPattern(setName, rawNumber); corrected != "" && corrected != setName {
		infoLog("Corrected set name from %q to %q based on number pattern", setName, corrected)
		return corrected
	}
	if strings.HasPrefix(strings.ToUpper(setName), "XY") && rawNumber != "" {
		if corrected := CorrectXYSetBasedOnNumber(rawNumber); corrected != "" && corrected != setName {
			infoLog("Corrected XY-era set name from %q to %q based on number", setName, corrected)
			return corrected
		}
	}
	return setName
}

// NormalizeAttributes cleans a raw extraction into query-ready attributes.
// It never fills in a field the extraction did not support; rejected values
// are dropped. The input is not modified.
func NormalizeAttributes(extracted models.ExtractedAttributes) models.NormalizedAttributes {
	var out models.NormalizedAttributes

	cardType := strings.ToLower(strings.TrimSpace(extracted.CardType))
	switch cardType {
	case models.CardTypePokemonFront, models.CardTypePokemonBack, models.CardTypeNonPokemon, models.CardTypeUnknown:
		out.CardType = cardType
	default:
		out.CardType = models.CardTypePokemonFront
	}
	out.Language = strings.ToLower(strings.TrimSpace(extracted.Language))

	if name := cleanCardName(extracted.Name); utf8.RuneCountInString(name) > 1 {
		out.Name = name
	}

	if len(extracted.VisualFeatures) > 0 {
		features := make(map[string]string, len(extracted.VisualFeatures))
		for k, v := range extracted.VisualFeatures {
			if v = strings.TrimSpace(v); v != "" {
				features[k] = v
			}
		}
		if len(features) > 0 {
			out.VisualFeatures = features
		}
	}

	rawNumber := strings.TrimSpace(extracted.Number)
	if setName := strings.TrimSpace(extracted.SetName); setName != "" {
		if _, placeholder := setNamePlaceholders[strings.ToLower(setName)]; !placeholder {
			out.SetName = correctSetName(setName, rawNumber)
			if out.SetName != setName {
				out.OriginalSetName = setName
			}
		}
	}
	if out.SetName == "" {
		if symbol := out.Feature(models.FeatureSetSymbol); symbol != "" {
			if derived := ExtractSetNameFromSymbol(symbol); derived != "" {
				debugLog("Derived set name %q from symbol description %q", derived, symbol)
				out.SetName = derived
			}
		}
	}

	if rawNumber != "" {
		number, setSize := splitCardNumber(rawNumber)
		out.Number = number
		out.SetSize = setSize
	}
	if out.SetSize == 0 && extracted.SetSize > 0 {
		out.SetSize = extracted.SetSize
	}

	if hp := firstDigitsPattern.FindString(extracted.HP); hp != "" {
		out.HP = hp
	}

	out.Types = cleanTypes(extracted.Types)
	out.AuthenticityScore = boundedScore(extracted.AuthenticityScore)
	out.ReadabilityScore = boundedScore(extracted.ReadabilityScore)

	return out
}
