package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// ErrNoExtraction is returned when a model response carries no usable
// card attributes.
var ErrNoExtraction = errors.New("no card attributes found in model response")

var (
	markedJSONBlock   = regexp.MustCompile(`(?is)TCG_SEARCH_START\s*(\{.*?\})\s*TCG_SEARCH_END`)
	fencedJSONBlock   = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")
	bareJSONObject    = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)
	jsonControlChars  = regexp.MustCompile(`[\n\r\t]`)
	fallbackNameLines = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:Name|Pokemon|Card):\s*([^\n\r]+)`),
		regexp.MustCompile(`(?i)1\.\s*([^\n\r]+)`),
		regexp.MustCompile(`(?i)Pokemon name:\s*([^\n\r]+)`),
	}
)

var visualFeatureKeys = []string{
	models.FeatureSetSymbol,
	models.FeatureCardSeries,
	models.FeatureVisualEra,
	models.FeatureFoilPattern,
	models.FeatureBorderColor,
	models.FeatureEnergySymbolStyle,
}

// findJSONPayload locates the attribute object: marker-delimited first, then
// a fenced json block, then the largest bare object in the text.
func findJSONPayload(text string) string {
	if m := markedJSONBlock.FindStringSubmatch(text); m != nil {
		debugLog("Found TCG_SEARCH_START/END block")
		return m[1]
	}
	if m := fencedJSONBlock.FindStringSubmatch(text); m != nil {
		debugLog("Found fenced json block")
		return m[1]
	}
	largest := ""
	for _, candidate := range bareJSONObject.FindAllString(text, -1) {
		if len(candidate) > len(largest) {
			largest = candidate
		}
	}
	if largest != "" {
		debugLog("Found bare JSON object")
	}
	return largest
}

func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func intValue(v any) (int, bool) {
	switch val := v.(type) {
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		return n, err == nil
	}
	return 0, false
}

func percentScore(fields map[string]any, key string) int {
	raw, ok := fields[key]
	if !ok || raw == nil {
		return 0
	}
	n, ok := intValue(raw)
	if !ok || n < 0 || n > 100 {
		warnLog("Invalid %s: %v", key, raw)
		return 0
	}
	return n
}

func stringList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s := stringValue(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(val); s != "" {
			return []string{s}
		}
	}
	return nil
}

func attributesFromFields(fields map[string]any) models.ExtractedAttributes {
	attrs := models.ExtractedAttributes{
		Name:              stringValue(fields["name"]),
		SetName:           stringValue(fields["set_name"]),
		Number:            stringValue(fields["number"]),
		HP:                stringValue(fields["hp"]),
		Types:             stringList(fields["types"]),
		CardType:          strings.ToLower(stringValue(fields["card_type"])),
		Language:          strings.ToLower(stringValue(fields["language"])),
		AuthenticityScore: percentScore(fields, "authenticity_score"),
		ReadabilityScore:  percentScore(fields, "readability_score"),
	}
	if n, ok := intValue(fields["set_size"]); ok && n > 0 {
		attrs.SetSize = n
	}

	nested, _ := fields["visual_features"].(map[string]any)
	features := map[string]string{}
	for _, key := range visualFeatureKeys {
		value := stringValue(fields[key])
		if value == "" && nested != nil {
			value = stringValue(nested[key])
		}
		if value != "" {
			features[key] = value
		}
	}
	if len(features) > 0 {
		attrs.VisualFeatures = features
	}
	return attrs
}

// fallbackName scrapes a "Name: ..." style line from free text.
func fallbackName(text string) string {
	for _, pattern := range fallbackNameLines {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := cleanCardName(m[1])
		if len([]rune(name)) > 2 {
			return name
		}
	}
	return ""
}

// ParseExtraction turns a vision-model response into raw extracted
// attributes. Values are not validated here; NormalizeAttributes does that.
func ParseExtraction(text string) (models.ExtractedAttributes, error) {
	if payload := findJSONPayload(text); payload != "" {
		payload = jsonControlChars.ReplaceAllString(strings.TrimSpace(payload), " ")
		payload = whitespaceRun.ReplaceAllString(payload, " ")

		var fields map[string]any
		err := json.Unmarshal([]byte(payload), &fields)
		if err == nil {
			attrs := attributesFromFields(fields)
			debugLog("Extracted attributes: name=%q set=%q number=%q", attrs.Name, attrs.SetName, attrs.Number)
			return attrs, nil
		}
		warnLog("Failed to parse structured JSON from model response: %v", err)
	}

	infoLog("Falling back to line parsing of model response")
	if name := fallbackName(text); name != "" {
		return models.ExtractedAttributes{Name: name, CardType: models.CardTypePokemonFront}, nil
	}
	return models.ExtractedAttributes{}, ErrNoExtraction
}
