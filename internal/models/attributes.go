package models

// Card types reported by the vision model.
const (
	CardTypePokemonFront = "pokemon_front"
	CardTypePokemonBack  = "pokemon_back"
	CardTypeNonPokemon   = "non_pokemon"
	CardTypeUnknown      = "unknown"
)

// Visual feature keys.
const (
	FeatureSetSymbol         = "set_symbol"
	FeatureCardSeries        = "card_series"
	FeatureVisualEra         = "visual_era"
	FeatureFoilPattern       = "foil_pattern"
	FeatureBorderColor       = "border_color"
	FeatureEnergySymbolStyle = "energy_symbol_style"
)

// ExtractedAttributes is the raw attribute guess produced by the vision model.
// Any field may be empty or contain hedging text such as "possibly Jungle".
type ExtractedAttributes struct {
	Name              string            `json:"name,omitempty"`
	SetName           string            `json:"set_name,omitempty"`
	Number            string            `json:"number,omitempty"`
	HP                string            `json:"hp,omitempty"`
	Types             []string          `json:"types,omitempty"`
	SetSize           int               `json:"set_size,omitempty"`
	CardType          string            `json:"card_type,omitempty"`
	Language          string            `json:"language,omitempty"`
	VisualFeatures    map[string]string `json:"visual_features,omitempty"`
	AuthenticityScore int               `json:"authenticity_score,omitempty"`
	ReadabilityScore  int               `json:"readability_score,omitempty"`
}

// NormalizedAttributes is the cleaned, query-ready form of ExtractedAttributes.
type NormalizedAttributes struct {
	Name              string            `json:"name,omitempty"`
	SetName           string            `json:"set_name,omitempty"`
	OriginalSetName   string            `json:"original_set_name,omitempty"` // set before a correction rewrote it
	Number            string            `json:"number,omitempty"`
	HP                string            `json:"hp,omitempty"`
	Types             []string          `json:"types,omitempty"`
	SetSize           int               `json:"set_size,omitempty"`
	CardType          string            `json:"card_type,omitempty"`
	Language          string            `json:"language,omitempty"`
	VisualFeatures    map[string]string `json:"visual_features,omitempty"`
	AuthenticityScore int               `json:"authenticity_score,omitempty"`
	ReadabilityScore  int               `json:"readability_score,omitempty"`
}

// Feature returns a visual feature value or "".
func (a *NormalizedAttributes) Feature(key string) string {
	if a.VisualFeatures == nil {
		return ""
	}
	return a.VisualFeatures[key]
}
