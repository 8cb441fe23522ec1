package services

import "testing"

func TestIsPokemonVariantMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "Pikachu", "Pikachu", true},
		{"case and spacing", "  CHARIZARD ", "charizard", true},
		{"v suffix", "Charizard V", "Charizard", true},
		{"vmax suffix", "Charizard VMAX", "charizard", true},
		{"gx suffix", "Umbreon GX", "Umbreon", true},
		{"prime suffix", "Typhlosion Prime", "Typhlosion", true},
		{"lv.x suffix", "Venusaur LV.X", "Venusaur", true},
		{"dark prefix", "Dark Charizard", "Charizard", true},
		{"shining prefix", "Shining Magikarp", "Magikarp", true},
		{"parenthetical", "Pikachu (Flying)", "Pikachu", true},
		{"spelling without punctuation", "Mr Mime", "Mr. Mime", true},
		{"gender symbol", "Nidoran F", "Nidoran♀", true},
		{"two spellings of one name", "farfetchd", "farfetch d", true},
		{"forme wording", "Giratina Origin Forme", "Giratina Origin", true},
		{"different pokemon", "Pikachu", "Raichu", false},
		{"opposite gender", "Nidoran M", "Nidoran♀", false},
		{"empty left", "", "Pikachu", false},
		{"empty right", "Pikachu", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPokemonVariantMatch(tt.a, tt.b); got != tt.want {
				t.Errorf("IsPokemonVariantMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := IsPokemonVariantMatch(tt.b, tt.a); got != tt.want {
				t.Errorf("IsPokemonVariantMatch(%q, %q) = %v, want %v", tt.b, tt.a, got, tt.want)
			}
		})
	}
}
