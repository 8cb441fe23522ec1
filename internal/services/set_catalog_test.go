package services

import (
	"reflect"
	"testing"
)

func TestGetSetFamily(t *testing.T) {
	tests := []struct {
		name    string
		setName string
		want    []string
	}{
		{"neo family", "Neo", []string{"Neo Genesis", "Neo Discovery", "Neo Destiny", "Neo Revelation"}},
		{"case insensitive", "BASE SET", []string{"Base Set", "Base", "Base Set 2"}},
		{"single member", "xy", []string{"XY"}},
		{"ampersand form", "sun & moon", []string{"Sun & Moon"}},
		{"unknown set", "Not A Set", nil},
		{"empty", "", nil},
		{"whitespace is not trimmed", " neo ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetSetFamily(tt.setName)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetSetFamily(%q) = %v, want %v", tt.setName, got, tt.want)
			}
		})
	}
}

func TestGetSetFamily_ReturnsCopy(t *testing.T) {
	first := GetSetFamily("neo")
	first[0] = "Mutated"

	second := GetSetFamily("neo")
	if second[0] != "Neo Genesis" {
		t.Errorf("family table was mutated through a returned slice: %v", second)
	}
}

func TestIsXYFamilyMatch(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"XY", "Flashfire", true},
		{"breakpoint", "BREAKthrough", true},
		{" Evolutions ", "xy base set", true},
		{"XY", "Sun & Moon", false},
		{"Base Set", "Jungle", false},
		{"", "XY", false},
		{"XY", "", false},
	}

	for _, tt := range tests {
		if got := IsXYFamilyMatch(tt.a, tt.b); got != tt.want {
			t.Errorf("IsXYFamilyMatch(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestGetSetFromTotalCount(t *testing.T) {
	tests := []struct {
		total int
		want  string
	}{
		{68, "Hidden Fates"},
		{214, "Lost Thunder"},
		{102, "Triumphant"},      // Base Set, then Triumphant
		{111, "Crimson Invasion"}, // shared by five sets
		{130, "Diamond & Pearl"},
		{9999, ""},
		{0, ""},
	}

	for _, tt := range tests {
		if got := GetSetFromTotalCount(tt.total); got != tt.want {
			t.Errorf("GetSetFromTotalCount(%d) = %q, want %q", tt.total, got, tt.want)
		}
	}
}

func TestSetsForTotalCount(t *testing.T) {
	got := SetsForTotalCount(102)
	want := []string{"Base Set", "Triumphant"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SetsForTotalCount(102) = %v, want %v", got, want)
	}

	if got := SetsForTotalCount(1); got != nil {
		t.Errorf("SetsForTotalCount(1) = %v, want nil", got)
	}
}

func TestCorrectSetBasedOnNumberPattern(t *testing.T) {
	tests := []struct {
		name   string
		set    string
		number string
		want   string
	}{
		{"base set number above range", "Base Set", "110", "Base Set 2"},
		{"base set 2 number in base range", "Base Set 2", "4", "Base Set"},
		{"base set in range", "Base Set", "4", ""},
		{"xy upper range", "XY", "120", "XY"},
		{"xy lower range has no rule", "XY", "12", ""},
		{"letters around digits", "Base Set", "H110a", "Base Set 2"},
		{"case insensitive set", "flashfire", "12", "Flashfire"},
		{"out of printed range", "Flashfire", "300", ""},
		{"no digits", "Base Set", "SV", ""},
		{"empty set", "", "4", ""},
		{"empty number", "Base Set", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CorrectSetBasedOnNumberPattern(tt.set, tt.number); got != tt.want {
				t.Errorf("CorrectSetBasedOnNumberPattern(%q, %q) = %q, want %q", tt.set, tt.number, got, tt.want)
			}
		})
	}
}

func TestCorrectXYSetBasedOnNumber(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{"12", "XY"},
		{"79", "XY"},
		{"80", "Flashfire"},
		{"106", "Flashfire"},
		{"107", "XY"},
		{"150", "Primal Clash"},
		{"161", "BREAKthrough"},
		{"163", ""},
		{"abc", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := CorrectXYSetBasedOnNumber(tt.number); got != tt.want {
			t.Errorf("CorrectXYSetBasedOnNumber(%q) = %q, want %q", tt.number, got, tt.want)
		}
	}
}

func TestExtractSetNameFromSymbol(t *testing.T) {
	tests := []struct {
		description string
		want        string
	}{
		{"Hidden Fates", "Hidden Fates"},
		{"  base set 2 ", "Base Set 2"},
		{"small pokeball with hidden fates logo", "Hidden Fates"},
		{"base 2 symbol", "Base Set"}, // "base" precedes "base 2" in the table
		{"crown", "Crown Zenith"},
		{"squiggle", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ExtractSetNameFromSymbol(tt.description); got != tt.want {
			t.Errorf("ExtractSetNameFromSymbol(%q) = %q, want %q", tt.description, got, tt.want)
		}
	}
}
