package services

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// variantMarkers are stripped from both names, in order, before comparing.
var variantMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+v$`),
	regexp.MustCompile(`(?i)\s+vmax$`),
	regexp.MustCompile(`(?i)\s+vstar$`),
	regexp.MustCompile(`(?i)\s+ex$`),
	regexp.MustCompile(`(?i)\s+gx$`),
	regexp.MustCompile(`(?i)\s+break$`),
	regexp.MustCompile(`(?i)\s+prime$`),
	regexp.MustCompile(`(?i)\s+lv\.?\s*x?$`),
	regexp.MustCompile(`(?i)\s+\d+$`),
	regexp.MustCompile(`(?i)\s+delta$`),
	regexp.MustCompile(`(?i)\s+star$`),
	regexp.MustCompile(`(?i)\s+dark$`),
	regexp.MustCompile(`(?i)^dark\s+`),
	regexp.MustCompile(`(?i)\s+light$`),
	regexp.MustCompile(`(?i)^light\s+`),
	regexp.MustCompile(`(?i)\s+shining$`),
	regexp.MustCompile(`(?i)^shining\s+`),
	regexp.MustCompile(`(?i)\s+crystal$`),
	regexp.MustCompile(`(?i)^crystal\s+`),
	regexp.MustCompile(`(?i)\s+\([^)]+\)$`),
	regexp.MustCompile(`(?i)\s+team\s+plasma$`),
	regexp.MustCompile(`(?i)\s+plasma$`),
}

type nameSpelling struct {
	canonical  string
	variations []string
}

// Spellings the vision model commonly produces for names with punctuation.
var nameSpellings = []nameSpelling{
	{"nidoran♀", []string{"nidoran f", "nidoran female", "nidoran (f)"}},
	{"nidoran♂", []string{"nidoran m", "nidoran male", "nidoran (m)"}},
	{"mr. mime", []string{"mr mime", "mrmime"}},
	{"mime jr.", []string{"mime jr", "mimejr"}},
	{"farfetch'd", []string{"farfetchd", "farfetch d"}},
	{"ho-oh", []string{"ho oh", "hooh"}},
	{"porygon-z", []string{"porygon z", "porygonz"}},
	{"jangmo-o", []string{"jangmo o", "jangmoo"}},
	{"hakamo-o", []string{"hakamo o", "hakamoo"}},
	{"kommo-o", []string{"kommo o", "kommoo"}},
	{"tapu koko", []string{"tapukoko"}},
	{"tapu lele", []string{"tapulele"}},
	{"tapu bulu", []string{"tapubulu"}},
	{"tapu fini", []string{"tapufini"}},
	{"type: null", []string{"type null", "typenull"}},
	{"sirfetch'd", []string{"sirfetchd", "sirfetch d"}},
	{"mr. rime", []string{"mr rime", "mrrime"}},
}

type formRewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

var formRewrites = []formRewrite{
	{regexp.MustCompile(`(?i)(.+)\s+alola`), "${1} alolan"},
	{regexp.MustCompile(`(?i)(.+)\s+galar`), "${1} galarian"},
	{regexp.MustCompile(`(?i)(.+)\s+hisui`), "${1} hisuian"},
	{regexp.MustCompile(`(?i)(.+)\s+paldea`), "${1} paldean"},
	{regexp.MustCompile(`(?i)(.+)\s+forme?`), "${1}"},
	{regexp.MustCompile(`(?i)(.+)\s+form`), "${1}"},
}

func normalizeCardName(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), " ")
}

func stripVariantMarkers(name string) string {
	for _, marker := range variantMarkers {
		name = marker.ReplaceAllString(name, "")
	}
	return strings.TrimSpace(name)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// IsPokemonVariantMatch reports whether two names refer to the same Pokémon
// once variant markers (V, VMAX, GX, Prime, LV.X, Dark, ...), alternate
// spellings and regional-form wording are disregarded.
func IsPokemonVariantMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}

	left := normalizeCardName(a)
	right := normalizeCardName(b)
	if left == right {
		return true
	}

	left = stripVariantMarkers(left)
	right = stripVariantMarkers(right)
	if left == right {
		return true
	}

	for _, s := range nameSpellings {
		if left == s.canonical && containsString(s.variations, right) {
			return true
		}
		if right == s.canonical && containsString(s.variations, left) {
			return true
		}
		if containsString(s.variations, left) && containsString(s.variations, right) {
			return true
		}
	}

	for _, rw := range formRewrites {
		if rw.pattern.ReplaceAllString(left, rw.replacement) == rw.pattern.ReplaceAllString(right, rw.replacement) {
			return true
		}
	}

	return false
}
