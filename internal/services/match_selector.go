package services

import (
	"sort"

	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// MinimumScoreThreshold is the lowest score accepted as a confident match.
const MinimumScoreThreshold = 750

// MaxAlternativeMatches caps the alternatives returned alongside a winner.
const MaxAlternativeMatches = 5

// completenessBonus breaks ties in favour of cards with more usable data.
// It only affects ordering, never the stored score.
func completenessBonus(card *models.Card) int {
	bonus := 0
	if card.SmallImage() != "" {
		bonus += 10
	}
	if card.HasMarketPrices() {
		bonus += 5
	}
	if card.SetName != "" {
		bonus += 5
	}
	return bonus
}

// RankMatches sorts scored matches best first. Matches that clear the
// threshold always rank above those that don't; within each group the order
// is score plus completeness bonus, descending. Equal keys keep input order.
func RankMatches(matches []models.ScoredMatch) []models.ScoredMatch {
	type keyed struct {
		match models.ScoredMatch
		key   int
	}
	entries := make([]keyed, len(matches))
	for i := range matches {
		entries[i] = keyed{match: matches[i], key: matches[i].Score + completenessBonus(&matches[i].Card)}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		iAccepted := entries[i].match.Score >= MinimumScoreThreshold
		jAccepted := entries[j].match.Score >= MinimumScoreThreshold
		if iAccepted != jAccepted {
			return iAccepted
		}
		return entries[i].key > entries[j].key
	})

	ranked := make([]models.ScoredMatch, len(entries))
	for i := range entries {
		ranked[i] = entries[i].match
	}
	return ranked
}

// Selection is the outcome of picking a winner from scored candidates.
type Selection struct {
	Winner       *models.ScoredMatch
	Ranked       []models.ScoredMatch
	HighestScore int
	// ScoreGap is how far the best candidate fell short of the threshold.
	// Zero when a winner was accepted or there were no candidates.
	ScoreGap int
}

// Best returns the top-ranked candidate whether or not it was accepted.
func (s *Selection) Best() *models.ScoredMatch {
	if len(s.Ranked) == 0 {
		return nil
	}
	return &s.Ranked[0]
}

// SelectBestMatch ranks the matches and accepts the top one if it reaches
// MinimumScoreThreshold.
func SelectBestMatch(matches []models.ScoredMatch) Selection {
	if len(matches) == 0 {
		return Selection{Ranked: []models.ScoredMatch{}}
	}

	ranked := RankMatches(matches)
	top := &ranked[0]
	sel := Selection{Ranked: ranked, HighestScore: top.Score}

	if top.Score < MinimumScoreThreshold {
		sel.ScoreGap = MinimumScoreThreshold - top.Score
		infoLog("Best match %s (%s #%s) scored %d, below threshold %d",
			top.Card.Name, top.Card.SetName, top.Card.Number, top.Score, MinimumScoreThreshold)
		return sel
	}

	sel.Winner = top
	return sel
}

// AlternativeMatches returns up to MaxAlternativeMatches accepted matches
// after the winner.
func AlternativeMatches(ranked []models.ScoredMatch) []models.ScoredMatch {
	alternatives := []models.ScoredMatch{}
	if len(ranked) < 2 {
		return alternatives
	}
	for _, m := range ranked[1:] {
		if m.Score < MinimumScoreThreshold {
			continue
		}
		alternatives = append(alternatives, m)
		if len(alternatives) == MaxAlternativeMatches {
			break
		}
	}
	return alternatives
}
