package services

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/codyseavey/card-resolver/backend/internal/metrics"
	"github.com/codyseavey/card-resolver/backend/internal/models"
)

const (
	pokemonDataURL     = "https://github.com/PokemonTCG/pokemon-tcg-data/archive/refs/heads/master.zip"
	pokemonDataDirName = "pokemon-tcg-data-master"
	localDefaultPage   = 20
)

// LocalCardIndex serves card searches from a pokemon-tcg-data checkout held
// in memory. It answers the same queries as PokemonTCGService.
type LocalCardIndex struct {
	sets      map[string]LocalSet
	cards     []LocalPokemonCard
	nameIndex map[string][]int // lowercase name -> card indices
	byID      map[string]int
	mu        sync.RWMutex
}

type LocalPokemonCard struct {
	Types  []string        `json:"types"`
	Images LocalCardImages `json:"images"`
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	HP     string          `json:"hp"`
	Number string          `json:"number"`
	Rarity string          `json:"rarity"`
	SetID  string          // Populated from filename
}

type LocalCardImages struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

type LocalSet struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Series       string `json:"series"`
	ReleaseDate  string `json:"releaseDate"`
	PrintedTotal int    `json:"printedTotal"`
	Total        int    `json:"total"`
}

// NewLocalCardIndex loads card data from dataDir. When the data is missing
// and download is set, the pokemon-tcg-data archive is fetched first.
func NewLocalCardIndex(dataDir string, download bool) (*LocalCardIndex, error) {
	idx := &LocalCardIndex{
		sets:      make(map[string]LocalSet),
		cards:     make([]LocalPokemonCard, 0),
		nameIndex: make(map[string][]int),
		byID:      make(map[string]int),
	}

	dataPath := filepath.Join(dataDir, pokemonDataDirName)
	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		if !download {
			return nil, fmt.Errorf("pokemon data not found in %s", dataDir)
		}
		log.Printf("Pokemon TCG data not found in %s, downloading...", dataDir)
		if err := downloadPokemonData(dataDir); err != nil {
			return nil, fmt.Errorf("failed to download pokemon data: %w", err)
		}
		log.Printf("Pokemon TCG data downloaded successfully")
	}

	if err := idx.loadData(dataPath); err != nil {
		return nil, err
	}
	return idx, nil
}

func (s *LocalCardIndex) loadData(dataPath string) error {
	setsFile := filepath.Join(dataPath, "sets", "en.json")
	setsData, err := os.ReadFile(setsFile)
	if err != nil {
		return fmt.Errorf("failed to read sets file: %w", err)
	}

	var sets []LocalSet
	if err := json.Unmarshal(setsData, &sets); err != nil {
		return fmt.Errorf("failed to parse sets: %w", err)
	}
	for _, set := range sets {
		s.sets[set.ID] = set
	}

	cardsDir := filepath.Join(dataPath, "cards", "en")
	files, err := os.ReadDir(cardsDir)
	if err != nil {
		return fmt.Errorf("failed to read cards directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".json") {
			continue
		}

		setID := strings.TrimSuffix(file.Name(), ".json")
		cardFile := filepath.Join(cardsDir, file.Name())
		cardData, err := os.ReadFile(cardFile)
		if err != nil {
			warnLog("failed to read card file %s: %v", cardFile, err)
			continue
		}

		var cards []LocalPokemonCard
		if err := json.Unmarshal(cardData, &cards); err != nil {
			warnLog("failed to parse card file %s: %v", cardFile, err)
			continue
		}

		for i := range cards {
			cards[i].SetID = setID
			idx := len(s.cards)
			s.cards = append(s.cards, cards[i])
			s.byID[cards[i].ID] = idx

			nameLower := strings.ToLower(cards[i].Name)
			s.nameIndex[nameLower] = append(s.nameIndex[nameLower], idx)
		}
	}

	metrics.CardDatabaseSize.Set(float64(len(s.cards)))
	log.Printf("Pokemon data loaded: %d cards, %d sets", len(s.cards), len(s.sets))
	return nil
}

// matches applies the non-name filters of a query.
func (s *LocalCardIndex) matches(card *LocalPokemonCard, setName, number, hp string) bool {
	if setName != "" {
		set, ok := s.sets[card.SetID]
		if !ok || !strings.EqualFold(set.Name, setName) {
			return false
		}
	}
	if number != "" && !strings.EqualFold(card.Number, number) {
		return false
	}
	if hp != "" && card.HP != hp {
		return false
	}
	return true
}

// SearchCards implements CardSearcher. Names, set names and numbers are
// normalized the same way as for the API; fuzzy queries match name prefixes.
func (s *LocalCardIndex) SearchCards(ctx context.Context, q CardQuery) ([]models.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := q.PageSize
	if limit <= 0 {
		limit = localDefaultPage
	}
	if limit > pokemonTCGMaxPageSize {
		limit = pokemonTCGMaxPageSize
	}

	var setName, number string
	if q.SetName != "" {
		setName = MapSetName(q.SetName)
	}
	if q.Number != "" {
		number = NormalizeCardNumber(q.Number)
	}
	name := strings.ToLower(NormalizePokemonName(q.Name))

	var candidates []int
	switch {
	case name == "":
		candidates = make([]int, len(s.cards))
		for i := range s.cards {
			candidates[i] = i
		}
	case q.Fuzzy:
		for i := range s.cards {
			if strings.HasPrefix(strings.ToLower(s.cards[i].Name), name) {
				candidates = append(candidates, i)
			}
		}
	default:
		candidates = s.nameIndex[name]
	}

	cards := make([]models.Card, 0, limit)
	for _, i := range candidates {
		if len(cards) == limit {
			break
		}
		if s.matches(&s.cards[i], setName, number, q.HP) {
			cards = append(cards, s.convertToCard(s.cards[i]))
		}
	}
	return cards, nil
}

// GetCard returns the card with the given id, or nil when unknown.
func (s *LocalCardIndex) GetCard(_ context.Context, id string) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	card := s.convertToCard(s.cards[i])
	return &card, nil
}

func (s *LocalCardIndex) convertToCard(lc LocalPokemonCard) models.Card {
	card := models.Card{
		ID:     lc.ID,
		Name:   lc.Name,
		SetID:  lc.SetID,
		Number: lc.Number,
		HP:     lc.HP,
		Types:  lc.Types,
		Rarity: lc.Rarity,
	}

	card.SetName = lc.SetID
	if set, ok := s.sets[lc.SetID]; ok {
		card.SetName = set.Name
		card.SetSeries = set.Series
		card.SetTotal = set.PrintedTotal
		if card.SetTotal == 0 {
			card.SetTotal = set.Total
		}
	}

	if lc.Images.Small != "" || lc.Images.Large != "" {
		card.Images = map[string]string{}
		if lc.Images.Small != "" {
			card.Images["small"] = lc.Images.Small
		}
		if lc.Images.Large != "" {
			card.Images["large"] = lc.Images.Large
		}
	}
	return card
}

func (s *LocalCardIndex) GetCardCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cards)
}

func (s *LocalCardIndex) GetSetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets)
}

func downloadPokemonData(dataDir string) error {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	zipPath := filepath.Join(dataDir, "pokemon-tcg-data.zip")

	// Use a client with timeout for large downloads
	client := &http.Client{
		Timeout: 5 * time.Minute,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pokemonDataURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	zipFile, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create zip file: %w", err)
	}
	if _, err := io.Copy(zipFile, resp.Body); err != nil {
		zipFile.Close()
		return fmt.Errorf("failed to write zip file: %w", err)
	}
	zipFile.Close()

	if err := extractZip(zipPath, dataDir); err != nil {
		return fmt.Errorf("failed to extract zip: %w", err)
	}

	if err := os.Remove(zipPath); err != nil {
		warnLog("failed to clean up zip file: %v", err)
	}

	// github adds a -master suffix, but not always
	extractedPath := filepath.Join(dataDir, pokemonDataDirName)
	if _, err := os.Stat(extractedPath); os.IsNotExist(err) {
		altPath := filepath.Join(dataDir, "pokemon-tcg-data")
		if _, err := os.Stat(altPath); err == nil {
			if renameErr := os.Rename(altPath, extractedPath); renameErr != nil {
				return fmt.Errorf("failed to rename extracted directory: %w", renameErr)
			}
		}
	}
	return nil
}

func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		fpath := filepath.Join(destDir, f.Name)

		// ZipSlip
		if !strings.HasPrefix(fpath, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("invalid file path: %s", fpath)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(fpath, os.ModePerm); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(fpath), os.ModePerm); err != nil {
			return err
		}

		if err := extractZipFile(f, fpath); err != nil {
			return err
		}
	}
	return nil
}

func extractZipFile(f *zip.File, fpath string) error {
	outFile, err := os.OpenFile(fpath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer outFile.Close()

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = io.Copy(outFile, rc)
	return err
}
