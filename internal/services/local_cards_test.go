package services

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
)

const testSetsJSON = `[
	{"id": "base1", "name": "Base", "series": "Base", "printedTotal": 102, "total": 102},
	{"id": "sma", "name": "Hidden Fates Shiny Vault", "series": "Sun & Moon", "printedTotal": 94, "total": 94}
]`

const testBaseCardsJSON = `[
	{"id": "base1-4", "name": "Charizard", "hp": "120", "number": "4", "rarity": "Rare Holo", "types": ["Fire"],
	 "images": {"small": "https://images.example/base1/4.png", "large": "https://images.example/base1/4_hires.png"}},
	{"id": "base1-58", "name": "Pikachu", "hp": "40", "number": "58", "rarity": "Common", "types": ["Lightning"],
	 "images": {"small": "https://images.example/base1/58.png"}},
	{"id": "base1-14", "name": "Raichu", "hp": "80", "number": "14", "rarity": "Rare Holo", "types": ["Lightning"]}
]`

const testShinyVaultJSON = `[
	{"id": "sma-SV49", "name": "Charizard-GX", "hp": "250", "number": "SV49", "rarity": "Rare Shiny GX", "types": ["Fire"]},
	{"id": "sma-SV1", "name": "Pikachu", "hp": "60", "number": "SV1", "rarity": "Shiny Holo Rare", "types": ["Lightning"]}
]`

func writeTestCardData(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	root := filepath.Join(dataDir, pokemonDataDirName)

	files := map[string]string{
		filepath.Join(root, "sets", "en.json"):            testSetsJSON,
		filepath.Join(root, "cards", "en", "base1.json"):  testBaseCardsJSON,
		filepath.Join(root, "cards", "en", "sma.json"):    testShinyVaultJSON,
		filepath.Join(root, "cards", "en", "README.md"):   "not card data",
		filepath.Join(root, "cards", "en", "broken.json"): "{",
	}
	for path, content := range files {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dataDir
}

func newTestIndex(t *testing.T) *LocalCardIndex {
	t.Helper()
	idx, err := NewLocalCardIndex(writeTestCardData(t), false)
	if err != nil {
		t.Fatalf("NewLocalCardIndex() error = %v", err)
	}
	return idx
}

func TestNewLocalCardIndex_MissingData(t *testing.T) {
	if _, err := NewLocalCardIndex(t.TempDir(), false); err == nil {
		t.Error("expected error when data is missing and download is off")
	}
}

func TestLocalCardIndex_Counts(t *testing.T) {
	idx := newTestIndex(t)
	if got := idx.GetCardCount(); got != 5 {
		t.Errorf("GetCardCount() = %d, want 5", got)
	}
	if got := idx.GetSetCount(); got != 2 {
		t.Errorf("GetSetCount() = %d, want 2", got)
	}
}

func TestLocalCardIndex_SearchCards(t *testing.T) {
	idx := newTestIndex(t)

	tests := []struct {
		name    string
		query   CardQuery
		wantIDs []string
	}{
		{"name set and number", CardQuery{Name: "Pikachu", SetName: "Base Set", Number: "058/102"}, []string{"base1-58"}},
		{"name is case insensitive", CardQuery{Name: "PIKACHU", SetName: "base"}, []string{"base1-58"}},
		{"name across sets", CardQuery{Name: "Pikachu"}, []string{"base1-58", "sma-SV1"}},
		{"shiny vault mapping", CardQuery{Name: "Charizard GX", SetName: "Hidden Fates", Number: "SV49"}, []string{"sma-SV49"}},
		{"hp filter", CardQuery{Name: "Pikachu", HP: "60"}, []string{"sma-SV1"}},
		{"fuzzy prefix", CardQuery{Name: "Chari", Fuzzy: true}, []string{"base1-4", "sma-SV49"}},
		{"page size", CardQuery{Name: "Pikachu", PageSize: 1}, []string{"base1-58"}},
		{"wrong number", CardQuery{Name: "Pikachu", SetName: "Base Set", Number: "14"}, []string{}},
		{"unknown name", CardQuery{Name: "Missingno"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cards, err := idx.SearchCards(context.Background(), tt.query)
			if err != nil {
				t.Fatalf("SearchCards() error = %v", err)
			}
			if cards == nil {
				t.Fatal("SearchCards() returned nil slice")
			}
			got := make(map[string]bool, len(cards))
			for _, c := range cards {
				got[c.ID] = true
			}
			if len(cards) != len(tt.wantIDs) {
				t.Fatalf("got %d cards, want %v", len(cards), tt.wantIDs)
			}
			for _, id := range tt.wantIDs {
				if !got[id] {
					t.Errorf("missing card %s in results", id)
				}
			}
		})
	}
}

func TestLocalCardIndex_SearchCardsCancelled(t *testing.T) {
	idx := newTestIndex(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := idx.SearchCards(ctx, CardQuery{Name: "Pikachu"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestLocalCardIndex_GetCard(t *testing.T) {
	idx := newTestIndex(t)

	card, err := idx.GetCard(context.Background(), "base1-4")
	if err != nil {
		t.Fatalf("GetCard() error = %v", err)
	}
	if card == nil {
		t.Fatal("GetCard() = nil, want base1-4")
	}
	if card.SetName != "Base" || card.SetID != "base1" || card.SetTotal != 102 || card.SetSeries != "Base" {
		t.Errorf("set fields = %q %q %d %q", card.SetName, card.SetID, card.SetTotal, card.SetSeries)
	}
	if card.ImageURL() != "https://images.example/base1/4_hires.png" {
		t.Errorf("ImageURL() = %q", card.ImageURL())
	}
	if card.HP != "120" || card.Rarity != "Rare Holo" || len(card.Types) != 1 {
		t.Errorf("card = %+v", card)
	}

	raichu, _ := idx.GetCard(context.Background(), "base1-14")
	if raichu == nil || raichu.Images != nil {
		t.Errorf("card without images should have nil Images: %+v", raichu)
	}

	missing, err := idx.GetCard(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Errorf("GetCard(unknown) = %v, %v, want nil, nil", missing, err)
	}
}

func writeTestZip(t *testing.T, names ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.zip")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for _, name := range names {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := entry.Write([]byte("[]")); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExtractZip(t *testing.T) {
	t.Run("extracts nested files", func(t *testing.T) {
		dest := t.TempDir()
		zipPath := writeTestZip(t, "pokemon-tcg-data-master/sets/en.json")

		if err := extractZip(zipPath, dest); err != nil {
			t.Fatalf("extractZip() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dest, "pokemon-tcg-data-master", "sets", "en.json")); err != nil {
			t.Errorf("extracted file missing: %v", err)
		}
	})

	t.Run("rejects paths outside destination", func(t *testing.T) {
		dest := t.TempDir()
		zipPath := writeTestZip(t, "../escape.json")

		if err := extractZip(zipPath, dest); err == nil {
			t.Error("expected error for path traversal entry")
		}
	})
}
