package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// flakySource fails GetCard for the listed ids.
type flakySource struct {
	*fakeSearcher
	failures map[string]error
	fetched  []string
}

func (s *flakySource) GetCard(ctx context.Context, id string) (*models.Card, error) {
	s.fetched = append(s.fetched, id)
	if err, ok := s.failures[id]; ok {
		return nil, err
	}
	return s.fakeSearcher.GetCard(ctx, id)
}

func seedCards(t *testing.T, db *gorm.DB, age time.Duration, cards ...models.Card) {
	t.Helper()
	for _, c := range cards {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("seed %s: %v", c.ID, err)
		}
		if err := db.Model(&models.Card{}).Where("id = ?", c.ID).
			UpdateColumn("updated_at", time.Now().Add(-age)).Error; err != nil {
			t.Fatalf("age %s: %v", c.ID, err)
		}
	}
}

func TestCardRefreshWorker_Defaults(t *testing.T) {
	w := NewCardRefreshWorker(&fakeSearcher{}, newTestDB(t), RefreshOptions{})
	status := w.GetStatus()
	if status.BatchSize != defaultRefreshBatchSize {
		t.Errorf("BatchSize = %d, want %d", status.BatchSize, defaultRefreshBatchSize)
	}
	if !status.LastRunTime.IsZero() || !status.NextRunTime.IsZero() {
		t.Errorf("times should be zero before the first run: %+v", status)
	}
}

func TestCardRefreshWorker_QueueRefresh(t *testing.T) {
	w := NewCardRefreshWorker(&fakeSearcher{}, newTestDB(t), RefreshOptions{})

	if pos := w.QueueRefresh("base1-4"); pos != 1 {
		t.Errorf("first position = %d, want 1", pos)
	}
	if pos := w.QueueRefresh("base1-58"); pos != 2 {
		t.Errorf("second position = %d, want 2", pos)
	}
	if pos := w.QueueRefresh("base1-4"); pos != 1 {
		t.Errorf("duplicate position = %d, want 1", pos)
	}
	if w.GetQueueSize() != 2 {
		t.Errorf("GetQueueSize() = %d, want 2", w.GetQueueSize())
	}
}

func TestCardRefreshWorker_UpdateBatch(t *testing.T) {
	db := newTestDB(t)
	seedCards(t, db, 48*time.Hour,
		models.Card{ID: "base1-4", Name: "Charizard", SetName: "Base", Number: "4"},
		models.Card{ID: "base1-58", Name: "Pikachu", SetName: "Base", Number: "58"},
	)
	seedCards(t, db, time.Hour, models.Card{ID: "base1-14", Name: "Raichu", SetName: "Base", Number: "14"})

	source := &flakySource{fakeSearcher: &fakeSearcher{cards: map[string]models.Card{
		"base1-4": {ID: "base1-4", Name: "Charizard", SetName: "Base", Number: "4",
			MarketPrices: map[string]models.MarketPrice{"holofoil": {Market: 350}}},
		"base1-14": {ID: "base1-14", Name: "Raichu", SetName: "Base", Number: "14"},
	}}}
	w := NewCardRefreshWorker(source, db, RefreshOptions{BatchSize: 5, StaleAfter: 24 * time.Hour})
	w.QueueRefresh("base1-14")

	refreshed, err := w.UpdateBatch(context.Background())
	if err != nil {
		t.Fatalf("UpdateBatch() error = %v", err)
	}
	// base1-14 is queued, base1-4 is stale, base1-58 is stale but gone.
	if refreshed != 2 {
		t.Errorf("refreshed = %d, want 2", refreshed)
	}
	if len(source.fetched) != 3 || source.fetched[0] != "base1-14" {
		t.Errorf("fetched = %v, want queued card first", source.fetched)
	}

	var charizard models.Card
	if err := db.First(&charizard, "id = ?", "base1-4").Error; err != nil {
		t.Fatal(err)
	}
	if charizard.MarketPrices["holofoil"].Market != 350 {
		t.Errorf("prices not refreshed: %+v", charizard.MarketPrices)
	}

	status := w.GetStatus()
	if status.CardsRefreshed != 2 || status.QueueSize != 0 {
		t.Errorf("status = %+v", status)
	}
	if len(status.MissingCards) != 1 || status.MissingCards[0].CardID != "base1-58" {
		t.Errorf("MissingCards = %+v", status.MissingCards)
	}
	if status.LastRunTime.IsZero() || !status.NextRunTime.After(status.LastRunTime) {
		t.Errorf("run times = %v / %v", status.LastRunTime, status.NextRunTime)
	}

	// Nothing is stale now except the missing card.
	source.fetched = nil
	if _, err := w.UpdateBatch(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(source.fetched) != 1 || source.fetched[0] != "base1-58" {
		t.Errorf("second run fetched %v, want only base1-58", source.fetched)
	}
}

func TestCardRefreshWorker_RateLimitStopsBatch(t *testing.T) {
	db := newTestDB(t)
	seedCards(t, db, 48*time.Hour,
		models.Card{ID: "a", Name: "Abra"},
		models.Card{ID: "b", Name: "Bulbasaur"},
	)

	source := &flakySource{
		fakeSearcher: &fakeSearcher{cards: map[string]models.Card{"b": {ID: "b", Name: "Bulbasaur"}}},
		failures:     map[string]error{"a": ErrRateLimited},
	}
	w := NewCardRefreshWorker(source, db, RefreshOptions{BatchSize: 5})
	w.QueueRefresh("a")

	refreshed, err := w.UpdateBatch(context.Background())
	if err != nil {
		t.Fatalf("UpdateBatch() error = %v", err)
	}
	if refreshed != 0 || len(source.fetched) != 1 {
		t.Errorf("refreshed = %d, fetched = %v; batch should stop at the rate limit", refreshed, source.fetched)
	}
	if got := w.GetQueueSize(); got != 1 {
		t.Errorf("GetQueueSize() = %d, want the rate-limited card queued again", got)
	}
}

func TestCardRefreshWorker_RateLimitRequeuesUnrefreshed(t *testing.T) {
	db := newTestDB(t)
	cards := map[string]models.Card{
		"x": {ID: "x", Name: "Exeggcute"},
		"y": {ID: "y", Name: "Yanma"},
		"z": {ID: "z", Name: "Zubat"},
	}
	source := &flakySource{
		fakeSearcher: &fakeSearcher{cards: cards},
		failures:     map[string]error{"y": ErrRateLimited},
	}
	w := NewCardRefreshWorker(source, db, RefreshOptions{BatchSize: 2})
	for _, id := range []string{"x", "y", "z"} {
		w.QueueRefresh(id)
	}

	refreshed, err := w.UpdateBatch(context.Background())
	if err != nil {
		t.Fatalf("UpdateBatch() error = %v", err)
	}
	if refreshed != 1 {
		t.Errorf("refreshed = %d, want 1", refreshed)
	}
	if got := w.GetQueueSize(); got != 2 {
		t.Fatalf("GetQueueSize() = %d, want 2", got)
	}
	if pos := w.QueueRefresh("y"); pos != 1 {
		t.Errorf("QueueRefresh(y) position = %d, want 1", pos)
	}

	delete(source.failures, "y")
	source.fetched = nil
	if _, err := w.UpdateBatch(context.Background()); err != nil {
		t.Fatalf("UpdateBatch() error = %v", err)
	}
	want := []string{"y", "z"}
	if len(source.fetched) != len(want) || source.fetched[0] != want[0] || source.fetched[1] != want[1] {
		t.Errorf("fetched = %v, want %v", source.fetched, want)
	}
	if got := w.GetQueueSize(); got != 0 {
		t.Errorf("GetQueueSize() = %d, want 0", got)
	}
}

func TestCardRefreshWorker_RefreshCard(t *testing.T) {
	db := newTestDB(t)
	source := &fakeSearcher{cards: map[string]models.Card{
		"base1-4": {ID: "base1-4", Name: "Charizard", Rarity: "Rare Holo"},
	}}
	w := NewCardRefreshWorker(source, db, RefreshOptions{})

	card, err := w.RefreshCard(context.Background(), "base1-4")
	if err != nil {
		t.Fatalf("RefreshCard() error = %v", err)
	}
	if card == nil || card.Rarity != "Rare Holo" {
		t.Fatalf("RefreshCard() = %+v", card)
	}
	var stored models.Card
	if err := db.First(&stored, "id = ?", "base1-4").Error; err != nil {
		t.Errorf("uncached card should be stored: %v", err)
	}

	missing, err := w.RefreshCard(context.Background(), "unknown")
	if err != nil || missing != nil {
		t.Errorf("RefreshCard(unknown) = %v, %v, want nil, nil", missing, err)
	}
	if len(w.GetStatus().MissingCards) != 0 {
		t.Error("uncached unknown cards are not tracked as missing")
	}
}

func TestCardRefreshWorker_StartStops(t *testing.T) {
	w := NewCardRefreshWorker(&fakeSearcher{}, newTestDB(t), RefreshOptions{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
