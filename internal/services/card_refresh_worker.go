package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/card-resolver/backend/internal/metrics"
	"github.com/codyseavey/card-resolver/backend/internal/models"
)

const (
	defaultRefreshBatchSize  = 20
	defaultRefreshInterval   = 15 * time.Minute
	defaultRefreshStaleAfter = 24 * time.Hour
)

// MissingCard is a cached card the card source no longer returns.
type MissingCard struct {
	CardID  string `json:"card_id"`
	Name    string `json:"name"`
	SetName string `json:"set_name"`
	Number  string `json:"number"`
}

// RefreshOptions configures the refresh worker. Zero values fall back to
// defaults.
type RefreshOptions struct {
	BatchSize  int
	Interval   time.Duration
	StaleAfter time.Duration
}

// CardRefreshWorker keeps cached cards (prices, images) current by
// re-fetching them from the card source in small batches.
type CardRefreshWorker struct {
	source     CardSource
	db         *gorm.DB
	batchSize  int
	interval   time.Duration
	staleAfter time.Duration
	mu         sync.RWMutex

	// Priority queue for user-requested refreshes
	urgentQueue []string
	urgentMu    sync.Mutex

	cardsRefreshed int
	lastRunTime    time.Time
	missingCards   []MissingCard
}

// RefreshStatus is reported by GET /api/refresh/status.
type RefreshStatus struct {
	LastRunTime    time.Time     `json:"last_run_time"`
	NextRunTime    time.Time     `json:"next_run_time"`
	CardsRefreshed int           `json:"cards_refreshed"`
	BatchSize      int           `json:"batch_size"`
	QueueSize      int           `json:"queue_size"`
	MissingCards   []MissingCard `json:"missing_cards,omitempty"`
}

func NewCardRefreshWorker(source CardSource, db *gorm.DB, opts RefreshOptions) *CardRefreshWorker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultRefreshBatchSize
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultRefreshInterval
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = defaultRefreshStaleAfter
	}
	return &CardRefreshWorker{
		source:     source,
		db:         db,
		batchSize:  opts.BatchSize,
		interval:   opts.Interval,
		staleAfter: opts.StaleAfter,
	}
}

// QueueRefresh adds a card to the high-priority queue and returns its
// 1-indexed position.
func (w *CardRefreshWorker) QueueRefresh(cardID string) int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	for i, id := range w.urgentQueue {
		if id == cardID {
			return i + 1
		}
	}
	w.urgentQueue = append(w.urgentQueue, cardID)
	log.Printf("Refresh worker: queued card %s (queue size: %d)", cardID, len(w.urgentQueue))
	return len(w.urgentQueue)
}

func (w *CardRefreshWorker) GetQueueSize() int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()
	return len(w.urgentQueue)
}

// Start runs batches until ctx is cancelled.
func (w *CardRefreshWorker) Start(ctx context.Context) {
	log.Printf("Refresh worker started: up to %d cards every %v (stale after %v)", w.batchSize, w.interval, w.staleAfter)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Refresh worker stopping...")
			return
		case <-ticker.C:
			if refreshed, err := w.UpdateBatch(ctx); err != nil {
				log.Printf("Refresh worker: batch failed: %v", err)
			} else if refreshed > 0 {
				log.Printf("Refresh worker: refreshed %d cards", refreshed)
			}
		}
	}
}

// takeUrgent pops up to n queued ids.
func (w *CardRefreshWorker) takeUrgent(n int) []string {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	if len(w.urgentQueue) <= n {
		ids := w.urgentQueue
		w.urgentQueue = nil
		return ids
	}
	ids := w.urgentQueue[:n]
	w.urgentQueue = w.urgentQueue[n:]
	return ids
}

// requeueUrgent puts ids back at the front of the urgent queue in order,
// skipping any that were queued again in the meantime.
func (w *CardRefreshWorker) requeueUrgent(ids []string) {
	if len(ids) == 0 {
		return
	}
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	queued := make(map[string]struct{}, len(w.urgentQueue))
	for _, id := range w.urgentQueue {
		queued[id] = struct{}{}
	}
	front := make([]string, 0, len(ids)+len(w.urgentQueue))
	for _, id := range ids {
		if _, ok := queued[id]; ok {
			continue
		}
		queued[id] = struct{}{}
		front = append(front, id)
	}
	w.urgentQueue = append(front, w.urgentQueue...)
}

// UpdateBatch refreshes queued cards first, then the stalest cached cards.
// A rate-limit answer ends the batch early without an error; queued cards
// not yet refreshed go back to the front of the queue.
func (w *CardRefreshWorker) UpdateBatch(ctx context.Context) (int, error) {
	db := w.db.WithContext(ctx)
	ids := w.takeUrgent(w.batchSize)
	urgent := len(ids)

	if remaining := w.batchSize - len(ids); remaining > 0 {
		var stale []string
		query := db.Model(&models.Card{}).
			Where("updated_at < ?", time.Now().Add(-w.staleAfter)).
			Order("updated_at ASC").
			Limit(remaining)
		if len(ids) > 0 {
			query = query.Where("id NOT IN ?", ids)
		}
		if err := query.Pluck("id", &stale).Error; err != nil {
			return 0, err
		}
		ids = append(ids, stale...)
	}

	if len(ids) == 0 {
		return 0, nil
	}

	refreshed := 0
	for i, id := range ids {
		card, err := w.RefreshCard(ctx, id)
		if errors.Is(err, ErrRateLimited) {
			log.Printf("Refresh worker: rate limited after %d cards, resuming next run", refreshed)
			if i < urgent {
				w.requeueUrgent(ids[i:urgent])
			}
			break
		}
		if err != nil {
			log.Printf("Refresh worker: failed to refresh %s: %v", id, err)
			continue
		}
		if card != nil {
			refreshed++
		}
	}

	w.mu.Lock()
	w.cardsRefreshed += refreshed
	w.lastRunTime = time.Now()
	w.mu.Unlock()

	return refreshed, nil
}

// RefreshCard re-fetches one card and updates the cache. It returns nil, nil
// when the card source no longer knows the card.
func (w *CardRefreshWorker) RefreshCard(ctx context.Context, cardID string) (*models.Card, error) {
	db := w.db.WithContext(ctx)

	var cached models.Card
	err := db.First(&cached, "id = ?", cardID).Error
	hasCached := err == nil
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	fresh, err := w.source.GetCard(ctx, cardID)
	if err != nil {
		metrics.CardRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if fresh == nil {
		metrics.CardRefreshTotal.WithLabelValues("missing").Inc()
		if hasCached {
			w.recordMissing(cached)
		}
		return nil, nil
	}

	if hasCached {
		fresh.CreatedAt = cached.CreatedAt
	}
	if err := db.Save(fresh).Error; err != nil {
		return nil, err
	}
	metrics.CardRefreshTotal.WithLabelValues("refreshed").Inc()
	w.clearMissing(cardID)
	return fresh, nil
}

func (w *CardRefreshWorker) recordMissing(card models.Card) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range w.missingCards {
		if m.CardID == card.ID {
			return
		}
	}
	w.missingCards = append(w.missingCards, MissingCard{
		CardID:  card.ID,
		Name:    card.Name,
		SetName: card.SetName,
		Number:  card.Number,
	})
}

func (w *CardRefreshWorker) clearMissing(cardID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, m := range w.missingCards {
		if m.CardID == cardID {
			w.missingCards = append(w.missingCards[:i], w.missingCards[i+1:]...)
			return
		}
	}
}

func (w *CardRefreshWorker) GetStatus() RefreshStatus {
	queueSize := w.GetQueueSize()

	w.mu.RLock()
	defer w.mu.RUnlock()

	missing := make([]MissingCard, len(w.missingCards))
	copy(missing, w.missingCards)

	next := w.lastRunTime.Add(w.interval)
	if w.lastRunTime.IsZero() {
		next = time.Time{}
	}
	return RefreshStatus{
		LastRunTime:    w.lastRunTime,
		NextRunTime:    next,
		CardsRefreshed: w.cardsRefreshed,
		BatchSize:      w.batchSize,
		QueueSize:      queueSize,
		MissingCards:   missing,
	}
}
