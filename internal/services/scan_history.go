package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codyseavey/card-resolver/backend/internal/metrics"
	"github.com/codyseavey/card-resolver/backend/internal/models"
)

// ErrScanNotFound is returned by ScanHistory.Get for unknown ids.
var ErrScanNotFound = errors.New("scan record not found")

const (
	defaultScanListLimit = 50
	maxScanListLimit     = 200
)

// ScanHistory stores resolution outcomes and caches the cards that won them.
type ScanHistory struct {
	db *gorm.DB
}

func NewScanHistory(db *gorm.DB) *ScanHistory {
	return &ScanHistory{db: db}
}

// NewScanRecord summarizes a resolution for storage.
func NewScanRecord(source models.ScanSource, extracted models.ExtractedAttributes, res *Resolution, elapsed time.Duration) *models.ScanRecord {
	rec := &models.ScanRecord{
		ID:             uuid.New().String(),
		Source:         source,
		Status:         string(res.Status),
		TopScore:       res.HighestScore,
		ScoreGap:       res.ScoreGap,
		CandidateCount: len(res.Ranked),
		StrategiesRun:  len(res.Attempts),
		Extracted:      extracted,
		DurationMS:     elapsed.Milliseconds(),
	}
	if res.Winner != nil {
		rec.CardID = res.Winner.ID
		rec.CardName = res.Winner.Name
		rec.SetName = res.Winner.SetName
		rec.Number = res.Winner.Number
	}
	return rec
}

// Record persists a scan record. When the record names a winning card it is
// saved to the card cache in the same transaction.
func (h *ScanHistory) Record(ctx context.Context, rec *models.ScanRecord, winner *models.Card) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if winner != nil {
			if err := tx.Save(winner).Error; err != nil {
				return fmt.Errorf("failed to cache card %s: %w", winner.ID, err)
			}
		}
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("failed to save scan record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.ScansRecordedTotal.WithLabelValues(string(rec.Source)).Inc()
	debugLog("Recorded scan %s (%s, status=%s)", rec.ID, rec.Source, rec.Status)
	return nil
}

// ScanFilter narrows List. Zero values mean no filter.
type ScanFilter struct {
	Status string
	Source string
	Limit  int
	Offset int
}

// List returns records newest first along with the total matching count.
func (h *ScanHistory) List(ctx context.Context, f ScanFilter) ([]models.ScanRecord, int64, error) {
	query := h.db.WithContext(ctx).Model(&models.ScanRecord{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Source != "" {
		query = query.Where("source = ?", f.Source)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultScanListLimit
	}
	if limit > maxScanListLimit {
		limit = maxScanListLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	records := []models.ScanRecord{}
	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (h *ScanHistory) Get(ctx context.Context, id string) (*models.ScanRecord, error) {
	var rec models.ScanRecord
	err := h.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrScanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CachedCard looks a card up in the local cache. Returns nil, nil on a miss.
func (h *ScanHistory) CachedCard(ctx context.Context, id string) (*models.Card, error) {
	var card models.Card
	err := h.db.WithContext(ctx).First(&card, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// CacheCard upserts a card into the local cache.
func (h *ScanHistory) CacheCard(card models.Card) error {
	return h.db.Save(&card).Error
}

// Stats aggregates all stored records.
func (h *ScanHistory) Stats(ctx context.Context) (*models.ScanStats, error) {
	db := h.db.WithContext(ctx)
	stats := &models.ScanStats{ByStatus: map[string]int64{}}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.Model(&models.ScanRecord{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByStatus[row.Status] = row.Count
		stats.TotalScans += row.Count
	}
	stats.MatchedScans = stats.ByStatus[string(ResolveStatusMatched)]

	if stats.MatchedScans > 0 {
		var avg struct{ Average float64 }
		if err := db.Model(&models.ScanRecord{}).
			Select("AVG(top_score) as average").
			Where("status = ?", string(ResolveStatusMatched)).
			Scan(&avg).Error; err != nil {
			return nil, err
		}
		stats.AverageMatchedScore = avg.Average
	}
	return stats, nil
}
