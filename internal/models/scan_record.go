package models

import (
	"time"
)

type ScanSource string

const (
	ScanSourceResolve ScanSource = "resolve" // attributes posted directly
	ScanSourceImage   ScanSource = "scan"    // image sent through the vision model
	ScanSourceCLI     ScanSource = "cli"
)

// ScanRecord is the persisted outcome of one resolution.
type ScanRecord struct {
	ID             string              `json:"id" gorm:"primaryKey"`
	Source         ScanSource          `json:"source" gorm:"not null;index"`
	Status         string              `json:"status" gorm:"not null;index"`
	CardID         string              `json:"card_id" gorm:"index"`
	CardName       string              `json:"card_name"`
	SetName        string              `json:"set_name"`
	Number         string              `json:"number"`
	TopScore       int                 `json:"top_score"`
	ScoreGap       int                 `json:"score_gap"`
	CandidateCount int                 `json:"candidate_count"`
	StrategiesRun  int                 `json:"strategies_run"`
	Extracted      ExtractedAttributes `json:"extracted" gorm:"serializer:json"`
	ImagePath      string              `json:"image_path,omitempty" gorm:"default:null"`
	DurationMS     int64               `json:"duration_ms"`
	CreatedAt      time.Time           `json:"created_at" gorm:"index"`
}

// ScanStats summarizes stored scan records.
type ScanStats struct {
	TotalScans          int64            `json:"total_scans"`
	MatchedScans        int64            `json:"matched_scans"`
	ByStatus            map[string]int64 `json:"by_status"`
	AverageMatchedScore float64          `json:"average_matched_score"`
}

// ResolveRequest is the body of POST /api/cards/resolve.
type ResolveRequest struct {
	Attributes ExtractedAttributes `json:"attributes" binding:"required"`
	Record     bool                `json:"record"`
}

// ScanImageRequest is the JSON form of POST /api/cards/scan.
type ScanImageRequest struct {
	ImageData string `json:"image_data" binding:"required"` // base64 encoded
	MimeType  string `json:"mime_type"`
}
