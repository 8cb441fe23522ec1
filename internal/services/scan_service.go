package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codyseavey/card-resolver/backend/internal/models"
)

var (
	// ErrUnreadableImage means the extraction hedged on the card's identity.
	ErrUnreadableImage = errors.New("card details could not be read clearly")
	ErrCardBack        = errors.New("card back detected")
	ErrNotPokemonCard  = errors.New("not a Pokemon card")
	// ErrNonTCGCard means the photo looks like a fake, proxy or custom card.
	ErrNonTCGCard      = errors.New("not an official trading card")
)

// Reported authenticity below this rejects the scan. A score of 0 means the
// model did not report one.
const minAuthenticityScore = 60

// AttributeExtractor reads card attributes from an image.
type AttributeExtractor interface {
	ExtractAttributes(ctx context.Context, imageBytes []byte, mimeType string) (models.ExtractedAttributes, error)
	IsEnabled() bool
}

// ScanService runs the full pipeline for a photo or posted attributes and
// records the outcome. History and image storage are optional.
type ScanService struct {
	extractor AttributeExtractor
	resolver  *CardResolver
	images    *ImageStorageService
	history   *ScanHistory
}

func NewScanService(extractor AttributeExtractor, resolver *CardResolver, images *ImageStorageService, history *ScanHistory) *ScanService {
	return &ScanService{
		extractor: extractor,
		resolver:  resolver,
		images:    images,
		history:   history,
	}
}

// ScanOutcome is a resolution together with its stored record, if any.
type ScanOutcome struct {
	Extracted  models.ExtractedAttributes
	Resolution *Resolution
	Record     *models.ScanRecord
	Elapsed    time.Duration
}

// ExtractionEnabled reports whether image scans can be served.
func (s *ScanService) ExtractionEnabled() bool {
	return s.extractor != nil && s.extractor.IsEnabled()
}

// ScanImage extracts attributes from an image and resolves them. Card backs,
// non-Pokemon cards, unofficial cards and hedged extractions are rejected before any search.
func (s *ScanService) ScanImage(ctx context.Context, imageBytes []byte, mimeType string) (*ScanOutcome, error) {
	if !s.ExtractionEnabled() {
		return nil, ErrGeminiDisabled
	}
	start := time.Now()

	extracted, err := s.extractor.ExtractAttributes(ctx, imageBytes, mimeType)
	if err != nil {
		return nil, fmt.Errorf("attribute extraction failed: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(extracted.CardType)) {
	case models.CardTypePokemonBack:
		return nil, ErrCardBack
	case models.CardTypeNonPokemon:
		return nil, ErrNotPokemonCard
	}
	if score := extracted.AuthenticityScore; score > 0 && score < minAuthenticityScore {
		infoLog("Rejecting scan: authenticity score %d", score)
		return nil, ErrNonTCGCard
	}
	if attrs := NormalizeAttributes(extracted); ContainsVagueIndicators(attrs) {
		infoLog("Rejecting scan: vague extraction (name=%q set=%q number=%q)",
			attrs.Name, attrs.SetName, attrs.Number)
		return nil, ErrUnreadableImage
	}

	outcome := s.resolve(ctx, extracted, start)

	var imagePath string
	if s.images != nil && s.history != nil {
		if imagePath, err = s.images.SaveImage(imageBytes, mimeType); err != nil {
			// the record is still useful without the image
			warnLog("Failed to store scanned image: %v", err)
			imagePath = ""
		}
	}
	s.record(ctx, outcome, models.ScanSourceImage, imagePath)
	if outcome.Record == nil && imagePath != "" {
		if err := s.images.DeleteImage(imagePath); err != nil {
			warnLog("Failed to remove unrecorded image %s: %v", imagePath, err)
		}
	}
	return outcome, nil
}

// ResolveAttributes resolves posted attributes. The outcome is stored when
// record is set and history is configured.
func (s *ScanService) ResolveAttributes(ctx context.Context, extracted models.ExtractedAttributes, source models.ScanSource, record bool) *ScanOutcome {
	outcome := s.resolve(ctx, extracted, time.Now())
	if record {
		s.record(ctx, outcome, source, "")
	}
	return outcome
}

func (s *ScanService) resolve(ctx context.Context, extracted models.ExtractedAttributes, start time.Time) *ScanOutcome {
	res := s.resolver.Resolve(ctx, extracted)
	return &ScanOutcome{
		Extracted:  extracted,
		Resolution: res,
		Elapsed:    time.Since(start),
	}
}

// record stores the outcome. Failures are logged; the resolution result
// stands either way.
func (s *ScanService) record(ctx context.Context, outcome *ScanOutcome, source models.ScanSource, imagePath string) {
	if s.history == nil {
		return
	}
	rec := NewScanRecord(source, outcome.Extracted, outcome.Resolution, outcome.Elapsed)
	rec.ImagePath = imagePath
	if err := s.history.Record(ctx, rec, outcome.Resolution.Winner); err != nil {
		warnLog("Failed to record scan: %v", err)
		return
	}
	outcome.Record = rec
}

// History exposes the scan history, which may be nil.
func (s *ScanService) History() *ScanHistory {
	return s.history
}
