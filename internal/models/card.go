package models

import (
	"time"
)

// Card is a candidate record from the Pokémon TCG card database.
// Cards that win a resolution are cached in SQLite.
type Card struct {
	ID           string                 `json:"id" gorm:"primaryKey"`
	Name         string                 `json:"name" gorm:"not null;index"`
	SetID        string                 `json:"set_id"`
	SetName      string                 `json:"set_name" gorm:"index"`
	SetSeries    string                 `json:"set_series"`
	SetTotal     int                    `json:"set_total"`
	Number       string                 `json:"number"`
	HP           string                 `json:"hp"`
	Types        []string               `json:"types" gorm:"serializer:json"`
	Rarity       string                 `json:"rarity"`
	Images       map[string]string      `json:"images" gorm:"serializer:json"`        // "small", "large"
	MarketPrices map[string]MarketPrice `json:"market_prices" gorm:"serializer:json"` // keyed by printing variant
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// MarketPrice is one TCGPlayer price row for a printing variant.
type MarketPrice struct {
	Low    float64 `json:"low"`
	Mid    float64 `json:"mid"`
	High   float64 `json:"high"`
	Market float64 `json:"market"`
}

// SmallImage returns the small image URL, if any.
func (c *Card) SmallImage() string {
	if c.Images == nil {
		return ""
	}
	return c.Images["small"]
}

// ImageURL prefers the large image and falls back to the small one.
func (c *Card) ImageURL() string {
	if c.Images == nil {
		return ""
	}
	if large := c.Images["large"]; large != "" {
		return large
	}
	return c.Images["small"]
}

// HasMarketPrices reports whether any price data was returned for the card.
func (c *Card) HasMarketPrices() bool {
	return len(c.MarketPrices) > 0
}
