package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Product is immutable reference data for something a shopper can buy.
type Product struct {
	// ID is the stable identifier for the product (UUID format).
	ID string

	// Name is the display name (e.g., "Whole Milk 1L").
	Name string

	// Category groups products for browsing (e.g., "Dairy").
	Category string

	// CreatedAt is the Unix timestamp when the product was registered.
	CreatedAt int64
}

// GeoPoint is a WGS 84 coordinate.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// Valid reports whether the coordinate lies within WGS 84 bounds.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// Store is a supermarket location.
type Store struct {
	// ID is the stable identifier for the store (UUID format).
	ID string

	// Name is the display name (e.g., "Fresh Market Downtown").
	Name string

	// Chain is the retailer the store belongs to. Optional.
	Chain string

	// Location is where the store is.
	Location GeoPoint

	// Address is a free-form street address. Optional.
	Address string

	// CreatedAt is the Unix timestamp when the store was registered.
	CreatedAt int64
}

// Source identifies how a price observation entered the system.
type Source string

const (
	// SourceScan is an observation produced by receipt ingestion.
	SourceScan Source = "scan"
	// SourceManual is an observation typed in by a user.
	SourceManual Source = "manual"
)

// ParseSource converts a wire value into a Source.
func ParseSource(s string) (Source, error) {
	switch Source(s) {
	case SourceScan, SourceManual:
		return Source(s), nil
	default:
		return "", fmt.Errorf("unknown observation source %q", s)
	}
}

// PriceObservation is one price reading for a product at a store.
// Observations are never updated or deleted.
type PriceObservation struct {
	// ID is the unique identifier for the observation (UUID format).
	ID string

	ProductID string
	StoreID   string

	// Price is the unit price at the time of observation.
	Price decimal.Decimal

	// ObservedAt is the Unix timestamp when the price was seen at the store,
	// not when it was recorded.
	ObservedAt int64

	Source Source

	// RecordedBy is the user ID that submitted the observation. Optional.
	RecordedBy string
}
