package api

import "github.com/shopspring/decimal"

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type Store struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Chain    string    `json:"chain,omitempty"`
	Location *Location `json:"location,omitempty"`
	Address  string    `json:"address,omitempty"`
	// DistanceKm is set when the request carried a location.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

type PriceObservation struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	StoreID    string          `json:"store_id"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt int64           `json:"observed_at"`
	Source     string          `json:"source"`
}

type CreateProductRequest struct {
	// ID is optional; one is generated when empty.
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

type CreateProductResponse struct {
	Product *Product `json:"product"`
}

type ListProductsRequest struct {
	Category string `json:"category,omitempty"`
	// Query filters by a case-insensitive substring of the name.
	Query string `json:"query,omitempty"`
}

type ListProductsResponse struct {
	Products []*Product `json:"products"`
}

type CreateStoreRequest struct {
	ID       string    `json:"id,omitempty"`
	Name     string    `json:"name"`
	Chain    string    `json:"chain,omitempty"`
	Location *Location `json:"location"`
	Address  string    `json:"address,omitempty"`
}

type CreateStoreResponse struct {
	Store *Store `json:"store"`
}

type ListStoresRequest struct {
	// Near orders stores by distance and fills DistanceKm.
	Near          *Location `json:"near,omitempty"`
	MaxDistanceKm float64   `json:"max_distance_km,omitempty"`
}

type ListStoresResponse struct {
	Stores []*Store `json:"stores"`
}

type RecordPriceRequest struct {
	ProductID string          `json:"product_id"`
	StoreID   string          `json:"store_id"`
	Price     decimal.Decimal `json:"price"`
	// ObservedAt defaults to now.
	ObservedAt int64 `json:"observed_at,omitempty"`
}

type RecordPriceResponse struct {
	Observation *PriceObservation `json:"observation"`
	// Current is false when a newer observation already exists for the pair.
	Current bool `json:"current"`
}

// ReceiptLine is one structured receipt line. Price is the line total.
type ReceiptLine struct {
	ProductID string          `json:"product_id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Quantity  int             `json:"quantity,omitempty"`
	Price     decimal.Decimal `json:"price"`
}

// IngestReceiptRequest carries either structured Lines or an HTML e-receipt.
type IngestReceiptRequest struct {
	StoreID    string         `json:"store_id,omitempty"`
	ObservedAt int64          `json:"observed_at,omitempty"`
	Lines      []*ReceiptLine `json:"lines,omitempty"`
	HTML       string         `json:"html,omitempty"`
}

type IngestReceiptResponse struct {
	StoreID      string              `json:"store_id"`
	Observations []*PriceObservation `json:"observations"`
	Unmatched    []string            `json:"unmatched,omitempty"`
}

type GetPriceHistoryRequest struct {
	ProductID string `json:"product_id"`
	StoreID   string `json:"store_id,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

type GetPriceHistoryResponse struct {
	Observations []*PriceObservation `json:"observations"`
	// CitywideAverage is absent when no store carries the product.
	CitywideAverage *decimal.Decimal `json:"citywide_average,omitempty"`
}
