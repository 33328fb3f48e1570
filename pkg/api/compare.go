package api

import "github.com/shopspring/decimal"

type CompareItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity,omitempty"`
}

// CompareScope selects what is compared: a stored list (its checked items)
// or ad-hoc items, optionally from a location and over chosen stores.
type CompareScope struct {
	ListID        string         `json:"list_id,omitempty"`
	Items         []*CompareItem `json:"items,omitempty"`
	Location      *Location      `json:"location,omitempty"`
	StoreIDs      []string       `json:"store_ids,omitempty"`
	MaxDistanceKm float64        `json:"max_distance_km,omitempty"`
}

type CompareSingleStoreRequest struct {
	CompareScope
}

type CompareComboRequest struct {
	CompareScope
	// MaxStores defaults to the server setting when absent.
	MaxStores *int `json:"max_stores,omitempty"`
}

type PricedLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Estimated bool            `json:"estimated"`
}

type StoreTotal struct {
	Store          *Store          `json:"store"`
	DistanceKm     float64         `json:"distance_km"`
	Total          decimal.Decimal `json:"total"`
	PricedCount    int             `json:"priced_count"`
	EstimatedItems []string        `json:"estimated_items,omitempty"`
	Lines          []*PricedLine   `json:"lines"`
}

type BestPrice struct {
	ProductID      string          `json:"product_id"`
	Quantity       int             `json:"quantity"`
	StoreID        string          `json:"store_id,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	StoresCarrying int             `json:"stores_carrying"`
}

type CompareSingleStoreResponse struct {
	Stores         []*StoreTotal `json:"stores"`
	BestPrices     []*BestPrice  `json:"best_prices"`
	Unpriced       []string      `json:"unpriced,omitempty"`
	PartialData    bool          `json:"partial_data"`
	CatalogVersion uint64        `json:"catalog_version"`
}

type Assignment struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	StoreID   string          `json:"store_id"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Estimated bool            `json:"estimated"`
}

type StoreSubtotal struct {
	Store      *Store          `json:"store"`
	DistanceKm float64         `json:"distance_km"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	ItemCount  int             `json:"item_count"`
}

type RouteStop struct {
	StoreID      string  `json:"store_id"`
	StoreName    string  `json:"store_name"`
	LegKm        float64 `json:"leg_km"`
	CumulativeKm float64 `json:"cumulative_km"`
	DriveMinutes float64 `json:"drive_minutes"`
	WalkMinutes  float64 `json:"walk_minutes"`
}

type Route struct {
	Stops        []*RouteStop `json:"stops"`
	TotalKm      float64      `json:"total_km"`
	DriveMinutes float64      `json:"drive_minutes"`
	WalkMinutes  float64      `json:"walk_minutes"`
	Method       string       `json:"method"`
}

type CompareComboResponse struct {
	Assignments     []*Assignment    `json:"assignments"`
	Stores          []*StoreSubtotal `json:"stores"`
	Total           decimal.Decimal  `json:"total"`
	// TravelKm is the straight-line trip length used to price travel. It is
	// 0 when travel is not priced; Route.TotalKm is the planned distance.
	TravelKm        float64          `json:"travel_km"`
	TravelCost      decimal.Decimal  `json:"travel_cost"`
	BestSingleStore *StoreTotal      `json:"best_single_store"`
	Savings         decimal.Decimal  `json:"savings"`
	Restricted      bool             `json:"restricted"`
	PartialData     bool             `json:"partial_data"`
	Unpriced        []string         `json:"unpriced,omitempty"`
	Route           *Route           `json:"route"`
	CatalogVersion  uint64           `json:"catalog_version"`
}
