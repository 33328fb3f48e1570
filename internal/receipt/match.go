package receipt

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/notapoint/backend/internal/models"
)

// Matcher resolves receipt lines to catalog products.
type Matcher struct {
	ids    map[string]bool
	byName map[string]string
}

// NewMatcher indexes products by ID and by normalized name. When two
// products share a name the first one wins.
func NewMatcher(products []models.Product) *Matcher {
	m := &Matcher{
		ids:    make(map[string]bool, len(products)),
		byName: make(map[string]string, len(products)),
	}
	for _, p := range products {
		m.ids[p.ID] = true
		key := normalizeName(p.Name)
		if _, taken := m.byName[key]; !taken && key != "" {
			m.byName[key] = p.ID
		}
	}
	return m
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Match returns the product for a line. A known ProductID wins over the name.
func (m *Matcher) Match(line Line) (string, bool) {
	if line.ProductID != "" && m.ids[line.ProductID] {
		return line.ProductID, true
	}
	id, ok := m.byName[normalizeName(line.Name)]
	return id, ok
}

// Result is the outcome of turning a receipt into observations.
type Result struct {
	Observations []models.PriceObservation
	// Unmatched holds the names (or product IDs) of lines that matched no
	// product, and of lines with a non-positive total such as discounts.
	Unmatched []string
}

// Observations converts rec into scan observations at storeID. Unit price is
// the line total divided by quantity, rounded to cents. Receipts without a
// time are stamped with now.
func (m *Matcher) Observations(rec *Receipt, storeID, recordedBy string, now time.Time) Result {
	observedAt := rec.ObservedAt
	if observedAt == 0 {
		observedAt = now.Unix()
	}

	var res Result
	for _, line := range rec.Lines {
		label := line.Name
		if label == "" {
			label = line.ProductID
		}
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		// Sub-cent unit prices round to zero and are reported with the
		// unmatched lines rather than failing the whole receipt.
		unit := line.Price.DivRound(decimal.NewFromInt(int64(qty)), 2)
		productID, ok := m.Match(line)
		if !ok || !unit.IsPositive() {
			res.Unmatched = append(res.Unmatched, label)
			continue
		}
		res.Observations = append(res.Observations, models.PriceObservation{
			ProductID:  productID,
			StoreID:    storeID,
			Price:      unit,
			ObservedAt: observedAt,
			Source:     models.SourceScan,
			RecordedBy: recordedBy,
		})
	}
	return res
}
