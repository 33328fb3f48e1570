package calculator

import (
	"cmp"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/notapoint/backend/internal/models"
)

// DefaultMaxStores is the store limit used when a caller does not set one.
const DefaultMaxStores = 3

// TravelFunc estimates the kilometres needed to visit the given stores.
type TravelFunc func(stores []models.Store) float64

// ComboOptions tunes how trips are weighed against prices.
type ComboOptions struct {
	// TravelCostPerKm turns trip length into money. Zero ignores travel.
	TravelCostPerKm decimal.Decimal

	// Travel measures a candidate trip. Required when TravelCostPerKm is set.
	Travel TravelFunc
}

// Assignment is one item bought at one store.
type Assignment struct {
	ProductID string
	Quantity  int
	StoreID   string
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
	Estimated bool
}

// StoreSubtotal is what the combo spends at one store.
type StoreSubtotal struct {
	Store      models.Store
	DistanceKm float64
	Subtotal   decimal.Decimal
	ItemCount  int
}

// Combo is one multi-store plan for a list.
type Combo struct {
	// Assignments cover every item of the aggregate exactly once, same order.
	Assignments []Assignment

	// Stores are the stores used, nearest first.
	Stores []StoreSubtotal

	// Total is the goods total across all stores.
	Total decimal.Decimal

	TravelKm   float64
	TravelCost decimal.Decimal

	// BestSingle is the top-ranked single-store result the combo is measured against.
	BestSingle StoreTotal

	// Savings is BestSingle.Total - Total. Never negative.
	Savings decimal.Decimal

	// Restricted is set when the greedy plan needed more than maxStores
	// stores and was rebuilt over the stores winning the most items.
	Restricted bool

	PartialData bool
}

// NetCost is the goods total plus the travel cost.
func (c *Combo) NetCost() decimal.Decimal {
	return c.Total.Add(c.TravelCost)
}

// OptimizeCombo splits the list across at most maxStores stores.
//
// Each item goes to the store with its lowest verified price; item prices
// are independent so this is optimal without a store limit. When the plan
// needs more than maxStores stores, the maxStores stores winning the most
// items are kept and the items are re-assigned among them. The best
// single-store plan is always a candidate, so Savings is never negative.
func OptimizeCombo(agg *Aggregate, maxStores int, opts ComboOptions) (*Combo, error) {
	if maxStores < 1 {
		return nil, &InvalidConstraintError{Field: "max_stores", Value: maxStores, Reason: "must be at least 1"}
	}
	if agg == nil || len(agg.Stores) == 0 {
		return nil, &InsufficientDataError{}
	}

	// Candidate stores nearest first; price ties resolve to the nearer store.
	nearest := make([]*StoreTotal, len(agg.Stores))
	for i := range agg.Stores {
		nearest[i] = &agg.Stores[i]
	}
	slices.SortFunc(nearest, compareProximity)

	best := agg.BestStore()
	split := greedy(agg, nearest)
	if split.storeCount() > maxStores {
		split = greedy(agg, topWinners(split, nearest, maxStores))
		split.restricted = true
	}

	candidates := []*plan{split, singleStore(agg, &agg.Stores[0])}

	var chosen *Combo
	for _, p := range candidates {
		combo := p.build(agg, best, opts)
		if combo.Total.GreaterThan(best.Total) {
			continue
		}
		if chosen == nil || betterCombo(combo, chosen) {
			chosen = combo
		}
	}

	return chosen, nil
}

func betterCombo(a, b *Combo) bool {
	if c := a.NetCost().Cmp(b.NetCost()); c != 0 {
		return c < 0
	}
	if c := cmp.Compare(len(a.Stores), len(b.Stores)); c != 0 {
		return c < 0
	}
	return a.Total.LessThan(b.Total)
}

type plan struct {
	// stores[i] is the store chosen for agg.Items[i].
	stores     []*StoreTotal
	restricted bool
}

func (p *plan) storeCount() int {
	seen := make(map[string]bool)
	for _, st := range p.stores {
		seen[st.Store.ID] = true
	}
	return len(seen)
}

// greedy assigns every item to its cheapest verified store among allowed,
// which must be ordered nearest first. Items without a verified price in
// allowed are estimated at a store the plan already visits, or at the
// nearest allowed store when the plan visits none.
func greedy(agg *Aggregate, allowed []*StoreTotal) *plan {
	p := &plan{stores: make([]*StoreTotal, len(agg.Items))}
	var unverified []int

	for i := range agg.Items {
		var pick *StoreTotal
		for _, st := range allowed {
			line := st.Lines[i]
			if line.Estimated {
				continue
			}
			if pick == nil || line.UnitPrice.LessThan(pick.Lines[i].UnitPrice) {
				pick = st
			}
		}
		if pick == nil {
			unverified = append(unverified, i)
			continue
		}
		p.stores[i] = pick
	}

	for _, i := range unverified {
		p.stores[i] = allowed[0]
		for _, st := range allowed {
			if slices.Contains(p.stores, st) {
				p.stores[i] = st
				break
			}
		}
	}
	return p
}

// topWinners keeps the k stores that win the most items in p, ties broken
// by proximity. The result stays nearest first.
func topWinners(p *plan, nearest []*StoreTotal, k int) []*StoreTotal {
	wins := make(map[string]int)
	for i, st := range p.stores {
		if !st.Lines[i].Estimated {
			wins[st.Store.ID]++
		}
	}

	ranked := slices.Clone(nearest)
	slices.SortStableFunc(ranked, func(a, b *StoreTotal) int {
		return cmp.Compare(wins[b.Store.ID], wins[a.Store.ID])
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	slices.SortFunc(ranked, compareProximity)
	return ranked
}

func singleStore(agg *Aggregate, st *StoreTotal) *plan {
	p := &plan{stores: make([]*StoreTotal, len(agg.Items))}
	for i := range p.stores {
		p.stores[i] = st
	}
	return p
}

func (p *plan) build(agg *Aggregate, best StoreTotal, opts ComboOptions) *Combo {
	combo := &Combo{
		Assignments: make([]Assignment, len(agg.Items)),
		Total:       decimal.Zero,
		TravelCost:  decimal.Zero,
		BestSingle:  best,
		Restricted:  p.restricted,
		PartialData: len(agg.Unpriced) > 0,
	}

	subtotals := make(map[string]*StoreSubtotal)
	for i, item := range agg.Items {
		st := p.stores[i]
		line := st.Lines[i]
		combo.Assignments[i] = Assignment{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			StoreID:   st.Store.ID,
			UnitPrice: line.UnitPrice,
			LineTotal: line.LineTotal,
			Estimated: line.Estimated,
		}
		if line.Estimated {
			combo.PartialData = true
		}
		combo.Total = combo.Total.Add(line.LineTotal)

		sub, ok := subtotals[st.Store.ID]
		if !ok {
			sub = &StoreSubtotal{Store: st.Store, DistanceKm: st.DistanceKm, Subtotal: decimal.Zero}
			subtotals[st.Store.ID] = sub
		}
		sub.Subtotal = sub.Subtotal.Add(line.LineTotal)
		sub.ItemCount++
	}

	for _, sub := range subtotals {
		combo.Stores = append(combo.Stores, *sub)
	}
	slices.SortFunc(combo.Stores, func(a, b StoreSubtotal) int {
		if c := cmp.Compare(a.DistanceKm, b.DistanceKm); c != 0 {
			return c
		}
		return cmp.Compare(a.Store.ID, b.Store.ID)
	})

	if opts.Travel != nil && opts.TravelCostPerKm.IsPositive() {
		stores := make([]models.Store, len(combo.Stores))
		for i, sub := range combo.Stores {
			stores[i] = sub.Store
		}
		combo.TravelKm = opts.Travel(stores)
		combo.TravelCost = decimal.NewFromFloat(combo.TravelKm).Mul(opts.TravelCostPerKm).Round(2)
	}

	combo.Savings = best.Total.Sub(combo.Total)
	if combo.Savings.IsNegative() {
		combo.Savings = decimal.Zero
	}
	return combo
}
