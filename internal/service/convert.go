package service

import (
	"github.com/notapoint/backend/internal/calculator"
	"github.com/notapoint/backend/internal/models"
	"github.com/notapoint/backend/internal/route"
	"github.com/notapoint/backend/pkg/api"
)

func userToAPI(u *models.User) *api.User {
	return &api.User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, CreatedAt: u.CreatedAt}
}

func productToAPI(p models.Product) *api.Product {
	return &api.Product{ID: p.ID, Name: p.Name, Category: p.Category}
}

func storeToAPI(s models.Store) *api.Store {
	return &api.Store{
		ID:       s.ID,
		Name:     s.Name,
		Chain:    s.Chain,
		Location: &api.Location{Lat: s.Location.Lat, Lng: s.Location.Lng},
		Address:  s.Address,
	}
}

func locationFromAPI(l *api.Location) *models.GeoPoint {
	if l == nil {
		return nil
	}
	return &models.GeoPoint{Lat: l.Lat, Lng: l.Lng}
}

func observationToAPI(o models.PriceObservation) *api.PriceObservation {
	return &api.PriceObservation{
		ID:         o.ID,
		ProductID:  o.ProductID,
		StoreID:    o.StoreID,
		Price:      o.Price,
		ObservedAt: o.ObservedAt,
		Source:     string(o.Source),
	}
}

func storeTotalToAPI(st calculator.StoreTotal) *api.StoreTotal {
	out := &api.StoreTotal{
		Store:          storeToAPI(st.Store),
		DistanceKm:     st.DistanceKm,
		Total:          st.Total,
		PricedCount:    st.PricedCount,
		EstimatedItems: st.EstimatedItems,
		Lines:          make([]*api.PricedLine, len(st.Lines)),
	}
	for i, l := range st.Lines {
		out.Lines[i] = &api.PricedLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			LineTotal: l.LineTotal,
			Estimated: l.Estimated,
		}
	}
	return out
}

func routeToAPI(r route.Route) *api.Route {
	out := &api.Route{
		Stops:        make([]*api.RouteStop, len(r.Stops)),
		TotalKm:      r.TotalKm,
		DriveMinutes: r.DriveMinutes,
		WalkMinutes:  r.WalkMinutes,
		Method:       r.Method,
	}
	for i, s := range r.Stops {
		out.Stops[i] = &api.RouteStop{
			StoreID:      s.Store.ID,
			StoreName:    s.Store.Name,
			LegKm:        s.LegKm,
			CumulativeKm: s.CumulativeKm,
			DriveMinutes: s.DriveMinutes,
			WalkMinutes:  s.WalkMinutes,
		}
	}
	return out
}

// listToAPI converts a list, naming items from the catalog where possible.
func listToAPI(l *models.ShoppingList, productName func(string) string) *api.ShoppingList {
	out := &api.ShoppingList{
		ID:        l.ID,
		Name:      l.Name,
		Items:     make([]*api.ListItem, len(l.Items)),
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
	for i, it := range l.Items {
		out.Items[i] = &api.ListItem{
			ProductID:   it.ProductID,
			ProductName: productName(it.ProductID),
			Quantity:    it.Quantity,
			Checked:     it.Checked,
		}
	}
	return out
}
