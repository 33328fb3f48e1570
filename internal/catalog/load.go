package catalog

import (
	"context"
	"fmt"

	"github.com/notapoint/backend/internal/models"
)

// Source is the persistence needed to rebuild a catalog at startup.
type Source interface {
	ListProducts(ctx context.Context) ([]*models.Product, error)
	ListStores(ctx context.Context) ([]*models.Store, error)
	// ListObservations returns every observation in ingestion order.
	ListObservations(ctx context.Context) ([]*models.PriceObservation, error)
}

// Load builds a catalog from persisted products, stores and observations.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	c := New()

	products, err := src.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	for _, p := range products {
		if err := c.AddProduct(*p); err != nil {
			return nil, err
		}
	}

	stores, err := src.ListStores(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stores: %w", err)
	}
	for _, st := range stores {
		if err := c.AddStore(*st); err != nil {
			return nil, err
		}
	}

	observations, err := src.ListObservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load observations: %w", err)
	}
	batch := make([]models.PriceObservation, len(observations))
	for i, obs := range observations {
		batch[i] = *obs
	}
	if err := c.Ingest(batch...); err != nil {
		return nil, fmt.Errorf("failed to replay observations: %w", err)
	}

	return c, nil
}
