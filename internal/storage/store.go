// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/notapoint/backend/internal/models"
)

var (
	// ErrNotFound is wrapped by every lookup that finds nothing.
	ErrNotFound = errors.New("not found")
	// ErrConflict is wrapped when an insert collides with an existing key.
	ErrConflict = errors.New("already exists")
)

// Store defines the interface for NotaPoint storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	CatalogStore
	ListStore
	UserStore

	// Close releases any resources held by the store.
	Close() error
}

// CatalogStore persists reference data and the append-only observation log.
type CatalogStore interface {
	// CreateProduct persists a product. ID and CreatedAt are filled in when empty.
	CreateProduct(ctx context.Context, product *models.Product) error
	GetProduct(ctx context.Context, productID string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)

	// CreateStore persists a store. ID and CreatedAt are filled in when empty.
	CreateStore(ctx context.Context, store *models.Store) error
	GetStore(ctx context.Context, storeID string) (*models.Store, error)
	ListStores(ctx context.Context) ([]*models.Store, error)

	// AppendObservations persists observations in one transaction. IDs are
	// filled in when empty. Observations are never updated or deleted.
	AppendObservations(ctx context.Context, observations []*models.PriceObservation) error

	// ListObservations returns every observation in ingestion order.
	ListObservations(ctx context.Context) ([]*models.PriceObservation, error)

	// ListPriceHistory returns observations for a product, newest first.
	// An empty storeID means all stores. limit <= 0 means no limit.
	ListPriceHistory(ctx context.Context, productID, storeID string, limit int) ([]*models.PriceObservation, error)
}

// ListStore persists shopping lists.
type ListStore interface {
	// CreateList persists a new list. ID and timestamps are filled in.
	CreateList(ctx context.Context, list *models.ShoppingList) error
	GetList(ctx context.Context, listID string) (*models.ShoppingList, error)
	ListListsByOwner(ctx context.Context, ownerID string) ([]*models.ShoppingList, error)

	// UpdateList applies fn to the stored list and saves the result
	// atomically, bumping UpdatedAt. Concurrent updates of one list are
	// serialized; an error from fn aborts the update and is returned as is.
	UpdateList(ctx context.Context, listID string, fn func(*models.ShoppingList) error) (*models.ShoppingList, error)
	DeleteList(ctx context.Context, listID string) error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}
