// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/notapoint/backend/internal/models"
	"github.com/notapoint/backend/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// PRAGMAs are per connection, so they go in the DSN to cover the whole pool.
	// Transactions begin IMMEDIATE: writers queue on busy_timeout up front
	// instead of failing when a read lock cannot be upgraded.
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// isConflict reports whether err is a UNIQUE or PRIMARY KEY violation.
func isConflict(err error) bool {
	var serr *msqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Primary result code only, when extended codes are off.
		return strings.Contains(serr.Error(), "UNIQUE constraint failed")
	}
	return false
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateProduct persists a new product.
func (s *SQLiteStore) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt == 0 {
		product.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO products (id, name, category, created_at) VALUES (?, ?, ?, ?)",
		product.ID, product.Name, product.Category, product.CreatedAt,
	)
	if isConflict(err) {
		return fmt.Errorf("product %s: %w", product.ID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by ID.
func (s *SQLiteStore) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	p := &models.Product{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, category, created_at FROM products WHERE id = ?",
		productID,
	).Scan(&p.ID, &p.Name, &p.Category, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// ListProducts returns all products ordered by name.
func (s *SQLiteStore) ListProducts(ctx context.Context) ([]*models.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, category, created_at FROM products ORDER BY name, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return products, nil
}

// CreateStore persists a new store.
func (s *SQLiteStore) CreateStore(ctx context.Context, store *models.Store) error {
	if store.ID == "" {
		store.ID = uuid.New().String()
	}
	if store.CreatedAt == 0 {
		store.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO stores (id, name, chain, lat, lng, address, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		store.ID, store.Name, store.Chain, store.Location.Lat, store.Location.Lng, store.Address, store.CreatedAt,
	)
	if isConflict(err) {
		return fmt.Errorf("store %s: %w", store.ID, storage.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert store: %w", err)
	}
	return nil
}

const storeColumns = "id, name, chain, lat, lng, address, created_at"

func scanStore(row interface{ Scan(...any) error }) (*models.Store, error) {
	st := &models.Store{}
	err := row.Scan(&st.ID, &st.Name, &st.Chain, &st.Location.Lat, &st.Location.Lng, &st.Address, &st.CreatedAt)
	return st, err
}

// GetStore retrieves a store by ID.
func (s *SQLiteStore) GetStore(ctx context.Context, storeID string) (*models.Store, error) {
	st, err := scanStore(s.db.QueryRowContext(ctx,
		"SELECT "+storeColumns+" FROM stores WHERE id = ?", storeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %s: %w", storeID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get store: %w", err)
	}
	return st, nil
}

// ListStores returns all stores ordered by ID.
func (s *SQLiteStore) ListStores(ctx context.Context) ([]*models.Store, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+storeColumns+" FROM stores ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	defer rows.Close()

	var stores []*models.Store
	for rows.Next() {
		st, err := scanStore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan store: %w", err)
		}
		stores = append(stores, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stores: %w", err)
	}
	return stores, nil
}

// AppendObservations inserts observations in one transaction.
func (s *SQLiteStore) AppendObservations(ctx context.Context, observations []*models.PriceObservation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, obs := range observations {
		if obs.ID == "" {
			obs.ID = uuid.New().String()
		}
		var recordedBy any
		if obs.RecordedBy != "" {
			recordedBy = obs.RecordedBy
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO price_observations (id, product_id, store_id, price, observed_at, source, recorded_by)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			obs.ID, obs.ProductID, obs.StoreID, obs.Price.String(), obs.ObservedAt, string(obs.Source), recordedBy,
		)
		if err != nil {
			return fmt.Errorf("failed to insert observation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListObservations returns every observation in ingestion order.
func (s *SQLiteStore) ListObservations(ctx context.Context) ([]*models.PriceObservation, error) {
	return s.queryObservations(ctx,
		"SELECT "+observationColumns+" FROM price_observations ORDER BY seq")
}

// ListPriceHistory returns a product's observations, newest first.
func (s *SQLiteStore) ListPriceHistory(ctx context.Context, productID, storeID string, limit int) ([]*models.PriceObservation, error) {
	query := "SELECT " + observationColumns + " FROM price_observations WHERE product_id = ?"
	args := []any{productID}
	if storeID != "" {
		query += " AND store_id = ?"
		args = append(args, storeID)
	}
	query += " ORDER BY observed_at DESC, seq DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryObservations(ctx, query, args...)
}

const observationColumns = "id, product_id, store_id, price, observed_at, source, recorded_by"

func (s *SQLiteStore) queryObservations(ctx context.Context, query string, args ...any) ([]*models.PriceObservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	defer rows.Close()

	var observations []*models.PriceObservation
	for rows.Next() {
		obs := &models.PriceObservation{}
		var source string
		var recordedBy sql.NullString
		if err := rows.Scan(&obs.ID, &obs.ProductID, &obs.StoreID, &obs.Price, &obs.ObservedAt, &source, &recordedBy); err != nil {
			return nil, fmt.Errorf("failed to scan observation: %w", err)
		}
		obs.Source = models.Source(source)
		if recordedBy.Valid {
			obs.RecordedBy = recordedBy.String
		}
		observations = append(observations, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate observations: %w", err)
	}
	return observations, nil
}
