package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notapoint/backend/internal/models"
	"github.com/notapoint/backend/internal/storage"
)

// CreateList persists a new shopping list with its items.
func (s *SQLiteStore) CreateList(ctx context.Context, list *models.ShoppingList) error {
	if list.ID == "" {
		list.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if list.CreatedAt == 0 {
		list.CreatedAt = now
	}
	list.UpdatedAt = list.CreatedAt

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO shopping_lists (id, owner_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		list.ID, list.OwnerID, list.Name, list.CreatedAt, list.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert shopping list: %w", err)
	}

	if err := insertItems(ctx, tx, list); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertItems(ctx context.Context, tx *sql.Tx, list *models.ShoppingList) error {
	for i, item := range list.Items {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO shopping_list_items (list_id, position, product_id, quantity, checked) VALUES (?, ?, ?, ?, ?)",
			list.ID, i, item.ProductID, item.Quantity, item.Checked,
		)
		if err != nil {
			return fmt.Errorf("failed to insert list item: %w", err)
		}
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetList retrieves a list with its items in insertion order.
func (s *SQLiteStore) GetList(ctx context.Context, listID string) (*models.ShoppingList, error) {
	return getList(ctx, s.db, listID)
}

func getList(ctx context.Context, q queryer, listID string) (*models.ShoppingList, error) {
	list := &models.ShoppingList{}
	err := q.QueryRowContext(ctx,
		"SELECT id, owner_id, name, created_at, updated_at FROM shopping_lists WHERE id = ?",
		listID,
	).Scan(&list.ID, &list.OwnerID, &list.Name, &list.CreatedAt, &list.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("list %s: %w", listID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shopping list: %w", err)
	}

	if list.Items, err = listItems(ctx, q, listID); err != nil {
		return nil, err
	}
	return list, nil
}

func listItems(ctx context.Context, q queryer, listID string) ([]models.ShoppingListItem, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT product_id, quantity, checked FROM shopping_list_items WHERE list_id = ? ORDER BY position",
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get list items: %w", err)
	}
	defer rows.Close()

	var items []models.ShoppingListItem
	for rows.Next() {
		var item models.ShoppingListItem
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Checked); err != nil {
			return nil, fmt.Errorf("failed to scan list item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate list items: %w", err)
	}
	return items, nil
}

// ListListsByOwner returns a user's lists, most recently updated first.
func (s *SQLiteStore) ListListsByOwner(ctx context.Context, ownerID string) ([]*models.ShoppingList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, created_at, updated_at FROM shopping_lists
		 WHERE owner_id = ? ORDER BY updated_at DESC, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list shopping lists: %w", err)
	}

	var lists []*models.ShoppingList
	for rows.Next() {
		list := &models.ShoppingList{}
		if err := rows.Scan(&list.ID, &list.OwnerID, &list.Name, &list.CreatedAt, &list.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan shopping list: %w", err)
		}
		lists = append(lists, list)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shopping lists: %w", err)
	}

	// Items are loaded after the list rows are closed so queries never nest.
	for _, list := range lists {
		if list.Items, err = listItems(ctx, s.db, list.ID); err != nil {
			return nil, err
		}
	}
	return lists, nil
}

// UpdateList loads a list, applies fn and saves the name and items fn left
// behind, all in one transaction. The first statement is a write, so the
// write lock is held before the list is read and concurrent updates of the
// same list run one after another. An error from fn is returned unchanged
// and nothing is written.
func (s *SQLiteStore) UpdateList(ctx context.Context, listID string, fn func(*models.ShoppingList) error) (*models.ShoppingList, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updatedAt := time.Now().Unix()
	res, err := tx.ExecContext(ctx, "UPDATE shopping_lists SET updated_at = ? WHERE id = ?", updatedAt, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock shopping list: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("list %s: %w", listID, storage.ErrNotFound)
	}

	list, err := getList(ctx, tx, listID)
	if err != nil {
		return nil, err
	}
	if err := fn(list); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "UPDATE shopping_lists SET name = ? WHERE id = ?", list.Name, listID); err != nil {
		return nil, fmt.Errorf("failed to update shopping list: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM shopping_list_items WHERE list_id = ?", listID); err != nil {
		return nil, fmt.Errorf("failed to clear list items: %w", err)
	}
	list.ID = listID
	if err := insertItems(ctx, tx, list); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return list, nil
}

// DeleteList removes a list and its items.
func (s *SQLiteStore) DeleteList(ctx context.Context, listID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM shopping_lists WHERE id = ?", listID)
	if err != nil {
		return fmt.Errorf("failed to delete shopping list: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("list %s: %w", listID, storage.ErrNotFound)
	}
	return nil
}
