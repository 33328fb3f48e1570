package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"connectrpc.com/connect"

	"github.com/notapoint/backend/internal/auth"
	"github.com/notapoint/backend/internal/catalog"
	"github.com/notapoint/backend/internal/middleware"
	"github.com/notapoint/backend/internal/models"
	"github.com/notapoint/backend/internal/storage"
	"github.com/notapoint/backend/pkg/api"
)

const maxListItems = 500

// ShoppingListService implements the ShoppingListService RPC interface.
// Lists belong to the caller; touching someone else's list is denied.
type ShoppingListService struct {
	store   storage.ListStore
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// NewShoppingListService creates the shopping list service.
func NewShoppingListService(store storage.ListStore, cat *catalog.Catalog, logger *slog.Logger) *ShoppingListService {
	return &ShoppingListService{store: store, catalog: cat, logger: logger}
}

func callerID(ctx context.Context) (string, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return "", connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return userID, nil
}

// ownedList loads a list and checks the caller owns it.
func ownedList(ctx context.Context, store storage.ListStore, listID string) (*models.ShoppingList, error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if listID == "" {
		return nil, invalidArgument("list_id is required")
	}
	list, err := store.GetList(ctx, listID)
	if err != nil {
		return nil, err
	}
	if list.OwnerID != userID {
		return nil, errPermissionDenied
	}
	return list, nil
}

func (s *ShoppingListService) response(list *models.ShoppingList) *connect.Response[api.ListResponse] {
	snap := s.catalog.Snapshot()
	name := func(productID string) string {
		p, _ := snap.Product(productID)
		return p.Name
	}
	return connect.NewResponse(&api.ListResponse{List: listToAPI(list, name)})
}

func (s *ShoppingListService) checkProduct(productID string) error {
	if productID == "" {
		return invalidArgument("product_id is required")
	}
	if _, ok := s.catalog.Snapshot().Product(productID); !ok {
		return fmt.Errorf("%w: %s", catalog.ErrUnknownProduct, productID)
	}
	return nil
}

// CreateList creates a list for the caller. Items start checked, i.e.
// included in comparisons; repeated products merge.
func (s *ShoppingListService) CreateList(ctx context.Context, req *connect.Request[api.CreateListRequest]) (*connect.Response[api.ListResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, invalidArgument("list name is required")
	}
	if len(req.Msg.Items) > maxListItems {
		return nil, invalidArgument("a list holds at most %d items", maxListItems)
	}

	list := &models.ShoppingList{OwnerID: userID, Name: name}
	for _, it := range req.Msg.Items {
		if err := s.addItem(list, it.ProductID, it.Quantity); err != nil {
			return nil, toConnectError(ctx, s.logger, "CreateList", err)
		}
	}

	if err := s.store.CreateList(ctx, list); err != nil {
		return nil, toConnectError(ctx, s.logger, "CreateList", err)
	}
	s.logger.InfoContext(ctx, "List created", "list_id", list.ID, "items", len(list.Items))
	return s.response(list), nil
}

func (s *ShoppingListService) addItem(list *models.ShoppingList, productID string, quantity int) error {
	if err := s.checkProduct(productID); err != nil {
		return err
	}
	if quantity < 0 {
		return invalidArgument("quantity must not be negative")
	}
	if quantity == 0 {
		quantity = 1
	}
	for i := range list.Items {
		if list.Items[i].ProductID == productID {
			list.Items[i].Quantity += quantity
			return nil
		}
	}
	if len(list.Items) >= maxListItems {
		return invalidArgument("a list holds at most %d items", maxListItems)
	}
	list.Items = append(list.Items, models.ShoppingListItem{ProductID: productID, Quantity: quantity, Checked: true})
	return nil
}

// GetList returns one of the caller's lists.
func (s *ShoppingListService) GetList(ctx context.Context, req *connect.Request[api.GetListRequest]) (*connect.Response[api.ListResponse], error) {
	list, err := ownedList(ctx, s.store, req.Msg.ListID)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "GetList", err)
	}
	return s.response(list), nil
}

// ListLists returns the caller's lists.
func (s *ShoppingListService) ListLists(ctx context.Context, req *connect.Request[api.ListListsRequest]) (*connect.Response[api.ListListsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	lists, err := s.store.ListListsByOwner(ctx, userID)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "ListLists", err)
	}

	snap := s.catalog.Snapshot()
	name := func(productID string) string {
		p, _ := snap.Product(productID)
		return p.Name
	}
	out := make([]*api.ShoppingList, len(lists))
	for i, l := range lists {
		out[i] = listToAPI(l, name)
	}
	return connect.NewResponse(&api.ListListsResponse{Lists: out}), nil
}

// update applies fn to the caller's list inside one storage transaction, so
// concurrent edits of the same list never overwrite each other.
func (s *ShoppingListService) update(ctx context.Context, op, listID string, fn func(*models.ShoppingList) error) (*connect.Response[api.ListResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	if listID == "" {
		return nil, invalidArgument("list_id is required")
	}
	list, err := s.store.UpdateList(ctx, listID, func(list *models.ShoppingList) error {
		if list.OwnerID != userID {
			return errPermissionDenied
		}
		return fn(list)
	})
	if err != nil {
		return nil, toConnectError(ctx, s.logger, op, err)
	}
	s.logger.DebugContext(ctx, "List updated", "op", op, "list_id", list.ID)
	return s.response(list), nil
}

func itemIndex(list *models.ShoppingList, productID string) (int, error) {
	i := slices.IndexFunc(list.Items, func(it models.ShoppingListItem) bool { return it.ProductID == productID })
	if i < 0 {
		return -1, fmt.Errorf("item %s: %w", productID, storage.ErrNotFound)
	}
	return i, nil
}

// AddItem adds a product to a list, raising its quantity when present.
func (s *ShoppingListService) AddItem(ctx context.Context, req *connect.Request[api.AddItemRequest]) (*connect.Response[api.ListResponse], error) {
	return s.update(ctx, "AddItem", req.Msg.ListID, func(list *models.ShoppingList) error {
		return s.addItem(list, req.Msg.ProductID, req.Msg.Quantity)
	})
}

// RemoveItem drops a product from a list.
func (s *ShoppingListService) RemoveItem(ctx context.Context, req *connect.Request[api.RemoveItemRequest]) (*connect.Response[api.ListResponse], error) {
	return s.update(ctx, "RemoveItem", req.Msg.ListID, func(list *models.ShoppingList) error {
		i, err := itemIndex(list, req.Msg.ProductID)
		if err != nil {
			return err
		}
		list.Items = slices.Delete(list.Items, i, i+1)
		return nil
	})
}

// ToggleItem flips an item's checked flag.
func (s *ShoppingListService) ToggleItem(ctx context.Context, req *connect.Request[api.ToggleItemRequest]) (*connect.Response[api.ListResponse], error) {
	return s.update(ctx, "ToggleItem", req.Msg.ListID, func(list *models.ShoppingList) error {
		i, err := itemIndex(list, req.Msg.ProductID)
		if err != nil {
			return err
		}
		list.Items[i].Checked = !list.Items[i].Checked
		return nil
	})
}

// SetQuantity sets an item's quantity, which must be at least 1.
func (s *ShoppingListService) SetQuantity(ctx context.Context, req *connect.Request[api.SetQuantityRequest]) (*connect.Response[api.ListResponse], error) {
	if req.Msg.Quantity < 1 {
		return nil, invalidArgument("quantity must be at least 1")
	}
	return s.update(ctx, "SetQuantity", req.Msg.ListID, func(list *models.ShoppingList) error {
		i, err := itemIndex(list, req.Msg.ProductID)
		if err != nil {
			return err
		}
		list.Items[i].Quantity = req.Msg.Quantity
		return nil
	})
}

// DeleteList deletes one of the caller's lists.
func (s *ShoppingListService) DeleteList(ctx context.Context, req *connect.Request[api.DeleteListRequest]) (*connect.Response[api.DeleteListResponse], error) {
	list, err := ownedList(ctx, s.store, req.Msg.ListID)
	if err != nil {
		return nil, toConnectError(ctx, s.logger, "DeleteList", err)
	}
	if err := s.store.DeleteList(ctx, list.ID); err != nil {
		return nil, toConnectError(ctx, s.logger, "DeleteList", err)
	}
	s.logger.InfoContext(ctx, "List deleted", "list_id", list.ID)
	return connect.NewResponse(&api.DeleteListResponse{}), nil
}
