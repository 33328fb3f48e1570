package api

type ListItem struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    int    `json:"quantity"`
	Checked     bool   `json:"checked"`
}

type ShoppingList struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Items     []*ListItem `json:"items"`
	CreatedAt int64       `json:"created_at"`
	UpdatedAt int64       `json:"updated_at"`
}

type CreateListRequest struct {
	Name  string      `json:"name"`
	Items []*ListItem `json:"items,omitempty"`
}

type GetListRequest struct {
	ListID string `json:"list_id"`
}

type ListListsRequest struct{}

type ListListsResponse struct {
	Lists []*ShoppingList `json:"lists"`
}

type AddItemRequest struct {
	ListID    string `json:"list_id"`
	ProductID string `json:"product_id"`
	// Quantity defaults to 1. Adding a product already on the list raises
	// its quantity.
	Quantity int `json:"quantity,omitempty"`
}

type RemoveItemRequest struct {
	ListID    string `json:"list_id"`
	ProductID string `json:"product_id"`
}

type ToggleItemRequest struct {
	ListID    string `json:"list_id"`
	ProductID string `json:"product_id"`
}

type SetQuantityRequest struct {
	ListID    string `json:"list_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type DeleteListRequest struct {
	ListID string `json:"list_id"`
}

type DeleteListResponse struct{}

// ListResponse is returned by every call that produces a list.
type ListResponse struct {
	List *ShoppingList `json:"list"`
}
