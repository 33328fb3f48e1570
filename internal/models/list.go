package models

// ShoppingList is a user's list of products to buy.
type ShoppingList struct {
	// ID is the unique identifier for the list (UUID format).
	ID string

	// OwnerID is the user who owns the list.
	OwnerID string

	Name string

	Items []ShoppingListItem

	CreatedAt int64
	UpdatedAt int64
}

// ShoppingListItem is one product on a list.
type ShoppingListItem struct {
	ProductID string

	// Quantity is the desired number of units, at least 1.
	Quantity int

	// Checked marks the item as in the cart. Only checked items are compared.
	Checked bool
}

// CheckedItems returns the items that take part in price comparisons.
func (l *ShoppingList) CheckedItems() []ShoppingListItem {
	var out []ShoppingListItem
	for _, item := range l.Items {
		if item.Checked {
			out = append(out, item)
		}
	}
	return out
}

// Item returns the item for productID, if present.
func (l *ShoppingList) Item(productID string) (ShoppingListItem, bool) {
	for _, item := range l.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return ShoppingListItem{}, false
}
