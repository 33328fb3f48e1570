// Package models defines the core domain models for NotaPoint.
//
// # Reference data
//
//   - Product: an item a shopper can buy (immutable once created)
//   - Store: a supermarket location; distance from the shopper is derived
//     per request and never stored
//
// # Observations
//
//   - PriceObservation: a timestamped price for one product at one store.
//     Observations are append-only; the most recent one per (product, store)
//     is the current price.
//
// # User data
//
//   - ShoppingList / ShoppingListItem: a user's list; checked items are the
//     ones in the cart and take part in price comparisons
//   - User: registered account that owns shopping lists
//
// # Design Principles
//
//  1. Money is decimal.Decimal, never float64
//  2. Relationships use ID strings instead of pointers
//  3. Timestamps are Unix seconds, like the storage layer
package models
