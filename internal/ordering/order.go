// Package ordering maintains the user-defined display and export order of collection items.
package ordering

import (
	"cmp"
	"slices"

	"github.com/iconidentify/cardvault/internal/domain"
)

// MoveUp swaps id with its predecessor. The original slice is returned unchanged
// when id is first or absent.
func MoveUp(order []domain.ItemID, id domain.ItemID) []domain.ItemID {
	i := slices.Index(order, id)
	if i <= 0 {
		return order
	}
	out := slices.Clone(order)
	out[i-1], out[i] = out[i], out[i-1]
	return out
}

// MoveDown swaps id with its successor. The original slice is returned unchanged
// when id is last or absent.
func MoveDown(order []domain.ItemID, id domain.ItemID) []domain.ItemID {
	i := slices.Index(order, id)
	if i < 0 || i == len(order)-1 {
		return order
	}
	out := slices.Clone(order)
	out[i], out[i+1] = out[i+1], out[i]
	return out
}

// SortByPrice returns items stably sorted by price. Ties keep their input order
// in both directions.
func SortByPrice(items []domain.CollectionItem, ascending bool) []domain.CollectionItem {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(a, b domain.CollectionItem) int {
		if ascending {
			return cmp.Compare(a.Price, b.Price)
		}
		return cmp.Compare(b.Price, a.Price)
	})
	return out
}

// SortByPriceGrouped sorts by price within each category and concatenates the
// categories in canonical order.
func SortByPriceGrouped(items []domain.CollectionItem, ascending bool) []domain.CollectionItem {
	out := make([]domain.CollectionItem, 0, len(items))
	for _, c := range domain.Categories() {
		out = append(out, SortByPrice(filterCategory(items, c), ascending)...)
	}
	return out
}

// SortCategory sorts only the items of category by price and splices them into
// order at the position of the category's first existing entry, or appends them
// when the category is not represented yet.
func SortCategory(order []domain.ItemID, items []domain.CollectionItem, category domain.Category, ascending bool) []domain.ItemID {
	sorted := domain.ItemIDs(SortByPrice(filterCategory(items, category), ascending))
	inCategory := make(map[domain.ItemID]bool, len(sorted))
	for _, id := range sorted {
		inCategory[id] = true
	}

	insertAt := -1
	rest := make([]domain.ItemID, 0, len(order))
	for _, id := range order {
		if inCategory[id] {
			if insertAt < 0 {
				insertAt = len(rest)
			}
			continue
		}
		rest = append(rest, id)
	}
	if insertAt < 0 {
		return append(rest, sorted...)
	}
	return slices.Concat(rest[:insertAt], sorted, rest[insertAt:])
}

// Dedupe drops repeated IDs, keeping the first occurrence.
func Dedupe(order []domain.ItemID) []domain.ItemID {
	seen := make(map[domain.ItemID]bool, len(order))
	out := make([]domain.ItemID, 0, len(order))
	for _, id := range order {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func filterCategory(items []domain.CollectionItem, category domain.Category) []domain.CollectionItem {
	var out []domain.CollectionItem
	for _, it := range items {
		if it.Category == category {
			out = append(out, it)
		}
	}
	return out
}
