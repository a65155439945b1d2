package ordering

import "github.com/iconidentify/cardvault/internal/domain"

// Reconciliation is the result of projecting an order onto a live item list.
type Reconciliation struct {
	Items []domain.CollectionItem
	// Unknown are IDs in the order that the live list no longer has.
	Unknown []domain.ItemID
	// Appended are live items the order did not mention, in natural order.
	Appended []domain.ItemID
}

// Repaired reports whether the order did not exactly match the live list.
func (r Reconciliation) Repaired() bool {
	return len(r.Unknown) > 0 || len(r.Appended) > 0
}

// reconcileOrder returns items in order sequence. Malformed orders are repaired
// rather than rejected: unknown and duplicate IDs are skipped and items missing
// from the order are appended in their natural order, so no item is ever dropped.
// Switching to strict validation means returning an error here when Repaired().
func reconcileOrder(order []domain.ItemID, items []domain.CollectionItem) Reconciliation {
	byID := make(map[domain.ItemID]int, len(items))
	for i, it := range items {
		if _, dup := byID[it.ID]; !dup {
			byID[it.ID] = i
		}
	}

	used := make([]bool, len(items))
	res := Reconciliation{Items: make([]domain.CollectionItem, 0, len(items))}
	for _, id := range order {
		i, ok := byID[id]
		if !ok {
			res.Unknown = append(res.Unknown, id)
			continue
		}
		if used[i] {
			continue
		}
		used[i] = true
		res.Items = append(res.Items, items[i])
	}

	for i, it := range items {
		if used[i] {
			continue
		}
		res.Items = append(res.Items, it)
		res.Appended = append(res.Appended, it.ID)
	}
	return res
}

// Apply projects order onto items. See reconcileOrder for the repair rules.
func Apply(order []domain.ItemID, items []domain.CollectionItem) []domain.CollectionItem {
	return reconcileOrder(order, items).Items
}
