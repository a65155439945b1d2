package domain

import "time"

// SortMethod records how the current order was produced. The zero value means
// no ordering has been applied.
type SortMethod string

const (
	SortMethodNone      SortMethod = ""
	SortMethodManual    SortMethod = "manual"
	SortMethodPriceAsc  SortMethod = "price_asc"
	SortMethodPriceDesc SortMethod = "price_desc"
)

// Valid reports whether m is a known sort method.
func (m SortMethod) Valid() bool {
	switch m {
	case SortMethodNone, SortMethodManual, SortMethodPriceAsc, SortMethodPriceDesc:
		return true
	}
	return false
}

// PriceSortMethod returns the sort method for a price sort in the given direction.
func PriceSortMethod(ascending bool) SortMethod {
	if ascending {
		return SortMethodPriceAsc
	}
	return SortMethodPriceDesc
}

// ItemOrderingState is the user's preferred display/export order.
type ItemOrderingState struct {
	GlobalOrder       []ItemID              `json:"globalOrder"`
	CategoryOrders    map[Category][]ItemID `json:"categoryOrders"`
	LastSortMethod    SortMethod            `json:"lastSortMethod,omitempty"`
	LastSortTimestamp time.Time             `json:"lastSortTimestamp"`
}

// Clone returns a deep copy of the state.
func (s ItemOrderingState) Clone() ItemOrderingState {
	out := ItemOrderingState{
		GlobalOrder:       append([]ItemID(nil), s.GlobalOrder...),
		CategoryOrders:    make(map[Category][]ItemID, len(s.CategoryOrders)),
		LastSortMethod:    s.LastSortMethod,
		LastSortTimestamp: s.LastSortTimestamp,
	}
	for c, ids := range s.CategoryOrders {
		out.CategoryOrders[c] = append([]ItemID(nil), ids...)
	}
	return out
}

// IsEmpty reports whether no order has been recorded.
func (s ItemOrderingState) IsEmpty() bool {
	return len(s.GlobalOrder) == 0 && s.LastSortMethod == SortMethodNone
}

// ExportSessionData is the short-lived record of an in-progress export selection.
type ExportSessionData struct {
	SelectedItemIDs []ItemID   `json:"selectedItemIds"`
	ItemOrder       []ItemID   `json:"itemOrder"`
	LastSortMethod  SortMethod `json:"lastSortMethod,omitempty"`
	LastUpdated     time.Time  `json:"lastUpdated"`
}

// SessionPatch is a partial update merged into ExportSessionData. Nil fields are left untouched.
type SessionPatch struct {
	SelectedItemIDs *[]ItemID
	ItemOrder       *[]ItemID
	LastSortMethod  *SortMethod
}

// WithSelection returns a patch that replaces the selected item IDs.
func WithSelection(ids []ItemID) SessionPatch {
	cp := append([]ItemID{}, ids...)
	return SessionPatch{SelectedItemIDs: &cp}
}

// WithOrder returns a patch that replaces the item order and sort method.
func WithOrder(order []ItemID, method SortMethod) SessionPatch {
	cp := append([]ItemID{}, order...)
	return SessionPatch{ItemOrder: &cp, LastSortMethod: &method}
}

// Apply merges the patch into data.
func (p SessionPatch) Apply(data *ExportSessionData) {
	if p.SelectedItemIDs != nil {
		data.SelectedItemIDs = append([]ItemID{}, (*p.SelectedItemIDs)...)
	}
	if p.ItemOrder != nil {
		data.ItemOrder = append([]ItemID{}, (*p.ItemOrder)...)
	}
	if p.LastSortMethod != nil {
		data.LastSortMethod = *p.LastSortMethod
	}
}
