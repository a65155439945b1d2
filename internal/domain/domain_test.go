package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

// =============================================================================
// CollectionItem Tests
// =============================================================================

func TestCollectionItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    CollectionItem
		wantErr error
	}{
		{"graded card", NewGradedCard("g1", "Charizard", 1200, GradedDetails{Grade: 10}), nil},
		{"raw card", NewRawCard("r1", "Pikachu", 40, RawDetails{Condition: "NM"}), nil},
		{"sealed product", NewSealedProduct("s1", "Evolving Skies ETB", 900, SealedDetails{ProductType: "ETB"}), nil},
		{"no payload", CollectionItem{ID: "x", Category: CategoryRawCard}, nil},
		{"missing id", CollectionItem{Category: CategoryRawCard}, ErrMissingItemID},
		{"unknown category", CollectionItem{ID: "x", Category: "binder"}, ErrUnknownCategory},
		{
			"graded payload tagged raw",
			CollectionItem{ID: "x", Category: CategoryRawCard, Graded: &GradedDetails{Grade: 9}},
			ErrCategoryMismatch,
		},
		{
			"two payloads",
			CollectionItem{ID: "x", Category: CategoryRawCard, Raw: &RawDetails{}, Sealed: &SealedDetails{}},
			ErrCategoryMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCollectionItem_JSONKeepsCategoryTag(t *testing.T) {
	item := NewGradedCard("g1", "Lugia", 800, GradedDetails{Grade: 9, CertNumber: "123"})

	data, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded CollectionItem
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Category != CategoryPSACard {
		t.Errorf("Category = %q, want %q", decoded.Category, CategoryPSACard)
	}
	if decoded.Graded == nil || decoded.Graded.CertNumber != "123" {
		t.Errorf("Graded = %+v, want cert 123", decoded.Graded)
	}
	if decoded.Raw != nil || decoded.Sealed != nil {
		t.Error("only the graded payload should be set")
	}
}

func TestItemIDs(t *testing.T) {
	items := []CollectionItem{
		NewRawCard("a", "A", 1, RawDetails{}),
		NewRawCard("b", "B", 2, RawDetails{}),
	}
	ids := ItemIDs(items)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ItemIDs() = %v, want [a b]", ids)
	}
}

// =============================================================================
// Export Request Tests
// =============================================================================

func TestSupports(t *testing.T) {
	tests := []struct {
		itemType ItemType
		format   ExportFormat
		want     bool
	}{
		{ItemTypePSACard, FormatZip, true},
		{ItemTypeRawCard, FormatZip, true},
		{ItemTypeSealedProduct, FormatZip, true},
		{ItemTypeAuction, FormatZip, true},
		{ItemTypeCollection, FormatZip, false},
		{ItemTypePSACard, FormatFacebookText, true},
		{ItemTypeCollection, FormatDBA, true},
		{ItemTypeAuction, FormatJSON, true},
		{ItemTypePSACard, "csv", false},
		{"binder", FormatJSON, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.itemType)+"/"+string(tt.format), func(t *testing.T) {
			if got := Supports(tt.itemType, tt.format); got != tt.want {
				t.Errorf("Supports(%q, %q) = %v, want %v", tt.itemType, tt.format, got, tt.want)
			}
		})
	}
}

func TestExportRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     ExportRequest
		ids     []ItemID
		wantErr error
	}{
		{"zip psa", ExportRequest{ItemType: ItemTypePSACard, Format: FormatZip}, []ItemID{"a"}, nil},
		{"unsupported", ExportRequest{ItemType: ItemTypeCollection, Format: FormatZip}, []ItemID{"a"}, ErrUnsupportedFormat},
		{"auction single", ExportRequest{ItemType: ItemTypeAuction, Format: FormatDBA}, []ItemID{"a"}, nil},
		{"auction two", ExportRequest{ItemType: ItemTypeAuction, Format: FormatZip}, []ItemID{"a", "b"}, ErrAuctionRequiresSingleItem},
		{"auction none", ExportRequest{ItemType: ItemTypeAuction, Format: FormatZip}, nil, ErrAuctionRequiresSingleItem},
		{"empty", ExportRequest{ItemType: ItemTypeRawCard, Format: FormatJSON}, nil, ErrEmptySelection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate(tt.ids)
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExportRequest_OrderingSummary(t *testing.T) {
	tests := []struct {
		name string
		req  ExportRequest
		want string
	}{
		{"unordered", ExportRequest{}, ""},
		{"ascending", ExportRequest{SortByPrice: true, SortAscending: true}, "sorted by price lowest to highest"},
		{"descending", ExportRequest{SortByPrice: true}, "sorted by price highest to lowest"},
		{"grouped", ExportRequest{SortByPrice: true, SortAscending: true, MaintainCategoryGrouping: true}, "sorted by price lowest to highest, grouped by category"},
		{"manual wins", ExportRequest{ItemOrder: []ItemID{"a"}, SortByPrice: true, MaintainCategoryGrouping: true}, "in custom order"},
		{"grouping alone", ExportRequest{MaintainCategoryGrouping: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.OrderingSummary(); got != tt.want {
				t.Errorf("OrderingSummary() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExportError(t *testing.T) {
	inner := errors.New("boom")
	err := NewExportError(ExportRequest{ItemType: ItemTypeRawCard, Format: FormatDBA}, "export", inner)

	if !errors.Is(err, inner) {
		t.Error("ExportError should unwrap to the inner error")
	}
	if got, want := err.Error(), "export [dba/raw-card]: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// =============================================================================
// Ordering / Session Tests
// =============================================================================

func TestItemOrderingState_Clone(t *testing.T) {
	orig := ItemOrderingState{
		GlobalOrder:       []ItemID{"a", "b"},
		CategoryOrders:    map[Category][]ItemID{CategoryRawCard: {"a", "b"}},
		LastSortMethod:    SortMethodManual,
		LastSortTimestamp: time.Now(),
	}

	cp := orig.Clone()
	cp.GlobalOrder[0] = "z"
	cp.CategoryOrders[CategoryRawCard][0] = "z"

	if orig.GlobalOrder[0] != "a" {
		t.Error("Clone should copy GlobalOrder")
	}
	if orig.CategoryOrders[CategoryRawCard][0] != "a" {
		t.Error("Clone should copy CategoryOrders")
	}
}

func TestSessionPatch_Apply(t *testing.T) {
	data := ExportSessionData{
		SelectedItemIDs: []ItemID{"a"},
		ItemOrder:       []ItemID{"a", "b"},
		LastSortMethod:  SortMethodManual,
	}

	WithSelection([]ItemID{"b", "c"}).Apply(&data)
	if len(data.SelectedItemIDs) != 2 || data.SelectedItemIDs[1] != "c" {
		t.Errorf("SelectedItemIDs = %v, want [b c]", data.SelectedItemIDs)
	}
	if len(data.ItemOrder) != 2 || data.LastSortMethod != SortMethodManual {
		t.Error("selection patch should leave order untouched")
	}

	WithOrder([]ItemID{"b", "a"}, SortMethodPriceAsc).Apply(&data)
	if data.ItemOrder[0] != "b" || data.LastSortMethod != SortMethodPriceAsc {
		t.Errorf("order patch not applied: %+v", data)
	}

	WithSelection(nil).Apply(&data)
	if data.SelectedItemIDs == nil || len(data.SelectedItemIDs) != 0 {
		t.Errorf("clearing selection should leave an empty, non-nil slice, got %v", data.SelectedItemIDs)
	}
}

func TestPriceSortMethod(t *testing.T) {
	if PriceSortMethod(true) != SortMethodPriceAsc {
		t.Error("ascending should map to price_asc")
	}
	if PriceSortMethod(false) != SortMethodPriceDesc {
		t.Error("descending should map to price_desc")
	}
}

func TestItemType_Category(t *testing.T) {
	tests := []struct {
		itemType ItemType
		want     Category
		wantOK   bool
	}{
		{ItemTypePSACard, CategoryPSACard, true},
		{ItemTypeRawCard, CategoryRawCard, true},
		{ItemTypeSealedProduct, CategorySealedProduct, true},
		{ItemTypeAuction, "", false},
		{ItemTypeCollection, "", false},
	}

	for _, tt := range tests {
		got, ok := tt.itemType.Category()
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s.Category() = (%q, %v), want (%q, %v)", tt.itemType, got, ok, tt.want, tt.wantOK)
		}
	}
}

// =============================================================================
// Event Tests
// =============================================================================

func TestEventFilter_Matches(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	e := NewEvent(EventSeverityWarning, EventCategoryStorage, "persistence", "Storage quota exceeded", nil)
	e.Timestamp = at

	warning, errorSev := EventSeverityWarning, EventSeverityError
	storage, export := EventCategoryStorage, EventCategoryExport
	before, after := at.Add(-time.Minute), at.Add(time.Minute)

	tests := []struct {
		name   string
		filter EventFilter
		want   bool
	}{
		{"empty", EventFilter{}, true},
		{"severity", EventFilter{Severity: &warning}, true},
		{"other severity", EventFilter{Severity: &errorSev}, false},
		{"category", EventFilter{Category: &storage}, true},
		{"other category", EventFilter{Category: &export}, false},
		{"source", EventFilter{Source: "export"}, false},
		{"inside range", EventFilter{StartTime: &before, EndTime: &after}, true},
		{"before start", EventFilter{StartTime: &after}, false},
		{"after end", EventFilter{EndTime: &before}, false},
		{"search ignores case", EventFilter{SearchText: "QUOTA"}, true},
		{"search miss", EventFilter{SearchText: "export"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(e); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEventMetadata_ToJSON(t *testing.T) {
	if got := (EventMetadata{}).ToJSON(); got != nil {
		t.Errorf("empty metadata = %s, want nil", got)
	}
	e := NewEvent(EventSeveritySuccess, EventCategoryExport, "export", "done", EventMetadata{"count": 3})
	if string(e.Metadata) != `{"count":3}` {
		t.Errorf("metadata = %s", e.Metadata)
	}
	if e.ID != "" || !e.Timestamp.IsZero() {
		t.Error("NewEvent should leave stamping to the emitter")
	}
}
