package ordering

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/iconidentify/cardvault/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ids(s ...string) []domain.ItemID {
	out := make([]domain.ItemID, len(s))
	for i, v := range s {
		out[i] = domain.ItemID(v)
	}
	return out
}

// sampleItems is A($10 graded), B($30 raw), C($20 graded), D($20 sealed), E($10 raw).
func sampleItems() []domain.CollectionItem {
	return []domain.CollectionItem{
		domain.NewGradedCard("A", "Charizard", 10, domain.GradedDetails{Grade: 9}),
		domain.NewRawCard("B", "Blastoise", 30, domain.RawDetails{}),
		domain.NewGradedCard("C", "Venusaur", 20, domain.GradedDetails{Grade: 10}),
		domain.NewSealedProduct("D", "Booster Box", 20, domain.SealedDetails{}),
		domain.NewRawCard("E", "Pikachu", 10, domain.RawDetails{}),
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestStore() (*Store, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(testLogger(), WithClock(clock.Now)), clock
}

func TestMoveUpDown(t *testing.T) {
	tests := []struct {
		name     string
		order    []domain.ItemID
		id       domain.ItemID
		wantUp   []domain.ItemID
		wantDown []domain.ItemID
	}{
		{"middle", ids("a", "b", "c"), "b", ids("b", "a", "c"), ids("a", "c", "b")},
		{"first", ids("a", "b", "c"), "a", ids("a", "b", "c"), ids("b", "a", "c")},
		{"last", ids("a", "b", "c"), "c", ids("a", "c", "b"), ids("a", "b", "c")},
		{"absent", ids("a", "b"), "z", ids("a", "b"), ids("a", "b")},
		{"empty", nil, "a", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.wantUp, MoveUp(tt.order, tt.id)); diff != "" {
				t.Errorf("MoveUp mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantDown, MoveDown(tt.order, tt.id)); diff != "" {
				t.Errorf("MoveDown mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMoveUp_DoesNotMutateInput(t *testing.T) {
	order := ids("a", "b")
	MoveUp(order, "b")
	if order[0] != "a" {
		t.Errorf("input mutated: %v", order)
	}
}

func TestStore_MoveUpThenDownRestoresOrder(t *testing.T) {
	store, _ := newTestStore()
	items := sampleItems()
	store.Initialize(items)
	before := store.Order()

	for _, it := range items {
		store.MoveItemUp(it.ID)
		store.MoveItemDown(it.ID)
		if it.ID == before[0] {
			// Moving the head up is a no-op, so down moves it one step; undo it.
			store.MoveItemUp(it.ID)
		}
		if diff := cmp.Diff(before, store.Order()); diff != "" {
			t.Errorf("order changed after up/down of %s (-want +got):\n%s", it.ID, diff)
		}
	}
}

func TestStore_MoveSetsManual(t *testing.T) {
	store, clock := newTestStore()
	store.Initialize(sampleItems())

	clock.Advance(time.Minute)
	store.MoveItemDown("A")

	st := store.State()
	if st.LastSortMethod != domain.SortMethodManual {
		t.Errorf("LastSortMethod = %q, want manual", st.LastSortMethod)
	}
	if !st.LastSortTimestamp.Equal(clock.Now()) {
		t.Errorf("LastSortTimestamp = %v, want %v", st.LastSortTimestamp, clock.Now())
	}
}

func TestStore_NoOpMoveDoesNotTouchState(t *testing.T) {
	store, _ := newTestStore()
	store.Initialize(sampleItems())
	v := store.Version()

	store.MoveItemUp("A")
	store.MoveItemDown("missing")

	if store.Version() != v {
		t.Error("no-op moves should not bump the version")
	}
	if store.State().LastSortMethod != domain.SortMethodNone {
		t.Error("no-op moves should not set a sort method")
	}
}

func TestStore_AutoSortByPrice(t *testing.T) {
	store, _ := newTestStore()
	items := sampleItems()

	asc := store.AutoSortByPrice(items, true)
	if diff := cmp.Diff(ids("A", "E", "C", "D", "B"), asc); diff != "" {
		t.Errorf("ascending mismatch (-want +got):\n%s", diff)
	}
	if store.State().LastSortMethod != domain.SortMethodPriceAsc {
		t.Errorf("LastSortMethod = %q, want price_asc", store.State().LastSortMethod)
	}

	desc := store.AutoSortByPrice(items, false)
	if diff := cmp.Diff(ids("B", "C", "D", "A", "E"), desc); diff != "" {
		t.Errorf("descending mismatch (-want +got):\n%s", diff)
	}
	if store.State().LastSortMethod != domain.SortMethodPriceDesc {
		t.Errorf("LastSortMethod = %q, want price_desc", store.State().LastSortMethod)
	}
}

func TestSortByPrice_DirectionsAreReversedPriceSequences(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		items := make([]domain.CollectionItem, 12)
		for i := range items {
			items[i] = domain.NewRawCard(domain.ItemID(string(rune('a'+i))), "card", float64(r.Intn(4)*5), domain.RawDetails{})
		}

		asc := SortByPrice(items, true)
		desc := SortByPrice(items, false)
		for i := range asc {
			if asc[i].Price != desc[len(desc)-1-i].Price {
				t.Fatalf("round %d: price sequences are not reversed", round)
			}
		}
		assertStableTies(t, items, asc)
		assertStableTies(t, items, desc)
	}
}

func assertStableTies(t *testing.T, input, sorted []domain.CollectionItem) {
	t.Helper()
	pos := make(map[domain.ItemID]int, len(input))
	for i, it := range input {
		pos[it.ID] = i
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Price == sorted[i-1].Price && pos[sorted[i].ID] < pos[sorted[i-1].ID] {
			t.Fatalf("tie between %s and %s not in input order", sorted[i-1].ID, sorted[i].ID)
		}
	}
}

func TestStore_SortCategoryByPrice(t *testing.T) {
	store, _ := newTestStore()
	items := sampleItems()
	store.ReorderItems(ids("B", "C", "D", "A", "E"))

	got := store.SortCategoryByPrice(items, domain.CategoryPSACard, true)
	// Graded items A($10) and C($20) are spliced in at C's old position.
	if diff := cmp.Diff(ids("B", "A", "C", "D", "E"), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if store.State().LastSortMethod != domain.SortMethodPriceAsc {
		t.Errorf("LastSortMethod = %q, want price_asc", store.State().LastSortMethod)
	}
}

func TestSortCategory_AppendsWhenCategoryAbsent(t *testing.T) {
	items := sampleItems()
	got := SortCategory(ids("A", "B"), items, domain.CategorySealedProduct, false)
	if diff := cmp.Diff(ids("A", "B", "D"), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSortByPriceGrouped(t *testing.T) {
	got := domain.ItemIDs(SortByPriceGrouped(sampleItems(), false))
	if diff := cmp.Diff(ids("C", "A", "B", "E", "D"), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_ResetOrder(t *testing.T) {
	store, _ := newTestStore()
	items := sampleItems()
	store.AutoSortByPrice(items, false)

	got := store.ResetOrder(items)
	if diff := cmp.Diff(ids("A", "B", "C", "D", "E"), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if m := store.State().LastSortMethod; m != domain.SortMethodNone {
		t.Errorf("LastSortMethod = %q, want none", m)
	}
}

func TestStore_GetOrderedItems_AnyPermutation(t *testing.T) {
	items := sampleItems()
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 30; round++ {
		store, _ := newTestStore()
		perm := domain.ItemIDs(items)
		r.Shuffle(len(perm), func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })
		// Drop a random suffix to simulate a stale order.
		keep := r.Intn(len(perm) + 1)
		store.ReorderItems(perm[:keep])

		got := domain.ItemIDs(store.GetOrderedItems(items))
		want := append([]domain.ItemID{}, perm[:keep]...)
		for _, it := range items {
			if !contains(perm[:keep], it.ID) {
				want = append(want, it.ID)
			}
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("round %d mismatch (-want +got):\n%s", round, diff)
		}
	}
}

func contains(order []domain.ItemID, id domain.ItemID) bool {
	for _, v := range order {
		if v == id {
			return true
		}
	}
	return false
}

func TestReconcileOrder_RepairsMalformedOrder(t *testing.T) {
	items := sampleItems()
	res := reconcileOrder(ids("C", "ghost", "C", "A"), items)

	if diff := cmp.Diff(ids("C", "A", "B", "D", "E"), domain.ItemIDs(res.Items)); diff != "" {
		t.Errorf("items mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ids("ghost"), res.Unknown); diff != "" {
		t.Errorf("unknown mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(ids("B", "D", "E"), res.Appended); diff != "" {
		t.Errorf("appended mismatch (-want +got):\n%s", diff)
	}
	if !res.Repaired() {
		t.Error("Repaired() should be true")
	}
}

func TestStore_Initialize(t *testing.T) {
	store, _ := newTestStore()
	items := sampleItems()

	store.Initialize(items[:2])
	store.MoveItemDown("A")
	got := store.Initialize(items)

	if diff := cmp.Diff(ids("B", "A", "C", "D", "E"), got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if store.State().LastSortMethod != domain.SortMethodManual {
		t.Error("Initialize should keep the existing sort method")
	}
}

func TestStore_CategoryOrdersPartitionGlobalOrder(t *testing.T) {
	store, _ := newTestStore()
	store.AutoSortByPrice(sampleItems(), true)
	store.MoveItemUp("C")

	st := store.State()
	want := map[domain.Category][]domain.ItemID{
		domain.CategoryPSACard:       ids("A", "C"),
		domain.CategoryRawCard:       ids("E", "B"),
		domain.CategorySealedProduct: ids("D"),
	}
	if diff := cmp.Diff(want, st.CategoryOrders); diff != "" {
		t.Errorf("CategoryOrders mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_RestoreAndReset(t *testing.T) {
	store, _ := newTestStore()
	state := domain.ItemOrderingState{
		GlobalOrder:    ids("C", "A", "C"),
		CategoryOrders: map[domain.Category][]domain.ItemID{domain.CategoryPSACard: ids("C", "A")},
		LastSortMethod: domain.SortMethodManual,
	}
	store.Restore(state)

	if diff := cmp.Diff(ids("C", "A"), store.Order()); diff != "" {
		t.Errorf("restored order mismatch (-want +got):\n%s", diff)
	}
	store.MoveItemDown("C")
	if diff := cmp.Diff(ids("A", "C"), store.State().CategoryOrders[domain.CategoryPSACard]); diff != "" {
		t.Errorf("restored categories should follow moves (-want +got):\n%s", diff)
	}

	store.Reset()
	if !store.State().IsEmpty() {
		t.Error("Reset should empty the state")
	}
}
