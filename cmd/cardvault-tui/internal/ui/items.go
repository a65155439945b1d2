package ui

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/cardvault/internal/domain"
)

// createItemsPanel creates the ordered collection table.
func (a *App) createItemsPanel() {
	a.itemsTable = tview.NewTable().
		SetBorders(false).
		SetSelectable(true, false).
		SetFixed(1, 0)
	a.itemsTable.SetBorder(true).SetTitle(" Collection - Space: select, J/K: move, p/P: sort by price, c/C: sort type, z: reset ")

	a.itemsTable.SetSelectedStyle(tcell.StyleDefault.
		Foreground(tcell.ColorWhite).
		Background(tcell.ColorDarkCyan))

	a.itemsTable.SetInputCapture(a.handleItemKeys)
	a.renderHeaderRow()
}

func (a *App) renderHeaderRow() {
	headers := []string{"#", "SEL", "ID", "TYPE", "NAME", "SET", "PRICE"}
	for i, h := range headers {
		cell := tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1)
		if h == "NAME" {
			cell.SetExpansion(3)
		}
		a.itemsTable.SetCell(0, i, cell)
	}
}

// handleItemKeys applies ordering and selection actions to the highlighted item.
func (a *App) handleItemKeys(event *tcell.EventKey) *tcell.EventKey {
	ctx := a.ctx
	items := a.getItems()

	if event.Key() == tcell.KeyEnter {
		a.toggleHighlighted()
		return nil
	}
	if event.Key() != tcell.KeyRune {
		return event
	}

	id, ok := a.highlightedID()
	switch event.Rune() {
	case ' ':
		a.toggleHighlighted()
	case 'K':
		if ok {
			a.core.Ordering.MoveUp(ctx, id)
			a.renderItems()
			a.highlight(id)
		}
	case 'J':
		if ok {
			a.core.Ordering.MoveDown(ctx, id)
			a.renderItems()
			a.highlight(id)
		}
	case 'p', 'P':
		a.core.Ordering.SortByPrice(ctx, items, event.Rune() == 'p')
		a.renderItems()
	case 'c', 'C':
		it, found := a.highlightedItem()
		if !found {
			return nil
		}
		a.core.Ordering.SortCategoryByPrice(ctx, items, it.Category, event.Rune() == 'c')
		a.renderItems()
		a.highlight(it.ID)
	case 'z', 'Z':
		a.core.Ordering.Reset(ctx, items)
		a.renderItems()
	case 'a', 'A':
		a.core.Selection.SelectAll(ctx, items)
		a.renderItems()
	case 'x', 'X':
		a.core.Selection.ClearSelection(ctx)
		a.renderItems()
	case 's', 'S':
		if a.core.Ordering.Save(ctx) {
			a.setStatus("[green]Order saved")
		} else {
			a.setStatus("[red]Order could not be saved")
		}
	default:
		return event
	}
	return nil
}

func (a *App) toggleHighlighted() {
	id, ok := a.highlightedID()
	if !ok {
		return
	}
	a.core.Selection.ToggleSelection(a.ctx, id)
	a.renderItems()
	a.highlight(id)
}

// renderItems redraws the table in the current order.
func (a *App) renderItems() {
	ordered := a.core.Ordering.OrderedItems(a.getItems())

	a.itemsTable.Clear()
	a.renderHeaderRow()
	for i, it := range ordered {
		row := i + 1
		color := tcell.ColorWhite
		mark := ""
		if a.core.Selection.IsSelected(it.ID) {
			color = tcell.ColorGreen
			mark = "●"
		}
		cells := []string{
			fmt.Sprintf("%d", row),
			mark,
			string(it.ID),
			it.Category.Label(),
			it.Name,
			it.SetName,
			formatPrice(it.Price),
		}
		for col, text := range cells {
			cell := tview.NewTableCell(text).SetTextColor(color).SetExpansion(1)
			if col == 4 {
				cell.SetExpansion(3)
			}
			if col == 6 {
				cell.SetAlign(tview.AlignRight)
			}
			a.itemsTable.SetCell(row, col, cell)
		}
	}
	a.updateHeader()
}

// highlightedItem returns the item on the selected row.
func (a *App) highlightedItem() (domain.CollectionItem, bool) {
	id, ok := a.highlightedID()
	if !ok {
		return domain.CollectionItem{}, false
	}
	for _, it := range a.getItems() {
		if it.ID == id {
			return it, true
		}
	}
	return domain.CollectionItem{}, false
}

func (a *App) highlightedID() (domain.ItemID, bool) {
	row, _ := a.itemsTable.GetSelection()
	if row <= 0 || row >= a.itemsTable.GetRowCount() {
		return "", false
	}
	cell := a.itemsTable.GetCell(row, 2)
	if cell == nil || cell.Text == "" {
		return "", false
	}
	return domain.ItemID(cell.Text), true
}

// highlight moves the cursor to id's row.
func (a *App) highlight(id domain.ItemID) {
	for row := 1; row < a.itemsTable.GetRowCount(); row++ {
		if a.itemsTable.GetCell(row, 2).Text == string(id) {
			a.itemsTable.Select(row, 0)
			return
		}
	}
}

func formatPrice(p float64) string {
	return "$" + humanize.FormatFloat("#,###.##", p)
}
