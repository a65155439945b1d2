package ui

import (
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"

	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/service"
)

var (
	formItemTypes = []domain.ItemType{
		domain.ItemTypePSACard,
		domain.ItemTypeRawCard,
		domain.ItemTypeSealedProduct,
		domain.ItemTypeAuction,
		domain.ItemTypeCollection,
	}
	formFormats = []domain.ExportFormat{
		domain.FormatZip,
		domain.FormatFacebookText,
		domain.FormatDBA,
		domain.FormatJSON,
	}
)

// exportChoice holds the export form values.
type exportChoice struct {
	ItemType      domain.ItemType
	Format        domain.ExportFormat
	SelectionOnly bool
	SavedOrder    bool
	Password      string
}

// createExportForm creates the export dialog.
func (a *App) createExportForm() {
	typeNames := make([]string, len(formItemTypes))
	for i, t := range formItemTypes {
		typeNames[i] = string(t)
	}
	formatNames := make([]string, len(formFormats))
	for i, f := range formFormats {
		formatNames[i] = f.Label()
	}
	defaultFormat := max(slices.Index(formFormats, a.core.DefaultFormat()), 0)

	a.exportForm = tview.NewForm().
		AddDropDown("Item type", typeNames, 0, nil).
		AddDropDown("Format", formatNames, defaultFormat, nil).
		AddCheckbox("Selected items only", true, nil).
		AddCheckbox("Use saved order", true, nil).
		AddPasswordField("Seal password", "", 32, '*', nil).
		AddButton("Export", func() {
			a.submitExport(a.readExportForm())
		}).
		AddButton("Cancel", a.closeExportForm)
	a.exportForm.SetBorder(true).SetTitle(" Export ")
}

func (a *App) readExportForm() exportChoice {
	typeIdx, _ := a.exportForm.GetFormItemByLabel("Item type").(*tview.DropDown).GetCurrentOption()
	formatIdx, _ := a.exportForm.GetFormItemByLabel("Format").(*tview.DropDown).GetCurrentOption()

	c := exportChoice{
		SelectionOnly: a.exportForm.GetFormItemByLabel("Selected items only").(*tview.Checkbox).IsChecked(),
		SavedOrder:    a.exportForm.GetFormItemByLabel("Use saved order").(*tview.Checkbox).IsChecked(),
		Password:      a.exportForm.GetFormItemByLabel("Seal password").(*tview.InputField).GetText(),
	}
	if typeIdx >= 0 {
		c.ItemType = formItemTypes[typeIdx]
	}
	if formatIdx >= 0 {
		c.Format = formFormats[formatIdx]
	}
	return c
}

func (a *App) openExportForm() {
	a.pages.ShowPage("export")
	a.app.SetFocus(a.exportForm)
}

func (a *App) closeExportForm() {
	a.exportForm.GetFormItemByLabel("Seal password").(*tview.InputField).SetText("")
	a.pages.HidePage("export")
	a.switchPanel(a.currentPanel)
}

func (a *App) exportFormOpen() bool {
	name, _ := a.pages.GetFrontPage()
	return name == "export"
}

// exportRequest turns the form values into a request and its options.
func (a *App) exportRequest(c exportChoice) (domain.ExportRequest, []service.ExportOption) {
	req := domain.ExportRequest{ItemType: c.ItemType, Format: c.Format}
	var opts []service.ExportOption
	if c.SelectionOnly {
		req.ItemIDs = a.core.Selection.Selected()
		opts = append(opts, service.WithSelectionOnly())
	}
	if c.SavedOrder {
		req = a.core.Export.WithSavedOrder(req)
	}
	if c.Password != "" {
		opts = append(opts, service.WithSealPassword(c.Password))
	}
	return req, opts
}

// submitExport closes the dialog and runs the export in the background.
func (a *App) submitExport(c exportChoice) {
	a.closeExportForm()

	req, opts := a.exportRequest(c)
	a.setStatus(fmt.Sprintf("Exporting %s...", c.Format.Label()))

	go func() {
		outcome, err := a.runExport(req, opts...)
		if err != nil {
			// The export service already emitted a notification.
			a.app.QueueUpdateDraw(func() {
				a.setStatus("[yellow]Export failed, see notifications")
			})
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.renderItems()
			a.setStatus(fmt.Sprintf("[green]Saved %s (%s)", tview.Escape(outcome.File.Path), humanize.Bytes(uint64(outcome.File.Size))))
		})
	}()
}

// runExport lists the items for req and exports them.
func (a *App) runExport(req domain.ExportRequest, opts ...service.ExportOption) (*service.ExportOutcome, error) {
	items := a.getItems()
	if category, ok := req.ItemType.Category(); ok {
		filtered := make([]domain.CollectionItem, 0, len(items))
		for _, it := range items {
			if it.Category == category {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	return a.core.Export.ExportOrderedItems(a.ctx, req, items, opts...)
}
