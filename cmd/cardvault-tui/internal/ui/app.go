// Package ui provides the terminal user interface for cardvault.
package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/iconidentify/cardvault/internal/bootstrap"
	"github.com/iconidentify/cardvault/internal/domain"
	"github.com/iconidentify/cardvault/internal/repository"
)

// Panel represents a UI panel type.
type Panel int

const (
	PanelItems Panel = iota
	PanelEvents
	PanelHelp
)

// App is the main TUI application. Its lifetime owns the ordering auto-save,
// the storage watcher and the notification subscription.
type App struct {
	app          *tview.Application
	pages        *tview.Pages
	core         *bootstrap.App
	logger       *slog.Logger
	currentPanel Panel
	ctx          context.Context
	cancel       context.CancelFunc

	// UI components
	mainFlex   *tview.Flex
	header     *tview.TextView
	footer     *tview.TextView
	statusBar  *tview.TextView
	itemsTable *tview.Table
	eventsView *tview.TextView
	helpView   *tview.TextView
	exportForm *tview.Form

	// State
	itemsMu sync.RWMutex
	items   []domain.CollectionItem

	watcher *repository.Watcher
	subID   uint64
	events  <-chan domain.Event
}

// NewApp creates a new TUI application on top of a wired core.
func NewApp(core *bootstrap.App, logger *slog.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:    tview.NewApplication(),
		pages:  tview.NewPages(),
		core:   core,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	a.setupUI()
	return a
}

// setupUI initializes all UI components.
func (a *App) setupUI() {
	// Header
	a.header = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.header.SetBackgroundColor(tcell.ColorDarkBlue)

	// Footer with keybindings
	a.footer = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[yellow]1[white]:Items [yellow]2[white]:Notifications [yellow]e[white]:Export [yellow]r[white]:Refresh [yellow]?[white]:Help [yellow]q[white]:Quit")
	a.footer.SetBackgroundColor(tcell.ColorDarkBlue)

	// Status bar
	a.statusBar = tview.NewTextView().
		SetDynamicColors(true)
	a.statusBar.SetBackgroundColor(tcell.ColorDarkGreen)

	// Create panels
	a.createItemsPanel()
	a.createEventsPanel()
	a.createHelpPanel()
	a.createExportForm()

	// Add panels to pages
	a.pages.AddPage("items", a.itemsTable, true, true)
	a.pages.AddPage("events", a.eventsView, true, false)
	a.pages.AddPage("help", a.helpView, true, false)
	a.pages.AddPage("export", centered(a.exportForm, 64, 17), true, false)

	// Main layout
	a.mainFlex = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 3, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false).
		AddItem(a.footer, 1, 0, false)

	// Global key bindings
	a.app.SetInputCapture(a.handleGlobalKeys)

	a.app.SetRoot(a.mainFlex, true)
	a.updateHeader()
}

// handleGlobalKeys handles global keyboard shortcuts.
func (a *App) handleGlobalKeys(event *tcell.EventKey) *tcell.EventKey {
	// Don't intercept while the export form has focus
	if a.exportFormOpen() {
		if event.Key() == tcell.KeyEscape {
			a.closeExportForm()
			return nil
		}
		return event
	}

	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case '1':
			a.switchPanel(PanelItems)
			return nil
		case '2':
			a.switchPanel(PanelEvents)
			return nil
		case '?':
			a.switchPanel(PanelHelp)
			return nil
		case 'e', 'E':
			a.openExportForm()
			return nil
		case 'q', 'Q':
			a.Stop()
			return nil
		case 'r', 'R':
			go a.refreshItems()
			return nil
		}
	case tcell.KeyF1:
		a.switchPanel(PanelItems)
		return nil
	case tcell.KeyF2:
		a.switchPanel(PanelEvents)
		return nil
	case tcell.KeyEscape:
		a.switchPanel(PanelItems)
		return nil
	}

	return event
}

// switchPanel switches to the specified panel.
func (a *App) switchPanel(panel Panel) {
	a.currentPanel = panel

	switch panel {
	case PanelItems:
		a.pages.SwitchToPage("items")
		a.app.SetFocus(a.itemsTable)
	case PanelEvents:
		a.pages.SwitchToPage("events")
	case PanelHelp:
		a.pages.SwitchToPage("help")
	}

	a.updateHeader()
}

// updateHeader updates the header with the panel name and ordering summary.
func (a *App) updateHeader() {
	var panelName string
	switch a.currentPanel {
	case PanelItems:
		panelName = "Items"
	case PanelEvents:
		panelName = "Notifications"
	case PanelHelp:
		panelName = "Help"
	}

	order := string(a.core.Ordering.State().LastSortMethod)
	if order == "" {
		order = "natural"
	}
	a.header.SetText(fmt.Sprintf("\n[white::b]cardvault[white] - [yellow]%s[white] | Order: [green]%s[white] | Selected: [green]%d[white] | Storage: [green]%s",
		panelName, order, a.core.Selection.Count(), a.core.Config.Storage.Backend))
}

// setStatus replaces the status bar text. It must run on the UI goroutine.
func (a *App) setStatus(msg string) {
	a.statusBar.SetText(fmt.Sprintf(" %s | %s", msg, time.Now().Format("15:04:05")))
}

// updateStatusBar updates the status bar from a background goroutine.
func (a *App) updateStatusBar(msg string) {
	a.app.QueueUpdateDraw(func() {
		a.setStatus(msg)
	})
}

// Run starts the TUI application and blocks until it exits.
func (a *App) Run() error {
	a.start()
	defer a.shutdown()

	// Initial listing
	go a.refreshItems()

	return a.app.Run()
}

// start restores saved state and acquires the owned background resources.
func (a *App) start() {
	a.core.Restore(a.ctx)
	a.core.Ordering.StartAutoSave()

	a.subID, a.events = a.core.Events.Subscribe()
	a.loadRecentEvents()
	go a.forwardEvents()

	w, err := a.core.Watch(a.ctx, a.onExternalChange)
	switch {
	case errors.Is(err, bootstrap.ErrWatchUnsupported):
	case err != nil:
		a.logger.Warn("storage watcher unavailable", "error", err)
	default:
		a.watcher = w
	}

	a.renderItems()
}

// shutdown releases everything start acquired. Stopping auto-save flushes a
// pending ordering write.
func (a *App) shutdown() {
	a.cancel()
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.core.Events.Unsubscribe(a.subID)
	a.core.Ordering.StopAutoSave()
}

// Stop stops the TUI application.
func (a *App) Stop() {
	a.app.Stop()
}

// refreshItems fetches the live collection.
func (a *App) refreshItems() {
	a.updateStatusBar("Refreshing...")

	ctx, cancel := context.WithTimeout(a.ctx, 30*time.Second)
	defer cancel()

	items, err := a.core.Client.ListItems(ctx, "")
	if err != nil {
		a.updateStatusBar(fmt.Sprintf("[red]Error: %v", err))
		return
	}

	a.app.QueueUpdateDraw(func() {
		a.setItems(items)
		a.setStatus(fmt.Sprintf("[green]%d item(s) loaded", len(items)))
	})
}

// setItems replaces the listing, adds unseen items to the order and redraws.
func (a *App) setItems(items []domain.CollectionItem) {
	a.itemsMu.Lock()
	a.items = items
	a.itemsMu.Unlock()

	a.core.Ordering.Initialize(a.ctx, items)
	a.renderItems()
}

func (a *App) getItems() []domain.CollectionItem {
	a.itemsMu.RLock()
	defer a.itemsMu.RUnlock()
	return a.items
}

// onExternalChange runs on the watcher goroutine when another process wrote
// the ordering or the session.
func (a *App) onExternalChange(key string) {
	a.core.ApplyExternalChange(a.ctx, key)
	a.app.QueueUpdateDraw(func() {
		a.renderItems()
		a.setStatus("[yellow]Updated by another cardvault process")
	})
}

// centered wraps p in a fixed-size box in the middle of the screen.
func centered(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}
