package ui

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/iconidentify/cardvault/internal/domain"
)

// createEventsPanel creates the notification log.
func (a *App) createEventsPanel() {
	a.eventsView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetMaxLines(500)
	a.eventsView.SetBorder(true).SetTitle(" Notifications ")
}

// loadRecentEvents fills the log with events emitted before the UI started.
func (a *App) loadRecentEvents() {
	recent := a.core.Events.GetRecent(100)
	for i := len(recent) - 1; i >= 0; i-- {
		fmt.Fprintln(a.eventsView, formatEvent(recent[i]))
	}
}

// forwardEvents shows new notifications as they arrive.
func (a *App) forwardEvents() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case e, ok := <-a.events:
			if !ok {
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.showEvent(e)
			})
		}
	}
}

// showEvent appends e to the log and mirrors it in the status bar as a toast.
func (a *App) showEvent(e domain.Event) {
	fmt.Fprintln(a.eventsView, formatEvent(e))
	a.eventsView.ScrollToEnd()
	a.setStatus(fmt.Sprintf("[%s]%s", severityColor(e.Severity), tview.Escape(e.Message)))
}

func formatEvent(e domain.Event) string {
	return fmt.Sprintf("[gray]%s[white] [%s]%-7s[white] %-9s %s",
		e.Timestamp.Local().Format("15:04:05"),
		severityColor(e.Severity), e.Severity,
		e.Category,
		tview.Escape(e.Message))
}

func severityColor(s domain.EventSeverity) string {
	switch s {
	case domain.EventSeveritySuccess:
		return "green"
	case domain.EventSeverityWarning:
		return "yellow"
	case domain.EventSeverityError:
		return "red"
	}
	return "white"
}
