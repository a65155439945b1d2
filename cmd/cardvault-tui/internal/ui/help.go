package ui

import (
	"github.com/rivo/tview"
)

// createHelpPanel creates the help panel.
func (a *App) createHelpPanel() {
	a.helpView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	a.helpView.SetBorder(true).SetTitle(" Help ")

	helpText := `[yellow::b]cardvault - Collection ordering and export[white]

[yellow::b]GLOBAL NAVIGATION[white]
[cyan]1[white] or [cyan]F1[white]     Items          - Collection in export order
[cyan]2[white] or [cyan]F2[white]     Notifications  - Export and ordering messages
[cyan]e[white]            Export         - Open the export dialog
[cyan]r[white]            Refresh        - Reload the collection
[cyan]?[white]            Help           - This help screen
[cyan]q[white]            Quit           - Save and exit
[cyan]Escape[white]       Items          - Close dialogs, return to items

[yellow::b]ITEMS PANEL[white]
[cyan]Space[white]/[cyan]Enter[white]  Toggle selection of the highlighted item
[cyan]a[white]            Select every item
[cyan]x[white]            Clear the selection
[cyan]K[white] / [cyan]J[white]        Move the highlighted item up / down
[cyan]p[white] / [cyan]P[white]        Sort everything by price, lowest / highest first
[cyan]c[white] / [cyan]C[white]        Sort the highlighted item's type by price in place
[cyan]z[white]            Reset to the natural order
[cyan]s[white]            Save the order now

[yellow::b]EXPORT DIALOG[white]
Pick the item type and format. ZIP image archives are not available for
mixed collections, and auctions take exactly one item. With "Use saved
order" the current order or price sort is sent with the request. A seal
password encrypts the downloaded file; open it with [cyan]cardvault unseal[white].

[yellow::b]SAVING[white]
The order is saved automatically every few seconds and when you quit.
The selection is kept for the session lifetime. Changes made by the
server or the CLI on the same storage directory appear here live.`

	a.helpView.SetText(helpText)
}
