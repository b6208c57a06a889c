package views

import (
	"github.com/rivo/tview"

	"github.com/avtopazar/avtochat/internal/inbox"
)

// InboxView lists the persisted push notifications.
type InboxView struct {
	*tview.Table
	items []inbox.Notification
}

// NewInboxView creates a new notification inbox view.
func NewInboxView() *InboxView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Известия ")

	return &InboxView{Table: table}
}

// Update refreshes the notification list, newest first.
func (iv *InboxView) Update(items []inbox.Notification) {
	iv.items = items
	iv.Clear()

	iv.SetCell(0, 0, tview.NewTableCell(" ").SetSelectable(false))
	iv.SetCell(0, 1, tview.NewTableCell(" Заглавие").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	iv.SetCell(0, 2, tview.NewTableCell(" Текст").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	iv.SetCell(0, 3, tview.NewTableCell(" Час").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, n := range items {
		row := i + 1
		mark := " "
		if !n.Read {
			mark = "[orange]*[-]"
		}
		iv.SetCell(row, 0, tview.NewTableCell(mark).SetMaxWidth(2))
		iv.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(n.Title))).SetMaxWidth(30).SetExpansion(1))
		iv.SetCell(row, 2, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(n.Body))).SetMaxWidth(50).SetExpansion(2))
		iv.SetCell(row, 3, tview.NewTableCell(" "+formatTimestamp(n.Timestamp)).SetMaxWidth(12))
	}
}

// SelectedNotification returns the ID of the selected notification.
func (iv *InboxView) SelectedNotification() string {
	row, _ := iv.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(iv.items) {
		return iv.items[idx].ID
	}
	return ""
}
