package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/avtopazar/avtochat/internal/cache"
)

// ChatList is the main conversation list table.
type ChatList struct {
	*tview.Table
	rooms []cache.ChatRoom
}

// NewChatList creates a new chat list table.
func NewChatList() *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Разговори ")

	return &ChatList{Table: table}
}

// Update refreshes the chat list with new data.
func (cl *ChatList) Update(rooms []cache.ChatRoom) {
	cl.rooms = rooms
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Потребител").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Последно съобщение").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 2, tview.NewTableCell(" Час").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, room := range rooms {
		row := i + 1
		name := room.PeerName
		if name == "" {
			name = room.PeerID
		}
		if room.UnreadCount > 0 {
			name = fmt.Sprintf("* %s (%d)", name, room.UnreadCount)
		}

		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetMaxWidth(30).SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(room.LastMessagePreview))).SetMaxWidth(40).SetExpansion(2))
		cl.SetCell(row, 2, tview.NewTableCell(" "+formatTimestamp(room.LastMessageAt)).SetMaxWidth(12))
	}
}

// SelectedRoom returns the currently selected room, or nil.
func (cl *ChatList) SelectedRoom() *cache.ChatRoom {
	row, _ := cl.GetSelection()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.rooms) {
		return &cl.rooms[idx]
	}
	return nil
}

func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("02.01")
}
