package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/avtopazar/avtochat/internal/cache"
)

// MessageView displays the message thread for a single conversation.
type MessageView struct {
	*tview.TextView
	peerName string
	typing   bool
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Съобщения ")

	return &MessageView{TextView: tv}
}

// SetPeer updates the title with the conversation partner's name.
func (mv *MessageView) SetPeer(name string) {
	mv.peerName = name
	mv.renderTitle()
}

// SetTyping toggles the typing indicator in the title.
func (mv *MessageView) SetTyping(typing bool) {
	mv.typing = typing
	mv.renderTitle()
}

func (mv *MessageView) renderTitle() {
	title := fmt.Sprintf(" %s ", mv.peerName)
	if mv.typing {
		title = fmt.Sprintf(" %s [green]пише...[-] ", mv.peerName)
	}
	mv.SetTitle(title)
}

// Update refreshes the message view with new messages.
func (mv *MessageView) Update(msgs []cache.Message) {
	mv.Clear()

	// Messages come in reverse chronological order; display oldest first.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		if m.FromMe {
			sender = "Аз"
		}

		marker := statusMarker(m)
		ts := formatTimestamp(m.Timestamp)
		line := fmt.Sprintf("[::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			tview.Escape(sanitizeForTerminal(sender)), ts, marker,
			tview.Escape(sanitizeForTerminal(m.Body)))
		_, _ = fmt.Fprint(mv, line)
	}

	mv.ScrollToEnd()
}

func statusMarker(m cache.Message) string {
	if !m.FromMe {
		return ""
	}
	switch m.Status {
	case "sending":
		return " [::d]…[-:-:-]"
	case "failed":
		return " [red]неизпратено[-]"
	default:
		if m.IsRead {
			return " [::d]✓✓[-:-:-]"
		}
		return " [::d]✓[-:-:-]"
	}
}
