// Package tui is the terminal client: a chat list, a message thread with
// composer, the notification inbox and full-text search, all reading
// from the local cache and refreshed by bus events.
package tui

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/bus"
	"github.com/avtopazar/avtochat/internal/cache"
	"github.com/avtopazar/avtochat/internal/chat"
	"github.com/avtopazar/avtochat/internal/inbox"
	"github.com/avtopazar/avtochat/internal/status"
	"github.com/avtopazar/avtochat/internal/tui/views"
)

// typingResendInterval throttles outgoing typing indicators.
const typingResendInterval = 3 * time.Second

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	registry  *Registry
	statusBar *views.StatusBar
	chatList  *views.ChatList
	msgView   *views.MessageView
	composer  *views.Composer
	inboxView *views.InboxView
	searchV   *views.SearchView

	db      *cache.DB
	svc     *chat.Service
	inbox   *inbox.Inbox
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger

	selfID   string
	selfName string

	mu         sync.Mutex
	activeRoom string
	activePeer string
	lastTyping time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(db *cache.DB, svc *chat.Service, in *inbox.Inbox, b *bus.Bus, machine *status.Machine, selfID, selfName, profileName string, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		registry:  NewRegistry(),
		statusBar: views.NewStatusBar(),
		chatList:  views.NewChatList(),
		msgView:   views.NewMessageView(),
		composer:  views.NewComposer(),
		inboxView: views.NewInboxView(),
		searchV:   views.NewSearchView(),
		db:        db,
		svc:       svc,
		inbox:     in,
		bus:       b,
		machine:   machine,
		logger:    logger,
		selfID:    selfID,
		selfName:  selfName,
		ctx:       ctx,
		cancel:    cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.statusBar.SetStatus(string(machine.Current()))
	a.statusBar.SetUnread(in.UnreadCount())
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:изход", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("search", &Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:търсене", Visible: true,
		Handler: func() { a.showSearch() },
	})
	a.registry.AddGlobal("inbox", &Action{
		Rune: 'n', Key: tcell.KeyRune,
		Description: "n:известия", Visible: true,
		Handler: func() { a.showInbox() },
	})
	a.registry.AddView("inbox", "mark_all", &Action{
		Rune: 'a', Key: tcell.KeyRune,
		Description: "a:прочети всички", Visible: true,
		Handler: func() {
			a.inbox.MarkAllRead()
			a.inboxView.Update(a.inbox.Notifications())
			a.statusBar.SetUnread(0)
		},
	})
	a.registry.AddView("inbox", "clear", &Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:изчисти", Visible: true,
		Handler: func() {
			a.inbox.Clear()
			a.inboxView.Update(nil)
			a.statusBar.SetUnread(0)
		},
	})
}

func (a *App) setupCallbacks() {
	a.chatList.SetSelectedFunc(func(row, col int) {
		if room := a.chatList.SelectedRoom(); room != nil {
			a.openRoom(room.RoomID, room.PeerID, room.PeerName)
		}
	})

	a.composer.SetOnSend(func(text string) {
		a.mu.Lock()
		peer := a.activePeer
		room := a.activeRoom
		a.mu.Unlock()
		if peer == "" {
			return
		}
		go func() {
			if err := a.db.QueueOutbox(uuid.New().String(), peer, text, string(chat.TypeText)); err != nil {
				a.flash("Грешка при изпращане: " + err.Error())
				return
			}
			_ = a.svc.SendTypingIndicator(a.ctx, a.selfID, peer, false)
			// The optimistic cache insert lands within one outbox tick.
			time.Sleep(600 * time.Millisecond)
			a.reloadThread(room)
		}()
	})

	a.composer.SetOnTyping(func() {
		a.mu.Lock()
		peer := a.activePeer
		stale := time.Since(a.lastTyping) > typingResendInterval
		if stale {
			a.lastTyping = time.Now()
		}
		a.mu.Unlock()
		if peer == "" || !stale {
			return
		}
		go func() {
			if err := a.svc.SendTypingIndicator(a.ctx, a.selfID, peer, true); err != nil {
				a.logger.Debug("typing indicator", zap.Error(err))
			}
		}()
	})

	a.inboxView.SetSelectedFunc(func(row, col int) {
		if id := a.inboxView.SelectedNotification(); id != "" {
			a.inbox.MarkRead(id)
			a.inboxView.Update(a.inbox.Notifications())
			a.statusBar.SetUnread(a.inbox.UnreadCount())
		}
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			results, err := a.db.SearchMessages(query, "", 50)
			if err != nil {
				a.flash("Грешка при търсене: " + err.Error())
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(results)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})
}

func (a *App) setupLayout() {
	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("chats", a.chatList, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("inbox", a.inboxView, true, false)
	a.pages.AddPage("search", a.searchV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat", "inbox", "search":
				a.mu.Lock()
				a.activeRoom = ""
				a.activePeer = ""
				a.mu.Unlock()
				a.pages.SwitchToPage("chats")
				a.app.SetFocus(a.chatList)
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "chat" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

func (a *App) openRoom(roomID, peerID, peerName string) {
	a.mu.Lock()
	a.activeRoom = roomID
	a.activePeer = peerID
	a.mu.Unlock()

	go func() {
		msgs, err := a.db.ListMessages(roomID, 0, 100)
		if err != nil {
			a.flash("Грешка при зареждане: " + err.Error())
			return
		}

		// Acknowledge the peer's messages both remotely and locally.
		if err := a.svc.MarkMessagesAsRead(a.ctx, peerID, a.selfID); err != nil {
			a.logger.Warn("mark read", zap.Error(err))
		}

		if peerName == "" {
			peerName = peerID
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetPeer(peerName)
			a.msgView.SetTyping(false)
			a.msgView.Update(msgs)
			a.pages.SwitchToPage("chat")
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

func (a *App) showInbox() {
	a.inboxView.Update(a.inbox.Notifications())
	a.pages.SwitchToPage("inbox")
	a.app.SetFocus(a.inboxView)
}

func (a *App) showSearch() {
	a.pages.SwitchToPage("search")
	a.app.SetFocus(a.searchV.Input())
}

func (a *App) reloadChats() {
	go func() {
		rooms, err := a.db.ListChatRooms(100, 0)
		if err != nil {
			a.logger.Warn("load chats", zap.Error(err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			if page, _ := a.pages.GetFrontPage(); page == "chats" {
				a.chatList.Update(rooms)
			}
		})
	}()
}

func (a *App) reloadThread(roomID string) {
	a.mu.Lock()
	active := a.activeRoom
	a.mu.Unlock()
	if active == "" || (roomID != "" && roomID != active) {
		return
	}
	go func() {
		msgs, err := a.db.ListMessages(active, 0, 100)
		if err != nil {
			a.logger.Warn("load messages", zap.Error(err))
			return
		}
		a.app.QueueUpdateDraw(func() {
			if page, _ := a.pages.GetFrontPage(); page == "chat" {
				a.msgView.Update(msgs)
			}
		})
	}()
}

func (a *App) flash(msg string) {
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetFlash(msg)
	})
	time.AfterFunc(5*time.Second, func() {
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetFlash("")
		})
	})
}

// Run starts the TUI application.
func (a *App) Run() error {
	ch, unsub := a.bus.Subscribe("", 256)
	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				a.handleEvent(evt)
			case <-a.ctx.Done():
				return
			}
		}
	}()

	a.reloadChats()
	return a.app.Run()
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case "message.upserted", "message.send_ack", "message.send_failed":
		roomID := ""
		if p, ok := evt.Payload.(map[string]string); ok {
			roomID = p["room_id"]
		}
		a.reloadChats()
		a.reloadThread(roomID)
	case "chat.updated":
		a.reloadChats()
	case "typing.changed":
		indicators, ok := evt.Payload.([]chat.TypingIndicator)
		if !ok {
			return
		}
		a.mu.Lock()
		peer := a.activePeer
		a.mu.Unlock()
		typing := false
		for _, ind := range indicators {
			if ind.UserID == peer && ind.IsTyping {
				typing = true
			}
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.SetTyping(typing)
		})
	case "inbox.received":
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetUnread(a.inbox.UnreadCount())
			if page, _ := a.pages.GetFrontPage(); page == "inbox" {
				a.inboxView.Update(a.inbox.Notifications())
			}
		})
	case "session.status_changed":
		if change, ok := evt.Payload.(status.StatusChange); ok {
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetStatus(string(change.To))
			})
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
