// Package tui is the interactive console shell: a conversation directory, a
// message thread with composer, and a badge status bar, glued to the chat and
// notification cores.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/dispatchgrid/opsdesk/internal/backend"
	"github.com/dispatchgrid/opsdesk/internal/bus"
	"github.com/dispatchgrid/opsdesk/internal/chat"
	"github.com/dispatchgrid/opsdesk/internal/notify"
	"github.com/dispatchgrid/opsdesk/internal/tui/keys"
	"github.com/dispatchgrid/opsdesk/internal/tui/model"
	"github.com/dispatchgrid/opsdesk/internal/tui/ui"
	"github.com/dispatchgrid/opsdesk/internal/tui/views"
)

const flashTTL = 5 * time.Second

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	registry *keys.Registry
	flash    *model.Flash

	store      *chat.ConversationStore
	channel    *chat.Channel
	aggregator *notify.Aggregator
	bus        *bus.Bus
	logger     *zap.Logger

	statusBar *views.StatusBar
	convList  *views.ConversationList
	thread    *views.ThreadView
	composer  *views.Composer

	refreshEvery time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(store *chat.ConversationStore, channel *chat.Channel, agg *notify.Aggregator, b *bus.Bus, logger *zap.Logger, profileName string, refreshEvery time.Duration) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:          tview.NewApplication(),
		pages:        tview.NewPages(),
		registry:     keys.NewRegistry(),
		flash:        &model.Flash{},
		store:        store,
		channel:      channel,
		aggregator:   agg,
		bus:          b,
		logger:       logger,
		statusBar:    views.NewStatusBar(),
		convList:     views.NewConversationList(theme),
		thread:       views.NewThreadView(theme),
		composer:     views.NewComposer(),
		refreshEvery: refreshEvery,
		ctx:          ctx,
		cancel:       cancel,
	}

	a.statusBar.SetProfile(profileName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal(&keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddView("directory", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { go a.refreshDirectory() },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if key, ok := a.convList.SelectedConversation(); ok {
			a.openConversation(key)
		}
	})

	a.composer.SetOnSend(func(text string) {
		go func() {
			if err := a.channel.Send(a.ctx, text); err != nil {
				a.surfaceError("Send failed", err)
			}
			a.app.QueueUpdateDraw(func() {
				a.thread.Update(a.channel.Messages())
				a.statusBar.SetFlash(a.flash.Get())
			})
		}()
	})
}

func (a *App) setupLayout() {
	threadFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.thread, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("directory", a.convList, true, true)
	a.pages.AddPage("thread", threadFlex, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape && currentPage == "thread" {
			a.pages.SwitchToPage("directory")
			a.app.SetFocus(a.convList)
			return nil
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		// 'i' focuses the composer (only when not already in an input field).
		if currentPage == "thread" && event.Key() == tcell.KeyRune && event.Rune() == 'i' {
			a.app.SetFocus(a.composer.InputField)
			return nil
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

func (a *App) openConversation(key chat.ConversationKey) {
	go func() {
		if err := a.channel.Open(a.ctx, key); err != nil {
			a.surfaceError("Load failed", err)
			a.app.QueueUpdateDraw(func() {
				a.statusBar.SetFlash(a.flash.Get())
			})
			return
		}
		conv, ok := a.store.Lookup(key)
		if !ok {
			conv = chat.Conversation{Key: key}
		}
		a.app.QueueUpdateDraw(func() {
			a.thread.SetConversation(conv)
			a.thread.Update(a.channel.Messages())
			a.pages.SwitchToPage("thread")
			a.app.SetFocus(a.composer.InputField)
		})
	}()
}

// surfaceError flashes err, except rejected credentials, which end the
// session outright.
func (a *App) surfaceError(prefix string, err error) {
	if errors.Is(err, backend.ErrUnauthorized) {
		a.logger.Error("credentials rejected, shutting down", zap.Error(err))
		a.app.Stop()
		return
	}
	a.flash.Set(prefix+": "+err.Error(), model.LevelError, flashTTL)
}

func (a *App) refreshDirectory() {
	if err := a.store.Load(a.ctx); err != nil {
		a.surfaceError("Refresh failed", err)
	}
	a.app.QueueUpdateDraw(func() {
		a.convList.Update(a.groups())
		a.statusBar.SetFlash(a.flash.Get())
	})
}

func (a *App) groups() map[chat.CounterpartyType][]chat.Conversation {
	groups := make(map[chat.CounterpartyType][]chat.Conversation, len(chat.CounterpartyTypes))
	for _, t := range chat.CounterpartyTypes {
		groups[t] = a.store.Group(t)
	}
	return groups
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		// Paint the cached directory immediately, then refresh from the
		// backend.
		a.app.QueueUpdateDraw(func() {
			a.convList.Update(a.groups())
			a.statusBar.SetCounts(a.aggregator.Snapshot())
		})
		a.refreshDirectory()

		a.startBusLoop()
		a.startRefreshLoop()
	}()

	return a.app.Run()
}

// startBusLoop pushes badge updates into the status bar as they land.
func (a *App) startBusLoop() {
	events, cancel := a.bus.Subscribe("notify.", 8)
	go func() {
		defer cancel()
		for {
			select {
			case evt := <-events:
				counts, ok := evt.Payload.(notify.Counts)
				if !ok {
					continue
				}
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetCounts(counts)
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) startRefreshLoop() {
	ticker := time.NewTicker(a.refreshEvery)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = a.store.Load(a.ctx)
				_ = a.channel.Reload(a.ctx)
				a.app.QueueUpdateDraw(func() {
					currentPage, _ := a.pages.GetFrontPage()
					if currentPage == "directory" {
						a.convList.Update(a.groups())
					} else {
						a.thread.Update(a.channel.Messages())
					}
					a.statusBar.SetFlash(a.flash.Get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
