package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/dispatchgrid/opsdesk/internal/chat"
	"github.com/dispatchgrid/opsdesk/internal/tui/ui"
)

// ThreadView displays the message log of the active conversation.
type ThreadView struct {
	*tview.TextView
	theme       *ui.Theme
	counterName string
	counterType chat.CounterpartyType
}

// NewThreadView creates the thread view.
func NewThreadView(theme *ui.Theme) *ThreadView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Thread ")

	return &ThreadView{TextView: tv, theme: theme}
}

// SetConversation updates the title and sender labeling for a conversation.
func (tv *ThreadView) SetConversation(c chat.Conversation) {
	tv.counterName = c.DisplayName
	if tv.counterName == "" {
		tv.counterName = c.Key.ID
	}
	tv.counterType = c.Key.Type
	tv.SetTitle(fmt.Sprintf(" %s %s ", c.Key.Type.Glyph(), sanitizeForTerminal(tv.counterName)))
}

// Update re-renders the log, oldest first. Optimistic entries carry a
// sending marker until they confirm or roll back.
func (tv *ThreadView) Update(msgs []chat.Message) {
	tv.Clear()

	for _, m := range msgs {
		sender := sanitizeForTerminal(tv.counterName)
		color := tv.counterType.Color()
		if m.Sender == chat.SenderAdmin {
			sender = "You"
			color = "white"
		}

		marker := ""
		if m.Delivery == chat.DeliveryPending {
			marker = " [gray](sending...)[-]"
		}

		line := fmt.Sprintf("[%s::b]%s[-:-:-] [::d]%s[-:-:-]%s\n%s\n\n",
			color, sender, formatTimestamp(m.Timestamp), marker, sanitizeForTerminal(m.Text))
		_, _ = fmt.Fprint(tv, line)
	}

	tv.ScrollToEnd()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02 15:04")
}
