package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/dispatchgrid/opsdesk/internal/chat"
	"github.com/dispatchgrid/opsdesk/internal/tui/ui"
)

// ConversationList renders the directory as one table with a section header
// row per counterparty type (k9s-inspired).
type ConversationList struct {
	*tview.Table
	theme *ui.Theme
	// rowKeys maps table rows to conversation identity; section header rows
	// hold the zero key.
	rowKeys []chat.ConversationKey
}

// NewConversationList creates the directory table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Conversations ")
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	return &ConversationList{Table: table, theme: theme}
}

// Update rebuilds the table from grouped conversations, preserving the
// customers/vendors/drivers section order.
func (cl *ConversationList) Update(groups map[chat.CounterpartyType][]chat.Conversation) {
	cl.Clear()
	cl.rowKeys = cl.rowKeys[:0]

	row := 0
	for _, t := range chat.CounterpartyTypes {
		header := fmt.Sprintf(" %s (%d)", t.Label(), len(groups[t]))
		cl.SetCell(row, 0, tview.NewTableCell(header).
			SetSelectable(false).
			SetTextColor(cl.theme.SectionFg).
			SetExpansion(1))
		cl.SetCell(row, 1, tview.NewTableCell("").SetSelectable(false))
		cl.rowKeys = append(cl.rowKeys, chat.ConversationKey{})
		row++

		for _, c := range groups[t] {
			name := c.DisplayName
			if name == "" {
				name = c.Key.ID
			}
			label := fmt.Sprintf("  [%s]%s[-] %s", t.Color(), t.Glyph(), sanitizeForTerminal(name))
			cl.SetCell(row, 0, tview.NewTableCell(label).SetMaxWidth(34).SetExpansion(1))
			cl.SetCell(row, 1, tview.NewTableCell(" "+sanitizeForTerminal(c.DisplayHandle)).SetMaxWidth(32).SetExpansion(1))
			cl.rowKeys = append(cl.rowKeys, c.Key)
			row++
		}
	}
}

// SelectedConversation returns the identity under the cursor, if the cursor
// sits on a conversation row.
func (cl *ConversationList) SelectedConversation() (chat.ConversationKey, bool) {
	row, _ := cl.GetSelection()
	if row < 0 || row >= len(cl.rowKeys) {
		return chat.ConversationKey{}, false
	}
	key := cl.rowKeys[row]
	if key.ID == "" {
		return chat.ConversationKey{}, false
	}
	return key, true
}
