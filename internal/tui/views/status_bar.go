package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/dispatchgrid/opsdesk/internal/notify"
	"github.com/dispatchgrid/opsdesk/internal/tui/model"
)

// badgeOrder fixes the left-to-right badge layout.
var badgeOrder = []struct {
	source string
	label  string
}{
	{notify.SourceVendors, "VEN"},
	{notify.SourceDrivers, "DRV"},
	{notify.SourcePromotions, "PRO"},
	{notify.SourceAds, "ADS"},
	{notify.SourceTickets, "TKT"},
}

// StatusBar displays the profile, the pending-count badges, and transient
// flash messages.
type StatusBar struct {
	*tview.TextView
	profile    string
	counts     notify.Counts
	flash      string
	flashLevel model.Level
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, counts: notify.Counts{}}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetCounts installs a fresh badge snapshot.
func (sb *StatusBar) SetCounts(counts notify.Counts) {
	sb.counts = counts
	sb.render()
}

// SetFlash sets a transient message.
func (sb *StatusBar) SetFlash(msg string, level model.Level) {
	sb.flash = msg
	sb.flashLevel = level
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	badges := make([]string, 0, len(badgeOrder))
	for _, b := range badgeOrder {
		n := sb.counts[b.source]
		color := "gray"
		if n > 0 {
			color = "orange"
		}
		badges = append(badges, fmt.Sprintf("[%s]%s:%d[-]", color, b.label, n))
	}

	clock := time.Now().Format("15:04")
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", sb.profile, strings.Join(badges, " "), clock)
	if sb.flash != "" {
		color := "yellow"
		if sb.flashLevel == model.LevelError {
			color = "red"
		}
		line += fmt.Sprintf(" | [%s]%s[-]", color, sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
