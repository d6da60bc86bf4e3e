package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/ui/msgs"
	"github.com/sadopc/netwatch/internal/ui/theme"
)

// clearStatusMsg clears a temporary status message.
type clearStatusMsg struct{}

// Summary aggregates the record map for the status bar.
type Summary struct {
	Total   int
	Pending int
	Failed  int
	Bytes   int64
}

// Summarize counts records by state and adds up their sizes.
func Summarize(records map[string]record.Record) Summary {
	var s Summary
	for _, r := range records {
		s.Total++
		switch {
		case !r.Done:
			s.Pending++
		case r.HasErr:
			s.Failed++
		}
		if r.Size > 0 {
			s.Bytes += r.Size
		}
	}
	return s
}

// StatusBar is a full-width bottom status bar.
type StatusBar struct {
	summary   Summary
	xhr       bool
	transport bool
	mode      msgs.AppMode
	message   string
	width     int
	theme     theme.Theme
	styles    theme.Styles
}

// NewStatusBar creates a new status bar.
func NewStatusBar(t theme.Theme, s theme.Styles) StatusBar {
	return StatusBar{
		theme:  t,
		styles: s,
		mode:   msgs.ModeNormal,
	}
}

// SetSummary sets the record counters.
func (m *StatusBar) SetSummary(s Summary) {
	m.summary = s
}

// SetInterception sets which interceptors are installed.
func (m *StatusBar) SetInterception(xhr, transport bool) {
	m.xhr = xhr
	m.transport = transport
}

// SetMode sets the current app mode.
func (m *StatusBar) SetMode(mode msgs.AppMode) {
	m.mode = mode
}

// SetWidth sets the available width.
func (m *StatusBar) SetWidth(w int) {
	m.width = w
}

// SetMessage sets a temporary status message.
func (m *StatusBar) SetMessage(text string) {
	m.message = text
}

// Init implements tea.Model.
func (m StatusBar) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatusBar) Update(msg tea.Msg) (StatusBar, tea.Cmd) {
	switch msg.(type) {
	case clearStatusMsg:
		m.message = ""
	}
	return m, nil
}

// View renders the status bar.
func (m StatusBar) View() string {
	barStyle := lipgloss.NewStyle().
		Background(m.theme.Surface).
		Foreground(m.theme.Text).
		Width(m.width)
	seg := func(fg lipgloss.Color, bold bool, s string) string {
		return lipgloss.NewStyle().
			Foreground(fg).
			Background(m.theme.Surface).
			Bold(bold).
			Render(s)
	}

	// Left section: counters or a message
	var leftParts []string
	if m.message != "" {
		leftParts = append(leftParts, seg(m.theme.Text, false, m.message))
	} else {
		leftParts = append(leftParts, seg(m.theme.Text, true, fmt.Sprintf("%d requests", m.summary.Total)))
		if m.summary.Pending > 0 {
			leftParts = append(leftParts, seg(m.theme.Subtext, false, fmt.Sprintf("%d pending", m.summary.Pending)))
		}
		if m.summary.Failed > 0 {
			leftParts = append(leftParts, seg(m.theme.Red, true, fmt.Sprintf("%d failed", m.summary.Failed)))
		}
		if m.summary.Bytes > 0 {
			leftParts = append(leftParts, seg(m.theme.Subtext, false, humanize.IBytes(uint64(m.summary.Bytes))))
		}
	}
	left := strings.Join(leftParts, " │ ")

	// Center: mode indicator
	modeStr := seg(m.theme.Mauve, true, "["+m.mode.String()+"]")

	// Right: interceptor flags + hints
	flag := func(name string, on bool) string {
		if on {
			return seg(m.theme.Green, false, name+":on")
		}
		return seg(m.theme.Muted, false, name+":off")
	}
	hint := strings.Join([]string{
		flag("xhr", m.xhr),
		flag("transport", m.transport),
		seg(m.theme.Muted, false, "?:help"),
	}, " ")

	leftWidth := lipgloss.Width(left)
	centerWidth := lipgloss.Width(modeStr)
	rightWidth := lipgloss.Width(hint)

	totalContent := leftWidth + centerWidth + rightWidth
	if totalContent+2 >= m.width {
		line := " " + left + " " + modeStr + " " + hint
		return barStyle.Render(line)
	}

	remaining := m.width - totalContent - 2 // padding
	gap1 := remaining / 2
	gap2 := remaining - gap1

	line := " " + left +
		strings.Repeat(" ", gap1) + modeStr +
		strings.Repeat(" ", gap2) + hint

	return barStyle.Render(line)
}
