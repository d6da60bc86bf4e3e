// Package requests is the list panel: one row per captured request.
package requests

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/sahilm/fuzzy"

	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/ui/msgs"
	"github.com/sadopc/netwatch/internal/ui/theme"
)

// Model is the request list panel.
type Model struct {
	rows     []record.Record
	filtered []int // indices into rows that match the filter
	cursor   int   // index into filtered
	offset   int   // first visible row

	width   int
	height  int
	focused bool

	filtering   bool
	filterInput textinput.Model

	theme  theme.Theme
	styles theme.Styles
}

// New creates a new request list.
func New(t theme.Theme, s theme.Styles) Model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "filter by url"
	ti.CharLimit = 256

	return Model{
		theme:       t,
		styles:      s,
		filterInput: ti,
	}
}

// SetRecords replaces the rows. Rows are kept in capture order; the cursor
// stays on the same request when it is still present.
func (m *Model) SetRecords(records map[string]record.Record) {
	selected := m.Selected()

	m.rows = make([]record.Record, 0, len(records))
	for _, r := range records {
		m.rows = append(m.rows, r)
	}
	sort.Slice(m.rows, func(i, j int) bool {
		a, b := m.rows[i], m.rows[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return a.ID < b.ID
	})

	m.applyFilter()
	m.cursor = 0
	for vi, idx := range m.filtered {
		if m.rows[idx].ID == selected {
			m.cursor = vi
			break
		}
	}
	m.clampCursor()
}

// SetSize sets the panel dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.filterInput.Width = max(w-6, 1)
}

// SetFocused sets whether this panel has focus.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Filtering reports whether the filter input has focus.
func (m Model) Filtering() bool {
	return m.filtering
}

// Query returns the current filter text.
func (m Model) Query() string {
	return m.filterInput.Value()
}

// Selected returns the id of the record under the cursor, or "".
func (m Model) Selected() string {
	r, ok := m.SelectedRecord()
	if !ok {
		return ""
	}
	return r.ID
}

// SelectedRecord returns the record under the cursor.
func (m Model) SelectedRecord() (record.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return record.Record{}, false
	}
	return m.rows[m.filtered[m.cursor]], true
}

// Len returns the number of visible rows.
func (m Model) Len() int {
	return len(m.filtered)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.filtering {
		return m.updateFilter(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "/":
		m.filtering = true
		m.filterInput.Focus()
		return m, tea.Batch(textinput.Blink, setMode(msgs.ModeFilter))
	case "j", "down":
		if m.cursor < len(m.filtered)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = max(len(m.filtered)-1, 0)
	case "enter", "l":
		if id := m.Selected(); id != "" {
			return m, func() tea.Msg { return msgs.InspectRequestMsg{ID: id} }
		}
	}
	m.scrollToCursor()
	return m, nil
}

func (m Model) updateFilter(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter", "esc":
			m.filtering = false
			m.filterInput.Blur()
			if key.String() == "esc" {
				m.filterInput.SetValue("")
				m.applyFilter()
				m.clampCursor()
			}
			return m, setMode(msgs.ModeNormal)
		}
	}

	var cmd tea.Cmd
	m.filterInput, cmd = m.filterInput.Update(msg)
	m.applyFilter()
	m.cursor = 0
	m.clampCursor()
	return m, cmd
}

func setMode(mode msgs.AppMode) tea.Cmd {
	return func() tea.Msg { return msgs.SetModeMsg{Mode: mode} }
}

// rowSource adapts the rows to fuzzy.Source, matching on the URL.
type rowSource []record.Record

func (s rowSource) String(i int) string { return s[i].URL }
func (s rowSource) Len() int            { return len(s) }

func (m *Model) applyFilter() {
	m.filtered = make([]int, 0, len(m.rows))
	query := strings.TrimSpace(m.filterInput.Value())
	if query == "" {
		for i := range m.rows {
			m.filtered = append(m.filtered, i)
		}
		return
	}

	matches := fuzzy.FindFrom(query, rowSource(m.rows))
	for _, match := range matches {
		m.filtered = append(m.filtered, match.Index)
	}
	// Keep capture order instead of score order.
	sort.Ints(m.filtered)
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.filtered) {
		m.cursor = max(len(m.filtered)-1, 0)
	}
	m.scrollToCursor()
}

// visibleRows is the number of table rows that fit the panel.
func (m Model) visibleRows() int {
	h := m.height - 2 - 2 // border, title and header
	if m.filtering {
		h--
	}
	return max(h, 1)
}

func (m *Model) scrollToCursor() {
	n := m.visibleRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+n {
		m.offset = m.cursor - n + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

// column widths, the name column takes the rest.
const (
	methodWidth = 7
	statusWidth = 7
	typeWidth   = 10
	sizeWidth   = 9
	timeWidth   = 8
)

// View implements tea.Model.
func (m Model) View() string {
	border := m.styles.UnfocusedBorder
	if m.focused {
		border = m.styles.FocusedBorder
	}

	innerW := max(m.width-2, 1)
	innerH := max(m.height-2, 1)

	title := fmt.Sprintf("Network (%d)", len(m.rows))
	if q := m.filterInput.Value(); q != "" && !m.filtering {
		title += m.styles.Muted.Render(fmt.Sprintf("  /%s  %d shown", q, len(m.filtered)))
	}

	lines := []string{m.styles.Title.Render(title), m.renderHeader(innerW)}
	if len(m.filtered) == 0 {
		lines = append(lines, m.styles.Muted.Render("  No requests"))
	} else {
		end := min(m.offset+m.visibleRows(), len(m.filtered))
		for vi := m.offset; vi < end; vi++ {
			lines = append(lines, m.renderRow(m.rows[m.filtered[vi]], vi == m.cursor, innerW))
		}
	}

	content := fitHeight(strings.Join(lines, "\n"), innerH)
	if m.filtering {
		content = fitHeight(strings.Join(lines, "\n"), innerH-1) + "\n" + m.filterInput.View()
	}

	return border.
		Width(innerW).
		Height(innerH).
		Render(content)
}

func (m Model) nameWidth(total int) int {
	return max(total-methodWidth-statusWidth-typeWidth-sizeWidth-timeWidth, 8)
}

func (m Model) renderHeader(width int) string {
	line := pad("Name", m.nameWidth(width)) +
		pad("Method", methodWidth) +
		pad("Status", statusWidth) +
		pad("Type", typeWidth) +
		padLeft("Size", sizeWidth-1) + " " +
		padLeft("Time", timeWidth)
	return m.styles.Header.Render(line)
}

func (m Model) renderRow(r record.Record, isCursor bool, width int) string {
	name := pad(r.Name, m.nameWidth(width))
	method := pad(r.Method, methodWidth)
	status := pad(r.StatusText(), statusWidth)
	typ := pad(r.SubType, typeWidth)
	size := padLeft(formatSize(r), sizeWidth-1) + " "
	elapsed := padLeft(r.DisplayTime, timeWidth)

	if isCursor {
		plain := name + method + status + typ + size + elapsed
		return m.styles.Selected.Width(width).Bold(true).Render(plain)
	}

	nameStyle := m.styles.Normal
	if r.HasErr {
		nameStyle = m.styles.Error
	}
	statusStyle := lipgloss.NewStyle().Foreground(m.theme.StatusColor(int(r.Status), r.Done))
	return nameStyle.Render(name) +
		m.styles.MethodStyle(r.Method).Render(method) +
		statusStyle.Render(status) +
		m.styles.Muted.Render(typ+size+elapsed)
}

func formatSize(r record.Record) string {
	if !r.Done && r.Size == 0 {
		return "-"
	}
	return humanize.IBytes(uint64(max(r.Size, 0)))
}

// pad truncates or right-pads s to exactly w cells.
func pad(s string, w int) string {
	s = truncate(s, w-1)
	return s + strings.Repeat(" ", max(w-lipgloss.Width(s), 0))
}

func padLeft(s string, w int) string {
	s = truncate(s, w)
	return strings.Repeat(" ", max(w-lipgloss.Width(s), 0)) + s
}

func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= w {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > w {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}

// fitHeight truncates or pads content to the given height.
func fitHeight(content string, h int) string {
	lines := strings.Split(content, "\n")
	if len(lines) > h {
		lines = lines[:max(h, 0)]
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
