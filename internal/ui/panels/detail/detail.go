// Package detail shows one completed request: its headers and bodies.
package detail

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/netwatch/internal/monitor"
	"github.com/sadopc/netwatch/internal/ui/theme"
)

// Model is the detail panel.
type Model struct {
	viewport viewport.Model
	styles   theme.Styles
	width    int
	height   int
	focused  bool
	wrap     bool

	id     string
	detail monitor.Detail
	loaded bool
}

// New creates an empty detail panel.
func New(s theme.Styles) Model {
	return Model{
		viewport: viewport.New(0, 0),
		styles:   s,
		wrap:     true,
	}
}

// SetDetail shows d, scrolled to the top.
func (m *Model) SetDetail(id string, d monitor.Detail) {
	m.id = id
	m.detail = d
	m.loaded = true
	m.render()
	m.viewport.GotoTop()
}

// Reset empties the panel.
func (m *Model) Reset() {
	m.id = ""
	m.detail = monitor.Detail{}
	m.loaded = false
	m.viewport.SetContent("")
}

// ID returns the id of the shown record, or "".
func (m Model) ID() string {
	return m.id
}

// Detail returns the shown detail.
func (m Model) Detail() (monitor.Detail, bool) {
	return m.detail, m.loaded
}

// SetSize updates the panel dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = max(w-2, 1)
	m.viewport.Height = max(h-3, 1) // border and title
	if m.loaded {
		m.render()
	}
}

// SetFocused sets whether this panel has focus.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Wrap reports whether long lines are wrapped.
func (m Model) Wrap() bool {
	return m.wrap
}

func (m *Model) render() {
	d := m.detail
	w := m.viewport.Width
	var b strings.Builder

	section := func(title string) {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(m.styles.Section.Render(title))
		b.WriteString("\n")
	}

	section("General")
	b.WriteString(m.styles.URL.Render(d.URL))
	if ct := contentType(d); ct != "" {
		fmt.Fprintf(&b, "\n%s%s", m.styles.Key.Render("Content-Type"), m.styles.Normal.Render(" : "+ct))
	}

	if len(d.ResHeaders) > 0 {
		section("Response Headers")
		b.WriteString(m.renderHeaders(d.ResHeaders))
	}
	if len(d.ReqHeaders) > 0 {
		section("Request Headers")
		b.WriteString(m.renderHeaders(d.ReqHeaders))
	}
	if d.RequestBody != "" {
		section("Request Payload")
		b.WriteString(formatBody(d.RequestBody, d.ReqHeaders["Content-Type"], w, m.wrap))
	}

	section("Response")
	if d.ResponseBody == "" {
		b.WriteString(m.styles.Muted.Render("Empty"))
	} else {
		b.WriteString(formatBody(d.ResponseBody, contentType(d), w, m.wrap))
	}

	m.viewport.SetContent(b.String())
}

// renderHeaders lists headers as sorted "Key : Value" lines.
func (m Model) renderHeaders(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, m.styles.Key.Render(k)+m.styles.Muted.Render(" : ")+m.styles.Normal.Render(headers[k]))
	}
	return strings.Join(lines, "\n")
}

func contentType(d monitor.Detail) string {
	if d.Type == "" || d.Type == "unknown" {
		return ""
	}
	return d.Type + "/" + d.SubType
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "w":
			m.wrap = !m.wrap
			if m.loaded {
				m.render()
			}
			return m, nil
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	border := m.styles.UnfocusedBorder
	if m.focused {
		border = m.styles.FocusedBorder
	}
	innerW := max(m.width-2, 1)
	innerH := max(m.height-2, 1)

	title := m.styles.Title.Render("Detail")
	body := m.styles.Muted.Render("Select a finished request and press enter")
	if m.loaded {
		if pct := m.viewport.ScrollPercent(); m.viewport.TotalLineCount() > m.viewport.Height {
			title += m.styles.Muted.Render(fmt.Sprintf("  %3.0f%%", pct*100))
		}
		body = m.viewport.View()
	}

	return border.
		Width(innerW).
		Height(innerH).
		Render(title + "\n" + body)
}
