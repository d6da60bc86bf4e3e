// Package app is the terminal front end of the network monitor.
package app

import (
	"errors"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/netwatch/internal/config"
	"github.com/sadopc/netwatch/internal/export"
	"github.com/sadopc/netwatch/internal/intercept"
	"github.com/sadopc/netwatch/internal/monitor"
	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/ui/components"
	"github.com/sadopc/netwatch/internal/ui/layout"
	"github.com/sadopc/netwatch/internal/ui/msgs"
	"github.com/sadopc/netwatch/internal/ui/panels/detail"
	"github.com/sadopc/netwatch/internal/ui/panels/requests"
	"github.com/sadopc/netwatch/internal/ui/theme"
)

// copyToClipboard is replaced in tests.
var copyToClipboard = clipboard.WriteAll

// App is the root Bubble Tea model.
type App struct {
	list   requests.Model
	detail detail.Model

	statusBar components.StatusBar
	help      components.Help
	toast     components.Toast

	mon      *monitor.Monitor
	settings *config.Settings
	bridge   *Bridge

	mode       msgs.AppMode
	focus      msgs.PanelFocus
	detailOpen bool
	paused     bool
	inspecting string
	layout     layout.PanelLayout
	keys       KeyMap

	theme  theme.Theme
	styles theme.Styles

	width  int
	height int
	ready  bool
}

// New creates the root model. The monitor must already be initialized with
// bridge as its detail viewer; settings may be nil.
func New(mon *monitor.Monitor, settings *config.Settings, bridge *Bridge, t theme.Theme) App {
	s := theme.NewStyles(t)

	a := App{
		list:   requests.New(t, s),
		detail: detail.New(s),

		statusBar: components.NewStatusBar(t, s),
		help:      components.NewHelp(t, s),
		toast:     components.NewToast(t),

		mon:      mon,
		settings: settings,
		bridge:   bridge,

		mode:  msgs.ModeNormal,
		focus: msgs.FocusList,
		keys:  DefaultKeyMap(),

		theme:  t,
		styles: s,
	}
	a.syncInterception()
	a.updateFocus()
	return a
}

// Init starts rendering into the bridge.
func (a App) Init() tea.Cmd {
	return a.activateCmd()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout = layout.HandleResize(msg, a.detailOpen)
		a.resizePanels()
		a.ready = true
		return a, nil

	case tea.KeyMsg:
		if key.Matches(msg, a.keys.ForceQuit) {
			return a, tea.Quit
		}
		if a.help.Visible {
			var cmd tea.Cmd
			a.help, cmd = a.help.Update(msg)
			return a, cmd
		}
		if a.list.Filtering() {
			var cmd tea.Cmd
			a.list, cmd = a.list.Update(msg)
			return a, cmd
		}

		if model, cmd, ok := a.handleGlobalKey(msg); ok {
			return model, cmd
		}
		return a.handlePanelKey(msg)

	case msgs.RecordsMsg:
		a.list.SetRecords(msg.Records)
		a.statusBar.SetSummary(components.Summarize(msg.Records))
		a.syncInterception()
		if msg.Records == nil && a.detailOpen {
			a.closeDetail()
		}
		return a, nil

	case msgs.InspectRequestMsg:
		a.inspecting = msg.ID
		return a, a.inspectCmd(msg.ID)

	case msgs.DetailMsg:
		id := msg.ID
		if id == "" {
			id = a.inspecting
		}
		a.detail.SetDetail(id, msg.Detail)
		a.openDetail()
		return a, nil

	case msgs.InspectFailedMsg:
		text := "Cannot inspect request: " + msg.Err.Error()
		if errors.Is(msg.Err, monitor.ErrNotDone) {
			text = "Request still in flight"
		}
		return a, a.toast.Show(text, true, 2*time.Second)

	case msgs.SettingChangedMsg:
		a.syncInterception()
		if msg.Err != nil {
			return a, a.toast.Show("Saving settings: "+msg.Err.Error(), true, 3*time.Second)
		}
		state := "off"
		if msg.InterceptTransport {
			state = "on"
		}
		return a, a.toast.Show("Transport capture "+state, false, 2*time.Second)

	case msgs.ClearedMsg:
		a.closeDetail()
		return a, a.toast.Show("Cleared", false, 2*time.Second)

	case msgs.SetModeMsg:
		a.mode = msg.Mode
		a.statusBar.SetMode(msg.Mode)
		return a, nil

	case msgs.StatusMsg:
		a.statusBar.SetMessage(msg.Text)
		if msg.Duration > 0 {
			cmds = append(cmds, tea.Tick(msg.Duration, func(time.Time) tea.Msg {
				return msgs.StatusMsg{Text: ""}
			}))
		}
		return a, tea.Batch(cmds...)

	case msgs.ToastMsg:
		return a, a.toast.Show(msg.Text, msg.IsError, msg.Duration)
	}

	var cmd tea.Cmd
	a.toast, cmd = a.toast.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	a.statusBar, cmd = a.statusBar.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}
	a.list, cmd = a.list.Update(msg)
	if cmd != nil {
		cmds = append(cmds, cmd)
	}

	return a, tea.Batch(cmds...)
}

func (a App) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit, true
	case key.Matches(msg, a.keys.Help):
		a.mode = msgs.ModeHelp
		a.statusBar.SetMode(msgs.ModeHelp)
		a.help.SetSize(a.width, a.height)
		a.help.Toggle()
		return a, nil, true
	case key.Matches(msg, a.keys.CycleFocus):
		if a.detailOpen {
			if a.focus == msgs.FocusList {
				a.focus = msgs.FocusDetail
			} else {
				a.focus = msgs.FocusList
			}
			a.updateFocus()
		}
		return a, nil, true
	case key.Matches(msg, a.keys.CloseDetail):
		if a.detailOpen {
			a.closeDetail()
		}
		return a, nil, true
	case key.Matches(msg, a.keys.Clear):
		return a, a.clearCmd(), true
	case key.Matches(msg, a.keys.ToggleTransport):
		return a, a.toggleTransportCmd(), true
	case key.Matches(msg, a.keys.Pause):
		a.paused = !a.paused
		if a.paused {
			a.mon.Deactivate()
			return a, a.toast.Show("Live updates paused", false, 2*time.Second), true
		}
		return a, a.activateCmd(), true
	case key.Matches(msg, a.keys.CopyURL):
		return a.copySelected(false)
	case key.Matches(msg, a.keys.CopyCurl):
		return a.copySelected(true)
	}
	return a, nil, false
}

func (a App) handlePanelKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.focus {
	case msgs.FocusList:
		a.list, cmd = a.list.Update(msg)
	case msgs.FocusDetail:
		a.detail, cmd = a.detail.Update(msg)
	}
	return a, cmd
}

// The monitor calls back into the bridge from these, so they must not run
// inside Update.

func (a App) activateCmd() tea.Cmd {
	mon, bridge := a.mon, a.bridge
	return func() tea.Msg {
		mon.Activate(bridge)
		return nil
	}
}

func (a App) inspectCmd(id string) tea.Cmd {
	mon := a.mon
	return func() tea.Msg {
		if _, err := mon.Inspect(id); err != nil {
			return msgs.InspectFailedMsg{ID: id, Err: err}
		}
		return nil
	}
}

func (a App) clearCmd() tea.Cmd {
	mon := a.mon
	return func() tea.Msg {
		mon.Clear()
		return msgs.ClearedMsg{}
	}
}

func (a App) toggleTransportCmd() tea.Cmd {
	settings := a.settings
	if settings == nil {
		return func() tea.Msg {
			return msgs.ToastMsg{Text: "No settings store", IsError: true, Duration: 2 * time.Second}
		}
	}
	return func() tea.Msg {
		next := !settings.InterceptTransport()
		if err := settings.SetInterceptTransport(next); err != nil {
			return msgs.SettingChangedMsg{InterceptTransport: next, Err: err}
		}
		return nil
	}
}

func (a App) copySelected(asCurl bool) (tea.Model, tea.Cmd, bool) {
	r, ok := a.selectedRecord()
	if !ok {
		return a, a.toast.Show("Nothing selected", true, 2*time.Second), true
	}

	text, label := r.URL, "Copied URL"
	if asCurl {
		text, label = export.AsCurl(r), "Copied as cURL"
	}
	if err := copyToClipboard(text); err != nil {
		return a, a.toast.Show("Clipboard error: "+err.Error(), true, 3*time.Second), true
	}
	return a, a.toast.Show(label, false, 2*time.Second), true
}

// selectedRecord prefers the record shown in the detail panel when it has
// focus.
func (a App) selectedRecord() (record.Record, bool) {
	if a.detailOpen && a.focus == msgs.FocusDetail {
		if r, ok := a.mon.Store().Get(a.detail.ID()); ok {
			return r, true
		}
	}
	return a.list.SelectedRecord()
}

func (a *App) syncInterception() {
	a.statusBar.SetInterception(
		a.mon.Intercepting(intercept.KindXHR),
		a.mon.Intercepting(intercept.KindTransport),
	)
}

func (a *App) openDetail() {
	a.detailOpen = true
	a.focus = msgs.FocusDetail
	a.relayout()
}

func (a *App) closeDetail() {
	a.detailOpen = false
	a.inspecting = ""
	a.detail.Reset()
	a.focus = msgs.FocusList
	a.relayout()
}

func (a *App) relayout() {
	if a.ready {
		a.layout = layout.Calculate(a.width, a.height, a.detailOpen)
	}
	a.resizePanels()
}

func (a *App) updateFocus() {
	a.list.SetFocused(a.focus == msgs.FocusList)
	a.detail.SetFocused(a.focus == msgs.FocusDetail)
}

func (a *App) resizePanels() {
	l := a.layout
	a.list.SetSize(l.ListWidth, l.ContentHeight)
	a.detail.SetSize(l.DetailWidth, l.ContentHeight)
	a.statusBar.SetWidth(a.width)
	a.help.SetSize(a.width, a.height)
	a.updateFocus()
}

func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	title := a.styles.Title.Render(" netwatch")
	if a.paused {
		title += a.styles.Warning.Render("  paused")
	}

	var panels string
	switch {
	case a.layout.SinglePanel:
		panels = a.detail.View()
	case a.detailOpen:
		panels = lipgloss.JoinHorizontal(lipgloss.Top, a.list.View(), a.detail.View())
	default:
		panels = a.list.View()
	}

	main := lipgloss.JoinVertical(lipgloss.Left, title, panels, a.statusBar.View())

	if a.help.Visible {
		main = overlayCenter(main, a.help.View(), a.width, a.height)
	}
	if a.toast.Visible {
		main = overlayTopRight(main, a.toast.View(), a.width)
	}

	return main
}

func overlayCenter(_, overlay string, width, height int) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color("#1e1e2e")),
	)
}

func overlayTopRight(bg, overlay string, width int) string {
	gap := max(width-lipgloss.Width(overlay)-2, 0)
	positioned := lipgloss.NewStyle().MarginLeft(gap).Render(overlay)
	return positioned + "\n" + bg
}
