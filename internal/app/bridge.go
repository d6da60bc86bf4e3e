package app

import (
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/netwatch/internal/config"
	"github.com/sadopc/netwatch/internal/monitor"
	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/ui/msgs"
)

// Bridge turns monitor and settings callbacks into program messages. It is
// both the monitor's presenter and its detail viewer.
//
// Program.Send blocks until the event loop takes the message, so the
// callbacks must never run inside Update. The app only calls into the
// monitor and settings from commands.
type Bridge struct {
	prog atomic.Pointer[tea.Program]
	// sink overrides delivery in tests.
	sink func(tea.Msg)
}

var (
	_ monitor.Presenter    = (*Bridge)(nil)
	_ monitor.DetailViewer = (*Bridge)(nil)
)

// NewBridge returns a bridge with no program attached. Messages sent before
// Attach are dropped.
func NewBridge() *Bridge {
	return &Bridge{}
}

// Attach routes messages to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.prog.Store(p)
}

// Render implements monitor.Presenter.
func (b *Bridge) Render(records map[string]record.Record) {
	b.send(msgs.RecordsMsg{Records: records})
}

// ShowDetail implements monitor.DetailViewer.
func (b *Bridge) ShowDetail(d monitor.Detail) {
	b.send(msgs.DetailMsg{Detail: d})
}

// WatchSettings forwards transport toggle changes until the returned func
// is called.
func (b *Bridge) WatchSettings(s *config.Settings) func() {
	return s.OnChange(func(key string, cfg config.Config) {
		if key == config.KeyInterceptTransport {
			b.send(msgs.SettingChangedMsg{InterceptTransport: cfg.Network.InterceptTransport})
		}
	})
}

func (b *Bridge) send(msg tea.Msg) {
	if b.sink != nil {
		b.sink(msg)
		return
	}
	if p := b.prog.Load(); p != nil {
		p.Send(msg)
	}
}
