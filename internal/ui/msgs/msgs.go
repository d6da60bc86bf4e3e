package msgs

import (
	"time"

	"github.com/sadopc/netwatch/internal/monitor"
	"github.com/sadopc/netwatch/internal/record"
)

// Panel focus targets
type PanelFocus int

const (
	FocusList PanelFocus = iota
	FocusDetail
)

// AppMode represents the current input mode.
type AppMode int

const (
	ModeNormal AppMode = iota
	ModeFilter
	ModeHelp
)

func (m AppMode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeFilter:
		return "FILTER"
	case ModeHelp:
		return "HELP"
	default:
		return "UNKNOWN"
	}
}

// RecordsMsg carries a rendered record map from the monitor. A nil map
// means there are no records.
type RecordsMsg struct {
	Records map[string]record.Record
}

// InspectRequestMsg asks the app to open the record with the given id.
type InspectRequestMsg struct {
	ID string
}

// DetailMsg carries a completed record handed to the detail viewer.
type DetailMsg struct {
	ID     string
	Detail monitor.Detail
}

// InspectFailedMsg reports why a record could not be opened.
type InspectFailedMsg struct {
	ID  string
	Err error
}

// SettingChangedMsg reports the transport toggle after a change.
type SettingChangedMsg struct {
	InterceptTransport bool
	Err                error
}

// ClearedMsg is emitted after the records were cleared.
type ClearedMsg struct{}

// SetModeMsg switches the input mode.
type SetModeMsg struct {
	Mode AppMode
}

// StatusMsg sets a temporary status bar message.
type StatusMsg struct {
	Text     string
	Duration time.Duration
}

// ToastMsg shows a toast notification.
type ToastMsg struct {
	Text     string
	IsError  bool
	Duration time.Duration
}
