package layout

// PanelLayout holds calculated dimensions for the list and detail panels.
type PanelLayout struct {
	Width  int
	Height int

	ListWidth   int
	DetailWidth int

	ContentHeight int // height minus title and status bar

	DetailVisible bool
	SinglePanel   bool
}

const (
	titleBarHeight  = 1
	statusBarHeight = 1
	splitBreakpoint = 100
	minListWidth    = 40
)

// Calculate computes the panel layout from terminal dimensions. On narrow
// terminals an open detail panel takes the whole width.
func Calculate(width, height int, detailVisible bool) PanelLayout {
	l := PanelLayout{
		Width:         width,
		Height:        height,
		DetailVisible: detailVisible,
		ContentHeight: height - titleBarHeight - statusBarHeight,
	}

	if l.ContentHeight < 1 {
		l.ContentHeight = 1
	}

	switch {
	case !detailVisible:
		l.ListWidth = width
	case width < splitBreakpoint:
		l.SinglePanel = true
		l.DetailWidth = width
	default:
		l.ListWidth = clamp(width*45/100, minListWidth, width-minListWidth)
		l.DetailWidth = width - l.ListWidth
	}

	return l
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
