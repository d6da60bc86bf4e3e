package record

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// FormatDuration renders d compactly: 0ms, 850ms, 1.2s, 3.5m, 1.1h.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return trimFloat(d.Seconds()) + "s"
	case d < time.Hour:
		return trimFloat(d.Minutes()) + "m"
	default:
		return trimFloat(d.Hours()) + "h"
	}
}

func trimFloat(f float64) string {
	return strings.TrimSuffix(strconv.FormatFloat(f, 'f', 1, 64), ".0")
}

// NameFromURL derives the short label shown in the request list: the last
// path segment without its query, else the host, else the raw URL.
func NameFromURL(raw string) string {
	path := raw
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	name := strings.TrimSpace(path[strings.LastIndex(path, "/")+1:])
	if name != "" {
		return name
	}
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		return u.Hostname()
	}
	return raw
}

// SplitContentType splits a Content-Type value into its type and subtype,
// dropping parameters. Missing parts are reported as "unknown".
func SplitContentType(contentType string) (string, string) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.TrimSpace(mediaType)
	if mediaType == "" {
		return "unknown", "unknown"
	}
	typ, sub, ok := strings.Cut(mediaType, "/")
	if !ok || sub == "" {
		return typ, typ
	}
	return typ, sub
}
