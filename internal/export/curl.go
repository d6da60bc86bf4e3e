package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sadopc/netwatch/internal/record"
)

// AsCurl converts a captured record to a curl command that replays it.
func AsCurl(r record.Record) string {
	var parts []string
	parts = append(parts, "curl")

	// Method
	if r.Method != "" && r.Method != "GET" {
		parts = append(parts, "-X", r.Method)
	}

	// Headers, sorted so the command is stable
	keys := make([]string, 0, len(r.ReqHeaders))
	for k := range r.ReqHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, "-H", shellQuote(fmt.Sprintf("%s: %s", k, r.ReqHeaders[k])))
	}

	// Body
	if r.RequestBody != "" {
		parts = append(parts, "-d", shellQuote(r.RequestBody))
	}

	parts = append(parts, shellQuote(r.URL))
	return strings.Join(parts, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
