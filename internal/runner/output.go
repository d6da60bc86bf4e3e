package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/pretty"

	"github.com/sadopc/netwatch/internal/export/har"
	"github.com/sadopc/netwatch/internal/record"
)

// Output formats accepted by Print.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatHAR  = "har"
)

// Print writes records in the named format.
func Print(w io.Writer, format string, records []record.Record, verbose bool, version string) error {
	switch format {
	case "", FormatText:
		PrintText(w, records, verbose)
		return nil
	case FormatJSON:
		return PrintJSON(w, records)
	case FormatHAR:
		data, err := har.Export(records, version)
		if err != nil {
			return fmt.Errorf("exporting HAR: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		return fmt.Errorf("unknown output format %q (want text, json or har)", format)
	}
}

// PrintText outputs records in human-readable format.
func PrintText(w io.Writer, records []record.Record, verbose bool) {
	failed := 0
	for _, r := range records {
		icon := "✓" // checkmark
		if r.HasErr || !r.Done {
			icon = "✗" // x mark
			failed++
		}

		fmt.Fprintf(w, "%s %-9s %-6s %-40s  %-7s %-8s %s\n",
			icon, r.Source, r.Method, truncate(r.URL, 40),
			r.StatusText(), r.DisplayTime, humanize.IBytes(uint64(max(r.Size, 0))))
		if r.Err != "" {
			fmt.Fprintf(w, "  └ Error: %s\n", r.Err)
		}

		if verbose && r.ResponseBody != "" {
			fmt.Fprintf(w, "  --- Response Body ---\n")
			for _, line := range strings.Split(formatBody(r), "\n") {
				fmt.Fprintf(w, "  %s\n", line)
			}
			fmt.Fprintf(w, "  ---------------------\n")
		}
	}

	// Summary
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Requests: %d total, %d failed\n", len(records), failed)
}

// PrintJSON outputs records as a JSON array.
func PrintJSON(w io.Writer, records []record.Record) error {
	if records == nil {
		records = []record.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(data))
	return err
}

func formatBody(r record.Record) string {
	body := strings.TrimRight(r.ResponseBody, "\n")
	if r.SubType == "json" && json.Valid([]byte(body)) {
		return strings.TrimRight(string(pretty.Pretty([]byte(body))), "\n")
	}
	return body
}

// ExitCode returns 0 when every record finished without error, 1 otherwise.
func ExitCode(records []record.Record) int {
	for _, r := range records {
		if r.HasErr || !r.Done {
			return 1
		}
	}
	return 0
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
