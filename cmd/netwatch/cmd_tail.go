package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/coder/websocket"

	"github.com/sadopc/netwatch/internal/feed"
	"github.com/sadopc/netwatch/internal/record"
	"github.com/sadopc/netwatch/internal/runner"
)

func tailCmd() {
	fs := flag.NewFlagSet("tail", flag.ExitOnError)
	outputFlag := fs.String("output", "text", "Output format: text, json")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: netwatch tail <ws-url> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Follow a feed started with 'netwatch serve'.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  netwatch tail ws://127.0.0.1:7070/feed\n")
		fmt.Fprintf(os.Stderr, "  netwatch tail ws://127.0.0.1:7070/feed --output json\n")
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: feed URL is required\n\n")
		fs.Usage()
		os.Exit(2)
	}
	if *outputFlag != runner.FormatText && *outputFlag != runner.FormatJSON {
		fatalf(2, "invalid output format %q (must be text or json)", *outputFlag)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c, err := feed.Dial(ctx, fs.Arg(0))
	if err != nil {
		fatalf(1, "%v", err)
	}
	defer c.Close()

	enc := json.NewEncoder(os.Stdout)
	for {
		ev, err := c.Next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				fmt.Fprintln(os.Stderr, "feed closed")
				return
			}
			fatalf(1, "%v", err)
		}
		if *outputFlag == runner.FormatJSON {
			enc.Encode(ev)
			continue
		}
		printEvent(os.Stdout, ev)
	}
}

func printEvent(w io.Writer, ev feed.Event) {
	switch {
	case ev.Type == feed.EventSnapshot:
		fmt.Fprintf(w, "snapshot: %d records\n", len(ev.Records))
		for _, r := range ev.Records {
			printRecordLine(w, "  ", r)
		}
	case ev.Record != nil:
		printRecordLine(w, fmt.Sprintf("%-7s", ev.Type), *ev.Record)
	default:
		fmt.Fprintln(w, ev.Type)
	}
}

func printRecordLine(w io.Writer, prefix string, r record.Record) {
	fmt.Fprintf(w, "%s %-9s %-7s %-7s %8s  %s\n", prefix, r.Source, r.Method, r.StatusText(), r.DisplayTime, r.URL)
}
