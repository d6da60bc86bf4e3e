package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sadopc/netwatch/internal/filter"
	"github.com/sadopc/netwatch/internal/intercept"
	"github.com/sadopc/netwatch/internal/runner"
	"github.com/sadopc/netwatch/pkg/version"
)

func captureCmd() {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	configFlag := fs.String("config", "", "Path to the settings file")
	outputFlag := fs.String("output", "text", "Output format: text, json, har")
	filterFlag := fs.String("filter", "", "JavaScript expression selecting records, e.g. 'r.status >= 400'")
	verboseFlag := fs.Bool("verbose", false, "Show response bodies")
	timeoutFlag := fs.Duration("timeout", 30*time.Second, "Request timeout")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: netwatch capture <targets.yaml> [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run every target with the interceptors installed and print the records.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nFilter variables:\n")
		fmt.Fprintf(os.Stderr, "  r.url r.method r.status r.source r.type r.subType r.size r.time\n")
		fmt.Fprintf(os.Stderr, "  r.done r.hasErr r.error r.reqHeaders r.resHeaders r.responseBody\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  netwatch capture api.yaml\n")
		fmt.Fprintf(os.Stderr, "  netwatch capture api.yaml --output har > api.har\n")
		fmt.Fprintf(os.Stderr, "  netwatch capture api.yaml --filter 'r.hasErr' --verbose\n")
		fmt.Fprintf(os.Stderr, "\nExit codes:\n")
		fmt.Fprintf(os.Stderr, "  0  Every captured request succeeded\n")
		fmt.Fprintf(os.Stderr, "  1  One or more captured requests failed\n")
		fmt.Fprintf(os.Stderr, "  2  Usage or setup error\n")
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: targets file path is required\n\n")
		fs.Usage()
		os.Exit(2)
	}

	switch *outputFlag {
	case runner.FormatText, runner.FormatJSON, runner.FormatHAR:
	default:
		fatalf(2, "invalid output format %q (must be text, json, or har)", *outputFlag)
	}

	f, err := runner.LoadFile(fs.Arg(0))
	if err != nil {
		fatalf(2, "%v", err)
	}
	flt, err := filter.Compile(*filterFlag, 0)
	if err != nil {
		fatalf(2, "%v", err)
	}

	e, err := setup(*configFlag, false, nil)
	if err != nil {
		fatalf(2, "%v", err)
	}
	defer e.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	r := runner.New(runner.Config{Timeout: *timeoutFlag, Logger: e.log.Named("runner"), Transport: e.mon.Transport()})
	r.Run(ctx, f.Targets)

	// Transport targets only leave a record while that interceptor is on.
	want := 0
	for _, t := range f.Targets {
		if t.API != runner.APITransport || e.mon.Intercepting(intercept.KindTransport) {
			want++
		}
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, 5*time.Second)
	defer waitCancel()
	if err := runner.WaitDone(waitCtx, e.mon.Store(), want); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	records, err := flt.Apply(e.mon.List())
	if err != nil {
		fatalf(2, "%v", err)
	}
	if err := runner.Print(os.Stdout, *outputFlag, records, *verboseFlag, version.Version); err != nil {
		fatalf(2, "%v", err)
	}

	e.close()
	os.Exit(runner.ExitCode(records))
}
