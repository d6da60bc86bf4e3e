package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/sadopc/netwatch/internal/config"
	"github.com/sadopc/netwatch/internal/demo"
	"github.com/sadopc/netwatch/internal/logging"
)

func demoCmd() {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	listenFlag := fs.String("listen", "127.0.0.1:8080", "Listen address")
	latencyFlag := fs.Duration("latency", 0, "Artificial response latency (e.g., 200ms, 1s)")
	slowFlag := fs.Duration("slow", 2*time.Second, "Delay of the /slow endpoint")
	corsOriginFlag := fs.String("cors-origin", "*", "Access-Control-Allow-Origin header value")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: netwatch demo [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Start an HTTP server with endpoints for every record outcome.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEndpoints:\n")
		for _, p := range demo.Paths {
			fmt.Fprintf(os.Stderr, "  %s\n", p)
		}
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	log, err := logging.New(config.DefaultConfig().Log, false)
	if err != nil {
		fatalf(2, "%v", err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := []demo.Option{
		demo.WithLogger(log),
		demo.WithSlowDelay(*slowFlag),
		demo.WithCORSOrigin(*corsOriginFlag),
	}
	if *latencyFlag > 0 {
		opts = append(opts, demo.WithLatency(*latencyFlag))
	}

	base, err := demo.New(opts...).Start(ctx, *listenFlag)
	if err != nil {
		fatalf(1, "%v", err)
	}
	fmt.Fprintf(os.Stderr, "Demo server on %s (Ctrl+C to stop)\n", base)
	<-ctx.Done()
}
