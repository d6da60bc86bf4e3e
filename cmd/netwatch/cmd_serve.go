package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/demo"
	"github.com/sadopc/netwatch/internal/feed"
	"github.com/sadopc/netwatch/internal/runner"
)

func serveCmd() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configFlag := fs.String("config", "", "Path to the settings file")
	listenFlag := fs.String("listen", "127.0.0.1:7070", "Feed listen address")
	intervalFlag := fs.Duration("interval", 5*time.Second, "Delay between runs of the targets (0 runs once)")
	demoFlag := fs.Bool("demo", false, "Also call a local demo server")
	bufferFlag := fs.Int("buffer", 256, "Changes buffered per feed client")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: netwatch serve [targets.yaml] [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run targets with the interceptors installed and stream the records.\n\n")
		fmt.Fprintf(os.Stderr, "Endpoints:\n")
		fmt.Fprintf(os.Stderr, "  GET /records   All records as a JSON array\n")
		fmt.Fprintf(os.Stderr, "  GET /feed      Websocket: a snapshot, then one event per change\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  netwatch serve api.yaml\n")
		fmt.Fprintf(os.Stderr, "  netwatch serve --demo --listen :7070\n")
		fmt.Fprintf(os.Stderr, "  netwatch tail ws://127.0.0.1:7070/feed\n")
	}

	if err := fs.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	var targets []runner.Target
	if fs.NArg() > 0 {
		f, err := runner.LoadFile(fs.Arg(0))
		if err != nil {
			fatalf(2, "%v", err)
		}
		targets = f.Targets
	}

	e, err := setup(*configFlag, false, nil)
	if err != nil {
		fatalf(2, "%v", err)
	}
	defer e.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go func() {
		if err := e.settings.Watch(ctx); err != nil {
			e.log.Warn("settings watch stopped", zap.Error(err))
		}
	}()

	if *demoFlag {
		base, err := demo.New(demo.WithLogger(e.log.Named("demo"))).Start(ctx, "")
		if err != nil {
			fatalf(1, "starting demo server: %v", err)
		}
		targets = append(targets, demoTargets(base)...)
	}
	if len(targets) == 0 {
		e.log.Info("no targets; serving an empty feed")
	} else {
		r := runner.New(runner.Config{Logger: e.log.Named("runner"), Transport: e.mon.Transport()})
		go replay(ctx, r, targets, *intervalFlag)
	}

	srv := feed.NewServer(e.mon.Store(),
		feed.WithLogger(e.log.Named("feed")),
		feed.WithBuffer(*bufferFlag),
	)
	if err := srv.ListenAndServe(ctx, *listenFlag); err != nil {
		fatalf(1, "%v", err)
	}
}
