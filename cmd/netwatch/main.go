package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/app"
	"github.com/sadopc/netwatch/internal/demo"
	"github.com/sadopc/netwatch/internal/runner"
	"github.com/sadopc/netwatch/internal/ui/theme"
	"github.com/sadopc/netwatch/pkg/version"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "capture":
			captureCmd()
			return
		case "serve":
			serveCmd()
			return
		case "tail":
			tailCmd()
			return
		case "demo":
			demoCmd()
			return
		case "version":
			fmt.Println(version.String())
			return
		case "help":
			printHelp()
			return
		}
	}
	tuiCmd()
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `netwatch - watch the HTTP traffic of a Go process

Usage:
  netwatch [flags]                    Launch TUI (interactive mode)
  netwatch <command> [args] [flags]   Run a subcommand

Commands:
  capture   Run a targets file, capture every call and print the records
  serve     Capture calls and stream the records over a websocket feed
  tail      Follow a feed started with 'netwatch serve'
  demo      Start the demo HTTP server
  version   Print version information
  help      Show this help message

TUI Flags:
  --config <path>    Settings file (default ~/.config/netwatch/config.yaml)
  --targets <path>   Targets file to run in the background
  --demo             Generate traffic against a local demo server
  --interval <dur>   Delay between target rounds (default 3s)
  --version          Print version and exit

Run 'netwatch <command> --help' for more information about a command.
`)
}

func tuiCmd() {
	versionFlag := flag.Bool("version", false, "Print version and exit")
	configFlag := flag.String("config", "", "Path to the settings file")
	targetsFlag := flag.String("targets", "", "Targets file to run in the background")
	demoFlag := flag.Bool("demo", false, "Generate traffic against a local demo server")
	intervalFlag := flag.Duration("interval", 3*time.Second, "Delay between background runs")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.String())
		os.Exit(0)
	}

	var targets []runner.Target
	if *targetsFlag != "" {
		f, err := runner.LoadFile(*targetsFlag)
		if err != nil {
			fatalf(1, "%v", err)
		}
		targets = f.Targets
	}

	bridge := app.NewBridge()
	e, err := setup(*configFlag, true, bridge)
	if err != nil {
		fatalf(1, "%v", err)
	}
	defer e.close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	go func() {
		if err := e.settings.Watch(ctx); err != nil {
			e.log.Warn("settings watch stopped", zap.Error(err))
		}
	}()
	defer bridge.WatchSettings(e.settings)()

	if *demoFlag {
		base, err := demo.New(demo.WithLogger(e.log.Named("demo"))).Start(ctx, "")
		if err != nil {
			fatalf(1, "starting demo server: %v", err)
		}
		targets = append(targets, demoTargets(base)...)
	}

	model := app.New(e.mon, e.settings, bridge, theme.Resolve(e.settings.Config().Theme))
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)

	if len(targets) > 0 {
		r := runner.New(runner.Config{Logger: e.log.Named("runner"), Transport: e.mon.Transport()})
		go replay(ctx, r, targets, *intervalFlag)
	}

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fatalf(1, "%v", err)
	}
}

// replay runs targets every interval until ctx is done. A zero interval runs
// them once.
func replay(ctx context.Context, r *runner.Runner, targets []runner.Target, interval time.Duration) {
	for {
		r.Run(ctx, targets)
		if interval <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// demoTargets calls every demo endpoint once through each API.
func demoTargets(base string) []runner.Target {
	var targets []runner.Target
	for _, path := range demo.Paths {
		for _, api := range []runner.API{runner.APIXHR, runner.APITransport} {
			targets = append(targets, runner.Target{
				Name:   string(api) + " " + path,
				API:    api,
				Method: "GET",
				URL:    base + path,
			})
		}
	}
	targets = append(targets, runner.Target{
		Name:    "xhr post",
		API:     runner.APIXHR,
		Method:  "POST",
		URL:     base + "/json",
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    `{"name":"netwatch"}`,
	})
	return targets
}
