package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/sadopc/netwatch/internal/config"
	"github.com/sadopc/netwatch/internal/intercept"
	"github.com/sadopc/netwatch/internal/logging"
	"github.com/sadopc/netwatch/internal/monitor"
	"github.com/sadopc/netwatch/internal/xhr"
)

// env is what every subcommand builds before doing its work.
type env struct {
	settings *config.Settings
	log      *zap.Logger
	mon      *monitor.Monitor
}

// setup loads the settings at path (the default path when empty), builds the
// logger and the default xhr client, and initializes a monitor. quiet
// discards logging unless a log file is configured.
func setup(path string, quiet bool, viewer monitor.DetailViewer) (*env, error) {
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(cfg.Log, quiet)
	if err != nil {
		return nil, err
	}
	settings := config.NewSettings(path, cfg, log.Named("settings"))

	tlsCfg, err := cfg.Network.TLS.Build()
	if err != nil {
		return nil, err
	}
	client, err := xhr.NewClient(xhr.Config{
		Timeout:   cfg.Network.Timeout,
		ProxyURL:  cfg.Network.Proxy,
		NoProxy:   cfg.Network.NoProxy,
		TLSConfig: tlsCfg,
	})
	if err != nil {
		return nil, err
	}
	xhr.SetDefaultClient(client)

	mon := monitor.New(
		monitor.WithLogger(log),
		monitor.WithInterceptOptions(intercept.WithMaxBodyBytes(cfg.Network.MaxBodyBytes)),
	)
	if err := mon.Initialize(monitor.Host{Settings: settings, Viewer: viewer}); err != nil {
		return nil, err
	}
	return &env{settings: settings, log: log, mon: mon}, nil
}

func (e *env) close() {
	e.mon.Teardown()
	e.log.Sync()
}

func fatalf(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(code)
}
