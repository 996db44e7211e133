// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/editorlink-project/editorlink/lib/activity"
	"github.com/editorlink-project/editorlink/lib/bridge"
	"github.com/editorlink-project/editorlink/lib/command"
	"github.com/editorlink-project/editorlink/lib/config"
	"github.com/editorlink-project/editorlink/lib/diaglog"
	"github.com/editorlink-project/editorlink/lib/hostenv"
	"github.com/editorlink-project/editorlink/lib/mainloop"
	"github.com/editorlink-project/editorlink/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		projectRoot string
		socketPath  string
		tick        time.Duration
		logLevel    string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to YAML config file (default: $EDITORLINK_CONFIG)")
	flag.StringVar(&projectRoot, "project-root", "", "project directory that seeds the endpoint identity (default: current directory)")
	flag.StringVar(&socketPath, "socket", "", "explicit socket path (default: derived from the endpoint name)")
	flag.DurationVar(&tick, "tick", 16*time.Millisecond, "simulated host loop tick interval")
	flag.StringVar(&logLevel, "log-level", "info", "stderr log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("editorlink-bridge %s\n", version.Info())
		return nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	configuration, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if projectRoot == "" {
		projectRoot, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("determining project root: %w", err)
		}
	}
	projectRoot, err = filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolving project root: %w", err)
	}

	host := hostenv.NewSimulated(hostenv.Identity{
		Name:    "editorlink-simulated-host",
		Version: version.Info(),
	}, projectRoot)

	registry := command.NewRegistry(logger)
	dispatcher := mainloop.NewDispatcher()
	recorder := activity.NewRecorder(0)
	diag := diaglog.New(
		filepath.Join(projectRoot, "Logs", "editorlink-bridge.log"),
		diaglog.Options{Disabled: !configuration.LoggingEnabled},
	)
	defer diag.Close()

	server, err := bridge.NewServer(bridge.Options{
		Host:       host,
		Registry:   registry,
		Dispatcher: dispatcher,
		Recorder:   recorder,
		Diag:       diag,
		Logger:     logger,
		Config:     configuration,
		SocketPath: socketPath,
	})
	if err != nil {
		return err
	}
	server.RegisterBuiltins()
	registerDevelopmentCommands(registry)

	if err := server.Start(); err != nil {
		return err
	}
	defer server.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("simulated host loop running", "tick", tick)
	host.Run(ctx, dispatcher, tick)

	logger.Info("shutting down")
	return nil
}

// registerDevelopmentCommands adds the handlers a client developer
// needs to exercise the protocol without a real editor: an echo that
// round-trips params and a sleep that holds the host loop to provoke
// liveness logging and timeouts.
func registerDevelopmentCommands(registry *command.Registry) {
	registry.Register("echo", func(_ context.Context, params json.RawMessage) (any, error) {
		if params == nil {
			return nil, nil
		}
		return params, nil
	})

	registry.Register("dev.sleep", func(_ context.Context, params json.RawMessage) (any, error) {
		var args struct {
			Millis int `json:"millis"`
		}
		if params != nil {
			if err := json.Unmarshal(params, &args); err != nil {
				return nil, err
			}
		}
		time.Sleep(time.Duration(args.Millis) * time.Millisecond)
		return map[string]int{"slept_ms": args.Millis}, nil
	})
}
