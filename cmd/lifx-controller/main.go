// Command lifx-controller is an interactive controller for LIFX devices
// on the local network.
//
// This command demonstrates the full client stack with:
//   - CLI argument parsing
//   - Configuration file support
//   - UDP broadcast discovery
//   - Interactive command interface
//   - Protocol event logging
//
// Usage:
//
//	lifx-controller [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-bind string          Local UDP bind address (default ":0")
//	-timeout duration     Per-attempt response wait (default 1s)
//	-retries int          Resends after the initial attempt (default 3)
//	-settle duration      Discovery settle window (default 300ms)
//	-protocol-log string  Write protocol events to this file
//	-log-level string     Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Start the interactive shell
//	lifx-controller
//
//	# Capture protocol traffic for later analysis with lifx-log
//	lifx-controller -protocol-log session.lifxlog
//
//	# Slow network: give devices more time
//	lifx-controller -timeout 2s -retries 5 -settle 500ms
//
// Interactive Commands:
//
//	discover    - Discover devices on the local network
//	list        - List known devices
//	state <device> - Show color, power and label
//	color <device> <hue> <sat> <bri> [kelvin] [duration] - Set color
//	power <device> on|off - Switch power
//	label <device> [name] - Show or set the device label
//	status      - Show session status
//	quit        - Exit the controller
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/okabe-project/lifx-go/cmd/lifx-controller/interactive"
	"github.com/okabe-project/lifx-go/pkg/client"
	"github.com/okabe-project/lifx-go/pkg/log"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Configuration file path (YAML)")
		bind        = flag.String("bind", "", "Local UDP bind address")
		timeout     = flag.Duration("timeout", 0, "Per-attempt response wait")
		retries     = flag.Int("retries", -1, "Resends after the initial attempt")
		settle      = flag.Duration("settle", 0, "Discovery settle window")
		protocolLog = flag.String("protocol-log", "", "Write protocol events to this file")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags take precedence over the configuration file.
	if *bind != "" {
		cfg.BindAddress = *bind
	}
	if *timeout != 0 {
		cfg.Timeout = Duration(*timeout)
	}
	if *retries >= 0 {
		cfg.MaxRetries = *retries
	}
	if *settle != 0 {
		cfg.SettleWindow = Duration(*settle)
	}
	if *protocolLog != "" {
		cfg.ProtocolLog = *protocolLog
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	slogger := newSlogger(cfg.LogLevel)

	var loggers []log.Logger
	if cfg.ProtocolLog != "" {
		fl, err := log.NewFileLogger(cfg.ProtocolLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot open protocol log: %v\n", err)
			os.Exit(1)
		}
		defer fl.Close()
		loggers = append(loggers, fl)
		slogger.Info("protocol logging enabled", "file", cfg.ProtocolLog)
	}
	if cfg.LogLevel == "debug" {
		loggers = append(loggers, log.NewSlogAdapter(slogger))
	}
	var protoLogger log.Logger
	if len(loggers) > 0 {
		protoLogger = log.NewMultiLogger(loggers...)
	}

	c, err := client.New(cfg.sessionConfig(), protoLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	slogger.Info("session open",
		"local_addr", c.Session().LocalAddr().String(),
		"source", c.Session().Source(),
		"session_id", c.Session().ID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shell, err := interactive.New(c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	go shell.Run(ctx, cancel)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slogger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
		// shell quit
	}

	cancel()
}

func newSlogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
