// Command jumpbridge serves bundled Go modules and Lua modules to remote
// callers over a framed message protocol.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/richinsley/jumpbridge"
	"github.com/richinsley/jumpbridge/modules"
)

// ExitError carries the process exit code for a failure.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func main() {
	ctx, stop := shutdownContext(context.Background())
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			stop()
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// run parses flags, builds the bridge and serves until ctx is cancelled or
// the stdio stream closes.
func run(ctx context.Context, args []string, stderr io.Writer) error {
	flagSet := flag.NewFlagSet("jumpbridge", flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	configPath := flagSet.String("config", "", "Path to an HCL configuration file.")
	transport := flagSet.String("transport", "", "Transport: 'unix', 'tcp' or 'stdio'.")
	address := flagSet.String("address", "", "Socket path or host:port to listen on.")
	serializer := flagSet.String("serializer", "", "Message encoding: 'msgpack', 'json' or 'protobuf'.")
	logLevel := flagSet.String("log-level", "", "Log level: 'debug', 'info', 'warn' or 'error'.")
	preload := flagSet.String("preload", "", "Comma-separated modules to import at startup.")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &ExitError{Code: 2, Message: err.Error()}
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return &ExitError{Code: 1, Message: err.Error()}
	}
	flagSet.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "transport":
			cfg.Transport = *transport
		case "address":
			cfg.Address = *address
		case "serializer":
			cfg.Serializer = *serializer
		case "log-level":
			cfg.LogLevel = *logLevel
		case "preload":
			cfg.Preload = splitList(*preload)
		}
	})
	if err := cfg.validate(); err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	logger := newLogger(cfg, stderr)
	slog.SetDefault(logger)

	tp, shutdownTracing, err := setupTracing(ctx, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	luaLoader, err := jumpbridge.NewLuaLoader(jumpbridge.LuaOptions{
		Paths:     cfg.LuaPaths,
		RocksTree: cfg.RocksTree,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("start lua runtime: %w", err)
	}

	var installer jumpbridge.Installer = jumpbridge.NopInstaller{}
	if cfg.InstallEnabled {
		installer = &jumpbridge.CommandInstaller{
			Command:         cfg.InstallCommand,
			FallbackCommand: cfg.InstallFallback,
			Timeout:         cfg.InstallTimeout,
			Logger:          logger,
		}
	}

	asyncTimeout := cfg.AsyncTimeout
	if asyncTimeout == 0 {
		asyncTimeout = -1
	}
	bridge := jumpbridge.New(jumpbridge.Options{
		Loader:         jumpbridge.ChainLoader{modules.Loader(), luaLoader},
		Installer:      installer,
		AsyncTimeout:   asyncTimeout,
		Logger:         logger,
		TracerProvider: tp,
	})
	defer func() {
		if err := bridge.Close(); err != nil {
			logger.Warn("closing instances failed", "error", err)
		}
	}()

	if err := bridge.Modules().Preload(ctx, cfg.Preload); err != nil {
		return fmt.Errorf("preload modules: %w", err)
	}

	ser, _ := jumpbridge.NewSerializer(cfg.Serializer)
	server := jumpbridge.NewServer(bridge, ser, logger)
	logger.Info("bridge starting",
		"transport", cfg.Transport,
		"address", cfg.Address,
		"serializer", ser.Name(),
		"lua", luaLoader.Version().String())

	if cfg.Transport == "stdio" {
		t := jumpbridge.NewFramedTransport(os.Stdin, os.Stdout)
		stop := context.AfterFunc(ctx, func() { t.Close() })
		defer stop()
		return server.ServeTransport(ctx, t)
	}

	if cfg.Transport == "unix" {
		if err := os.Remove(cfg.Address); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen(cfg.Transport, cfg.Address)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	logger.Info("listening", "address", ln.Addr().String())
	return server.Serve(ctx, ln)
}

func newLogger(cfg Config, w io.Writer) *slog.Logger {
	level, _ := cfg.level()
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
