// Command wsrpc-server runs a standalone wsrpc WebSocket endpoint,
// parsing its flag surface with the standard library's flag package
// (see DESIGN.md for the rationale).
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wsrpc/wsrpc/internal/logging"
	"github.com/wsrpc/wsrpc/internal/version"
	"github.com/wsrpc/wsrpc/ws"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wsrpc-server", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		showHelp    bool
		showVersion bool
		level       string
		host        string
		port        int
		timeout     uint
	)
	fs.BoolVar(&showHelp, "help", false, "Print the help")
	fs.BoolVar(&showVersion, "version", false, "Print the version number")
	fs.StringVar(&level, "level", "info", "Set the log level (trace|debug|info|warn|err|critical|off)")
	fs.StringVar(&level, "l", "info", "Set the log level (trace|debug|info|warn|err|critical|off)")
	fs.StringVar(&host, "host", "0.0.0.0", "Set the listening host")
	fs.StringVar(&host, "h", "0.0.0.0", "Set the listening host")
	fs.IntVar(&port, "port", 8080, "Set the listening port")
	fs.IntVar(&port, "p", 8080, "Set the listening port")
	fs.UintVar(&timeout, "timeout", 60, "Set the idle-shutdown timeout, in seconds")
	fs.UintVar(&timeout, "t", 60, "Set the idle-shutdown timeout, in seconds")

	if len(args) == 0 {
		fs.SetOutput(stdout)
		fs.Usage()
		return 0
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(stderr, "Error parsing options:", err)
		fmt.Fprintln(stderr)
		fs.Usage()
		return 1
	}

	if showHelp {
		fs.SetOutput(stdout)
		fs.Usage()
		return 0
	}
	if showVersion {
		fmt.Fprintln(stdout, "wsrpc, version", version.Version)
		return 0
	}

	logger, err := logging.New(level)
	if err != nil {
		fmt.Fprintln(stderr, "Error parsing options:", err)
		return 1
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.Critical(&logger).Interface("panic", rec).Msg("uncaught panic")
			panic(rec)
		}
	}()

	srv, err := ws.New(ws.Options{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		IdleTimeout: time.Duration(timeout) * time.Second,
		LogLevel:    level,
	})
	if err != nil {
		logging.Critical(&logger).Err(err).Msg("failed to construct server")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		logging.Critical(&logger).Err(err).Msg("server exited with error")
		return 2
	}
	return 0
}
