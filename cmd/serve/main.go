// Command serve is the thin CLI launcher from spec §6 ("interface
// only" in the sense that it owns no HTTP, routing, or engine logic of
// its own — it only parses flags/environment and calls into
// pkg/engine). Grounded on spf13/cobra, the CLI library the rest of
// the retrieval pack reaches for.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/junhyeong9812/serverarch/pkg/bufpool"
	"github.com/junhyeong9812/serverarch/pkg/engine"
	"github.com/junhyeong9812/serverarch/pkg/metrics"
	"github.com/junhyeong9812/serverarch/pkg/router"
)

// envListenAddr overrides the derived "host:port" listen address, per
// spec §6's "honors a single variable for listen address override."
const envListenAddr = "SERVERARCH_LISTEN_ADDR"

var errInvalidArgs = errors.New("serve: invalid arguments")

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses args with cobra and returns the process exit code spec §6
// specifies: 0 normal shutdown, 1 bind/listen failure, 2 invalid
// arguments.
func run(args []string) int {
	var threads int
	exitCode := 0

	cmd := &cobra.Command{
		Use:           "serve <engine> <port> [backlog]",
		Short:         "Run the HTTP server under one of its three concurrency engines",
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, cmdArgs []string) error {
			code, err := serve(cmdArgs, threads)
			exitCode = code
			return err
		},
	}
	cmd.Flags().IntVar(&threads, "threads", 0, "worker pool size override (threaded engine only)")
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitCode == 0 {
			exitCode = 2
		}
		return exitCode
	}
	return exitCode
}

func serve(args []string, threads int) (int, error) {
	kind := args[0]
	if kind != "threaded" && kind != "hybrid" && kind != "eventloop" {
		return 2, fmt.Errorf("%w: engine must be one of threaded, hybrid, eventloop, got %q", errInvalidArgs, kind)
	}

	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 65535 {
		return 2, fmt.Errorf("%w: port must be a valid TCP port, got %q", errInvalidArgs, args[1])
	}

	backlog := 1024
	if len(args) == 3 {
		backlog, err = strconv.Atoi(args[2])
		if err != nil || backlog <= 0 {
			return 2, fmt.Errorf("%w: backlog must be a positive integer, got %q", errInvalidArgs, args[2])
		}
	}

	addr := fmt.Sprintf(":%d", port)
	if envAddr := os.Getenv(envListenAddr); envAddr != "" {
		addr = envAddr
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return 1, err
	}
	defer logger.Sync()

	r := router.New()
	m := metrics.New()
	registry := prometheus.NewRegistry()

	cfg := engine.Config{
		Name:       "serverarch",
		ListenAddr: addr,
		Backlog:    backlog,
		Router:     r,
		Logger:     logger,
		Metrics:    m,
		Registerer: registry,
	}
	if threads > 0 {
		cfg.ThreadPoolMax = threads
	}

	srv, err := engine.New(kind, cfg)
	if err != nil {
		return 2, err
	}

	var refresh func()
	if mr, ok := srv.(engine.MetricsRefresher); ok {
		refresh = mr.RefreshMetrics
	}
	engine.RegisterBuiltinRoutes(r, m, engine.InfoFields{
		ServerName:      cfg.Name,
		Version:         "1.0",
		Engine:          kind,
		Port:            port,
		Backlog:         backlog,
		ReadBufferSize:  bufpool.ReadBufferSize,
		WriteBufferSize: bufpool.WriteBufferSize,
	}, refresh, registry)

	if err := srv.Start(); err != nil {
		logger.Error("serve: failed to start", zap.Error(err))
		return 1, err
	}
	logger.Info("serve: listening", zap.String("engine", kind), zap.Stringer("addr", srv.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		logger.Error("serve: shutdown error", zap.Error(err))
		return 1, err
	}
	return 0, nil
}
