package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"

	"github.com/BioHazard786/roomrelay/internal/config"
	"github.com/BioHazard786/roomrelay/internal/logging"
	"github.com/BioHazard786/roomrelay/internal/metrics"
	"github.com/BioHazard786/roomrelay/internal/server"
	"github.com/BioHazard786/roomrelay/internal/signaling"
	"github.com/BioHazard786/roomrelay/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "roomrelay:", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional
	_ = godotenv.Load()

	var opts config.ServerOptions
	fs := pflag.NewFlagSet("roomrelay", pflag.ExitOnError)
	fs.StringVarP(&opts.Addr, "addr", "a", "", "listen address (env RELAY_ADDR)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	fs.StringVar(&opts.LogFormat, "log-format", "", "text or json (env LOG_FORMAT)")
	fs.StringVar(&opts.AllowedOrigins, "allowed-origins", "", "comma-separated origins, * for any (env ALLOWED_ORIGINS)")
	fs.IntVar(&opts.MaxReceivers, "max-receivers", 0, "receivers per room (env MAX_RECEIVERS)")
	fs.Int64Var(&opts.MaxMessageBytes, "max-message-bytes", 0, "largest accepted frame (env MAX_MESSAGE_BYTES)")
	fs.Float64Var(&opts.MessagesPerSecond, "rate", 0, "messages per second per connection (env MESSAGES_PER_SECOND)")
	fs.IntVar(&opts.MessageBurst, "burst", 0, "message burst per connection (env MESSAGE_BURST)")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Println("roomrelay", version.Version)
		return nil
	}

	cfg, err := config.LoadServer(opts)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := signaling.NewHub(signaling.Config{
		MaxReceivers:      cfg.MaxReceivers,
		MaxMessageBytes:   cfg.MaxMessageBytes,
		MessagesPerSecond: cfg.MessagesPerSecond,
		MessageBurst:      cfg.MessageBurst,
		SendBuffer:        cfg.SendBuffer,
	}, logger, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewRouter(cfg, logger, hub, m),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server.start", "addr", cfg.Addr, "version", version.Version,
			"max_receivers", cfg.MaxReceivers, "origins", cfg.AllowedOrigins)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("server.shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websockets are not tracked by Shutdown; the hub closes them.
	stopHub()
	<-hubDone
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server.shutdown", "err", err)
	}
	logger.Info("server.stopped")
	return nil
}
