package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"netplay/pkg/api"
	"netplay/pkg/config"
	"netplay/pkg/core/manager"
	"netplay/pkg/observability"
)

type connectFlags struct {
	host      string
	port      uint16
	name      string
	password  string
	spectator bool
	transport string
	listen    string
}

func connectCmd(configPath *string) *cobra.Command {
	var f connectFlags

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a host and stay in the session until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, cfg, f)
			return runConnect(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&f.host, "host", "", "Host address")
	cmd.Flags().Uint16Var(&f.port, "port", 0, "Host port")
	cmd.Flags().StringVar(&f.name, "name", "", "Player name")
	cmd.Flags().StringVar(&f.password, "password", "", "Session password")
	cmd.Flags().BoolVar(&f.spectator, "spectator", false, "Join as spectator")
	cmd.Flags().StringVar(&f.transport, "transport", "", "Carrier: tcp, quic, mem, winpipe")
	cmd.Flags().StringVar(&f.listen, "metrics-listen", "", "Serve /metrics and /status on this address")

	return cmd
}

// applyFlags overrides config values with flags the user actually set.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f connectFlags) {
	fs := cmd.Flags()
	if fs.Changed("host") {
		cfg.Session.Host = f.host
	}
	if fs.Changed("port") {
		cfg.Session.Port = f.port
	}
	if fs.Changed("name") {
		cfg.Session.PlayerName = f.name
	}
	if fs.Changed("password") {
		cfg.Session.Password = f.password
	}
	if fs.Changed("spectator") {
		cfg.Session.Spectator = f.spectator
	}
	if fs.Changed("transport") {
		cfg.Net.Transport = f.transport
	}
	if fs.Changed("metrics-listen") {
		cfg.Metrics.Listen = f.listen
	}
}

func runConnect(parent context.Context, cfg *config.Config) error {
	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg)

	mgr := manager.New(manager.Options{
		Net:     cfg.Net,
		Deps:    api.Headless(),
		Metrics: metrics,
	})

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           newRouter(mgr, reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			zap.L().Info("http: listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				zap.L().Error("http: serve", zap.Error(err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if err := mgr.Connect(ctx, cfg.Session); err != nil {
		return err
	}
	defer mgr.Disconnect()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			zap.L().Info("netplay: interrupted, leaving session")
			return nil
		case <-ticker.C:
			if !mgr.IsConnected() {
				return errors.New("connection to host lost")
			}
		}
	}
}
