package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/claude/kanufit/internal/backend"
	"github.com/claude/kanufit/internal/catalog"
	"github.com/claude/kanufit/internal/config"
	kmcp "github.com/claude/kanufit/internal/mcp"
	httpserver "github.com/claude/kanufit/internal/server"
	"github.com/claude/kanufit/internal/tracker"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	catalogPath := flag.String("catalog", "", "optional YAML file replacing the built-in template catalog")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("KanuFit starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	cat := catalog.Default()
	if *catalogPath != "" {
		data, err := os.ReadFile(*catalogPath)
		if err != nil {
			log.Error("failed to read catalog", "path", *catalogPath, "error", err)
			os.Exit(1)
		}
		if cat, err = catalog.Parse(data); err != nil {
			log.Error("invalid catalog", "path", *catalogPath, "error", err)
			os.Exit(1)
		}
	}
	log.Info("catalog loaded", "templates", len(cat.Templates()))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	gw, closeGW, err := backend.Open(ctx, cfg, *migrateOnly, log)
	if err != nil {
		log.Error("failed to open storage", "driver", cfg.Storage.Driver, "error", err)
		os.Exit(1)
	}
	if gw == nil {
		log.Info("migrate-only: exiting")
		return
	}
	defer closeGW()

	loc, _ := cfg.Insights.Location()
	tr := tracker.New(gw, cat, log, tracker.Options{
		AppID:         cfg.Account.AppID,
		Account:       cfg.Account.UserID,
		ReplaceActive: cfg.Session.ReplaceActive,
		AtomicCommit:  cfg.Session.AtomicCommit,
		Location:      loc,
	})
	if err := tr.Start(ctx); err != nil {
		log.Error("failed to subscribe", "error", err)
		os.Exit(1)
	}
	defer tr.Close()

	// Create server
	srv := httpserver.New(tr, cfg.Auth.APIKey, log)
	srv.SetInsightsDefaults(cfg.Insights.WindowDays, cfg.Insights.Months)
	srv.MountMCP(server.NewStreamableHTTPServer(kmcp.New(tr, Version, log)))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	var tsServer *tsnet.Server

	if cfg.Tailscale.Enabled {
		tsServer = &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		lc, err := tsServer.LocalClient()
		if err != nil {
			log.Error("tsnet local client failed", "error", err)
			os.Exit(1)
		}
		srv.SetTailscale(lc)

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "mode", "dev (no tailscale)")
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	stop()
	log.Info("server stopped")
}
