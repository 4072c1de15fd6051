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

	"github.com/claude/liveset/internal/commit"
	"github.com/claude/liveset/internal/config"
	"github.com/claude/liveset/internal/draft"
	livemcp "github.com/claude/liveset/internal/mcp"
	"github.com/claude/liveset/internal/notify"
	"github.com/claude/liveset/internal/remote"
	"github.com/claude/liveset/internal/server"
	"github.com/claude/liveset/internal/session"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	mcpMode := flag.Bool("mcp", false, "serve the MCP surface over stdio and exit on EOF")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("LiveSet starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Open local state store (runs migrations)
	store, err := draft.Open(cfg.Storage.Dir)
	if err != nil {
		log.Error("failed to open state store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("state store ready", "dir", cfg.Storage.Dir)

	// Remote collaborators
	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.APIKey,
		time.Duration(cfg.Remote.TimeoutSeconds)*time.Second)

	// Session engine
	notifier := notify.New()
	manager := session.NewManager(store, client, log)
	manager.Rest().SetEnabled(!cfg.Rest.Disabled)
	committer := commit.NewCommitter(client, store, store, notifier, log)

	// MCP mode: expose session state to coaching agents over stdio.
	if *mcpMode {
		if err := mcpserver.ServeStdio(livemcp.New(manager, store, store, Version, log)); err != nil {
			log.Error("mcp server error", "error", err)
			os.Exit(1)
		}
		return
	}

	// Log completion notifications for dependent surfaces
	go func() {
		for ev := range notifier.Subscribe() {
			log.Info("notification", "event", ev)
		}
	}()

	// Periodic rest resync: elapsed wall-clock time is authoritative, so the
	// countdown is re-anchored every tick in addition to UI resume events.
	resyncCtx, stopResync := context.WithCancel(context.Background())
	defer stopResync()
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				manager.Rest().Resync()
			case <-resyncCtx.Done():
				return
			}
		}
	}()

	// Create server
	srv := server.New(manager, committer, client, store, store, cfg.Auth.APIKey, log)

	// Start server — tsnet or plain HTTP
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
	log.Info("server stopped")
}
