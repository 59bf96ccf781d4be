package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/claude/trainaspower/internal/config"
	"github.com/claude/trainaspower/internal/logging"
	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/server"
	"github.com/claude/trainaspower/internal/stryd"
	"github.com/claude/trainaspower/internal/upload"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log, closer, err := logging.Open(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()
	log.Info("TrainAsPower server starting", "version", Version)

	for _, w := range cfg.Warnings {
		log.Warn("config", "warning", w)
	}
	if err := cfg.RequireServer(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Stryd
	strydClient := stryd.NewClient(stryd.DefaultBaseURL)
	if err := strydClient.Login(ctx, cfg.Stryd.Email, cfg.Stryd.Password); err != nil {
		log.Error("stryd login failed", "error", err)
		os.Exit(1)
	}
	power := stryd.NewResolver(strydClient)
	log.Info("stryd connected")

	// Sync state
	state, err := upload.OpenStateDB(cfg.StateDir)
	if err != nil {
		log.Error("failed to open state database", "error", err)
		os.Exit(1)
	}
	defer state.Close()

	srv := server.New(state, power, server.Options{
		Adjust:   models.PowerAdjust{Low: cfg.PowerAdjust[0], High: cfg.PowerAdjust[1]},
		PaceOnly: cfg.PaceOnly,
	}, cfg.Server.APIKey, log)

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
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

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
