package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/claude/trainaspower/internal/config"
	"github.com/claude/trainaspower/internal/logging"
	"github.com/claude/trainaspower/internal/mcp"
	"github.com/claude/trainaspower/internal/stryd"
	"github.com/claude/trainaspower/internal/upload"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	serverURL := flag.String("server", "", "TrainAsPower server URL; reads the local state database when empty")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("trainaspower-mcp", Version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol; logs go to stderr and the log file.
	log, closer, err := logging.Open(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	for _, w := range cfg.Warnings {
		log.Warn("config", "warning", w)
	}

	var ds mcp.DataSource
	if *serverURL != "" {
		ds = mcp.NewHTTPClient(*serverURL)
		log.Info("using remote state", "server", *serverURL)
	} else {
		state, err := upload.OpenStateDB(cfg.StateDir)
		if err != nil {
			log.Error("failed to open state database", "error", err)
			os.Exit(1)
		}
		defer state.Close()
		ds = state
		log.Info("using local state", "dir", state.Dir())
	}

	var power mcp.PaceConverter
	if cfg.Stryd.Email != "" && cfg.Stryd.Password != "" {
		strydClient := stryd.NewClient(stryd.DefaultBaseURL)
		if err := strydClient.Login(context.Background(), cfg.Stryd.Email, cfg.Stryd.Password); err != nil {
			log.Warn("stryd login failed, pace_to_power disabled", "error", err)
		} else {
			power = stryd.NewResolver(strydClient)
		}
	}

	s := mcp.New(ds, power, Version, log)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server error", "error", err)
		closer.Close()
		os.Exit(1)
	}
}
