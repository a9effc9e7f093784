// Package main is the entry point of the creative generation gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nghyane/creative-mux/internal/config"
	log "github.com/nghyane/creative-mux/internal/logging"
	"github.com/nghyane/creative-mux/internal/service"
	flag "github.com/spf13/pflag"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	log.SetupBaseLogger()
}

func main() {
	var (
		configPath  string
		initConfig  bool
		strict      bool
		debug       bool
		port        int
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	flag.BoolVar(&initConfig, "init", false, "Write the default configuration to --config and exit")
	flag.BoolVar(&strict, "strict", false, "Reject unknown providers and never hand out development keys")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging")
	flag.IntVar(&port, "port", 0, "Override the listen port")
	flag.BoolVarP(&showVersion, "version", "v", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("creative-mux %s (commit %s, built %s)\n", Version, Commit, BuildDate)
		return
	}
	if initConfig {
		doInitConfig(configPath)
		return
	}

	if wd, err := os.Getwd(); err == nil {
		if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil && !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	override := func(c *config.Config) {
		if flag.CommandLine.Changed("strict") {
			c.Strict = strict
		}
		if flag.CommandLine.Changed("debug") {
			c.Debug = debug
		}
		if port > 0 {
			c.Port = port
		}
	}
	override(cfg)

	log.SetDebug(cfg.Debug)
	if err = log.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}
	log.Infof("creative-mux %s starting (strict=%t)", Version, cfg.Strict)

	watchPath := configPath
	if _, errStat := os.Stat(configPath); errStat != nil {
		log.Infof("config file %s not found, running with defaults (use --init to create)", configPath)
		watchPath = ""
	}

	svc, err := service.NewBuilder().
		WithConfig(cfg).
		WithConfigPath(watchPath).
		WithConfigOverride(override).
		Build()
	if err != nil {
		log.Fatalf("failed to build service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("service stopped with error: %v", err)
	}
	log.Info("shutdown complete")
}

func doInitConfig(configPath string) {
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists: %s\n", configPath)
		return
	}
	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			log.Fatalf("Failed to create directory: %v", err)
		}
	}
	if err := os.WriteFile(configPath, config.GenerateDefaultConfigYAML(), 0o600); err != nil {
		log.Fatalf("Failed to write config: %v", err)
	}
	fmt.Printf("Created: %s\n", configPath)
}
