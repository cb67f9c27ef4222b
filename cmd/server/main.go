package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/himanishpuri/AirplayDNA/internal/config"
	"github.com/himanishpuri/AirplayDNA/pkg/airplay"
	"github.com/himanishpuri/AirplayDNA/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to TOML config file (default ./"+config.DefaultPath+" if present)")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := cfg.Logger()
	logger.SetDefault(log)
	defer log.Sync()

	opts := append(cfg.ServiceOptions(), airplay.WithLogger(log))
	service, err := airplay.NewService(opts...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(service, &ServerConfig{
		Port:           cfg.Server.Port,
		DBPath:         cfg.Database.Path,
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}, log)
	runErr := server.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := service.Close(closeCtx); err != nil {
		log.Errorf("Shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatalf("Server failed: %v", runErr)
	}
}
