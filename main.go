package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/atomiclaunch/bundler/pkg/config"
	"github.com/atomiclaunch/bundler/pkg/service"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the bundler service
	svc, err := service.NewService(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create bundler service: %v", err)
	}
	defer svc.Close()

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Start the service
	log.Println("Starting the bundler service...")
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("Bundler service failed: %v", err)
	}
}
