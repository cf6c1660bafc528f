package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xADE/ade-linkd/internal/config"
	"github.com/0xADE/ade-linkd/internal/linkbase"
	"github.com/0xADE/ade-linkd/internal/runcount"
	"github.com/0xADE/ade-linkd/server"
)

func main() {
	// Initialize configuration
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}

	// Start config watcher
	if err := config.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start config watcher: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// Build the link base: registers the data dirs, replays what is
	// already on disk and keeps watching for changes
	base, err := linkbase.New(cfg, cfg.Locale(), cfg.Environments())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build link base: %v\n", err)
		os.Exit(1)
	}

	// Open run counter store
	runs, err := runcount.NewRunCount()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open run counter: %v\n", err)
		os.Exit(1)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create server
	srv, err := server.NewServer(base, runs, cfg.Locale())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(ctx)
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	fmt.Println("ade-linkd started")

	select {
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)
		cancel()
		if err := srv.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping server: %v\n", err)
		}
		base.Unref()
		runs.Close()
	case err := <-serverErr:
		if err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println("ade-linkd stopped")
}
