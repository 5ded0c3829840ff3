// main.go
// Application entry point: loads configuration, initializes the logger and starts the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/erilali/duet/internal/api"
	"github.com/erilali/duet/internal/config"
	"github.com/erilali/duet/internal/logger"
)

// Global logger for non-hub components
var serverLogger *logger.Logger

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logConfig := cfg.Log
	logger.InitLogger(logConfig)
	serverLogger = logger.NewLogger("server")
	serverLogger.WithFields(map[string]interface{}{
		"level":       logConfig.Level,
		"log_to_file": logConfig.LogToFile,
		"log_to_json": logConfig.LogToJSON,
		"file_path":   logConfig.FilePath,
	}).Info("Logger configuration details")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := api.StartServer(ctx, cfg, serverLogger); err != nil {
		serverLogger.Fatalf("Server error: %v", err)
	}
	serverLogger.Info("Server stopped")
}
