package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/limitwatch/limitwatch/internal/core"
	"github.com/limitwatch/limitwatch/internal/di"
	"github.com/limitwatch/limitwatch/internal/factory"
	"github.com/limitwatch/limitwatch/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	notificationIntake ports.NotificationIntake,
	classifier core.FallbackClassifier,
	patternStore core.PatternStore,
	alertStore factory.AlertStore,
) error {
	defer logger.Sync()

	// Start the intake
	if err := notificationIntake.Start(); err != nil {
		logger.Fatal("Failed to start intake", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the intake
	if err := notificationIntake.Stop(); err != nil {
		logger.Error("Failed to stop intake", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier client", zap.Error(err))
		}
	}
	if closer, ok := patternStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close pattern store", zap.Error(err))
		}
	}
	if closer, ok := alertStore.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close alert store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
