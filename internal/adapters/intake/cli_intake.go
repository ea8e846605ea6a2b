package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/limitwatch/limitwatch/internal/core"
	"github.com/limitwatch/limitwatch/internal/muting"
	"github.com/limitwatch/limitwatch/internal/parsers"
	"go.uber.org/zap"
)

// CliIntake classifies a single notification and prints the result
type CliIntake struct {
	service *core.ClassifierService
	sink    core.AlertSink
	muted   *muting.Checker
	logger  *zap.Logger
	userID  string
	verbose bool
}

// NewCliIntake creates a new CLI intake
func NewCliIntake(service *core.ClassifierService, sink core.AlertSink, muted *muting.Checker, logger *zap.Logger, userID string, verbose bool) (*CliIntake, error) {
	return &CliIntake{
		service: service,
		sink:    sink,
		muted:   muted,
		logger:  logger,
		userID:  userID,
		verbose: verbose,
	}, nil
}

// ProcessNotification classifies a notification and displays the results
func (f *CliIntake) ProcessNotification(ctx context.Context, userID string, n *core.Notification) (*core.ClassifiedAlert, error) {
	f.logger.Debug("Processing notification", zap.String("sender", n.Sender))

	fmt.Printf("\n=== Notification ===\n")
	fmt.Printf("From: %s\n", n.Sender)
	fmt.Printf("Subject: %s\n", n.Subject)
	fmt.Printf("Body length: %d bytes\n", len(n.Body))

	if f.verbose {
		preview := n.Body
		if len(preview) > 500 {
			preview = preview[:500] + "..."
		}
		fmt.Printf("\nBody preview:\n%s\n", preview)
	}

	fmt.Printf("\n=== Classification ===\n")
	startTime := time.Now()

	if f.muted.IsMuted(n.Sender) {
		fmt.Printf("Result: discarded (sender is muted)\n")
		return nil, nil
	}

	alert := parsers.Parse(n)
	if alert == nil {
		var err error
		alert, err = f.service.Classify(ctx, n)
		if err != nil {
			f.logger.Error("Failed to classify notification", zap.Error(err))
			fmt.Printf("Error: %v\n", err)
			return nil, err
		}
	}
	duration := time.Since(startTime)

	if alert == nil {
		fmt.Printf("Result: discarded (not actionable)\n")
		fmt.Printf("Processing time: %v\n", duration)
		return nil, nil
	}

	if f.sink != nil {
		if err := f.sink.SaveAlert(ctx, userID, alert); err != nil {
			f.logger.Warn("Failed to save alert", zap.Error(err))
		}
	}

	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Platform: %s\n", alert.Platform)
	fmt.Printf("Category: %s\n", alert.Category)
	fmt.Printf("Subcategory: %s\n", alert.Subcategory)
	fmt.Printf("Severity: %s\n", alert.Severity)
	fmt.Printf("Summary: %s\n", alert.Summary)
	if alert.Threshold != nil {
		fmt.Printf("Threshold: %d%%\n", *alert.Threshold)
	}
	if alert.ItemName != "" {
		fmt.Printf("Item: %s\n", alert.ItemName)
	}
	if alert.ErrorMessage != "" {
		fmt.Printf("Error message: %s\n", alert.ErrorMessage)
	}
	fmt.Printf("Provenance: %s\n", alert.Provenance)
	fmt.Printf("Processing time: %v\n", duration)

	return alert, nil
}

// Start is a no-op for the CLI intake
func (f *CliIntake) Start() error {
	return nil
}

// Stop is a no-op for the CLI intake
func (f *CliIntake) Stop() error {
	return nil
}
