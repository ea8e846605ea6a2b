package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"time"

	"github.com/limitwatch/limitwatch/internal/adapters/intake"
	"github.com/limitwatch/limitwatch/internal/core"
	"github.com/limitwatch/limitwatch/internal/di"
	"github.com/limitwatch/limitwatch/internal/factory"
	"github.com/limitwatch/limitwatch/internal/ports"
	"github.com/limitwatch/limitwatch/internal/utils"
	"go.uber.org/zap"
)

func main() {
	flags := di.ParseFlags()

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	notificationIntake ports.NotificationIntake,
	alertStore factory.AlertStore,
	classifier core.FallbackClassifier,
	textProcessor *utils.TextProcessor,
) error {
	defer logger.Sync()

	defer func() {
		if closer, ok := classifier.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil {
				logger.Error("Failed to close classifier client", zap.Error(err))
			}
		}
	}()

	ctx := context.Background()

	if flags.Predict != "" {
		return predict(ctx, flags, logger, alertStore)
	}

	return classify(ctx, flags, logger, notificationIntake, textProcessor)
}

// classify reads one notification email from a file or stdin and runs it
// through the intake pipeline
func classify(
	ctx context.Context,
	flags *di.CLIFlags,
	logger *zap.Logger,
	notificationIntake ports.NotificationIntake,
	textProcessor *utils.TextProcessor,
) error {
	var reader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
		}
		defer file.Close()
		reader = file
		logger.Info("Reading notification from file", zap.String("file", flags.InputFile))
	} else {
		reader = os.Stdin
		logger.Info("Reading notification from stdin")
	}

	msg, err := mail.ReadMessage(bufio.NewReader(reader))
	if err != nil {
		logger.Fatal("Failed to parse message", zap.Error(err))
	}

	n, err := intake.NotificationFromMessage(msg, "", textProcessor)
	if err != nil {
		logger.Fatal("Failed to extract notification", zap.Error(err))
	}

	if _, err := notificationIntake.ProcessNotification(ctx, flags.UserID, n); err != nil {
		logger.Fatal("Failed to process notification", zap.Error(err))
	}
	return nil
}

// predict projects a limit breach for one platform from the stored alert
// history
func predict(
	ctx context.Context,
	flags *di.CLIFlags,
	logger *zap.Logger,
	alertStore factory.AlertStore,
) error {
	platform := core.Platform(flags.Predict)
	switch platform {
	case core.PlatformZapier, core.PlatformMake, core.PlatformAirtable, core.PlatformBubble:
	default:
		return fmt.Errorf("unknown platform %q", flags.Predict)
	}

	readings, err := alertStore.ThresholdReadings(ctx, flags.UserID, platform)
	if err != nil {
		return fmt.Errorf("failed to load threshold readings: %w", err)
	}

	prediction := core.PredictOverage(platform, readings, time.Now())
	recommendation := core.Recommend(prediction, platform)

	fmt.Printf("\n=== Prediction for %s ===\n", platform)
	fmt.Printf("User: %s\n", flags.UserID)
	fmt.Printf("Data points: %d\n", prediction.DataPoints)
	fmt.Printf("Status: %s\n", prediction.Status)
	fmt.Printf("Confidence: %s\n", prediction.Confidence)
	fmt.Printf("Message: %s\n", prediction.Message)
	if prediction.VelocityPerDay != nil {
		fmt.Printf("Velocity: %.2f%%/day\n", *prediction.VelocityPerDay)
	}
	if prediction.ProjectedBreachDate != nil {
		fmt.Printf("Projected breach: %s (%d days)\n",
			prediction.ProjectedBreachDate.Format("2006-01-02"), prediction.DaysUntilBreach)
	}
	if prediction.DataPoints > 0 {
		fmt.Printf("Last reading: %d%% at %s\n",
			prediction.LastThreshold, prediction.LastReadingAt.Format("2006-01-02"))
	}

	if len(readings) >= 2 {
		trend := core.AnalyzeTrend(core.Velocities(readings))
		fmt.Printf("Trend: %s\n", trend)
	}

	seasonality := core.DetectSeasonality(readings)
	if seasonality.Seasonal {
		fmt.Printf("Seasonality: peak in %s\n", seasonality.PeakMonth)
	}

	fmt.Printf("\n=== Recommendation ===\n")
	fmt.Printf("Action: %s\n", recommendation.Action)
	fmt.Printf("%s\n", recommendation.Message)

	return nil
}
