package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/limitwatch/limitwatch/internal/config"
	"github.com/limitwatch/limitwatch/internal/core"
	"github.com/limitwatch/limitwatch/internal/factory"
	"github.com/limitwatch/limitwatch/internal/logging"
	"github.com/limitwatch/limitwatch/internal/ports"
	"github.com/limitwatch/limitwatch/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewIntakeFactory); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register fallback classifier
	if err := container.Provide(func(f *factory.LLMFactory) (core.FallbackClassifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register pattern store
	if err := container.Provide(func(f *factory.StoreFactory) (core.PatternStore, error) {
		return f.CreatePatternStore()
	}); err != nil {
		return nil, err
	}

	// Register alert store
	if err := container.Provide(func(f *factory.StoreFactory) (factory.AlertStore, error) {
		return f.CreateAlertStore()
	}); err != nil {
		return nil, err
	}

	// Register muted senders
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) []string {
		mutedSenders := cfg.GetClassifier().MutedSenders
		if len(mutedSenders) > 0 {
			logger.Info("Loaded muted senders", zap.Strings("senders", mutedSenders))
		}
		return mutedSenders
	}); err != nil {
		return nil, err
	}

	// Register classifier service
	if err := container.Provide(core.NewClassifierService); err != nil {
		return nil, err
	}

	// Register notification intake
	if err := container.Provide(func(f *factory.IntakeFactory) (ports.NotificationIntake, error) {
		return f.CreateIntake()
	}); err != nil {
		return nil, err
	}

	return container, nil
}
