package factory

import (
	"fmt"

	"github.com/limitwatch/limitwatch/internal/adapters/intake"
	"github.com/limitwatch/limitwatch/internal/config"
	"github.com/limitwatch/limitwatch/internal/core"
	"github.com/limitwatch/limitwatch/internal/muting"
	"github.com/limitwatch/limitwatch/internal/ports"
	"github.com/limitwatch/limitwatch/internal/utils"
	"go.uber.org/zap"
)

// IntakeFactory creates notification intakes based on configuration
type IntakeFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	service       *core.ClassifierService
	alertStore    AlertStore
	textProcessor *utils.TextProcessor
}

// NewIntakeFactory creates a new intake factory
func NewIntakeFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service *core.ClassifierService,
	alertStore AlertStore,
	textProcessor *utils.TextProcessor,
) *IntakeFactory {
	return &IntakeFactory{
		cfg:           cfg,
		logger:        logger,
		service:       service,
		alertStore:    alertStore,
		textProcessor: textProcessor,
	}
}

// CreateIntake creates a notification intake based on the configuration
func (f *IntakeFactory) CreateIntake() (ports.NotificationIntake, error) {
	intakeCfg := f.cfg.GetIntake()
	muted := muting.NewChecker(f.cfg.GetClassifier().MutedSenders, f.logger)

	switch intakeCfg.Type {
	case "smtp":
		return intake.NewSMTPIntake(
			f.service,
			f.alertStore,
			muted,
			f.textProcessor,
			f.logger,
			intakeCfg.ListenAddress,
			intakeCfg.Domain,
			intakeCfg.DefaultUserID,
			intakeCfg.ReadTimeout,
			intakeCfg.WriteTimeout,
			intakeCfg.MaxMessageBytes,
		), nil
	case "cli":
		return intake.NewCliIntake(
			f.service,
			f.alertStore,
			muted,
			f.logger,
			intakeCfg.DefaultUserID,
			f.cfg.GetBool("cli.verbose"),
		)
	default:
		return nil, fmt.Errorf("unsupported intake type: %s", intakeCfg.Type)
	}
}
