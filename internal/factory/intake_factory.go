package factory

import (
	"github.com/mikey/llm-phish-guard/internal/adapters/httpapi"
	"github.com/mikey/llm-phish-guard/internal/adapters/intake"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"github.com/mikey/llm-phish-guard/internal/ports"
	"go.uber.org/zap"
)

// IntakeFactory creates the surfaces that feed the analysis service
type IntakeFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service ports.AnalysisService
	client  *core.AnalysisClient
	history *core.HistoryStore
}

// NewIntakeFactory creates a new intake factory
func NewIntakeFactory(
	cfg *config.Config,
	logger *zap.Logger,
	service ports.AnalysisService,
	client *core.AnalysisClient,
	history *core.HistoryStore,
) *IntakeFactory {
	return &IntakeFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		client:  client,
		history: history,
	}
}

// CreateIntakes returns the HTTP API and, when enabled, the SMTP intake
func (f *IntakeFactory) CreateIntakes() []ports.Intake {
	intakes := []ports.Intake{
		httpapi.NewServer(f.service, f.cfg.GetServer(), f.logger.Named("http")),
	}

	smtpCfg := f.cfg.GetSMTP()
	if smtpCfg.Enabled {
		intakes = append(intakes, intake.NewSMTPIntake(f.client, f.history, smtpCfg, f.logger.Named("smtp")))
	}
	return intakes
}
