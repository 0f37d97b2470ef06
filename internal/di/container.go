package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-phish-guard/internal/adapters/storage"
	"github.com/mikey/llm-phish-guard/internal/config"
	"github.com/mikey/llm-phish-guard/internal/core"
	"github.com/mikey/llm-phish-guard/internal/factory"
	"github.com/mikey/llm-phish-guard/internal/logging"
	"github.com/mikey/llm-phish-guard/internal/ports"
	"github.com/mikey/llm-phish-guard/internal/utils"
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

	if err := provideCore(container); err != nil {
		return nil, err
	}

	// Register intakes
	if err := container.Provide(factory.NewIntakeFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.IntakeFactory) []ports.Intake {
		return f.CreateIntakes()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCore registers the factories and the analysis core. It expects
// *config.Config and *zap.Logger to be provided already.
func provideCore(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewStorageFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register model provider and its collaborators
	if err := container.Provide(func(f *factory.LLMFactory) (ports.ModelProvider, error) {
		return f.CreateModelProvider()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(p ports.ModelProvider) (core.Inferrer, error) {
		return p.CreateInferrer()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(p ports.ModelProvider) (core.ChatProvider, error) {
		return p.CreateChatProvider()
	}); err != nil {
		return err
	}

	// Register storage
	if err := container.Provide(func(f *factory.StorageFactory) (storage.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return err
	}

	// Register analysis client
	if err := container.Provide(func(
		cfg *config.Config,
		inferrer core.Inferrer,
		textProcessor *utils.TextProcessor,
		logger *zap.Logger,
	) (*core.AnalysisClient, error) {
		analysisCfg, err := cfg.GetAnalysis()
		if err != nil {
			return nil, err
		}
		return core.NewAnalysisClient(
			inferrer,
			textProcessor,
			logger.Named("analysis"),
			analysisCfg.MaxContentSize,
			analysisCfg.Timeout,
		), nil
	}); err != nil {
		return err
	}

	// Register history, loaded once at startup
	if err := container.Provide(func(f *factory.StorageFactory, store storage.Store, logger *zap.Logger) *core.HistoryStore {
		history := core.NewHistoryStore(store, logger.Named("history"), f.HistoryKey())
		history.Load(context.Background())
		return history
	}); err != nil {
		return err
	}

	// Register chat session
	if err := container.Provide(func(cfg *config.Config, provider core.ChatProvider, logger *zap.Logger) *core.ChatSession {
		chatCfg := cfg.GetChat()
		return core.NewChatSession(provider, core.ChatConfig{
			SystemInstruction:  chatCfg.SystemInstruction,
			Greeting:           chatCfg.Greeting,
			FallbackMessage:    chatCfg.FallbackMessage,
			MaxContextMessages: chatCfg.MaxContextMessages,
		}, logger.Named("chat"))
	}); err != nil {
		return err
	}

	// Register orchestrator
	if err := container.Provide(func(
		cfg *config.Config,
		client *core.AnalysisClient,
		history *core.HistoryStore,
		chat *core.ChatSession,
		logger *zap.Logger,
	) (*core.Orchestrator, error) {
		analysisCfg, err := cfg.GetAnalysis()
		if err != nil {
			return nil, err
		}
		return core.NewOrchestrator(client, history, chat, logger, analysisCfg.DebounceDelay), nil
	}); err != nil {
		return err
	}
	return container.Provide(func(o *core.Orchestrator) ports.AnalysisService {
		return o
	})
}
