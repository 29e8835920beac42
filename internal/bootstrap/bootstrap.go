package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/grounded-policy-assistant/internal/config"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/knowledge"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/ports"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/usecase"
	"github.com/kirillkom/grounded-policy-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/grounded-policy-assistant/internal/infrastructure/llm/openaicompat"
	"github.com/kirillkom/grounded-policy-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/grounded-policy-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/grounded-policy-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/grounded-policy-assistant/internal/infrastructure/settings"
)

type App struct {
	Config config.Config

	Queue    ports.MessageQueue
	Repo     ports.DocumentRepository
	Settings ports.SettingsStore
	Cache    *knowledge.IndexCache

	UploadUC  ports.PolicyUploader
	StatusUC  ports.PolicyReader
	AskUC     ports.PolicyAnswerer
	RebuildUC ports.IndexRebuilder

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), slog.Default())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	settingsStore := settings.NewFileStore(cfg.SettingsPath)
	cache := knowledge.NewIndexCache()

	indexerCfg := knowledge.IndexerConfig{
		ChunkTargetChars: cfg.ChunkTargetChars,
		ChunkMaxChars:    cfg.ChunkMaxChars,
		MaxDocumentChars: cfg.MaxDocumentChars,
	}
	expander := knowledge.NewQueryExpander(knowledge.ExpanderConfig{}, nil)
	retriever := knowledge.NewRetriever(knowledge.RetrieverConfig{})
	gate := knowledge.NewEvidenceGate(knowledge.GateConfig{}, knowledge.NewHeuristicDetector())

	generators := map[string]ports.AnswerGenerator{
		"ollama": ollama.NewGeneratorWithExecutor(
			ollama.New(cfg.OllamaURL, cfg.OllamaGenModel),
			executor,
		),
		"openaicompat": openaicompat.NewGeneratorWithExecutor(
			openaicompat.New(cfg.OpenAICompatBaseURL, cfg.OpenAICompatAPIKey, cfg.OpenAICompatModelID),
			executor,
		),
	}

	uploadUC := usecase.NewUploadPolicyUseCase(repo, queue, cache, indexerCfg)
	statusUC := usecase.NewPolicyStatusUseCase(repo)
	rebuildUC := usecase.NewRebuildIndexUseCase(repo, cache, indexerCfg)
	askUC := usecase.NewAskUseCase(
		repo, cache, expander, retriever, gate,
		generators, settingsStore, indexerCfg,
		usecase.AskDefaults{
			Provider:        cfg.LLMProvider,
			TopK:            cfg.AskTopK,
			MinScoreStrict:  cfg.AskMinScoreStrict,
			MinScoreGeneral: cfg.AskMinScoreGeneral,
			MaxContextChars: cfg.AskMaxContextChars,
		},
	)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Repo:     repo,
		Settings: settingsStore,
		Cache:    cache,

		UploadUC:  uploadUC,
		StatusUC:  statusUC,
		AskUC:     askUC,
		RebuildUC: rebuildUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
