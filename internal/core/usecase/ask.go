package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/knowledge"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/ports"
)

const (
	strictRefusalText = "No tengo evidencia suficiente en el documento cargado para responder esa pregunta."
	generalPrefixText = "Respuesta general (no proviene del documento cargado):"
)

// AskDefaults are the config-level fallbacks behind per-request options
// and runtime settings.
type AskDefaults struct {
	Provider             string
	TopK                 int
	MinScoreStrict       float64
	MinScoreGeneral      float64
	MaxContextChars      int
	LargeDocChars        int // document size that switches to the large budget
	LargeMaxContextChars int
}

func (d AskDefaults) withDefaults() AskDefaults {
	if d.TopK <= 0 {
		d.TopK = 4
	}
	if d.MinScoreStrict <= 0 {
		d.MinScoreStrict = 0.35
	}
	if d.MinScoreGeneral <= 0 {
		d.MinScoreGeneral = 0.15
	}
	if d.MaxContextChars <= 0 {
		d.MaxContextChars = 1400
	}
	if d.LargeDocChars <= 0 {
		d.LargeDocChars = 40000
	}
	if d.LargeMaxContextChars <= 0 {
		d.LargeMaxContextChars = 6000
	}
	return d
}

type AskUseCase struct {
	repo       ports.DocumentRepository
	cache      *knowledge.IndexCache
	expander   *knowledge.QueryExpander
	retriever  *knowledge.Retriever
	gate       *knowledge.EvidenceGate
	generators map[string]ports.AnswerGenerator
	settings   ports.SettingsStore
	indexerCfg knowledge.IndexerConfig
	defaults   AskDefaults
}

func NewAskUseCase(
	repo ports.DocumentRepository,
	cache *knowledge.IndexCache,
	expander *knowledge.QueryExpander,
	retriever *knowledge.Retriever,
	gate *knowledge.EvidenceGate,
	generators map[string]ports.AnswerGenerator,
	settings ports.SettingsStore,
	indexerCfg knowledge.IndexerConfig,
	defaults AskDefaults,
) *AskUseCase {
	return &AskUseCase{
		repo:       repo,
		cache:      cache,
		expander:   expander,
		retriever:  retriever,
		gate:       gate,
		generators: generators,
		settings:   settings,
		indexerCfg: indexerCfg,
		defaults:   defaults.withDefaults(),
	}
}

// Ask runs expand -> retrieve -> decide and phrases the answer. The
// generator is invoked at most once, and never for refusal, blocked or
// mismatch outcomes.
func (uc *AskUseCase) Ask(ctx context.Context, question string, mode domain.ResponseMode, opts domain.AskOptions) (*domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrMalformedQuery, "ask", errors.New("blank question"))
	}

	settings := uc.loadSettings(ctx)
	if mode == "" {
		mode = settings.DefaultMode
	}
	if mode == "" {
		mode = domain.ModeGeneral
	}

	ix, err := uc.currentIndex(ctx)
	if err != nil {
		return nil, err
	}

	eq, err := uc.expander.Expand(ix, question)
	if err != nil {
		return nil, err
	}

	topK, minScore, maxContext := uc.resolveKnobs(ix, mode, opts, settings)
	res, err := uc.retriever.Retrieve(ix, eq, topK, minScore, maxContext)
	if err != nil {
		return nil, err
	}

	decision := uc.gate.Decide(ix, eq, res, mode)

	text, err := uc.phrase(ctx, question, mode, settings, decision)
	if err != nil {
		return nil, err
	}
	return &domain.Answer{Text: text, Decision: decision}, nil
}

// currentIndex resolves the active document and its index snapshot.
// Queries arriving before the worker has warmed the cache build in-band
// under single-flight.
func (uc *AskUseCase) currentIndex(ctx context.Context) (*knowledge.Index, error) {
	if ix := uc.cache.Current(); ix != nil {
		return ix, nil
	}
	doc, err := uc.repo.GetActive(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, domain.WrapError(domain.ErrIndexNotBuilt, "ask", errors.New("no document uploaded"))
		}
		return nil, fmt.Errorf("fetch active document: %w", err)
	}
	return uc.cache.GetOrBuild(doc.Fingerprint, func() (*knowledge.Index, error) {
		return knowledge.BuildIndex(doc, uc.indexerCfg)
	})
}

func (uc *AskUseCase) loadSettings(ctx context.Context) domain.RuntimeSettings {
	if uc.settings == nil {
		return domain.RuntimeSettings{}
	}
	s, err := uc.settings.Load(ctx)
	if err != nil {
		return domain.RuntimeSettings{}
	}
	return s
}

func (uc *AskUseCase) resolveKnobs(ix *knowledge.Index, mode domain.ResponseMode, opts domain.AskOptions, settings domain.RuntimeSettings) (int, float64, int) {
	topK := uc.defaults.TopK
	if settings.TopK > 0 {
		topK = settings.TopK
	}
	if opts.TopK > 0 {
		topK = opts.TopK
	}

	minScore := uc.defaults.MinScoreGeneral
	if mode == domain.ModeStrict {
		minScore = uc.defaults.MinScoreStrict
	}
	if settings.MinScore > 0 {
		minScore = settings.MinScore
	}
	if opts.MinScore > 0 {
		minScore = opts.MinScore
	}

	maxContext := uc.defaults.MaxContextChars
	if ix.DocumentChars > uc.defaults.LargeDocChars {
		maxContext = uc.defaults.LargeMaxContextChars
	}
	if settings.MaxContextChars > 0 {
		maxContext = settings.MaxContextChars
	}
	if opts.MaxContextChars > 0 {
		maxContext = opts.MaxContextChars
	}
	return topK, minScore, maxContext
}

// phrase turns a decision into the final answer text.
func (uc *AskUseCase) phrase(ctx context.Context, question string, mode domain.ResponseMode, settings domain.RuntimeSettings, decision domain.GroundingDecision) (string, error) {
	switch decision.Mode {
	case domain.DecisionGrounded:
		gen, err := uc.pickGenerator(settings)
		if err != nil {
			return "", err
		}
		text, err := gen.GenerateGrounded(ctx, question, decision.ContextText)
		if err != nil {
			return "", fmt.Errorf("generate grounded answer: %w", err)
		}
		if decision.Notice != "" {
			text = text + "\n\n" + decision.Notice
		}
		return text, nil

	case domain.DecisionUngroundedGeneral:
		gen, err := uc.pickGenerator(settings)
		if err != nil {
			return "", err
		}
		text, err := gen.GenerateGeneral(ctx, question)
		if err != nil {
			return "", fmt.Errorf("generate general answer: %w", err)
		}
		return decision.Notice + " " + generalPrefixText + "\n\n" + text, nil

	case domain.DecisionInternalBlocked:
		if decision.Notice != "" {
			return decision.Notice, nil
		}
		return strictRefusalText, nil

	case domain.DecisionOrgMismatch:
		text := decision.Notice
		if len(decision.Citations) > 0 {
			c := decision.Citations[0]
			text += "\n\nSobre ese tema, el documento cargado establece (" + c.SourceLabel + "): " + c.Excerpt
		}
		return text, nil
	}
	return "", domain.WrapError(domain.ErrInvalidInput, "phrase answer",
		fmt.Errorf("unknown decision mode %q", decision.Mode))
}

func (uc *AskUseCase) pickGenerator(settings domain.RuntimeSettings) (ports.AnswerGenerator, error) {
	provider := uc.defaults.Provider
	if settings.Provider != "" {
		if _, ok := uc.generators[settings.Provider]; ok {
			provider = settings.Provider
		}
	}
	gen, ok := uc.generators[provider]
	if !ok {
		return nil, domain.WrapError(domain.ErrTemporary, "pick generator",
			fmt.Errorf("no generator registered for provider %q", provider))
	}
	return gen, nil
}
