package rune

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rune-mem/rune/pkg/config"
	"github.com/rune-mem/rune/pkg/embedder"
	embopenai "github.com/rune-mem/rune/pkg/embedder/openai"
	"github.com/rune-mem/rune/pkg/embedder/localmini"
	"github.com/rune-mem/rune/pkg/envector"
	"github.com/rune-mem/rune/pkg/llm"
	"github.com/rune-mem/rune/pkg/llm/anthropic"
	"github.com/rune-mem/rune/pkg/llm/google"
	"github.com/rune-mem/rune/pkg/llm/openai"
	"github.com/rune-mem/rune/pkg/record"
	"github.com/rune-mem/rune/pkg/retriever"
	"github.com/rune-mem/rune/pkg/scribe"
	"github.com/rune-mem/rune/pkg/vault"
)

// TotalCallBudget is the per-call timeout App applies around every
// Capture/Recall invocation.
const TotalCallBudget = 60 * time.Second

// pipelineSet is one atomically-swapped generation of wired components.
// Every field is rebuilt from scratch on reload; nothing here is mutated
// in place once built, so a reader holding a *pipelineSet reference never
// observes a half-built pipeline.
type pipelineSet struct {
	scribe    *scribe.Pipeline
	retriever *retriever.Pipeline
	vault     *vault.Adapter
	envector  *envector.Adapter
	envectorCfg envector.Config
	embedder  embedder.Provider
}

func (p *pipelineSet) Close() {
	if p.vault != nil {
		_ = p.vault.Close()
	}
	if p.envector != nil {
		_ = p.envector.Close()
	}
	if p.embedder != nil {
		_ = p.embedder.Close()
	}
}

// App owns the current pipeline set and the Config Store, and provides
// the atomic reload the spec requires: reload_pipelines tears down and
// rebuilds every adapter and pipeline from a fresh config read, and
// either the swap completes wholesale or the prior pipeline set is left
// serving traffic untouched.
type App struct {
	configStore *config.Store
	logger      zerolog.Logger

	mu        sync.RWMutex
	pipelines *pipelineSet

	inFlight sync.WaitGroup

	demotionMu        sync.Mutex
	consecutiveDenials int
}

// NewApp constructs an App bound to the given Config Store. It does not
// build pipelines yet; call Reload to do the first build.
func NewApp(store *config.Store, logger zerolog.Logger) *App {
	return &App{configStore: store, logger: logger.With().Str("component", "app").Logger()}
}

// IsActive reports the current config's state gate.
func (a *App) IsActive() (bool, error) {
	return a.configStore.IsActive()
}

// Reload re-reads config, tears down the current pipeline set, and builds
// a new one, draining in-flight tool calls first (bounded wait, then
// proceeding anyway — a tool call holding a stale *pipelineSet reference
// still completes against it safely since nothing in pipelineSet mutates
// in place).
func (a *App) Reload(ctx context.Context) error {
	cfg, err := a.configStore.Load()
	if err != nil {
		return NewError("Reload", ErrInternal, err)
	}

	drained := make(chan struct{})
	go func() {
		a.inFlight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(5 * time.Second):
		a.logger.Warn().Msg("reload: in-flight calls did not drain within bound, proceeding")
	}

	next, err := a.build(cfg)
	if err != nil {
		a.logger.Error().Err(err).Msg("reload: build failed, keeping prior pipeline set")
		return NewError("Reload", ErrInternal, err)
	}

	a.mu.Lock()
	prev := a.pipelines
	a.pipelines = next
	a.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return nil
}

func (a *App) build(cfg *config.Config) (*pipelineSet, error) {
	llmCfg := cfg.LLM.Resolve()

	primary := a.buildLLMProvider(llmCfg.Provider, llmCfg)
	tier2Provider := primary
	if llmCfg.Tier2Provider != llmCfg.Provider {
		tier2Provider = a.buildLLMProvider(llmCfg.Tier2Provider, llmCfg)
	}

	emb, err := a.buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}

	envectorTransport := envector.NewHTTPTransport(envector.HTTPConfig{
		BaseURL: cfg.EnVector.Endpoint,
		APIKey:  cfg.EnVector.APIKey,
	})
	envectorAdapter := envector.NewAdapter(envectorTransport, cfg.EnVector.Index, envector.Config{})

	vaultAdapter, err := vault.Dial(vault.Config{
		Endpoint: cfg.Vault.Endpoint,
		Token:    cfg.Vault.Token,
	})
	if err != nil {
		return nil, err
	}

	minter, err := record.NewIDMinter(1)
	if err != nil {
		return nil, err
	}

	tier2 := scribe.NewPolicyFilter(tier2Provider, nil)
	tier3 := scribe.NewExtractor(primary, minter)

	scribePipeline := scribe.NewPipeline(emb, envectorAdapter, envector.Config{}, tier2, tier3, scribe.Config{
		Tier1Capacity: 64,
		Tier2Enabled:  cfg.Scribe.Tier2Enabled,
		Tier1: scribe.Tier1Config{
			DuplicateThreshold:   0.95,
			SimilarityThreshold:  cfg.Scribe.SimilarityThreshold,
			AutoCaptureThreshold: cfg.Scribe.AutoCaptureThreshold,
		},
	})

	planner := retriever.NewQueryPlanner(primary)
	orchestrator := retriever.NewOrchestrator(emb, envectorAdapter, envector.Config{}, vaultAdapter, cfg.EnVector.Index)
	synthesizer := retriever.NewSynthesizer(primary)
	retrieverPipeline := retriever.NewPipeline(planner, orchestrator, synthesizer, retriever.Config{
		ConfidenceThreshold: cfg.Retriever.ConfidenceThreshold,
	})

	return &pipelineSet{
		scribe:      scribePipeline,
		retriever:   retrieverPipeline,
		vault:       vaultAdapter,
		envector:    envectorAdapter,
		envectorCfg: envector.Config{},
		embedder:    emb,
	}, nil
}

func (a *App) buildLLMProvider(name string, cfg config.LLMConfig) llm.Provider {
	switch name {
	case "anthropic":
		return anthropic.NewClient(&anthropic.Config{APIKey: cfg.AnthropicAPIKey, Model: cfg.AnthropicModel})
	case "openai":
		return openai.NewClient(&openai.Config{APIKey: cfg.OpenAIAPIKey, Model: cfg.OpenAIModel})
	case "google":
		client, err := google.NewClient(context.Background(), &google.Config{APIKey: cfg.GoogleAPIKey, Model: cfg.GoogleModel})
		if err != nil {
			a.logger.Warn().Err(err).Msg("google provider construction failed, falling back to unavailable anthropic client")
			return anthropic.NewClient(&anthropic.Config{})
		}
		return client
	default:
		return anthropic.NewClient(&anthropic.Config{})
	}
}

func (a *App) buildEmbedder(cfg config.EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "localmini":
		return localmini.NewClient(&localmini.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	default:
		return embopenai.NewClient(&embopenai.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	}
}

func (a *App) snapshot() (*pipelineSet, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pipelines, a.pipelines != nil
}

// Capture runs the capture contract for one utterance, enforcing the
// dormant gate and the total per-call budget before delegating to the
// Scribe pipeline.
func (a *App) Capture(ctx context.Context, text string, hints scribe.Hints) (scribe.Outcome, error) {
	active, err := a.IsActive()
	if err != nil {
		return scribe.Outcome{}, NewError("Capture", ErrInternal, err)
	}
	if !active {
		return scribe.Outcome{}, NewError("Capture", ErrDormant, nil)
	}
	if strings.TrimSpace(text) == "" {
		return scribe.Outcome{Captured: false, Reason: "empty"}, nil
	}

	pipelines, ok := a.snapshot()
	if !ok {
		return scribe.Outcome{}, NewError("Capture", ErrInternal, errors.New("pipelines not built"))
	}

	a.inFlight.Add(1)
	defer a.inFlight.Done()

	callCtx, cancel := context.WithTimeout(ctx, TotalCallBudget)
	defer cancel()

	outcome, err := pipelines.scribe.Capture(callCtx, text, hints)
	if err != nil {
		return scribe.Outcome{}, a.classify("Capture", callCtx, err)
	}
	return outcome, nil
}

// Recall runs the recall contract for one question.
func (a *App) Recall(ctx context.Context, query string, topk int) (retriever.Result, error) {
	active, err := a.IsActive()
	if err != nil {
		return retriever.Result{}, NewError("Recall", ErrInternal, err)
	}
	if !active {
		return retriever.Result{}, NewError("Recall", ErrDormant, nil)
	}
	if topk == 0 || topk < 0 || topk > retriever.MaxTopK {
		return retriever.Result{}, NewError("Recall", ErrBadArgument, errors.New("topk out of range"))
	}

	pipelines, ok := a.snapshot()
	if !ok {
		return retriever.Result{}, NewError("Recall", ErrInternal, errors.New("pipelines not built"))
	}

	a.inFlight.Add(1)
	defer a.inFlight.Done()

	callCtx, cancel := context.WithTimeout(ctx, TotalCallBudget)
	defer cancel()

	result, err := pipelines.retriever.Recall(callCtx, query, retriever.NormalizeTopK(topk))
	if err != nil {
		return retriever.Result{}, a.classify("Recall", callCtx, err)
	}
	a.resetDenialStreak()
	return result, nil
}

// VaultStatus reports Vault's self-described reachability and security
// mode.
func (a *App) VaultStatus(ctx context.Context) (vault.Status, error) {
	pipelines, ok := a.snapshot()
	if !ok {
		return vault.Status{}, NewError("VaultStatus", ErrInternal, errors.New("pipelines not built"))
	}
	status, err := pipelines.vault.Status(ctx)
	if err != nil {
		return vault.Status{}, a.classify("VaultStatus", ctx, err)
	}
	return status, nil
}

// classify maps an adapter-layer error into a RuneError, and tracks
// consecutive Vault PolicyDenied failures: a fatal, categorical run of
// denials across calls demotes the plugin to dormant and persists that
// change, per the state-gate lifecycle.
func (a *App) classify(op string, ctx context.Context, err error) error {
	var pd *vault.PolicyDenied
	if errors.As(err, &pd) {
		a.recordDenial()
		return NewError(op, ErrPolicyDenied, err)
	}
	a.resetDenialStreak()

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(op, ErrTimeout, err)
	}
	if errors.Is(err, envector.ErrStoreUnavailable) {
		return NewError(op, ErrStoreUnavailable, err)
	}
	if errors.Is(err, vault.ErrUnavailable) {
		return NewError(op, ErrVaultUnavailable, err)
	}
	return NewError(op, ErrInternal, err)
}

const denialStreakThreshold = 5

func (a *App) recordDenial() {
	a.demotionMu.Lock()
	a.consecutiveDenials++
	streak := a.consecutiveDenials
	a.demotionMu.Unlock()

	if streak >= denialStreakThreshold {
		if err := a.configStore.SetState(config.StateDormant); err != nil {
			a.logger.Error().Err(err).Msg("failed to persist auto-demotion to dormant")
			return
		}
		a.logger.Warn().Int("consecutive_denials", streak).Msg("demoted to dormant after repeated Vault PolicyDenied")
		a.demotionMu.Lock()
		a.consecutiveDenials = 0
		a.demotionMu.Unlock()
	}
}

func (a *App) resetDenialStreak() {
	a.demotionMu.Lock()
	a.consecutiveDenials = 0
	a.demotionMu.Unlock()
}

// Close tears down the current pipeline set.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pipelines != nil {
		a.pipelines.Close()
		a.pipelines = nil
	}
}
