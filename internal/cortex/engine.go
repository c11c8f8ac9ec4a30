// Package cortex is the composition root: it owns the lifecycle of every
// tier store, the protection kernel, the operation registry, the router,
// the template loader and formatter, the dispatcher, and the learning
// pipeline, wiring them together in dependency order and tearing them down
// in reverse.
package cortex

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cortex-ai/cortex/internal/agents"
	"github.com/cortex-ai/cortex/internal/config"
	"github.com/cortex-ai/cortex/internal/devcontext"
	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/eventlog"
	"github.com/cortex-ai/cortex/internal/formatter"
	"github.com/cortex-ai/cortex/internal/gitops"
	"github.com/cortex-ai/cortex/internal/instinct"
	"github.com/cortex-ai/cortex/internal/knowledge"
	"github.com/cortex-ai/cortex/internal/learning"
	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/cortex-ai/cortex/internal/protection"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/cortex-ai/cortex/internal/router"
	"github.com/cortex-ai/cortex/internal/templates"
	"github.com/cortex-ai/cortex/internal/workspace"
	"go.uber.org/zap"
)

// pollInterval is how often the learning pipeline's background loop checks
// ShouldRun between scheduled decay/consolidation ticks.
const pollInterval = 30 * time.Second

// Engine holds every long-lived component CORTEX needs to answer
// ProcessRequest calls, in construction order: Tier 0 -> Protection Kernel ->
// Event Log -> Tier 1 -> Tier 2 -> Tier 3 -> Templates -> Registry -> Router
// -> Formatter -> Dispatcher -> Learning Pipeline. The Event Log is opened
// before Tier 1, not after Tier 3, because Tier 1 and Tier 2 take it as
// their event emitter.
type Engine struct {
	cfg *config.Config

	tier0      *instinct.Tier0
	kernel     *protection.Kernel
	memoryS    *memory.Store
	knowledgeS *knowledge.Store
	devctxS    *devcontext.Store
	events     *eventlog.Log
	tmpl       *templates.Loader
	ops        *registry.Registry
	rtr        *router.Router
	render     *formatter.Formatter
	dsp        *dispatcher.Dispatcher
	pipeline   *learning.Pipeline

	stopPipeline func()
	log          *zap.Logger
}

// New builds every component of the engine in dependency order. A failure
// at any step tears down everything constructed so far before returning.
func New(cfg *config.Config) (*Engine, error) {
	if err := logging.Configure(logging.Config{Debug: cfg.Logging.Debug, JSON: cfg.Logging.JSON}); err != nil {
		return nil, fmt.Errorf("cortex: configure logging: %w", err)
	}

	e := &Engine{cfg: cfg, log: logging.For(logging.CategoryBoot)}

	checkers := instinct.DefaultCheckerRegistry()
	tier0, err := instinct.LoadDefaults(checkers)
	if err != nil {
		return nil, fmt.Errorf("cortex: load tier0: %w", err)
	}
	e.tier0 = tier0

	kernel, err := protection.New(tier0, protection.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("cortex: build protection kernel: %w", err)
	}
	e.kernel = kernel

	events, err := eventlog.Open(filepath.Join(cfg.BrainDir, "events.db"), cfg.Storage.MaxRetries)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("cortex: open event log: %w", err)
	}
	e.events = events

	memStore, err := memory.Open(
		filepath.Join(cfg.BrainDir, "tier1.db"), cfg.Storage.MaxRetries,
		memory.Config{Capacity: cfg.Memory.Tier1Capacity, ActiveWindowMinutes: cfg.Memory.ActiveWindowMinutes},
		events,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("cortex: open tier1: %w", err)
	}
	e.memoryS = memStore

	knowledgeStore, err := knowledge.Open(
		filepath.Join(cfg.BrainDir, "tier2.db"), cfg.Storage.MaxRetries,
		knowledgeConfigFrom(cfg), events,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("cortex: open tier2: %w", err)
	}
	e.knowledgeS = knowledgeStore

	devctxStore, err := devcontext.Open(filepath.Join(cfg.BrainDir, "tier3.db"), cfg.Storage.MaxRetries)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("cortex: open tier3: %w", err)
	}
	e.devctxS = devctxStore

	tmplLoader, err := templates.Load(cfg.Templates.Path, cfg.Templates.FallbackTemplateID, cfg.Templates.Watch)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("cortex: load templates: %w", err)
	}
	e.tmpl = tmplLoader

	ops := registry.New()
	if err := registerOperations(ops); err != nil {
		e.Close()
		return nil, fmt.Errorf("cortex: register operations: %w", err)
	}
	e.ops = ops

	rtr := router.New(ops, memStore, knowledgeStore, devctxStore, cfg.Router)
	e.rtr = rtr

	f := formatter.New(tmplLoader)
	e.render = f

	workspaceDir := cfg.Workspace.Dir
	if workspaceDir == "" {
		workspaceDir = cfg.BrainDir
	}
	ws := workspace.NewWriter(workspaceDir)
	var git gitops.Git
	if cfg.Workspace.GitEnabled {
		git = gitops.NewCLI(workspaceDir)
	}
	general := agents.GeneralAgent{Registry: ops, Memory: memStore, DevContext: devctxStore, Events: events, Workspace: ws, Git: git}

	dsp := dispatcher.New(rtr, kernel, f, memStore, events, general)
	registerAgents(dsp, general, ops, memStore, devctxStore, git)
	e.dsp = dsp

	pipeline := learning.New(events, knowledgeStore, memStore, cfg.Learning)
	stop, err := pipeline.Start(context.Background(), pollInterval)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("cortex: start learning pipeline: %w", err)
	}
	e.pipeline = pipeline
	e.stopPipeline = stop

	e.log.Info("cortex engine ready", zap.String("brain_dir", cfg.BrainDir))
	return e, nil
}

// knowledgeConfigFrom maps the operator-facing protection/learning tunables
// onto the narrower knowledge.Config shape Tier 2 actually needs.
func knowledgeConfigFrom(cfg *config.Config) knowledge.Config {
	return knowledge.Config{
		ConfidenceSpikeLimit:    cfg.Protection.ConfidenceSpikeLimit,
		MinSupportingEvents:     cfg.Protection.MinSupportingEvents,
		MinSupportingExamples:   cfg.Learning.MinSupportingExamples,
		ConsolidationSimilarity: cfg.Learning.ConsolidationSimilarity,
		DecayDays:               cfg.Learning.DecayDays,
	}
}

// registerOperations populates the Operation Registry with the trigger
// phrases exact-matched before any keyword scan runs. Every other intent is
// reached through the keyword scan -> "general" path instead.
func registerOperations(ops *registry.Registry) error {
	operations := []registry.Operation{
		{ID: "run_tests", DisplayName: "Run Tests", Triggers: []string{"run the tests", "run tests"}, SideEffects: []registry.SideEffectClass{registry.EffectDocumentWrite}},
		{ID: "show_status", DisplayName: "Show Status", Triggers: []string{"show status", "what is the status"}, SideEffects: []registry.SideEffectClass{registry.EffectNone}},
		{ID: "list_operations", DisplayName: "List Operations", Triggers: []string{"list operations", "what can you do"}, SideEffects: []registry.SideEffectClass{registry.EffectNone}},
	}
	for _, op := range operations {
		if err := ops.Register(op); err != nil {
			return err
		}
	}
	return nil
}

// registerAgents binds agents to the dispatcher under the operation ids the
// router can route to: the single "general" id the keyword scan and fallback
// both use, and the registry's exact-trigger operation ids. An exact-trigger
// decision carries IntentExecute, which TestAgent, StatusAgent and HelpAgent
// do not claim, so the dispatcher hands it to the general agent, which
// re-derives the intent from the text: "run the tests" reaches TestAgent and
// "show status" reaches StatusAgent the same way their keyword-scanned
// equivalents do.
func registerAgents(dsp *dispatcher.Dispatcher, general agents.GeneralAgent, ops *registry.Registry, mem *memory.Store, dev *devcontext.Store, git gitops.Git) {
	dsp.RegisterAgent("general", general)
	dsp.RegisterAgent("run_tests", agents.TestAgent{})
	dsp.RegisterAgent("show_status", agents.StatusAgent{Memory: mem, DevContext: dev, Registry: ops, Git: git})
	dsp.RegisterAgent("list_operations", agents.HelpAgent{Registry: ops})
}

// ProcessRequest is CORTEX's single inbound entry point: it runs text
// through the full Parsed -> ... -> Committed/Blocked/Failed state machine
// and reports the result as the caller-facing envelope.
func (e *Engine) ProcessRequest(ctx context.Context, text, namespace, conversationID string) (ResponseEnvelope, error) {
	deadline := time.Duration(e.cfg.RequestDeadlineMS) * time.Millisecond
	reqCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	outcome := e.dsp.Dispatch(reqCtx, dispatcher.Request{Text: text, Namespace: namespace, ConversationID: conversationID})

	env := ResponseEnvelope{
		Intent:       string(outcome.Decision.Intent),
		Agent:        outcome.Decision.Agent,
		TemplateID:   outcome.TemplateID,
		Blocked:      outcome.State == dispatcher.StateBlocked,
		BlockedRule:  outcome.BlockedRule,
		BlockedWhy:   outcome.BlockedWhy,
		Alternatives: outcome.Alternatives,
		Warnings:     outcome.Warnings,
		TraceID:      outcome.TraceID,
	}

	switch outcome.State {
	case dispatcher.StateCommitted:
		env.Text = outcome.Response
		return env, nil
	case dispatcher.StateBlocked:
		// Refusals were already rendered through the formatter, so the
		// mandatory structure survives even when nothing was executed.
		env.Text = outcome.Response
		return env, nil
	default:
		return env, outcome.Err
	}
}

// TriggerLearning forces an immediate learning-pipeline pass (e.g. in
// response to a session_complete signal from the collaborator), outside the
// pipeline's own polling cadence.
func (e *Engine) TriggerLearning(ctx context.Context) (learning.Result, error) {
	return e.pipeline.Run(ctx)
}

// Close tears down every component in reverse construction order. Safe to
// call on a partially-constructed Engine (nil fields are skipped).
func (e *Engine) Close() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if e.stopPipeline != nil {
		e.stopPipeline()
	}
	if e.tmpl != nil {
		note(e.tmpl.Close())
	}
	if e.devctxS != nil {
		note(e.devctxS.Close())
	}
	if e.knowledgeS != nil {
		note(e.knowledgeS.Close())
	}
	if e.memoryS != nil {
		note(e.memoryS.Close())
	}
	if e.events != nil {
		note(e.events.Close())
	}
	_ = logging.Sync()
	return firstErr
}
