// Package learning implements the Learning Pipeline (C12): a background
// consumer of the Event Log that extracts pattern candidates, reinforces
// existing Tier 2 patterns, records file co-modifications and corrections,
// and drives the decay/consolidation timer task.
package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cortex-ai/cortex/internal/config"
	"github.com/cortex-ai/cortex/internal/eventlog"
	"github.com/cortex-ai/cortex/internal/knowledge"
	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Pipeline consumes the Event Log on behalf of Tier 2, advancing its cursor
// only after a run's mutations have all committed.
type Pipeline struct {
	events    *eventlog.Log
	knowledge *knowledge.Store
	memoryS   *memory.Store
	cfg       config.LearningConfig

	group singleflight.Group
	cron  *cron.Cron
	log   *zap.Logger

	// lastDecayConsolidate records when decay and consolidation last ran, by
	// either the scheduled timer task or a Run. run() folds a pass in only on
	// session_complete or once an hour has passed since this time; the
	// scheduled task runs its pass without consulting it.
	lastDecayConsolidate time.Time
}

// New builds a Pipeline over events and knowledge, configured by cfg. mem
// may be nil, in which case request_handled events still advance the cursor
// but no quality scores are updated.
func New(events *eventlog.Log, kn *knowledge.Store, mem *memory.Store, cfg config.LearningConfig) *Pipeline {
	return &Pipeline{
		events:    events,
		knowledge: kn,
		memoryS:   mem,
		cfg:       cfg,
		log:       logging.For(logging.CategoryLearning),
	}
}

// ShouldRun reports whether the trigger conditions for a pipeline
// run are currently met: unprocessed event count past EventCountThreshold,
// or the oldest unprocessed event older than MaxEventAgeHours with at least
// MinPendingForAge pending.
func (p *Pipeline) ShouldRun() (bool, string, error) {
	pending, err := p.events.PendingCount(consumerName)
	if err != nil {
		return false, "", fmt.Errorf("learning: pending count: %w", err)
	}
	if pending > p.cfg.EventCountThreshold {
		return true, "event_count_threshold", nil
	}

	age, found, err := p.events.OldestPendingAge(consumerName)
	if err != nil {
		return false, "", fmt.Errorf("learning: oldest pending age: %w", err)
	}
	if found && pending >= p.cfg.MinPendingForAge && age >= time.Duration(p.cfg.MaxEventAgeHours)*time.Hour {
		return true, "max_event_age", nil
	}
	return false, "", nil
}

// Run executes one pipeline pass, single-flighted so concurrent triggers
// (a scheduler tick racing an explicit session_complete nudge) collapse into
// one actual run. The caller that triggered it gets the real Result; any
// other concurrent caller gets the same Result once it completes.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	v, err, _ := p.group.Do("run", func() (any, error) {
		return p.run(ctx)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (p *Pipeline) run(ctx context.Context) (Result, error) {
	cursor, err := p.events.Cursor(consumerName)
	if err != nil {
		return Result{}, fmt.Errorf("learning: read cursor: %w", err)
	}

	events, err := p.events.ReadAfter(cursor, defaultBatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("learning: read events: %w", err)
	}
	if len(events) == 0 {
		return Result{Skipped: true, SkipReason: "no pending events"}, nil
	}

	result := Result{}
	candidates := make(map[candidateKey]*candidateAccumulator)
	var processedIDs []int64
	sawSessionComplete := false

	for _, ev := range events {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		switch ev.Kind {
		case eventlog.KindRouteSuccess, eventlog.KindRouteFailure:
			if err := p.handleRouteEvent(ev, candidates, &result); err != nil {
				return Result{}, err
			}
		case eventlog.KindFileEdited:
			if err := p.handleFileEdited(ev, &result); err != nil {
				return Result{}, err
			}
		case eventlog.KindUserCorrected:
			if err := p.handleUserCorrected(ev, &result); err != nil {
				return Result{}, err
			}
		case eventlog.KindRequestHandled:
			p.handleRequestHandled(ev, &result)
		case eventlog.KindSessionComplete:
			sawSessionComplete = true
		}

		processedIDs = append(processedIDs, ev.ID)
	}

	for key, acc := range candidates {
		if acc.successes < p.cfg.MinSupportingExamples {
			continue
		}
		_, err := p.knowledge.LearnPattern(knowledge.PatternCandidate{
			PatternType:      key.intent,
			Title:            fmt.Sprintf("learned: %s -> %s", key.intent, key.agent),
			RoutesTo:         key.agent,
			Triggers:         acc.triggers,
			SupportingEvents: acc.successes,
		})
		if err != nil {
			return Result{}, fmt.Errorf("learning: learn pattern for %s/%s: %w", key.intent, key.agent, err)
		}
		result.PatternsLearned++
	}

	if sawSessionComplete || p.decayConsolidateDue() {
		decay, consolidate, err := p.runDecayAndConsolidate()
		if err != nil {
			return Result{}, err
		}
		result.Decay = decay
		result.Consolidate = consolidate
	}

	result.EventsProcessed = len(processedIDs)

	if err := p.events.MarkProcessed(processedIDs); err != nil {
		return Result{}, fmt.Errorf("learning: mark processed: %w", err)
	}
	if err := p.events.Advance(consumerName, processedIDs[len(processedIDs)-1]); err != nil {
		return Result{}, fmt.Errorf("learning: advance cursor: %w", err)
	}

	p.log.Info("learning pipeline run complete",
		zap.Int("events_processed", result.EventsProcessed),
		zap.Int("patterns_learned", result.PatternsLearned),
		zap.Int("patterns_reinforced", result.PatternsReinforced))

	return result, nil
}

func (p *Pipeline) handleRouteEvent(ev eventlog.Event, candidates map[candidateKey]*candidateAccumulator, result *Result) error {
	var payload routeEventPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		p.log.Warn("learning: skipping unparseable route event", zap.Int64("event_id", ev.ID), zap.Error(err))
		return nil
	}

	outcome := knowledge.OutcomeSuccess
	if ev.Kind == eventlog.KindRouteFailure {
		outcome = knowledge.OutcomeFailure
	}

	if payload.PatternID != "" {
		if _, err := p.knowledge.Reinforce(payload.PatternID, outcome); err != nil {
			p.log.Warn("learning: reinforce failed, leaving pattern as-is", zap.String("pattern_id", payload.PatternID), zap.Error(err))
			return nil
		}
		result.PatternsReinforced++
		return nil
	}

	if outcome != knowledge.OutcomeSuccess {
		return nil
	}
	key := candidateKey{intent: payload.Intent, agent: payload.Agent}
	acc, ok := candidates[key]
	if !ok {
		acc = &candidateAccumulator{}
		candidates[key] = acc
	}
	acc.successes++
	acc.addTrigger(payload.Text)
	return nil
}

func (p *Pipeline) handleFileEdited(ev eventlog.Event, result *Result) error {
	var payload fileEditedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		p.log.Warn("learning: skipping unparseable file_edited event", zap.Int64("event_id", ev.ID), zap.Error(err))
		return nil
	}
	for i := 0; i < len(payload.Files); i++ {
		for j := i + 1; j < len(payload.Files); j++ {
			if _, err := p.knowledge.RecordCoModification(payload.Files[i], payload.Files[j], knowledge.RelationParentChild); err != nil {
				return fmt.Errorf("record co-modification: %w", err)
			}
			result.RelationshipsRecorded++
		}
	}
	return nil
}

// handleRequestHandled folds one committed request into its conversation's
// quality score: a clean request observes as 10, each warning the
// protection kernel attached subtracts 3, floored at 0. Failures are
// tolerated rather than aborting the run: the conversation may have been
// evicted between commit and this pass.
func (p *Pipeline) handleRequestHandled(ev eventlog.Event, result *Result) {
	if p.memoryS == nil {
		return
	}
	var payload requestHandledPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		p.log.Warn("learning: skipping unparseable request_handled event", zap.Int64("event_id", ev.ID), zap.Error(err))
		return
	}
	if payload.ConversationID == "" {
		return
	}
	observation := 10.0 - 3.0*float64(payload.Warnings)
	if observation < 0 {
		observation = 0
	}
	if _, err := p.memoryS.AdjustQualityScore(payload.ConversationID, observation); err != nil {
		p.log.Warn("learning: quality score update skipped",
			zap.String("conversation_id", payload.ConversationID), zap.Error(err))
		return
	}
	result.QualityUpdates++
}

func (p *Pipeline) handleUserCorrected(ev eventlog.Event, result *Result) error {
	var payload userCorrectedPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		p.log.Warn("learning: skipping unparseable user_corrected event", zap.Int64("event_id", ev.ID), zap.Error(err))
		return nil
	}
	if _, err := p.knowledge.RecordCorrection(payload.Type, payload.Incorrect, payload.Correct, payload.Prevention); err != nil {
		return fmt.Errorf("record correction: %w", err)
	}
	result.CorrectionsRecorded++
	return nil
}

// decayConsolidateDue reports whether enough time has passed since the last
// decay/consolidation pass that a run triggered outside the cron schedule
// (e.g. by event-count threshold) should also fold one in, rather than
// waiting for the next scheduled tick. Conservatively bounded to once per
// hour so a burst of threshold-triggered runs doesn't hammer Tier 2.
func (p *Pipeline) decayConsolidateDue() bool {
	return time.Since(p.lastDecayConsolidate) >= time.Hour
}

func (p *Pipeline) runDecayAndConsolidate() (*DecaySummary, *ConsolidateSummary, error) {
	decayResult, err := p.knowledge.DecayPass(time.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("learning: decay pass: %w", err)
	}
	consolidateResult, err := p.knowledge.ConsolidatePass()
	if err != nil {
		return nil, nil, fmt.Errorf("learning: consolidate pass: %w", err)
	}
	p.lastDecayConsolidate = time.Now()
	return &DecaySummary{
			Scanned: decayResult.Scanned, Decayed: decayResult.Decayed,
			Deleted: decayResult.Deleted, Skipped: decayResult.Skipped,
		}, &ConsolidateSummary{
			Scanned: consolidateResult.Scanned, Consolidated: consolidateResult.Consolidated,
		}, nil
}

// Start launches the scheduled timer task driving decay/consolidation on
// cfg.DecaySchedule, plus a poll loop evaluating ShouldRun. It returns
// immediately; the returned stop function shuts both down.
func (p *Pipeline) Start(ctx context.Context, pollInterval time.Duration) (stop func(), err error) {
	c := cron.New()
	if _, err := c.AddFunc(p.cfg.DecaySchedule, func() {
		if _, _, err := p.runDecayAndConsolidate(); err != nil {
			p.log.Warn("scheduled decay/consolidate failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("learning: invalid decay schedule %q: %w", p.cfg.DecaySchedule, err)
	}
	c.Start()
	p.cron = c

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				should, reason, err := p.ShouldRun()
				if err != nil {
					p.log.Warn("learning: ShouldRun check failed", zap.Error(err))
					continue
				}
				if !should {
					continue
				}
				if _, err := p.Run(ctx); err != nil {
					p.log.Warn("learning: triggered run failed", zap.String("reason", reason), zap.Error(err))
				}
			}
		}
	}()

	return func() {
		close(done)
		c.Stop()
	}, nil
}
