package learning

// consumerName is the eventlog consumer identity the pipeline advances its
// cursor under. Fixed rather than configurable: one process runs exactly one
// learning pipeline against a given Event Log.
const consumerName = "learning_pipeline"

// defaultBatchSize bounds how many events a single run pulls off the log, so
// a very large backlog is drained over several runs instead of one
// unbounded transaction.
const defaultBatchSize = 500

// routeEventPayload is the shape emitted by the dispatcher for
// route_success/route_failure events (see dispatcher.emitRouteOutcome).
type routeEventPayload struct {
	PatternID string `json:"pattern_id"`
	Intent    string `json:"intent"`
	Agent     string `json:"agent"`
	Text      string `json:"text"`
	Via       string `json:"via"`
}

// fileEditedPayload is the shape agents emit on KindFileEdited: the set of
// files touched together by one operation, so co-modification can be
// recorded for every pair.
type fileEditedPayload struct {
	Files []string `json:"files"`
}

// requestHandledPayload is the shape the dispatcher commits on
// KindRequestHandled (see dispatcher.commit).
type requestHandledPayload struct {
	ConversationID string `json:"conversation_id"`
	Warnings       int    `json:"warnings"`
}

// userCorrectedPayload is the shape agents emit on KindUserCorrected.
type userCorrectedPayload struct {
	Type       string `json:"type"`
	Incorrect  string `json:"incorrect"`
	Correct    string `json:"correct"`
	Prevention string `json:"prevention"`
}

// candidateKey groups route events toward the same prospective pattern:
// same routed intent and same agent, routed by something other than an
// existing pattern match.
type candidateKey struct {
	intent string
	agent  string
}

// candidateAccumulator tracks supporting examples for a not-yet-learned
// pattern across one run. Triggers are capped so a single run can't build an
// unbounded trigger list from a noisy backlog.
type candidateAccumulator struct {
	successes int
	triggers  []string
}

const maxTriggersPerCandidate = 8

func (c *candidateAccumulator) addTrigger(phrase string) {
	if phrase == "" {
		return
	}
	for _, t := range c.triggers {
		if t == phrase {
			return
		}
	}
	if len(c.triggers) >= maxTriggersPerCandidate {
		return
	}
	c.triggers = append(c.triggers, phrase)
}

// Result summarizes one pipeline run, returned to callers and used in tests.
type Result struct {
	EventsProcessed       int
	PatternsLearned       int
	PatternsReinforced    int
	RelationshipsRecorded int
	CorrectionsRecorded   int
	QualityUpdates        int
	Decay                 *DecaySummary
	Consolidate           *ConsolidateSummary
	Skipped               bool
	SkipReason            string
}

// DecaySummary mirrors knowledge.DecayResult so callers outside the
// knowledge package don't need to import it just to read a learning.Result.
type DecaySummary struct {
	Scanned, Decayed, Deleted, Skipped int
}

// ConsolidateSummary mirrors knowledge.ConsolidateResult.
type ConsolidateSummary struct {
	Scanned, Consolidated int
}
