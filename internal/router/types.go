package router

// IntentKind is a coarse classification of what the caller wants, used by
// the keyword-scan stage and as the router's final fallback.
type IntentKind string

const (
	IntentPlan     IntentKind = "plan"
	IntentExecute  IntentKind = "execute"
	IntentTest     IntentKind = "test"
	IntentReview   IntentKind = "review"
	IntentFeedback IntentKind = "feedback"
	IntentHelp     IntentKind = "help"
	IntentStatus   IntentKind = "status"
	IntentAdmin    IntentKind = "admin"
	IntentTDD      IntentKind = "tdd"
	IntentGeneral  IntentKind = "general"
)

// ConfirmationLevel tells the dispatcher whether a routing decision came
// from a confident match or should be surfaced to the caller for
// confirmation before the agent runs.
type ConfirmationLevel string

const (
	ConfirmationAuto    ConfirmationLevel = "auto"
	ConfirmationSuggest ConfirmationLevel = "suggest-confirm"
)

// ContextItem is one piece of evidence folded into a context bundle, scored
// so truncation can drop the weakest items first.
type ContextItem struct {
	Kind   string // "turn", "pattern", "metric", "insight"
	Text   string
	Score  float64
	Tokens int
}

// RoutingDecision is the Router's output.
type RoutingDecision struct {
	Intent       IntentKind
	Agent        string
	Confidence   float64
	Confirmation ConfirmationLevel
	MatchedVia   string // "exact_trigger", "keyword_scan", "pattern_lookup", "fallback"
	// MatchedTrigger is the winning trigger phrase when MatchedVia is
	// "exact_trigger", carried through so the formatter can key its own
	// trigger-to-template index off the same phrase that decided routing.
	MatchedTrigger string
	// PatternID is set when MatchedVia is "pattern_lookup", so the learning
	// pipeline can reinforce the exact Tier 2 pattern that produced this
	// routing decision rather than re-deriving it from text.
	PatternID     string
	ContextBundle []ContextItem
}
