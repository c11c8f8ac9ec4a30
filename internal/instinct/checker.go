package instinct

// Context describes a proposed action for a predicate to evaluate. It is
// deliberately a plain data record (not an interface) so that Check is pure:
// given the same Context, a Checker must yield the same verdict every time.
type Context struct {
	// Kind identifies what is being evaluated, e.g. "document_write",
	// "response_render", "tier_delete", "knowledge_update", "plan_request".
	Kind string
	// Path is a filesystem destination, when Kind concerns a write.
	Path string
	// Text is free-form text relevant to the check (a request, a rendered
	// response body, ...).
	Text string
	// ConfidenceDelta and SupportingEvents are populated for knowledge-graph
	// update checks (confidence_spike_guard).
	ConfidenceDelta  float64
	SupportingEvents int
	// ClarityMarkers counts scope-clarifying signals found in a request
	// (challenge_low_dor).
	ClarityMarkers int
	// Sections lists the section markers present in a rendered response
	// (requires_mandatory_format).
	Sections []string
	// Irrecoverable marks an operation that would delete Tier 1/Tier 2 data
	// without a remediation path (no_core_amnesia).
	Irrecoverable bool
	// Fields carries any additional predicate-specific data.
	Fields map[string]any
}

// Verdict is the pure result of evaluating one Rule against one Context.
type Verdict struct {
	RuleID       string
	Severity     Severity
	Pass         bool
	Reason       string
	Alternatives []string
}

// Checker is a named, pure predicate function: same Context in, same Verdict
// out. Registered checkers are resolved by Rule.CheckerRef.
type Checker func(rule Rule, ctx Context) Verdict

// pass is a convenience constructor for a passing verdict.
func pass(rule Rule) Verdict {
	return Verdict{RuleID: rule.ID, Severity: rule.Severity, Pass: true}
}

// fail is a convenience constructor for a failing verdict.
func fail(rule Rule, reason string, alternatives ...string) Verdict {
	return Verdict{RuleID: rule.ID, Severity: rule.Severity, Pass: false, Reason: reason, Alternatives: alternatives}
}
