// Package cortexerr defines the CORTEX error taxonomy: a fixed
// set of kinds that every component classifies its failures into before they
// cross a component boundary. Callers use errors.Is against the sentinel
// Kind values; components wrap with Wrap to attach kind + context.
package cortexerr

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error categories from the CORTEX error taxonomy.
type Kind string

const (
	BlockedByRule    Kind = "blocked_by_rule"
	AgentFailed      Kind = "agent_failed"
	StorageUnavail   Kind = "storage_unavailable"
	AnomalyDetected  Kind = "anomaly_detected"
	TemplateMissing  Kind = "template_missing"
	RenderError      Kind = "render_error"
	Cancelled        Kind = "cancelled"
	ConfigurationErr Kind = "configuration_error"
)

// Sentinels usable with errors.Is for coarse matching.
var (
	ErrBlockedByRule   = &cortexError{kind: BlockedByRule, msg: "blocked by rule"}
	ErrAgentFailed     = &cortexError{kind: AgentFailed, msg: "agent failed"}
	ErrStorageUnavail  = &cortexError{kind: StorageUnavail, msg: "storage unavailable"}
	ErrAnomalyDetected = &cortexError{kind: AnomalyDetected, msg: "anomaly detected"}
	ErrTemplateMissing = &cortexError{kind: TemplateMissing, msg: "template missing"}
	ErrRenderError     = &cortexError{kind: RenderError, msg: "render error"}
	ErrCancelled       = &cortexError{kind: Cancelled, msg: "cancelled"}
	ErrConfiguration   = &cortexError{kind: ConfigurationErr, msg: "configuration error"}
)

type cortexError struct {
	kind Kind
	msg  string
	// RuleID and Alternatives are populated for BlockedByRule errors so the
	// dispatcher can surface the rule name and remediation options.
	RuleID       string
	Alternatives []string
	wrapped      error
}

func (e *cortexError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.wrapped)
	}
	return e.msg
}

func (e *cortexError) Unwrap() error { return e.wrapped }

// Is makes every cortexError compare equal to the sentinel of the same Kind,
// regardless of wrapped detail, so callers can do errors.Is(err, cortexerr.ErrBlockedByRule).
func (e *cortexError) Is(target error) bool {
	other, ok := target.(*cortexError)
	if !ok {
		return false
	}
	return e.kind == other.kind
}

// Kind reports the taxonomy kind of err, or "" if err is not a cortexerr.
func KindOf(err error) Kind {
	var ce *cortexError
	if errors.As(err, &ce) {
		return ce.kind
	}
	return ""
}

// Wrap classifies cause under kind, attaching msg as context.
func Wrap(kind Kind, msg string, cause error) error {
	return &cortexError{kind: kind, msg: msg, wrapped: cause}
}

// Blocked constructs a BlockedByRule error naming the offending rule and any
// suggested safer alternatives.
func Blocked(ruleID, reason string, alternatives ...string) error {
	return &cortexError{
		kind:         BlockedByRule,
		msg:          fmt.Sprintf("rule %s: %s", ruleID, reason),
		RuleID:       ruleID,
		Alternatives: alternatives,
	}
}

// AsBlocked extracts rule id + alternatives from a BlockedByRule error.
func AsBlocked(err error) (ruleID string, alternatives []string, ok bool) {
	var ce *cortexError
	if errors.As(err, &ce) && ce.kind == BlockedByRule {
		return ce.RuleID, ce.Alternatives, true
	}
	return "", nil, false
}
