// Package registry implements the Operation Registry: the single table the
// Intent Router and Agent Dispatcher consult to resolve trigger phrases and
// operation IDs to agent constructors. Adding an operation means registering
// it here — no other package branches on operation identity.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cortex-ai/cortex/internal/cortexerr"
)

// AgentConstructor builds a fresh Agent instance for one dispatched request.
// The concrete Agent type lives in the dispatcher package; registry only
// needs to be able to construct one.
type AgentConstructor func() Agent

// Agent is the minimal capability surface the registry needs from an agent
// to decide routing eligibility. The dispatcher package defines the fuller
// execution contract and satisfies this interface structurally.
type Agent interface {
	CanHandle(intent string) bool
}

// SideEffectClass enumerates the declared categories of side effect an
// operation may produce, used by the protection kernel to decide which
// pre-emit predicates apply.
type SideEffectClass string

const (
	EffectDocumentWrite SideEffectClass = "document_write"
	EffectTierMutation  SideEffectClass = "tier_mutation"
	EffectExternalCall  SideEffectClass = "external_call"
	EffectNone          SideEffectClass = "none"
)

// Operation is one registered entry: a display name, the trigger phrases
// that route to it, required capabilities, how to construct its agent, and
// its declared side-effect classes.
type Operation struct {
	ID                   string
	DisplayName          string
	Triggers             []string
	RequiredCapabilities []string
	Construct            AgentConstructor
	SideEffects          []SideEffectClass
	Priority             int
}

// Registry is the read-only-after-startup operation table.
type Registry struct {
	byID      map[string]Operation
	byTrigger map[string]string // lowercased trigger phrase -> operation ID

	// usage counts successful trigger resolutions per operation, for the
	// ListByUsage diagnostics surface. Guarded separately so the table
	// itself stays lock-free after startup.
	usageMu sync.Mutex
	usage   map[string]int
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{
		byID:      make(map[string]Operation),
		byTrigger: make(map[string]string),
		usage:     make(map[string]int),
	}
}

// Register adds op to the table. Registration order does not affect the
// resulting table — two calls with disjoint trigger sets commute — but a
// trigger phrase claimed by two operations is a fatal configuration error.
func (r *Registry) Register(op Operation) error {
	if op.ID == "" {
		return cortexerr.Wrap(cortexerr.ConfigurationErr, "operation must have a non-empty ID", nil)
	}
	if _, exists := r.byID[op.ID]; exists {
		return cortexerr.Wrap(cortexerr.ConfigurationErr, fmt.Sprintf("operation %q already registered", op.ID), nil)
	}
	for _, trig := range op.Triggers {
		if existingID, claimed := r.byTrigger[strings.ToLower(trig)]; claimed {
			return cortexerr.Wrap(cortexerr.ConfigurationErr,
				fmt.Sprintf("trigger %q claimed by both %q and %q", trig, existingID, op.ID), nil)
		}
	}
	r.byID[op.ID] = op
	for _, trig := range op.Triggers {
		r.byTrigger[strings.ToLower(trig)] = op.ID
	}
	return nil
}

// Get returns the operation registered under id.
func (r *Registry) Get(id string) (Operation, bool) {
	op, ok := r.byID[id]
	return op, ok
}

// MatchTrigger returns the operation whose trigger phrase is the longest
// match contained in text, ties broken by declared priority (higher wins).
// Matching is case-insensitive substring containment: "Run The Tests"
// resolves the same operation as "run the tests".
func (r *Registry) MatchTrigger(text string) (Operation, bool) {
	lower := strings.ToLower(text)
	var candidates []Operation
	for trig, id := range r.byTrigger {
		if containsPhrase(lower, trig) {
			candidates = append(candidates, r.byID[id])
		}
	}
	if len(candidates) == 0 {
		return Operation{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		li, lj := longestTrigger(candidates[i], lower), longestTrigger(candidates[j], lower)
		if li != lj {
			return li > lj
		}
		return candidates[i].Priority > candidates[j].Priority
	})
	r.recordUse(candidates[0].ID)
	return candidates[0], true
}

func (r *Registry) recordUse(id string) {
	r.usageMu.Lock()
	r.usage[id]++
	r.usageMu.Unlock()
}

// MatchTriggerPhrase behaves like MatchTrigger but also returns the winning
// trigger phrase (as registered, original case), so callers can key a
// secondary index (e.g. the template loader's trigger map) off the same
// phrase that decided routing.
func (r *Registry) MatchTriggerPhrase(text string) (Operation, string, bool) {
	op, ok := r.MatchTrigger(text)
	if !ok {
		return Operation{}, "", false
	}
	lower := strings.ToLower(text)
	var phrase string
	best := 0
	for _, trig := range op.Triggers {
		if containsPhrase(lower, strings.ToLower(trig)) && len(trig) > best {
			best = len(trig)
			phrase = trig
		}
	}
	return op, phrase, true
}

// longestTrigger scores op against already-lowercased text.
func longestTrigger(op Operation, lower string) int {
	best := 0
	for _, trig := range op.Triggers {
		if containsPhrase(lower, strings.ToLower(trig)) && len(trig) > best {
			best = len(trig)
		}
	}
	return best
}

func containsPhrase(text, phrase string) bool {
	return phrase != "" && strings.Contains(text, phrase)
}

// All returns every registered operation, for diagnostics and startup logs.
func (r *Registry) All() []Operation {
	out := make([]Operation, 0, len(r.byID))
	for _, op := range r.byID {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UsageStat pairs an operation with how many requests its triggers have
// resolved since startup.
type UsageStat struct {
	ID          string
	DisplayName string
	Count       int
}

// ListByUsage returns every registered operation ordered by how often its
// triggers matched, most-used first, ties broken by ID. Counts reset with
// the process; they are diagnostics, not persisted state.
func (r *Registry) ListByUsage() []UsageStat {
	r.usageMu.Lock()
	counts := make(map[string]int, len(r.usage))
	for id, n := range r.usage {
		counts[id] = n
	}
	r.usageMu.Unlock()

	out := make([]UsageStat, 0, len(r.byID))
	for id, op := range r.byID {
		out = append(out, UsageStat{ID: id, DisplayName: op.DisplayName, Count: counts[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	return out
}
