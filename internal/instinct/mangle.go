package instinct

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
)

// policySource is the fixed Datalog program the five default predicates
// compile down to. Each checker asserts a handful of EDB facts describing
// the proposed action, evaluates the program against a fresh store, and
// queries the one derived "_violation"/"_denied" predicate it cares about.
const policySource = `
Decl allowed_subpath(Sub)
  bound [/string].
allowed_subpath("reports").
allowed_subpath("analysis").
allowed_subpath("investigations").
allowed_subpath("planning").
allowed_subpath("implementation-guides").
allowed_subpath("summaries").
allowed_subpath("conversation-captures").

Decl doc_top_subpath(Sub)
  bound [/string].
Decl doc_write_denied(Sub)
  bound [/string].
doc_write_denied(Sub) :- doc_top_subpath(Sub), !allowed_subpath(Sub).

Decl section_present(Name)
  bound [/string].
Decl mandatory_section(Name)
  bound [/string].
mandatory_section("understanding").
mandatory_section("challenge").
mandatory_section("response").
mandatory_section("request").
mandatory_section("next_steps").

Decl missing_mandatory_section(Name)
  bound [/string].
missing_mandatory_section(Name) :- mandatory_section(Name), !section_present(Name).

Decl irrecoverable_delete(Subject)
  bound [/string].
Decl no_core_amnesia_violation(Subject)
  bound [/string].
no_core_amnesia_violation(Subject) :- irrecoverable_delete(Subject).

Decl clarity_markers(Subject, Count)
  bound [/string, /number].
Decl clarity_threshold(Subject, Count)
  bound [/string, /number].
Decl challenge_low_dor_violation(Subject)
  bound [/string].
challenge_low_dor_violation(Subject) :-
    clarity_threshold(Subject, T),
    clarity_markers(Subject, C),
    C < T.

Decl confidence_delta_bp(Subject, BP)
  bound [/string, /number].
Decl spike_limit_bp(Subject, BP)
  bound [/string, /number].
Decl supporting_events(Subject, N)
  bound [/string, /number].
Decl min_events_required(Subject, N)
  bound [/string, /number].
Decl confidence_spike_violation(Subject)
  bound [/string].
confidence_spike_violation(Subject) :-
    confidence_delta_bp(Subject, D),
    spike_limit_bp(Subject, L),
    L < D,
    supporting_events(Subject, N),
    min_events_required(Subject, M),
    N < M.
`

// policyEngine holds the one-time-compiled instinct policy: parsed and
// stratified once, then re-evaluated against a fresh fact store on every
// check so that one caller's facts never leak into another's query.
type policyEngine struct {
	programInfo *analysis.ProgramInfo
}

var (
	sharedPolicyOnce sync.Once
	sharedPolicy     *policyEngine
	sharedPolicyErr  error
)

// mangleEngine returns the process-wide compiled instinct policy, compiling
// it on first use. A policy that fails to parse or stratify is a corrupt
// build, not a runtime condition, so this panics exactly like the core
// kernel panics when its embedded constitution fails to boot.
func mangleEngine() *policyEngine {
	sharedPolicyOnce.Do(func() {
		unit, err := parse.Unit(strings.NewReader(policySource))
		if err != nil {
			sharedPolicyErr = fmt.Errorf("parse instinct policy: %w", err)
			return
		}
		info, err := analysis.AnalyzeOneUnit(unit, nil)
		if err != nil {
			sharedPolicyErr = fmt.Errorf("analyze instinct policy: %w", err)
			return
		}
		sharedPolicy = &policyEngine{programInfo: info}
	})
	if sharedPolicyErr != nil {
		panic(fmt.Sprintf("instinct: embedded Mangle policy failed to compile: %v", sharedPolicyErr))
	}
	return sharedPolicy
}

// query asserts facts into a fresh in-memory store, evaluates the policy to
// fixpoint, and returns every atom derived for predicate.
func (e *policyEngine) query(facts []ast.Atom, predicate string) ([]ast.Atom, error) {
	store := factstore.NewSimpleInMemoryStore()
	for _, f := range facts {
		store.Add(f)
	}
	if _, err := engine.EvalProgramWithStats(e.programInfo, store, engine.WithCreatedFactLimit(10000)); err != nil {
		return nil, fmt.Errorf("evaluate instinct policy: %w", err)
	}

	var results []ast.Atom
	for pred := range e.programInfo.Decls {
		if pred.Symbol != predicate {
			continue
		}
		_ = store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
			results = append(results, a)
			return nil
		})
		break
	}
	return results, nil
}

// atomString extracts arg's value assuming it is a Mangle string constant,
// returning "" for anything else.
func atomString(arg ast.BaseTerm) string {
	c, ok := arg.(ast.Constant)
	if !ok || c.Type != ast.StringType {
		return ""
	}
	return c.Symbol
}

func mustAtom(predicate string, args ...ast.BaseTerm) ast.Atom {
	return ast.NewAtom(predicate, args...)
}
