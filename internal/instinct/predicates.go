package instinct

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/google/mangle/ast"
)

// mandatorySections is the stable set of section markers every rendered
// response must contain, in the order they should appear.
var mandatorySections = []string{
	"understanding",
	"challenge",
	"response",
	"request",
	"next_steps",
}

// topSubpath returns the first path segment of dir, the unit the policy's
// allowed_subpath facts are expressed in.
func topSubpath(dir string) string {
	if dir == "" || dir == "." {
		return dir
	}
	if idx := strings.IndexByte(dir, '/'); idx >= 0 {
		return dir[:idx]
	}
	return dir
}

// NoRootDocs blocks document writes whose destination is the repository
// root instead of one of the categorised subpaths. The categorisation
// itself is a Datalog membership check against the policy's
// allowed_subpath facts; only the path parsing happens in Go.
func NoRootDocs(rule Rule, ctx Context) Verdict {
	if ctx.Kind != "document_write" {
		return pass(rule)
	}
	clean := filepath.ToSlash(filepath.Clean(ctx.Path))
	if !strings.HasSuffix(clean, ".md") {
		return pass(rule)
	}
	dir := filepath.ToSlash(filepath.Dir(clean))
	sub := topSubpath(dir)

	facts := []ast.Atom{mustAtom("doc_top_subpath", ast.String(sub))}
	denied, err := mangleEngine().query(facts, "doc_write_denied")
	if err != nil || len(denied) > 0 {
		return fail(rule,
			"document writes must use a categorised subpath, not the repository root",
			"reports/", "analysis/", "investigations/", "planning/",
			"implementation-guides/", "summaries/", "conversation-captures/")
	}
	return pass(rule)
}

// RequiresMandatoryFormat blocks a rendered response that is missing one of
// the five mandatory sections, derived as missing_mandatory_section in the
// policy: every mandatory_section not matched by a section_present fact.
func RequiresMandatoryFormat(rule Rule, ctx Context) Verdict {
	if ctx.Kind != "response_render" {
		return pass(rule)
	}
	facts := make([]ast.Atom, 0, len(ctx.Sections))
	for _, s := range ctx.Sections {
		facts = append(facts, mustAtom("section_present", ast.String(s)))
	}
	missingAtoms, err := mangleEngine().query(facts, "missing_mandatory_section")
	if err != nil {
		return fail(rule, "response is missing mandatory sections: policy evaluation error")
	}

	missingSet := make(map[string]bool, len(missingAtoms))
	for _, a := range missingAtoms {
		if len(a.Args) == 1 {
			missingSet[atomString(a.Args[0])] = true
		}
	}
	var missing []string
	for _, want := range mandatorySections {
		if missingSet[want] {
			missing = append(missing, want)
		}
	}
	if len(missing) == 0 {
		return pass(rule)
	}
	return fail(rule, "response is missing mandatory sections: "+strings.Join(missing, ", "))
}

// NoCoreAmnesia blocks operations that would irrecoverably delete Tier 1 or
// Tier 2 data, suggesting the three standard alternatives.
func NoCoreAmnesia(rule Rule, ctx Context) Verdict {
	if ctx.Kind != "tier_delete" || !ctx.Irrecoverable {
		return pass(rule)
	}
	facts := []ast.Atom{mustAtom("irrecoverable_delete", ast.String("request"))}
	violations, err := mangleEngine().query(facts, "no_core_amnesia_violation")
	if err != nil || len(violations) > 0 {
		return fail(rule,
			"operation would irrecoverably delete working memory or knowledge graph data",
			"archive the data instead of deleting it",
			"export a backup before deleting",
			"set a retention policy instead of deleting immediately")
	}
	return pass(rule)
}

// ChallengeLowDOR warns when a planning-type request lacks enough clarity
// markers to proceed without re-stating scope. The threshold travels in
// ctx.Fields["threshold"], defaulting to 2 when absent.
func ChallengeLowDOR(rule Rule, ctx Context) Verdict {
	if ctx.Kind != "plan_request" {
		return pass(rule)
	}
	threshold := 2
	if t, ok := ctx.Fields["threshold"].(int); ok {
		threshold = t
	}

	facts := []ast.Atom{
		mustAtom("clarity_markers", ast.String("request"), ast.Number(int64(ctx.ClarityMarkers))),
		mustAtom("clarity_threshold", ast.String("request"), ast.Number(int64(threshold))),
	}
	violations, err := mangleEngine().query(facts, "challenge_low_dor_violation")
	if err != nil || len(violations) > 0 {
		v := fail(rule, "planning request lacks sufficient clarity markers; please re-state scope")
		v.Severity = SeverityWarning
		return v
	}
	return pass(rule)
}

// ConfidenceSpikeGuard blocks a knowledge-graph update that would change
// confidence by more than the configured limit without enough supporting
// outcomes. The limit travels in ctx.Fields["limit"]; min supporting events
// in ctx.Fields["min_events"]. Deltas are asserted as basis points so the
// comparison only needs the int64 builtins the policy already uses
// elsewhere.
func ConfidenceSpikeGuard(rule Rule, ctx Context) Verdict {
	if ctx.Kind != "knowledge_update" {
		return pass(rule)
	}
	limit := 0.20
	if l, ok := ctx.Fields["limit"].(float64); ok {
		limit = l
	}
	minEvents := 5
	if m, ok := ctx.Fields["min_events"].(int); ok {
		minEvents = m
	}
	delta := ctx.ConfidenceDelta
	if delta < 0 {
		delta = -delta
	}

	facts := []ast.Atom{
		mustAtom("confidence_delta_bp", ast.String("request"), ast.Number(int64(math.Round(delta*10000)))),
		mustAtom("spike_limit_bp", ast.String("request"), ast.Number(int64(math.Round(limit*10000)))),
		mustAtom("supporting_events", ast.String("request"), ast.Number(int64(ctx.SupportingEvents))),
		mustAtom("min_events_required", ast.String("request"), ast.Number(int64(minEvents))),
	}
	violations, err := mangleEngine().query(facts, "confidence_spike_violation")
	if err != nil || len(violations) > 0 {
		return fail(rule, "confidence change exceeds spike limit without sufficient supporting events")
	}
	return pass(rule)
}
