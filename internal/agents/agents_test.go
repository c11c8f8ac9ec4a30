package agents

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cortex-ai/cortex/internal/devcontext"
	"github.com/cortex-ai/cortex/internal/dispatcher"
	"github.com/cortex-ai/cortex/internal/eventlog"
	"github.com/cortex-ai/cortex/internal/memory"
	"github.com/cortex-ai/cortex/internal/registry"
	"github.com/cortex-ai/cortex/internal/router"
	"github.com/cortex-ai/cortex/internal/workspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanAgentCanHandle(t *testing.T) {
	a := PlanAgent{}
	assert.True(t, a.CanHandle(router.IntentPlan))
	assert.False(t, a.CanHandle(router.IntentTest))

	result, err := a.Execute(context.Background(), dispatcher.Request{Text: "make a plan for the migration"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "migration")
}

func TestExecuteAgentReportsFileEffects(t *testing.T) {
	a := ExecuteAgent{}
	result, err := a.Execute(context.Background(), dispatcher.Request{Text: "update main.go and router.go"}, nil)
	require.NoError(t, err)
	require.Len(t, result.Effects, 2)
	assert.Equal(t, "main.go", result.Effects[0].Path)
}

func TestHelpAgentListsOperations(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Operation{ID: "run_tests", DisplayName: "Run Tests", Triggers: []string{"run the tests"}}))

	a := HelpAgent{Registry: reg}
	result, err := a.Execute(context.Background(), dispatcher.Request{Text: "help me understand the commands"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "run_tests")
	assert.Equal(t, "help_table", result.TemplateHint)
}

func TestStatusAgentReportsMemoryCount(t *testing.T) {
	dir := t.TempDir()
	mem, err := memory.Open(filepath.Join(dir, "tier1.db"), 3, memory.Config{Capacity: 70}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })
	_, err = mem.AppendTurn("conv-1", memory.RoleUser, "hi")
	require.NoError(t, err)

	dev, err := devcontext.Open(filepath.Join(dir, "tier3.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	a := StatusAgent{Memory: mem, DevContext: dev}
	result, err := a.Execute(context.Background(), dispatcher.Request{Namespace: "ns-a"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "1 tracked conversations")
	assert.Equal(t, "status", result.TemplateHint)
}

func TestFeedbackAgentWritesReportAndEmitsEvent(t *testing.T) {
	dir := t.TempDir()
	events, err := eventlog.Open(filepath.Join(dir, "events.db"), 3)
	require.NoError(t, err)
	t.Cleanup(func() { _ = events.Close() })

	a := FeedbackAgent{Events: events, Workspace: workspace.NewWriter(dir)}

	result, err := a.Execute(context.Background(), dispatcher.Request{Text: "that was wrong, fix it", Namespace: "ns-a"}, nil)
	require.NoError(t, err)
	require.Len(t, result.Effects, 1)
	// The declared effect carries the workspace-relative categorised path,
	// which is what pre-emit protection evaluates.
	assert.True(t, strings.HasPrefix(result.Effects[0].Path, "reports/"), result.Effects[0].Path)

	entries, err := os.ReadDir(filepath.Join(dir, "reports"))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	pending, err := events.PendingCount("any-consumer-not-yet-advanced")
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

type fakeGit struct {
	status string
	err    error
}

func (f fakeGit) Status(ctx context.Context) (string, error)         { return f.status, f.err }
func (f fakeGit) Add(ctx context.Context, paths ...string) error     { return nil }
func (f fakeGit) Commit(ctx context.Context, message string) error   { return nil }
func (f fakeGit) Push(ctx context.Context, remote, ref string) error { return nil }
func (f fakeGit) Tag(ctx context.Context, name string) error         { return nil }

func TestStatusAgentIncludesGitAndUsageWhenWired(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Operation{ID: "run_tests", DisplayName: "Run Tests", Triggers: []string{"run the tests"}}))
	_, ok := reg.MatchTrigger("please run the tests")
	require.True(t, ok)

	a := StatusAgent{Registry: reg, Git: fakeGit{status: " M main.go\n?? new.go\n"}}
	result, err := a.Execute(context.Background(), dispatcher.Request{Namespace: "ns-a"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "most used operation: run_tests (1 requests)")
	assert.Contains(t, result.Text, "2 uncommitted changes (git)")
}

func TestStatusAgentOmitsGitLineOnCollaboratorError(t *testing.T) {
	a := StatusAgent{Git: fakeGit{err: context.DeadlineExceeded}}
	result, err := a.Execute(context.Background(), dispatcher.Request{Namespace: "ns-a"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, result.Text, "git")
}

func TestGeneralAgentDelegatesByReDerivedIntent(t *testing.T) {
	a := GeneralAgent{}
	result, err := a.Execute(context.Background(), dispatcher.Request{Text: "make a plan for refactoring"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Plan for")
}

func TestGeneralAgentFallsBackToAcknowledgement(t *testing.T) {
	a := GeneralAgent{}
	result, err := a.Execute(context.Background(), dispatcher.Request{Text: "good morning"}, nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Acknowledged")
}

func TestGeneralAgentCanHandleEverything(t *testing.T) {
	a := GeneralAgent{}
	assert.True(t, a.CanHandle(router.IntentPlan))
	assert.True(t, a.CanHandle(router.IntentGeneral))
}
