package router

import "strings"

// keywordTable maps phrases to the IntentKind they signal. Longer/more
// specific phrases are listed first so KeywordScan's first-match-wins walk
// favors specificity.
var keywordTable = []struct {
	phrase string
	intent IntentKind
}{
	{"write a test", IntentTest},
	{"run the tests", IntentTest},
	{"test-driven", IntentTDD},
	{"tdd", IntentTDD},
	{"make a plan", IntentPlan},
	{"plan out", IntentPlan},
	{"review this", IntentReview},
	{"code review", IntentReview},
	{"that was wrong", IntentFeedback},
	{"correction", IntentFeedback},
	{"feedback:", IntentFeedback},
	{"feedback", IntentFeedback},
	{"help me understand", IntentHelp},
	{"how do i", IntentHelp},
	{"what's the status", IntentStatus},
	{"current status", IntentStatus},
	{"configure", IntentAdmin},
	{"admin", IntentAdmin},
	{"execute", IntentExecute},
	{"implement", IntentExecute},
	{"plan", IntentPlan},
	{"test", IntentTest},
	{"review", IntentReview},
	{"status", IntentStatus},
	{"help", IntentHelp},
}

// KeywordScan returns the IntentKind of the first keyword table entry found
// as a substring of text (case-insensitive), or IntentGeneral if none match.
func KeywordScan(text string) IntentKind {
	lower := strings.ToLower(text)
	for _, entry := range keywordTable {
		if strings.Contains(lower, entry.phrase) {
			return entry.intent
		}
	}
	return IntentGeneral
}
