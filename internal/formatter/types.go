package formatter

// mandatorySections mirrors the stable section markers instinct.RequiresMandatoryFormat
// checks for, kept local so the formatter can pre-empt a pre-emit block by
// re-wrapping with the fallback template itself.
var mandatorySections = []string{
	"understanding",
	"challenge",
	"response",
	"request",
	"next_steps",
}

func hasMandatorySections(present []string) bool {
	seen := make(map[string]bool, len(present))
	for _, s := range present {
		seen[s] = true
	}
	for _, want := range mandatorySections {
		if !seen[want] {
			return false
		}
	}
	return true
}
