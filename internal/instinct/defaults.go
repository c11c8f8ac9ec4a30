package instinct

import _ "embed"

//go:embed defaults.yaml
var defaultRulesYAML []byte

// LoadDefaults builds the Tier0 store from the rule set shipped with the
// binary, used when no external instinct source is configured.
func LoadDefaults(registry *CheckerRegistry) (*Tier0, error) {
	return LoadBytes(defaultRulesYAML, registry)
}
