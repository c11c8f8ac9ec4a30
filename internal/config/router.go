package config

// RouterConfig tunes the intent router (C8).
type RouterConfig struct {
	// RecentTurnWindow (K) is how many recent turns are pulled into the
	// context bundle.
	RecentTurnWindow int `yaml:"recent_turn_window"`
	// TopPatterns (M) is how many patterns are pulled by score (default 3).
	TopPatterns int `yaml:"top_patterns"`
	// TokenBudget bounds the total context bundle size (default 600).
	TokenBudget int `yaml:"token_budget"`
	// AutoRouteConfidence / SuggestConfirmConfidence are the pattern-lookup
	// thresholds that decide whether a pattern match auto-routes, asks for
	// confirmation, or falls through to the next routing step.
	AutoRouteConfidence      float64 `yaml:"auto_route_confidence"`
	SuggestConfirmConfidence float64 `yaml:"suggest_confirm_confidence"`
}

// DefaultRouterConfig returns the baseline intent-router tunables.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		RecentTurnWindow:         5,
		TopPatterns:              3,
		TokenBudget:              600,
		AutoRouteConfidence:      0.85,
		SuggestConfirmConfidence: 0.70,
	}
}
