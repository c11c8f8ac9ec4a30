package config

// ProtectionConfig tunes the SKULL protection kernel (C7).
type ProtectionConfig struct {
	// ConfidenceSpikeLimit is the maximum |Δconfidence| a single knowledge
	// graph update may apply without >= MinSupportingEvents new outcomes.
	ConfidenceSpikeLimit float64 `yaml:"confidence_spike_limit"`
	MinSupportingEvents  int     `yaml:"min_supporting_events"`
	// ClarityMarkerThreshold is N in "lacks >= N clarity markers" for
	// challenge_low_dor.
	ClarityMarkerThreshold int `yaml:"clarity_marker_threshold"`
}

// DefaultProtectionConfig returns the baseline protection-kernel tunables.
func DefaultProtectionConfig() ProtectionConfig {
	return ProtectionConfig{
		ConfidenceSpikeLimit:   0.20,
		MinSupportingEvents:    5,
		ClarityMarkerThreshold: 2,
	}
}
