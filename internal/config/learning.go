package config

// LearningConfig tunes the background learning pipeline (C12) and Tier 2
// decay/consolidation jobs (C4).
type LearningConfig struct {
	// EventCountThreshold triggers a run when unprocessed events exceed it.
	EventCountThreshold int `yaml:"event_count_threshold"`
	// MaxEventAgeHours triggers a run when the oldest unprocessed event is
	// older than this and at least MinPendingForAge are pending (default 24h).
	MaxEventAgeHours int `yaml:"max_event_age_hours"`
	MinPendingForAge int `yaml:"min_pending_for_age"`
	// DecayDays are the four unused-duration thresholds:
	// [reinforce-decay-60, decay-90, delete-candidate-120, delete-180].
	DecayDays [4]int `yaml:"-"`
	// MinSupportingExamples is the "three independent successful examples"
	// rule for learn_pattern.
	MinSupportingExamples int `yaml:"min_supporting_examples"`
	// ConsolidationSimilarity is the Jaccard threshold for merging patterns.
	ConsolidationSimilarity float64 `yaml:"consolidation_similarity"`
	// DecaySchedule is a cron expression for the timer task driving decay and
	// consolidation passes.
	DecaySchedule string `yaml:"decay_schedule"`
}

// DefaultLearningConfig returns the baseline learning-pipeline tunables.
func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		EventCountThreshold:     50,
		MaxEventAgeHours:        24,
		MinPendingForAge:        10,
		DecayDays:               [4]int{60, 90, 120, 180},
		MinSupportingExamples:   3,
		ConsolidationSimilarity: 0.80,
		DecaySchedule:           "0 */6 * * *",
	}
}
