package config

// WorkspaceConfig locates the analyzed workspace CORTEX writes documents
// into through the categorised-subpath writer, and optionally enables the
// git collaborator over the same directory.
type WorkspaceConfig struct {
	// Dir is the workspace root. Empty means "use the brain directory",
	// which keeps generated reports next to the tier databases when no
	// workspace has been pointed at.
	Dir string `yaml:"dir"`
	// GitEnabled turns on the optional git collaborator (status reporting,
	// named commands). Off by default: most workspaces are not repositories
	// CORTEX should touch.
	GitEnabled bool `yaml:"git_enabled"`
}

// DefaultWorkspaceConfig returns the baseline workspace settings.
func DefaultWorkspaceConfig() WorkspaceConfig {
	return WorkspaceConfig{
		Dir:        "",
		GitEnabled: false,
	}
}
