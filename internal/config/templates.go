package config

// TemplatesConfig tunes the template loader/renderer (C10).
type TemplatesConfig struct {
	// Path is the templates YAML file.
	Path string `yaml:"path"`
	// Watch enables fsnotify-driven hot reload.
	Watch bool `yaml:"watch"`
	// FallbackTemplateID is used when no template matches.
	FallbackTemplateID string `yaml:"fallback_template_id"`
}

// DefaultTemplatesConfig returns the baseline template-loader tunables.
func DefaultTemplatesConfig() TemplatesConfig {
	return TemplatesConfig{
		Path:               "templates.yaml",
		Watch:              false,
		FallbackTemplateID: "fallback",
	}
}
