// Package templates implements the Template Loader/Renderer: a structured
// template file parsed once at startup, optionally hot-reloaded on change,
// indexed by template ID, trigger phrase, and intent, with deterministic
// base/override composition and {placeholder} substitution.
package templates

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/cortex-ai/cortex/internal/cortexerr"
	"github.com/cortex-ai/cortex/internal/logging"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Loader holds the current template indexes and, when watching, the
// fsnotify watcher driving hot-reload.
type Loader struct {
	mu         sync.RWMutex
	byID       map[string]Template
	byTrigger  map[string]string
	byIntent   map[string]string
	path       string
	fallbackID string
	watcher    *fsnotify.Watcher
	log        *zap.Logger
}

// Load parses path once and builds the three indexes. If watch is true, a
// background goroutine reloads the indexes on every write event to path;
// a reload that fails to parse leaves the prior indexes in place.
func Load(path string, fallbackID string, watch bool) (*Loader, error) {
	l := &Loader{path: path, fallbackID: fallbackID, log: logging.For(logging.CategoryTemplates)}
	if err := l.reload(); err != nil {
		return nil, err
	}
	if watch {
		if err := l.startWatching(); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Loader) reload() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return cortexerr.Wrap(cortexerr.ConfigurationErr, fmt.Sprintf("load templates from %s", l.path), err)
	}

	var src source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return cortexerr.Wrap(cortexerr.ConfigurationErr, "parse templates", err)
	}

	byID := make(map[string]Template, len(src.Templates))
	for _, st := range src.Templates {
		byID[st.ID] = Template{ID: st.ID, Base: st.Base, Intent: st.Intent, Triggers: st.Triggers, Sections: st.Sections}
	}

	resolved := make(map[string]Template, len(byID))
	for id := range byID {
		t, err := resolveTemplate(id, byID, make(map[string]bool))
		if err != nil {
			return err
		}
		resolved[id] = t
	}

	byTrigger := make(map[string]string)
	byIntent := make(map[string]string)
	for id, t := range resolved {
		for _, trig := range t.Triggers {
			if existingID, claimed := byTrigger[trig]; claimed && existingID != id {
				return cortexerr.Wrap(cortexerr.ConfigurationErr,
					fmt.Sprintf("template trigger %q claimed by both %q and %q", trig, existingID, id), nil)
			}
			byTrigger[trig] = id
		}
		if t.Intent != "" {
			byIntent[t.Intent] = id
		}
	}

	l.mu.Lock()
	l.byID = resolved
	l.byTrigger = byTrigger
	l.byIntent = byIntent
	l.mu.Unlock()
	return nil
}

// resolveTemplate merges id's sections onto its base chain, base sections
// first so the most specific override (the template itself) wins.
func resolveTemplate(id string, byID map[string]Template, visiting map[string]bool) (Template, error) {
	t, ok := byID[id]
	if !ok {
		return Template{}, cortexerr.Wrap(cortexerr.ConfigurationErr, "unknown template base "+id, nil)
	}
	if t.Base == "" {
		return t, nil
	}
	if visiting[id] {
		return Template{}, cortexerr.Wrap(cortexerr.ConfigurationErr, "template composition cycle at "+id, nil)
	}
	visiting[id] = true

	base, err := resolveTemplate(t.Base, byID, visiting)
	if err != nil {
		return Template{}, err
	}

	merged := make(map[string]string, len(base.Sections)+len(t.Sections))
	for k, v := range base.Sections {
		merged[k] = v
	}
	for k, v := range t.Sections {
		merged[k] = v
	}
	t.Sections = merged
	return t, nil
}

// Get returns the fully-resolved template registered under id.
func (l *Loader) Get(id string) (Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.byID[id]
	return t, ok
}

// ByTrigger returns the template ID whose trigger phrase matches text
// exactly, if any.
func (l *Loader) ByTrigger(trigger string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byTrigger[trigger]
	return id, ok
}

// ByIntent returns the template ID mapped to intent, if any.
func (l *Loader) ByIntent(intent string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.byIntent[intent]
	return id, ok
}

// FallbackID returns the configured fallback template ID.
func (l *Loader) FallbackID() string { return l.fallbackID }

// Render substitutes {placeholder} tokens in every section of the template
// registered under id, in section-name order, joined into one string.
// A missing substitution is replaced by the empty string. Unknown template
// ID is an error.
func (l *Loader) Render(id string, substitutions map[string]string) (string, []string, error) {
	t, ok := l.Get(id)
	if !ok {
		return "", nil, cortexerr.Wrap(cortexerr.TemplateMissing, "unknown template "+id, nil)
	}

	order := []string{"understanding", "challenge", "response", "request", "next_steps"}
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		seen[name] = true
	}
	for name := range t.Sections {
		if !seen[name] {
			order = append(order, name)
			seen[name] = true
		}
	}

	var out strings.Builder
	var present []string
	for _, name := range order {
		body, ok := t.Sections[name]
		if !ok {
			continue
		}
		present = append(present, name)
		out.WriteString(substitute(body, substitutions))
		out.WriteString("\n")
	}
	return out.String(), present, nil
}

func substitute(body string, substitutions map[string]string) string {
	var out strings.Builder
	i := 0
	for i < len(body) {
		if body[i] == '{' {
			end := strings.IndexByte(body[i:], '}')
			if end >= 0 {
				key := body[i+1 : i+end]
				out.WriteString(substitutions[key])
				i += end + 1
				continue
			}
		}
		out.WriteByte(body[i])
		i++
	}
	return out.String()
}

// startWatching begins an fsnotify watch on the template file's directory,
// reloading on every Write event targeting the file itself.
func (l *Loader) startWatching() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start template watcher: %w", err)
	}
	dir := l.path[:strings.LastIndex(l.path, "/")+1]
	if dir == "" {
		dir = "."
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch template directory: %w", err)
	}
	l.watcher = w

	go func() {
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Name != l.path || event.Op&fsnotify.Write == 0 {
					continue
				}
				if err := l.reload(); err != nil {
					l.log.Warn("template hot-reload failed, keeping prior templates", zap.Error(err))
					continue
				}
				l.log.Info("templates hot-reloaded", zap.String("path", l.path))
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.log.Warn("template watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}

// Close stops the hot-reload watcher, if any.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}
