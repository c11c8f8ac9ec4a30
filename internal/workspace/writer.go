// Package workspace implements the workspace filesystem boundary: every
// document CORTEX writes into the analyzed workspace goes through Writer,
// which refuses root-level markdown writes and requires one of the
// categorised subpaths before anything touches disk. The protection
// kernel's no_root_docs predicate evaluates the same categorisation at
// pre-emit; this writer is the enforcement point at write time.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cortex-ai/cortex/internal/cortexerr"
)

// Categories are the subpaths a document write may target. Anything else,
// including the workspace root itself, is refused.
var Categories = []string{
	"reports",
	"analysis",
	"investigations",
	"planning",
	"implementation-guides",
	"summaries",
	"conversation-captures",
}

// categoryAlternatives is the suggestion list attached to a refusal, each
// entry in the trailing-slash form the rest of the system displays.
var categoryAlternatives = func() []string {
	out := make([]string, len(Categories))
	for i, c := range Categories {
		out[i] = c + "/"
	}
	return out
}()

// Writer is the only component allowed to write documents into the
// workspace. Every path handed to Write is interpreted relative to the
// workspace root it was constructed over.
type Writer struct {
	base string
}

// NewWriter binds a Writer to the workspace rooted at base.
func NewWriter(base string) *Writer {
	return &Writer{base: base}
}

// Base returns the workspace root this writer is bound to.
func (w *Writer) Base() string { return w.base }

// CheckPath validates relPath against the category whitelist without
// writing anything: the same verdict Write would reach, usable by agents
// that must declare an effect before performing it.
func CheckPath(relPath string) error {
	clean := filepath.ToSlash(filepath.Clean(relPath))
	if clean == "." || clean == "" {
		return cortexerr.Blocked("no_root_docs",
			"empty workspace path", categoryAlternatives...)
	}
	if filepath.IsAbs(relPath) || clean == ".." || strings.HasPrefix(clean, "../") {
		return cortexerr.Blocked("no_root_docs",
			fmt.Sprintf("path %q escapes the workspace", relPath), categoryAlternatives...)
	}
	category, rest, found := strings.Cut(clean, "/")
	if !found || rest == "" {
		return cortexerr.Blocked("no_root_docs",
			fmt.Sprintf("root-level write %q refused; use a categorised subpath", relPath),
			categoryAlternatives...)
	}
	for _, c := range Categories {
		if category == c {
			return nil
		}
	}
	return cortexerr.Blocked("no_root_docs",
		fmt.Sprintf("subpath %q is not a recognised category", category),
		categoryAlternatives...)
}

// Write persists data at relPath beneath the workspace root, creating the
// category directory if needed, and returns the absolute path written. The
// write is atomic: data lands in a temp file in the same directory and is
// renamed into place, so a reader never observes a half-written document.
func (w *Writer) Write(relPath string, data []byte) (string, error) {
	if err := CheckPath(relPath); err != nil {
		return "", err
	}
	abs := filepath.Join(w.base, filepath.FromSlash(filepath.ToSlash(filepath.Clean(relPath))))
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("workspace: create category dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".cortex-write-*")
	if err != nil {
		return "", fmt.Errorf("workspace: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("workspace: write %s: %w", relPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("workspace: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("workspace: rename into place: %w", err)
	}
	return abs, nil
}
