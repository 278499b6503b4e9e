// Package source supplies the analysis engines with an immutable,
// ordered corpus of (path, content) units. The engines never touch the
// filesystem themselves.
package source

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"cruft/pkg/config"
	"cruft/pkg/parser"
)

// Unit is one source file in the corpus. Content is never mutated after
// the unit is built.
type Unit struct {
	// Path is the unit's path relative to the corpus root.
	Path string
	// Content is the raw file content.
	Content []byte
}

// Corpus is an ordered set of units, sorted by path at construction so
// every run over an unchanged tree sees the same order.
type Corpus struct {
	Root  string
	Units []Unit
	// Skipped counts files that matched a source language but could not
	// be read. Unreadable files never fail a scan.
	Skipped int
}

// Len returns the number of units.
func (c *Corpus) Len() int { return len(c.Units) }

// FromPairs builds a corpus directly from (path, text) pairs, preserving
// nothing but path order. Used by callers that already hold content
// in memory (and by tests).
func FromPairs(root string, pairs map[string]string) *Corpus {
	paths := make([]string, 0, len(pairs))
	for p := range pairs {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	c := &Corpus{Root: root, Units: make([]Unit, 0, len(paths))}
	for _, p := range paths {
		c.Units = append(c.Units, Unit{Path: p, Content: []byte(pairs[p])})
	}
	return c
}

// Scanner builds a corpus from a directory tree, applying the exclusion
// policy from the config.
type Scanner struct {
	config   *config.Config
	matchers []gitignore.Matcher
}

// NewScanner creates a scanner with the given config (nil means defaults).
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// loadExcludePatterns combines config patterns with .gitignore files
// found under the root.
func (s *Scanner) loadExcludePatterns(root string) {
	var patterns []gitignore.Pattern

	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}

	if s.config.Exclude.Gitignore {
		fsys := osfs.New(root)
		if gitPatterns, err := gitignore.ReadPatterns(fsys, nil); err == nil {
			patterns = append(patterns, gitPatterns...)
		}
	}

	if len(patterns) > 0 {
		s.matchers = append(s.matchers, gitignore.NewMatcher(patterns))
	}
}

// isExcluded checks a relative path against the pattern matchers.
func (s *Scanner) isExcluded(relPath string, isDir bool) bool {
	if len(s.matchers) == 0 {
		return false
	}
	parts := strings.Split(relPath, string(filepath.Separator))
	for _, m := range s.matchers {
		if m.Match(parts, isDir) {
			return true
		}
	}
	return false
}

// Scan walks root and returns a corpus of all source units that survive
// the exclusion policy. An empty result is not an error; the engines
// surface it as a soft "no files found" condition.
func (s *Scanner) Scan(root string) (*Corpus, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(absRoot)

	corpus := &Corpus{Root: absRoot}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if s.config.ShouldExcludeDir(relPath) || s.isExcluded(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.config.ShouldExcludeDir(relPath) || s.isExcluded(relPath, false) {
			return nil
		}
		if parser.DetectLanguage(path) == parser.LangUnknown {
			return nil
		}

		content, readErr := os.ReadFile(path)
		if readErr != nil {
			corpus.Skipped++
			return nil
		}

		corpus.Units = append(corpus.Units, Unit{Path: relPath, Content: content})
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	sort.Slice(corpus.Units, func(i, j int) bool {
		return corpus.Units[i].Path < corpus.Units[j].Path
	})

	return corpus, nil
}
