package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for cruft.
type Config struct {
	// File exclusion policy applied when building the corpus
	Exclude ExcludeConfig `koanf:"exclude"`

	// Dead-code detection knobs
	DeadCode DeadCodeConfig `koanf:"dead_code"`

	// Pattern/duplication detection knobs
	Patterns PatternConfig `koanf:"patterns"`

	// Output settings
	Output OutputConfig `koanf:"output"`
}

// ExcludeConfig defines which files never enter the corpus.
type ExcludeConfig struct {
	// Dirs are directory name fragments; any path containing one is skipped.
	Dirs []string `koanf:"dirs"`
	// Patterns are gitignore-style patterns applied to relative paths.
	Patterns []string `koanf:"patterns"`
	// Gitignore enables honoring .gitignore files found under the root.
	Gitignore bool `koanf:"gitignore"`
}

// DeadCodeConfig holds the suppression sets for dead-code detection.
// Every set is overridable per invocation; nothing is hard-wired into
// the analyzer.
type DeadCodeConfig struct {
	// EntryPointDecorators suppress functions carrying a decorator or
	// annotation whose name, attribute, or base matches an entry.
	EntryPointDecorators []string `koanf:"entry_point_decorators"`
	// EntryPointNames are definition names invoked by external runtimes
	// (main/app/handler style) and never flagged as unused.
	EntryPointNames []string `koanf:"entry_point_names"`
	// AggregatorBasenames mark re-export aggregator files (index/__init__
	// units), exempt from unused-import and unused-definition rules.
	AggregatorBasenames []string `koanf:"aggregator_basenames"`
	// PragmaImports are compiler-pragma imports exempt from the
	// unused-import rule (e.g. __future__ annotations).
	PragmaImports []string `koanf:"pragma_imports"`
	// MinCommentedBlockLines is the minimum size of a block comment before
	// it is reported as commented-out code.
	MinCommentedBlockLines int `koanf:"min_commented_block_lines"`
}

// PatternConfig holds thresholds for duplication detection.
type PatternConfig struct {
	MinLineLength        int     `koanf:"min_line_length"`
	MinNormalizedLength  int     `koanf:"min_normalized_length"`
	MinChainLength       int     `koanf:"min_chain_length"`
	MinStringLength      int     `koanf:"min_string_length"`
	MinStringOccurrences int     `koanf:"min_string_occurrences"`
	MinBlockLines        int     `koanf:"min_block_lines"`
	SimilarityThreshold  float64 `koanf:"similarity_threshold"`

	// StringStoplist lists literals never reported as magic strings.
	StringStoplist []string `koanf:"string_stoplist"`

	// Result caps applied by the report assembler.
	MaxLineGroups   int `koanf:"max_line_groups"`
	MaxChainGroups  int `koanf:"max_chain_groups"`
	MaxMagicStrings int `koanf:"max_magic_strings"`
	MaxBlockPairs   int `koanf:"max_block_pairs"`

	Bucketing BucketingConfig `koanf:"bucketing"`
}

// BucketingConfig controls the optional shingle/LSH pre-filter that
// bounds the all-pairs block comparison on large corpora.
type BucketingConfig struct {
	Enabled     bool `koanf:"enabled"`
	ShingleSize int  `koanf:"shingle_size"`
	NumBands    int  `koanf:"num_bands"`
	RowsPerBand int  `koanf:"rows_per_band"`
	// MaxBlocks caps how many blocks enter pairwise comparison (0 = no cap).
	MaxBlocks int `koanf:"max_blocks"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format"` // text, json, markdown
	Color   bool   `koanf:"color"`
	Verbose bool   `koanf:"verbose"`
}

// DefaultConfig returns a config with the documented defaults.
func DefaultConfig() *Config {
	return &Config{
		Exclude: ExcludeConfig{
			Dirs: []string{
				".venv",
				"venv",
				"node_modules",
				"__pycache__",
				".git",
				"dist",
				"build",
				"site-packages",
				".tox",
				"coverage",
				".next",
				"out",
				"vendor",
			},
			Patterns:  []string{"*.min.js", "*.min.css"},
			Gitignore: true,
		},
		DeadCode: DeadCodeConfig{
			EntryPointDecorators: []string{
				"app", "route", "get", "post", "put", "delete", "patch",
				"pytest", "fixture", "mark",
				"property", "staticmethod", "classmethod", "abstractmethod",
				"dataclass", "validator", "field_validator",
				"celery", "task", "shared_task",
				"function_name", "blob_trigger", "queue_trigger",
				"on_event", "listener", "handler", "receiver",
			},
			EntryPointNames: []string{
				"main", "app", "handler", "lambda_handler", "init",
			},
			AggregatorBasenames: []string{
				"__init__", "index",
			},
			PragmaImports: []string{
				"annotations",
			},
			MinCommentedBlockLines: 5,
		},
		Patterns: PatternConfig{
			MinLineLength:        30,
			MinNormalizedLength:  25,
			MinChainLength:       3,
			MinStringLength:      4,
			MinStringOccurrences: 3,
			MinBlockLines:        3,
			SimilarityThreshold:  0.75,
			StringStoplist: []string{
				"", " ", ",", ".", ":", ";", "-", "_", "/", "\\", "\n", "\t",
				"utf-8", "utf8", "ascii", "r", "w", "rb", "wb", "a", "r+",
				"true", "false", "null", "none", "yes", "no",
				"id", "name", "type", "value", "key", "data", "result", "error",
				"get", "post", "put", "delete", "patch",
				"info", "debug", "warning", "critical",
				"%s", "%d", "%f", "{}",
			},
			MaxLineGroups:   30,
			MaxChainGroups:  20,
			MaxMagicStrings: 20,
			MaxBlockPairs:   15,
			Bucketing: BucketingConfig{
				Enabled:     false,
				ShingleSize: 5,
				NumBands:    8,
				RowsPerBand: 4,
				MaxBlocks:   0,
			},
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault tries standard config file locations or returns defaults.
func LoadOrDefault() *Config {
	configNames := []string{
		"cruft.toml",
		"cruft.yaml",
		"cruft.yml",
		"cruft.json",
		".cruft.toml",
		".cruft.yaml",
		".cruft.yml",
		".cruft.json",
	}

	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			cfg, err := Load(name)
			if err == nil {
				return cfg
			}
		}
	}

	return DefaultConfig()
}

// ShouldExcludeDir checks whether a directory-name fragment in the
// denylist appears as a component of the path.
func (c *Config) ShouldExcludeDir(path string) bool {
	parts := strings.Split(path, string(filepath.Separator))
	for _, dir := range c.Exclude.Dirs {
		for _, part := range parts {
			if part == dir {
				return true
			}
		}
	}
	return false
}
