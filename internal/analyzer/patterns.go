package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"cruft/internal/extract"
	"cruft/internal/unitproc"
	"cruft/pkg/config"
	"cruft/pkg/models"
	"cruft/pkg/parser"
	"cruft/pkg/source"
)

// Patterns detects duplication: similar lines grouped by canonical key,
// repeated call chains, magic strings, and fuzzy block matches.
type Patterns struct {
	cfg      *config.Config
	stoplist map[string]struct{}
}

// NewPatterns creates a pattern analyzer with the given configuration.
func NewPatterns(cfg *config.Config) *Patterns {
	stop := make(map[string]struct{}, len(cfg.Patterns.StringStoplist))
	for _, s := range cfg.Patterns.StringStoplist {
		stop[strings.ToLower(s)] = struct{}{}
	}
	return &Patterns{cfg: cfg, stoplist: stop}
}

// lineOccurrence is one normalized line with its origin.
type lineOccurrence struct {
	Key     uint64 // xxhash of the canonical key
	Pattern string // the canonical key itself
	Raw     string // stripped original text
	Loc     models.Location
}

// unitStructural holds the tree-derived half of a unit's phase-1
// result. Empty when the unit fails structural extraction.
type unitStructural struct {
	Chains  []extract.Chain
	Strings []extract.StringLit
}

// unitTextual holds the line-derived half; it never requires a parse.
type unitTextual struct {
	Lines  []lineOccurrence
	Blocks []textBlock
}

// Analyze runs the duplication pipeline: parallel per-unit extraction
// and normalization, then single-threaded grouping, then the fuzzy
// block matcher.
func (p *Patterns) Analyze(corpus *source.Corpus, onProgress unitproc.ProgressFunc) *models.PatternReport {
	report := models.NewPatternReport(corpus.Root)

	if len(corpus.Units) == 0 {
		report.Error = "no files found"
		return report
	}

	structural, _ := unitproc.MapUnitsWithProgress(corpus.Units, p.extractUnit, onProgress)
	textual, _ := unitproc.ForEachUnit(corpus.Units, p.scanUnit)

	report.FilesAnalyzed = corpus.Len()

	var blocks []textBlock
	lineBuckets := make(map[uint64][]lineOccurrence)
	chainBuckets := make(map[string][]models.Location)
	stringBuckets := make(map[string][]models.Location)

	for i, r := range structural {
		path := corpus.Units[i].Path
		for _, c := range r.Chains {
			key := strings.Join(c.Tokens, "")
			chainBuckets[key] = append(chainBuckets[key], models.Location{File: path, Line: c.Line})
		}
		for _, s := range r.Strings {
			stringBuckets[s.Value] = append(stringBuckets[s.Value], models.Location{File: path, Line: s.Line})
		}
	}

	for _, r := range textual {
		for _, occ := range r.Lines {
			lineBuckets[occ.Key] = append(lineBuckets[occ.Key], occ)
		}
		blocks = append(blocks, r.Blocks...)
	}

	report.SimilarLines = p.groupLines(lineBuckets)
	report.MethodChains = p.groupChains(chainBuckets)
	report.MagicStrings = p.groupStrings(stringBuckets)
	report.SimilarBlocks = p.matchBlocks(blocks)
	report.RefactoringSuggestions = p.suggest(report)

	return report
}

// extractUnit collects chains and string literals from the parse tree.
// A unit that fails structural extraction contributes nothing here but
// still feeds the textual scan.
func (p *Patterns) extractUnit(psr *parser.Parser, unit source.Unit) (unitStructural, error) {
	f, err := extract.Extract(psr, unit)
	if err != nil {
		return unitStructural{}, nil
	}

	var result unitStructural
	for _, c := range f.Chains {
		if len(c.Tokens) >= p.cfg.Patterns.MinChainLength {
			result.Chains = append(result.Chains, c)
		}
	}
	result.Strings = f.Strings
	return result, nil
}

// scanUnit normalizes raw lines and extracts candidate blocks; no parse
// tree is involved.
func (p *Patterns) scanUnit(unit source.Unit) (unitTextual, error) {
	var result unitTextual

	lines := strings.Split(string(unit.Content), "\n")
	for i, raw := range lines {
		norm, ok := p.NormalizeLine(raw)
		if !ok {
			continue
		}
		result.Lines = append(result.Lines, lineOccurrence{
			Key:     xxhash.Sum64String(norm),
			Pattern: norm,
			Raw:     strings.TrimSpace(raw),
			Loc:     models.Location{File: unit.Path, Line: uint32(i + 1), Code: strings.TrimSpace(raw)},
		})
	}

	result.Blocks = extractBlocks(unit.Path, lines, p.cfg.Patterns.MinBlockLines)
	return result, nil
}

var (
	dquoteRe = regexp.MustCompile(`"[^"]*"`)
	squoteRe = regexp.MustCompile(`'[^']*'`)
	numRe    = regexp.MustCompile(`\b\d+\.?\d*\b`)
	assignRe = regexp.MustCompile(`^\s*\w+\s*=\s*`)
)

// commentPrefixes excluded before normalization.
var commentPrefixes = []string{"#", "//", "/*", "*"}

// importPrefixes mark import-only lines, excluded before normalization.
var importPrefixes = []string{"import ", "from ", "package "}

// NormalizeLine canonicalizes one raw line into its grouping key.
// Literals collapse to placeholders and a leading assignment prefix
// folds to a placeholder form, so lines differing only in literals or
// target name share a key. Returns false for lines excluded from
// similarity consideration.
func (p *Patterns) NormalizeLine(raw string) (string, bool) {
	line := strings.TrimSpace(raw)
	if len(line) < p.cfg.Patterns.MinLineLength {
		return "", false
	}
	for _, prefix := range commentPrefixes {
		if strings.HasPrefix(line, prefix) {
			return "", false
		}
	}
	for _, prefix := range importPrefixes {
		if strings.HasPrefix(line, prefix) {
			return "", false
		}
	}

	norm := dquoteRe.ReplaceAllString(line, `"STR"`)
	norm = squoteRe.ReplaceAllString(norm, `'STR'`)
	norm = numRe.ReplaceAllString(norm, "NUM")
	norm = assignRe.ReplaceAllString(norm, "VAR = ")

	if len(norm) < p.cfg.Patterns.MinNormalizedLength {
		return "", false
	}
	return norm, true
}

// groupLines emits groups of >= 2 occurrences per canonical key,
// ordered by count descending then pattern, capped.
func (p *Patterns) groupLines(buckets map[uint64][]lineOccurrence) []models.LineGroup {
	groups := make([]models.LineGroup, 0)

	for _, occs := range buckets {
		if len(occs) < 2 {
			continue
		}

		exact := true
		locations := make([]models.Location, 0, len(occs))
		for _, occ := range occs {
			if occ.Raw != occs[0].Raw {
				exact = false
			}
			locations = append(locations, occ.Loc)
		}

		groups = append(groups, models.LineGroup{
			Pattern:          occs[0].Pattern,
			Count:            len(occs),
			IsExactDuplicate: exact,
			Locations:        locations,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Pattern < groups[j].Pattern
	})

	return capGroups(groups, p.cfg.Patterns.MaxLineGroups)
}

func (p *Patterns) groupChains(buckets map[string][]models.Location) []models.ChainGroup {
	groups := make([]models.ChainGroup, 0)

	for chain, locations := range buckets {
		if len(locations) < 2 {
			continue
		}
		groups = append(groups, models.ChainGroup{
			Chain:     chain,
			Count:     len(locations),
			Locations: locations,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		if len(groups[i].Chain) != len(groups[j].Chain) {
			return len(groups[i].Chain) > len(groups[j].Chain)
		}
		return groups[i].Chain < groups[j].Chain
	})

	return capGroups(groups, p.cfg.Patterns.MaxChainGroups)
}

// groupStrings emits magic-string groups ordered by distinct file count
// then raw occurrence count, prioritizing cross-module duplication.
func (p *Patterns) groupStrings(buckets map[string][]models.Location) []models.MagicString {
	groups := make([]models.MagicString, 0)

	for value, locations := range buckets {
		if len(locations) < p.cfg.Patterns.MinStringOccurrences {
			continue
		}
		if p.ignoredString(value) {
			continue
		}

		files := make(map[string]struct{})
		for _, loc := range locations {
			files[loc.File] = struct{}{}
		}

		groups = append(groups, models.MagicString{
			String:        value,
			Count:         len(locations),
			Files:         len(files),
			SuggestedName: SuggestConstantName(value),
			Locations:     locations,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Files != groups[j].Files {
			return groups[i].Files > groups[j].Files
		}
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].String < groups[j].String
	})

	return capGroups(groups, p.cfg.Patterns.MaxMagicStrings)
}

// ignoredString applies the stoplist plus the structural exclusions:
// short literals, dunder names, URLs, and extension-like values.
func (p *Patterns) ignoredString(value string) bool {
	if len(value) < p.cfg.Patterns.MinStringLength {
		return true
	}
	if strings.TrimSpace(value) == "" {
		return true
	}
	if _, stopped := p.stoplist[strings.ToLower(value)]; stopped {
		return true
	}
	if strings.HasPrefix(value, "__") && strings.HasSuffix(value, "__") {
		return true
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return true
	}
	// Extension-like: ".json", ".tsx".
	if strings.HasPrefix(value, ".") && len(value) <= 6 {
		return true
	}
	// Filename-like: "config.json", "setup.py".
	if !strings.ContainsAny(value, " \t") && extSuffixRe.MatchString(value) {
		return true
	}
	return false
}

var extSuffixRe = regexp.MustCompile(`\.[A-Za-z][A-Za-z0-9]{0,4}$`)

var nonAlnumRe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// SuggestConstantName derives an uppercase constant name from a literal.
func SuggestConstantName(value string) string {
	name := nonAlnumRe.ReplaceAllString(value, "_")
	name = strings.Trim(strings.ToUpper(name), "_")
	if len(name) > 30 {
		name = name[:30]
	}
	if name == "" {
		return "CONST"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "CONST_" + name
	}
	return name
}

// suggest assembles refactoring recommendations from the top groups.
func (p *Patterns) suggest(report *models.PatternReport) []models.Suggestion {
	suggestions := make([]models.Suggestion, 0)

	for _, group := range topN(report.SimilarLines, 3) {
		suggestions = append(suggestions, models.Suggestion{
			Type:       models.SuggestExtractFunction,
			Reason:     fmt.Sprintf("Line pattern repeated %d times", group.Count),
			Pattern:    group.Pattern,
			Locations:  group.Count,
			Suggestion: "Extract repeated logic into a shared function",
		})
	}

	for _, group := range topN(report.MethodChains, 3) {
		suggestions = append(suggestions, models.Suggestion{
			Type:       models.SuggestExtractMethodChain,
			Reason:     fmt.Sprintf("Method chain repeated %d times", group.Count),
			Chain:      group.Chain,
			Locations:  group.Count,
			Suggestion: "Extract chain into a helper method",
		})
	}

	for _, group := range topN(report.MagicStrings, 5) {
		suggestions = append(suggestions, models.Suggestion{
			Type:          models.SuggestExtractConstant,
			Reason:        fmt.Sprintf("String %q appears %d times in %d files", group.String, group.Count, group.Files),
			Pattern:       group.String,
			SuggestedName: group.SuggestedName,
			Locations:     group.Count,
			Suggestion:    "Replace magic string with a named constant",
		})
	}

	if n := len(report.SimilarBlocks); n > 0 {
		suggestions = append(suggestions, models.Suggestion{
			Type:       models.SuggestConsolidateBlocks,
			Reason:     fmt.Sprintf("%d block pairs exceed %.0f%% similarity", n, p.cfg.Patterns.SimilarityThreshold*100),
			Locations:  n,
			Suggestion: "Consolidate near-duplicate blocks into one implementation",
		})
	}

	return suggestions
}

func capGroups[T any](groups []T, limit int) []T {
	if limit > 0 && len(groups) > limit {
		return groups[:limit]
	}
	return groups
}

func topN[T any](groups []T, n int) []T {
	if len(groups) > n {
		return groups[:n]
	}
	return groups
}
