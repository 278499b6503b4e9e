// Package analyzer implements the dead-code and duplication analyses
// over an extracted corpus.
package analyzer

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"cruft/internal/extract"
	"cruft/internal/unitproc"
	"cruft/pkg/config"
	"cruft/pkg/models"
	"cruft/pkg/parser"
	"cruft/pkg/source"
)

// DeadCode detects definitions, imports, and statements that nothing
// references. Suppression sets come from configuration; nothing is
// hard-wired.
type DeadCode struct {
	cfg         *config.Config
	decorators  map[string]struct{}
	entryNames  map[string]struct{}
	aggregators map[string]struct{}
	pragmas     map[string]struct{}
}

// NewDeadCode creates a dead-code analyzer with the given configuration.
func NewDeadCode(cfg *config.Config) *DeadCode {
	return &DeadCode{
		cfg:         cfg,
		decorators:  toSet(cfg.DeadCode.EntryPointDecorators),
		entryNames:  toSet(cfg.DeadCode.EntryPointNames),
		aggregators: toSet(cfg.DeadCode.AggregatorBasenames),
		pragmas:     toSet(cfg.DeadCode.PragmaImports),
	}
}

func toSet(items []string) map[string]struct{} {
	s := make(map[string]struct{}, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// candidateDef is a definition surviving per-unit suppression, awaiting
// cross-file resolution.
type candidateDef struct {
	Name string
	Kind string
	File string
	Line uint32
}

// unitDeadCode is the isolated per-unit result of phase 1.
type unitDeadCode struct {
	Path     string
	Findings []models.Finding
	Defs     []candidateDef
	Used     map[string]struct{}
	OK       bool
}

// Analyze runs the full pipeline over a corpus: parallel per-unit
// extraction and local rules, then a single-threaded cross-file
// reduction once every unit result is in.
func (d *DeadCode) Analyze(corpus *source.Corpus, onProgress unitproc.ProgressFunc) *models.DeadCodeReport {
	report := models.NewDeadCodeReport(corpus.Root)

	if len(corpus.Units) == 0 {
		report.Error = "no files found"
		return report
	}

	results, _ := unitproc.MapUnitsWithProgress(corpus.Units, func(psr *parser.Parser, unit source.Unit) (unitDeadCode, error) {
		return d.processUnit(psr, unit)
	}, onProgress)

	// Cross-file reduction. Runs only after the barrier above; it needs
	// the full corpus usage set.
	globalUsed := make(map[string]struct{})
	var allDefs []candidateDef

	for _, r := range results {
		if !r.OK {
			continue
		}
		report.FilesAnalyzed++
		for name := range r.Used {
			globalUsed[name] = struct{}{}
		}
		allDefs = append(allDefs, r.Defs...)
		for _, f := range r.Findings {
			report.Add(f)
		}
	}

	// Bitmap over definition indices: a set bit means something in the
	// corpus references that definition's name.
	referenced := roaring.New()
	for i, def := range allDefs {
		if _, used := globalUsed[def.Name]; used {
			referenced.Add(uint32(i))
			continue
		}
		if _, entry := d.entryNames[def.Name]; entry {
			referenced.Add(uint32(i))
		}
	}

	for i, def := range allDefs {
		if referenced.Contains(uint32(i)) {
			continue
		}
		report.Add(models.Finding{
			File:       def.File,
			Line:       def.Line,
			Type:       def.Kind,
			Name:       def.Name,
			Confidence: models.ConfidenceHigh,
			Reason:     "Never used in entire project",
		})
	}

	report.Sort()
	return report
}

// AnalyzeUnit runs the per-unit rules on a single unit, including the
// medium-confidence same-file tier that corpus runs leave to the
// cross-file resolver.
func (d *DeadCode) AnalyzeUnit(psr *parser.Parser, unit source.Unit) (*models.DeadCodeReport, error) {
	report := models.NewDeadCodeReport(unit.Path)

	result, err := d.processUnit(psr, unit)
	if err != nil {
		return nil, err
	}

	report.FilesAnalyzed = 1
	for _, f := range result.Findings {
		report.Add(f)
	}
	for _, def := range result.Defs {
		if _, used := result.Used[def.Name]; used {
			continue
		}
		if _, entry := d.entryNames[def.Name]; entry {
			continue
		}
		report.Add(models.Finding{
			File:       def.File,
			Line:       def.Line,
			Type:       def.Kind,
			Name:       def.Name,
			Confidence: models.ConfidenceMedium,
			Reason:     "Defined but never used in this file",
		})
	}

	report.Sort()
	return report, nil
}

// processUnit applies per-unit rules: unused imports, unreachable
// statements, comment scanning, and definition-table construction with
// suppression.
func (d *DeadCode) processUnit(psr *parser.Parser, unit source.Unit) (unitDeadCode, error) {
	f, err := extract.Extract(psr, unit)
	if err != nil {
		return unitDeadCode{Path: unit.Path}, err
	}

	result := unitDeadCode{
		Path: unit.Path,
		Used: f.UsedNames,
		OK:   true,
	}

	aggregator := d.isAggregatorFile(unit.Path)
	testFile := isTestFile(unit.Path)

	if !aggregator {
		for _, imp := range f.Imports {
			if _, pragma := d.pragmas[imp.Name]; pragma {
				continue
			}
			if _, used := f.UsedNames[imp.Name]; used {
				continue
			}
			result.Findings = append(result.Findings, models.Finding{
				File:       unit.Path,
				Line:       imp.Line,
				Type:       models.ItemImport,
				Name:       imp.Name,
				Confidence: models.ConfidenceHigh,
				Reason:     "Imported but never used",
			})
		}
	}

	for _, u := range f.Unreachable {
		result.Findings = append(result.Findings, models.Finding{
			File:       unit.Path,
			Line:       u.Line,
			Type:       models.ItemUnreachable,
			Name:       "code after " + u.After,
			Confidence: models.ConfidenceHigh,
			Reason:     "Code is unreachable",
		})
	}

	result.Findings = append(result.Findings, d.scanComments(unit, f.Language)...)

	// Definition table. Later definitions with the same name supersede
	// earlier ones within a file, so a shadowed earlier definition never
	// reaches the resolver.
	if !aggregator && !testFile {
		table := make(map[string]candidateDef)
		var order []string
		for _, def := range f.Definitions {
			if def.InClass || d.suppressed(def) {
				continue
			}
			if _, seen := table[def.Name]; !seen {
				order = append(order, def.Name)
			}
			table[def.Name] = candidateDef{
				Name: def.Name,
				Kind: def.Kind,
				File: unit.Path,
				Line: def.Line,
			}
		}
		for _, name := range order {
			result.Defs = append(result.Defs, table[name])
		}
	}

	return result, nil
}

// suppressed applies the privacy, test-naming, and framework-decorator
// suppression rules to a definition.
func (d *DeadCode) suppressed(def extract.Definition) bool {
	if strings.HasPrefix(def.Name, "_") {
		return true
	}
	if strings.HasPrefix(def.Name, "test_") || strings.HasPrefix(def.Name, "Test") {
		return true
	}
	for _, token := range def.Decorators {
		if _, ok := d.decorators[token]; ok {
			return true
		}
	}
	return false
}

func (d *DeadCode) isAggregatorFile(path string) bool {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	_, ok := d.aggregators[base]
	return ok
}

// isTestFile reports whether the path follows a test naming convention.
// Tests are resolved by the host test runner, not by in-corpus
// references.
func isTestFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, "test_") {
		return true
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.HasSuffix(name, "_test") {
		return true
	}
	return strings.Contains(base, ".test.") || strings.Contains(base, ".spec.")
}

var todoRemoveRe = regexp.MustCompile(`(?i)(todo|fixme).*\b(remove|delete|dead|unused)\b`)

// codeLikeTokens mark a comment line as probable commented-out code.
var codeLikeTokens = []string{
	"=", "(", ")", "{", "}", ";",
	"return ", "if ", "for ", "while ",
	"def ", "func ", "function ", "const ", "let ", "var ", "import ",
}

// debugMarkers per language family; a code line containing one is a
// leftover debug statement.
var debugMarkers = map[parser.Language][]string{
	parser.LangPython:     {"pdb.set_trace(", "breakpoint("},
	parser.LangJavaScript: {"console.log(", "console.debug(", "console.info(", "debugger;"},
	parser.LangTypeScript: {"console.log(", "console.debug(", "console.info(", "debugger;"},
	parser.LangTSX:        {"console.log(", "console.debug(", "console.info(", "debugger;"},
}

// scanComments walks raw lines for commented-out code blocks, leftover
// debug statements, and comments marked for removal.
func (d *DeadCode) scanComments(unit source.Unit, lang parser.Language) []models.Finding {
	var findings []models.Finding

	commentPrefix := "//"
	if lang == parser.LangPython {
		commentPrefix = "#"
	}

	lines := strings.Split(string(unit.Content), "\n")
	runStart := -1
	runLen := 0

	flush := func() {
		if runLen >= d.cfg.DeadCode.MinCommentedBlockLines {
			findings = append(findings, models.Finding{
				File:       unit.Path,
				Line:       uint32(runStart + 1),
				Type:       models.ItemCommentedCode,
				Name:       "commented code block",
				Confidence: models.ConfidenceLow,
				Reason:     "Commented-out code should be deleted",
			})
		}
		runStart = -1
		runLen = 0
	}

	for i, raw := range lines {
		trimmed := strings.TrimSpace(raw)

		if strings.HasPrefix(trimmed, commentPrefix) {
			body := strings.TrimSpace(strings.TrimPrefix(trimmed, commentPrefix))

			if todoRemoveRe.MatchString(body) {
				findings = append(findings, models.Finding{
					File:       unit.Path,
					Line:       uint32(i + 1),
					Type:       models.ItemTodoRemove,
					Name:       truncate(body, 60),
					Confidence: models.ConfidenceMedium,
					Reason:     "Marked for removal",
				})
			}

			if looksLikeCode(body) {
				if runStart < 0 {
					runStart = i
				}
				runLen++
			} else {
				flush()
			}
			continue
		}

		flush()

		// Lines going through a logger, or annotated "keep", are
		// intentional.
		lower := strings.ToLower(trimmed)
		if strings.Contains(lower, "logger") || strings.Contains(lower, "// keep") {
			continue
		}

		for _, marker := range debugMarkers[lang] {
			if strings.Contains(trimmed, marker) {
				findings = append(findings, models.Finding{
					File:       unit.Path,
					Line:       uint32(i + 1),
					Type:       models.ItemDebugCode,
					Name:       strings.TrimSuffix(strings.TrimSuffix(marker, "("), ";"),
					Confidence: models.ConfidenceLow,
					Reason:     "Debug statement left in code",
				})
				break
			}
		}
	}
	flush()

	return findings
}

func looksLikeCode(body string) bool {
	if body == "" {
		return false
	}
	for _, token := range codeLikeTokens {
		if strings.Contains(body, token) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
