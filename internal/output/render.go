package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"cruft/pkg/models"
)

// DeadCodeView renders a dead-code report.
type DeadCodeView struct {
	Report *models.DeadCodeReport
}

func (v *DeadCodeView) RenderData() any { return v.Report }

func (v *DeadCodeView) RenderText(w io.Writer, colored bool) error {
	r := v.Report

	if r.Error != "" {
		fmt.Fprintf(w, "dead code: %s\n", r.Error)
		return nil
	}

	title := fmt.Sprintf("Dead Code (%d items, %d files analyzed)", r.TotalItems, r.FilesAnalyzed)
	if r.TotalItems == 0 {
		if colored {
			color.New(color.FgGreen).Fprintln(w, "No dead code found")
		} else {
			fmt.Fprintln(w, "No dead code found")
		}
		return nil
	}

	rows := make([][]string, 0, len(r.Items))
	for _, item := range r.Items {
		conf := string(item.Confidence)
		if colored {
			conf = colorConfidence(item.Confidence)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d", item.File, item.Line),
			item.Type,
			item.Name,
			conf,
			item.Reason,
		})
	}

	t := &Table{
		Title:   title,
		Headers: []string{"Location", "Type", "Name", "Confidence", "Reason"},
		Rows:    rows,
	}
	if err := t.RenderText(w, colored); err != nil {
		return err
	}

	fmt.Fprintf(w, "By confidence: %s\n", countLine(r.ByConfidence))
	fmt.Fprintf(w, "By type: %s\n", countLine(r.ByType))
	return nil
}

func (v *DeadCodeView) RenderMarkdown(w io.Writer) error {
	r := v.Report

	fmt.Fprintf(w, "# Dead Code\n\n%d items across %d files.\n\n", r.TotalItems, r.FilesAnalyzed)
	if r.Error != "" {
		fmt.Fprintf(w, "%s\n", r.Error)
		return nil
	}
	if r.TotalItems == 0 {
		return nil
	}

	rows := make([][]string, 0, len(r.Items))
	for _, item := range r.Items {
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d", item.File, item.Line),
			item.Type,
			item.Name,
			string(item.Confidence),
			item.Reason,
		})
	}
	t := &Table{
		Headers: []string{"Location", "Type", "Name", "Confidence", "Reason"},
		Rows:    rows,
	}
	return t.RenderMarkdown(w)
}

func colorConfidence(c models.Confidence) string {
	switch c {
	case models.ConfidenceHigh:
		return color.New(color.FgRed).Sprint(string(c))
	case models.ConfidenceMedium:
		return color.New(color.FgYellow).Sprint(string(c))
	default:
		return color.New(color.Faint).Sprint(string(c))
	}
}

func countLine(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

// PatternView renders a duplication report.
type PatternView struct {
	Report *models.PatternReport
}

func (v *PatternView) RenderData() any { return v.Report }

func (v *PatternView) RenderText(w io.Writer, colored bool) error {
	r := v.Report

	if r.Error != "" {
		fmt.Fprintf(w, "patterns: %s\n", r.Error)
		return nil
	}
	if !r.HasFindings() {
		if colored {
			color.New(color.FgGreen).Fprintln(w, "No duplication found")
		} else {
			fmt.Fprintln(w, "No duplication found")
		}
		return nil
	}

	if len(r.SimilarLines) > 0 {
		rows := make([][]string, 0, len(r.SimilarLines))
		for _, g := range r.SimilarLines {
			exact := ""
			if g.IsExactDuplicate {
				exact = "exact"
			}
			rows = append(rows, []string{
				truncateCell(g.Pattern, 60),
				strconv.Itoa(g.Count),
				exact,
				firstLocation(g.Locations),
			})
		}
		t := &Table{
			Title:   fmt.Sprintf("Similar Lines (%d groups)", len(r.SimilarLines)),
			Headers: []string{"Pattern", "Count", "Exact", "First Seen"},
			Rows:    rows,
		}
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}

	if len(r.MethodChains) > 0 {
		rows := make([][]string, 0, len(r.MethodChains))
		for _, g := range r.MethodChains {
			rows = append(rows, []string{
				truncateCell(g.Chain, 60),
				strconv.Itoa(g.Count),
				firstLocation(g.Locations),
			})
		}
		t := &Table{
			Title:   fmt.Sprintf("Repeated Method Chains (%d)", len(r.MethodChains)),
			Headers: []string{"Chain", "Count", "First Seen"},
			Rows:    rows,
		}
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}

	if len(r.MagicStrings) > 0 {
		rows := make([][]string, 0, len(r.MagicStrings))
		for _, g := range r.MagicStrings {
			rows = append(rows, []string{
				truncateCell(g.String, 40),
				strconv.Itoa(g.Count),
				strconv.Itoa(g.Files),
				g.SuggestedName,
			})
		}
		t := &Table{
			Title:   fmt.Sprintf("Magic Strings (%d)", len(r.MagicStrings)),
			Headers: []string{"String", "Count", "Files", "Suggested Name"},
			Rows:    rows,
		}
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}

	if len(r.SimilarBlocks) > 0 {
		rows := make([][]string, 0, len(r.SimilarBlocks))
		for _, pair := range r.SimilarBlocks {
			rows = append(rows, []string{
				fmt.Sprintf("%.0f%%", pair.Similarity*100),
				fmt.Sprintf("%s:%d", pair.Block1.File, pair.Block1.StartLine),
				fmt.Sprintf("%s:%d", pair.Block2.File, pair.Block2.StartLine),
				truncateCell(pair.Block1.Preview, 40),
			})
		}
		t := &Table{
			Title:   fmt.Sprintf("Similar Blocks (%d pairs)", len(r.SimilarBlocks)),
			Headers: []string{"Similarity", "Block 1", "Block 2", "Preview"},
			Rows:    rows,
		}
		if err := t.RenderText(w, colored); err != nil {
			return err
		}
	}

	if len(r.RefactoringSuggestions) > 0 {
		if colored {
			color.New(color.Bold).Fprintln(w, "Suggestions")
		} else {
			fmt.Fprintln(w, "Suggestions")
		}
		for _, s := range r.RefactoringSuggestions {
			detail := s.Pattern
			if s.Chain != "" {
				detail = s.Chain
			}
			if s.SuggestedName != "" {
				detail = fmt.Sprintf("%s -> %s", detail, s.SuggestedName)
			}
			fmt.Fprintf(w, "  [%s] %s (%d occurrences): %s\n", s.Type, truncateCell(detail, 60), s.Locations, s.Suggestion)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func (v *PatternView) RenderMarkdown(w io.Writer) error {
	r := v.Report

	fmt.Fprintf(w, "# Duplication\n\n%d files analyzed.\n\n", r.FilesAnalyzed)
	if r.Error != "" {
		fmt.Fprintf(w, "%s\n", r.Error)
		return nil
	}

	if len(r.SimilarLines) > 0 {
		rows := make([][]string, 0, len(r.SimilarLines))
		for _, g := range r.SimilarLines {
			rows = append(rows, []string{
				"`" + truncateCell(g.Pattern, 60) + "`",
				strconv.Itoa(g.Count),
				strconv.FormatBool(g.IsExactDuplicate),
			})
		}
		t := &Table{
			Title:   "Similar Lines",
			Headers: []string{"Pattern", "Count", "Exact"},
			Rows:    rows,
		}
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}

	if len(r.MethodChains) > 0 {
		rows := make([][]string, 0, len(r.MethodChains))
		for _, g := range r.MethodChains {
			rows = append(rows, []string{"`" + g.Chain + "`", strconv.Itoa(g.Count)})
		}
		t := &Table{
			Title:   "Repeated Method Chains",
			Headers: []string{"Chain", "Count"},
			Rows:    rows,
		}
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}

	if len(r.MagicStrings) > 0 {
		rows := make([][]string, 0, len(r.MagicStrings))
		for _, g := range r.MagicStrings {
			rows = append(rows, []string{
				"`" + g.String + "`",
				strconv.Itoa(g.Count),
				strconv.Itoa(g.Files),
				"`" + g.SuggestedName + "`",
			})
		}
		t := &Table{
			Title:   "Magic Strings",
			Headers: []string{"String", "Count", "Files", "Suggested Name"},
			Rows:    rows,
		}
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}

	if len(r.SimilarBlocks) > 0 {
		rows := make([][]string, 0, len(r.SimilarBlocks))
		for _, pair := range r.SimilarBlocks {
			rows = append(rows, []string{
				fmt.Sprintf("%.0f%%", pair.Similarity*100),
				fmt.Sprintf("%s:%d", pair.Block1.File, pair.Block1.StartLine),
				fmt.Sprintf("%s:%d", pair.Block2.File, pair.Block2.StartLine),
			})
		}
		t := &Table{
			Title:   "Similar Blocks",
			Headers: []string{"Similarity", "Block 1", "Block 2"},
			Rows:    rows,
		}
		if err := t.RenderMarkdown(w); err != nil {
			return err
		}
	}

	return nil
}

// CombinedView renders both engines' reports together.
type CombinedView struct {
	Report *models.CombinedReport
}

func (v *CombinedView) RenderData() any { return v.Report }

func (v *CombinedView) RenderText(w io.Writer, colored bool) error {
	if err := (&DeadCodeView{Report: v.Report.DeadCode}).RenderText(w, colored); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return (&PatternView{Report: v.Report.Patterns}).RenderText(w, colored)
}

func (v *CombinedView) RenderMarkdown(w io.Writer) error {
	if err := (&DeadCodeView{Report: v.Report.DeadCode}).RenderMarkdown(w); err != nil {
		return err
	}
	return (&PatternView{Report: v.Report.Patterns}).RenderMarkdown(w)
}

func truncateCell(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func firstLocation(locations []models.Location) string {
	if len(locations) == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", locations[0].File, locations[0].Line)
}
