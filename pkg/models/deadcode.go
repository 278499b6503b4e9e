package models

import "sort"

// Confidence expresses how strongly a detection rule implies genuine
// dead code. It is fixed by the rule that produced the finding, never
// derived afterwards.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Item types produced by the dead-code rules.
const (
	ItemFunction      = "function"
	ItemClass         = "class"
	ItemVariable      = "variable"
	ItemImport        = "import"
	ItemUnreachable   = "unreachable"
	ItemCommentedCode = "commented_code"
	ItemDebugCode     = "debug_code"
	ItemTodoRemove    = "todo_remove"
)

// Finding is one detected dead-code item. Immutable once produced.
type Finding struct {
	File       string     `json:"file"`
	Line       uint32     `json:"line"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
}

// DeadCodeReport is the structured dead-code result consumed by the
// report layer.
type DeadCodeReport struct {
	Root          string         `json:"root"`
	FilesAnalyzed int            `json:"files_analyzed"`
	TotalItems    int            `json:"total_items"`
	ByType        map[string]int `json:"by_type"`
	ByConfidence  map[string]int `json:"by_confidence"`
	Items         []Finding      `json:"items"`
	Error         string         `json:"error,omitempty"`
}

// NewDeadCodeReport creates an initialized report.
func NewDeadCodeReport(root string) *DeadCodeReport {
	return &DeadCodeReport{
		Root:         root,
		ByType:       make(map[string]int),
		ByConfidence: make(map[string]int),
		Items:        make([]Finding, 0),
	}
}

// Add appends a finding and updates the aggregate counters.
func (r *DeadCodeReport) Add(f Finding) {
	r.Items = append(r.Items, f)
	r.TotalItems++
	r.ByType[f.Type]++
	r.ByConfidence[string(f.Confidence)]++
}

// Sort orders findings by file, then line, then name so two runs over
// an unchanged corpus produce identical output.
func (r *DeadCodeReport) Sort() {
	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Name < b.Name
	})
}
