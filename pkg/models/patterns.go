package models

// Location is one occurrence of a pattern in the corpus.
type Location struct {
	File string `json:"file"`
	Line uint32 `json:"line"`
	Code string `json:"code,omitempty"`
}

// LineGroup is a set of lines sharing one canonical key.
type LineGroup struct {
	Pattern          string     `json:"pattern"`
	Count            int        `json:"count"`
	IsExactDuplicate bool       `json:"is_exact_duplicate"`
	Locations        []Location `json:"locations"`
}

// ChainGroup is a repeated method/attribute call chain.
type ChainGroup struct {
	Chain     string     `json:"chain"`
	Count     int        `json:"count"`
	Locations []Location `json:"locations"`
}

// MagicString is a repeated string literal that should be a named
// constant.
type MagicString struct {
	String        string     `json:"string"`
	Count         int        `json:"count"`
	Files         int        `json:"files"`
	SuggestedName string     `json:"suggested_name"`
	Locations     []Location `json:"locations"`
}

// BlockRef identifies one side of a fuzzy block match.
type BlockRef struct {
	File      string `json:"file"`
	StartLine uint32 `json:"start_line"`
	Preview   string `json:"preview"`
	Lines     int    `json:"lines"`
}

// BlockPair is a pair of near-duplicate blocks. Similarity is always in
// [threshold, 1.0); identical blocks belong to exact duplication and are
// excluded by construction.
type BlockPair struct {
	Similarity float64  `json:"similarity"`
	Block1     BlockRef `json:"block1"`
	Block2     BlockRef `json:"block2"`
}

// Suggestion types emitted by the pattern report assembler.
const (
	SuggestExtractFunction    = "extract_function"
	SuggestExtractMethodChain = "extract_method_chain"
	SuggestConsolidateBlocks  = "consolidate_similar_blocks"
	SuggestExtractConstant    = "extract_constant"
)

// Suggestion is a refactoring recommendation derived from a group.
type Suggestion struct {
	Type          string `json:"type"`
	Reason        string `json:"reason"`
	Pattern       string `json:"pattern,omitempty"`
	Chain         string `json:"chain,omitempty"`
	SuggestedName string `json:"suggested_name,omitempty"`
	Suggestion    string `json:"suggestion,omitempty"`
	Locations     int    `json:"locations,omitempty"`
}

// PatternReport is the structured duplication result consumed by the
// report layer.
type PatternReport struct {
	Root                   string        `json:"root"`
	FilesAnalyzed          int           `json:"files_analyzed"`
	SimilarLines           []LineGroup   `json:"similar_lines"`
	MethodChains           []ChainGroup  `json:"method_chains"`
	MagicStrings           []MagicString `json:"magic_strings"`
	SimilarBlocks          []BlockPair   `json:"similar_blocks"`
	RefactoringSuggestions []Suggestion  `json:"refactoring_suggestions"`
	Error                  string        `json:"error,omitempty"`
}

// NewPatternReport creates an initialized report.
func NewPatternReport(root string) *PatternReport {
	return &PatternReport{
		Root:                   root,
		SimilarLines:           make([]LineGroup, 0),
		MethodChains:           make([]ChainGroup, 0),
		MagicStrings:           make([]MagicString, 0),
		SimilarBlocks:          make([]BlockPair, 0),
		RefactoringSuggestions: make([]Suggestion, 0),
	}
}

// HasFindings reports whether any group or pair was emitted.
func (r *PatternReport) HasFindings() bool {
	return len(r.SimilarLines) > 0 ||
		len(r.MethodChains) > 0 ||
		len(r.MagicStrings) > 0 ||
		len(r.SimilarBlocks) > 0
}

// CombinedReport bundles both engines for the `report` command.
type CombinedReport struct {
	Root     string          `json:"root"`
	DeadCode *DeadCodeReport `json:"dead_code"`
	Patterns *PatternReport  `json:"patterns"`
}
