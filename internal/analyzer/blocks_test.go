package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cruft/pkg/config"
	"cruft/pkg/source"
)

func TestExtractBlocks(t *testing.T) {
	content := `def first():
    a = 1
    b = 2

# a comment splits blocks
def second():
    c = 3
    d = 4
`
	blocks := extractBlocks("f.py", strings.Split(content, "\n"), 3)

	require.Len(t, blocks, 2)
	assert.Equal(t, uint32(1), blocks[0].StartLine)
	assert.Equal(t, 3, len(blocks[0].Lines))
	assert.Equal(t, uint32(6), blocks[1].StartLine)
	assert.Equal(t, "def first():", blocks[0].Lines[0], "lines are stored stripped")
}

func TestExtractBlocksMinSize(t *testing.T) {
	content := "a = 1\nb = 2\n\nc = 3\n"
	blocks := extractBlocks("f.py", strings.Split(content, "\n"), 3)
	assert.Empty(t, blocks, "runs below the minimum size are not candidates")
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "abcdef", "abcdef", 1.0, 1.0},
		{"disjoint", "aaaa", "zzzz", 0.0, 0.0},
		{"one char renamed", "value = compute(x)", "value = compute(y)", 0.85, 0.999},
		{"both empty", "", "", 1.0, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarityRatio(tt.a, tt.b)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestMatchBlocksRenamedIdentifier(t *testing.T) {
	blockA := `def load_users(db):
    rows = db.query(USERS)
    out = []
    for row in rows:
        out.append(parse(row))`
	blockB := strings.ReplaceAll(blockA, "rows", "recs")
	blockB = strings.Replace(blockB, "load_users", "load_accts", 1)

	corpus := source.FromPairs("proj", map[string]string{
		"a.py": blockA + "\n",
		"b.py": blockB + "\n",
	})

	report := newTestPatterns().Analyze(corpus, nil)

	require.NotEmpty(t, report.SimilarBlocks)
	pair := report.SimilarBlocks[0]
	assert.GreaterOrEqual(t, pair.Similarity, 0.75)
	assert.Less(t, pair.Similarity, 1.0)
	assert.Equal(t, 5, pair.Block1.Lines)
}

func TestMatchBlocksExcludesIdentical(t *testing.T) {
	block := `def load(db):
    rows = db.query(ALL)
    out = []
    for row in rows:
        out.append(parse(row))`

	corpus := source.FromPairs("proj", map[string]string{
		"a.py": block + "\n",
		"b.py": block + "\n",
	})

	report := newTestPatterns().Analyze(corpus, nil)

	for _, pair := range report.SimilarBlocks {
		assert.Less(t, pair.Similarity, 1.0, "identical blocks belong to exact duplication")
	}
}

func TestMatchBlocksThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Patterns.SimilarityThreshold = 0.95

	corpus := source.FromPairs("proj", map[string]string{
		"a.py": "def alpha(x):\n    return transform(x, MODE_A)\n    # unused\n",
		"b.py": "def omega(y, z):\n    keep = []\n    return collapse(y, z, keep)\n",
	})

	report := NewPatterns(cfg).Analyze(corpus, nil)

	for _, pair := range report.SimilarBlocks {
		assert.GreaterOrEqual(t, pair.Similarity, 0.95)
	}
}

func TestMatchBlocksSingleBlock(t *testing.T) {
	// A lone block has nothing to pair with.
	block := `rows = db.query(ALL)
out = []
for row in rows:
    out.append(parse(row))`

	corpus := source.FromPairs("proj", map[string]string{
		"a.py": block + "\n",
	})

	report := newTestPatterns().Analyze(corpus, nil)
	assert.Empty(t, report.SimilarBlocks)
}

func TestBucketingFindsSimilarPairs(t *testing.T) {
	blockA := `def load_users(db):
    rows = db.query(USERS_TABLE)
    out = []
    for row in rows:
        out.append(parse_user(row))`
	blockB := strings.Replace(blockA, "parse_user", "parse_acct", 1)

	pairs := map[string]string{
		"a.py": blockA + "\n",
		"b.py": blockB + "\n",
		"c.py": "def unrelated(q):\n    q.push(1)\n    q.push(2)\n    return q.drain()\n",
	}

	exhaustive := newTestPatterns().Analyze(source.FromPairs("proj", pairs), nil)

	cfg := config.DefaultConfig()
	cfg.Patterns.Bucketing.Enabled = true
	bucketed := NewPatterns(cfg).Analyze(source.FromPairs("proj", pairs), nil)

	// Bucketing narrows candidates; every pair it emits must also exist
	// in the exhaustive result.
	for _, pair := range bucketed.SimilarBlocks {
		found := false
		for _, full := range exhaustive.SimilarBlocks {
			if pair == full {
				found = true
				break
			}
		}
		assert.True(t, found, "bucketed pair %+v missing from exhaustive result", pair)
	}

	// Near-identical blocks share nearly all shingles, so the high band
	// count makes missing them essentially impossible.
	require.NotEmpty(t, bucketed.SimilarBlocks)
	assert.Equal(t, "a.py", bucketed.SimilarBlocks[0].Block1.File)
}

func TestMatchBlocksMaxBlocksCap(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Patterns.Bucketing.MaxBlocks = 1

	blockA := `def load_users(db):
    rows = db.query(USERS)
    out = []
    for row in rows:
        out.append(parse(row))`
	blockB := strings.ReplaceAll(blockA, "rows", "recs")

	corpus := source.FromPairs("proj", map[string]string{
		"a.py": blockA + "\n",
		"b.py": blockB + "\n",
	})

	report := NewPatterns(cfg).Analyze(corpus, nil)
	assert.Empty(t, report.SimilarBlocks, "cap leaves fewer than two candidates")
}
