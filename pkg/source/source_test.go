package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cruft/pkg/config"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFromPairsOrdering(t *testing.T) {
	c := FromPairs("root", map[string]string{
		"z.py": "z",
		"a.py": "a",
		"m.go": "m",
	})

	require.Equal(t, 3, c.Len())
	assert.Equal(t, "a.py", c.Units[0].Path)
	assert.Equal(t, "m.go", c.Units[1].Path)
	assert.Equal(t, "z.py", c.Units[2].Path)
	assert.Equal(t, []byte("a"), c.Units[0].Content)
}

func TestScanFiltersAndSorts(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "def main():\n    pass\n")
	writeFile(t, root, "sub/util.go", "package sub\n")
	writeFile(t, root, "README.md", "# not source\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, root, "__pycache__/main.pyc", "binary\n")

	corpus, err := NewScanner(config.DefaultConfig()).Scan(root)
	require.NoError(t, err)

	paths := make([]string, 0, corpus.Len())
	for _, u := range corpus.Units {
		paths = append(paths, u.Path)
	}
	assert.Equal(t, []string{"main.py", filepath.Join("sub", "util.go")}, paths)
}

func TestScanExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.js", "let x = 1\n")
	writeFile(t, root, "bundle.min.js", "let y=2\n")

	corpus, err := NewScanner(config.DefaultConfig()).Scan(root)
	require.NoError(t, err)

	require.Equal(t, 1, corpus.Len())
	assert.Equal(t, "app.js", corpus.Units[0].Path)
}

func TestScanHonorsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "generated.py\n")
	writeFile(t, root, "kept.py", "def kept():\n    pass\n")
	writeFile(t, root, "generated.py", "def gen():\n    pass\n")

	corpus, err := NewScanner(config.DefaultConfig()).Scan(root)
	require.NoError(t, err)

	require.Equal(t, 1, corpus.Len())
	assert.Equal(t, "kept.py", corpus.Units[0].Path)
}

func TestScanGitignoreDisabled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "generated.py\n")
	writeFile(t, root, "generated.py", "def gen():\n    pass\n")

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = false

	corpus, err := NewScanner(cfg).Scan(root)
	require.NoError(t, err)
	assert.Equal(t, 1, corpus.Len())
}

func TestScanEmptyTree(t *testing.T) {
	corpus, err := NewScanner(nil).Scan(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, corpus.Len())
	assert.Equal(t, 0, corpus.Skipped)
}
