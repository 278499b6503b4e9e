package parser

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.go", LangGo},
		{"script.py", LangPython},
		{"stubs.pyi", LangPython},
		{"app.ts", LangTypeScript},
		{"view.tsx", LangTSX},
		{"page.jsx", LangTSX},
		{"index.js", LangJavaScript},
		{"mod.mjs", LangJavaScript},
		{"UPPER.PY", LangPython},
		{"README.md", LangUnknown},
		{"noext", LangUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DetectLanguage(tt.path); got != tt.want {
				t.Errorf("DetectLanguage(%s) = %s, want %s", tt.path, got, tt.want)
			}
		})
	}
}

func TestParseAllLanguages(t *testing.T) {
	tests := []struct {
		name    string
		lang    Language
		content string
	}{
		{"go", LangGo, "package x\n\nfunc F() {}\n"},
		{"python", LangPython, "def f():\n    pass\n"},
		{"typescript", LangTypeScript, "function f(): void {}\n"},
		{"javascript", LangJavaScript, "function f() {}\n"},
		{"tsx", LangTSX, "const x = <div>hi</div>;\n"},
	}

	p := New()
	defer p.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Parse([]byte(tt.content), tt.lang, "test")
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			root := result.Tree.RootNode()
			if root == nil {
				t.Fatal("nil root node")
			}
			if root.HasError() {
				t.Errorf("unexpected syntax errors in %s", tt.name)
			}
		})
	}
}

func TestParseUnsupportedLanguage(t *testing.T) {
	p := New()
	defer p.Close()

	if _, err := p.Parse([]byte("x"), LangUnknown, "test"); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestGetNodeText(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte("def hello():\n    pass\n")
	result, err := p.Parse(src, LangPython, "f.py")
	if err != nil {
		t.Fatal(err)
	}

	root := result.Tree.RootNode()
	if got := GetNodeText(root, src); got != string(src) {
		t.Errorf("root text = %q", got)
	}
	if got := GetNodeText(nil, src); got != "" {
		t.Errorf("nil node text = %q", got)
	}
	if got := GetNodeText(root, src[:5]); got != "" {
		t.Errorf("out-of-bounds text = %q", got)
	}
}

func TestWalk(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte("def a():\n    pass\n\ndef b():\n    pass\n")
	result, err := p.Parse(src, LangPython, "f.py")
	if err != nil {
		t.Fatal(err)
	}

	visited := make(map[string]int)
	Walk(result.Tree.RootNode(), src, func(node *sitter.Node, _ []byte) bool {
		visited[node.Type()]++
		// Returning false stops descent, so nothing inside function
		// bodies is visited.
		return node.Type() != "function_definition"
	})

	if visited["function_definition"] != 2 {
		t.Errorf("function_definition visits = %d, want 2", visited["function_definition"])
	}
	if visited["identifier"] != 0 {
		t.Errorf("identifier visits = %d, want 0 (descent stopped)", visited["identifier"])
	}
}
