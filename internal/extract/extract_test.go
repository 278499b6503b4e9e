package extract

import (
	"errors"
	"strings"
	"testing"

	"cruft/pkg/models"
	"cruft/pkg/parser"
	"cruft/pkg/source"
)

func extractString(t *testing.T, path, content string) *File {
	t.Helper()
	psr := parser.New()
	defer psr.Close()

	f, err := Extract(psr, source.Unit{Path: path, Content: []byte(content)})
	if err != nil {
		t.Fatalf("Extract(%s): %v", path, err)
	}
	return f
}

func hasDef(f *File, name, kind string) bool {
	for _, d := range f.Definitions {
		if d.Name == name && d.Kind == kind {
			return true
		}
	}
	return false
}

func TestExtractPythonDefinitions(t *testing.T) {
	content := `class Runner:
    def execute(self):
        pass

def standalone():
    pass

@app.route("/x")
def handler_fn():
    pass
`
	f := extractString(t, "f.py", content)

	if !hasDef(f, "Runner", models.ItemClass) {
		t.Error("missing class Runner")
	}
	if !hasDef(f, "standalone", models.ItemFunction) {
		t.Error("missing function standalone")
	}

	var execute, handler *Definition
	for i := range f.Definitions {
		switch f.Definitions[i].Name {
		case "execute":
			execute = &f.Definitions[i]
		case "handler_fn":
			handler = &f.Definitions[i]
		}
	}
	if execute == nil || !execute.InClass {
		t.Error("execute should be marked as a method")
	}
	if handler == nil {
		t.Fatal("missing handler_fn")
	}
	hasApp, hasRoute := false, false
	for _, tok := range handler.Decorators {
		if tok == "app" {
			hasApp = true
		}
		if tok == "route" {
			hasRoute = true
		}
	}
	if !hasApp || !hasRoute {
		t.Errorf("decorator tokens = %v, want app and route", handler.Decorators)
	}
}

func TestExtractPythonImports(t *testing.T) {
	content := `import os
import numpy as np
from collections import OrderedDict
from functools import reduce as fold
import a.b.c
`
	f := extractString(t, "f.py", content)

	want := map[string]bool{
		"os": false, "np": false, "OrderedDict": false, "fold": false, "a": false,
	}
	for _, imp := range f.Imports {
		if _, ok := want[imp.Name]; ok {
			want[imp.Name] = true
		} else {
			t.Errorf("unexpected import %q", imp.Name)
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing import %q", name)
		}
	}

	// Imported names are bindings, not uses.
	for name := range want {
		if _, used := f.UsedNames[name]; used {
			t.Errorf("import %q should not count as used", name)
		}
	}
}

func TestExtractPythonUsedNames(t *testing.T) {
	content := `def run(data):
    total = compute(data)
    return total.value
`
	f := extractString(t, "f.py", content)

	for _, name := range []string{"compute", "data", "total", "value"} {
		if _, ok := f.UsedNames[name]; !ok {
			t.Errorf("expected %q in used names", name)
		}
	}
	// The definition's own name is a binding, not a use.
	if _, ok := f.UsedNames["run"]; ok {
		t.Error("run should not count as used by its own definition")
	}
}

func TestExtractPythonChains(t *testing.T) {
	f := extractString(t, "f.py", "def q(df, cond):\n    return df.filter(cond).sort_values().head()\n")

	var longest []string
	for _, c := range f.Chains {
		if len(c.Tokens) > len(longest) {
			longest = c.Tokens
		}
	}

	want := []string{"df", ".filter()", ".sort_values()", ".head()"}
	if len(longest) != len(want) {
		t.Fatalf("chain tokens = %v, want %v", longest, want)
	}
	for i := range want {
		if longest[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, longest[i], want[i])
		}
	}
}

func TestExtractPythonStrings(t *testing.T) {
	content := `def emit(bus):
    bus.send("user_created")
    name = 'plain'
    tpl = f"skip {name}"
`
	f := extractString(t, "f.py", content)

	values := make(map[string]bool)
	for _, s := range f.Strings {
		values[s.Value] = true
	}
	if !values["user_created"] {
		t.Error("missing double-quoted literal")
	}
	if !values["plain"] {
		t.Error("missing single-quoted literal")
	}
	for v := range values {
		if strings.Contains(v, "skip") {
			t.Errorf("f-string %q should be excluded", v)
		}
	}
}

func TestExtractPythonUnreachable(t *testing.T) {
	content := `def a():
    return 1
    x = 2

def b():
    raise ValueError(msg)
    cleanup()
`
	f := extractString(t, "f.py", content)

	if len(f.Unreachable) != 2 {
		t.Fatalf("unreachable = %+v, want 2 entries", f.Unreachable)
	}
	if f.Unreachable[0].After != "return" || f.Unreachable[0].Line != 3 {
		t.Errorf("first = %+v, want return at line 3", f.Unreachable[0])
	}
	if f.Unreachable[1].After != "raise" || f.Unreachable[1].Line != 7 {
		t.Errorf("second = %+v, want raise at line 7", f.Unreachable[1])
	}
}

func TestExtractUnreachableNestedBlock(t *testing.T) {
	content := `def f(x):
    if x:
        return 1
        y = 2
    return 0
`
	f := extractString(t, "f.py", content)

	if len(f.Unreachable) != 1 {
		t.Fatalf("unreachable = %+v, want 1 entry", f.Unreachable)
	}
	if f.Unreachable[0].After != "return" || f.Unreachable[0].Line != 4 {
		t.Errorf("got %+v, want return at line 4", f.Unreachable[0])
	}
}

func TestExtractPythonModuleVariables(t *testing.T) {
	content := `TIMEOUT = 30

def f(a, b):
    local = a + b
    return local
`
	f := extractString(t, "f.py", content)

	if !hasDef(f, "TIMEOUT", models.ItemVariable) {
		t.Error("missing module variable TIMEOUT")
	}
	if hasDef(f, "local", models.ItemVariable) {
		t.Error("function locals must not be recorded as variables")
	}
}

func TestExtractGo(t *testing.T) {
	content := `package demo

import (
	"fmt"
	"strings"
)

type Widget struct {
	Name string
}

func Render(w Widget) string {
	return strings.ToUpper(w.Name)
}

func unused() {
	fmt.Println("x")
}
`
	f := extractString(t, "f.go", content)

	if !hasDef(f, "Widget", models.ItemClass) {
		t.Error("missing type Widget")
	}
	if !hasDef(f, "Render", models.ItemFunction) || !hasDef(f, "unused", models.ItemFunction) {
		t.Error("missing function definitions")
	}

	foundStrings := false
	for _, imp := range f.Imports {
		if imp.Name == "strings" {
			foundStrings = true
		}
	}
	if !foundStrings {
		t.Error("missing import strings")
	}

	if _, used := f.UsedNames["ToUpper"]; !used {
		t.Error("selector field ToUpper should count as used")
	}
	// Import paths are not string literals of interest.
	for _, s := range f.Strings {
		if s.Value == "fmt" || s.Value == "strings" {
			t.Errorf("import path %q leaked into strings", s.Value)
		}
	}
}

func TestExtractGoBlankAndDotImports(t *testing.T) {
	content := `package demo

import (
	_ "net/http/pprof"
	. "fmt"
	alias "strings"
)

func f(s string) string {
	return alias.ToLower(s)
}
`
	f := extractString(t, "f.go", content)

	for _, imp := range f.Imports {
		if imp.Name == "_" || imp.Name == "." {
			t.Errorf("blank/dot import recorded as %q", imp.Name)
		}
	}
	found := false
	for _, imp := range f.Imports {
		if imp.Name == "alias" {
			found = true
		}
	}
	if !found {
		t.Error("aliased import should still be recorded")
	}
}

func TestExtractGoPackageVariables(t *testing.T) {
	content := `package demo

var registry = map[string]int{}

func f() int {
	local := 1
	return local
}
`
	f := extractString(t, "f.go", content)

	if !hasDef(f, "registry", models.ItemVariable) {
		t.Error("missing package variable registry")
	}
	if hasDef(f, "local", models.ItemVariable) {
		t.Error("function locals must not be recorded as variables")
	}
}

func TestExtractTypeScript(t *testing.T) {
	content := `import { render, unusedHelper } from "./ui";
import React from "react";

export function draw(scene: Scene): void {
  return render(scene.objects.filter(visible).map(project).join());
}
`
	f := extractString(t, "f.ts", content)

	names := make(map[string]bool)
	for _, imp := range f.Imports {
		names[imp.Name] = true
	}
	if !names["render"] || !names["unusedHelper"] || !names["React"] {
		t.Errorf("imports = %+v, want render, unusedHelper, React", f.Imports)
	}

	if !hasDef(f, "draw", models.ItemFunction) {
		t.Error("missing function draw")
	}
	if _, used := f.UsedNames["render"]; !used {
		t.Error("render call should count as used")
	}
	if _, used := f.UsedNames["unusedHelper"]; used {
		t.Error("unusedHelper is never referenced")
	}

	var longest int
	for _, c := range f.Chains {
		if len(c.Tokens) > longest {
			longest = len(c.Tokens)
		}
	}
	if longest < 4 {
		t.Errorf("expected a chain through filter/map/join, longest = %d", longest)
	}
}

func TestExtractScriptTopLevelVariables(t *testing.T) {
	content := `export const retries = 3;
let counter = 0;

function tick(): void {
  const local = counter + 1;
  counter = local;
}
`
	f := extractString(t, "f.ts", content)

	if !hasDef(f, "retries", models.ItemVariable) {
		t.Error("missing exported const retries")
	}
	if !hasDef(f, "counter", models.ItemVariable) {
		t.Error("missing top-level let counter")
	}
	if hasDef(f, "local", models.ItemVariable) {
		t.Error("function locals must not be recorded as variables")
	}
}

func TestExtractParseError(t *testing.T) {
	psr := parser.New()
	defer psr.Close()

	_, err := Extract(psr, source.Unit{Path: "bad.py", Content: []byte("def broken(:\n")})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}

	_, err = Extract(psr, source.Unit{Path: "noext", Content: []byte("x")})
	if !errors.Is(err, ErrParse) {
		t.Fatalf("unknown language err = %v, want ErrParse", err)
	}
}
