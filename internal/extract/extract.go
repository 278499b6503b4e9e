// Package extract turns one source unit into a neutral structural
// record: definitions, imports, referenced names, call chains, string
// literals, and unreachable statements. Downstream analyzers consume
// these records only; tree-sitter never leaks past this package.
package extract

import (
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"cruft/pkg/models"
	"cruft/pkg/parser"
	"cruft/pkg/source"
)

// ErrParse marks a unit that could not be structurally extracted. The
// unit is skipped; the run continues.
var ErrParse = errors.New("unit not parseable")

// Definition is a function, class, or module-level variable definition
// found in a unit.
type Definition struct {
	Name string
	Kind string // models.ItemFunction, models.ItemClass, or models.ItemVariable
	Line uint32
	// Decorators holds the flattened name tokens of every decorator or
	// annotation on the definition ("@app.route(...)" yields "app" and
	// "route").
	Decorators []string
	// InClass is set for method definitions nested in a class body.
	InClass bool
}

// Import is one imported local name.
type Import struct {
	Name string
	Line uint32
}

// Chain is a method/attribute call chain, tokens ordered left to right.
type Chain struct {
	Tokens []string
	Line   uint32
}

// StringLit is one plain string literal.
type StringLit struct {
	Value string
	Line  uint32
}

// Unreachable marks a statement directly following a terminal control
// statement within the same block.
type Unreachable struct {
	Line  uint32
	After string // "return", "raise", or "throw"
}

// File is the full structural record for one unit.
type File struct {
	Path        string
	Language    parser.Language
	Definitions []Definition
	Imports     []Import
	UsedNames   map[string]struct{}
	Chains      []Chain
	Strings     []StringLit
	Unreachable []Unreachable
}

// Extract parses a unit and builds its structural record. A unit whose
// tree contains syntax errors yields a nil record and an error wrapping
// ErrParse.
func Extract(psr *parser.Parser, unit source.Unit) (*File, error) {
	lang := parser.DetectLanguage(unit.Path)
	if lang == parser.LangUnknown {
		return nil, fmt.Errorf("%w: %s: unknown language", ErrParse, unit.Path)
	}

	result, err := psr.Parse(unit.Content, lang, unit.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, unit.Path, err)
	}

	root := result.Tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("%w: %s: syntax errors", ErrParse, unit.Path)
	}

	f := &File{
		Path:      unit.Path,
		Language:  lang,
		UsedNames: make(map[string]struct{}),
	}

	ex := &extractor{file: f, source: result.Source, lang: lang}
	ex.walk(root, false)

	return f, nil
}

// extractor carries traversal state for one unit.
type extractor struct {
	file   *File
	source []byte
	lang   parser.Language
}

// walk recursively visits nodes, tracking whether the current scope is
// a class body.
func (ex *extractor) walk(node *sitter.Node, inClass bool) {
	nodeType := node.Type()

	switch ex.lang {
	case parser.LangPython:
		ex.visitPython(node, nodeType, inClass)
	case parser.LangGo:
		ex.visitGo(node, nodeType)
	case parser.LangTypeScript, parser.LangTSX, parser.LangJavaScript:
		ex.visitScript(node, nodeType, inClass)
	}

	childInClass := inClass || isClassBody(nodeType, ex.lang)
	for i := range int(node.ChildCount()) {
		ex.walk(node.Child(i), childInClass)
	}
}

// isClassBody reports whether descending past this node enters a class
// body scope.
func isClassBody(nodeType string, lang parser.Language) bool {
	switch lang {
	case parser.LangPython:
		return nodeType == "class_definition"
	case parser.LangTypeScript, parser.LangTSX, parser.LangJavaScript:
		return nodeType == "class_declaration" || nodeType == "class"
	}
	return false
}

func (ex *extractor) text(node *sitter.Node) string {
	return parser.GetNodeText(node, ex.source)
}

func line(node *sitter.Node) uint32 {
	return node.StartPoint().Row + 1
}

// --- Python -------------------------------------------------------------

func (ex *extractor) visitPython(node *sitter.Node, nodeType string, inClass bool) {
	switch nodeType {
	case "function_definition":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			ex.file.Definitions = append(ex.file.Definitions, Definition{
				Name:       ex.text(nameNode),
				Kind:       models.ItemFunction,
				Line:       line(node),
				Decorators: pythonDecorators(node, ex.source),
				InClass:    inClass,
			})
		}

	case "block":
		ex.checkUnreachable(node)

	case "assignment":
		// Module-level assignments to a plain name define a variable;
		// nested assignments are locals and stay out of the table.
		if left := node.ChildByFieldName("left"); left != nil && left.Type() == "identifier" {
			if stmt := node.Parent(); stmt != nil && stmt.Type() == "expression_statement" {
				if top := stmt.Parent(); top != nil && top.Type() == "module" {
					ex.file.Definitions = append(ex.file.Definitions, Definition{
						Name: ex.text(left),
						Kind: models.ItemVariable,
						Line: line(node),
					})
				}
			}
		}

	case "class_definition":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			ex.file.Definitions = append(ex.file.Definitions, Definition{
				Name:       ex.text(nameNode),
				Kind:       models.ItemClass,
				Line:       line(node),
				Decorators: pythonDecorators(node, ex.source),
				InClass:    inClass,
			})
		}

	case "import_statement":
		// import a.b, c as d
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			switch child.Type() {
			case "dotted_name":
				name := ex.text(child)
				if dot := strings.IndexByte(name, '.'); dot >= 0 {
					name = name[:dot]
				}
				ex.addImport(name, line(node))
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					ex.addImport(ex.text(alias), line(node))
				}
			}
		}

	case "import_from_statement":
		// from m import a as b, c
		sawModule := false
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			switch child.Type() {
			case "dotted_name", "relative_import":
				if !sawModule {
					sawModule = true
					continue
				}
				ex.addImport(ex.text(child), line(node))
			case "aliased_import":
				if alias := child.ChildByFieldName("alias"); alias != nil {
					ex.addImport(ex.text(alias), line(node))
				}
			case "wildcard_import":
				// from m import * binds nothing traceable
			}
		}

	case "identifier":
		if isPythonLoad(node) {
			ex.file.UsedNames[ex.text(node)] = struct{}{}
		}

	case "attribute":
		// Attribute names count as used wherever they appear; this is the
		// syntactic over-approximation that keeps false positives down.
		if attr := node.ChildByFieldName("attribute"); attr != nil {
			ex.file.UsedNames[ex.text(attr)] = struct{}{}
		}

	case "call":
		if tokens := pythonChain(node, ex.source); len(tokens) > 0 {
			ex.file.Chains = append(ex.file.Chains, Chain{Tokens: tokens, Line: line(node)})
		}

	case "string":
		if val, ok := pythonStringValue(ex.text(node)); ok {
			ex.file.Strings = append(ex.file.Strings, StringLit{Value: val, Line: line(node)})
		}
	}
}

// isPythonLoad filters out identifiers that are binding sites rather
// than reads: definition names, import aliases, assignment targets, and
// parameters.
func isPythonLoad(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return true
	}

	switch parent.Type() {
	case "function_definition", "class_definition":
		return !nodeEq(parent.ChildByFieldName("name"), node)
	case "assignment", "augmented_assignment":
		return !nodeEq(parent.ChildByFieldName("left"), node)
	case "parameters", "lambda_parameters":
		return false
	case "typed_parameter", "default_parameter", "keyword_argument":
		// First child / name field is the binding.
		return !nodeEq(parent.ChildByFieldName("name"), node) && !nodeEq(parent.Child(0), node)
	case "aliased_import", "as_pattern_target":
		return false
	case "dotted_name":
		// Dotted names occur in import statements; those are bindings.
		return false
	case "for_statement":
		return !nodeEq(parent.ChildByFieldName("left"), node)
	case "attribute":
		// The attribute field is recorded separately.
		return nodeEq(parent.ChildByFieldName("object"), node)
	}
	return true
}

func nodeEq(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// pythonDecorators collects flattened decorator tokens from a preceding
// decorated_definition wrapper.
func pythonDecorators(node *sitter.Node, src []byte) []string {
	parent := node.Parent()
	if parent == nil || parent.Type() != "decorated_definition" {
		return nil
	}

	var tokens []string
	for i := range int(parent.ChildCount()) {
		child := parent.Child(i)
		if child.Type() != "decorator" {
			continue
		}
		tokens = append(tokens, decoratorTokens(parser.GetNodeText(child, src))...)
	}
	return tokens
}

// decoratorTokens flattens "@app.route(...)" into {"app", "route"} so
// suppression can match on the name, the attribute, or the base.
func decoratorTokens(text string) []string {
	text = strings.TrimPrefix(strings.TrimSpace(text), "@")
	if paren := strings.IndexByte(text, '('); paren >= 0 {
		text = text[:paren]
	}
	parts := strings.Split(text, ".")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}

// pythonChain builds the outward-in chain for a call node, reversed to
// read left to right. Mirrors the shapes: name(), .attr(), .attr, [...].
func pythonChain(node *sitter.Node, src []byte) []string {
	var chain []string
	current := node

	for current != nil {
		switch current.Type() {
		case "call":
			fn := current.ChildByFieldName("function")
			if fn == nil {
				current = nil
				break
			}
			switch fn.Type() {
			case "attribute":
				if attr := fn.ChildByFieldName("attribute"); attr != nil {
					chain = append(chain, "."+parser.GetNodeText(attr, src)+"()")
				}
				current = fn.ChildByFieldName("object")
			case "identifier":
				chain = append(chain, parser.GetNodeText(fn, src)+"()")
				current = nil
			default:
				current = nil
			}
		case "attribute":
			if attr := current.ChildByFieldName("attribute"); attr != nil {
				chain = append(chain, "."+parser.GetNodeText(attr, src))
			}
			current = current.ChildByFieldName("object")
		case "identifier":
			chain = append(chain, parser.GetNodeText(current, src))
			current = nil
		case "subscript":
			chain = append(chain, "[...]")
			current = current.ChildByFieldName("value")
		default:
			current = nil
		}
	}

	reverse(chain)
	return chain
}

// pythonStringValue strips prefixes and quotes from a string literal.
// f-strings are skipped; interpolation makes them non-constant.
func pythonStringValue(text string) (string, bool) {
	prefix := ""
	for len(text) > 0 && text[0] != '"' && text[0] != '\'' {
		prefix += strings.ToLower(string(text[0]))
		text = text[1:]
	}
	if strings.Contains(prefix, "f") || strings.Contains(prefix, "b") {
		return "", false
	}
	return unquote(text)
}

// --- Go -----------------------------------------------------------------

func (ex *extractor) visitGo(node *sitter.Node, nodeType string) {
	switch nodeType {
	case "function_declaration", "method_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			ex.file.Definitions = append(ex.file.Definitions, Definition{
				Name:    ex.text(nameNode),
				Kind:    models.ItemFunction,
				Line:    line(node),
				InClass: nodeType == "method_declaration",
			})
		}

	case "block":
		ex.checkUnreachable(node)

	case "var_spec":
		// Package-level vars only; function locals are out of scope.
		if decl := node.Parent(); decl != nil {
			if top := decl.Parent(); top != nil && top.Type() == "source_file" {
				for i := range int(node.ChildCount()) {
					child := node.Child(i)
					if child.Type() == "identifier" {
						ex.file.Definitions = append(ex.file.Definitions, Definition{
							Name: ex.text(child),
							Kind: models.ItemVariable,
							Line: line(node),
						})
					}
				}
			}
		}

	case "type_spec":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			ex.file.Definitions = append(ex.file.Definitions, Definition{
				Name: ex.text(nameNode),
				Kind: models.ItemClass,
				Line: line(node),
			})
		}

	case "import_spec":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			// Blank imports exist for init side effects and dot imports
			// bind their names directly; neither has a local name whose
			// use can be tracked.
			if name := ex.text(nameNode); name != "_" && name != "." {
				ex.addImport(name, line(node))
			}
		} else if pathNode := node.ChildByFieldName("path"); pathNode != nil {
			if path, ok := unquote(ex.text(pathNode)); ok {
				if slash := strings.LastIndexByte(path, '/'); slash >= 0 {
					path = path[slash+1:]
				}
				ex.addImport(path, line(node))
			}
		}

	case "identifier", "type_identifier":
		if isGoLoad(node) {
			ex.file.UsedNames[ex.text(node)] = struct{}{}
		}

	case "field_identifier":
		ex.file.UsedNames[ex.text(node)] = struct{}{}

	case "call_expression":
		if tokens := scriptChain(node, ex.source, goChainFields); len(tokens) > 0 {
			ex.file.Chains = append(ex.file.Chains, Chain{Tokens: tokens, Line: line(node)})
		}

	case "interpreted_string_literal":
		if parent := node.Parent(); parent != nil && parent.Type() == "import_spec" {
			return
		}
		if val, ok := unquote(ex.text(node)); ok {
			ex.file.Strings = append(ex.file.Strings, StringLit{Value: val, Line: line(node)})
		}
	}
}

func isGoLoad(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "function_declaration", "method_declaration", "type_spec":
		return !nodeEq(parent.ChildByFieldName("name"), node)
	case "parameter_declaration", "variadic_parameter_declaration":
		return !nodeEq(parent.ChildByFieldName("name"), node)
	case "short_var_declaration":
		return !nodeEq(parent.ChildByFieldName("left"), node)
	case "var_spec", "const_spec":
		return !nodeEq(parent.ChildByFieldName("name"), node)
	case "selector_expression":
		return nodeEq(parent.ChildByFieldName("operand"), node)
	}
	return true
}

// --- TypeScript / JavaScript --------------------------------------------

func (ex *extractor) visitScript(node *sitter.Node, nodeType string, inClass bool) {
	switch nodeType {
	case "function_declaration", "generator_function_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			ex.file.Definitions = append(ex.file.Definitions, Definition{
				Name:       ex.text(nameNode),
				Kind:       models.ItemFunction,
				Line:       line(node),
				Decorators: scriptDecorators(node, ex.source),
				InClass:    inClass,
			})
		}

	case "statement_block":
		ex.checkUnreachable(node)

	case "variable_declarator":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil && nameNode.Type() == "identifier" && isTopLevelDeclarator(node) {
			ex.file.Definitions = append(ex.file.Definitions, Definition{
				Name: ex.text(nameNode),
				Kind: models.ItemVariable,
				Line: line(node),
			})
		}

	case "method_definition":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			ex.file.Definitions = append(ex.file.Definitions, Definition{
				Name:       ex.text(nameNode),
				Kind:       models.ItemFunction,
				Line:       line(node),
				Decorators: scriptDecorators(node, ex.source),
				InClass:    true,
			})
		}

	case "class_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			ex.file.Definitions = append(ex.file.Definitions, Definition{
				Name:       ex.text(nameNode),
				Kind:       models.ItemClass,
				Line:       line(node),
				Decorators: scriptDecorators(node, ex.source),
				InClass:    inClass,
			})
		}

	case "import_specifier":
		if alias := node.ChildByFieldName("alias"); alias != nil {
			ex.addImport(ex.text(alias), line(node))
		} else if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			ex.addImport(ex.text(nameNode), line(node))
		}

	case "import_clause":
		// Default import: the bare identifier child.
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			if child.Type() == "identifier" {
				ex.addImport(ex.text(child), line(node))
			}
		}

	case "identifier":
		if isScriptLoad(node) {
			ex.file.UsedNames[ex.text(node)] = struct{}{}
		}

	case "property_identifier":
		if parent := node.Parent(); parent != nil && parent.Type() == "member_expression" {
			ex.file.UsedNames[ex.text(node)] = struct{}{}
		}

	case "call_expression":
		if tokens := scriptChain(node, ex.source, jsChainFields); len(tokens) > 0 {
			ex.file.Chains = append(ex.file.Chains, Chain{Tokens: tokens, Line: line(node)})
		}

	case "string":
		if parent := node.Parent(); parent != nil && parent.Type() == "import_statement" {
			return
		}
		if val, ok := unquote(ex.text(node)); ok {
			ex.file.Strings = append(ex.file.Strings, StringLit{Value: val, Line: line(node)})
		}
	}
}

// isTopLevelDeclarator reports whether a declarator's declaration sits
// directly in the program body, possibly behind an export.
func isTopLevelDeclarator(node *sitter.Node) bool {
	decl := node.Parent()
	if decl == nil {
		return false
	}
	top := decl.Parent()
	if top == nil {
		return false
	}
	if top.Type() == "export_statement" {
		top = top.Parent()
	}
	return top != nil && top.Type() == "program"
}

func isScriptLoad(node *sitter.Node) bool {
	parent := node.Parent()
	if parent == nil {
		return true
	}
	switch parent.Type() {
	case "function_declaration", "generator_function_declaration", "class_declaration", "method_definition":
		return !nodeEq(parent.ChildByFieldName("name"), node)
	case "variable_declarator":
		return !nodeEq(parent.ChildByFieldName("name"), node)
	case "formal_parameters", "required_parameter", "optional_parameter":
		return false
	case "import_specifier", "import_clause", "namespace_import":
		return false
	case "member_expression":
		return nodeEq(parent.ChildByFieldName("object"), node)
	}
	return true
}

// scriptDecorators collects decorator tokens preceding a TS class or
// method definition.
func scriptDecorators(node *sitter.Node, src []byte) []string {
	var tokens []string
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		if child.Type() == "decorator" {
			tokens = append(tokens, decoratorTokens(parser.GetNodeText(child, src))...)
		}
	}
	// Decorators may also be siblings preceding the definition.
	for prev := node.PrevSibling(); prev != nil && prev.Type() == "decorator"; prev = prev.PrevSibling() {
		tokens = append(tokens, decoratorTokens(parser.GetNodeText(prev, src))...)
	}
	return tokens
}

// chainFields maps the grammar field names used when unwinding a chain.
type chainFields struct {
	call, member, index      string
	fnField, objField, prop string
}

var goChainFields = chainFields{
	call: "call_expression", member: "selector_expression", index: "index_expression",
	fnField: "function", objField: "operand", prop: "field",
}

var jsChainFields = chainFields{
	call: "call_expression", member: "member_expression", index: "subscript_expression",
	fnField: "function", objField: "object", prop: "property",
}

// scriptChain unwinds call/member chains for Go and TS/JS grammars.
func scriptChain(node *sitter.Node, src []byte, fields chainFields) []string {
	var chain []string
	current := node

	for current != nil {
		switch current.Type() {
		case fields.call:
			fn := current.ChildByFieldName(fields.fnField)
			if fn == nil {
				current = nil
				break
			}
			switch fn.Type() {
			case fields.member:
				if prop := fn.ChildByFieldName(fields.prop); prop != nil {
					chain = append(chain, "."+parser.GetNodeText(prop, src)+"()")
				}
				current = fn.ChildByFieldName(fields.objField)
			case "identifier":
				chain = append(chain, parser.GetNodeText(fn, src)+"()")
				current = nil
			default:
				current = nil
			}
		case fields.member:
			if prop := current.ChildByFieldName(fields.prop); prop != nil {
				chain = append(chain, "."+parser.GetNodeText(prop, src))
			}
			current = current.ChildByFieldName(fields.objField)
		case "identifier", "type_identifier":
			chain = append(chain, parser.GetNodeText(current, src))
			current = nil
		case fields.index:
			chain = append(chain, "[...]")
			current = current.ChildByFieldName(fields.objField)
		default:
			current = nil
		}
	}

	reverse(chain)
	return chain
}

// --- shared -------------------------------------------------------------

func (ex *extractor) addImport(name string, ln uint32) {
	if name == "" || name == "*" {
		return
	}
	ex.file.Imports = append(ex.file.Imports, Import{Name: name, Line: ln})
}

// checkUnreachable flags the first statement after a terminal control
// statement in each block. One finding per block; this deliberately
// fires even inside exception-handling branches, an accepted heuristic
// limitation.
func (ex *extractor) checkUnreachable(body *sitter.Node) {
	if body == nil {
		return
	}

	terminator := ""
	for i := range int(body.ChildCount()) {
		child := body.Child(i)
		t := child.Type()
		if t == "{" || t == "}" || t == "comment" || t == ":" {
			continue
		}

		if terminator != "" {
			ex.file.Unreachable = append(ex.file.Unreachable, Unreachable{
				Line:  line(child),
				After: terminator,
			})
			break
		}

		switch t {
		case "return_statement":
			terminator = "return"
		case "raise_statement":
			terminator = "raise"
		case "throw_statement":
			terminator = "throw"
		}
	}
}

// unquote strips one layer of matching quotes from a literal.
func unquote(text string) (string, bool) {
	if len(text) >= 6 && (strings.HasPrefix(text, `"""`) || strings.HasPrefix(text, "'''")) {
		return text[3 : len(text)-3], true
	}
	if len(text) >= 2 {
		first, last := text[0], text[len(text)-1]
		if first == last && (first == '"' || first == '\'' || first == '`') {
			return text[1 : len(text)-1], true
		}
	}
	return "", false
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
