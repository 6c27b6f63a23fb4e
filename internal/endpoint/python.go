package endpoint

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/parser"
)

// Shared helpers for the Python framework extractors.

// pyDecorator describes one @decorator on a definition.
type pyDecorator struct {
	name string       // dotted name without arguments, e.g. app.route
	call *sitter.Node // the call node, nil for bare decorators
	node *sitter.Node
}

// pyDecorators lists the decorators of a decorated_definition parent.
func pyDecorators(def *sitter.Node, content []byte) []pyDecorator {
	wrapper := def.Parent()
	if wrapper == nil || wrapper.Kind() != "decorated_definition" {
		return nil
	}
	var out []pyDecorator
	for _, dec := range parser.ChildrenOfKind(wrapper, "decorator") {
		d := pyDecorator{node: dec}
		inner := dec.NamedChild(0)
		if inner != nil && inner.Kind() == "call" {
			d.call = inner
			d.name = parser.FieldText(inner, "function", content)
		} else {
			d.name = parser.NodeText(inner, content)
		}
		out = append(out, d)
	}
	return out
}

// lastSegment returns the attribute after the final dot of a dotted name.
func lastSegment(dotted string) string {
	if idx := strings.LastIndexByte(dotted, '.'); idx >= 0 {
		return dotted[idx+1:]
	}
	return dotted
}

// pyCallArgs splits a call's argument list into positional nodes and
// keyword name -> value nodes.
func pyCallArgs(call *sitter.Node, content []byte) ([]*sitter.Node, map[string]*sitter.Node) {
	var positional []*sitter.Node
	keywords := make(map[string]*sitter.Node)
	args := parser.FieldChild(call, "arguments")
	for _, arg := range parser.NamedChildren(args) {
		if arg.Kind() == "keyword_argument" {
			name := parser.FieldText(arg, "name", content)
			keywords[name] = parser.FieldChild(arg, "value")
			continue
		}
		positional = append(positional, arg)
	}
	return positional, keywords
}

// pyString unquotes a Python string node, tolerating triple quotes.
func pyString(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	text := parser.NodeText(node, content)
	for _, q := range []string{`"""`, "'''", `"`, "'"} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			return text[len(q) : len(text)-len(q)]
		}
	}
	return text
}

// pyStringList reads a list of string literals.
func pyStringList(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	for _, el := range parser.NamedChildren(node) {
		if el.Kind() == "string" {
			out = append(out, pyString(el, content))
		}
	}
	return out
}

// pyDocSummary returns the first docstring line of a definition body.
func pyDocSummary(def *sitter.Node, content []byte) (summary, full string) {
	body := parser.FieldChild(def, "body")
	if body == nil || body.NamedChildCount() == 0 {
		return "", ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return "", ""
	}
	str := parser.FirstChildOfKind(first, "string")
	if str == nil {
		return "", ""
	}
	full = strings.TrimSpace(pyString(str, content))
	summary = full
	if idx := strings.IndexByte(full, '\n'); idx >= 0 {
		summary = strings.TrimSpace(full[:idx])
	}
	return summary, full
}
