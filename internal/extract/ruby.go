package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/parser"
)

// rubyBuiltins are core names never recorded as usages.
var rubyBuiltins = map[string]bool{
	"puts": true, "print": true, "p": true, "pp": true, "require": true,
	"require_relative": true, "raise": true, "new": true, "initialize": true,
	"attr_accessor": true, "attr_reader": true, "attr_writer": true,
	"lambda": true, "proc": true, "loop": true, "gets": true, "freeze": true,
	"nil": true, "self": true, "super": true, "block_given?": true,
	"String": true, "Integer": true, "Float": true, "Array": true,
	"Hash": true, "Symbol": true, "Proc": true, "Kernel": true,
	"Object": true, "Module": true, "Class": true, "Struct": true,
	"StandardError": true, "ArgumentError": true, "RuntimeError": true,
	"include": true, "extend": true, "prepend": true, "private": true,
	"public": true, "protected": true, "module_function": true,
}

// RubyExtractor extracts symbols, usages, and imports from Ruby trees.
type RubyExtractor struct{}

// NewRubyExtractor returns the Ruby extractor.
func NewRubyExtractor() *RubyExtractor {
	return &RubyExtractor{}
}

func (e *RubyExtractor) Language() string  { return "ruby" }
func (e *RubyExtractor) Aliases() []string { return nil }

func (e *RubyExtractor) Extract(tree *sitter.Tree, filePath string, content []byte) (*FileRecords, error) {
	recs := &FileRecords{}
	root := tree.RootNode()

	e.collectSymbols(root, content, filePath, -1, "", false, recs)
	e.collectImports(root, content, recs)
	e.collectUsages(root, content, recs)
	return recs, nil
}

func (e *RubyExtractor) collectSymbols(node *sitter.Node, content []byte, filePath string, parent int, prefix string, insideClass bool, recs *FileRecords) {
	if node == nil {
		return
	}
	for _, child := range parser.NamedChildren(node) {
		switch child.Kind() {
		case "method":
			e.addMethod(child, content, filePath, parent, prefix, insideClass, false, recs)
		case "singleton_method":
			e.addMethod(child, content, filePath, parent, prefix, insideClass, true, recs)
		case "class":
			e.addContainer(child, content, filePath, parent, prefix, KindClass, recs)
		case "module":
			e.addContainer(child, content, filePath, parent, prefix, KindModule, recs)
		case "body_statement", "begin", "then", "else", "do", "block":
			e.collectSymbols(child, content, filePath, parent, prefix, insideClass, recs)
		}
	}
}

func (e *RubyExtractor) addMethod(node *sitter.Node, content []byte, filePath string, parent int, prefix string, insideClass, singleton bool, recs *FileRecords) {
	name := parser.FieldText(node, "name", content)
	if name == "" {
		return
	}
	kind := KindFunction
	if insideClass {
		kind = KindMethod
		if name == "initialize" {
			kind = KindConstructor
		}
	}
	sym := e.newSymbol(node, name, kind, filePath, parent, prefix, content)
	sym.IsStatic = singleton
	sym.Parameters = e.parameters(parser.FieldChild(node, "parameters"), content)
	recs.Symbols = append(recs.Symbols, sym)
}

func (e *RubyExtractor) addContainer(node *sitter.Node, content []byte, filePath string, parent int, prefix string, kind SymbolKind, recs *FileRecords) {
	name := parser.FieldText(node, "name", content)
	if name == "" {
		return
	}
	sym := e.newSymbol(node, name, kind, filePath, parent, prefix, content)
	recs.Symbols = append(recs.Symbols, sym)
	idx := len(recs.Symbols) - 1

	if body := parser.FieldChild(node, "body"); body != nil {
		e.collectSymbols(body, content, filePath, idx, sym.QualifiedName, kind == KindClass, recs)
	} else {
		e.collectSymbols(node, content, filePath, idx, sym.QualifiedName, kind == KindClass, recs)
	}
}

func (e *RubyExtractor) newSymbol(node *sitter.Node, name string, kind SymbolKind, filePath string, parent int, prefix string, content []byte) Symbol {
	qualified := name
	if prefix != "" {
		qualified = prefix + "." + name
	}
	visibility := "public"
	if strings.HasPrefix(name, "_") {
		visibility = "private"
	}
	return Symbol{
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		FilePath:      filePath,
		StartLine:     parser.Line(node),
		EndLine:       parser.EndLine(node),
		Parent:        parent,
		Visibility:    visibility,
		IsExported:    !strings.HasPrefix(name, "_"),
		ContentHash:   ContentHash(content[node.StartByte():node.EndByte()]),
	}
}

func (e *RubyExtractor) parameters(params *sitter.Node, content []byte) []Parameter {
	var out []Parameter
	for _, p := range parser.NamedChildren(params) {
		param := Parameter{Position: len(out)}
		switch p.Kind() {
		case "identifier":
			param.Name = parser.NodeText(p, content)
		case "optional_parameter", "keyword_parameter":
			param.Name = parser.FieldText(p, "name", content)
			param.IsOptional = true
		case "splat_parameter", "hash_splat_parameter", "block_parameter":
			param.Name = parser.NodeText(p, content)
			param.IsOptional = true
		default:
			continue
		}
		if param.Name == "" {
			continue
		}
		out = append(out, param)
	}
	return out
}

// collectImports finds require and require_relative calls.
func (e *RubyExtractor) collectImports(root *sitter.Node, content []byte, recs *FileRecords) {
	for _, call := range parser.Descendants(root, "call") {
		method := parser.FieldText(call, "method", content)
		if method != "require" && method != "require_relative" {
			continue
		}
		if parser.FieldChild(call, "receiver") != nil {
			continue
		}
		args := parser.FieldChild(call, "arguments")
		spec := ""
		for _, arg := range parser.NamedChildren(args) {
			if arg.Kind() == "string" {
				spec = stringLiteral(arg, content)
				break
			}
		}
		if spec == "" {
			continue
		}
		recs.Imports = append(recs.Imports, Import{
			Line:            parser.Line(call),
			ImportType:      method,
			ModuleSpecifier: spec,
		})
	}
}

func (e *RubyExtractor) collectUsages(root *sitter.Node, content []byte, recs *FileRecords) {
	set := newUsageSet()
	parser.Walk(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "identifier", "constant":
		default:
			return true
		}

		name := parser.NodeText(n, content)
		if name == "" || rubyBuiltins[name] || isDefinitionNameRb(n) {
			return true
		}
		kind, ok := classifyUsageRb(n, content)
		if !ok {
			return true
		}
		set.add(Usage{Name: name, Line: parser.Line(n), Column: parser.Column(n), Kind: kind})
		return true
	})
	recs.Usages = set.usages
}

func isDefinitionNameRb(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	switch p.Kind() {
	case "method", "singleton_method", "class", "module":
		name := parser.FieldChild(p, "name")
		return name != nil && nodeEqual(name, n)
	case "method_parameters", "optional_parameter", "keyword_parameter",
		"splat_parameter", "hash_splat_parameter", "block_parameter",
		"block_parameters":
		return true
	}
	return false
}

func classifyUsageRb(n *sitter.Node, content []byte) (UsageKind, bool) {
	p := n.Parent()
	if p == nil {
		return UsageRead, true
	}

	switch p.Kind() {
	case "superclass":
		return UsageExtend, true
	case "call":
		method := parser.FieldChild(p, "method")
		receiver := parser.FieldChild(p, "receiver")
		if method != nil && nodeEqual(method, n) {
			return UsageCall, true
		}
		// Receiver of X.new is an instantiation of X.
		if receiver != nil && nodeEqual(receiver, n) && parser.NodeText(method, content) == "new" {
			return UsageInstantiate, true
		}
	case "assignment", "operator_assignment":
		if left := parser.FieldChild(p, "left"); left != nil && nodeEqual(left, n) {
			return UsageWrite, true
		}
	}
	return UsageRead, true
}
