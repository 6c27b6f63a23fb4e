package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/parser"
)

// dartBuiltins are core types and names never recorded as usages.
var dartBuiltins = map[string]bool{
	"int": true, "double": true, "num": true, "bool": true, "String": true,
	"List": true, "Map": true, "Set": true, "Iterable": true, "Future": true,
	"Stream": true, "Object": true, "dynamic": true, "void": true,
	"Null": true, "Function": true, "Duration": true, "DateTime": true,
	"print": true, "identical": true, "override": true, "this": true,
	"super": true, "Exception": true, "Error": true, "StateError": true,
	"ArgumentError": true,
}

// DartExtractor extracts symbols, usages, and imports from Dart trees.
// Dart's grammar is optional; the extractor only runs when the parser
// registry reports the grammar available.
type DartExtractor struct{}

// NewDartExtractor returns the Dart extractor.
func NewDartExtractor() *DartExtractor {
	return &DartExtractor{}
}

func (e *DartExtractor) Language() string  { return "dart" }
func (e *DartExtractor) Aliases() []string { return nil }

func (e *DartExtractor) Extract(tree *sitter.Tree, filePath string, content []byte) (*FileRecords, error) {
	recs := &FileRecords{}
	root := tree.RootNode()

	e.collectTopLevel(root, content, filePath, recs)
	e.collectImports(root, content, recs)
	e.collectUsages(root, content, recs)
	return recs, nil
}

func (e *DartExtractor) collectTopLevel(root *sitter.Node, content []byte, filePath string, recs *FileRecords) {
	for _, node := range parser.NamedChildren(root) {
		switch node.Kind() {
		case "class_definition":
			e.addClass(node, content, filePath, recs)
		case "function_signature":
			e.addCallable(node, content, filePath, -1, "", KindFunction, recs)
		case "getter_signature":
			e.addCallable(node, content, filePath, -1, "", KindGetter, recs)
		case "setter_signature":
			e.addCallable(node, content, filePath, -1, "", KindSetter, recs)
		case "enum_declaration":
			e.addNamed(node, content, filePath, KindEnum, recs)
		case "mixin_declaration":
			e.addNamed(node, content, filePath, KindTrait, recs)
		}
	}
}

func (e *DartExtractor) addClass(node *sitter.Node, content []byte, filePath string, recs *FileRecords) {
	name := parser.NodeText(parser.FirstChildOfKind(node, "identifier"), content)
	if name == "" {
		return
	}
	sym := e.newSymbol(node, name, KindClass, filePath, -1, "", content)
	recs.Symbols = append(recs.Symbols, sym)
	classIdx := len(recs.Symbols) - 1

	body := parser.FirstChildOfKind(node, "class_body")
	for _, member := range parser.NamedChildren(body) {
		static := memberIsStatic(member)
		switch member.Kind() {
		case "method_signature":
			// A method signature wraps the concrete signature node.
			for _, inner := range parser.NamedChildren(member) {
				switch inner.Kind() {
				case "function_signature":
					e.addCallable(inner, content, filePath, classIdx, name, KindMethod, recs)
				case "getter_signature":
					e.addCallable(inner, content, filePath, classIdx, name, KindGetter, recs)
				case "setter_signature":
					e.addCallable(inner, content, filePath, classIdx, name, KindSetter, recs)
				case "factory_constructor_signature", "constructor_signature", "constant_constructor_signature":
					e.addConstructor(inner, content, filePath, classIdx, name, recs)
				}
				if static && len(recs.Symbols) > 0 {
					recs.Symbols[len(recs.Symbols)-1].IsStatic = true
				}
			}
		case "function_signature":
			e.addCallable(member, content, filePath, classIdx, name, KindMethod, recs)
			if static {
				recs.Symbols[len(recs.Symbols)-1].IsStatic = true
			}
		case "declaration":
			for _, inner := range parser.NamedChildren(member) {
				if inner.Kind() == "initialized_identifier_list" || inner.Kind() == "initialized_identifier" {
					for _, id := range parser.Descendants(inner, "identifier") {
						fieldName := parser.NodeText(id, content)
						if fieldName == "" {
							continue
						}
						field := e.newSymbol(member, fieldName, KindField, filePath, classIdx, name, content)
						field.IsStatic = static
						recs.Symbols = append(recs.Symbols, field)
					}
				}
				if inner.Kind() == "factory_constructor_signature" || inner.Kind() == "constructor_signature" || inner.Kind() == "constant_constructor_signature" {
					e.addConstructor(inner, content, filePath, classIdx, name, recs)
				}
			}
		}
	}
}

// addConstructor emits a constructor; Dart factory constructors are static
// by convention.
func (e *DartExtractor) addConstructor(node *sitter.Node, content []byte, filePath string, parent int, prefix string, recs *FileRecords) {
	name := parser.NodeText(parser.FirstChildOfKind(node, "identifier"), content)
	if name == "" {
		name = prefix
	}
	sym := e.newSymbol(node, name, KindConstructor, filePath, parent, prefix, content)
	sym.IsStatic = node.Kind() == "factory_constructor_signature"
	sym.Parameters = e.parameters(parser.FirstChildOfKind(node, "formal_parameter_list"), content)
	recs.Symbols = append(recs.Symbols, sym)
}

func (e *DartExtractor) addCallable(node *sitter.Node, content []byte, filePath string, parent int, prefix string, kind SymbolKind, recs *FileRecords) {
	name := parser.NodeText(parser.FirstChildOfKind(node, "identifier"), content)
	if name == "" {
		return
	}
	sym := e.newSymbol(node, name, kind, filePath, parent, prefix, content)
	sym.Parameters = e.parameters(parser.FirstChildOfKind(node, "formal_parameter_list"), content)
	// The body follows the signature; async shows up as a marker on it.
	if next := node.NextSibling(); next != nil && next.Kind() == "function_body" {
		sym.IsAsync = strings.Contains(parser.NodeText(next, content), "async")
		sym.EndLine = parser.EndLine(next)
	}
	recs.Symbols = append(recs.Symbols, sym)
}

func (e *DartExtractor) addNamed(node *sitter.Node, content []byte, filePath string, kind SymbolKind, recs *FileRecords) {
	name := parser.NodeText(parser.FirstChildOfKind(node, "identifier"), content)
	if name == "" {
		return
	}
	recs.Symbols = append(recs.Symbols, e.newSymbol(node, name, kind, filePath, -1, "", content))
}

func (e *DartExtractor) newSymbol(node *sitter.Node, name string, kind SymbolKind, filePath string, parent int, prefix string, content []byte) Symbol {
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

func memberIsStatic(member *sitter.Node) bool {
	if member == nil {
		return false
	}
	for i := uint(0); i < member.ChildCount(); i++ {
		child := member.Child(i)
		if child != nil && child.Kind() == "static" {
			return true
		}
	}
	return false
}

func (e *DartExtractor) parameters(params *sitter.Node, content []byte) []Parameter {
	var out []Parameter
	if params == nil {
		return nil
	}
	optional := false
	parser.Walk(params, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "optional_formal_parameters", "named_parameter_types":
			optional = true
		case "formal_parameter", "default_formal_parameter":
			id := parser.FirstChildOfKind(n, "identifier")
			if id == nil {
				ids := parser.Descendants(n, "identifier")
				if len(ids) > 0 {
					id = ids[len(ids)-1]
				}
			}
			name := parser.NodeText(id, content)
			if name == "" {
				return false
			}
			typeText := ""
			if t := parser.FirstChildOfKind(n, "type_identifier", "type"); t != nil {
				typeText = parser.NodeText(t, content)
			}
			out = append(out, Parameter{
				Position:       len(out),
				Name:           name,
				TypeAnnotation: typeText,
				IsOptional:     optional || n.Kind() == "default_formal_parameter",
			})
			return false
		}
		return true
	})
	return out
}

func (e *DartExtractor) collectImports(root *sitter.Node, content []byte, recs *FileRecords) {
	for _, node := range parser.Descendants(root, "import_or_export", "library_import") {
		spec := parser.FirstChildOfKind(node, "import_specification")
		if spec == nil {
			spec = node
		}
		uri := ""
		for _, str := range parser.Descendants(spec, "string_literal", "uri", "configurable_uri") {
			uri = strings.Trim(parser.NodeText(str, content), "'\"")
			if uri != "" {
				break
			}
		}
		if uri == "" {
			continue
		}
		imp := Import{
			Line:            parser.Line(node),
			ImportType:      "dart_import",
			ModuleSpecifier: uri,
		}
		// import 'x.dart' as alias;
		text := parser.NodeText(spec, content)
		if idx := strings.Index(text, " as "); idx >= 0 {
			alias := strings.TrimSuffix(strings.TrimSpace(text[idx+4:]), ";")
			if alias != "" {
				imp.Bindings = append(imp.Bindings, ImportBinding{ImportedName: "*", LocalName: alias})
			}
		}
		recs.Imports = append(recs.Imports, imp)
	}
}

func (e *DartExtractor) collectUsages(root *sitter.Node, content []byte, recs *FileRecords) {
	set := newUsageSet()
	parser.Walk(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_or_export", "library_import":
			return false
		case "identifier", "type_identifier":
		default:
			return true
		}

		name := parser.NodeText(n, content)
		if name == "" || dartBuiltins[name] || isDefinitionNameDart(n) {
			return true
		}
		set.add(Usage{Name: name, Line: parser.Line(n), Column: parser.Column(n), Kind: classifyUsageDart(n)})
		return true
	})
	recs.Usages = set.usages
}

func isDefinitionNameDart(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	switch p.Kind() {
	case "class_definition", "function_signature", "getter_signature",
		"setter_signature", "enum_declaration", "mixin_declaration",
		"factory_constructor_signature", "constructor_signature",
		"constant_constructor_signature",
		"formal_parameter", "initialized_identifier":
		return true
	}
	return false
}

func classifyUsageDart(n *sitter.Node) UsageKind {
	if insideKind(n, "superclass", 3) {
		return UsageExtend
	}
	if insideKind(n, "interfaces", 3) {
		return UsageImplement
	}
	if insideKind(n, "annotation", 2) {
		return UsageDecorator
	}
	if p := n.Parent(); p != nil {
		switch p.Kind() {
		case "assignment_expression":
			if first := p.Child(0); first != nil && nodeEqual(first, n) {
				return UsageWrite
			}
		}
	}
	// A name immediately followed by arguments is an invocation; on a
	// capitalized type identifier that is a constructor call.
	if next := n.NextSibling(); next != nil && (next.Kind() == "argument_part" || next.Kind() == "arguments" || next.Kind() == "selector") {
		if n.Kind() == "type_identifier" {
			return UsageInstantiate
		}
		if next.Kind() != "selector" {
			return UsageCall
		}
	}
	if n.Kind() == "type_identifier" {
		return UsageTypeRef
	}
	return UsageRead
}
