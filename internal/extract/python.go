package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/parser"
)

// pyBuiltins are names never recorded as usages.
var pyBuiltins = map[string]bool{
	"print": true, "len": true, "range": true, "str": true, "int": true,
	"float": true, "bool": true, "list": true, "dict": true, "set": true,
	"tuple": true, "type": true, "isinstance": true, "issubclass": true,
	"super": true, "object": true, "self": true, "cls": true, "None": true,
	"True": true, "False": true, "Exception": true, "ValueError": true,
	"TypeError": true, "KeyError": true, "RuntimeError": true,
	"enumerate": true, "zip": true, "map": true, "filter": true,
	"sorted": true, "reversed": true, "open": true, "repr": true,
	"hasattr": true, "getattr": true, "setattr": true, "property": true,
	"staticmethod": true, "classmethod": true, "abs": true, "min": true,
	"max": true, "sum": true, "any": true, "all": true, "id": true,
	"hash": true, "iter": true, "next": true, "vars": true, "bytes": true,
}

// PythonExtractor extracts symbols, usages, and imports from Python trees.
type PythonExtractor struct{}

// NewPythonExtractor returns the Python extractor.
func NewPythonExtractor() *PythonExtractor {
	return &PythonExtractor{}
}

func (e *PythonExtractor) Language() string  { return "python" }
func (e *PythonExtractor) Aliases() []string { return nil }

func (e *PythonExtractor) Extract(tree *sitter.Tree, filePath string, content []byte) (*FileRecords, error) {
	recs := &FileRecords{}
	root := tree.RootNode()

	e.collectSymbols(root, content, filePath, -1, "", false, recs)
	e.collectImports(root, content, recs)
	e.collectUsages(root, content, recs)
	return recs, nil
}

// collectSymbols walks the module. insideClass flips def kind from function
// to method.
func (e *PythonExtractor) collectSymbols(node *sitter.Node, content []byte, filePath string, parent int, prefix string, insideClass bool, recs *FileRecords) {
	for _, stmt := range parser.NamedChildren(node) {
		target := stmt
		var decorators []*sitter.Node
		if stmt.Kind() == "decorated_definition" {
			decorators = parser.ChildrenOfKind(stmt, "decorator")
			target = parser.FieldChild(stmt, "definition")
			if target == nil {
				continue
			}
		}

		switch target.Kind() {
		case "function_definition":
			e.addFunction(target, decorators, content, filePath, parent, prefix, insideClass, recs)
		case "class_definition":
			e.addClass(target, content, filePath, parent, prefix, recs)
		case "expression_statement", "if_statement", "try_statement", "with_statement":
			// Module-level assignments inside these are not definitions we
			// index; defs nested in them still are.
			e.collectSymbols(target, content, filePath, parent, prefix, insideClass, recs)
		case "block":
			e.collectSymbols(target, content, filePath, parent, prefix, insideClass, recs)
		}
	}
}

func (e *PythonExtractor) addFunction(node *sitter.Node, decorators []*sitter.Node, content []byte, filePath string, parent int, prefix string, insideClass bool, recs *FileRecords) {
	name := parser.FieldText(node, "name", content)
	if name == "" {
		return
	}
	kind := KindFunction
	if insideClass {
		kind = KindMethod
		if name == "__init__" {
			kind = KindConstructor
		}
	}

	sym := e.newSymbol(node, name, kind, filePath, parent, prefix, content)
	sym.IsAsync = hasKeywordChild(node, "async")
	sym.ReturnType = parser.FieldText(node, "return_type", content)
	sym.Parameters = e.parameters(parser.FieldChild(node, "parameters"), content)

	for _, dec := range decorators {
		switch decoratorName(dec, content) {
		case "staticmethod", "classmethod":
			sym.IsStatic = true
		case "property":
			sym.Kind = KindGetter
		}
	}
	if doc := pythonDocstring(node, content); doc != nil {
		sym.Docstring = doc
	}
	recs.Symbols = append(recs.Symbols, sym)
}

func (e *PythonExtractor) addClass(node *sitter.Node, content []byte, filePath string, parent int, prefix string, recs *FileRecords) {
	name := parser.FieldText(node, "name", content)
	if name == "" {
		return
	}
	sym := e.newSymbol(node, name, KindClass, filePath, parent, prefix, content)
	if doc := pythonDocstring(node, content); doc != nil {
		sym.Docstring = doc
	}
	recs.Symbols = append(recs.Symbols, sym)
	classIdx := len(recs.Symbols) - 1

	if body := parser.FieldChild(node, "body"); body != nil {
		e.collectSymbols(body, content, filePath, classIdx, sym.QualifiedName, true, recs)
	}
}

func (e *PythonExtractor) newSymbol(node *sitter.Node, name string, kind SymbolKind, filePath string, parent int, prefix string, content []byte) Symbol {
	qualified := name
	if prefix != "" {
		qualified = prefix + "." + name
	}
	return Symbol{
		Name:          name,
		QualifiedName: qualified,
		Kind:          kind,
		FilePath:      filePath,
		StartLine:     parser.Line(node),
		EndLine:       parser.EndLine(node),
		Parent:        parent,
		Visibility:    pythonVisibility(name),
		IsExported:    !strings.HasPrefix(name, "_"),
		ContentHash:   ContentHash(content[node.StartByte():node.EndByte()]),
	}
}

// pythonVisibility follows naming conventions: _name is private, __dunder__
// is public, __name (not dunder) is private.
func pythonVisibility(name string) string {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return "public"
	}
	if strings.HasPrefix(name, "_") {
		return "private"
	}
	return "public"
}

func (e *PythonExtractor) parameters(params *sitter.Node, content []byte) []Parameter {
	var out []Parameter
	for _, p := range parser.NamedChildren(params) {
		param := Parameter{Position: len(out)}
		switch p.Kind() {
		case "identifier":
			param.Name = parser.NodeText(p, content)
		case "typed_parameter":
			param.Name = parser.NodeText(p.NamedChild(0), content)
			param.TypeAnnotation = parser.FieldText(p, "type", content)
		case "default_parameter":
			param.Name = parser.FieldText(p, "name", content)
			param.IsOptional = true
		case "typed_default_parameter":
			param.Name = parser.FieldText(p, "name", content)
			param.TypeAnnotation = parser.FieldText(p, "type", content)
			param.IsOptional = true
		case "list_splat_pattern", "dictionary_splat_pattern":
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

// pythonDocstring reads the first statement of the body when it is a bare
// string literal.
func pythonDocstring(def *sitter.Node, content []byte) *Docstring {
	body := parser.FieldChild(def, "body")
	if body == nil || body.NamedChildCount() == 0 {
		return nil
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" {
		return nil
	}
	str := parser.FirstChildOfKind(first, "string")
	if str == nil {
		return nil
	}
	raw := parser.NodeText(str, content)
	text := strings.TrimSpace(strings.Trim(raw, "\"'"))
	if text == "" {
		return nil
	}
	description := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		description = strings.TrimSpace(text[:idx])
	}
	return &Docstring{DocType: "docstring", Raw: raw, Description: description}
}

func decoratorName(dec *sitter.Node, content []byte) string {
	if dec == nil {
		return ""
	}
	text := strings.TrimPrefix(parser.NodeText(dec, content), "@")
	if idx := strings.IndexByte(text, '('); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func (e *PythonExtractor) collectImports(root *sitter.Node, content []byte, recs *FileRecords) {
	parser.Walk(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			// import a.b, c as d
			for _, child := range parser.NamedChildren(n) {
				imp := Import{Line: parser.Line(n), ImportType: "python"}
				switch child.Kind() {
				case "dotted_name":
					imp.ModuleSpecifier = parser.NodeText(child, content)
					imp.Bindings = append(imp.Bindings, ImportBinding{
						ImportedName: "*",
						LocalName:    firstDottedSegment(imp.ModuleSpecifier),
					})
				case "aliased_import":
					imp.ModuleSpecifier = parser.FieldText(child, "name", content)
					imp.Bindings = append(imp.Bindings, ImportBinding{
						ImportedName: "*",
						LocalName:    parser.FieldText(child, "alias", content),
					})
				default:
					continue
				}
				recs.Imports = append(recs.Imports, imp)
			}
			return false
		case "import_from_statement":
			imp := Import{Line: parser.Line(n), ImportType: "python"}
			imp.ModuleSpecifier = parser.FieldText(n, "module_name", content)
			for _, child := range parser.NamedChildren(n) {
				switch child.Kind() {
				case "dotted_name":
					name := parser.NodeText(child, content)
					if name == imp.ModuleSpecifier {
						continue
					}
					imp.Bindings = append(imp.Bindings, ImportBinding{ImportedName: name, LocalName: name})
				case "aliased_import":
					imp.Bindings = append(imp.Bindings, ImportBinding{
						ImportedName: parser.FieldText(child, "name", content),
						LocalName:    parser.FieldText(child, "alias", content),
					})
				case "wildcard_import":
					imp.Bindings = append(imp.Bindings, ImportBinding{ImportedName: "*", LocalName: "*"})
				}
			}
			recs.Imports = append(recs.Imports, imp)
			return false
		}
		return true
	})
}

func firstDottedSegment(name string) string {
	if idx := strings.IndexByte(name, '.'); idx >= 0 {
		return name[:idx]
	}
	return name
}

func (e *PythonExtractor) collectUsages(root *sitter.Node, content []byte, recs *FileRecords) {
	set := newUsageSet()
	parser.Walk(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement", "import_from_statement":
			return false
		case "identifier":
		default:
			return true
		}

		name := parser.NodeText(n, content)
		if name == "" || pyBuiltins[name] || isDefinitionNamePy(n) {
			return true
		}
		kind, ok := classifyUsagePy(n)
		if !ok {
			return true
		}
		set.add(Usage{Name: name, Line: parser.Line(n), Column: parser.Column(n), Kind: kind})
		return true
	})
	recs.Usages = set.usages
}

func isDefinitionNamePy(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	switch p.Kind() {
	case "function_definition", "class_definition":
		name := parser.FieldChild(p, "name")
		return name != nil && nodeEqual(name, n)
	case "parameters", "typed_parameter", "default_parameter",
		"typed_default_parameter", "list_splat_pattern",
		"dictionary_splat_pattern", "keyword_argument":
		// Parameter declarations and kwarg keys are not references, but the
		// value side of default/keyword nodes is; the value identifiers have
		// different parents and pass through.
		if p.Kind() == "default_parameter" || p.Kind() == "typed_default_parameter" || p.Kind() == "keyword_argument" {
			name := parser.FieldChild(p, "name")
			return name != nil && nodeEqual(name, n)
		}
		return true
	}
	return false
}

func classifyUsagePy(n *sitter.Node) (UsageKind, bool) {
	p := n.Parent()
	if p == nil {
		return UsageRead, true
	}

	switch p.Kind() {
	case "call":
		// Python has no new keyword; constructor invocations read as calls.
		if fn := parser.FieldChild(p, "function"); fn != nil && nodeEqual(fn, n) {
			return UsageCall, true
		}
	case "attribute":
		attr := parser.FieldChild(p, "attribute")
		if attr != nil && nodeEqual(attr, n) {
			if gp := p.Parent(); gp != nil && gp.Kind() == "call" {
				if fn := parser.FieldChild(gp, "function"); fn != nil && nodeEqual(fn, p) {
					return UsageCall, true
				}
			}
		}
	case "assignment", "augmented_assignment":
		if left := parser.FieldChild(p, "left"); left != nil && nodeEqual(left, n) {
			return UsageWrite, true
		}
	case "argument_list":
		if gp := p.Parent(); gp != nil && gp.Kind() == "class_definition" {
			return UsageExtend, true
		}
	case "decorator":
		return UsageDecorator, true
	case "type":
		return UsageTypeRef, true
	}

	if insideKind(n, "decorator", 3) {
		return UsageDecorator, true
	}
	if insideKind(n, "type", 3) {
		return UsageTypeRef, true
	}
	return UsageRead, true
}
