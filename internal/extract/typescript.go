package extract

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/parser"
)

// jsBuiltins are identifiers never recorded as usages.
var jsBuiltins = map[string]bool{
	"console": true, "JSON": true, "Math": true, "Object": true,
	"Array": true, "String": true, "Number": true, "Boolean": true,
	"Promise": true, "Error": true, "Map": true, "Set": true, "Symbol": true,
	"undefined": true, "null": true, "this": true, "super": true,
	"require": true, "module": true, "exports": true, "process": true,
	"window": true, "document": true, "globalThis": true,
}

// TypeScriptExtractor extracts symbols, usages, and imports from
// TypeScript, TSX, and JavaScript trees.
type TypeScriptExtractor struct{}

// NewTypeScriptExtractor returns the TypeScript/JavaScript extractor.
func NewTypeScriptExtractor() *TypeScriptExtractor {
	return &TypeScriptExtractor{}
}

func (e *TypeScriptExtractor) Language() string  { return "typescript" }
func (e *TypeScriptExtractor) Aliases() []string { return []string{"tsx", "javascript"} }

// Extract walks the tree and emits the record stream for one file.
func (e *TypeScriptExtractor) Extract(tree *sitter.Tree, filePath string, content []byte) (*FileRecords, error) {
	recs := &FileRecords{}
	root := tree.RootNode()

	e.collectSymbols(root, content, filePath, -1, "", recs)
	e.collectImports(root, content, recs)
	e.collectUsages(root, content, recs)
	return recs, nil
}

// collectSymbols descends the tree keeping the enclosing symbol index and
// qualified-name prefix.
func (e *TypeScriptExtractor) collectSymbols(node *sitter.Node, content []byte, filePath string, parent int, prefix string, recs *FileRecords) {
	if node == nil {
		return
	}

	switch node.Kind() {
	case "function_declaration", "generator_function_declaration":
		e.addFunction(node, content, filePath, parent, prefix, recs)
		return
	case "class_declaration", "abstract_class_declaration":
		e.addClass(node, content, filePath, parent, prefix, recs, KindClass)
		return
	case "interface_declaration":
		e.addClass(node, content, filePath, parent, prefix, recs, KindInterface)
		return
	case "enum_declaration":
		e.addNamed(node, "name", content, filePath, parent, prefix, recs, KindEnum)
		return
	case "type_alias_declaration":
		e.addNamed(node, "name", content, filePath, parent, prefix, recs, KindTypeAlias)
		return
	case "internal_module", "module":
		idx := e.addNamed(node, "name", content, filePath, parent, prefix, recs, KindNamespace)
		if idx >= 0 {
			body := parser.FieldChild(node, "body")
			childPrefix := recs.Symbols[idx].QualifiedName
			for _, stmt := range parser.NamedChildren(body) {
				e.collectSymbols(stmt, content, filePath, idx, childPrefix, recs)
			}
		}
		return
	case "lexical_declaration", "variable_declaration":
		e.addVariables(node, content, filePath, parent, prefix, recs)
		return
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.collectSymbols(node.Child(i), content, filePath, parent, prefix, recs)
	}
}

func (e *TypeScriptExtractor) addFunction(node *sitter.Node, content []byte, filePath string, parent int, prefix string, recs *FileRecords) {
	name := parser.FieldText(node, "name", content)
	if name == "" {
		return
	}
	sym := e.newSymbol(node, name, KindFunction, filePath, parent, prefix, content)
	sym.IsAsync = hasKeywordChild(node, "async")
	sym.ReturnType = typeAnnotationText(parser.FieldChild(node, "return_type"), content)
	sym.Parameters = e.parameters(parser.FieldChild(node, "parameters"), content)
	recs.Symbols = append(recs.Symbols, sym)
}

func (e *TypeScriptExtractor) addClass(node *sitter.Node, content []byte, filePath string, parent int, prefix string, recs *FileRecords, kind SymbolKind) {
	name := parser.FieldText(node, "name", content)
	if name == "" {
		return
	}
	sym := e.newSymbol(node, name, kind, filePath, parent, prefix, content)
	recs.Symbols = append(recs.Symbols, sym)
	classIdx := len(recs.Symbols) - 1

	body := parser.FieldChild(node, "body")
	for _, member := range parser.NamedChildren(body) {
		switch member.Kind() {
		case "method_definition", "method_signature", "abstract_method_signature":
			e.addMethod(member, content, filePath, classIdx, sym.QualifiedName, recs)
		case "public_field_definition", "field_definition", "property_signature":
			e.addField(member, content, filePath, classIdx, sym.QualifiedName, recs)
		case "class_declaration", "abstract_class_declaration":
			e.addClass(member, content, filePath, classIdx, sym.QualifiedName, recs, KindClass)
		}
	}
}

func (e *TypeScriptExtractor) addMethod(node *sitter.Node, content []byte, filePath string, parent int, prefix string, recs *FileRecords) {
	name := parser.FieldText(node, "name", content)
	if name == "" {
		return
	}
	kind := KindMethod
	switch {
	case name == "constructor":
		kind = KindConstructor
	case hasKeywordChild(node, "get"):
		kind = KindGetter
	case hasKeywordChild(node, "set"):
		kind = KindSetter
	}
	sym := e.newSymbol(node, name, kind, filePath, parent, prefix, content)
	sym.IsAsync = hasKeywordChild(node, "async")
	sym.IsStatic = hasKeywordChild(node, "static")
	sym.Visibility = accessibility(node, content)
	sym.ReturnType = typeAnnotationText(parser.FieldChild(node, "return_type"), content)
	sym.Parameters = e.parameters(parser.FieldChild(node, "parameters"), content)
	// Method export follows the class: a method on an exported class is
	// reachable from outside the file.
	sym.IsExported = parent >= 0 && recs.Symbols[parent].IsExported && sym.Visibility != "private"
	recs.Symbols = append(recs.Symbols, sym)
}

func (e *TypeScriptExtractor) addField(node *sitter.Node, content []byte, filePath string, parent int, prefix string, recs *FileRecords) {
	name := parser.FieldText(node, "name", content)
	if name == "" {
		return
	}
	sym := e.newSymbol(node, name, KindField, filePath, parent, prefix, content)
	sym.IsStatic = hasKeywordChild(node, "static")
	sym.Visibility = accessibility(node, content)
	sym.ReturnType = typeAnnotationText(parser.FieldChild(node, "type"), content)
	sym.IsExported = parent >= 0 && recs.Symbols[parent].IsExported && sym.Visibility != "private"
	recs.Symbols = append(recs.Symbols, sym)
}

func (e *TypeScriptExtractor) addNamed(node *sitter.Node, nameField string, content []byte, filePath string, parent int, prefix string, recs *FileRecords, kind SymbolKind) int {
	name := parser.FieldText(node, nameField, content)
	if name == "" {
		return -1
	}
	sym := e.newSymbol(node, name, kind, filePath, parent, prefix, content)
	recs.Symbols = append(recs.Symbols, sym)
	return len(recs.Symbols) - 1
}

// addVariables emits one symbol per declarator. A const whose value is a
// function expression is recorded as a function.
func (e *TypeScriptExtractor) addVariables(node *sitter.Node, content []byte, filePath string, parent int, prefix string, recs *FileRecords) {
	isConst := parser.FirstChildOfKind(node, "const") != nil
	for _, decl := range parser.ChildrenOfKind(node, "variable_declarator") {
		nameNode := parser.FieldChild(decl, "name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			continue
		}
		name := parser.NodeText(nameNode, content)
		kind := KindVariable
		if isConst {
			kind = KindConstant
		}
		value := parser.FieldChild(decl, "value")
		if value != nil && (value.Kind() == "arrow_function" || value.Kind() == "function_expression" || value.Kind() == "function") {
			kind = KindFunction
		}
		sym := e.newSymbol(decl, name, kind, filePath, parent, prefix, content)
		if value != nil && kind == KindFunction {
			sym.IsAsync = hasKeywordChild(value, "async")
			sym.Parameters = e.parameters(parser.FieldChild(value, "parameters"), content)
			sym.ReturnType = typeAnnotationText(parser.FieldChild(value, "return_type"), content)
		}
		recs.Symbols = append(recs.Symbols, sym)
	}
}

func (e *TypeScriptExtractor) newSymbol(node *sitter.Node, name string, kind SymbolKind, filePath string, parent int, prefix string, content []byte) Symbol {
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
		IsExported:    isExportedTS(node),
		ContentHash:   ContentHash(content[node.StartByte():node.EndByte()]),
	}
}

// parameters reads a formal_parameters node.
func (e *TypeScriptExtractor) parameters(params *sitter.Node, content []byte) []Parameter {
	var out []Parameter
	for _, p := range parser.NamedChildren(params) {
		switch p.Kind() {
		case "required_parameter", "optional_parameter", "rest_parameter":
			name := parser.FieldText(p, "pattern", content)
			if name == "" {
				name = parser.NodeText(parser.FirstChildOfKind(p, "identifier"), content)
			}
			if name == "" {
				continue
			}
			out = append(out, Parameter{
				Position:       len(out),
				Name:           name,
				TypeAnnotation: typeAnnotationText(parser.FieldChild(p, "type"), content),
				IsOptional:     p.Kind() == "optional_parameter" || parser.FieldChild(p, "value") != nil,
			})
		case "identifier":
			out = append(out, Parameter{Position: len(out), Name: parser.NodeText(p, content)})
		}
	}
	return out
}

// collectImports finds import statements and require calls.
func (e *TypeScriptExtractor) collectImports(root *sitter.Node, content []byte, recs *FileRecords) {
	for _, stmt := range parser.Descendants(root, "import_statement") {
		imp := Import{
			Line:       parser.Line(stmt),
			ImportType: "es_import",
		}
		source := parser.FieldChild(stmt, "source")
		imp.ModuleSpecifier = stringLiteral(source, content)
		typeOnly := parser.FirstChildOfKind(stmt, "type") != nil

		clause := parser.FirstChildOfKind(stmt, "import_clause")
		for _, child := range parser.NamedChildren(clause) {
			switch child.Kind() {
			case "identifier":
				imp.Bindings = append(imp.Bindings, ImportBinding{
					ImportedName: "default",
					LocalName:    parser.NodeText(child, content),
					IsTypeOnly:   typeOnly,
				})
			case "namespace_import":
				local := parser.NodeText(parser.FirstChildOfKind(child, "identifier"), content)
				imp.Bindings = append(imp.Bindings, ImportBinding{
					ImportedName: "*",
					LocalName:    local,
					IsTypeOnly:   typeOnly,
				})
			case "named_imports":
				for _, spec := range parser.NamedChildren(child) {
					if spec.Kind() != "import_specifier" {
						continue
					}
					imported := parser.FieldText(spec, "name", content)
					local := parser.FieldText(spec, "alias", content)
					if local == "" {
						local = imported
					}
					imp.Bindings = append(imp.Bindings, ImportBinding{
						ImportedName: imported,
						LocalName:    local,
						IsTypeOnly:   typeOnly || parser.FirstChildOfKind(spec, "type") != nil,
					})
				}
			}
		}
		recs.Imports = append(recs.Imports, imp)
	}

	// const x = require('m')
	for _, call := range parser.Descendants(root, "call_expression") {
		fn := parser.FieldChild(call, "function")
		if fn == nil || fn.Kind() != "identifier" || parser.NodeText(fn, content) != "require" {
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
		imp := Import{
			Line:            parser.Line(call),
			ImportType:      "commonjs",
			ModuleSpecifier: spec,
		}
		if decl := call.Parent(); decl != nil && decl.Kind() == "variable_declarator" {
			if nameNode := parser.FieldChild(decl, "name"); nameNode != nil && nameNode.Kind() == "identifier" {
				imp.Bindings = append(imp.Bindings, ImportBinding{
					ImportedName: "*",
					LocalName:    parser.NodeText(nameNode, content),
				})
			}
		}
		recs.Imports = append(recs.Imports, imp)
	}
}

// collectUsages records identifier and member-access sites that are not
// definition names, classified by syntactic context.
func (e *TypeScriptExtractor) collectUsages(root *sitter.Node, content []byte, recs *FileRecords) {
	set := newUsageSet()
	parser.Walk(root, func(n *sitter.Node) bool {
		switch n.Kind() {
		case "import_statement":
			return false
		case "identifier", "property_identifier", "type_identifier", "shorthand_property_identifier":
		default:
			return true
		}

		name := parser.NodeText(n, content)
		if name == "" || jsBuiltins[name] || isDefinitionNameTS(n) || isEnumMember(n) {
			return true
		}
		kind, ok := classifyUsageTS(n)
		if !ok {
			return true
		}
		set.add(Usage{Name: name, Line: parser.Line(n), Column: parser.Column(n), Kind: kind})
		return true
	})
	recs.Usages = set.usages
}

// isDefinitionNameTS reports whether the identifier is the declared name of
// a definition rather than a reference.
func isDefinitionNameTS(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	nameChild := parser.FieldChild(p, "name")
	if nameChild == nil || !nodeEqual(nameChild, n) {
		// Parameter declarations name their binding through the pattern
		// field instead.
		if pattern := parser.FieldChild(p, "pattern"); pattern != nil && nodeEqual(pattern, n) {
			switch p.Kind() {
			case "required_parameter", "optional_parameter", "rest_parameter":
				return true
			}
		}
		return false
	}
	switch p.Kind() {
	case "function_declaration", "generator_function_declaration",
		"class_declaration", "abstract_class_declaration",
		"interface_declaration", "enum_declaration", "type_alias_declaration",
		"method_definition", "method_signature", "abstract_method_signature",
		"public_field_definition", "field_definition", "property_signature",
		"variable_declarator", "internal_module", "module",
		"required_parameter", "optional_parameter", "pair",
		"enum_assignment":
		return true
	}
	return false
}

// enum members without initializers sit directly in the enum body.
func isEnumMember(n *sitter.Node) bool {
	p := n.Parent()
	return p != nil && p.Kind() == "enum_body"
}

// classifyUsageTS maps an identifier's context to a usage kind.
func classifyUsageTS(n *sitter.Node) (UsageKind, bool) {
	p := n.Parent()
	if p == nil {
		return UsageRead, true
	}

	switch p.Kind() {
	case "extends_clause", "class_heritage":
		return UsageExtend, true
	case "implements_clause":
		return UsageImplement, true
	case "decorator":
		return UsageDecorator, true
	case "new_expression":
		if constructor := parser.FieldChild(p, "constructor"); constructor != nil && nodeEqual(constructor, n) {
			return UsageInstantiate, true
		}
	case "call_expression":
		if fn := parser.FieldChild(p, "function"); fn != nil && nodeEqual(fn, n) {
			return UsageCall, true
		}
	case "member_expression":
		gp := p.Parent()
		prop := parser.FieldChild(p, "property")
		if prop != nil && nodeEqual(prop, n) {
			// Property of a callee member expression is the call target.
			if gp != nil && gp.Kind() == "call_expression" {
				if fn := parser.FieldChild(gp, "function"); fn != nil && nodeEqual(fn, p) {
					return UsageCall, true
				}
			}
			if gp != nil && gp.Kind() == "new_expression" {
				return UsageInstantiate, true
			}
		}
	case "assignment_expression", "augmented_assignment_expression":
		if left := parser.FieldChild(p, "left"); left != nil && nodeEqual(left, n) {
			return UsageWrite, true
		}
	}

	if n.Kind() == "type_identifier" || insideKind(n, "type_annotation", 4) {
		return UsageTypeRef, true
	}
	if insideKind(n, "decorator", 3) {
		return UsageDecorator, true
	}
	if insideKind(n, "extends_clause", 3) || insideKind(n, "class_heritage", 3) {
		return UsageExtend, true
	}
	if insideKind(n, "implements_clause", 3) {
		return UsageImplement, true
	}
	return UsageRead, true
}

// Shared helpers used by the language extractors of this package.

func hasKeywordChild(node *sitter.Node, keyword string) bool {
	if node == nil {
		return false
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == keyword {
			return true
		}
	}
	return false
}

func accessibility(node *sitter.Node, content []byte) string {
	mod := parser.FirstChildOfKind(node, "accessibility_modifier")
	if mod == nil {
		return ""
	}
	return parser.NodeText(mod, content)
}

// typeAnnotationText strips the leading ": " of a type annotation node.
func typeAnnotationText(node *sitter.Node, content []byte) string {
	text := parser.NodeText(node, content)
	text = strings.TrimPrefix(text, ":")
	return strings.TrimSpace(text)
}

// isExportedTS reports whether the declaration (or its parent chain within
// two hops) sits under an export statement.
func isExportedTS(node *sitter.Node) bool {
	p := node.Parent()
	for depth := 0; p != nil && depth < 2; depth++ {
		if p.Kind() == "export_statement" {
			return true
		}
		p = p.Parent()
	}
	return false
}

// stringLiteral returns the unquoted content of a string node.
func stringLiteral(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	text := parser.NodeText(node, content)
	return strings.Trim(text, "'\"`")
}

// insideKind reports whether an ancestor within maxDepth hops has the kind.
func insideKind(n *sitter.Node, kind string, maxDepth int) bool {
	p := n.Parent()
	for depth := 0; p != nil && depth < maxDepth; depth++ {
		if p.Kind() == kind {
			return true
		}
		p = p.Parent()
	}
	return false
}

// nodeEqual compares nodes by span; the binding returns distinct *Node
// wrappers for the same underlying node.
func nodeEqual(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}
