package endpoint

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/parser"
)

// nestVerbDecorators maps NestJS method decorators to HTTP methods.
var nestVerbDecorators = map[string]string{
	"Get": "GET", "Post": "POST", "Put": "PUT", "Patch": "PATCH",
	"Delete": "DELETE", "Options": "OPTIONS", "Head": "HEAD", "All": "ALL",
}

// NestExtractor finds @Controller classes whose methods carry HTTP verb
// decorators.
type NestExtractor struct{}

// NewNestExtractor returns the NestJS controller extractor.
func NewNestExtractor() *NestExtractor {
	return &NestExtractor{}
}

func (e *NestExtractor) Framework() string { return "nestjs" }
func (e *NestExtractor) Language() string  { return "typescript" }
func (e *NestExtractor) Aliases() []string { return []string{"nest"} }

func (e *NestExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	return importsModule(imports, "@nestjs/common", "@nestjs/core")
}

func (e *NestExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	var out []Endpoint
	for _, class := range parser.Descendants(tree.RootNode(), "class_declaration") {
		prefix, isController := controllerPrefix(class, content)
		if !isController {
			continue
		}
		// Method decorators sit in the class body just before the
		// method_definition they apply to.
		body := parser.FieldChild(class, "body")
		var pending []*sitter.Node
		for _, member := range parser.NamedChildren(body) {
			switch member.Kind() {
			case "decorator":
				pending = append(pending, member)
			case "comment":
			case "method_definition":
				decs := append(pending, parser.ChildrenOfKind(member, "decorator")...)
				out = append(out, e.methodEndpoints(member, decs, prefix, filePath, content)...)
				pending = nil
			default:
				pending = nil
			}
		}
	}
	return out, nil
}

// controllerPrefix reads the @Controller(prefix) decorator on a class. The
// decorators sit as siblings before the class keyword (export_statement
// children) or as class children depending on nesting.
func controllerPrefix(class *sitter.Node, content []byte) (string, bool) {
	for _, dec := range classDecorators(class) {
		name, arg := decoratorCall(dec, content)
		if name == "Controller" {
			return strings.Trim(arg, "'\"`"), true
		}
	}
	return "", false
}

// classDecorators collects decorator nodes attached to a class, checking
// both the class node and its export_statement parent.
func classDecorators(class *sitter.Node) []*sitter.Node {
	decs := parser.ChildrenOfKind(class, "decorator")
	if p := class.Parent(); p != nil && p.Kind() == "export_statement" {
		decs = append(decs, parser.ChildrenOfKind(p, "decorator")...)
	}
	// Preceding siblings in a statement list.
	if prev := class.PrevSibling(); prev != nil && prev.Kind() == "decorator" {
		decs = append(decs, prev)
	}
	return decs
}

// decoratorCall splits @Name(arg) into the name and the raw first argument.
func decoratorCall(dec *sitter.Node, content []byte) (string, string) {
	call := parser.FirstChildOfKind(dec, "call_expression")
	if call == nil {
		// Bare decorator @Name.
		id := parser.FirstChildOfKind(dec, "identifier")
		return parser.NodeText(id, content), ""
	}
	name := parser.FieldText(call, "function", content)
	args := parser.NamedChildren(parser.FieldChild(call, "arguments"))
	arg := ""
	if len(args) > 0 {
		arg = parser.NodeText(args[0], content)
	}
	return name, arg
}

func (e *NestExtractor) methodEndpoints(method *sitter.Node, decorators []*sitter.Node, prefix, filePath string, content []byte) []Endpoint {
	var out []Endpoint
	for _, dec := range decorators {
		name, arg := decoratorCall(dec, content)
		httpMethod, ok := nestVerbDecorators[name]
		if !ok {
			continue
		}
		routePath := JoinPaths(prefix, strings.Trim(arg, "'\"`"))
		ep := Endpoint{
			Method:      httpMethod,
			Path:        routePath,
			FilePath:    filePath,
			StartLine:   parser.Line(method),
			EndLine:     parser.EndLine(method),
			Framework:   "nestjs",
			HandlerName: parser.FieldText(method, "name", content),
			HandlerType: HandlerClassMethod,
			Params:      PathParams(routePath),
		}
		out = append(out, ep)
	}
	return out
}
