package endpoint

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/parser"
)

// viewsetActions maps Django REST Framework ViewSet action methods to their
// routed method and whether the route carries the detail id.
var viewsetActions = map[string]struct {
	method string
	detail bool
}{
	"list":           {"GET", false},
	"create":         {"POST", false},
	"retrieve":       {"GET", true},
	"update":         {"PUT", true},
	"partial_update": {"PATCH", true},
	"destroy":        {"DELETE", true},
}

// DjangoExtractor finds Django REST Framework views: @api_view functions,
// ViewSet action methods, @action routes, and APIView HTTP methods.
type DjangoExtractor struct{}

// NewDjangoExtractor returns the Django REST Framework extractor.
func NewDjangoExtractor() *DjangoExtractor {
	return &DjangoExtractor{}
}

func (e *DjangoExtractor) Framework() string { return "django" }
func (e *DjangoExtractor) Language() string  { return "python" }
func (e *DjangoExtractor) Aliases() []string { return []string{"drf", "django-rest-framework"} }

func (e *DjangoExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	return importsModule(imports, "rest_framework", "django")
}

func (e *DjangoExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	var out []Endpoint
	root := tree.RootNode()

	// Function views: @api_view(['GET', 'POST']).
	for _, def := range parser.Descendants(root, "function_definition") {
		if insideClassPy(def) {
			continue
		}
		for _, dec := range pyDecorators(def, content) {
			if lastSegment(dec.name) != "api_view" || dec.call == nil {
				continue
			}
			positional, _ := pyCallArgs(dec.call, content)
			var methods []string
			if len(positional) > 0 {
				methods = pyStringList(positional[0], content)
			}
			name := parser.FieldText(def, "name", content)
			routePath := "/" + name
			summary, _ := pyDocSummary(def, content)
			out = append(out, Endpoint{
				Method:      MethodFromList(methods),
				Path:        routePath,
				FilePath:    filePath,
				StartLine:   parser.Line(def),
				EndLine:     parser.EndLine(def),
				Framework:   "django",
				HandlerName: name,
				HandlerType: HandlerReference,
				Summary:     summary,
				Params:      PathParams(routePath),
			})
		}
	}

	// Class-based views.
	for _, class := range parser.Descendants(root, "class_definition") {
		bases := classBases(class, content)
		className := parser.FieldText(class, "name", content)
		switch {
		case hasBaseSuffix(bases, "ViewSet"):
			out = append(out, e.viewsetEndpoints(class, className, filePath, content)...)
		case hasBaseSuffix(bases, "APIView"):
			out = append(out, e.apiviewEndpoints(class, className, filePath, content)...)
		}
	}
	return out, nil
}

// viewsetEndpoints expands the standard actions plus @action routes. The
// resource path derives from the class name with its ViewSet suffix
// stripped; detail actions insert the {id} placeholder.
func (e *DjangoExtractor) viewsetEndpoints(class *sitter.Node, className, filePath string, content []byte) []Endpoint {
	resource := "/" + strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(className, "ModelViewSet"), "ViewSet"))
	var out []Endpoint

	for _, def := range classMethodsPy(class) {
		name := parser.FieldText(def, "name", content)

		if action, ok := viewsetActions[name]; ok {
			routePath := resource
			if action.detail {
				routePath = resource + "/{id}"
			}
			summary, _ := pyDocSummary(def, content)
			out = append(out, Endpoint{
				Method:      action.method,
				Path:        routePath,
				FilePath:    filePath,
				StartLine:   parser.Line(def),
				EndLine:     parser.EndLine(def),
				Framework:   "django",
				HandlerName: className + "." + name,
				HandlerType: HandlerControllerAction,
				Summary:     summary,
				Params:      PathParams(routePath),
			})
			continue
		}

		for _, dec := range pyDecorators(def, content) {
			if lastSegment(dec.name) != "action" || dec.call == nil {
				continue
			}
			_, keywords := pyCallArgs(dec.call, content)
			detail := false
			if v, ok := keywords["detail"]; ok {
				detail = parser.NodeText(v, content) == "True"
			}
			urlPath := name
			if v, ok := keywords["url_path"]; ok {
				urlPath = pyString(v, content)
			}
			var methods []string
			if v, ok := keywords["methods"]; ok {
				methods = pyStringList(v, content)
			}
			routePath := resource + "/" + urlPath
			if detail {
				routePath = resource + "/{id}/" + urlPath
			}
			summary, _ := pyDocSummary(def, content)
			out = append(out, Endpoint{
				Method:      MethodFromList(methods),
				Path:        routePath,
				FilePath:    filePath,
				StartLine:   parser.Line(def),
				EndLine:     parser.EndLine(def),
				Framework:   "django",
				HandlerName: className + "." + name,
				HandlerType: HandlerControllerAction,
				Summary:     summary,
				Params:      PathParams(routePath),
			})
		}
	}
	return out
}

// apiviewEndpoints reads explicit get/post/... methods of an APIView class.
func (e *DjangoExtractor) apiviewEndpoints(class *sitter.Node, className, filePath string, content []byte) []Endpoint {
	resource := "/" + strings.ToLower(strings.TrimSuffix(className, "View"))
	var out []Endpoint
	for _, def := range classMethodsPy(class) {
		name := parser.FieldText(def, "name", content)
		if !routeVerbs[name] || name == "all" {
			continue
		}
		summary, _ := pyDocSummary(def, content)
		out = append(out, Endpoint{
			Method:      NormalizeHTTPMethod(name),
			Path:        resource,
			FilePath:    filePath,
			StartLine:   parser.Line(def),
			EndLine:     parser.EndLine(def),
			Framework:   "django",
			HandlerName: className + "." + name,
			HandlerType: HandlerClassMethod,
			Summary:     summary,
			Params:      PathParams(resource),
		})
	}
	return out
}

// classBases reads the superclass names of a class definition.
func classBases(class *sitter.Node, content []byte) []string {
	var out []string
	args := parser.FieldChild(class, "superclasses")
	for _, base := range parser.NamedChildren(args) {
		out = append(out, parser.NodeText(base, content))
	}
	return out
}

func hasBaseSuffix(bases []string, suffix string) bool {
	for _, b := range bases {
		if strings.HasSuffix(b, suffix) {
			return true
		}
	}
	return false
}

// classMethodsPy lists the function definitions in a class body, unwrapping
// decorated definitions.
func classMethodsPy(class *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	body := parser.FieldChild(class, "body")
	for _, stmt := range parser.NamedChildren(body) {
		switch stmt.Kind() {
		case "function_definition":
			out = append(out, stmt)
		case "decorated_definition":
			if def := parser.FieldChild(stmt, "definition"); def != nil && def.Kind() == "function_definition" {
				out = append(out, def)
			}
		}
	}
	return out
}

// insideClassPy reports whether a definition sits inside a class body.
func insideClassPy(def *sitter.Node) bool {
	p := def.Parent()
	for p != nil {
		if p.Kind() == "class_definition" {
			return true
		}
		p = p.Parent()
	}
	return false
}
