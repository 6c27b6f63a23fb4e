package endpoint

import (
	"strconv"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/parser"
)

// fastapiParamMarkers map parameter default constructors to locations.
var fastapiParamMarkers = map[string]string{
	"Query":  LocationQuery,
	"Path":   LocationPath,
	"Header": LocationHeader,
	"Cookie": LocationCookie,
	"Body":   LocationBody,
}

// FastAPIExtractor finds @router.METHOD(path, ...) decorated functions.
type FastAPIExtractor struct{}

// NewFastAPIExtractor returns the FastAPI route extractor.
func NewFastAPIExtractor() *FastAPIExtractor {
	return &FastAPIExtractor{}
}

func (e *FastAPIExtractor) Framework() string { return "fastapi" }
func (e *FastAPIExtractor) Language() string  { return "python" }
func (e *FastAPIExtractor) Aliases() []string { return nil }

func (e *FastAPIExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	return importsModule(imports, "fastapi")
}

func (e *FastAPIExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	var out []Endpoint
	for _, def := range parser.Descendants(tree.RootNode(), "function_definition") {
		for _, dec := range pyDecorators(def, content) {
			verb := lastSegment(dec.name)
			if dec.call == nil || !routeVerbs[verb] {
				continue
			}
			ep := e.endpointFromDecorator(def, dec, verb, filePath, content)
			if ep != nil {
				out = append(out, *ep)
			}
		}
	}
	return out, nil
}

func (e *FastAPIExtractor) endpointFromDecorator(def *sitter.Node, dec pyDecorator, verb, filePath string, content []byte) *Endpoint {
	positional, keywords := pyCallArgs(dec.call, content)
	if len(positional) == 0 || positional[0].Kind() != "string" {
		return nil
	}
	routePath := pyString(positional[0], content)

	ep := &Endpoint{
		Method:      NormalizeHTTPMethod(verb),
		Path:        routePath,
		FilePath:    filePath,
		StartLine:   parser.Line(def),
		EndLine:     parser.EndLine(def),
		Framework:   "fastapi",
		HandlerName: parser.FieldText(def, "name", content),
		HandlerType: HandlerReference,
		Params:      PathParams(routePath),
	}

	if v, ok := keywords["response_model"]; ok {
		ep.ResponseModel = parser.NodeText(v, content)
	}
	if v, ok := keywords["status_code"]; ok {
		if code, err := strconv.Atoi(parser.NodeText(v, content)); err == nil {
			ep.ResponseStatus = code
		}
	}
	if v, ok := keywords["tags"]; ok {
		ep.Tags = pyStringList(v, content)
	}
	if v, ok := keywords["summary"]; ok {
		ep.Summary = pyString(v, content)
	}
	if v, ok := keywords["description"]; ok {
		ep.Description = pyString(v, content)
	}
	if v, ok := keywords["dependencies"]; ok {
		ep.Dependencies = dependsNames(v, content)
	}

	if ep.Summary == "" {
		summary, full := pyDocSummary(def, content)
		ep.Summary = summary
		if ep.Description == "" && full != summary {
			ep.Description = full
		}
	}

	e.addFunctionParams(def, ep, content)
	return ep
}

// dependsNames extracts x from dependencies=[Depends(x), ...].
func dependsNames(list *sitter.Node, content []byte) []string {
	var out []string
	for _, el := range parser.NamedChildren(list) {
		if el.Kind() != "call" {
			continue
		}
		if parser.FieldText(el, "function", content) != "Depends" {
			continue
		}
		args := parser.FieldChild(el, "arguments")
		for _, arg := range parser.NamedChildren(args) {
			out = append(out, parser.NodeText(arg, content))
			break
		}
	}
	return out
}

// addFunctionParams reads the handler signature: defaults built from
// Query()/Path()/Header()/Cookie()/Body() place the parameter at that
// location, with an Ellipsis first argument meaning required.
func (e *FastAPIExtractor) addFunctionParams(def *sitter.Node, ep *Endpoint, content []byte) {
	pathParams := make(map[string]bool)
	for _, p := range ep.Params {
		pathParams[p.Name] = true
	}

	params := parser.FieldChild(def, "parameters")
	for _, p := range parser.NamedChildren(params) {
		var name, annotation string
		var defaultValue *sitter.Node
		switch p.Kind() {
		case "identifier":
			name = parser.NodeText(p, content)
		case "typed_parameter":
			name = parser.NodeText(p.NamedChild(0), content)
			annotation = parser.FieldText(p, "type", content)
		case "default_parameter":
			name = parser.FieldText(p, "name", content)
			defaultValue = parser.FieldChild(p, "value")
		case "typed_default_parameter":
			name = parser.FieldText(p, "name", content)
			annotation = parser.FieldText(p, "type", content)
			defaultValue = parser.FieldChild(p, "value")
		default:
			continue
		}
		if name == "" || name == "self" || pathParams[name] {
			// Path placeholders are already recorded; refine their type.
			if pathParams[name] && annotation != "" {
				for i := range ep.Params {
					if ep.Params[i].Name == name {
						ep.Params[i].TypeAnnotation = annotation
					}
				}
			}
			continue
		}

		if defaultValue != nil && defaultValue.Kind() == "call" {
			marker := parser.FieldText(defaultValue, "function", content)
			location, ok := fastapiParamMarkers[marker]
			if !ok {
				continue
			}
			required := false
			args := parser.FieldChild(defaultValue, "arguments")
			for _, arg := range parser.NamedChildren(args) {
				if arg.Kind() == "ellipsis" {
					required = true
				}
				break
			}
			ep.Params = append(ep.Params, Param{
				Name:           name,
				Location:       location,
				TypeAnnotation: annotation,
				Required:       required,
			})
		}
	}
}
