package endpoint

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/parser"
)

// FlaskExtractor finds @app.route(path, methods=[...]) and the shorthand
// @app.get(path) decorators.
type FlaskExtractor struct{}

// NewFlaskExtractor returns the Flask route extractor.
func NewFlaskExtractor() *FlaskExtractor {
	return &FlaskExtractor{}
}

func (e *FlaskExtractor) Framework() string { return "flask" }
func (e *FlaskExtractor) Language() string  { return "python" }
func (e *FlaskExtractor) Aliases() []string { return nil }

func (e *FlaskExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	return importsModule(imports, "flask")
}

func (e *FlaskExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	var out []Endpoint
	for _, def := range parser.Descendants(tree.RootNode(), "function_definition") {
		for _, dec := range pyDecorators(def, content) {
			if dec.call == nil {
				continue
			}
			verb := lastSegment(dec.name)
			isRoute := verb == "route"
			if !isRoute && !routeVerbs[verb] {
				continue
			}
			positional, keywords := pyCallArgs(dec.call, content)
			if len(positional) == 0 || positional[0].Kind() != "string" {
				continue
			}
			routePath := pyString(positional[0], content)

			method := "ALL"
			if isRoute {
				// A heterogeneous methods list stays one endpoint with ALL;
				// a single-element list uses that method. No methods keyword
				// defaults to GET.
				if v, ok := keywords["methods"]; ok {
					method = MethodFromList(pyStringList(v, content))
				} else {
					method = "GET"
				}
			} else {
				method = NormalizeHTTPMethod(verb)
			}

			summary, full := pyDocSummary(def, content)
			ep := Endpoint{
				Method:      method,
				Path:        routePath,
				FilePath:    filePath,
				StartLine:   parser.Line(def),
				EndLine:     parser.EndLine(def),
				Framework:   "flask",
				HandlerName: parser.FieldText(def, "name", content),
				HandlerType: HandlerReference,
				Summary:     summary,
				Params:      PathParams(routePath),
			}
			if full != summary {
				ep.Description = full
			}
			out = append(out, ep)
		}
	}
	return out, nil
}

// SinatraExtractor finds the Sinatra route DSL: get '/path' do ... end.
type SinatraExtractor struct{}

// NewSinatraExtractor returns the Sinatra route extractor.
func NewSinatraExtractor() *SinatraExtractor {
	return &SinatraExtractor{}
}

func (e *SinatraExtractor) Framework() string { return "sinatra" }
func (e *SinatraExtractor) Language() string  { return "ruby" }
func (e *SinatraExtractor) Aliases() []string { return nil }

func (e *SinatraExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	return importsModule(imports, "sinatra")
}

func (e *SinatraExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	var out []Endpoint
	parser.Walk(tree.RootNode(), func(n *sitter.Node) bool {
		if n.Kind() != "call" {
			return true
		}
		verb := parser.FieldText(n, "method", content)
		if !routeVerbs[verb] || parser.FieldChild(n, "receiver") != nil {
			return true
		}
		args := parser.FieldChild(n, "arguments")
		routePath := ""
		for _, arg := range parser.NamedChildren(args) {
			if arg.Kind() == "string" {
				routePath = rubyString(arg, content)
				break
			}
		}
		if routePath == "" {
			return true
		}
		out = append(out, Endpoint{
			Method:      NormalizeHTTPMethod(verb),
			Path:        routePath,
			FilePath:    filePath,
			StartLine:   parser.Line(n),
			EndLine:     parser.EndLine(n),
			Framework:   "sinatra",
			HandlerType: HandlerInline,
			Params:      PathParams(routePath),
		})
		return true
	})
	return out, nil
}
