package endpoint

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/parser"
)

// routeVerbs are the member names recognized as route registrations on a
// router object.
var routeVerbs = map[string]bool{
	"get": true, "post": true, "put": true, "patch": true,
	"delete": true, "options": true, "head": true, "all": true,
}

// ExpressExtractor finds app.METHOD(path, ...handlers) registrations.
type ExpressExtractor struct {
	framework string
	modules   []string
	aliases   []string
}

// NewExpressExtractor returns the Express route extractor.
func NewExpressExtractor() *ExpressExtractor {
	return &ExpressExtractor{framework: "express", modules: []string{"express"}}
}

// NewKoaExtractor returns the Koa route extractor; Koa routers register
// routes with the same verb-call shape as Express.
func NewKoaExtractor() *ExpressExtractor {
	return &ExpressExtractor{
		framework: "koa",
		modules:   []string{"koa", "@koa/router", "koa-router"},
		aliases:   []string{"koa-router"},
	}
}

func (e *ExpressExtractor) Framework() string { return e.framework }
func (e *ExpressExtractor) Language() string  { return "javascript" }
func (e *ExpressExtractor) Aliases() []string { return e.aliases }

func (e *ExpressExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	return importsModule(imports, e.modules...)
}

func (e *ExpressExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	var out []Endpoint
	for _, call := range parser.Descendants(tree.RootNode(), "call_expression") {
		ep, ok := routeCallEndpoint(call, filePath, content, e.framework)
		if ok {
			out = append(out, ep)
		}
	}
	return out, nil
}

// routeCallEndpoint turns one obj.verb(path, ...handlers) call into an
// endpoint. Intermediate handler arguments become middleware; the last one
// names the handler when it is an identifier.
func routeCallEndpoint(call *sitter.Node, filePath string, content []byte, framework string) (Endpoint, bool) {
	fn := parser.FieldChild(call, "function")
	if fn == nil || fn.Kind() != "member_expression" {
		return Endpoint{}, false
	}
	verb := parser.FieldText(fn, "property", content)
	if !routeVerbs[verb] {
		return Endpoint{}, false
	}
	object := parser.FieldChild(fn, "object")
	if object == nil || object.Kind() != "identifier" {
		return Endpoint{}, false
	}

	args := parser.NamedChildren(parser.FieldChild(call, "arguments"))
	if len(args) < 2 {
		return Endpoint{}, false
	}
	first := args[0]
	if first.Kind() != "string" && first.Kind() != "template_string" {
		return Endpoint{}, false
	}
	pathTemplate := strings.Trim(parser.NodeText(first, content), "'\"`")

	ep := Endpoint{
		Method:      NormalizeHTTPMethod(verb),
		Path:        pathTemplate,
		FilePath:    filePath,
		StartLine:   parser.Line(call),
		EndLine:     parser.EndLine(call),
		Framework:   framework,
		HandlerType: HandlerInline,
		Params:      PathParams(pathTemplate),
	}

	handlers := args[1:]
	for i, h := range handlers {
		last := i == len(handlers)-1
		switch h.Kind() {
		case "identifier":
			name := parser.NodeText(h, content)
			if last {
				ep.HandlerName = name
				ep.HandlerType = HandlerReference
			} else {
				ep.Middleware = append(ep.Middleware, name)
			}
		case "member_expression":
			name := parser.NodeText(h, content)
			if last {
				ep.HandlerName = name
				ep.HandlerType = HandlerReference
			} else {
				ep.Middleware = append(ep.Middleware, name)
			}
		case "call_expression":
			// A call result used in middleware position, e.g. auth().
			if !last {
				ep.Middleware = append(ep.Middleware, parser.FieldText(h, "function", content))
			}
		}
	}
	return ep, true
}

// FastifyExtractor finds fastify.METHOD(path, opts, handler) calls and
// fastify.route({method, url, handler, schema}) registrations.
type FastifyExtractor struct{}

// NewFastifyExtractor returns the Fastify route extractor.
func NewFastifyExtractor() *FastifyExtractor {
	return &FastifyExtractor{}
}

func (e *FastifyExtractor) Framework() string { return "fastify" }
func (e *FastifyExtractor) Language() string  { return "javascript" }
func (e *FastifyExtractor) Aliases() []string { return nil }

func (e *FastifyExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	return importsModule(imports, "fastify")
}

func (e *FastifyExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	var out []Endpoint
	for _, call := range parser.Descendants(tree.RootNode(), "call_expression") {
		fn := parser.FieldChild(call, "function")
		if fn == nil || fn.Kind() != "member_expression" {
			continue
		}
		verb := parser.FieldText(fn, "property", content)
		if verb == "route" {
			if ep, ok := e.routeObjectEndpoint(call, filePath, content); ok {
				out = append(out, ep)
			}
			continue
		}
		if ep, ok := routeCallEndpoint(call, filePath, content, "fastify"); ok {
			out = append(out, ep)
		}
	}
	return out, nil
}

// routeObjectEndpoint handles fastify.route({method: 'GET', url: '/x', ...}).
func (e *FastifyExtractor) routeObjectEndpoint(call *sitter.Node, filePath string, content []byte) (Endpoint, bool) {
	args := parser.NamedChildren(parser.FieldChild(call, "arguments"))
	if len(args) == 0 || args[0].Kind() != "object" {
		return Endpoint{}, false
	}
	obj := args[0]

	ep := Endpoint{
		Method:      "ALL",
		FilePath:    filePath,
		StartLine:   parser.Line(call),
		EndLine:     parser.EndLine(call),
		Framework:   "fastify",
		HandlerType: HandlerInline,
	}
	var methods []string
	for _, pair := range parser.ChildrenOfKind(obj, "pair") {
		key := parser.FieldText(pair, "key", content)
		value := parser.FieldChild(pair, "value")
		if value == nil {
			continue
		}
		switch key {
		case "method":
			if value.Kind() == "array" {
				for _, el := range parser.NamedChildren(value) {
					methods = append(methods, strings.Trim(parser.NodeText(el, content), "'\"`"))
				}
			} else {
				methods = append(methods, strings.Trim(parser.NodeText(value, content), "'\"`"))
			}
		case "url", "path":
			ep.Path = strings.Trim(parser.NodeText(value, content), "'\"`")
		case "handler":
			if value.Kind() == "identifier" {
				ep.HandlerName = parser.NodeText(value, content)
				ep.HandlerType = HandlerReference
			}
		case "schema":
			ep.BodySchema = parser.NodeText(value, content)
		}
	}
	if ep.Path == "" {
		return Endpoint{}, false
	}
	ep.Method = MethodFromList(methods)
	ep.Params = PathParams(ep.Path)
	return ep, true
}
