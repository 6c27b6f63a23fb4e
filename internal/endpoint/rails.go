package endpoint

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/parser"
)

// restfulActions are the seven resource routes, in Rails' canonical order.
var restfulActions = []struct {
	action string
	method string
	suffix string
}{
	{"index", "GET", ""},
	{"new", "GET", "/new"},
	{"create", "POST", ""},
	{"show", "GET", "/:id"},
	{"edit", "GET", "/:id/edit"},
	{"update", "PUT", "/:id"},
	{"destroy", "DELETE", "/:id"},
}

// RailsExtractor reads config/routes.rb route declarations and controller
// files (strong parameters, before_action filters, Apipie documentation,
// YARD tags).
type RailsExtractor struct{}

// NewRailsExtractor returns the Rails extractor.
func NewRailsExtractor() *RailsExtractor {
	return &RailsExtractor{}
}

func (e *RailsExtractor) Framework() string { return "rails" }
func (e *RailsExtractor) Language() string  { return "ruby" }
func (e *RailsExtractor) Aliases() []string { return []string{"ruby-on-rails"} }

func (e *RailsExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	if strings.HasSuffix(filePath, "config/routes.rb") || filePath == "routes.rb" {
		return true
	}
	if strings.HasSuffix(filePath, "_controller.rb") {
		return true
	}
	return importsModule(imports, "rails")
}

func (e *RailsExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	if strings.HasSuffix(filePath, "routes.rb") {
		var out []Endpoint
		e.walkRoutes(tree.RootNode(), "", filePath, content, &out)
		return out, nil
	}
	if strings.HasSuffix(filePath, "_controller.rb") {
		return e.extractController(tree.RootNode(), filePath, content), nil
	}
	return nil, nil
}

// walkRoutes recursively processes the routes DSL, carrying the path
// prefix established by enclosing namespace/scope blocks.
func (e *RailsExtractor) walkRoutes(node *sitter.Node, prefix, filePath string, content []byte, out *[]Endpoint) {
	for _, child := range parser.NamedChildren(node) {
		if child.Kind() != "call" {
			e.walkRoutes(child, prefix, filePath, content, out)
			continue
		}
		method := parser.FieldText(child, "method", content)
		args := parser.FieldChild(child, "arguments")
		block := parser.FirstChildOfKind(child, "do_block", "block")

		switch method {
		case "namespace", "scope":
			segment := firstSymbolOrString(args, content)
			next := prefix
			if segment != "" {
				next = JoinPaths(prefix, segment)
			}
			if block != nil {
				e.walkRoutes(block, next, filePath, content, out)
			}
		case "resources", "resource":
			e.expandResources(child, args, prefix, filePath, content, out)
			if block != nil {
				resource := firstSymbolOrString(args, content)
				e.walkRoutes(block, JoinPaths(prefix, resource), filePath, content, out)
			}
		case "get", "post", "put", "patch", "delete":
			routePath := firstSymbolOrString(args, content)
			if routePath == "" {
				continue
			}
			full := JoinPaths(prefix, routePath)
			ep := Endpoint{
				Method:      NormalizeHTTPMethod(method),
				Path:        full,
				FilePath:    filePath,
				StartLine:   parser.Line(child),
				EndLine:     parser.EndLine(child),
				Framework:   "rails",
				HandlerType: HandlerControllerAction,
				Params:      PathParams(full),
			}
			if to := hashValue(args, "to", content); to != "" {
				ep.HandlerName = to
			}
			*out = append(*out, ep)
		default:
			if block != nil {
				e.walkRoutes(block, prefix, filePath, content, out)
			}
		}
	}
}

// expandResources emits the RESTful routes of a resources declaration,
// respecting only: and except: lists.
func (e *RailsExtractor) expandResources(call, args *sitter.Node, prefix, filePath string, content []byte, out *[]Endpoint) {
	resource := firstSymbolOrString(args, content)
	if resource == "" {
		return
	}
	only := symbolList(hashValueNode(args, "only", content), content)
	except := symbolList(hashValueNode(args, "except", content), content)

	allowed := func(action string) bool {
		if len(only) > 0 {
			for _, a := range only {
				if a == action {
					return true
				}
			}
			return false
		}
		for _, a := range except {
			if a == action {
				return false
			}
		}
		return true
	}

	base := JoinPaths(prefix, resource)
	for _, route := range restfulActions {
		if !allowed(route.action) {
			continue
		}
		full := base + route.suffix
		*out = append(*out, Endpoint{
			Method:      route.method,
			Path:        full,
			FilePath:    filePath,
			StartLine:   parser.Line(call),
			EndLine:     parser.EndLine(call),
			Framework:   "rails",
			HandlerName: resource + "#" + route.action,
			HandlerType: HandlerControllerAction,
			Params:      PathParams(full),
		})
	}
}

// extractController reads a controller class: Apipie-documented actions
// become endpoints carrying strong-parameter body params, before_action
// middleware, and YARD fallbacks.
func (e *RailsExtractor) extractController(root *sitter.Node, filePath string, content []byte) []Endpoint {
	class := parser.FirstChildOfKind(root, "class")
	if class == nil {
		classes := parser.Descendants(root, "class")
		if len(classes) == 0 {
			return nil
		}
		class = classes[0]
	}
	className := parser.FieldText(class, "name", content)

	middleware := beforeActions(class, content)
	bodyParams := strongParams(class, content)

	var out []Endpoint
	var pendingAPI *Endpoint
	var pendingDesc string
	var pendingParams []Param
	var pendingReturns string

	body := parser.FieldChild(class, "body")
	if body == nil {
		body = class
	}
	for _, stmt := range parser.NamedChildren(body) {
		switch stmt.Kind() {
		case "call":
			method := parser.FieldText(stmt, "method", content)
			args := parser.FieldChild(stmt, "arguments")
			switch method {
			case "api":
				pendingAPI = apipieEndpoint(stmt, args, filePath, content)
			case "desc":
				pendingDesc = firstSymbolOrString(args, content)
			case "param":
				if p := apipieParam(args, content); p != nil {
					pendingParams = append(pendingParams, *p)
				}
			case "returns":
				pendingReturns = parser.NodeText(args, content)
			}
		case "method":
			name := parser.FieldText(stmt, "name", content)
			if pendingAPI == nil {
				continue
			}
			ep := *pendingAPI
			ep.HandlerName = className + "#" + name
			ep.StartLine = parser.Line(stmt)
			ep.EndLine = parser.EndLine(stmt)
			if pendingDesc != "" && ep.Summary == "" {
				ep.Summary = pendingDesc
			}
			ep.Params = append(ep.Params, pendingParams...)
			ep.Params = append(ep.Params, bodyParams...)
			ep.Middleware = middleware
			if pendingReturns != "" {
				ep.ResponseModel = pendingReturns
			}
			if ep.Description == "" {
				if doc := yardDescription(stmt, content); doc != "" {
					ep.Description = doc
				}
			}
			out = append(out, ep)
			pendingAPI = nil
			pendingDesc = ""
			pendingParams = nil
			pendingReturns = ""
		}
	}
	return out
}

// apipieEndpoint reads `api :METHOD, '/path', 'summary'`.
func apipieEndpoint(call, args *sitter.Node, filePath string, content []byte) *Endpoint {
	named := parser.NamedChildren(args)
	if len(named) < 2 {
		return nil
	}
	method := strings.TrimPrefix(parser.NodeText(named[0], content), ":")
	routePath := rubyString(named[1], content)
	ep := &Endpoint{
		Method:      NormalizeHTTPMethod(method),
		Path:        routePath,
		FilePath:    filePath,
		StartLine:   parser.Line(call),
		EndLine:     parser.EndLine(call),
		Framework:   "rails",
		HandlerType: HandlerControllerAction,
		Params:      PathParams(routePath),
	}
	if len(named) >= 3 {
		ep.Summary = rubyString(named[2], content)
	}
	return ep
}

// apipieParam reads `param :name, Type, desc: '...', required: true`.
func apipieParam(args *sitter.Node, content []byte) *Param {
	named := parser.NamedChildren(args)
	if len(named) == 0 {
		return nil
	}
	name := strings.TrimPrefix(parser.NodeText(named[0], content), ":")
	if name == "" {
		return nil
	}
	p := &Param{Name: name, Location: LocationQuery}
	if len(named) > 1 && named[1].Kind() == "constant" {
		p.TypeAnnotation = parser.NodeText(named[1], content)
	}
	if req := hashValue(args, "required", content); req == "true" {
		p.Required = true
	}
	return p
}

// beforeActions collects before_action filter names of a controller class.
func beforeActions(class *sitter.Node, content []byte) []string {
	var out []string
	for _, call := range parser.Descendants(class, "call") {
		if parser.FieldText(call, "method", content) != "before_action" {
			continue
		}
		args := parser.FieldChild(call, "arguments")
		for _, arg := range parser.NamedChildren(args) {
			if arg.Kind() == "simple_symbol" {
				out = append(out, strings.TrimPrefix(parser.NodeText(arg, content), ":"))
			}
		}
	}
	return out
}

// strongParams reads params.require(:x).permit(:a, :b) chains anywhere in
// the class and returns the permitted names as body params.
func strongParams(class *sitter.Node, content []byte) []Param {
	var out []Param
	seen := make(map[string]bool)
	for _, call := range parser.Descendants(class, "call") {
		if parser.FieldText(call, "method", content) != "permit" {
			continue
		}
		receiver := parser.NodeText(parser.FieldChild(call, "receiver"), content)
		if !strings.Contains(receiver, "params") || !strings.Contains(receiver, "require") {
			continue
		}
		args := parser.FieldChild(call, "arguments")
		for _, arg := range parser.NamedChildren(args) {
			if arg.Kind() != "simple_symbol" {
				continue
			}
			name := strings.TrimPrefix(parser.NodeText(arg, content), ":")
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, Param{Name: name, Location: LocationBody})
		}
	}
	return out
}

// yardDescription reads the block of # comment lines directly above a
// method (YARD @param / @return tags included) as a fallback description.
func yardDescription(method *sitter.Node, content []byte) string {
	lines := strings.Split(string(content), "\n")
	start := int(method.StartPosition().Row)
	var doc []string
	for i := start - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "#") {
			break
		}
		doc = append([]string{strings.TrimSpace(strings.TrimPrefix(line, "#"))}, doc...)
	}
	return strings.Join(doc, "\n")
}

// firstSymbolOrString returns the first argument as text with symbol colon
// or quotes stripped.
func firstSymbolOrString(args *sitter.Node, content []byte) string {
	for _, arg := range parser.NamedChildren(args) {
		switch arg.Kind() {
		case "simple_symbol":
			return strings.TrimPrefix(parser.NodeText(arg, content), ":")
		case "string":
			return rubyString(arg, content)
		}
	}
	return ""
}

// hashValue returns the text of a keyword pair value (to:, only:, ...).
func hashValue(args *sitter.Node, key string, content []byte) string {
	node := hashValueNode(args, key, content)
	if node == nil {
		return ""
	}
	if node.Kind() == "string" {
		return rubyString(node, content)
	}
	return parser.NodeText(node, content)
}

func hashValueNode(args *sitter.Node, key string, content []byte) *sitter.Node {
	if args == nil {
		return nil
	}
	var found *sitter.Node
	parser.Walk(args, func(n *sitter.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind() != "pair" {
			return true
		}
		k := parser.FieldText(n, "key", content)
		if strings.TrimSuffix(strings.TrimPrefix(k, ":"), ":") == key {
			found = parser.FieldChild(n, "value")
			return false
		}
		return true
	})
	return found
}

// symbolList reads an array of symbols into names.
func symbolList(node *sitter.Node, content []byte) []string {
	if node == nil {
		return nil
	}
	var out []string
	for _, el := range parser.NamedChildren(node) {
		if el.Kind() == "simple_symbol" {
			out = append(out, strings.TrimPrefix(parser.NodeText(el, content), ":"))
		}
	}
	return out
}

// rubyString unquotes a Ruby string node.
func rubyString(node *sitter.Node, content []byte) string {
	return strings.Trim(parser.NodeText(node, content), "'\"")
}
