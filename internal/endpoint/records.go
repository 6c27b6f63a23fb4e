// Package endpoint discovers HTTP routes in source trees using
// framework-specific extraction passes.
package endpoint

import (
	"strings"
)

// Handler linkage kinds.
const (
	HandlerReference        = "reference"
	HandlerInline           = "inline"
	HandlerClassMethod      = "class_method"
	HandlerControllerAction = "controller_action"
)

// Param locations.
const (
	LocationPath   = "path"
	LocationQuery  = "query"
	LocationHeader = "header"
	LocationCookie = "cookie"
	LocationBody   = "body"
)

// Param is one endpoint parameter.
type Param struct {
	Name           string
	Location       string
	TypeAnnotation string
	Required       bool
}

// Endpoint is one discovered HTTP route.
type Endpoint struct {
	Method         string
	Path           string
	FilePath       string
	StartLine      int
	EndLine        int
	Framework      string
	HandlerName    string
	HandlerType    string
	Summary        string
	Description    string
	Tags           []string
	Middleware     []string
	Dependencies   []string
	ResponseModel  string
	ResponseStatus int
	BodySchema     string
	Params         []Param
}

var httpMethods = map[string]string{
	"get": "GET", "post": "POST", "put": "PUT", "patch": "PATCH",
	"delete": "DELETE", "options": "OPTIONS", "head": "HEAD", "all": "ALL",
}

// NormalizeHTTPMethod maps a method string to its canonical form. Unknown
// strings fall back to ALL.
func NormalizeHTTPMethod(method string) string {
	if canonical, ok := httpMethods[strings.ToLower(strings.TrimSpace(method))]; ok {
		return canonical
	}
	return "ALL"
}

// MethodFromList collapses a list of methods to one endpoint method: the
// single element when the list is homogeneous, ALL otherwise.
func MethodFromList(methods []string) string {
	if len(methods) == 0 {
		return "ALL"
	}
	first := NormalizeHTTPMethod(methods[0])
	for _, m := range methods[1:] {
		if NormalizeHTTPMethod(m) != first {
			return "ALL"
		}
	}
	return first
}

// PathParams parses the placeholder names of a path template. Accepted
// syntaxes: :name, {name}, <name>, and <converter:name>.
func PathParams(pathTemplate string) []Param {
	var out []Param
	add := func(name string) {
		if name == "" {
			return
		}
		out = append(out, Param{Name: name, Location: LocationPath, Required: true})
	}

	segments := strings.Split(pathTemplate, "/")
	for _, seg := range segments {
		switch {
		case strings.HasPrefix(seg, ":"):
			add(strings.TrimLeft(strings.TrimPrefix(seg, ":"), ":"))
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			add(strings.Trim(seg, "{}"))
		case strings.HasPrefix(seg, "<") && strings.HasSuffix(seg, ">"):
			inner := strings.Trim(seg, "<>")
			if idx := strings.LastIndexByte(inner, ':'); idx >= 0 {
				inner = inner[idx+1:]
			}
			add(inner)
		}
	}
	return out
}

// PathParamNames returns just the placeholder names of a path template, nil
// when it has none.
func PathParamNames(pathTemplate string) []string {
	var names []string
	for _, p := range PathParams(pathTemplate) {
		names = append(names, p.Name)
	}
	return names
}

// JoinPaths joins two path fragments with single slashes.
func JoinPaths(prefix, suffix string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	suffix = strings.TrimPrefix(suffix, "/")
	switch {
	case prefix == "" && suffix == "":
		return "/"
	case suffix == "":
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		return prefix
	default:
		joined := prefix + "/" + suffix
		if !strings.HasPrefix(joined, "/") {
			joined = "/" + joined
		}
		return joined
	}
}
