package endpoint

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/parser"
)

// MCPExtractor finds Model Context Protocol tool registrations: Python
// @mcp.tool() decorators and TypeScript server.tool("name", ...) calls.
// Tools are modeled as POST endpoints under /tools.
type MCPExtractor struct{}

// NewMCPExtractor returns the MCP tool extractor.
func NewMCPExtractor() *MCPExtractor {
	return &MCPExtractor{}
}

func (e *MCPExtractor) Framework() string { return "mcp" }

// Language is empty: MCP servers are registered from Python and TypeScript
// sources alike.
func (e *MCPExtractor) Language() string { return "" }
func (e *MCPExtractor) Aliases() []string { return nil }

func (e *MCPExtractor) CanHandle(filePath string, imports []extract.Import) bool {
	return importsModule(imports, "mcp", "fastmcp", "@modelcontextprotocol")
}

func (e *MCPExtractor) Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error) {
	var out []Endpoint

	// Python: @mcp.tool() / @server.tool().
	for _, def := range parser.Descendants(tree.RootNode(), "function_definition") {
		for _, dec := range pyDecorators(def, content) {
			if lastSegment(dec.name) != "tool" {
				continue
			}
			name := parser.FieldText(def, "name", content)
			summary, full := pyDocSummary(def, content)
			routePath := "/tools/" + name
			ep := Endpoint{
				Method:      "POST",
				Path:        routePath,
				FilePath:    filePath,
				StartLine:   parser.Line(def),
				EndLine:     parser.EndLine(def),
				Framework:   "mcp",
				HandlerName: name,
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

	// TypeScript: server.tool("name", handler).
	for _, call := range parser.Descendants(tree.RootNode(), "call_expression") {
		fn := parser.FieldChild(call, "function")
		if fn == nil || fn.Kind() != "member_expression" {
			continue
		}
		if parser.FieldText(fn, "property", content) != "tool" {
			continue
		}
		args := parser.NamedChildren(parser.FieldChild(call, "arguments"))
		if len(args) == 0 || args[0].Kind() != "string" {
			continue
		}
		name := strings.Trim(parser.NodeText(args[0], content), "'\"`")
		routePath := "/tools/" + name
		ep := Endpoint{
			Method:      "POST",
			Path:        routePath,
			FilePath:    filePath,
			StartLine:   parser.Line(call),
			EndLine:     parser.EndLine(call),
			Framework:   "mcp",
			HandlerType: HandlerInline,
			Params:      PathParams(routePath),
		}
		if last := args[len(args)-1]; last.Kind() == "identifier" {
			ep.HandlerName = parser.NodeText(last, content)
			ep.HandlerType = HandlerReference
		}
		out = append(out, ep)
	}
	return out, nil
}
