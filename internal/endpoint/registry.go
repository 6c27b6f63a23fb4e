package endpoint

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/sourcerack/sourcerack/internal/extract"
)

// Extractor is one framework's endpoint discovery pass.
type Extractor interface {
	// Framework is the tag written on extracted endpoints.
	Framework() string
	// Language is the language tag the extractor parses.
	Language() string
	// Aliases are alternative framework names for lookups.
	Aliases() []string
	// CanHandle decides from the file path and its imports whether the
	// extractor should run on the file.
	CanHandle(filePath string, imports []extract.Import) bool
	// Extract walks the tree and returns the file's endpoints.
	Extract(tree *sitter.Tree, filePath string, content []byte, imports []extract.Import) ([]Endpoint, error)
}

// Registry holds the known framework extractors.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns a registry with all built-in framework extractors.
func NewRegistry() *Registry {
	return &Registry{extractors: []Extractor{
		NewExpressExtractor(),
		NewKoaExtractor(),
		NewFastifyExtractor(),
		NewNestExtractor(),
		NewFastAPIExtractor(),
		NewFlaskExtractor(),
		NewDjangoExtractor(),
		NewRailsExtractor(),
		NewSinatraExtractor(),
		NewMCPExtractor(),
	}}
}

// Matching returns the extractors whose language matches and whose
// CanHandle accepts the file.
func (r *Registry) Matching(language, filePath string, imports []extract.Import) []Extractor {
	var out []Extractor
	for _, e := range r.extractors {
		if !languageMatches(e.Language(), language) {
			continue
		}
		if e.CanHandle(filePath, imports) {
			out = append(out, e)
		}
	}
	return out
}

// languageMatches treats the TypeScript dialects as one language family.
// An empty extractor language matches any file language.
func languageMatches(extractorLang, fileLang string) bool {
	if extractorLang == "" || extractorLang == fileLang {
		return true
	}
	js := map[string]bool{"typescript": true, "tsx": true, "javascript": true}
	return js[extractorLang] && js[fileLang]
}

// importsModule reports whether any import's specifier contains one of the
// given module names.
func importsModule(imports []extract.Import, modules ...string) bool {
	for _, imp := range imports {
		for _, m := range modules {
			if strings.Contains(imp.ModuleSpecifier, m) {
				return true
			}
		}
	}
	return false
}
