package extract

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Extractor is one language's symbol/usage/import extraction pass.
type Extractor interface {
	// Language is the primary language tag this extractor handles.
	Language() string
	// Aliases are additional language tags served by this extractor.
	Aliases() []string
	// Extract walks the tree and returns the file's record stream.
	Extract(tree *sitter.Tree, filePath string, content []byte) (*FileRecords, error)
}

// Registry maps language tags to extractors.
type Registry struct {
	byLanguage map[string]Extractor
}

// NewRegistry returns a registry with all built-in extractors registered.
func NewRegistry() *Registry {
	r := &Registry{byLanguage: make(map[string]Extractor)}
	r.Register(NewTypeScriptExtractor())
	r.Register(NewPythonExtractor())
	r.Register(NewRubyExtractor())
	r.Register(NewDartExtractor())
	return r
}

// Register adds an extractor under its language tag and aliases.
func (r *Registry) Register(e Extractor) {
	r.byLanguage[e.Language()] = e
	for _, alias := range e.Aliases() {
		r.byLanguage[alias] = e
	}
}

// ForLanguage returns the extractor for a language tag, or nil.
func (r *Registry) ForLanguage(language string) Extractor {
	return r.byLanguage[language]
}
