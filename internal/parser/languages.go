// Package parser maps source files to tree-sitter grammars and parses them.
package parser

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"

	tree_sitter_dart "github.com/UserNobody14/tree-sitter-dart/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// ErrGrammarUnavailable is returned when a file maps to a recognized language
// whose grammar is not linked into this build or failed its version probe.
var ErrGrammarUnavailable = errors.New("grammar unavailable")

// ErrUnsupportedFile is returned for extensions that map to no known language.
var ErrUnsupportedFile = errors.New("unsupported file type")

// languageConfig holds one registered grammar.
type languageConfig struct {
	name      string
	language  *sitter.Language
	available bool
}

// Registry manages the supported grammars and parses source files.
// Core grammars (typescript, tsx, javascript, python, ruby) are always
// registered; optional grammars are probed at construction and may be
// marked unavailable without failing startup.
type Registry struct {
	languages map[string]*languageConfig
	mu        sync.RWMutex
}

// NewRegistry creates a registry with all linked grammars registered.
func NewRegistry() *Registry {
	r := &Registry{languages: make(map[string]*languageConfig)}

	core := []struct {
		name     string
		language *sitter.Language
	}{
		{"typescript", sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())},
		{"tsx", sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())},
		{"javascript", sitter.NewLanguage(tree_sitter_javascript.Language())},
		{"python", sitter.NewLanguage(tree_sitter_python.Language())},
		{"ruby", sitter.NewLanguage(tree_sitter_ruby.Language())},
	}
	for _, lang := range core {
		r.register(lang.name, lang.language)
	}

	// Optional grammars: probe, keep going on failure.
	r.register("dart", sitter.NewLanguage(tree_sitter_dart.Language()))

	// Recognized languages with no linked grammar. Files mapping to these
	// are skipped with a "grammar unavailable" status rather than treated
	// as unknown file types.
	for _, name := range []string{"go", "rust", "java", "c", "cpp"} {
		if _, ok := r.languages[name]; !ok {
			r.languages[name] = &languageConfig{name: name}
		}
	}

	return r
}

// register probes a grammar against a scratch parser and records the result.
// An ABI-incompatible grammar is registered as unavailable instead of
// aborting startup.
func (r *Registry) register(name string, language *sitter.Language) {
	cfg := &languageConfig{name: name, language: language}
	if language != nil {
		p := sitter.NewParser()
		if err := p.SetLanguage(language); err == nil {
			cfg.available = true
		}
		p.Close()
	}
	r.mu.Lock()
	r.languages[name] = cfg
	r.mu.Unlock()
}

// LanguageForPath maps a file path to a language tag, or "" when unknown.
func LanguageForPath(path string) string {
	base := strings.ToLower(filepath.Base(path))
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ts", ".mts", ".cts":
		return "typescript"
	case ".tsx":
		return "tsx"
	case ".js", ".mjs", ".cjs", ".jsx":
		return "javascript"
	case ".py", ".pyi":
		return "python"
	case ".rb", ".rake":
		return "ruby"
	case ".dart":
		return "dart"
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".c", ".h":
		return "c"
	case ".cpp", ".cc", ".cxx", ".hpp":
		return "cpp"
	default:
		if base == "gemfile" || base == "rakefile" {
			return "ruby"
		}
		return ""
	}
}

// Available reports whether a grammar for the language tag is usable.
func (r *Registry) Available(language string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.languages[language]
	return ok && cfg.available
}

// SupportedLanguages returns the tags with a usable grammar.
func (r *Registry) SupportedLanguages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name, cfg := range r.languages {
		if cfg.available {
			names = append(names, name)
		}
	}
	return names
}

// Parse parses source content in the given language and returns the tree.
// The caller owns the tree and must Close it. A nil tree from the underlying
// parser is reported as a parse failure, never a panic.
func (r *Registry) Parse(language string, content []byte) (*sitter.Tree, error) {
	r.mu.RLock()
	cfg, ok := r.languages[language]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, language)
	}
	if !cfg.available {
		return nil, fmt.Errorf("%w: %s", ErrGrammarUnavailable, language)
	}

	p := sitter.NewParser()
	defer p.Close()
	if err := p.SetLanguage(cfg.language); err != nil {
		return nil, fmt.Errorf("set language %s: %w", language, err)
	}

	tree := p.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse failed for language %s", language)
	}
	return tree, nil
}

// ParseFile maps the path to a language and parses the content.
func (r *Registry) ParseFile(path string, content []byte) (*sitter.Tree, string, error) {
	language := LanguageForPath(path)
	if language == "" {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}
	tree, err := r.Parse(language, content)
	if err != nil {
		return nil, language, err
	}
	return tree, language, nil
}
