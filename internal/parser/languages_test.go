package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLanguageForPath(t *testing.T) {
	cases := map[string]string{
		"src/app.ts":         "typescript",
		"src/view.tsx":       "tsx",
		"lib/index.js":       "javascript",
		"lib/widget.jsx":     "javascript",
		"app/models/user.rb": "ruby",
		"main.py":            "python",
		"lib/ui.dart":        "dart",
		"cmd/main.go":        "go",
		"src/lib.rs":         "rust",
		"README.md":          "",
		"Gemfile":            "ruby",
	}
	for path, want := range cases {
		require.Equal(t, want, LanguageForPath(path), "path %s", path)
	}
}

func TestCoreGrammarsAvailable(t *testing.T) {
	r := NewRegistry()
	for _, lang := range []string{"typescript", "tsx", "javascript", "python", "ruby"} {
		require.True(t, r.Available(lang), "grammar %s", lang)
	}
}

func TestUnlinkedGrammarsUnavailable(t *testing.T) {
	r := NewRegistry()
	for _, lang := range []string{"go", "rust", "java"} {
		require.False(t, r.Available(lang), "grammar %s", lang)
	}

	_, err := r.Parse("go", []byte("package main"))
	require.ErrorIs(t, err, ErrGrammarUnavailable)
}

func TestParseUnknownExtension(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.ParseFile("notes.txt", []byte("hello"))
	require.ErrorIs(t, err, ErrUnsupportedFile)
}

func TestParseFileProducesTree(t *testing.T) {
	r := NewRegistry()
	tree, language, err := r.ParseFile("app.ts", []byte("const x = 1;\n"))
	require.NoError(t, err)
	defer tree.Close()
	require.Equal(t, "typescript", language)
	require.Equal(t, "program", tree.RootNode().Kind())
	require.False(t, tree.RootNode().HasError())
}

func TestWalkHelpers(t *testing.T) {
	r := NewRegistry()
	src := []byte("function greet(name) { return name; }\n")
	tree, _, err := r.ParseFile("a.js", src)
	require.NoError(t, err)
	defer tree.Close()

	fns := Descendants(tree.RootNode(), "function_declaration")
	require.Len(t, fns, 1)
	require.Equal(t, "greet", FieldText(fns[0], "name", src))
	require.Equal(t, 1, Line(fns[0]))

	ids := Descendants(tree.RootNode(), "identifier")
	require.NotEmpty(t, ids)
}
