package indexer

import (
	"strings"

	"github.com/sourcerack/sourcerack/internal/parser"
)

// ignoredDirs are path segments excluded from commit file enumeration:
// dependency trees, build output, and VCS internals.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".git":         true,
	".svn":         true,
	".hg":          true,
	".venv":        true,
	"venv":         true,
	".tox":         true,
	"coverage":     true,
}

// shouldIndex reports whether a committed file participates in extraction:
// a recognized language extension outside the ignored directories. Rails
// route files have no symbols of interest on their own but still must pass
// for the endpoint extractors, and they carry the .rb extension anyway.
func shouldIndex(path string) bool {
	for _, segment := range strings.Split(path, "/") {
		if ignoredDirs[segment] {
			return false
		}
	}
	return parser.LanguageForPath(path) != ""
}

// filterFiles keeps the indexable paths.
func filterFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if shouldIndex(p) {
			out = append(out, p)
		}
	}
	return out
}
