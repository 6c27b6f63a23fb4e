package store

import (
	"context"
	"path"
	"sort"
	"strings"
)

// Summary is the codebase_summary aggregate for one commit.
type Summary struct {
	TotalFiles   int
	TotalSymbols int
	TotalUsages  int
	TotalImports int
	Languages    map[string]int // extension classifier -> file count
	TopModules   []ModuleCount
	EntryPoints  []string
	Hotspots     []Hotspot
	ExternalDeps []ModuleCount
}

// ModuleCount pairs a module name with an occurrence count.
type ModuleCount struct {
	Module string
	Count  int
}

// GraphEdge is one aggregated dependency edge.
type GraphEdge struct {
	From     string
	To       string
	Count    int
	Internal bool
}

// entryPointStems mark conventional entry-point files.
var entryPointStems = []string{"index", "main", "app", "server"}

// CodebaseSummary aggregates totals, language breakdown, top modules, entry
// points, hotspots, and external dependencies for a commit.
func (s *Store) CodebaseSummary(ctx context.Context, commitID int64) (*Summary, error) {
	files, err := s.CommitFiles(ctx, commitID)
	if err != nil {
		return nil, err
	}
	symbols, usages, imports, err := s.CountRows(ctx, commitID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TotalFiles:   len(files),
		TotalSymbols: symbols,
		TotalUsages:  usages,
		TotalImports: imports,
		Languages:    make(map[string]int),
	}

	for _, f := range files {
		summary.Languages[classifyExtension(f)]++
		stem := strings.TrimSuffix(path.Base(f), path.Ext(f))
		for _, entry := range entryPointStems {
			if stem == entry {
				summary.EntryPoints = append(summary.EntryPoints, f)
				break
			}
		}
	}

	allImports, err := s.AllImports(ctx, commitID)
	if err != nil {
		return nil, err
	}
	moduleCounts := make(map[string]int)
	externalCounts := make(map[string]int)
	for _, imp := range allImports {
		moduleCounts[imp.ModuleSpecifier]++
		if pkg, external := externalPackage(imp.ModuleSpecifier); external {
			externalCounts[pkg]++
		}
	}
	summary.TopModules = sortedCounts(moduleCounts, 10)
	summary.ExternalDeps = sortedCounts(externalCounts, 0)

	summary.Hotspots, err = s.Hotspots(ctx, commitID, 10)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// DependencyGraph aggregates import edges between top-level modules. Nodes
// are the first path segment of a file (or the bare package name); edges
// carry counts and an internal/external tag.
func (s *Store) DependencyGraph(ctx context.Context, commitID int64, maxEdges int) ([]GraphEdge, error) {
	if maxEdges <= 0 {
		maxEdges = 100
	}
	allImports, err := s.AllImports(ctx, commitID)
	if err != nil {
		return nil, err
	}

	type edgeKey struct {
		from, to string
		internal bool
	}
	counts := make(map[edgeKey]int)
	for _, imp := range allImports {
		from := topLevelSegment(imp.FilePath)
		to, internal := importTarget(imp.ModuleSpecifier, imp.FilePath)
		if to == "" || to == from && internal {
			continue
		}
		counts[edgeKey{from, to, internal}]++
	}

	edges := make([]GraphEdge, 0, len(counts))
	for key, count := range counts {
		edges = append(edges, GraphEdge{From: key.from, To: key.to, Count: count, Internal: key.internal})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Count != edges[j].Count {
			return edges[i].Count > edges[j].Count
		}
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	if len(edges) > maxEdges {
		edges = edges[:maxEdges]
	}
	return edges, nil
}

// classifyExtension buckets a file into a language label by extension.
func classifyExtension(file string) string {
	switch strings.ToLower(path.Ext(file)) {
	case ".ts", ".tsx", ".mts", ".cts":
		return "typescript"
	case ".js", ".jsx", ".mjs", ".cjs":
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
	default:
		return "other"
	}
}

// externalPackage extracts the package name of a bare (non-relative,
// non-absolute) specifier: the first segment, with scoped @scope/name
// preserved.
func externalPackage(specifier string) (string, bool) {
	if specifier == "" || strings.HasPrefix(specifier, ".") || strings.HasPrefix(specifier, "/") {
		return "", false
	}
	if strings.HasPrefix(specifier, "@") {
		parts := strings.SplitN(specifier, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1], true
		}
		return specifier, true
	}
	if idx := strings.IndexByte(specifier, '/'); idx >= 0 {
		return specifier[:idx], true
	}
	return specifier, true
}

// importTarget resolves the graph node an import points at.
func importTarget(specifier, fromFile string) (string, bool) {
	if strings.HasPrefix(specifier, ".") {
		resolved := path.Join(path.Dir(fromFile), specifier)
		return topLevelSegment(resolved), true
	}
	if strings.HasPrefix(specifier, "/") {
		return topLevelSegment(strings.TrimPrefix(specifier, "/")), true
	}
	pkg, _ := externalPackage(specifier)
	return pkg, false
}

func topLevelSegment(filePath string) string {
	clean := strings.TrimPrefix(path.Clean(filePath), "./")
	if idx := strings.IndexByte(clean, '/'); idx >= 0 {
		return clean[:idx]
	}
	return clean
}

func sortedCounts(counts map[string]int, limit int) []ModuleCount {
	out := make([]ModuleCount, 0, len(counts))
	for module, count := range counts {
		out = append(out, ModuleCount{Module: module, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Module < out[j].Module
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
