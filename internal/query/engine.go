package query

import (
	"context"
	"errors"
	"strings"

	"github.com/sourcerack/sourcerack/internal/gitrepo"
	"github.com/sourcerack/sourcerack/internal/store"
	"github.com/sourcerack/sourcerack/internal/store/contentcache"
)

// SourceOpener opens a git source for a registered repository path. The
// engine injects it so tests can substitute an in-memory source.
type SourceOpener func(repoPath string) (gitrepo.Source, error)

// Engine executes the public query surface.
type Engine struct {
	store      *store.Store
	openSource SourceOpener
	cache      contentcache.Cache
}

// New returns an engine over the store using real git repositories.
func New(s *store.Store) *Engine {
	return NewWithSource(s, func(repoPath string) (gitrepo.Source, error) {
		return gitrepo.Open(repoPath)
	})
}

// NewWithSource returns an engine with a custom source opener.
func NewWithSource(s *store.Store, open SourceOpener) *Engine {
	return &Engine{store: s, openSource: open}
}

// WithCache attaches a content cache consulted before git reads when
// building context snippets.
func (e *Engine) WithCache(cache contentcache.Cache) *Engine {
	e.cache = cache
	return e
}

// Target identifies the repo and commit a query resolved to.
type Target struct {
	Repo   store.Repository
	Commit store.Commit
}

// resolveTarget verifies the repo is registered and the ref resolves to a
// commit indexed with status complete.
func (e *Engine) resolveTarget(ctx context.Context, repoPath, ref string) (*Target, gitrepo.Source, *Error) {
	repo, err := e.store.GetRepositoryByPath(ctx, repoPath)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, errf(CodeRepoNotRegistered, "repository %s is not registered", repoPath)
	}
	if err != nil {
		return nil, nil, dbError(err)
	}

	src, err := e.openSource(repoPath)
	if err != nil {
		return nil, nil, errf(CodeCommitNotResolved, "cannot open repository %s: %v", repoPath, err)
	}
	sha, err := src.ResolveRef(ref)
	if err != nil {
		return nil, nil, errf(CodeCommitNotResolved, "cannot resolve %s in %s", ref, repoPath)
	}

	commit, err := e.store.GetIndexedCommit(ctx, repo.ID, sha)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, errf(CodeCommitNotIndexed, "commit %s is not indexed", sha)
	}
	if err != nil {
		return nil, nil, dbError(err)
	}
	if commit.Status != store.StatusComplete {
		return nil, nil, errf(CodeCommitIncomplete, "commit %s has status %s", sha, commit.Status)
	}
	return &Target{Repo: *repo, Commit: *commit}, src, nil
}

// DefinitionMatch is one fuzzy candidate with its score.
type DefinitionMatch struct {
	Symbol     store.SymbolRow `json:"symbol"`
	Similarity float64         `json:"similarity"`
}

// DefinitionResult is the find_definition output.
type DefinitionResult struct {
	Target Target            `json:"target"`
	Exact  []store.SymbolRow `json:"exact"`
	Fuzzy  []DefinitionMatch `json:"fuzzy,omitempty"`
}

// FindDefinition returns the exact-name definitions and, when fuzzy is
// requested, the similar-name candidates with scores.
func (e *Engine) FindDefinition(ctx context.Context, repoPath, ref, name, kind string, fuzzy bool, minSimilarity float64) (*DefinitionResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}

	exact, err := e.store.FindSymbolsExact(ctx, target.Commit.ID, name, kind)
	if err != nil {
		return nil, dbError(err)
	}
	result := &DefinitionResult{Target: *target, Exact: exact}

	if fuzzy {
		matches, err := e.store.FindSymbolsFuzzy(ctx, target.Commit.ID, name, minSimilarity, 25, kind)
		if err != nil {
			return nil, dbError(err)
		}
		for _, m := range matches {
			if m.Symbol.Name == name {
				continue // already in the exact list
			}
			result.Fuzzy = append(result.Fuzzy, DefinitionMatch{Symbol: m.Symbol, Similarity: m.Similarity})
		}
	}
	return result, nil
}

// UsageResult is one usage with its context snippet.
type UsageResult struct {
	Usage   store.UsageRow `json:"usage"`
	Snippet string         `json:"snippet,omitempty"`
}

// UsagesResult is the find_usages output.
type UsagesResult struct {
	Target Target        `json:"target"`
	Usages []UsageResult `json:"usages"`
	Fuzzy  map[string][]UsageResult `json:"fuzzy,omitempty"`
}

// FindUsages returns the usages of a name, each with a snippet built from
// file content at the commit. Read failures yield an empty snippet, not an
// error. With fuzzy set, similar names contribute their own buckets.
func (e *Engine) FindUsages(ctx context.Context, repoPath, ref, name, file string, fuzzy bool) (*UsagesResult, *Error) {
	target, src, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}

	usages, err := e.store.FindUsagesByName(ctx, target.Commit.ID, name, file)
	if err != nil {
		return nil, dbError(err)
	}
	result := &UsagesResult{Target: *target}
	result.Usages = e.withSnippets(src, target.Repo.ID, target.Commit.SHA, usages)

	if fuzzy {
		matches, err := e.store.FindSymbolsFuzzy(ctx, target.Commit.ID, name, 0.4, 10, "")
		if err != nil {
			return nil, dbError(err)
		}
		for _, m := range matches {
			if m.Symbol.Name == name {
				continue
			}
			similar, err := e.store.FindUsagesByName(ctx, target.Commit.ID, m.Symbol.Name, file)
			if err != nil {
				return nil, dbError(err)
			}
			if len(similar) == 0 {
				continue
			}
			if result.Fuzzy == nil {
				result.Fuzzy = make(map[string][]UsageResult)
			}
			result.Fuzzy[m.Symbol.Name] = e.withSnippets(src, target.Repo.ID, target.Commit.SHA, similar)
		}
	}
	return result, nil
}

// withSnippets attaches the line before through the line after each usage.
// The content cache short-circuits git reads; a file that cannot be read at
// all yields an empty snippet.
func (e *Engine) withSnippets(src gitrepo.Source, repoID int64, sha string, usages []store.UsageRow) []UsageResult {
	contents := make(map[string][]string)
	out := make([]UsageResult, 0, len(usages))
	for _, u := range usages {
		lines, ok := contents[u.FilePath]
		if !ok {
			lines = e.fileLines(src, repoID, sha, u.FilePath)
			contents[u.FilePath] = lines
		}
		out = append(out, UsageResult{Usage: u, Snippet: snippet(lines, u.Line)})
	}
	return out
}

func (e *Engine) fileLines(src gitrepo.Source, repoID int64, sha, path string) []string {
	if e.cache != nil {
		if raw, err := e.cache.Get(repoID, sha, path); err == nil {
			return strings.Split(string(raw), "\n")
		}
	}
	raw, err := src.ReadFileAtCommit(sha, path)
	if err != nil {
		return nil
	}
	if e.cache != nil {
		e.cache.Put(repoID, sha, path, raw)
	}
	return strings.Split(string(raw), "\n")
}

// snippet returns the source around a 1-based line (one line either side).
func snippet(lines []string, line int) string {
	if len(lines) == 0 || line < 1 || line > len(lines) {
		return ""
	}
	start := line - 2
	if start < 0 {
		start = 0
	}
	end := line + 1
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start:end], "\n")
}

// HierarchyResult is the find_hierarchy output.
type HierarchyResult struct {
	Target   Target            `json:"target"`
	Symbol   store.SymbolRow   `json:"symbol"`
	Children []store.SymbolRow `json:"children,omitempty"`
	Parents  []store.SymbolRow `json:"parents,omitempty"`
}

// FindHierarchy returns a symbol's direct children and/or its parent chain.
// Hierarchy is a strict query: an unknown name is an error.
func (e *Engine) FindHierarchy(ctx context.Context, repoPath, ref, name, direction string) (*HierarchyResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	symbols, err := e.store.FindSymbolsExact(ctx, target.Commit.ID, name, "")
	if err != nil {
		return nil, dbError(err)
	}
	if len(symbols) == 0 {
		return nil, errf(CodeSymbolNotFound, "symbol %s not found", name)
	}
	symbol := symbols[0]

	result := &HierarchyResult{Target: *target, Symbol: symbol}
	if direction == "children" || direction == "both" {
		result.Children, err = e.store.ChildSymbols(ctx, symbol.ID)
		if err != nil {
			return nil, dbError(err)
		}
	}
	if direction == "parents" || direction == "both" {
		result.Parents, err = e.store.ParentChain(ctx, symbol.ID)
		if err != nil {
			return nil, dbError(err)
		}
	}
	return result, nil
}

// ImportsResult is the find_imports / find_importers output.
type ImportsResult struct {
	Target  Target            `json:"target"`
	Imports []store.ImportRow `json:"imports"`
}

// FindImports returns a file's import statements.
func (e *Engine) FindImports(ctx context.Context, repoPath, ref, file string) (*ImportsResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	imports, err := e.store.ImportsOfFile(ctx, target.Commit.ID, file)
	if err != nil {
		return nil, dbError(err)
	}
	return &ImportsResult{Target: *target, Imports: imports}, nil
}

// FindImporters returns the files importing a module.
func (e *Engine) FindImporters(ctx context.Context, repoPath, ref, module string) (*ImportsResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	imports, err := e.store.Importers(ctx, target.Commit.ID, module)
	if err != nil {
		return nil, dbError(err)
	}
	return &ImportsResult{Target: *target, Imports: imports}, nil
}

// SummaryResult is the codebase_summary output.
type SummaryResult struct {
	Target  Target        `json:"target"`
	Summary store.Summary `json:"summary"`
}

// CodebaseSummary aggregates totals, languages, modules, entry points,
// hotspots, and external dependencies.
func (e *Engine) CodebaseSummary(ctx context.Context, repoPath, ref string) (*SummaryResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	summary, err := e.store.CodebaseSummary(ctx, target.Commit.ID)
	if err != nil {
		return nil, dbError(err)
	}
	return &SummaryResult{Target: *target, Summary: *summary}, nil
}

// GraphResult is the get_dependency_graph output.
type GraphResult struct {
	Target Target            `json:"target"`
	Edges  []store.GraphEdge `json:"edges"`
}

// DependencyGraph aggregates import edges between top-level modules.
func (e *Engine) DependencyGraph(ctx context.Context, repoPath, ref string, maxEdges int) (*GraphResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	edges, err := e.store.DependencyGraph(ctx, target.Commit.ID, maxEdges)
	if err != nil {
		return nil, dbError(err)
	}
	return &GraphResult{Target: *target, Edges: edges}, nil
}

// DeadCodeResult is the find_dead_code output.
type DeadCodeResult struct {
	Target  Target            `json:"target"`
	Symbols []store.SymbolRow `json:"symbols"`
}

// FindDeadCode returns top-level symbols nothing resolves to.
func (e *Engine) FindDeadCode(ctx context.Context, repoPath, ref string, exportedOnly bool, limit int) (*DeadCodeResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	symbols, err := e.store.GetDeadSymbols(ctx, target.Commit.ID, exportedOnly, limit)
	if err != nil {
		return nil, dbError(err)
	}
	return &DeadCodeResult{Target: *target, Symbols: symbols}, nil
}

// ImpactResult is the analyze_change_impact output.
type ImpactResult struct {
	Target       Target                 `json:"target"`
	Symbol       store.SymbolRow        `json:"symbol"`
	DirectUsages []store.UsageRow       `json:"direct_usages"`
	Transitive   []store.ImpactedSymbol `json:"transitive_impact"`
}

// AnalyzeChangeImpact returns a symbol's direct usages and its transitive
// impact set up to maxDepth hops. Impact is a strict query: an unknown name
// is an error.
func (e *Engine) AnalyzeChangeImpact(ctx context.Context, repoPath, ref, name string, maxDepth int) (*ImpactResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	symbols, err := e.store.FindSymbolsExact(ctx, target.Commit.ID, name, "")
	if err != nil {
		return nil, dbError(err)
	}
	if len(symbols) == 0 {
		return nil, errf(CodeSymbolNotFound, "symbol %s not found", name)
	}
	symbol := symbols[0]

	direct, err := e.store.UsagesOfSymbol(ctx, symbol.ID)
	if err != nil {
		return nil, dbError(err)
	}
	transitive, err := e.store.GetTransitiveImpact(ctx, symbol.ID, maxDepth)
	if err != nil {
		return nil, dbError(err)
	}
	return &ImpactResult{
		Target:       *target,
		Symbol:       symbol,
		DirectUsages: direct,
		Transitive:   transitive,
	}, nil
}

// EndpointsResult is the find_endpoints output.
type EndpointsResult struct {
	Target    Target              `json:"target"`
	Endpoints []store.EndpointRow `json:"endpoints"`
}

// FindEndpoints returns the commit's discovered HTTP endpoints.
func (e *Engine) FindEndpoints(ctx context.Context, repoPath, ref, method, framework, pathContains string) (*EndpointsResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	endpoints, err := e.store.FindEndpoints(ctx, target.Commit.ID, method, framework, pathContains)
	if err != nil {
		return nil, dbError(err)
	}
	return &EndpointsResult{Target: *target, Endpoints: endpoints}, nil
}

// EndpointStatsResult is the get_endpoint_stats output.
type EndpointStatsResult struct {
	Target Target              `json:"target"`
	Stats  store.EndpointStats `json:"stats"`
}

// GetEndpointStats returns endpoint counts by framework and method.
func (e *Engine) GetEndpointStats(ctx context.Context, repoPath, ref string) (*EndpointStatsResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	stats, err := e.store.GetEndpointStats(ctx, target.Commit.ID)
	if err != nil {
		return nil, dbError(err)
	}
	return &EndpointStatsResult{Target: *target, Stats: *stats}, nil
}

// SymbolContextResult is the get_symbol_context output.
type SymbolContextResult struct {
	Target     Target               `json:"target"`
	Symbol     store.SymbolRow      `json:"symbol"`
	Parameters []store.ParameterRow `json:"parameters,omitempty"`
	Docstring  *store.DocstringRow  `json:"docstring,omitempty"`
	Parents    []store.SymbolRow    `json:"parents,omitempty"`
	Children   []store.SymbolRow    `json:"children,omitempty"`
	Usages     []store.UsageRow     `json:"usages"`
}

// GetSymbolContext gathers everything known about one symbol. Strict: an
// unknown name is an error.
func (e *Engine) GetSymbolContext(ctx context.Context, repoPath, ref, name string) (*SymbolContextResult, *Error) {
	target, _, qerr := e.resolveTarget(ctx, repoPath, ref)
	if qerr != nil {
		return nil, qerr
	}
	symbols, err := e.store.FindSymbolsExact(ctx, target.Commit.ID, name, "")
	if err != nil {
		return nil, dbError(err)
	}
	if len(symbols) == 0 {
		return nil, errf(CodeSymbolNotFound, "symbol %s not found", name)
	}
	symbol := symbols[0]

	result := &SymbolContextResult{Target: *target, Symbol: symbol}
	if result.Parameters, err = e.store.SymbolParameters(ctx, symbol.ID); err != nil {
		return nil, dbError(err)
	}
	if result.Docstring, err = e.store.SymbolDocstring(ctx, symbol.ID); err != nil {
		return nil, dbError(err)
	}
	if result.Parents, err = e.store.ParentChain(ctx, symbol.ID); err != nil {
		return nil, dbError(err)
	}
	if result.Children, err = e.store.ChildSymbols(ctx, symbol.ID); err != nil {
		return nil, dbError(err)
	}
	if result.Usages, err = e.store.UsagesOfSymbol(ctx, symbol.ID); err != nil {
		return nil, dbError(err)
	}
	return result, nil
}
