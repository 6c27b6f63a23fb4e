package query

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/gitrepo"
	"github.com/sourcerack/sourcerack/internal/store"
)

// memSource is a single-commit in-memory git source.
type memSource struct {
	sha   string
	files map[string]string
}

func (m *memSource) ResolveRef(ref string) (string, error) {
	if ref == "HEAD" || ref == m.sha {
		return m.sha, nil
	}
	return "", gitrepo.ErrRefNotFound
}

func (m *memSource) ReadFileAtCommit(sha, path string) ([]byte, error) {
	content, ok := m.files[path]
	if !ok {
		return nil, gitrepo.ErrFileNotFound
	}
	return []byte(content), nil
}

func (m *memSource) ListFilesAtCommit(sha string) ([]string, error) {
	var out []string
	for path := range m.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memSource) ChangedFiles(oldSHA, newSHA string) ([]string, error) {
	return nil, nil
}

// newEngine seeds a store with one complete commit and returns an engine
// bound to an in-memory source.
func newEngine(t *testing.T) (*Engine, *store.Store, int64) {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	repo, err := s.RegisterRepository(ctx, "/tmp/demo")
	require.NoError(t, err)
	commitID, err := s.StartIndexing(ctx, repo.ID, "sha1")
	require.NoError(t, err)

	recs := &extract.FileRecords{
		Symbols: []extract.Symbol{
			{Name: "UserService", QualifiedName: "UserService", Kind: extract.KindClass,
				FilePath: "src/service.ts", StartLine: 1, EndLine: 6, Parent: -1,
				IsExported: true, ContentHash: "c"},
			{Name: "getUser", QualifiedName: "UserService.getUser", Kind: extract.KindMethod,
				FilePath: "src/service.ts", StartLine: 2, EndLine: 4, Parent: 0,
				IsExported: true, ContentHash: "m"},
		},
		Usages: []extract.Usage{
			{Name: "getUser", Line: 3, Column: 5, Kind: extract.UsageCall},
		},
		Imports: []extract.Import{{
			Line: 1, ImportType: "es_import", ModuleSpecifier: "./models",
			Bindings: []extract.ImportBinding{{ImportedName: "User", LocalName: "User"}},
		}},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "src/service.ts", recs))
	require.NoError(t, s.SetCommitStatus(ctx, commitID, store.StatusComplete))

	src := &memSource{sha: "sha1", files: map[string]string{
		"src/service.ts": "line one\nline two\nline three\nline four\n",
	}}
	engine := NewWithSource(s, func(string) (gitrepo.Source, error) { return src, nil })
	return engine, s, commitID
}

func TestResolveTargetErrors(t *testing.T) {
	ctx := context.Background()
	engine, s, _ := newEngine(t)

	_, qerr := engine.CodebaseSummary(ctx, "/not/registered", "HEAD")
	require.NotNil(t, qerr)
	require.Equal(t, CodeRepoNotRegistered, qerr.Code)

	_, qerr = engine.CodebaseSummary(ctx, "/tmp/demo", "no-such-ref")
	require.NotNil(t, qerr)
	require.Equal(t, CodeCommitNotResolved, qerr.Code)

	// Re-registering the path returns the same repo; its indexed commit set
	// back to in_progress is rejected as incomplete.
	_, err := s.RegisterRepository(ctx, "/tmp/demo")
	require.NoError(t, err)
	commit, err := s.GetIndexedCommit(ctx, 1, "sha1")
	require.NoError(t, err)
	require.NoError(t, s.SetCommitStatus(ctx, commit.ID, store.StatusInProgress))

	_, qerr = engine.CodebaseSummary(ctx, "/tmp/demo", "HEAD")
	require.NotNil(t, qerr)
	require.Equal(t, CodeCommitIncomplete, qerr.Code)
}

func TestCommitNotIndexed(t *testing.T) {
	ctx := context.Background()
	s, err := store.OpenMemory(ctx)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.RegisterRepository(ctx, "/tmp/demo")
	require.NoError(t, err)

	src := &memSource{sha: "sha1", files: map[string]string{}}
	engine := NewWithSource(s, func(string) (gitrepo.Source, error) { return src, nil })

	_, qerr := engine.CodebaseSummary(ctx, "/tmp/demo", "HEAD")
	require.NotNil(t, qerr)
	require.Equal(t, CodeCommitNotIndexed, qerr.Code)
}

func TestFindDefinitionExactAndFuzzy(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	result, qerr := engine.FindDefinition(ctx, "/tmp/demo", "HEAD", "getUser", "", true, 0.3)
	require.Nil(t, qerr)
	require.Len(t, result.Exact, 1)
	require.Equal(t, "UserService.getUser", result.Exact[0].QualifiedName)

	// The fuzzy bucket never repeats the exact name.
	for _, m := range result.Fuzzy {
		require.NotEqual(t, "getUser", m.Symbol.Name)
	}

	// Unknown names are an empty success, not an error.
	result, qerr = engine.FindDefinition(ctx, "/tmp/demo", "HEAD", "nothing", "", false, 0)
	require.Nil(t, qerr)
	require.Empty(t, result.Exact)
}

func TestFindUsagesSnippets(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	result, qerr := engine.FindUsages(ctx, "/tmp/demo", "HEAD", "getUser", "", false)
	require.Nil(t, qerr)
	require.Len(t, result.Usages, 1)
	require.Equal(t, "line two\nline three\nline four", result.Usages[0].Snippet)
}

func TestFindUsagesSnippetEmptyOnReadFailure(t *testing.T) {
	ctx := context.Background()
	engine, s, commitID := newEngine(t)

	recs := &extract.FileRecords{
		Usages: []extract.Usage{{Name: "ghost", Line: 1, Column: 1, Kind: extract.UsageRead}},
	}
	// A file the source cannot read back.
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "src/missing.ts", recs))

	result, qerr := engine.FindUsages(ctx, "/tmp/demo", "HEAD", "ghost", "", false)
	require.Nil(t, qerr)
	require.Len(t, result.Usages, 1)
	require.Empty(t, result.Usages[0].Snippet)
}

func TestHierarchyStrictness(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	result, qerr := engine.FindHierarchy(ctx, "/tmp/demo", "HEAD", "UserService", "children")
	require.Nil(t, qerr)
	require.Len(t, result.Children, 1)
	require.Equal(t, "getUser", result.Children[0].Name)

	_, qerr = engine.FindHierarchy(ctx, "/tmp/demo", "HEAD", "Nothing", "both")
	require.NotNil(t, qerr)
	require.Equal(t, CodeSymbolNotFound, qerr.Code)
}

func TestHierarchyParents(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	result, qerr := engine.FindHierarchy(ctx, "/tmp/demo", "HEAD", "getUser", "parents")
	require.Nil(t, qerr)
	require.Len(t, result.Parents, 1)
	require.Equal(t, "UserService", result.Parents[0].Name)
}

func TestImpactStrictness(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	_, qerr := engine.AnalyzeChangeImpact(ctx, "/tmp/demo", "HEAD", "Nothing", 3)
	require.NotNil(t, qerr)
	require.Equal(t, CodeSymbolNotFound, qerr.Code)

	result, qerr := engine.AnalyzeChangeImpact(ctx, "/tmp/demo", "HEAD", "getUser", 0)
	require.Nil(t, qerr)
	require.Empty(t, result.Transitive) // depth zero yields only direct usages
}

func TestSummaryAndImports(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	summary, qerr := engine.CodebaseSummary(ctx, "/tmp/demo", "HEAD")
	require.Nil(t, qerr)
	require.Equal(t, 2, summary.Summary.TotalSymbols)
	require.Equal(t, 1, summary.Summary.Languages["typescript"])

	imports, qerr := engine.FindImports(ctx, "/tmp/demo", "HEAD", "src/service.ts")
	require.Nil(t, qerr)
	require.Len(t, imports.Imports, 1)

	importers, qerr := engine.FindImporters(ctx, "/tmp/demo", "HEAD", "models")
	require.Nil(t, qerr)
	require.Len(t, importers.Imports, 1)
}

func TestCrossRepoDefinitions(t *testing.T) {
	ctx := context.Background()
	engine, _, _ := newEngine(t)

	results, qerr := engine.FindDefinitionAcrossRepos(ctx, nil, "getUser", "", false, 0)
	require.Nil(t, qerr)
	require.Len(t, results, 1)
	require.Equal(t, "/tmp/demo", results[0].Repo.Path)
	require.Len(t, results[0].Result.Exact, 1)
}
