package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcerack/sourcerack/internal/extract"
)

// newTestStore opens an in-memory store with one registered repository and
// one in-progress commit.
func newTestStore(t *testing.T) (*Store, int64) {
	t.Helper()
	ctx := context.Background()
	s, err := OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	repo, err := s.RegisterRepository(ctx, "/tmp/demo")
	require.NoError(t, err)
	commitID, err := s.StartIndexing(ctx, repo.ID, "aaaa1111")
	require.NoError(t, err)
	return s, commitID
}

func TestRegisterRepositoryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory(ctx)
	require.NoError(t, err)
	defer s.Close()

	first, err := s.RegisterRepository(ctx, "/tmp/demo")
	require.NoError(t, err)
	second, err := s.RegisterRepository(ctx, "/tmp/demo")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "demo", first.Name)
}

func TestCommitLifecycle(t *testing.T) {
	ctx := context.Background()
	s, commitID := newTestStore(t)

	commit, err := s.GetIndexedCommit(ctx, 1, "aaaa1111")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, commit.Status)

	require.NoError(t, s.SetCommitStatus(ctx, commitID, StatusComplete))
	latest, err := s.LatestCompleteCommit(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, commitID, latest.ID)

	// Restarting the same sha clears data and resets status.
	again, err := s.StartIndexing(ctx, 1, "aaaa1111")
	require.NoError(t, err)
	require.Equal(t, commitID, again)
	commit, err = s.GetIndexedCommit(ctx, 1, "aaaa1111")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, commit.Status)
}

func TestGetRepositoryByPathNotFound(t *testing.T) {
	ctx := context.Background()
	s, err := OpenMemory(ctx)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.GetRepositoryByPath(ctx, "/nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInsertFileRecordsLinksParents(t *testing.T) {
	ctx := context.Background()
	s, commitID := newTestStore(t)

	recs := &extract.FileRecords{
		Symbols: []extract.Symbol{
			{
				Name: "UserService", QualifiedName: "UserService",
				Kind: extract.KindClass, FilePath: "src/service.ts",
				StartLine: 1, EndLine: 10, IsExported: true,
				Parent: -1, ContentHash: "h1",
			},
			{
				Name: "getUser", QualifiedName: "UserService.getUser",
				Kind: extract.KindMethod, FilePath: "src/service.ts",
				StartLine: 2, EndLine: 4, IsAsync: true, IsExported: true,
				Parent: 0, ContentHash: "h2",
				Parameters: []extract.Parameter{{Position: 0, Name: "id", TypeAnnotation: "string"}},
			},
		},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "src/service.ts", recs))

	symbols, err := s.SymbolsInFile(ctx, commitID, "src/service.ts")
	require.NoError(t, err)
	require.Len(t, symbols, 2)

	class, method := symbols[0], symbols[1]
	require.Equal(t, "UserService", class.Name)
	require.Zero(t, class.ParentID)
	require.Equal(t, class.ID, method.ParentID)
	require.True(t, method.IsAsync)

	// Parent invariant: same commit, same file, nested lines.
	require.Equal(t, class.CommitID, method.CommitID)
	require.Equal(t, class.FilePath, method.FilePath)
	require.Greater(t, method.StartLine, class.StartLine)
	require.LessOrEqual(t, method.EndLine, class.EndLine)

	params, err := s.SymbolParameters(ctx, method.ID)
	require.NoError(t, err)
	require.Len(t, params, 1)
	require.Equal(t, "id", params[0].Name)
	require.Equal(t, "string", params[0].TypeAnnotation)
}

func TestDeleteFileData(t *testing.T) {
	ctx := context.Background()
	s, commitID := newTestStore(t)

	recs := &extract.FileRecords{
		Symbols: []extract.Symbol{{
			Name: "helper", QualifiedName: "helper", Kind: extract.KindFunction,
			FilePath: "a.py", StartLine: 1, EndLine: 2, Parent: -1, ContentHash: "h",
		}},
		Usages:  []extract.Usage{{Name: "other", Line: 2, Column: 5, Kind: extract.UsageCall}},
		Imports: []extract.Import{{Line: 1, ImportType: "python", ModuleSpecifier: "os"}},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "a.py", recs))
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "b.py", recs))

	require.NoError(t, s.DeleteFileData(ctx, commitID, "a.py"))

	files, err := s.CommitFiles(ctx, commitID)
	require.NoError(t, err)
	require.Equal(t, []string{"b.py"}, files)

	symbols, usages, imports, err := s.CountRows(ctx, commitID)
	require.NoError(t, err)
	require.Equal(t, 1, symbols)
	require.Equal(t, 1, usages)
	require.Equal(t, 1, imports)
}

func TestDeleteCommitData(t *testing.T) {
	ctx := context.Background()
	s, commitID := newTestStore(t)

	recs := &extract.FileRecords{
		Symbols: []extract.Symbol{{
			Name: "helper", QualifiedName: "helper", Kind: extract.KindFunction,
			FilePath: "a.py", StartLine: 1, EndLine: 2, Parent: -1, ContentHash: "h",
		}},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "a.py", recs))
	require.NoError(t, s.DeleteCommitData(ctx, commitID))

	symbols, usages, imports, err := s.CountRows(ctx, commitID)
	require.NoError(t, err)
	require.Zero(t, symbols)
	require.Zero(t, usages)
	require.Zero(t, imports)
}
