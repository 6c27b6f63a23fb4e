package indexer

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcerack/sourcerack/internal/gitrepo"
	"github.com/sourcerack/sourcerack/internal/store"
)

// fakeSource is an in-memory gitrepo.Source over sha -> path -> content.
type fakeSource struct {
	refs    map[string]string
	commits map[string]map[string]string
}

func (f *fakeSource) ResolveRef(ref string) (string, error) {
	if sha, ok := f.refs[ref]; ok {
		return sha, nil
	}
	if _, ok := f.commits[ref]; ok {
		return ref, nil
	}
	return "", gitrepo.ErrRefNotFound
}

func (f *fakeSource) ReadFileAtCommit(sha, path string) ([]byte, error) {
	files, ok := f.commits[sha]
	if !ok {
		return nil, gitrepo.ErrRefNotFound
	}
	content, ok := files[path]
	if !ok {
		return nil, gitrepo.ErrFileNotFound
	}
	return []byte(content), nil
}

func (f *fakeSource) ListFilesAtCommit(sha string) ([]string, error) {
	files, ok := f.commits[sha]
	if !ok {
		return nil, gitrepo.ErrRefNotFound
	}
	var out []string
	for path := range files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeSource) ChangedFiles(oldSHA, newSHA string) ([]string, error) {
	oldFiles, ok := f.commits[oldSHA]
	if !ok {
		return nil, gitrepo.ErrRefNotFound
	}
	newFiles, ok := f.commits[newSHA]
	if !ok {
		return nil, gitrepo.ErrRefNotFound
	}
	seen := make(map[string]bool)
	var out []string
	for path, content := range newFiles {
		if old, exists := oldFiles[path]; !exists || old != content {
			if !seen[path] {
				seen[path] = true
				out = append(out, path)
			}
		}
	}
	for path := range oldFiles {
		if _, exists := newFiles[path]; !exists && !seen[path] {
			seen[path] = true
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out, nil
}

const serviceTS = `export class UserService { async getUser(id: string) {} }`
const appTS = "import { UserService } from './service';\n" +
	`new UserService().getUser("x");` + "\n"

func newTestIndexer(t *testing.T) (*Indexer, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func TestIndexCommitEndToEnd(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndexer(t)

	src := &fakeSource{
		refs: map[string]string{"HEAD": "sha1"},
		commits: map[string]map[string]string{
			"sha1": {
				"src/service.ts": serviceTS,
				"src/app.ts":     appTS,
				"README.md":      "# demo\n",
			},
		},
	}

	result, err := ix.IndexCommit(ctx, src, "/tmp/demo", "HEAD")
	require.NoError(t, err)
	require.Equal(t, "sha1", result.SHA)
	require.Equal(t, 2, result.FilesIndexed) // README is not an indexable language

	commit, err := s.GetIndexedCommit(ctx, 1, "sha1")
	require.NoError(t, err)
	require.Equal(t, store.StatusComplete, commit.Status)

	// Symbols landed with hierarchy.
	symbols, err := s.SymbolsInFile(ctx, commit.ID, "src/service.ts")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	require.Equal(t, "UserService", symbols[0].Name)
	require.Equal(t, symbols[0].ID, symbols[1].ParentID)

	// The linker resolved the cross-file call; the reference site is
	// module level, so its enclosing symbol stays null.
	usages, err := s.FindUsagesByName(ctx, commit.ID, "getUser", "")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Equal(t, "call", usages[0].Kind)
	require.Equal(t, symbols[1].ID, usages[0].DefinitionID)
	require.Zero(t, usages[0].EnclosingID)
}

func TestIndexCommitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndexer(t)

	src := &fakeSource{
		refs:    map[string]string{"HEAD": "sha1"},
		commits: map[string]map[string]string{"sha1": {"src/service.ts": serviceTS}},
	}

	first, err := ix.IndexCommit(ctx, src, "/tmp/demo", "HEAD")
	require.NoError(t, err)
	second, err := ix.IndexCommit(ctx, src, "/tmp/demo", "HEAD")
	require.NoError(t, err)
	require.Equal(t, first.CommitID, second.CommitID)

	commit, err := s.GetIndexedCommit(ctx, 1, "sha1")
	require.NoError(t, err)
	symbols, _, _, err := s.CountRows(ctx, commit.ID)
	require.NoError(t, err)
	require.Equal(t, 2, symbols)
}

func TestIncrementalIndexCopiesUnchangedFiles(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndexer(t)

	src := &fakeSource{
		refs: map[string]string{},
		commits: map[string]map[string]string{
			"sha1": {
				"src/service.ts": serviceTS,
				"src/app.ts":     appTS,
			},
			"sha2": {
				"src/service.ts": serviceTS, // unchanged
				"src/app.ts":     appTS + "\n// touched\n",
			},
		},
	}

	first, err := ix.IndexCommit(ctx, src, "/tmp/demo", "sha1")
	require.NoError(t, err)

	second, err := ix.IndexCommit(ctx, src, "/tmp/demo", "sha2")
	require.NoError(t, err)
	require.True(t, second.Incremental)
	require.Equal(t, 1, second.FilesCopied)
	require.Equal(t, 1, second.FilesIndexed)
	require.NotEqual(t, first.CommitID, second.CommitID)

	// Both commits answer queries independently.
	for _, commitID := range []int64{first.CommitID, second.CommitID} {
		symbols, err := s.SymbolsInFile(ctx, commitID, "src/service.ts")
		require.NoError(t, err)
		require.Len(t, symbols, 2, "commit %d", commitID)

		usages, err := s.FindUsagesByName(ctx, commitID, "getUser", "")
		require.NoError(t, err)
		require.Len(t, usages, 1, "commit %d", commitID)
		require.Equal(t, symbols[1].ID, usages[0].DefinitionID)
	}
}

func TestReindexAfterDeleteMatches(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndexer(t)

	src := &fakeSource{
		refs: map[string]string{"HEAD": "sha1"},
		commits: map[string]map[string]string{
			"sha1": {"src/service.ts": serviceTS, "src/app.ts": appTS},
		},
	}

	first, err := ix.IndexCommit(ctx, src, "/tmp/demo", "HEAD")
	require.NoError(t, err)
	sym1, use1, imp1, err := s.CountRows(ctx, first.CommitID)
	require.NoError(t, err)

	require.NoError(t, ix.DeleteCommit(ctx, first.CommitID))
	second, err := ix.IndexCommit(ctx, src, "/tmp/demo", "HEAD")
	require.NoError(t, err)

	sym2, use2, imp2, err := s.CountRows(ctx, second.CommitID)
	require.NoError(t, err)
	require.Equal(t, sym1, sym2)
	require.Equal(t, use1, use2)
	require.Equal(t, imp1, imp2)

	names1, err := s.SymbolsInFile(ctx, second.CommitID, "src/service.ts")
	require.NoError(t, err)
	require.Len(t, names1, 2)
}

func TestIndexCommitSkipsBrokenFiles(t *testing.T) {
	ctx := context.Background()
	ix, s := newTestIndexer(t)

	src := &fakeSource{
		refs: map[string]string{"HEAD": "sha1"},
		commits: map[string]map[string]string{
			"sha1": {
				"src/good.ts": serviceTS,
				"src/bad.go":  "package main\n", // recognized, grammar not linked
			},
		},
	}

	result, err := ix.IndexCommit(ctx, src, "/tmp/demo", "HEAD")
	require.NoError(t, err)
	require.Equal(t, 1, result.FilesIndexed)
	require.Equal(t, 1, result.FilesSkipped)

	commit, err := s.GetIndexedCommit(ctx, 1, "sha1")
	require.NoError(t, err)
	require.Equal(t, store.StatusComplete, commit.Status)
}

func TestShouldIndexFilters(t *testing.T) {
	require.True(t, shouldIndex("src/app.ts"))
	require.True(t, shouldIndex("config/routes.rb"))
	require.False(t, shouldIndex("node_modules/pkg/index.js"))
	require.False(t, shouldIndex("docs/readme.md"))
	require.False(t, shouldIndex("vendor/lib/a.py"))
}

func TestFakeSourceChangedFiles(t *testing.T) {
	src := &fakeSource{commits: map[string]map[string]string{
		"a": {"x.ts": "1", "y.ts": "2"},
		"b": {"x.ts": "1", "y.ts": "3", "z.ts": "4"},
	}}
	changed, err := src.ChangedFiles("a", "b")
	require.NoError(t, err)
	require.Equal(t, []string{"y.ts", "z.ts"}, changed)
}
