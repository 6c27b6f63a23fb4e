package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcerack/sourcerack/internal/extract"
)

// seedCommit fills a commit with two files of linked data.
func seedCommit(t *testing.T, s *Store, commitID int64) {
	t.Helper()
	ctx := context.Background()

	service := &extract.FileRecords{
		Symbols: []extract.Symbol{
			{Name: "UserService", QualifiedName: "UserService", Kind: extract.KindClass,
				FilePath: "src/service.ts", StartLine: 1, EndLine: 10, Parent: -1,
				IsExported: true, ContentHash: "c1"},
			{Name: "getUser", QualifiedName: "UserService.getUser", Kind: extract.KindMethod,
				FilePath: "src/service.ts", StartLine: 2, EndLine: 4, Parent: 0,
				IsAsync: true, IsExported: true, ContentHash: "c2",
				Parameters: []extract.Parameter{{Position: 0, Name: "id", TypeAnnotation: "string"}},
				Docstring:  &extract.Docstring{DocType: "jsdoc", Raw: "/** Fetch one user. */", Description: "Fetch one user."}},
		},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "src/service.ts", service))

	app := &extract.FileRecords{
		Usages: []extract.Usage{
			{Name: "UserService", Line: 2, Column: 5, Kind: extract.UsageInstantiate},
			{Name: "getUser", Line: 2, Column: 23, Kind: extract.UsageCall},
		},
		Imports: []extract.Import{{
			Line: 1, ImportType: "es_import", ModuleSpecifier: "./service",
			Bindings: []extract.ImportBinding{{ImportedName: "UserService", LocalName: "UserService"}},
		}},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "src/app.ts", app))

	// Resolve the usage links as the linker would.
	symbols, err := s.SymbolsInFile(ctx, commitID, "src/service.ts")
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx,
		`UPDATE usages SET definition_symbol_id = ? WHERE commit_id = ? AND symbol_name = 'UserService'`,
		symbols[0].ID, commitID)
	require.NoError(t, err)
	_, err = s.DB().ExecContext(ctx,
		`UPDATE usages SET definition_symbol_id = ? WHERE commit_id = ? AND symbol_name = 'getUser'`,
		symbols[1].ID, commitID)
	require.NoError(t, err)
}

func TestCopyForwardFullClone(t *testing.T) {
	ctx := context.Background()
	s, source := newTestStore(t)
	seedCommit(t, s, source)

	target, err := s.StartIndexing(ctx, 1, "bbbb2222")
	require.NoError(t, err)
	require.NoError(t, s.CopyUnchangedData(ctx, source, target, nil))

	// Same logical content on both commits.
	srcSyms, srcUses, srcImps, err := s.CountRows(ctx, source)
	require.NoError(t, err)
	dstSyms, dstUses, dstImps, err := s.CountRows(ctx, target)
	require.NoError(t, err)
	require.Equal(t, srcSyms, dstSyms)
	require.Equal(t, srcUses, dstUses)
	require.Equal(t, srcImps, dstImps)

	// Parent links were rewritten, not carried.
	symbols, err := s.SymbolsInFile(ctx, target, "src/service.ts")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	require.Equal(t, symbols[0].ID, symbols[1].ParentID)
	require.NotEqual(t, int64(0), symbols[1].ParentID)

	// Usage definition links target the cloned symbols.
	usages, err := s.FindUsagesByName(ctx, target, "getUser", "")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Equal(t, symbols[1].ID, usages[0].DefinitionID)

	// Dependent tables followed the id map.
	params, err := s.SymbolParameters(ctx, symbols[1].ID)
	require.NoError(t, err)
	require.Len(t, params, 1)
	doc, err := s.SymbolDocstring(ctx, symbols[1].ID)
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Equal(t, "Fetch one user.", doc.Description)

	// Trigrams cloned too, so fuzzy search works on the new commit.
	matches, err := s.FindSymbolsFuzzy(ctx, target, "getUser", 0.3, 10, "")
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	// Imports carried their bindings.
	imports, err := s.ImportsOfFile(ctx, target, "src/app.ts")
	require.NoError(t, err)
	require.Len(t, imports, 1)
	require.Len(t, imports[0].Bindings, 1)
	require.Equal(t, "UserService", imports[0].Bindings[0].LocalName)
}

func TestCopyForwardExcludesFiles(t *testing.T) {
	ctx := context.Background()
	s, source := newTestStore(t)
	seedCommit(t, s, source)

	target, err := s.StartIndexing(ctx, 1, "cccc3333")
	require.NoError(t, err)
	require.NoError(t, s.CopyUnchangedData(ctx, source, target, []string{"src/app.ts"}))

	files, err := s.CommitFiles(ctx, target)
	require.NoError(t, err)
	require.Equal(t, []string{"src/service.ts"}, files)

	// Symbols of the kept file survived; the excluded file's usages did not.
	usages, err := s.FindUsagesByName(ctx, target, "getUser", "")
	require.NoError(t, err)
	require.Empty(t, usages)
}

func TestCopyForwardDropsLinksIntoExcludedFiles(t *testing.T) {
	ctx := context.Background()
	s, source := newTestStore(t)
	seedCommit(t, s, source)

	target, err := s.StartIndexing(ctx, 1, "dddd4444")
	require.NoError(t, err)
	// service.ts changed: its symbols are re-extracted later, so the copied
	// app.ts usages lose their definition links.
	require.NoError(t, s.CopyUnchangedData(ctx, source, target, []string{"src/service.ts"}))

	usages, err := s.FindUsagesByName(ctx, target, "getUser", "")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Zero(t, usages[0].DefinitionID)
}
