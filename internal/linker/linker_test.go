package linker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/store"
)

func newCommit(t *testing.T) (*store.Store, int64) {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	repo, err := s.RegisterRepository(ctx, "/tmp/demo")
	require.NoError(t, err)
	commitID, err := s.StartIndexing(ctx, repo.ID, "aaaa1111")
	require.NoError(t, err)
	return s, commitID
}

func TestLinkCrossFileDefinition(t *testing.T) {
	ctx := context.Background()
	s, commitID := newCommit(t)

	service := &extract.FileRecords{
		Symbols: []extract.Symbol{
			{Name: "UserService", QualifiedName: "UserService", Kind: extract.KindClass,
				FilePath: "src/service.ts", StartLine: 1, EndLine: 6, Parent: -1,
				IsExported: true, ContentHash: "c"},
			{Name: "getUser", QualifiedName: "UserService.getUser", Kind: extract.KindMethod,
				FilePath: "src/service.ts", StartLine: 2, EndLine: 4, Parent: 0,
				IsExported: true, ContentHash: "m"},
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

	require.NoError(t, New(s).Run(ctx, commitID))

	symbols, err := s.SymbolsInFile(ctx, commitID, "src/service.ts")
	require.NoError(t, err)
	class, method := symbols[0], symbols[1]

	usages, err := s.FindUsagesByName(ctx, commitID, "getUser", "")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	// Module-level reference: no enclosing symbol, never a match into
	// another file.
	require.Zero(t, usages[0].EnclosingID)
	require.Equal(t, method.ID, usages[0].DefinitionID)

	instantiations, err := s.FindUsagesByName(ctx, commitID, "UserService", "")
	require.NoError(t, err)
	require.Len(t, instantiations, 1)
	require.Equal(t, class.ID, instantiations[0].DefinitionID)
}

func TestLinkEnclosingInnermost(t *testing.T) {
	ctx := context.Background()
	s, commitID := newCommit(t)

	recs := &extract.FileRecords{
		Symbols: []extract.Symbol{
			{Name: "Outer", QualifiedName: "Outer", Kind: extract.KindClass,
				FilePath: "a.py", StartLine: 1, EndLine: 20, Parent: -1, ContentHash: "o"},
			{Name: "inner", QualifiedName: "Outer.inner", Kind: extract.KindMethod,
				FilePath: "a.py", StartLine: 5, EndLine: 10, Parent: 0, ContentHash: "i"},
		},
		Usages: []extract.Usage{
			{Name: "compute", Line: 7, Column: 9, Kind: extract.UsageCall},  // inside inner
			{Name: "compute", Line: 15, Column: 5, Kind: extract.UsageCall}, // inside Outer only
		},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "a.py", recs))
	require.NoError(t, New(s).Run(ctx, commitID))

	symbols, err := s.SymbolsInFile(ctx, commitID, "a.py")
	require.NoError(t, err)
	outer, inner := symbols[0], symbols[1]

	usages, err := s.FindUsagesByName(ctx, commitID, "compute", "")
	require.NoError(t, err)
	require.Len(t, usages, 2)
	require.Equal(t, inner.ID, usages[0].EnclosingID)
	require.Equal(t, outer.ID, usages[1].EnclosingID)
}

func TestLinkSameFilePreferred(t *testing.T) {
	ctx := context.Background()
	s, commitID := newCommit(t)

	local := &extract.FileRecords{
		Symbols: []extract.Symbol{{
			Name: "helper", QualifiedName: "helper", Kind: extract.KindFunction,
			FilePath: "a.py", StartLine: 1, EndLine: 3, Parent: -1,
			IsExported: true, ContentHash: "l"}},
		Usages: []extract.Usage{{Name: "helper", Line: 10, Column: 1, Kind: extract.UsageCall}},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "a.py", local))

	other := &extract.FileRecords{
		Symbols: []extract.Symbol{{
			Name: "helper", QualifiedName: "helper", Kind: extract.KindFunction,
			FilePath: "b.py", StartLine: 1, EndLine: 3, Parent: -1,
			IsExported: true, ContentHash: "r"}},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "b.py", other))

	require.NoError(t, New(s).Run(ctx, commitID))

	localSymbols, err := s.SymbolsInFile(ctx, commitID, "a.py")
	require.NoError(t, err)
	usages, err := s.FindUsagesByName(ctx, commitID, "helper", "a.py")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Equal(t, localSymbols[0].ID, usages[0].DefinitionID)
}

func TestLinkAmbiguousUnexportedStaysNull(t *testing.T) {
	ctx := context.Background()
	s, commitID := newCommit(t)

	// Two private candidates in other files, nothing importable: ambiguous.
	for _, file := range []string{"b.py", "c.py"} {
		recs := &extract.FileRecords{
			Symbols: []extract.Symbol{{
				Name: "_hidden", QualifiedName: "_hidden", Kind: extract.KindFunction,
				FilePath: file, StartLine: 1, EndLine: 3, Parent: -1,
				Visibility: "private", ContentHash: file}},
		}
		require.NoError(t, s.InsertFileRecords(ctx, commitID, file, recs))
	}
	user := &extract.FileRecords{
		Usages: []extract.Usage{{Name: "_hidden", Line: 1, Column: 1, Kind: extract.UsageCall}},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "a.py", user))

	require.NoError(t, New(s).Run(ctx, commitID))

	usages, err := s.FindUsagesByName(ctx, commitID, "_hidden", "a.py")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Zero(t, usages[0].DefinitionID)
}

func TestLinkUnresolvedNameStaysQueryable(t *testing.T) {
	ctx := context.Background()
	s, commitID := newCommit(t)

	recs := &extract.FileRecords{
		Usages: []extract.Usage{{Name: "mystery", Line: 1, Column: 1, Kind: extract.UsageRead}},
	}
	require.NoError(t, s.InsertFileRecords(ctx, commitID, "a.py", recs))
	require.NoError(t, New(s).Run(ctx, commitID))

	usages, err := s.FindUsagesByName(ctx, commitID, "mystery", "")
	require.NoError(t, err)
	require.Len(t, usages, 1)
	require.Zero(t, usages[0].DefinitionID)
	require.Zero(t, usages[0].EnclosingID)
}
