package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sourcerack/sourcerack/internal/parser"
)

// parseAndExtract runs the registry end to end over inline source.
func parseAndExtract(t *testing.T, language, path, src string) *FileRecords {
	t.Helper()
	registry := parser.NewRegistry()
	tree, err := registry.Parse(language, []byte(src))
	require.NoError(t, err)
	defer tree.Close()

	extractor := NewRegistry().ForLanguage(language)
	require.NotNil(t, extractor)
	recs, err := extractor.Extract(tree, path, []byte(src))
	require.NoError(t, err)
	return recs
}

func findSymbol(recs *FileRecords, name string) *Symbol {
	for i := range recs.Symbols {
		if recs.Symbols[i].Name == name {
			return &recs.Symbols[i]
		}
	}
	return nil
}

func findUsage(recs *FileRecords, name string, kind UsageKind) *Usage {
	for i := range recs.Usages {
		if recs.Usages[i].Name == name && recs.Usages[i].Kind == kind {
			return &recs.Usages[i]
		}
	}
	return nil
}

func TestTypeScriptClassAndMethod(t *testing.T) {
	src := `export class UserService { async getUser(id: string) {} }`
	recs := parseAndExtract(t, "typescript", "src/service.ts", src)

	require.Len(t, recs.Symbols, 2)

	class := findSymbol(recs, "UserService")
	require.NotNil(t, class)
	require.Equal(t, KindClass, class.Kind)
	require.True(t, class.IsExported)
	require.Equal(t, -1, class.Parent)

	method := findSymbol(recs, "getUser")
	require.NotNil(t, method)
	require.Equal(t, KindMethod, method.Kind)
	require.Equal(t, "UserService.getUser", method.QualifiedName)
	require.True(t, method.IsAsync)
	require.Equal(t, 0, method.Parent)
	require.Len(t, method.Parameters, 1)
	require.Equal(t, "id", method.Parameters[0].Name)
	require.Equal(t, "string", method.Parameters[0].TypeAnnotation)
	require.NotEmpty(t, method.ContentHash)
}

func TestTypeScriptUsagesAndImports(t *testing.T) {
	src := "import { UserService } from './service';\n" +
		`new UserService().getUser("x");` + "\n"
	recs := parseAndExtract(t, "typescript", "src/app.ts", src)

	require.Empty(t, recs.Symbols)

	instantiate := findUsage(recs, "UserService", UsageInstantiate)
	require.NotNil(t, instantiate)
	require.Equal(t, 2, instantiate.Line)

	call := findUsage(recs, "getUser", UsageCall)
	require.NotNil(t, call)
	require.Equal(t, 2, call.Line)

	require.Len(t, recs.Imports, 1)
	imp := recs.Imports[0]
	require.Equal(t, "es_import", imp.ImportType)
	require.Equal(t, "./service", imp.ModuleSpecifier)
	require.Len(t, imp.Bindings, 1)
	require.Equal(t, "UserService", imp.Bindings[0].ImportedName)
	require.Equal(t, "UserService", imp.Bindings[0].LocalName)
}

func TestTypeScriptInterfaceEnumAlias(t *testing.T) {
	src := `export interface User { id: string }
enum Color { Red, Green }
export type UserID = string;
`
	recs := parseAndExtract(t, "typescript", "src/types.ts", src)

	iface := findSymbol(recs, "User")
	require.NotNil(t, iface)
	require.Equal(t, KindInterface, iface.Kind)
	require.True(t, iface.IsExported)

	enum := findSymbol(recs, "Color")
	require.NotNil(t, enum)
	require.Equal(t, KindEnum, enum.Kind)
	require.False(t, enum.IsExported)

	alias := findSymbol(recs, "UserID")
	require.NotNil(t, alias)
	require.Equal(t, KindTypeAlias, alias.Kind)
}

func TestTypeScriptExtendsAndImplements(t *testing.T) {
	src := `class Base {}
interface Marker {}
class Impl extends Base implements Marker {}
`
	recs := parseAndExtract(t, "typescript", "src/inherit.ts", src)

	require.NotNil(t, findUsage(recs, "Base", UsageExtend))
	require.NotNil(t, findUsage(recs, "Marker", UsageImplement))
}

func TestTypeScriptConstArrowFunction(t *testing.T) {
	src := `export const fetchUser = async (id: string) => { return id; };
const LIMIT = 10;
`
	recs := parseAndExtract(t, "typescript", "src/fn.ts", src)

	fn := findSymbol(recs, "fetchUser")
	require.NotNil(t, fn)
	require.Equal(t, KindFunction, fn.Kind)
	require.True(t, fn.IsAsync)
	require.True(t, fn.IsExported)

	limit := findSymbol(recs, "LIMIT")
	require.NotNil(t, limit)
	require.Equal(t, KindConstant, limit.Kind)
}

func TestTypeScriptDefaultAndNamespaceImports(t *testing.T) {
	src := "import axios from 'axios';\n" +
		"import * as path from 'node:path';\n" +
		"import { readFile as rf } from 'fs';\n"
	recs := parseAndExtract(t, "typescript", "src/imports.ts", src)

	require.Len(t, recs.Imports, 3)

	require.Equal(t, "default", recs.Imports[0].Bindings[0].ImportedName)
	require.Equal(t, "axios", recs.Imports[0].Bindings[0].LocalName)

	require.Equal(t, "*", recs.Imports[1].Bindings[0].ImportedName)
	require.Equal(t, "path", recs.Imports[1].Bindings[0].LocalName)

	require.Equal(t, "readFile", recs.Imports[2].Bindings[0].ImportedName)
	require.Equal(t, "rf", recs.Imports[2].Bindings[0].LocalName)
}

func TestUsageDeduplication(t *testing.T) {
	// The same identifier at one location is emitted once.
	src := "doWork();\ndoWork();\n"
	recs := parseAndExtract(t, "javascript", "src/dup.js", src)

	count := 0
	for _, u := range recs.Usages {
		if u.Name == "doWork" {
			count++
		}
	}
	require.Equal(t, 2, count) // two distinct lines, one row each
}
