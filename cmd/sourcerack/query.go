package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sourcerack/sourcerack/internal/query"
	"github.com/sourcerack/sourcerack/internal/store/contentcache"
)

var (
	flagKind          string
	flagFile          string
	flagFuzzy         bool
	flagMinSimilarity float64
	flagDirection     string
	flagExportedOnly  bool
	flagLimit         int
	flagMaxDepth      int
	flagMethod        string
	flagFramework     string
	flagPath          string
	flagMaxEdges      int
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the structural index",
}

// withEngine opens the store and runs fn with a query engine. The content
// cache is best effort: snippet queries fall back to git reads without it.
func withEngine(ctx context.Context, fn func(*query.Engine, string) error) error {
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	repo, err := repoPath()
	if err != nil {
		return err
	}

	engine := query.New(s)
	if dir, err := cacheDir(); err == nil {
		if cache, err := contentcache.Open(dir); err == nil {
			defer cache.Close()
			engine = engine.WithCache(cache)
		}
	}
	return fn(engine, repo)
}

func cacheDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".sourcerack", "content-cache")
	return dir, os.MkdirAll(dir, 0o755)
}

// render prints the result or the structured query error.
func render(result any, qerr *query.Error) error {
	if qerr != nil {
		if config.JSON {
			printJSON(qerr)
		} else {
			fmt.Fprintf(os.Stderr, "error: %s\n", qerr.Error())
		}
		return fmt.Errorf("%s", qerr.Code)
	}
	return printJSON(result)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var definitionCmd = &cobra.Command{
	Use:   "definition NAME",
	Short: "Find where a symbol is defined",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.FindDefinition(cmd.Context(), repo, config.Ref, args[0], flagKind, flagFuzzy, flagMinSimilarity)
			return render(result, qerr)
		})
	},
}

var usagesCmd = &cobra.Command{
	Use:   "usages NAME",
	Short: "Find references to a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.FindUsages(cmd.Context(), repo, config.Ref, args[0], flagFile, flagFuzzy)
			return render(result, qerr)
		})
	},
}

var hierarchyCmd = &cobra.Command{
	Use:   "hierarchy NAME",
	Short: "Show a symbol's children and parents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.FindHierarchy(cmd.Context(), repo, config.Ref, args[0], flagDirection)
			return render(result, qerr)
		})
	},
}

var importsCmd = &cobra.Command{
	Use:   "imports FILE",
	Short: "List a file's imports",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.FindImports(cmd.Context(), repo, config.Ref, args[0])
			return render(result, qerr)
		})
	},
}

var importersCmd = &cobra.Command{
	Use:   "importers MODULE",
	Short: "List the files importing a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.FindImporters(cmd.Context(), repo, config.Ref, args[0])
			return render(result, qerr)
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize the indexed codebase",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.CodebaseSummary(cmd.Context(), repo, config.Ref)
			return render(result, qerr)
		})
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show the module dependency graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.DependencyGraph(cmd.Context(), repo, config.Ref, flagMaxEdges)
			return render(result, qerr)
		})
	},
}

var deadCmd = &cobra.Command{
	Use:   "dead",
	Short: "Find symbols nothing references",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.FindDeadCode(cmd.Context(), repo, config.Ref, flagExportedOnly, flagLimit)
			return render(result, qerr)
		})
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact NAME",
	Short: "Analyze what changing a symbol affects",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.AnalyzeChangeImpact(cmd.Context(), repo, config.Ref, args[0], flagMaxDepth)
			return render(result, qerr)
		})
	},
}

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List discovered HTTP endpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.FindEndpoints(cmd.Context(), repo, config.Ref, flagMethod, flagFramework, flagPath)
			return render(result, qerr)
		})
	},
}

var endpointStatsCmd = &cobra.Command{
	Use:   "endpoint-stats",
	Short: "Aggregate endpoint counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.GetEndpointStats(cmd.Context(), repo, config.Ref)
			return render(result, qerr)
		})
	},
}

var contextCmd = &cobra.Command{
	Use:   "context NAME",
	Short: "Show everything known about a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(cmd.Context(), func(e *query.Engine, repo string) error {
			result, qerr := e.GetSymbolContext(cmd.Context(), repo, config.Ref, args[0])
			return render(result, qerr)
		})
	},
}

func init() {
	definitionCmd.Flags().StringVar(&flagKind, "kind", "", "Filter by symbol kind")
	definitionCmd.Flags().BoolVar(&flagFuzzy, "fuzzy", false, "Include similar names")
	definitionCmd.Flags().Float64Var(&flagMinSimilarity, "min-similarity", 0.3, "Fuzzy similarity threshold")

	usagesCmd.Flags().StringVar(&flagFile, "file", "", "Restrict to one file")
	usagesCmd.Flags().BoolVar(&flagFuzzy, "fuzzy", false, "Include similar names")

	hierarchyCmd.Flags().StringVar(&flagDirection, "direction", "both", "children, parents, or both")

	deadCmd.Flags().BoolVar(&flagExportedOnly, "exported-only", false, "Only exported symbols")
	deadCmd.Flags().IntVar(&flagLimit, "limit", 100, "Maximum results")

	impactCmd.Flags().IntVar(&flagMaxDepth, "max-depth", 3, "Transitive hop limit")

	endpointsCmd.Flags().StringVar(&flagMethod, "method", "", "Filter by HTTP method")
	endpointsCmd.Flags().StringVar(&flagFramework, "framework", "", "Filter by framework")
	endpointsCmd.Flags().StringVar(&flagPath, "path", "", "Filter by path substring")

	graphCmd.Flags().IntVar(&flagMaxEdges, "max-edges", 100, "Maximum graph edges")

	queryCmd.AddCommand(definitionCmd, usagesCmd, hierarchyCmd, importsCmd,
		importersCmd, summaryCmd, graphCmd, deadCmd, impactCmd, endpointsCmd,
		endpointStatsCmd, contextCmd)
	rootCmd.AddCommand(queryCmd)
}
