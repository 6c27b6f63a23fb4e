package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sourcerack/sourcerack/internal/logging"
	"github.com/sourcerack/sourcerack/internal/store"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Config holds the global command-line options.
type Config struct {
	DBPath  string
	Repo    string
	Ref     string
	JSON    bool
	Verbose bool
	Quiet   bool
}

var config Config

var rootCmd = &cobra.Command{
	Use:   "sourcerack",
	Short: "A structural code index over git commits",
	Long: `sourcerack builds a queryable structural index of source code keyed by
(repository, commit) and answers semantic questions over it: definitions,
usages, hierarchy, imports, hotspots, dead code, change impact, and HTTP
endpoints.

EXAMPLES:
    # Index the current HEAD of a repository
    sourcerack index --repo .

    # Query against the indexed commit
    sourcerack query definition UserService --repo .
    sourcerack query usages getUser --repo . --fuzzy
    sourcerack query dead --repo . --exported-only
    sourcerack query endpoints --repo . --json`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(config.Verbose, config.Quiet)
	},
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&config.DBPath, "db", "", "Index database path (default ~/.sourcerack/index.db)")
	rootCmd.PersistentFlags().StringVar(&config.Repo, "repo", ".", "Repository path")
	rootCmd.PersistentFlags().StringVar(&config.Ref, "ref", "HEAD", "Commit ref to query or index")
	rootCmd.PersistentFlags().BoolVar(&config.JSON, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&config.Verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().BoolVarP(&config.Quiet, "quiet", "q", false, "Only warnings and errors")

	viper.BindPFlags(rootCmd.PersistentFlags())
}

func initConfig() {
	viper.SetConfigName(".sourcerack")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME")

	viper.SetEnvPrefix("SOURCERACK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openStore opens the configured index database.
func openStore(ctx context.Context) (*store.Store, error) {
	path := config.DBPath
	if path == "" {
		path = viper.GetString("db")
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir := filepath.Join(home, ".sourcerack")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		path = filepath.Join(dir, "index.db")
	}
	return store.Open(ctx, path)
}

// repoPath returns the configured repository path, absolute.
func repoPath() (string, error) {
	return filepath.Abs(config.Repo)
}
