package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sourcerack/sourcerack/internal/gitrepo"
	"github.com/sourcerack/sourcerack/internal/indexer"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index a commit of a repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		repo, err := repoPath()
		if err != nil {
			return err
		}
		src, err := gitrepo.Open(repo)
		if err != nil {
			return err
		}

		result, err := indexer.New(s).IndexCommit(ctx, src, repo, config.Ref)
		if err != nil {
			return err
		}
		if config.JSON {
			return printJSON(result)
		}
		fmt.Printf("indexed %s: %d files", shortSHA(result.SHA), result.FilesIndexed)
		if result.Incremental {
			fmt.Printf(" (%d carried forward)", result.FilesCopied)
		}
		if result.FilesSkipped > 0 {
			fmt.Printf(", %d skipped", result.FilesSkipped)
		}
		fmt.Println()
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch a repository and index each new HEAD commit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		repo, err := repoPath()
		if err != nil {
			return err
		}
		return indexer.New(s).Watch(ctx, repo)
	},
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List registered repositories and their indexed commits",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		repos, err := s.ListRepositories(ctx)
		if err != nil {
			return err
		}
		if config.JSON {
			return printJSON(repos)
		}
		for _, repo := range repos {
			fmt.Printf("%s (%s)\n", repo.Name, repo.Path)
			commits, err := s.ListIndexedCommits(ctx, repo.ID)
			if err != nil {
				return err
			}
			for _, c := range commits {
				fmt.Printf("  %s  %-11s  %s\n", shortSHA(c.SHA), c.Status, c.IndexedAt)
			}
		}
		return nil
	},
}

func shortSHA(sha string) string {
	if len(sha) > 12 {
		return sha[:12]
	}
	return sha
}

func init() {
	rootCmd.AddCommand(indexCmd, watchCmd, reposCmd)
}
