package query

import (
	"context"

	"github.com/sourcerack/sourcerack/internal/store"
)

// RepoResult tags a per-repo query output with its originating repository.
type RepoResult[T any] struct {
	Repo   store.Repository `json:"repo"`
	Commit store.Commit     `json:"commit"`
	Result T                `json:"result"`
}

// targets returns the latest complete commit of each requested repository.
// An empty repoIDs slice means all registered repositories. Repositories
// without a complete commit are skipped.
func (e *Engine) targets(ctx context.Context, repoIDs []int64) ([]Target, *Error) {
	repos, err := e.store.ListRepositories(ctx)
	if err != nil {
		return nil, dbError(err)
	}
	wanted := make(map[int64]bool, len(repoIDs))
	for _, id := range repoIDs {
		wanted[id] = true
	}

	var out []Target
	for _, repo := range repos {
		if len(repoIDs) > 0 && !wanted[repo.ID] {
			continue
		}
		commit, err := e.store.LatestCompleteCommit(ctx, repo.ID)
		if err != nil {
			continue
		}
		out = append(out, Target{Repo: repo, Commit: *commit})
	}
	return out, nil
}

// FindDefinitionAcrossRepos runs find_definition over every requested
// repository's latest complete commit, tagging each result with its repo.
func (e *Engine) FindDefinitionAcrossRepos(ctx context.Context, repoIDs []int64, name, kind string, fuzzy bool, minSimilarity float64) ([]RepoResult[*DefinitionResult], *Error) {
	targets, qerr := e.targets(ctx, repoIDs)
	if qerr != nil {
		return nil, qerr
	}
	var out []RepoResult[*DefinitionResult]
	for _, target := range targets {
		exact, err := e.store.FindSymbolsExact(ctx, target.Commit.ID, name, kind)
		if err != nil {
			return nil, dbError(err)
		}
		result := &DefinitionResult{Target: target, Exact: exact}
		if fuzzy {
			matches, err := e.store.FindSymbolsFuzzy(ctx, target.Commit.ID, name, minSimilarity, 25, kind)
			if err != nil {
				return nil, dbError(err)
			}
			for _, m := range matches {
				if m.Symbol.Name == name {
					continue
				}
				result.Fuzzy = append(result.Fuzzy, DefinitionMatch{Symbol: m.Symbol, Similarity: m.Similarity})
			}
		}
		if len(result.Exact) == 0 && len(result.Fuzzy) == 0 {
			continue
		}
		out = append(out, RepoResult[*DefinitionResult]{Repo: target.Repo, Commit: target.Commit, Result: result})
	}
	return out, nil
}

// FindDeadCodeAcrossRepos runs find_dead_code over every requested
// repository's latest complete commit.
func (e *Engine) FindDeadCodeAcrossRepos(ctx context.Context, repoIDs []int64, exportedOnly bool, limit int) ([]RepoResult[[]store.SymbolRow], *Error) {
	targets, qerr := e.targets(ctx, repoIDs)
	if qerr != nil {
		return nil, qerr
	}
	var out []RepoResult[[]store.SymbolRow]
	for _, target := range targets {
		symbols, err := e.store.GetDeadSymbols(ctx, target.Commit.ID, exportedOnly, limit)
		if err != nil {
			return nil, dbError(err)
		}
		if len(symbols) == 0 {
			continue
		}
		out = append(out, RepoResult[[]store.SymbolRow]{Repo: target.Repo, Commit: target.Commit, Result: symbols})
	}
	return out, nil
}

// FindEndpointsAcrossRepos runs find_endpoints over every requested
// repository's latest complete commit.
func (e *Engine) FindEndpointsAcrossRepos(ctx context.Context, repoIDs []int64, method, framework, pathContains string) ([]RepoResult[[]store.EndpointRow], *Error) {
	targets, qerr := e.targets(ctx, repoIDs)
	if qerr != nil {
		return nil, qerr
	}
	var out []RepoResult[[]store.EndpointRow]
	for _, target := range targets {
		endpoints, err := e.store.FindEndpoints(ctx, target.Commit.ID, method, framework, pathContains)
		if err != nil {
			return nil, dbError(err)
		}
		if len(endpoints) == 0 {
			continue
		}
		out = append(out, RepoResult[[]store.EndpointRow]{Repo: target.Repo, Commit: target.Commit, Result: endpoints})
	}
	return out, nil
}
