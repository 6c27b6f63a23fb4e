// Package indexer orchestrates the per-commit pipeline: parse, extract,
// persist, endpoint discovery, linking, and incremental copy-forward.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sourcerack/sourcerack/internal/endpoint"
	"github.com/sourcerack/sourcerack/internal/extract"
	"github.com/sourcerack/sourcerack/internal/gitrepo"
	"github.com/sourcerack/sourcerack/internal/linker"
	"github.com/sourcerack/sourcerack/internal/parser"
	"github.com/sourcerack/sourcerack/internal/store"
)

// parseWorkers bounds the concurrent parse stage. Database inserts stay
// sequential in file order.
const parseWorkers = 4

// Indexer drives indexing of commits into the store.
type Indexer struct {
	store      *store.Store
	parsers    *parser.Registry
	extractors *extract.Registry
	endpoints  *endpoint.Registry
	log        *slog.Logger
}

// New returns an indexer over the given store.
func New(s *store.Store) *Indexer {
	return &Indexer{
		store:      s,
		parsers:    parser.NewRegistry(),
		extractors: extract.NewRegistry(),
		endpoints:  endpoint.NewRegistry(),
		log:        slog.Default(),
	}
}

// Result summarizes one indexing run.
type Result struct {
	CommitID     int64
	SHA          string
	FilesIndexed int
	FilesCopied  int
	FilesSkipped int
	Incremental  bool
}

// fileRecords pairs one parsed file with its extraction output.
type fileRecords struct {
	path      string
	records   *extract.FileRecords
	endpoints []endpoint.Endpoint
	skipped   bool
}

// IndexCommit indexes one commit of a repository. When a previous complete
// commit exists, unchanged files are carried forward and only the changed
// ones re-extracted. Per-file failures are logged and skipped; the commit
// still completes. Cancellation between files discards the partial commit.
func (ix *Indexer) IndexCommit(ctx context.Context, src gitrepo.Source, repoPath, ref string) (*Result, error) {
	repo, err := ix.store.RegisterRepository(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	sha, err := src.ResolveRef(ref)
	if err != nil {
		return nil, err
	}

	if existing, err := ix.store.GetIndexedCommit(ctx, repo.ID, sha); err == nil && existing.Status == store.StatusComplete {
		return &Result{CommitID: existing.ID, SHA: sha}, nil
	}

	var prev *store.Commit
	if p, err := ix.store.LatestCompleteCommit(ctx, repo.ID); err == nil && p.SHA != sha {
		prev = p
	}

	commitID, err := ix.store.StartIndexing(ctx, repo.ID, sha)
	if err != nil {
		return nil, err
	}

	result, err := ix.buildCommit(ctx, src, commitID, sha, prev)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			// Partial state is safe to discard.
			ix.store.DeleteCommitData(context.Background(), commitID)
			ix.store.SetCommitStatus(context.Background(), commitID, store.StatusFailed)
			return nil, ctxErr
		}
		ix.store.SetCommitStatus(ctx, commitID, store.StatusFailed)
		return nil, err
	}

	if err := ix.store.SetCommitStatus(ctx, commitID, store.StatusComplete); err != nil {
		return nil, err
	}
	result.CommitID = commitID
	result.SHA = sha
	return result, nil
}

func (ix *Indexer) buildCommit(ctx context.Context, src gitrepo.Source, commitID int64, sha string, prev *store.Commit) (*Result, error) {
	allFiles, err := src.ListFilesAtCommit(sha)
	if err != nil {
		return nil, err
	}
	files := filterFiles(allFiles)
	result := &Result{}

	toProcess := files
	if prev != nil {
		changed, err := src.ChangedFiles(prev.SHA, sha)
		if err != nil {
			return nil, err
		}
		if err := ix.store.CopyUnchangedData(ctx, prev.ID, commitID, changed); err != nil {
			return nil, err
		}
		changedSet := make(map[string]bool, len(changed))
		for _, f := range changed {
			changedSet[f] = true
		}
		toProcess = nil
		for _, f := range files {
			if changedSet[f] {
				toProcess = append(toProcess, f)
			}
		}
		result.Incremental = true
		result.FilesCopied = len(files) - len(toProcess)
	}

	// Parse and extract concurrently; results land in file order so the
	// sequential insert loop below preserves the per-file ordering
	// guarantee.
	parsed := make([]*fileRecords, len(toProcess))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parseWorkers)
	for i, file := range toProcess {
		g.Go(func() error {
			fr, err := ix.processFile(gctx, src, sha, file)
			if err != nil {
				return err
			}
			parsed[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, fr := range parsed {
		if fr == nil || fr.skipped {
			result.FilesSkipped++
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := ix.store.InsertFileRecords(ctx, commitID, fr.path, fr.records); err != nil {
			return nil, err
		}
		if len(fr.endpoints) > 0 {
			if err := ix.store.InsertEndpoints(ctx, commitID, fr.endpoints); err != nil {
				return nil, err
			}
		}
		result.FilesIndexed++
	}

	if err := linker.New(ix.store).Run(ctx, commitID); err != nil {
		return nil, err
	}
	return result, nil
}

// processFile reads, parses, and extracts one file. Grammar, read, parse,
// and extraction failures are non-fatal: the file is skipped with a logged
// warning.
func (ix *Indexer) processFile(ctx context.Context, src gitrepo.Source, sha, file string) (*fileRecords, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := src.ReadFileAtCommit(sha, file)
	if err != nil {
		ix.log.Warn("skipping file: read failed", "file", file, "error", err)
		return &fileRecords{path: file, skipped: true}, nil
	}

	tree, language, err := ix.parsers.ParseFile(file, content)
	if err != nil {
		if errors.Is(err, parser.ErrGrammarUnavailable) {
			ix.log.Warn("skipping file: grammar unavailable", "file", file, "language", language)
		} else {
			ix.log.Warn("skipping file: parse failed", "file", file, "error", err)
		}
		return &fileRecords{path: file, skipped: true}, nil
	}
	defer tree.Close()

	extractor := ix.extractors.ForLanguage(language)
	if extractor == nil {
		ix.log.Warn("skipping file: no extractor", "file", file, "language", language)
		return &fileRecords{path: file, skipped: true}, nil
	}

	recs, err := extractor.Extract(tree, file, content)
	if err != nil {
		ix.log.Warn("skipping file: extraction failed", "file", file, "error", err)
		return &fileRecords{path: file, skipped: true}, nil
	}

	fr := &fileRecords{path: file, records: recs}
	for _, epExtractor := range ix.endpoints.Matching(language, file, recs.Imports) {
		eps, err := epExtractor.Extract(tree, file, content, recs.Imports)
		if err != nil {
			ix.log.Warn("endpoint extraction failed", "file", file,
				"framework", epExtractor.Framework(), "error", err)
			continue
		}
		fr.endpoints = append(fr.endpoints, eps...)
	}
	return fr, nil
}

// DeleteCommit removes an indexed commit and all its data.
func (ix *Indexer) DeleteCommit(ctx context.Context, commitID int64) error {
	return ix.store.DeleteCommit(ctx, commitID)
}

// ReindexFile re-extracts a single file inside an existing commit:
// file-scoped rows are deleted and rebuilt, then the commit is relinked.
func (ix *Indexer) ReindexFile(ctx context.Context, src gitrepo.Source, commitID int64, sha, file string) error {
	if err := ix.store.DeleteFileData(ctx, commitID, file); err != nil {
		return err
	}
	fr, err := ix.processFile(ctx, src, sha, file)
	if err != nil {
		return err
	}
	if fr.skipped {
		return fmt.Errorf("file %s could not be extracted", file)
	}
	if err := ix.store.InsertFileRecords(ctx, commitID, fr.path, fr.records); err != nil {
		return err
	}
	if len(fr.endpoints) > 0 {
		if err := ix.store.InsertEndpoints(ctx, commitID, fr.endpoints); err != nil {
			return err
		}
	}
	return linker.New(ix.store).Run(ctx, commitID)
}
