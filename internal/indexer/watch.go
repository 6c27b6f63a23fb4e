package indexer

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sourcerack/sourcerack/internal/gitrepo"
)

// debounceDelay coalesces the burst of ref writes a single git operation
// produces.
const debounceDelay = 500 * time.Millisecond

// Watch follows a repository's HEAD and indexes every new commit it moves
// to, incrementally against the previous one. It blocks until ctx is done.
func (ix *Indexer) Watch(ctx context.Context, repoPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	gitDir := filepath.Join(repoPath, ".git")
	for _, p := range []string{
		gitDir,
		filepath.Join(gitDir, "refs", "heads"),
	} {
		if err := watcher.Add(p); err != nil {
			ix.log.Warn("watch path unavailable", "path", p, "error", err)
		}
	}

	// Index the current HEAD before waiting for changes.
	ix.indexHead(ctx, repoPath)

	var timer *time.Timer
	fire := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != "HEAD" && !isRefWrite(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceDelay, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			ix.log.Warn("watch error", "error", err)
		case <-fire:
			ix.indexHead(ctx, repoPath)
		}
	}
}

func isRefWrite(event fsnotify.Event) bool {
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create)
}

func (ix *Indexer) indexHead(ctx context.Context, repoPath string) {
	src, err := gitrepo.Open(repoPath)
	if err != nil {
		ix.log.Warn("watch: open failed", "repo", repoPath, "error", err)
		return
	}
	result, err := ix.IndexCommit(ctx, src, repoPath, "HEAD")
	if err != nil {
		ix.log.Warn("watch: indexing failed", "repo", repoPath, "error", err)
		return
	}
	ix.log.Info("indexed HEAD",
		slog.String("sha", result.SHA),
		slog.Int("files", result.FilesIndexed),
		slog.Int("copied", result.FilesCopied),
		slog.Bool("incremental", result.Incremental))
}
