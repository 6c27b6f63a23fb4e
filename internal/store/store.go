package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
)

// Commit status values tracked in indexed_commits.
const (
	StatusInProgress = "in_progress"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store owns the SQI database connection.
type Store struct {
	db *sql.DB
}

// DB exposes the underlying connection for packages that run their own
// statements against the schema (the usage linker).
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Repository is a registered repository.
type Repository struct {
	ID   int64
	Path string
	Name string
}

// Commit is one indexed commit of a repository.
type Commit struct {
	ID        int64
	RepoID    int64
	SHA       string
	Status    string
	IndexedAt string
}

// RegisterRepository inserts the repository if unknown and returns its row.
func (s *Store) RegisterRepository(ctx context.Context, path string) (*Repository, error) {
	name := filepath.Base(path)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO repositories (path, name) VALUES (?, ?) ON CONFLICT(path) DO NOTHING`,
		path, name)
	if err != nil {
		return nil, fmt.Errorf("registering repository: %w", err)
	}
	return s.GetRepositoryByPath(ctx, path)
}

// GetRepositoryByPath looks up a repository by its filesystem path.
func (s *Store) GetRepositoryByPath(ctx context.Context, path string) (*Repository, error) {
	var repo Repository
	err := s.db.QueryRowContext(ctx,
		`SELECT id, path, name FROM repositories WHERE path = ?`, path).
		Scan(&repo.ID, &repo.Path, &repo.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying repository: %w", err)
	}
	return &repo, nil
}

// ListRepositories returns all registered repositories.
func (s *Store) ListRepositories(ctx context.Context) ([]Repository, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, name FROM repositories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	defer rows.Close()

	var repos []Repository
	for rows.Next() {
		var r Repository
		if err := rows.Scan(&r.ID, &r.Path, &r.Name); err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// GetIndexedCommit looks up a commit row by repo and sha.
func (s *Store) GetIndexedCommit(ctx context.Context, repoID int64, sha string) (*Commit, error) {
	var c Commit
	err := s.db.QueryRowContext(ctx,
		`SELECT id, repo_id, commit_sha, status, indexed_at
		 FROM indexed_commits WHERE repo_id = ? AND commit_sha = ?`, repoID, sha).
		Scan(&c.ID, &c.RepoID, &c.SHA, &c.Status, &c.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying commit: %w", err)
	}
	return &c, nil
}

// ListIndexedCommits returns a repository's commits, most recent first.
func (s *Store) ListIndexedCommits(ctx context.Context, repoID int64) ([]Commit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, repo_id, commit_sha, status, indexed_at
		 FROM indexed_commits WHERE repo_id = ? ORDER BY id DESC`, repoID)
	if err != nil {
		return nil, fmt.Errorf("listing commits: %w", err)
	}
	defer rows.Close()

	var commits []Commit
	for rows.Next() {
		var c Commit
		if err := rows.Scan(&c.ID, &c.RepoID, &c.SHA, &c.Status, &c.IndexedAt); err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

// LatestCompleteCommit returns the most recently indexed complete commit
// for a repository.
func (s *Store) LatestCompleteCommit(ctx context.Context, repoID int64) (*Commit, error) {
	var c Commit
	err := s.db.QueryRowContext(ctx,
		`SELECT id, repo_id, commit_sha, status, indexed_at
		 FROM indexed_commits WHERE repo_id = ? AND status = ?
		 ORDER BY id DESC LIMIT 1`, repoID, StatusComplete).
		Scan(&c.ID, &c.RepoID, &c.SHA, &c.Status, &c.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest commit: %w", err)
	}
	return &c, nil
}

// StartIndexing creates (or resets) the commit row in in_progress state and
// returns its id. An existing row for the same sha is cleared first so a
// re-index starts from empty tables.
func (s *Store) StartIndexing(ctx context.Context, repoID int64, sha string) (int64, error) {
	existing, err := s.GetIndexedCommit(ctx, repoID, sha)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	if existing != nil {
		if err := s.DeleteCommitData(ctx, existing.ID); err != nil {
			return 0, err
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE indexed_commits SET status = ?, indexed_at = datetime('now') WHERE id = ?`,
			StatusInProgress, existing.ID)
		if err != nil {
			return 0, fmt.Errorf("resetting commit: %w", err)
		}
		return existing.ID, nil
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO indexed_commits (repo_id, commit_sha, status) VALUES (?, ?, ?)`,
		repoID, sha, StatusInProgress)
	if err != nil {
		return 0, fmt.Errorf("starting commit: %w", err)
	}
	return res.LastInsertId()
}

// SetCommitStatus transitions a commit's status.
func (s *Store) SetCommitStatus(ctx context.Context, commitID int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE indexed_commits SET status = ? WHERE id = ?`, status, commitID)
	if err != nil {
		return fmt.Errorf("setting commit status: %w", err)
	}
	return nil
}

// DeleteCommit removes the commit row; per-commit data cascades.
func (s *Store) DeleteCommit(ctx context.Context, commitID int64) error {
	if err := s.DeleteCommitData(ctx, commitID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM indexed_commits WHERE id = ?`, commitID)
	if err != nil {
		return fmt.Errorf("deleting commit: %w", err)
	}
	return nil
}
