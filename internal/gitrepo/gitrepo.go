// Package gitrepo reads repository content through go-git: ref resolution,
// file content at a commit, tree listing, and tree diffs.
package gitrepo

import (
	"errors"
	"fmt"
	"io"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrFileNotFound is returned when a path does not exist at a commit.
var ErrFileNotFound = errors.New("file not found at commit")

// ErrRefNotFound is returned when a ref cannot be resolved.
var ErrRefNotFound = errors.New("ref not resolvable")

// Source is the git contract the indexer and query engine consume. The
// commit sha is treated as opaque.
type Source interface {
	ResolveRef(ref string) (string, error)
	ReadFileAtCommit(sha, path string) ([]byte, error)
	ListFilesAtCommit(sha string) ([]string, error)
	ChangedFiles(oldSHA, newSHA string) ([]string, error)
}

// Repo is a go-git backed Source.
type Repo struct {
	repo *git.Repository
	path string
}

// Open opens the repository at path.
func Open(path string) (*Repo, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", path, err)
	}
	return &Repo{repo: repo, path: path}, nil
}

// Path returns the repository's filesystem path.
func (r *Repo) Path() string { return r.path }

// ResolveRef resolves a branch, tag, or sha prefix to a full commit sha.
func (r *Repo) ResolveRef(ref string) (string, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	return hash.String(), nil
}

func (r *Repo) commit(sha string) (*object.Commit, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRefNotFound, sha)
	}
	return commit, nil
}

// ReadFileAtCommit returns a file's content at a commit.
func (r *Repo) ReadFileAtCommit(sha, path string) ([]byte, error) {
	commit, err := r.commit(sha)
	if err != nil {
		return nil, err
	}
	file, err := commit.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("reading %s at %s: %w", path, sha, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", path, sha, err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

// ListFilesAtCommit returns every file path in the commit's tree.
func (r *Repo) ListFilesAtCommit(sha string) ([]string, error) {
	commit, err := r.commit(sha)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree at %s: %w", sha, err)
	}
	var files []string
	err = tree.Files().ForEach(func(f *object.File) error {
		files = append(files, f.Name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking tree at %s: %w", sha, err)
	}
	return files, nil
}

// ChangedFiles returns the paths added, modified, or deleted between two
// commits; both the old and new names of a change are included so renames
// exclude both sides from copy-forward.
func (r *Repo) ChangedFiles(oldSHA, newSHA string) ([]string, error) {
	oldCommit, err := r.commit(oldSHA)
	if err != nil {
		return nil, err
	}
	newCommit, err := r.commit(newSHA)
	if err != nil {
		return nil, err
	}
	oldTree, err := oldCommit.Tree()
	if err != nil {
		return nil, err
	}
	newTree, err := newCommit.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := object.DiffTree(oldTree, newTree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..%s: %w", oldSHA, newSHA, err)
	}

	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}
	for _, change := range changes {
		add(change.From.Name)
		add(change.To.Name)
	}
	return out, nil
}
