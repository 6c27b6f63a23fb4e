// Package linker resolves usages to their enclosing and defining symbols
// after a commit's extraction pass completes.
package linker

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/sourcerack/sourcerack/internal/store"
)

// Linker runs the post-extraction linking pass.
type Linker struct {
	store *store.Store
}

// New returns a linker over the given store.
func New(s *store.Store) *Linker {
	return &Linker{store: s}
}

// Run fills enclosing_symbol_id and definition_symbol_id on the commit's
// usages. Resolution failures are silent; unresolved usages stay queryable
// by name.
func (l *Linker) Run(ctx context.Context, commitID int64) error {
	if err := l.linkEnclosing(ctx, commitID); err != nil {
		return err
	}
	return l.linkDefinitions(ctx, commitID)
}

// linkEnclosing sets each usage's enclosing symbol to the innermost symbol
// of the same file whose line range contains the usage line: among
// containing symbols the one with the largest start line wins.
func (l *Linker) linkEnclosing(ctx context.Context, commitID int64) error {
	_, err := l.store.DB().ExecContext(ctx, `
		UPDATE usages SET enclosing_symbol_id = (
			SELECT s.id FROM symbols s
			WHERE s.commit_id = usages.commit_id
			  AND s.file_path = usages.file_path
			  AND s.start_line <= usages.line
			  AND s.end_line >= usages.line
			ORDER BY s.start_line DESC, s.id DESC
			LIMIT 1
		)
		WHERE commit_id = ?`, commitID)
	if err != nil {
		return fmt.Errorf("linking enclosing symbols: %w", err)
	}
	return nil
}

// candidate is one symbol a usage name might resolve to.
type candidate struct {
	id         int64
	filePath   string
	isExported bool
}

// linkDefinitions resolves each usage name to a definition symbol.
// Preference order: same file, then a symbol whose file is imported by the
// usage's file under a matching local name, then any exported symbol, then
// a unique remaining candidate. Ties inside the first three tiers break on
// shortest file-path distance then lowest symbol id; an ambiguous final
// tier leaves the usage unresolved.
func (l *Linker) linkDefinitions(ctx context.Context, commitID int64) error {
	db := l.store.DB()

	candidates, err := l.loadCandidates(ctx, commitID)
	if err != nil {
		return err
	}
	bindings, err := l.loadBindings(ctx, commitID)
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, file_path, symbol_name FROM usages WHERE commit_id = ?`, commitID)
	if err != nil {
		return fmt.Errorf("loading usages: %w", err)
	}
	type usage struct {
		id   int64
		file string
		name string
	}
	var usages []usage
	for rows.Next() {
		var u usage
		if err := rows.Scan(&u.id, &u.file, &u.name); err != nil {
			rows.Close()
			return err
		}
		usages = append(usages, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`UPDATE usages SET definition_symbol_id = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("preparing update: %w", err)
	}
	defer stmt.Close()

	for _, u := range usages {
		target, ok := resolve(u.name, u.file, candidates[u.name], bindings[u.file])
		if !ok {
			continue
		}
		if _, err := stmt.ExecContext(ctx, target, u.id); err != nil {
			return fmt.Errorf("linking usage %d: %w", u.id, err)
		}
	}
	return tx.Commit()
}

func (l *Linker) loadCandidates(ctx context.Context, commitID int64) (map[string][]candidate, error) {
	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT id, name, file_path, is_exported FROM symbols WHERE commit_id = ? ORDER BY id`, commitID)
	if err != nil {
		return nil, fmt.Errorf("loading symbols: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]candidate)
	for rows.Next() {
		var c candidate
		var name string
		if err := rows.Scan(&c.id, &name, &c.filePath, &c.isExported); err != nil {
			return nil, err
		}
		out[name] = append(out[name], c)
	}
	return out, rows.Err()
}

// binding maps a local name in a file to the module specifier it came from.
type binding struct {
	localName string
	module    string
}

func (l *Linker) loadBindings(ctx context.Context, commitID int64) (map[string][]binding, error) {
	rows, err := l.store.DB().QueryContext(ctx, `
		SELECT i.file_path, b.local_name, i.module_specifier
		FROM import_bindings b JOIN imports i ON i.id = b.import_id
		WHERE i.commit_id = ?`, commitID)
	if err != nil {
		return nil, fmt.Errorf("loading bindings: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]binding)
	for rows.Next() {
		var file string
		var b binding
		if err := rows.Scan(&file, &b.localName, &b.module); err != nil {
			return nil, err
		}
		out[file] = append(out[file], b)
	}
	return out, rows.Err()
}

// resolve applies the tiered preference order for one usage.
func resolve(name, file string, candidates []candidate, fileBindings []binding) (int64, bool) {
	if len(candidates) == 0 {
		return 0, false
	}

	// Tier a: same file.
	if id, ok := pickClosest(file, candidates, func(c candidate) bool {
		return c.filePath == file
	}); ok {
		return id, true
	}

	// Tier b: a local import binding with this name whose module resolves
	// toward the candidate's file.
	for _, b := range fileBindings {
		if b.localName != name {
			continue
		}
		resolved := resolveRelative(file, b.module)
		if id, ok := pickClosest(file, candidates, func(c candidate) bool {
			return moduleMatchesFile(resolved, c.filePath)
		}); ok {
			return id, true
		}
	}

	// Tier c: exported anywhere in the commit.
	if id, ok := pickClosest(file, candidates, func(c candidate) bool {
		return c.isExported
	}); ok {
		return id, true
	}

	// Tier d: a single remaining candidate; ambiguity stays unresolved.
	if len(candidates) == 1 {
		return candidates[0].id, true
	}
	return 0, false
}

// pickClosest filters candidates and breaks ties on path distance then
// lowest id.
func pickClosest(file string, candidates []candidate, keep func(candidate) bool) (int64, bool) {
	best := int64(0)
	bestDist := -1
	for _, c := range candidates {
		if !keep(c) {
			continue
		}
		d := pathDistance(file, c.filePath)
		if bestDist == -1 || d < bestDist || (d == bestDist && c.id < best) {
			best = c.id
			bestDist = d
		}
	}
	return best, bestDist >= 0
}

// pathDistance counts the non-shared path segments between two files.
func pathDistance(a, b string) int {
	as := strings.Split(path.Dir(a), "/")
	bs := strings.Split(path.Dir(b), "/")
	shared := 0
	for shared < len(as) && shared < len(bs) && as[shared] == bs[shared] {
		shared++
	}
	return (len(as) - shared) + (len(bs) - shared)
}

// resolveRelative resolves a relative module specifier against the
// importing file's directory. Bare specifiers pass through.
func resolveRelative(fromFile, module string) string {
	if strings.HasPrefix(module, ".") {
		return path.Join(path.Dir(fromFile), module)
	}
	return module
}

// moduleMatchesFile reports whether an import specifier plausibly points at
// a file: the specifier (with any extension dropped) is a prefix match for
// the file path minus its extension.
func moduleMatchesFile(module, filePath string) bool {
	if module == "" {
		return false
	}
	trimmed := strings.TrimSuffix(filePath, path.Ext(filePath))
	module = strings.TrimSuffix(module, path.Ext(module))
	return trimmed == module || strings.HasSuffix(trimmed, module) ||
		strings.HasSuffix(trimmed, module+"/index")
}
