package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UsageRow is one usages table row.
type UsageRow struct {
	ID           int64
	CommitID     int64
	FilePath     string
	Line         int
	Column       int
	Kind         string
	SymbolName   string
	EnclosingID  int64 // 0 when unset
	DefinitionID int64 // 0 when unset
}

const usageColumns = `u.id, u.commit_id, u.file_path, u.line, u.column_number,
	u.usage_kind, u.symbol_name, u.enclosing_symbol_id, u.definition_symbol_id`

func collectUsages(rows *sql.Rows) ([]UsageRow, error) {
	defer rows.Close()
	var out []UsageRow
	for rows.Next() {
		var u UsageRow
		var enclosing, definition sql.NullInt64
		err := rows.Scan(&u.ID, &u.CommitID, &u.FilePath, &u.Line, &u.Column,
			&u.Kind, &u.SymbolName, &enclosing, &definition)
		if err != nil {
			return nil, err
		}
		u.EnclosingID = enclosing.Int64
		u.DefinitionID = definition.Int64
		out = append(out, u)
	}
	return out, rows.Err()
}

// FindUsagesByName returns the usages of a name, optionally in one file.
func (s *Store) FindUsagesByName(ctx context.Context, commitID int64, name, filePath string) ([]UsageRow, error) {
	query := `SELECT ` + usageColumns + ` FROM usages u WHERE u.commit_id = ? AND u.symbol_name = ?`
	args := []any{commitID, name}
	if filePath != "" {
		query += ` AND u.file_path = ?`
		args = append(args, filePath)
	}
	query += ` ORDER BY u.file_path, u.line, u.column_number`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying usages: %w", err)
	}
	return collectUsages(rows)
}

// UsagesOfSymbol returns the usages resolved to a definition symbol.
func (s *Store) UsagesOfSymbol(ctx context.Context, symbolID int64) ([]UsageRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+usageColumns+` FROM usages u
		 WHERE u.definition_symbol_id = ?
		 ORDER BY u.file_path, u.line, u.column_number`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("querying symbol usages: %w", err)
	}
	return collectUsages(rows)
}

// ImportRow is one imports table row with its bindings.
type ImportRow struct {
	ID              int64
	CommitID        int64
	FilePath        string
	Line            int
	ImportType      string
	ModuleSpecifier string
	ResolvedPath    string
	Bindings        []BindingRow
}

// BindingRow is one import_bindings row.
type BindingRow struct {
	ImportedName string
	LocalName    string
	IsTypeOnly   bool
}

func (s *Store) collectImportsWithBindings(ctx context.Context, rows *sql.Rows) ([]ImportRow, error) {
	var out []ImportRow
	for rows.Next() {
		var imp ImportRow
		var resolved sql.NullString
		err := rows.Scan(&imp.ID, &imp.CommitID, &imp.FilePath, &imp.Line,
			&imp.ImportType, &imp.ModuleSpecifier, &resolved)
		if err != nil {
			rows.Close()
			return nil, err
		}
		imp.ResolvedPath = resolved.String
		out = append(out, imp)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		bindings, err := s.importBindings(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Bindings = bindings
	}
	return out, nil
}

func (s *Store) importBindings(ctx context.Context, importID int64) ([]BindingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT imported_name, local_name, is_type_only
		 FROM import_bindings WHERE import_id = ? ORDER BY position`, importID)
	if err != nil {
		return nil, fmt.Errorf("querying bindings: %w", err)
	}
	defer rows.Close()

	var out []BindingRow
	for rows.Next() {
		var b BindingRow
		if err := rows.Scan(&b.ImportedName, &b.LocalName, &b.IsTypeOnly); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ImportsOfFile returns a file's import statements with bindings.
func (s *Store) ImportsOfFile(ctx context.Context, commitID int64, filePath string) ([]ImportRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, commit_id, file_path, line, import_type, module_specifier, resolved_path
		 FROM imports WHERE commit_id = ? AND file_path = ? ORDER BY line`, commitID, filePath)
	if err != nil {
		return nil, fmt.Errorf("querying imports: %w", err)
	}
	return s.collectImportsWithBindings(ctx, rows)
}

// Importers returns the imports whose module specifier matches the given
// module (substring match).
func (s *Store) Importers(ctx context.Context, commitID int64, module string) ([]ImportRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, commit_id, file_path, line, import_type, module_specifier, resolved_path
		 FROM imports WHERE commit_id = ? AND module_specifier LIKE ?
		 ORDER BY file_path, line`, commitID, "%"+module+"%")
	if err != nil {
		return nil, fmt.Errorf("querying importers: %w", err)
	}
	return s.collectImportsWithBindings(ctx, rows)
}

// AllImports returns every import of a commit, used by the dependency
// graph and summary aggregations.
func (s *Store) AllImports(ctx context.Context, commitID int64) ([]ImportRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, commit_id, file_path, line, import_type, module_specifier, resolved_path
		 FROM imports WHERE commit_id = ? ORDER BY file_path, line`, commitID)
	if err != nil {
		return nil, fmt.Errorf("querying imports: %w", err)
	}
	return s.collectImportsWithBindings(ctx, rows)
}

// CommitFiles returns the distinct file paths with symbols, usages, or
// imports under the commit.
func (s *Store) CommitFiles(ctx context.Context, commitID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT file_path FROM (
			SELECT file_path FROM symbols WHERE commit_id = ?
			UNION SELECT file_path FROM usages WHERE commit_id = ?
			UNION SELECT file_path FROM imports WHERE commit_id = ?
		) ORDER BY file_path`, commitID, commitID, commitID)
	if err != nil {
		return nil, fmt.Errorf("querying commit files: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, err
		}
		out = append(out, path)
	}
	return out, rows.Err()
}

// CountRows returns the row counts of the commit's symbols, usages, and
// imports tables.
func (s *Store) CountRows(ctx context.Context, commitID int64) (symbols, usages, imports int, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM symbols WHERE commit_id = ?),
		       (SELECT COUNT(*) FROM usages WHERE commit_id = ?),
		       (SELECT COUNT(*) FROM imports WHERE commit_id = ?)`,
		commitID, commitID, commitID)
	err = row.Scan(&symbols, &usages, &imports)
	return
}
