package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SymbolRow is one symbols table row.
type SymbolRow struct {
	ID            int64
	CommitID      int64
	Name          string
	QualifiedName string
	Kind          string
	FilePath      string
	StartLine     int
	EndLine       int
	Visibility    string
	IsAsync       bool
	IsStatic      bool
	IsExported    bool
	ReturnType    string
	ParentID      int64 // 0 when top level
	ContentHash   string
}

// FuzzyMatch is a fuzzy search candidate with its Jaccard similarity.
type FuzzyMatch struct {
	Symbol     SymbolRow
	Similarity float64
}

const symbolColumns = `s.id, s.commit_id, s.name, s.qualified_name, s.kind, s.file_path,
	s.start_line, s.end_line, s.visibility, s.is_async, s.is_static, s.is_exported,
	s.return_type, s.parent_symbol_id, s.content_hash`

func scanSymbol(scanner interface{ Scan(...any) error }) (SymbolRow, error) {
	var row SymbolRow
	var visibility, returnType sql.NullString
	var parent sql.NullInt64
	err := scanner.Scan(&row.ID, &row.CommitID, &row.Name, &row.QualifiedName, &row.Kind,
		&row.FilePath, &row.StartLine, &row.EndLine, &visibility,
		&row.IsAsync, &row.IsStatic, &row.IsExported, &returnType, &parent, &row.ContentHash)
	if err != nil {
		return row, err
	}
	row.Visibility = visibility.String
	row.ReturnType = returnType.String
	row.ParentID = parent.Int64
	return row, nil
}

func collectSymbols(rows *sql.Rows) ([]SymbolRow, error) {
	defer rows.Close()
	var out []SymbolRow
	for rows.Next() {
		row, err := scanSymbol(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Trigrams computes the 3-character shingles of a symbol name: lowercased,
// non-alphanumeric runes replaced by spaces, padded with two spaces on both
// ends, pure-whitespace shingles dropped.
func Trigrams(name string) []string {
	normalized := make([]rune, 0, len(name)+4)
	normalized = append(normalized, ' ', ' ')
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			normalized = append(normalized, r)
		} else {
			normalized = append(normalized, ' ')
		}
	}
	normalized = append(normalized, ' ', ' ')

	seen := make(map[string]struct{})
	var out []string
	for i := 0; i+3 <= len(normalized); i++ {
		tri := string(normalized[i : i+3])
		if strings.TrimSpace(tri) == "" {
			continue
		}
		if _, dup := seen[tri]; dup {
			continue
		}
		seen[tri] = struct{}{}
		out = append(out, tri)
	}
	return out
}

// FindSymbolsExact returns the symbols with exactly the given name,
// optionally filtered by kind.
func (s *Store) FindSymbolsExact(ctx context.Context, commitID int64, name, kind string) ([]SymbolRow, error) {
	query := `SELECT ` + symbolColumns + ` FROM symbols s WHERE s.commit_id = ? AND s.name = ?`
	args := []any{commitID, name}
	if kind != "" {
		query += ` AND s.kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY s.file_path, s.start_line`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	return collectSymbols(rows)
}

// FindSymbolsFuzzy runs the trigram similarity search. The score is the
// Jaccard similarity shared / (symbol + query - shared), computed in SQL so
// it runs against the trigram index. Exact name matches order first, then
// case-insensitive equality, then similarity descending; candidates below
// minSimilarity are dropped unless they are exact or case-equal matches.
// An empty query returns an empty result.
func (s *Store) FindSymbolsFuzzy(ctx context.Context, commitID int64, query string, minSimilarity float64, limit int, kind string) ([]FuzzyMatch, error) {
	trigrams := Trigrams(query)
	if len(trigrams) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	placeholders := strings.Repeat("?,", len(trigrams))
	placeholders = placeholders[:len(placeholders)-1]

	sqlQuery := `
		SELECT ` + symbolColumns + `,
		       CAST(COUNT(*) AS REAL) / (s.trigram_count + ? - COUNT(*)) AS similarity,
		       s.name = ? AS exact_match,
		       LOWER(s.name) = LOWER(?) AS ci_match
		FROM symbol_trigrams t
		JOIN symbols s ON s.id = t.symbol_id
		WHERE s.commit_id = ? AND t.trigram IN (` + placeholders + `)`
	args := []any{len(trigrams), query, query, commitID}
	for _, tri := range trigrams {
		args = append(args, tri)
	}
	if kind != "" {
		sqlQuery += ` AND s.kind = ?`
		args = append(args, kind)
	}
	sqlQuery += `
		GROUP BY s.id
		HAVING similarity >= ? OR exact_match OR ci_match
		ORDER BY exact_match DESC, ci_match DESC, similarity DESC, s.name
		LIMIT ?`
	args = append(args, minSimilarity, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("fuzzy search: %w", err)
	}
	defer rows.Close()

	var out []FuzzyMatch
	for rows.Next() {
		var m FuzzyMatch
		var visibility, returnType sql.NullString
		var parent sql.NullInt64
		var exact, ci bool
		err := rows.Scan(&m.Symbol.ID, &m.Symbol.CommitID, &m.Symbol.Name, &m.Symbol.QualifiedName,
			&m.Symbol.Kind, &m.Symbol.FilePath, &m.Symbol.StartLine, &m.Symbol.EndLine,
			&visibility, &m.Symbol.IsAsync, &m.Symbol.IsStatic, &m.Symbol.IsExported,
			&returnType, &parent, &m.Symbol.ContentHash, &m.Similarity, &exact, &ci)
		if err != nil {
			return nil, err
		}
		m.Symbol.Visibility = visibility.String
		m.Symbol.ReturnType = returnType.String
		m.Symbol.ParentID = parent.Int64
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetSymbol fetches one symbol by id.
func (s *Store) GetSymbol(ctx context.Context, symbolID int64) (*SymbolRow, error) {
	row, err := scanSymbol(s.db.QueryRowContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols s WHERE s.id = ?`, symbolID))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying symbol: %w", err)
	}
	return &row, nil
}

// SymbolsInFile returns all symbols of a file ordered by position.
func (s *Store) SymbolsInFile(ctx context.Context, commitID int64, filePath string) ([]SymbolRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols s
		 WHERE s.commit_id = ? AND s.file_path = ? ORDER BY s.start_line, s.id`,
		commitID, filePath)
	if err != nil {
		return nil, fmt.Errorf("querying file symbols: %w", err)
	}
	return collectSymbols(rows)
}

// ChildSymbols returns the direct children of a symbol.
func (s *Store) ChildSymbols(ctx context.Context, symbolID int64) ([]SymbolRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+symbolColumns+` FROM symbols s
		 WHERE s.parent_symbol_id = ? ORDER BY s.start_line, s.id`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	return collectSymbols(rows)
}

// ParentChain walks parent_symbol_id links from a symbol to the root.
func (s *Store) ParentChain(ctx context.Context, symbolID int64) ([]SymbolRow, error) {
	var chain []SymbolRow
	current := symbolID
	for {
		sym, err := s.GetSymbol(ctx, current)
		if err != nil {
			return nil, err
		}
		if sym.ParentID == 0 {
			return chain, nil
		}
		parent, err := s.GetSymbol(ctx, sym.ParentID)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *parent)
		current = parent.ID
	}
}

// SymbolParameters returns a symbol's ordered parameters.
func (s *Store) SymbolParameters(ctx context.Context, symbolID int64) ([]ParameterRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, name, type_annotation, is_optional
		 FROM symbol_parameters WHERE symbol_id = ? ORDER BY position`, symbolID)
	if err != nil {
		return nil, fmt.Errorf("querying parameters: %w", err)
	}
	defer rows.Close()

	var out []ParameterRow
	for rows.Next() {
		var p ParameterRow
		var annotation sql.NullString
		if err := rows.Scan(&p.Position, &p.Name, &annotation, &p.IsOptional); err != nil {
			return nil, err
		}
		p.TypeAnnotation = annotation.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// SymbolDocstring returns a symbol's docstring, or nil.
func (s *Store) SymbolDocstring(ctx context.Context, symbolID int64) (*DocstringRow, error) {
	var d DocstringRow
	var description sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_type, raw, description FROM symbol_docstrings WHERE symbol_id = ?`, symbolID).
		Scan(&d.DocType, &d.Raw, &description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying docstring: %w", err)
	}
	d.Description = description.String
	return &d, nil
}

// ParameterRow is one symbol_parameters row.
type ParameterRow struct {
	Position       int
	Name           string
	TypeAnnotation string
	IsOptional     bool
}

// DocstringRow is one symbol_docstrings row.
type DocstringRow struct {
	DocType     string
	Raw         string
	Description string
}
