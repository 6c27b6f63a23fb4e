package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ImpactedSymbol is one symbol reached by the transitive impact walk, with
// the minimum hop depth it was reached at.
type ImpactedSymbol struct {
	Symbol SymbolRow
	Depth  int
}

// GetTransitiveImpact returns the symbols reachable from symbolID in at
// most maxDepth hops, repeatedly following usages whose definition matches
// the frontier to their enclosing symbols. Depth bounding plus the UNION's
// deduplication keep cycles finite; each row carries its minimum depth.
// maxDepth of zero returns the empty set.
func (s *Store) GetTransitiveImpact(ctx context.Context, symbolID int64, maxDepth int) ([]ImpactedSymbol, error) {
	if maxDepth <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE impact(symbol_id, depth) AS (
			SELECT ?, 0
			UNION
			SELECT u.enclosing_symbol_id, i.depth + 1
			FROM impact i
			JOIN usages u ON u.definition_symbol_id = i.symbol_id
			WHERE u.enclosing_symbol_id IS NOT NULL AND i.depth < ?
		)
		SELECT `+symbolColumns+`, MIN(i.depth) AS depth
		FROM impact i
		JOIN symbols s ON s.id = i.symbol_id
		WHERE i.symbol_id != ?
		GROUP BY s.id
		ORDER BY depth, s.file_path, s.start_line`,
		symbolID, maxDepth, symbolID)
	if err != nil {
		return nil, fmt.Errorf("impact query: %w", err)
	}
	defer rows.Close()

	var out []ImpactedSymbol
	for rows.Next() {
		var imp ImpactedSymbol
		var visibility, returnType sql.NullString
		var parent sql.NullInt64
		err := rows.Scan(&imp.Symbol.ID, &imp.Symbol.CommitID, &imp.Symbol.Name,
			&imp.Symbol.QualifiedName, &imp.Symbol.Kind, &imp.Symbol.FilePath,
			&imp.Symbol.StartLine, &imp.Symbol.EndLine, &visibility,
			&imp.Symbol.IsAsync, &imp.Symbol.IsStatic, &imp.Symbol.IsExported,
			&returnType, &parent, &imp.Symbol.ContentHash, &imp.Depth)
		if err != nil {
			return nil, err
		}
		imp.Symbol.Visibility = visibility.String
		imp.Symbol.ReturnType = returnType.String
		imp.Symbol.ParentID = parent.Int64
		out = append(out, imp)
	}
	return out, rows.Err()
}

// deadKinds are the symbol kinds the dead-code query considers.
var deadKinds = []string{"function", "method", "class", "interface", "type_alias"}

// GetDeadSymbols returns top-level symbols of the dead-candidate kinds with
// no usage resolving to them, exported first, then by file and line.
func (s *Store) GetDeadSymbols(ctx context.Context, commitID int64, exportedOnly bool, limit int) ([]SymbolRow, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT ` + symbolColumns + ` FROM symbols s
		WHERE s.commit_id = ?
		  AND s.parent_symbol_id IS NULL
		  AND s.kind IN (?, ?, ?, ?, ?)
		  AND NOT EXISTS (SELECT 1 FROM usages u WHERE u.definition_symbol_id = s.id)`
	args := []any{commitID}
	for _, k := range deadKinds {
		args = append(args, k)
	}
	if exportedOnly {
		query += ` AND s.is_exported`
	}
	query += ` ORDER BY s.is_exported DESC, s.file_path, s.start_line LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("dead code query: %w", err)
	}
	return collectSymbols(rows)
}

// Hotspot is a symbol ranked by inbound usage count.
type Hotspot struct {
	Symbol     SymbolRow
	UsageCount int
}

// Hotspots returns the symbols with the most usages targeting them.
func (s *Store) Hotspots(ctx context.Context, commitID int64, limit int) ([]Hotspot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+symbolColumns+`, COUNT(u.id) AS usage_count
		FROM symbols s
		JOIN usages u ON u.definition_symbol_id = s.id
		WHERE s.commit_id = ?
		GROUP BY s.id
		ORDER BY usage_count DESC, s.name
		LIMIT ?`, commitID, limit)
	if err != nil {
		return nil, fmt.Errorf("hotspot query: %w", err)
	}
	defer rows.Close()

	var out []Hotspot
	for rows.Next() {
		var h Hotspot
		var visibility, returnType sql.NullString
		var parent sql.NullInt64
		err := rows.Scan(&h.Symbol.ID, &h.Symbol.CommitID, &h.Symbol.Name,
			&h.Symbol.QualifiedName, &h.Symbol.Kind, &h.Symbol.FilePath,
			&h.Symbol.StartLine, &h.Symbol.EndLine, &visibility,
			&h.Symbol.IsAsync, &h.Symbol.IsStatic, &h.Symbol.IsExported,
			&returnType, &parent, &h.Symbol.ContentHash, &h.UsageCount)
		if err != nil {
			return nil, err
		}
		h.Symbol.Visibility = visibility.String
		h.Symbol.ReturnType = returnType.String
		h.Symbol.ParentID = parent.Int64
		out = append(out, h)
	}
	return out, rows.Err()
}
