package store

import (
	"context"
	"fmt"

	"github.com/sourcerack/sourcerack/internal/extract"
)

// InsertFileRecords writes one file's extraction result under a commit in a
// single transaction: symbols (with parent links remapped from slice
// indexes to row ids), parameters, docstrings, trigrams, usages, imports,
// and bindings.
func (s *Store) InsertFileRecords(ctx context.Context, commitID int64, filePath string, recs *extract.FileRecords) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, len(recs.Symbols))

	symStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO symbols (commit_id, name, qualified_name, kind, file_path,
		   start_line, end_line, visibility, is_async, is_static, is_exported,
		   return_type, parent_symbol_id, content_hash, trigram_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing symbol insert: %w", err)
	}
	defer symStmt.Close()

	triStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO symbol_trigrams (symbol_id, trigram) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing trigram insert: %w", err)
	}
	defer triStmt.Close()

	for i, sym := range recs.Symbols {
		var parentID any
		if sym.Parent >= 0 && sym.Parent < i {
			parentID = ids[sym.Parent]
		}
		trigrams := Trigrams(sym.Name)
		res, err := symStmt.ExecContext(ctx,
			commitID, sym.Name, sym.QualifiedName, string(sym.Kind), filePath,
			sym.StartLine, sym.EndLine, nullIfEmpty(sym.Visibility),
			sym.IsAsync, sym.IsStatic, sym.IsExported,
			nullIfEmpty(sym.ReturnType), parentID, sym.ContentHash, len(trigrams))
		if err != nil {
			return fmt.Errorf("inserting symbol %s: %w", sym.QualifiedName, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		ids[i] = id

		for _, tri := range trigrams {
			if _, err := triStmt.ExecContext(ctx, id, tri); err != nil {
				return fmt.Errorf("inserting trigram: %w", err)
			}
		}
		for _, param := range sym.Parameters {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO symbol_parameters (symbol_id, position, name, type_annotation, is_optional)
				 VALUES (?, ?, ?, ?, ?)`,
				id, param.Position, param.Name, nullIfEmpty(param.TypeAnnotation), param.IsOptional)
			if err != nil {
				return fmt.Errorf("inserting parameter: %w", err)
			}
		}
		if doc := sym.Docstring; doc != nil {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO symbol_docstrings (symbol_id, doc_type, raw, description)
				 VALUES (?, ?, ?, ?)`,
				id, doc.DocType, doc.Raw, nullIfEmpty(doc.Description))
			if err != nil {
				return fmt.Errorf("inserting docstring: %w", err)
			}
		}
	}

	useStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO usages (commit_id, file_path, line, column_number, usage_kind, symbol_name)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing usage insert: %w", err)
	}
	defer useStmt.Close()

	for _, u := range recs.Usages {
		if _, err := useStmt.ExecContext(ctx, commitID, filePath, u.Line, u.Column, string(u.Kind), u.Name); err != nil {
			return fmt.Errorf("inserting usage %s: %w", u.Name, err)
		}
	}

	for _, imp := range recs.Imports {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO imports (commit_id, file_path, line, import_type, module_specifier, resolved_path)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			commitID, filePath, imp.Line, imp.ImportType, imp.ModuleSpecifier, nullIfEmpty(imp.ResolvedPath))
		if err != nil {
			return fmt.Errorf("inserting import %s: %w", imp.ModuleSpecifier, err)
		}
		importID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for pos, b := range imp.Bindings {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO import_bindings (import_id, position, imported_name, local_name, is_type_only)
				 VALUES (?, ?, ?, ?, ?)`,
				importID, pos, b.ImportedName, b.LocalName, b.IsTypeOnly)
			if err != nil {
				return fmt.Errorf("inserting import binding: %w", err)
			}
		}
	}

	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
