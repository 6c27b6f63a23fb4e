package store

import (
	"context"
	"database/sql"
	"fmt"
)

// CopyUnchangedData transactionally clones every row of the source commit
// whose file is not excluded into the target commit, remapping symbol and
// import ids so parent links, usage links, parameters, docstrings,
// trigrams, and bindings point at the new rows.
//
// Ordering: symbols are inserted first without parent links while the
// old-to-new id map is built, parent links are filled from the map, and the
// dependent tables are copied last.
func (s *Store) CopyUnchangedData(ctx context.Context, sourceCommit, targetCommit int64, excludedFiles []string) error {
	excluded := make(map[string]bool, len(excludedFiles))
	for _, f := range excludedFiles {
		excluded[f] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Pass 1: clone symbols without parents, building the id map.
	type symbolLink struct {
		newID     int64
		oldParent int64
	}
	symbolMap := make(map[int64]*symbolLink)

	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, qualified_name, kind, file_path, start_line, end_line,
		       visibility, is_async, is_static, is_exported, return_type,
		       parent_symbol_id, content_hash, trigram_count
		FROM symbols WHERE commit_id = ? ORDER BY id`, sourceCommit)
	if err != nil {
		return fmt.Errorf("reading source symbols: %w", err)
	}
	type srcSymbol struct {
		id, parent                             int64
		startLine, endLine, trigramCount       int
		isAsync, isStatic, isExported          bool
		name, qualified, kind, file, hash      string
		visibility, returnType                 sql.NullString
	}
	var srcSymbols []srcSymbol
	for rows.Next() {
		var sym srcSymbol
		var parent sql.NullInt64
		err := rows.Scan(&sym.id, &sym.name, &sym.qualified, &sym.kind, &sym.file,
			&sym.startLine, &sym.endLine, &sym.visibility, &sym.isAsync,
			&sym.isStatic, &sym.isExported, &sym.returnType, &parent,
			&sym.hash, &sym.trigramCount)
		if err != nil {
			rows.Close()
			return err
		}
		sym.parent = parent.Int64
		srcSymbols = append(srcSymbols, sym)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, sym := range srcSymbols {
		if excluded[sym.file] {
			continue
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO symbols (commit_id, name, qualified_name, kind, file_path,
			  start_line, end_line, visibility, is_async, is_static, is_exported,
			  return_type, parent_symbol_id, content_hash, trigram_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
			targetCommit, sym.name, sym.qualified, sym.kind, sym.file,
			sym.startLine, sym.endLine, sym.visibility, sym.isAsync,
			sym.isStatic, sym.isExported, sym.returnType, sym.hash, sym.trigramCount)
		if err != nil {
			return fmt.Errorf("cloning symbol %d: %w", sym.id, err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		symbolMap[sym.id] = &symbolLink{newID: newID, oldParent: sym.parent}
	}

	// Pass 2: fill parent links. A parent is always in the same file, so it
	// is in the map whenever the child is.
	for _, link := range symbolMap {
		if link.oldParent == 0 {
			continue
		}
		parent, ok := symbolMap[link.oldParent]
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE symbols SET parent_symbol_id = ? WHERE id = ?`,
			parent.newID, link.newID); err != nil {
			return fmt.Errorf("linking parent: %w", err)
		}
	}

	// Pass 3: symbol-owned tables through the map.
	for oldID, link := range symbolMap {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbol_parameters (symbol_id, position, name, type_annotation, is_optional)
			SELECT ?, position, name, type_annotation, is_optional
			FROM symbol_parameters WHERE symbol_id = ?`, link.newID, oldID); err != nil {
			return fmt.Errorf("cloning parameters: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbol_docstrings (symbol_id, doc_type, raw, description)
			SELECT ?, doc_type, raw, description
			FROM symbol_docstrings WHERE symbol_id = ?`, link.newID, oldID); err != nil {
			return fmt.Errorf("cloning docstring: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO symbol_trigrams (symbol_id, trigram)
			SELECT ?, trigram FROM symbol_trigrams WHERE symbol_id = ?`, link.newID, oldID); err != nil {
			return fmt.Errorf("cloning trigrams: %w", err)
		}
	}

	// Pass 4: imports and bindings.
	importMap := make(map[int64]int64)
	impRows, err := tx.QueryContext(ctx, `
		SELECT id, file_path, line, import_type, module_specifier, resolved_path
		FROM imports WHERE commit_id = ? ORDER BY id`, sourceCommit)
	if err != nil {
		return fmt.Errorf("reading source imports: %w", err)
	}
	type srcImport struct {
		id       int64
		line     int
		file     string
		impType  string
		module   string
		resolved sql.NullString
	}
	var srcImports []srcImport
	for impRows.Next() {
		var imp srcImport
		if err := impRows.Scan(&imp.id, &imp.file, &imp.line, &imp.impType, &imp.module, &imp.resolved); err != nil {
			impRows.Close()
			return err
		}
		srcImports = append(srcImports, imp)
	}
	if err := impRows.Err(); err != nil {
		impRows.Close()
		return err
	}
	impRows.Close()

	for _, imp := range srcImports {
		if excluded[imp.file] {
			continue
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO imports (commit_id, file_path, line, import_type, module_specifier, resolved_path)
			VALUES (?, ?, ?, ?, ?, ?)`,
			targetCommit, imp.file, imp.line, imp.impType, imp.module, imp.resolved)
		if err != nil {
			return fmt.Errorf("cloning import: %w", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		importMap[imp.id] = newID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO import_bindings (import_id, position, imported_name, local_name, is_type_only)
			SELECT ?, position, imported_name, local_name, is_type_only
			FROM import_bindings WHERE import_id = ?`, newID, imp.id); err != nil {
			return fmt.Errorf("cloning bindings: %w", err)
		}
	}

	// Pass 5: usages, remapping both nullable links. A link whose target
	// lives in an excluded file is dropped to NULL; the linker will
	// re-resolve it when the changed file is re-indexed.
	useRows, err := tx.QueryContext(ctx, `
		SELECT file_path, line, column_number, usage_kind, symbol_name,
		       enclosing_symbol_id, definition_symbol_id
		FROM usages WHERE commit_id = ? ORDER BY id`, sourceCommit)
	if err != nil {
		return fmt.Errorf("reading source usages: %w", err)
	}
	type srcUsage struct {
		line, column          int
		file, kind, name      string
		enclosing, definition sql.NullInt64
	}
	var srcUsages []srcUsage
	for useRows.Next() {
		var u srcUsage
		if err := useRows.Scan(&u.file, &u.line, &u.column, &u.kind, &u.name, &u.enclosing, &u.definition); err != nil {
			useRows.Close()
			return err
		}
		srcUsages = append(srcUsages, u)
	}
	if err := useRows.Err(); err != nil {
		useRows.Close()
		return err
	}
	useRows.Close()

	remap := func(old sql.NullInt64) any {
		if !old.Valid {
			return nil
		}
		if link, ok := symbolMap[old.Int64]; ok {
			return link.newID
		}
		return nil
	}
	for _, u := range srcUsages {
		if excluded[u.file] {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO usages (commit_id, file_path, line, column_number, usage_kind,
			  symbol_name, enclosing_symbol_id, definition_symbol_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			targetCommit, u.file, u.line, u.column, u.kind, u.name,
			remap(u.enclosing), remap(u.definition))
		if err != nil {
			return fmt.Errorf("cloning usage: %w", err)
		}
	}

	// Pass 6: endpoints and their params.
	epRows, err := tx.QueryContext(ctx, `
		SELECT id, http_method, path, file_path, start_line, end_line, framework,
		       handler_name, handler_type, summary, description, tags, middleware,
		       dependencies, response_model, response_status, body_schema
		FROM endpoints WHERE commit_id = ? ORDER BY id`, sourceCommit)
	if err != nil {
		return fmt.Errorf("reading source endpoints: %w", err)
	}
	type srcEndpoint struct {
		id                   int64
		startLine, endLine   int
		method, path, file   string
		framework, handlerTy string
		handler, summary, description, tags, middleware, deps, model, body sql.NullString
		status               sql.NullInt64
	}
	var srcEndpoints []srcEndpoint
	for epRows.Next() {
		var ep srcEndpoint
		err := epRows.Scan(&ep.id, &ep.method, &ep.path, &ep.file, &ep.startLine,
			&ep.endLine, &ep.framework, &ep.handler, &ep.handlerTy, &ep.summary,
			&ep.description, &ep.tags, &ep.middleware, &ep.deps, &ep.model,
			&ep.status, &ep.body)
		if err != nil {
			epRows.Close()
			return err
		}
		srcEndpoints = append(srcEndpoints, ep)
	}
	if err := epRows.Err(); err != nil {
		epRows.Close()
		return err
	}
	epRows.Close()

	for _, ep := range srcEndpoints {
		if excluded[ep.file] {
			continue
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO endpoints (commit_id, http_method, path, file_path, start_line,
			  end_line, framework, handler_name, handler_type, summary, description,
			  tags, middleware, dependencies, response_model, response_status, body_schema)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			targetCommit, ep.method, ep.path, ep.file, ep.startLine, ep.endLine,
			ep.framework, ep.handler, ep.handlerTy, ep.summary, ep.description,
			ep.tags, ep.middleware, ep.deps, ep.model, ep.status, ep.body)
		if err != nil {
			return fmt.Errorf("cloning endpoint: %w", err)
		}
		newID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO endpoint_params (endpoint_id, position, name, location, type_annotation, required)
			SELECT ?, position, name, location, type_annotation, required
			FROM endpoint_params WHERE endpoint_id = ?`, newID, ep.id); err != nil {
			return fmt.Errorf("cloning endpoint params: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteFileData removes all rows scoped to one file of a commit, in
// dependency order.
func (s *Store) DeleteFileData(ctx context.Context, commitID int64, filePath string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM symbol_parameters WHERE symbol_id IN
		   (SELECT id FROM symbols WHERE commit_id = ? AND file_path = ?)`,
		`DELETE FROM symbol_docstrings WHERE symbol_id IN
		   (SELECT id FROM symbols WHERE commit_id = ? AND file_path = ?)`,
		`DELETE FROM symbol_trigrams WHERE symbol_id IN
		   (SELECT id FROM symbols WHERE commit_id = ? AND file_path = ?)`,
		`DELETE FROM endpoint_params WHERE endpoint_id IN
		   (SELECT id FROM endpoints WHERE commit_id = ? AND file_path = ?)`,
		`DELETE FROM endpoints WHERE commit_id = ? AND file_path = ?`,
		`DELETE FROM usages WHERE commit_id = ? AND file_path = ?`,
		`DELETE FROM import_bindings WHERE import_id IN
		   (SELECT id FROM imports WHERE commit_id = ? AND file_path = ?)`,
		`DELETE FROM imports WHERE commit_id = ? AND file_path = ?`,
		`DELETE FROM symbols WHERE commit_id = ? AND file_path = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, commitID, filePath); err != nil {
			return fmt.Errorf("deleting file data: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteCommitData removes every per-commit row; the commit row itself
// stays.
func (s *Store) DeleteCommitData(ctx context.Context, commitID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM symbol_parameters WHERE symbol_id IN (SELECT id FROM symbols WHERE commit_id = ?)`,
		`DELETE FROM symbol_docstrings WHERE symbol_id IN (SELECT id FROM symbols WHERE commit_id = ?)`,
		`DELETE FROM symbol_trigrams WHERE symbol_id IN (SELECT id FROM symbols WHERE commit_id = ?)`,
		`DELETE FROM endpoint_params WHERE endpoint_id IN (SELECT id FROM endpoints WHERE commit_id = ?)`,
		`DELETE FROM endpoints WHERE commit_id = ?`,
		`DELETE FROM usages WHERE commit_id = ?`,
		`DELETE FROM import_bindings WHERE import_id IN (SELECT id FROM imports WHERE commit_id = ?)`,
		`DELETE FROM imports WHERE commit_id = ?`,
		`DELETE FROM symbols WHERE commit_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, commitID); err != nil {
			return fmt.Errorf("deleting commit data: %w", err)
		}
	}
	return tx.Commit()
}
