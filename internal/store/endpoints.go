package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sourcerack/sourcerack/internal/endpoint"
)

// EndpointRow is one endpoints table row with its params.
type EndpointRow struct {
	ID             int64
	CommitID       int64
	Method         string
	Path           string
	FilePath       string
	StartLine      int
	EndLine        int
	Framework      string
	HandlerName    string
	HandlerType    string
	Summary        string
	Description    string
	Tags           []string
	Middleware     []string
	Dependencies   []string
	ResponseModel  string
	ResponseStatus int
	BodySchema     string
	Params         []EndpointParamRow
}

// EndpointParamRow is one endpoint_params row.
type EndpointParamRow struct {
	Name           string
	Location       string
	TypeAnnotation string
	Required       bool
}

// InsertEndpoints writes a file's endpoint records in one transaction.
func (s *Store) InsertEndpoints(ctx context.Context, commitID int64, endpoints []endpoint.Endpoint) error {
	if len(endpoints) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ep := range endpoints {
		var status any
		if ep.ResponseStatus != 0 {
			status = ep.ResponseStatus
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO endpoints (commit_id, http_method, path, file_path, start_line,
			   end_line, framework, handler_name, handler_type, summary, description,
			   tags, middleware, dependencies, response_model, response_status, body_schema)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			commitID, ep.Method, ep.Path, ep.FilePath, ep.StartLine, ep.EndLine,
			ep.Framework, nullIfEmpty(ep.HandlerName), ep.HandlerType,
			nullIfEmpty(ep.Summary), nullIfEmpty(ep.Description),
			nullIfEmpty(strings.Join(ep.Tags, ",")),
			nullIfEmpty(strings.Join(ep.Middleware, ",")),
			nullIfEmpty(strings.Join(ep.Dependencies, ",")),
			nullIfEmpty(ep.ResponseModel), status, nullIfEmpty(ep.BodySchema))
		if err != nil {
			return fmt.Errorf("inserting endpoint %s %s: %w", ep.Method, ep.Path, err)
		}
		endpointID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for pos, param := range ep.Params {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO endpoint_params (endpoint_id, position, name, location, type_annotation, required)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				endpointID, pos, param.Name, param.Location,
				nullIfEmpty(param.TypeAnnotation), param.Required)
			if err != nil {
				return fmt.Errorf("inserting endpoint param: %w", err)
			}
		}
	}
	return tx.Commit()
}

// FindEndpoints returns the commit's endpoints, optionally filtered by
// method, framework, or a path substring.
func (s *Store) FindEndpoints(ctx context.Context, commitID int64, method, framework, pathContains string) ([]EndpointRow, error) {
	query := `SELECT id, commit_id, http_method, path, file_path, start_line, end_line,
		framework, handler_name, handler_type, summary, description, tags,
		middleware, dependencies, response_model, response_status, body_schema
		FROM endpoints WHERE commit_id = ?`
	args := []any{commitID}
	if method != "" {
		query += ` AND http_method = ?`
		args = append(args, strings.ToUpper(method))
	}
	if framework != "" {
		query += ` AND framework = ?`
		args = append(args, framework)
	}
	if pathContains != "" {
		query += ` AND path LIKE ?`
		args = append(args, "%"+pathContains+"%")
	}
	query += ` ORDER BY path, http_method`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying endpoints: %w", err)
	}

	var out []EndpointRow
	for rows.Next() {
		var ep EndpointRow
		var handler, summary, description, tags, middleware, deps, model, body sql.NullString
		var status sql.NullInt64
		err := rows.Scan(&ep.ID, &ep.CommitID, &ep.Method, &ep.Path, &ep.FilePath,
			&ep.StartLine, &ep.EndLine, &ep.Framework, &handler, &ep.HandlerType,
			&summary, &description, &tags, &middleware, &deps, &model, &status, &body)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ep.HandlerName = handler.String
		ep.Summary = summary.String
		ep.Description = description.String
		ep.Tags = splitList(tags.String)
		ep.Middleware = splitList(middleware.String)
		ep.Dependencies = splitList(deps.String)
		ep.ResponseModel = model.String
		ep.ResponseStatus = int(status.Int64)
		ep.BodySchema = body.String
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		params, err := s.endpointParams(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Params = params
	}
	return out, nil
}

func (s *Store) endpointParams(ctx context.Context, endpointID int64) ([]EndpointParamRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, location, type_annotation, required
		 FROM endpoint_params WHERE endpoint_id = ? ORDER BY position`, endpointID)
	if err != nil {
		return nil, fmt.Errorf("querying endpoint params: %w", err)
	}
	defer rows.Close()

	var out []EndpointParamRow
	for rows.Next() {
		var p EndpointParamRow
		var annotation sql.NullString
		if err := rows.Scan(&p.Name, &p.Location, &annotation, &p.Required); err != nil {
			return nil, err
		}
		p.TypeAnnotation = annotation.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// EndpointStats aggregates endpoint counts by framework and method.
type EndpointStats struct {
	Total       int
	ByFramework map[string]int
	ByMethod    map[string]int
}

// GetEndpointStats returns endpoint counts grouped by framework and method.
func (s *Store) GetEndpointStats(ctx context.Context, commitID int64) (*EndpointStats, error) {
	stats := &EndpointStats{
		ByFramework: make(map[string]int),
		ByMethod:    make(map[string]int),
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT framework, http_method, COUNT(*) FROM endpoints
		 WHERE commit_id = ? GROUP BY framework, http_method`, commitID)
	if err != nil {
		return nil, fmt.Errorf("querying endpoint stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var framework, method string
		var count int
		if err := rows.Scan(&framework, &method, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByFramework[framework] += count
		stats.ByMethod[method] += count
	}
	return stats, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
