package query

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// QueryResult is the answer to one QueryRequest.
type QueryResult struct {
	Rows    []Row          `json:"rows"`
	Totals  map[string]any `json:"totals"`
	Columns []string       `json:"columns"`
	Meta    ResultMeta     `json:"meta"`
}

// ResultMeta describes how a result was produced.
type ResultMeta struct {
	QueryID     string      `json:"query_id"`
	Base        BaseTable   `json:"base"`
	Attribution Attribution `json:"attribution"`
	Range       string      `json:"range"`
	From        *time.Time  `json:"from,omitempty"`
	To          *time.Time  `json:"to,omitempty"`
	Limit       uint64      `json:"limit"`
	Offset      uint64      `json:"offset"`
	ElapsedMs   int64       `json:"elapsed_ms"`
}

// Engine compiles, executes and enriches queries. It keeps no per-request
// state; one instance serves every request.
type Engine struct {
	catalog  *Catalog
	compiler *Compiler
	executor RowExecutor
	enricher *EnrichmentPipeline
	logger   *slog.Logger
}

func NewEngine(catalog *Catalog, executor RowExecutor, lookups Lookups, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog:  catalog,
		compiler: NewCompiler(catalog, opts),
		executor: executor,
		enricher: NewEnrichmentPipeline(lookups, logger),
		logger:   logger,
	}
}

// Catalog returns the shared descriptor catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Compile validates req and builds its query without running anything.
func (e *Engine) Compile(req *QueryRequest) (*CompiledQuery, error) {
	return e.compiler.Compile(req)
}

// Run compiles and executes req.
func (e *Engine) Run(ctx context.Context, req *QueryRequest) (*QueryResult, error) {
	q, err := e.Compile(req)
	if err != nil {
		e.logger.Debug("Query rejected", slog.String("code", ErrorCode(err)), slog.Any("error", err))
		return nil, err
	}
	return e.Execute(ctx, q)
}

// Execute runs a compiled query: the aggregate statement, the attribution
// lookup when a rollup needs it, then enrichment. Execution failures are
// returned as ExecutionError and never retried.
func (e *Engine) Execute(ctx context.Context, q *CompiledQuery) (*QueryResult, error) {
	start := time.Now()
	queryID := uuid.NewString()
	logger := e.logger.With(slog.String("query_id", queryID))

	sqlText, args, err := q.SQL()
	if err != nil {
		return nil, &ExecutionError{Phase: "render", Err: err}
	}
	logger.Debug("Executing query", slog.String("sql", sqlText), slog.Int("args", len(args)))

	rows, err := e.executor.Execute(ctx, sqlText, args...)
	if err != nil {
		logger.Error("Query execution failed", slog.Any("error", err))
		return nil, &ExecutionError{Phase: "aggregate", Err: err}
	}

	totals := extractTotals(q, rows)
	if len(rows) == 0 && q.Offset > 0 && len(q.GroupBy) > 0 {
		if totals, err = e.pageTotals(ctx, q, totals); err != nil {
			logger.Error("Totals query failed", slog.Any("error", err))
			return nil, &ExecutionError{Phase: "totals", Err: err}
		}
	}

	if q.attribution != nil && len(rows) > 0 {
		var resolved []Row
		if ids := attributedIDs(rows); len(ids) > 0 {
			attrSQL, attrArgs, err := q.attribution.build(e.catalog, ids)
			if err != nil {
				return nil, &ExecutionError{Phase: "attribution", Err: err}
			}
			resolved, err = e.executor.Execute(ctx, attrSQL, attrArgs...)
			if err != nil {
				logger.Error("Attribution lookup failed", slog.Any("error", err))
				return nil, &ExecutionError{Phase: "attribution", Err: err}
			}
		}
		q.attribution.merge(rows, resolved)
	}

	e.enricher.Run(ctx, q.hooks, rows)

	out := make([]Row, len(rows))
	for i, row := range rows {
		projected := make(Row, len(q.Columns))
		for _, col := range q.Columns {
			projected[col] = row[col]
		}
		out[i] = projected
	}

	elapsed := time.Since(start)
	logger.Info("Query executed",
		slog.String("base", string(q.Base)),
		slog.Int("rows", len(out)),
		slog.Bool("attribution", q.attribution != nil),
		slog.Duration("elapsed", elapsed))

	result := &QueryResult{
		Rows:    out,
		Totals:  totals,
		Columns: q.Columns,
		Meta: ResultMeta{
			QueryID:     queryID,
			Base:        q.Base,
			Attribution: q.Attribution,
			Limit:       q.Limit,
			Offset:      q.Offset,
			ElapsedMs:   elapsed.Milliseconds(),
		},
	}
	if q.TimeFrame != nil {
		result.Meta.Range = string(q.TimeFrame.Label)
		if q.TimeFrame.IsBounded() {
			from, to := q.TimeFrame.From, q.TimeFrame.To
			result.Meta.From, result.Meta.To = &from, &to
		}
	}
	return result, nil
}

// pageTotals recomputes totals when the page starts past the last group.
func (e *Engine) pageTotals(ctx context.Context, q *CompiledQuery, fallback map[string]any) (map[string]any, error) {
	sqlText, args, ok, err := q.TotalsSQL()
	if err != nil || !ok {
		return fallback, err
	}
	rows, err := e.executor.Execute(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	return extractTotals(q, rows), nil
}

// extractTotals moves the window-function totals out of rows. Without
// group-bys the single aggregate row is its own total.
func extractTotals(q *CompiledQuery, rows []Row) map[string]any {
	totals := make(map[string]any, len(q.totals)+1)
	grouped := len(q.GroupBy) > 0

	for _, name := range q.totals {
		totals[name] = int64(0)
		if len(rows) == 0 {
			continue
		}
		if grouped {
			totals[name] = zeroIfNil(rows[0][totalPrefix+name])
		} else {
			totals[name] = zeroIfNil(rows[0][name])
		}
	}

	if grouped {
		for _, p := range q.Select {
			if p.Alias == totalGroupsAlias {
				totals["groups"] = int64(0)
				if len(rows) > 0 {
					totals["groups"] = zeroIfNil(rows[0][totalGroupsAlias])
				}
			}
		}
	}

	for _, row := range rows {
		for key := range row {
			if strings.HasPrefix(key, totalPrefix) {
				delete(row, key)
			}
		}
	}
	return totals
}

func zeroIfNil(v any) any {
	if v == nil {
		return int64(0)
	}
	return v
}
