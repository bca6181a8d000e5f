package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/karloscodes/cartridge"

	"webstats/internal/pkg/async"
	"webstats/internal/query"
)

const (
	errExecutionFailed = "Query execution failed"
	errQueryTimeout    = "Query timed out"

	maxBatchQueries = 20
)

// ErrorResponse is the body of every failed query response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// BatchRequest names several queries to run together.
type BatchRequest struct {
	Queries map[string]json.RawMessage `json:"queries"`
}

// BatchItem holds either the result or the error of one batched query.
type BatchItem struct {
	Result *query.QueryResult `json:"result,omitempty"`
	Error  *ErrorResponse     `json:"error,omitempty"`
}

type BatchResponse struct {
	Results map[string]BatchItem `json:"results"`
}

// QueryHandler serves the query API on top of one shared engine.
type QueryHandler struct {
	engine  *query.Engine
	timeout time.Duration
	pool    *async.Pool
}

// NewQueryHandler creates the handlers. A zero timeout leaves requests
// without a deadline; workers bounds concurrent queries of one batch.
func NewQueryHandler(engine *query.Engine, timeout time.Duration, workers int) *QueryHandler {
	return &QueryHandler{
		engine:  engine,
		timeout: timeout,
		pool:    async.NewPool(workers),
	}
}

// QueryAction runs one QueryRequest.
func (h *QueryHandler) QueryAction(ctx *cartridge.Context) error {
	req, err := query.DecodeRequestJSON(ctx.Body())
	if err != nil {
		return h.writeError(ctx, err)
	}

	runCtx, cancel := h.withDeadline(ctx.Context())
	defer cancel()

	result, err := h.engine.Run(runCtx, req)
	if err != nil {
		return h.writeError(ctx, err)
	}
	return ctx.JSON(result)
}

// BatchAction runs up to maxBatchQueries named queries on the worker pool.
// One failing query does not fail the batch.
func (h *QueryHandler) BatchAction(ctx *cartridge.Context) error {
	var batch BatchRequest
	if err := json.Unmarshal(ctx.Body(), &batch); err != nil {
		return h.writeError(ctx, &query.InvalidRequestError{Field: "body", Reason: err.Error()})
	}
	if len(batch.Queries) == 0 {
		return h.writeError(ctx, &query.InvalidRequestError{Field: "queries", Reason: "at least one query is required"})
	}
	if len(batch.Queries) > maxBatchQueries {
		return h.writeError(ctx, &query.InvalidRequestError{
			Field:  "queries",
			Reason: fmt.Sprintf("at most %d queries per batch, got %d", maxBatchQueries, len(batch.Queries)),
		})
	}

	names := make([]string, 0, len(batch.Queries))
	for name := range batch.Queries {
		names = append(names, name)
	}
	sort.Strings(names)

	response := BatchResponse{Results: make(map[string]BatchItem, len(names))}
	var tasks []async.Task
	for _, name := range names {
		req, err := query.DecodeRequestJSON(batch.Queries[name])
		if err != nil {
			response.Results[name] = BatchItem{Error: errorBody(err)}
			continue
		}
		tasks = append(tasks, async.Task{
			Name: name,
			Execute: func(taskCtx context.Context) (any, error) {
				return h.engine.Run(taskCtx, req)
			},
		})
	}

	runCtx, cancel := h.withDeadline(ctx.Context())
	defer cancel()

	for name, r := range h.pool.Execute(runCtx, tasks) {
		if r.Err != nil {
			if !query.IsRequestError(r.Err) {
				ctx.Logger.Error("Batch query failed", slog.String("query", name), slog.Any("error", r.Err))
			}
			response.Results[name] = BatchItem{Error: errorBody(r.Err)}
			continue
		}
		response.Results[name] = BatchItem{Result: r.Data.(*query.QueryResult)}
	}

	ctx.Logger.Info("Batch executed", slog.Int("queries", len(names)))
	return ctx.JSON(response)
}

// CatalogAction describes the filters, group-bys and measures the engine accepts.
func (h *QueryHandler) CatalogAction(ctx *cartridge.Context) error {
	return ctx.JSON(h.engine.Catalog().Describe())
}

func (h *QueryHandler) withDeadline(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.timeout)
}

func (h *QueryHandler) writeError(ctx *cartridge.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		ctx.Logger.Error("Query failed", slog.Any("error", err))
	} else {
		ctx.Logger.Debug("Query rejected", slog.Any("error", err))
	}
	return ctx.Status(status).JSON(errorBody(err))
}

func statusFor(err error) int {
	switch {
	case query.IsRequestError(err):
		return http.StatusBadRequest
	case timedOut(err):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// errorBody hides execution details from callers; request errors are
// returned verbatim so they can be fixed.
func errorBody(err error) *ErrorResponse {
	switch {
	case query.IsRequestError(err):
		return &ErrorResponse{Error: err.Error(), Code: query.ErrorCode(err)}
	case timedOut(err):
		return &ErrorResponse{Error: errQueryTimeout, Code: query.CodeTimeout}
	}
	return &ErrorResponse{Error: errExecutionFailed, Code: query.CodeExecution}
}

// timedOut also covers batch queries the pool never started.
func timedOut(err error) bool {
	return query.ErrorCode(err) == query.CodeTimeout || errors.Is(err, context.DeadlineExceeded)
}
