package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Error codes returned to API callers.
const (
	CodeInvalidFilter      = "INVALID_FILTER"
	CodeUnsupportedOp      = "UNSUPPORTED_OPERATOR"
	CodeSanitization       = "SANITIZATION_FAILED"
	CodeMissingRequirement = "MISSING_REQUIREMENT"
	CodeJoinConflict       = "JOIN_CONFLICT"
	CodeInvalidGroupBy     = "INVALID_GROUP_BY"
	CodeInvalidProjection  = "INVALID_PROJECTION"
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeExecution          = "EXECUTION_FAILED"
	CodeTimeout            = "QUERY_TIMEOUT"
)

// InvalidFilterError is returned when a request names a filter that is not in the catalog.
type InvalidFilterError struct {
	Name string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("unknown filter %q", e.Name)
}

// UnsupportedOperatorError is returned when an operator is outside a filter's supported set.
type UnsupportedOperatorError struct {
	Filter    string
	Operator  string
	Supported []Operator
}

func (e *UnsupportedOperatorError) Error() string {
	names := make([]string, len(e.Supported))
	for i, op := range e.Supported {
		names[i] = string(op)
	}
	return fmt.Sprintf("filter %q does not support operator %q (supported: %s)",
		e.Filter, e.Operator, strings.Join(names, ", "))
}

// SanitizationError is returned when a filter value cannot be coerced to the filter's type.
type SanitizationError struct {
	Filter   string
	Operator Operator
	Value    any
	Reason   string
}

func (e *SanitizationError) Error() string {
	if e.Filter == "" {
		return fmt.Sprintf("invalid value %v for operator %s: %s", e.Value, e.Operator, e.Reason)
	}
	return fmt.Sprintf("invalid value %v for filter %q operator %s: %s", e.Value, e.Filter, e.Operator, e.Reason)
}

// MissingRequirementError is returned when no single base table satisfies every
// active descriptor.
type MissingRequirementError struct {
	Requirements map[BaseTable][]string
}

func (e *MissingRequirementError) Error() string {
	parts := make([]string, 0, len(e.Requirements))
	for _, base := range []BaseTable{BaseSessions, BaseViews} {
		if names, ok := e.Requirements[base]; ok {
			parts = append(parts, fmt.Sprintf("%s requires %s", strings.Join(names, ", "), base))
		}
	}
	return "no single base table satisfies the request: " + strings.Join(parts, "; ")
}

// JoinConflictError is returned when two descriptors claim the same alias for
// different joins, or when the join graph cannot be ordered.
type JoinConflictError struct {
	Alias  string
	Reason string
}

func (e *JoinConflictError) Error() string {
	return fmt.Sprintf("join conflict on alias %q: %s", e.Alias, e.Reason)
}

// InvalidGroupByError is returned for a group-by name not in the catalog.
type InvalidGroupByError struct {
	Name   string
	Reason string
}

func (e *InvalidGroupByError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid group_by %q: %s", e.Name, e.Reason)
	}
	return fmt.Sprintf("unknown group_by %q", e.Name)
}

// InvalidProjectionError is returned for a projection or order alias the
// request cannot produce.
type InvalidProjectionError struct {
	Alias  string
	Reason string
}

func (e *InvalidProjectionError) Error() string {
	return fmt.Sprintf("invalid column %q: %s", e.Alias, e.Reason)
}

// InvalidRequestError covers malformed request fields such as attribution,
// date_range, limit or offset.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExecutionError wraps a failure of the underlying row execution. It is never retried.
type ExecutionError struct {
	Phase string
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("query execution failed (%s): %v", e.Phase, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsRequestError reports whether err was detected before any SQL ran and can
// be fixed by changing the request.
func IsRequestError(err error) bool {
	switch ErrorCode(err) {
	case "", CodeExecution, CodeTimeout:
		return false
	}
	return true
}

// ErrorCode maps an engine error to its API code, or "" for foreign errors.
func ErrorCode(err error) string {
	var (
		invalidFilter *InvalidFilterError
		unsupported   *UnsupportedOperatorError
		sanitization  *SanitizationError
		missing       *MissingRequirementError
		conflict      *JoinConflictError
		groupBy       *InvalidGroupByError
		projection    *InvalidProjectionError
		request       *InvalidRequestError
		execution     *ExecutionError
	)
	switch {
	case errors.As(err, &invalidFilter):
		return CodeInvalidFilter
	case errors.As(err, &unsupported):
		return CodeUnsupportedOp
	case errors.As(err, &sanitization):
		return CodeSanitization
	case errors.As(err, &missing):
		return CodeMissingRequirement
	case errors.As(err, &conflict):
		return CodeJoinConflict
	case errors.As(err, &groupBy):
		return CodeInvalidGroupBy
	case errors.As(err, &projection):
		return CodeInvalidProjection
	case errors.As(err, &request):
		return CodeInvalidRequest
	case errors.As(err, &execution):
		if errors.Is(err, context.DeadlineExceeded) {
			return CodeTimeout
		}
		return CodeExecution
	}
	return ""
}
