package query

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// TranslateOperator turns one (column, operator, value) triple into a
// parameter-bound predicate. Values are coerced according to vt; nothing is
// ever concatenated into the SQL text except the column expression, which
// comes from the catalog.
func TranslateOperator(column string, vt ValueType, op Operator, raw any) (sq.Sqlizer, error) {
	switch op {
	case OpIn, OpNotIn:
		return translateSet(column, vt, op, raw)
	case OpBetween:
		return translateBetween(column, vt, raw)
	case OpContains, OpStartsWith, OpEndsWith:
		if vt != TypeString {
			return nil, &UnsupportedOperatorError{Operator: string(op), Supported: operatorsFor(vt)}
		}
		s, err := sanitizeString(raw)
		if err != nil {
			return nil, sanitizationFailure(op, raw, err)
		}
		return sq.Expr(column+` LIKE ? ESCAPE '\'`, likePattern(op, s)), nil
	}

	if vt == TypeDate {
		return translateDate(column, op, raw)
	}

	v, err := sanitizeScalar(vt, raw)
	if err != nil {
		return nil, sanitizationFailure(op, raw, err)
	}

	switch op {
	case OpIs:
		return sq.Expr(column+" = ?", v), nil
	case OpIsNot:
		return sq.Expr("("+column+" <> ? OR "+column+" IS NULL)", v), nil
	case OpGt, OpAfter:
		return sq.Expr(column+" > ?", v), nil
	case OpGte:
		return sq.Expr(column+" >= ?", v), nil
	case OpLt, OpBefore:
		return sq.Expr(column+" < ?", v), nil
	case OpLte:
		return sq.Expr(column+" <= ?", v), nil
	}
	return nil, &UnsupportedOperatorError{Operator: string(op), Supported: operatorsFor(vt)}
}

func operatorsFor(vt ValueType) []Operator {
	switch vt {
	case TypeInteger:
		return IntegerOperators
	case TypeBoolean:
		return BooleanOperators
	case TypeDate:
		return DateOperators
	default:
		return StringOperators
	}
}

func sanitizationFailure(op Operator, raw any, err error) error {
	return &SanitizationError{Operator: op, Value: raw, Reason: err.Error()}
}

func translateSet(column string, vt ValueType, op Operator, raw any) (sq.Sqlizer, error) {
	items, err := asList(raw)
	if err != nil {
		return nil, sanitizationFailure(op, raw, err)
	}

	// An empty set is a well-defined constant predicate, never "IN ()".
	if len(items) == 0 {
		if op == OpIn {
			return sq.Expr("1 = 0"), nil
		}
		return sq.Expr("1 = 1"), nil
	}

	args := make([]any, 0, len(items))
	for _, item := range items {
		v, err := sanitizeScalar(vt, item)
		if err != nil {
			return nil, sanitizationFailure(op, item, err)
		}
		args = append(args, v)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	if op == OpIn {
		return sq.Expr(column+" IN ("+placeholders+")", args...), nil
	}
	return sq.Expr("("+column+" NOT IN ("+placeholders+") OR "+column+" IS NULL)", args...), nil
}

func translateBetween(column string, vt ValueType, raw any) (sq.Sqlizer, error) {
	items, err := asList(raw)
	if err != nil {
		return nil, sanitizationFailure(OpBetween, raw, err)
	}
	if len(items) != 2 {
		return nil, sanitizationFailure(OpBetween, raw, fmt.Errorf("between requires exactly two bounds, got %d", len(items)))
	}

	switch vt {
	case TypeInteger:
		lo, err := sanitizeInteger(items[0])
		if err != nil {
			return nil, sanitizationFailure(OpBetween, items[0], err)
		}
		hi, err := sanitizeInteger(items[1])
		if err != nil {
			return nil, sanitizationFailure(OpBetween, items[1], err)
		}
		if lo > hi {
			return nil, sanitizationFailure(OpBetween, raw, fmt.Errorf("lower bound %d is greater than upper bound %d", lo, hi))
		}
		return sq.Expr(column+" BETWEEN ? AND ?", lo, hi), nil
	case TypeDate:
		lo, err := sanitizeDate(items[0])
		if err != nil {
			return nil, sanitizationFailure(OpBetween, items[0], err)
		}
		hi, err := sanitizeDate(items[1])
		if err != nil {
			return nil, sanitizationFailure(OpBetween, items[1], err)
		}
		if lo.start().After(hi.start()) {
			return nil, sanitizationFailure(OpBetween, raw, fmt.Errorf("lower bound is after upper bound"))
		}
		if hi.dateOnly {
			return sq.Expr("("+column+" >= ? AND "+column+" < ?)", lo.start(), hi.end()), nil
		}
		return sq.Expr("("+column+" >= ? AND "+column+" <= ?)", lo.start(), hi.t), nil
	}
	return nil, &UnsupportedOperatorError{Operator: string(OpBetween), Supported: operatorsFor(vt)}
}

func translateDate(column string, op Operator, raw any) (sq.Sqlizer, error) {
	d, err := sanitizeDate(raw)
	if err != nil {
		return nil, sanitizationFailure(op, raw, err)
	}

	// A date without a time of day means the whole UTC day.
	switch op {
	case OpIs:
		if d.dateOnly {
			return sq.Expr("("+column+" >= ? AND "+column+" < ?)", d.start(), d.end()), nil
		}
		return sq.Expr(column+" = ?", d.t), nil
	case OpIsNot:
		if d.dateOnly {
			return sq.Expr("("+column+" < ? OR "+column+" >= ? OR "+column+" IS NULL)", d.start(), d.end()), nil
		}
		return sq.Expr("("+column+" <> ? OR "+column+" IS NULL)", d.t), nil
	case OpBefore, OpLt:
		return sq.Expr(column+" < ?", d.start()), nil
	case OpLte:
		if d.dateOnly {
			return sq.Expr(column+" < ?", d.end()), nil
		}
		return sq.Expr(column+" <= ?", d.t), nil
	case OpAfter, OpGt:
		if d.dateOnly {
			return sq.Expr(column+" >= ?", d.end()), nil
		}
		return sq.Expr(column+" > ?", d.t), nil
	case OpGte:
		return sq.Expr(column+" >= ?", d.start()), nil
	}
	return nil, &UnsupportedOperatorError{Operator: string(op), Supported: DateOperators}
}

func likePattern(op Operator, s string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	switch op {
	case OpStartsWith:
		return escaped + "%"
	case OpEndsWith:
		return "%" + escaped
	default:
		return "%" + escaped + "%"
	}
}

func asList(raw any) ([]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("a list of values is required")
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []int64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, nil
	case map[string]any:
		return nil, fmt.Errorf("expected a list, got an object")
	default:
		return []any{v}, nil
	}
}

func sanitizeScalar(vt ValueType, raw any) (any, error) {
	switch vt {
	case TypeInteger:
		return sanitizeInteger(raw)
	case TypeBoolean:
		return sanitizeBoolean(raw)
	case TypeDate:
		d, err := sanitizeDate(raw)
		if err != nil {
			return nil, err
		}
		return d.t, nil
	default:
		return sanitizeString(raw)
	}
}

func sanitizeString(raw any) (string, error) {
	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case json.Number:
		s = v.String()
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			s = strconv.FormatFloat(v, 'f', -1, 64)
		} else {
			s = strconv.FormatInt(int64(v), 10)
		}
	case nil:
		return "", fmt.Errorf("value is required")
	default:
		return "", fmt.Errorf("expected a string, got %T", raw)
	}
	if strings.ContainsRune(s, 0) {
		return "", fmt.Errorf("string contains a NUL byte")
	}
	return s, nil
}

func sanitizeInteger(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer out of range")
		}
		return int64(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, fmt.Errorf("expected an integer, got %v", v)
		}
		// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
		if v >= math.MaxInt64 || v < math.MinInt64 {
			return 0, fmt.Errorf("integer out of range")
		}
		return int64(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", v.String())
		}
		return n, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", v)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("value is required")
	}
	return 0, fmt.Errorf("expected an integer, got %T", raw)
}

func sanitizeBoolean(raw any) (int64, error) {
	switch v := raw.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return 1, nil
		case "false", "0", "no":
			return 0, nil
		}
		return 0, fmt.Errorf("expected a boolean, got %q", v)
	case nil:
		return 0, fmt.Errorf("value is required")
	}
	n, err := sanitizeInteger(raw)
	if err != nil || (n != 0 && n != 1) {
		return 0, fmt.Errorf("expected a boolean, got %v", raw)
	}
	return n, nil
}

type dateValue struct {
	t        time.Time
	dateOnly bool
}

func (d dateValue) start() time.Time {
	return d.t
}

// end is the exclusive upper bound of a date-only value.
func (d dateValue) end() time.Time {
	if d.dateOnly {
		return d.t.AddDate(0, 0, 1)
	}
	return d.t
}

func sanitizeDate(raw any) (dateValue, error) {
	switch v := raw.(type) {
	case time.Time:
		return dateValue{t: v.UTC()}, nil
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return dateValue{t: t.UTC(), dateOnly: true}, nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return dateValue{t: t.UTC()}, nil
		}
		if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
			return dateValue{t: t.UTC()}, nil
		}
		return dateValue{}, fmt.Errorf("expected a date (YYYY-MM-DD or RFC3339), got %q", v)
	case nil:
		return dateValue{}, fmt.Errorf("value is required")
	}
	return dateValue{}, fmt.Errorf("expected a date string, got %T", raw)
}
