package query

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateOperator(t *testing.T) {
	tests := []struct {
		name     string
		vt       ValueType
		op       Operator
		value    any
		wantSQL  string
		wantArgs []any
	}{
		{"is string", TypeString, OpIs, "DE", "c = ?", []any{"DE"}},
		{"is_not keeps nulls", TypeString, OpIsNot, "DE", "(c <> ? OR c IS NULL)", []any{"DE"}},
		{"in list", TypeString, OpIn, []any{"DE", "FR"}, "c IN (?, ?)", []any{"DE", "FR"}},
		{"in scalar", TypeString, OpIn, "DE", "c IN (?)", []any{"DE"}},
		{"not_in keeps nulls", TypeString, OpNotIn, []string{"DE"}, "(c NOT IN (?) OR c IS NULL)", []any{"DE"}},
		{"empty in matches nothing", TypeString, OpIn, []any{}, "1 = 0", nil},
		{"empty not_in matches everything", TypeString, OpNotIn, []any{}, "1 = 1", nil},
		{"contains", TypeString, OpContains, "blog", `c LIKE ? ESCAPE '\'`, []any{"%blog%"}},
		{"starts_with", TypeString, OpStartsWith, "/blog", `c LIKE ? ESCAPE '\'`, []any{"/blog%"}},
		{"ends_with", TypeString, OpEndsWith, ".pdf", `c LIKE ? ESCAPE '\'`, []any{"%.pdf"}},
		{"like wildcards are escaped", TypeString, OpContains, `50%_off\`, `c LIKE ? ESCAPE '\'`, []any{`%50\%\_off\\%`}},
		{"integer from json number", TypeInteger, OpGt, json.Number("42"), "c > ?", []any{int64(42)}},
		{"integer from string", TypeInteger, OpLte, "7", "c <= ?", []any{int64(7)}},
		{"integer in", TypeInteger, OpIn, []any{1, float64(2)}, "c IN (?, ?)", []any{int64(1), int64(2)}},
		{"between integers", TypeInteger, OpBetween, []any{1, 5}, "c BETWEEN ? AND ?", []any{int64(1), int64(5)}},
		{"boolean true", TypeBoolean, OpIs, true, "c = ?", []any{int64(1)}},
		{"boolean from string", TypeBoolean, OpIs, "no", "c = ?", []any{int64(0)}},
		{"numeric string value", TypeString, OpIs, float64(12), "c = ?", []any{"12"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := TranslateOperator("c", tt.vt, tt.op, tt.value)
			require.NoError(t, err)

			sql, args, err := pred.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestTranslateOperatorDates(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)
	instant := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		op       Operator
		value    any
		wantSQL  string
		wantArgs []time.Time
	}{
		{"is date covers the whole day", OpIs, "2024-03-01", "(c >= ? AND c < ?)", []time.Time{day, next}},
		{"is_not date excludes the day", OpIsNot, "2024-03-01", "(c < ? OR c >= ? OR c IS NULL)", []time.Time{day, next}},
		{"is instant", OpIs, "2024-03-01T10:30:00Z", "c = ?", []time.Time{instant}},
		{"offset instants are normalized to UTC", OpIs, "2024-03-01T12:30:00+02:00", "c = ?", []time.Time{instant}},
		{"before", OpBefore, "2024-03-01", "c < ?", []time.Time{day}},
		{"after date starts the next day", OpAfter, "2024-03-01", "c >= ?", []time.Time{next}},
		{"lte date includes the day", OpLte, "2024-03-01", "c < ?", []time.Time{next}},
		{"gte", OpGte, "2024-03-01", "c >= ?", []time.Time{day}},
		{"between dates is inclusive of the last day", OpBetween, []any{"2024-02-01", "2024-03-01"}, "(c >= ? AND c < ?)",
			[]time.Time{time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), next}},
		{"between instants", OpBetween, []any{"2024-03-01T00:00:00Z", "2024-03-01T10:30:00Z"}, "(c >= ? AND c <= ?)",
			[]time.Time{day, instant}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pred, err := TranslateOperator("c", TypeDate, tt.op, tt.value)
			require.NoError(t, err)

			sql, args, err := pred.ToSql()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			require.Len(t, args, len(tt.wantArgs))
			for i, want := range tt.wantArgs {
				got, ok := args[i].(time.Time)
				require.True(t, ok, "arg %d is %T", i, args[i])
				assert.True(t, want.Equal(got), "arg %d: want %s, got %s", i, want, got)
			}
		})
	}
}

func TestTranslateOperatorErrors(t *testing.T) {
	tests := []struct {
		name  string
		vt    ValueType
		op    Operator
		value any
		code  string
	}{
		{"integer from text", TypeInteger, OpIs, "abc", CodeSanitization},
		{"fractional integer", TypeInteger, OpGt, 1.5, CodeSanitization},
		{"integer at 2^63", TypeInteger, OpGt, float64(1 << 63), CodeSanitization},
		{"integer past 2^63", TypeInteger, OpGt, 1e19, CodeSanitization},
		{"nil value", TypeString, OpIs, nil, CodeSanitization},
		{"nul byte", TypeString, OpIs, "a\x00b", CodeSanitization},
		{"object for a list", TypeString, OpIn, map[string]any{"a": 1}, CodeSanitization},
		{"bad item in list", TypeInteger, OpIn, []any{1, "x"}, CodeSanitization},
		{"between with one bound", TypeInteger, OpBetween, []any{1}, CodeSanitization},
		{"between reversed", TypeInteger, OpBetween, []any{9, 1}, CodeSanitization},
		{"between dates reversed", TypeDate, OpBetween, []any{"2024-03-02", "2024-03-01"}, CodeSanitization},
		{"malformed date", TypeDate, OpIs, "03/01/2024", CodeSanitization},
		{"boolean out of range", TypeBoolean, OpIs, 2, CodeSanitization},
		{"like on integers", TypeInteger, OpContains, "1", CodeUnsupportedOp},
		{"between on strings", TypeString, OpBetween, []any{"a", "b"}, CodeUnsupportedOp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TranslateOperator("c", tt.vt, tt.op, tt.value)
			require.Error(t, err)
			assert.Equal(t, tt.code, ErrorCode(err))
			assert.True(t, IsRequestError(err))
		})
	}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
		ok   bool
	}{
		{"is", OpIs, true},
		{" NOT_IN ", OpNotIn, true},
		{"equals", OpIs, true},
		{"not_equals", OpIsNot, true},
		{"greater_than_or_equal", OpGte, true},
		{"like", Operator("like"), false},
		{"", Operator(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			op, ok := ParseOperator(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, op)
		})
	}
}
