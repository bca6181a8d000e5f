// Package query implements the analytics query engine: a catalog of filter
// and group-by descriptors, the operator translator, the join planner, the
// compiler that assembles one SQL statement per request, and the executor
// that runs it, resolves attribution and enriches the rows.
package query

import (
	"sort"
	"strings"
)

// ValueType is the type a filter value is coerced to before binding.
type ValueType string

const (
	TypeString  ValueType = "string"
	TypeInteger ValueType = "integer"
	TypeBoolean ValueType = "boolean"
	TypeDate    ValueType = "date"
)

// Operator is one comparison of the fixed filter vocabulary.
type Operator string

const (
	OpIs         Operator = "is"
	OpIsNot      Operator = "is_not"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpBetween    Operator = "between"
	OpBefore     Operator = "before"
	OpAfter      Operator = "after"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
)

var operatorAliases = map[string]Operator{
	"equals":                OpIs,
	"eq":                    OpIs,
	"not_equals":            OpIsNot,
	"ne":                    OpIsNot,
	"greater_than":          OpGt,
	"greater_than_or_equal": OpGte,
	"less_than":             OpLt,
	"less_than_or_equal":    OpLte,
}

var allOperators = map[Operator]bool{
	OpIs: true, OpIsNot: true, OpIn: true, OpNotIn: true,
	OpContains: true, OpStartsWith: true, OpEndsWith: true,
	OpBetween: true, OpBefore: true, OpAfter: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
}

// ParseOperator normalizes an operator name, accepting the long-form aliases.
// The second result is false for names outside the vocabulary.
func ParseOperator(name string) (Operator, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if op, ok := operatorAliases[name]; ok {
		return op, true
	}
	op := Operator(name)
	return op, allOperators[op]
}

// Operator sets shared by the catalog.
var (
	StringOperators  = []Operator{OpIs, OpIsNot, OpIn, OpNotIn, OpContains, OpStartsWith, OpEndsWith}
	EnumOperators    = []Operator{OpIs, OpIsNot, OpIn, OpNotIn}
	IntegerOperators = []Operator{OpIs, OpIsNot, OpIn, OpNotIn, OpBetween, OpGt, OpGte, OpLt, OpLte}
	BooleanOperators = []Operator{OpIs, OpIsNot}
	DateOperators    = []Operator{OpIs, OpIsNot, OpBetween, OpBefore, OpAfter, OpGt, OpGte, OpLt, OpLte}
)

// Attribution selects which session represents a rolled-up visitor.
type Attribution string

const (
	FirstTouch Attribution = "first_touch"
	LastTouch  Attribution = "last_touch"
)

// Valid reports whether a is a known attribution model.
func (a Attribution) Valid() bool {
	return a == FirstTouch || a == LastTouch
}

// BaseTable is the table in the FROM clause of a compiled query.
type BaseTable string

const (
	BaseSessions BaseTable = "sessions"
	BaseViews    BaseTable = "views"
)

// TimestampColumn is the column date ranges and date buckets are evaluated on.
func (b BaseTable) TimestampColumn() string {
	if b == BaseViews {
		return "views.viewed_at"
	}
	return "sessions.started_at"
}

// JoinType is INNER or LEFT.
type JoinType string

const (
	InnerJoin JoinType = "INNER"
	LeftJoin  JoinType = "LEFT"
)

// JoinSpec is one join a descriptor needs. Table is the physical table name;
// Alias is the name every expression uses to reference it.
type JoinSpec struct {
	Table    string
	Alias    string
	On       string
	Type     JoinType
	External bool
}

// Clause renders the join for the FROM clause.
func (j JoinSpec) Clause() string {
	kind := j.Type
	if kind == "" {
		kind = LeftJoin
	}
	return string(kind) + " JOIN " + j.Table + " AS " + j.Alias + " ON " + j.On
}

// Projection is one selected expression and the alias it produces. Joins are
// only planned when the projection survives narrowing.
type Projection struct {
	Expr  string
	Alias string
	Joins []JoinSpec
}

// Column renders "expr AS alias".
func (p Projection) Column() string {
	return p.Expr + " AS " + p.Alias
}

// OrderTerm sorts by a selected alias or a measure name.
type OrderTerm struct {
	By   string `json:"by" yaml:"by"`
	Desc bool   `json:"desc,omitempty" yaml:"desc,omitempty"`
}

// Row is one result row keyed by output alias.
type Row map[string]any

// AliasSet is a set of requested output aliases. An empty set means "all".
type AliasSet map[string]struct{}

// NewAliasSet builds a set from a list of aliases.
func NewAliasSet(aliases ...string) AliasSet {
	s := make(AliasSet, len(aliases))
	for _, a := range aliases {
		s[a] = struct{}{}
	}
	return s
}

// All reports whether the set requests every column.
func (s AliasSet) All() bool {
	return len(s) == 0
}

// Wants reports whether alias was requested; everything is wanted when the set is empty.
func (s AliasSet) Wants(alias string) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[alias]
	return ok
}

// Has reports explicit membership.
func (s AliasSet) Has(alias string) bool {
	_, ok := s[alias]
	return ok
}

// Sorted returns the members in lexical order.
func (s AliasSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
