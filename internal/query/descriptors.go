package query

import (
	"context"

	"webstats/internal/timeframe"
)

// FilterDescriptor declares one queryable predicate. Column may be a bare
// column reference or a computed expression such as a correlated subquery;
// the rest of the pipeline treats both the same way.
type FilterDescriptor struct {
	Name        string
	Column      string
	Type        ValueType
	Operators   []Operator
	Joins       []JoinSpec
	Requires    BaseTable
	Description string
}

// Supports reports whether op is in the filter's operator set.
func (f FilterDescriptor) Supports(op Operator) bool {
	for _, o := range f.Operators {
		if o == op {
			return true
		}
	}
	return false
}

// Hook is a post-aggregation enrichment step. It only runs when one of its
// Outputs is requested; the aliases in Needs are fetched for it even when the
// caller did not ask for them and are stripped again afterwards.
type Hook struct {
	Name    string
	Outputs []string
	Needs   []string
	Run     func(ctx context.Context, lookups Lookups, rows []Row) error
}

// GroupByDescriptor declares one aggregation dimension.
type GroupByDescriptor struct {
	Name        string
	Column      string
	Alias       string
	Group       []string
	Bucket      timeframe.TimeFrameBucketSize
	Extras      []Projection
	Joins       []JoinSpec
	Attributed  []Projection
	Order       []OrderTerm
	Requires    BaseTable
	Hooks       []Hook
	// FanOut marks dimensions whose joins can place one base row in several
	// groups. Per-group measures stay correct but do not sum to a total.
	FanOut      bool
	Description string
}

// Primary returns the grouping projection. Date dimensions render their bucket
// expression against the base table's timestamp in the request's timezone.
func (g GroupByDescriptor) Primary(env Env) Projection {
	if g.Bucket != "" {
		return Projection{Expr: env.bucket(g.Bucket), Alias: g.Alias}
	}
	return Projection{Expr: g.Column, Alias: g.Alias}
}

// GroupExprs returns the GROUP BY expressions.
func (g GroupByDescriptor) GroupExprs(env Env) []string {
	if g.Bucket != "" {
		return []string{env.bucket(g.Bucket)}
	}
	if len(g.Group) > 0 {
		return g.Group
	}
	return []string{g.Column}
}

// SelectColumns returns the primary projection plus every extra projection
// whose alias was requested. Rollups add the attributed session id column when
// any attributed alias is needed.
func (g GroupByDescriptor) SelectColumns(env Env, attribution Attribution, requested AliasSet) []Projection {
	cols := []Projection{g.Primary(env)}
	for _, extra := range g.Extras {
		if requested.Wants(extra.Alias) {
			cols = append(cols, extra)
		}
	}
	if g.needsAttribution(requested) {
		cols = append(cols, attributionKey(attribution))
	}
	return cols
}

// IsRollup reports whether the dimension aggregates many sessions into one
// entity whose attributes depend on the attribution model.
func (g GroupByDescriptor) IsRollup() bool {
	return len(g.Attributed) > 0
}

func (g GroupByDescriptor) needsAttribution(requested AliasSet) bool {
	for _, p := range g.Attributed {
		if requested.Wants(p.Alias) {
			return true
		}
	}
	return false
}

// OutputAliases lists every alias the dimension can produce, in display order.
func (g GroupByDescriptor) OutputAliases() []string {
	out := []string{g.Alias}
	for _, p := range g.Extras {
		out = append(out, p.Alias)
	}
	for _, p := range g.Attributed {
		out = append(out, p.Alias)
	}
	for _, h := range g.Hooks {
		out = append(out, h.Outputs...)
	}
	return out
}

// Measure is an aggregate over the base table. Measures are independent of
// the attribution model.
type Measure struct {
	Name        string
	Exprs       map[BaseTable]string
	Additive    map[BaseTable]bool
	Description string
}

// Requires returns the only base table the measure is defined for, or "" when
// it is available on every base.
func (m Measure) Requires() BaseTable {
	if len(m.Exprs) == 1 {
		for base := range m.Exprs {
			return base
		}
	}
	return ""
}

// Env carries the per-request settings descriptors render against.
type Env struct {
	Base     BaseTable
	Timezone timeframe.Offset
}

func (e Env) bucket(size timeframe.TimeFrameBucketSize) string {
	expr, err := timeframe.BucketExpression(e.Base.TimestampColumn(), size, e.Timezone)
	if err != nil {
		// catalog construction only uses known bucket sizes
		panic(err)
	}
	return expr
}
