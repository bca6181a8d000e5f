package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"webstats/internal/timeframe"
)

const (
	totalPrefix      = "__total_"
	totalGroupsAlias = totalPrefix + "groups"
)

// Options are the request defaults applied by the compiler.
type Options struct {
	DefaultLimit       int
	MaxLimit           int
	DefaultAttribution Attribution
	Location           *time.Location
	TimeProvider       timeframe.TimeProvider
}

func (o Options) withDefaults() Options {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 50
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = 1000
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	if !o.DefaultAttribution.Valid() {
		o.DefaultAttribution = FirstTouch
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// Compiler turns QueryRequests into CompiledQuery values. It holds no
// per-request state and is safe for concurrent use.
type Compiler struct {
	catalog *Catalog
	opts    Options
	parser  *timeframe.TimeFrameParser
}

func NewCompiler(catalog *Catalog, opts Options) *Compiler {
	opts = opts.withDefaults()
	return &Compiler{
		catalog: catalog,
		opts:    opts,
		parser:  timeframe.NewTimeFrameParser(opts.Location, opts.TimeProvider),
	}
}

// CompiledQuery is the fully resolved form of one request.
type CompiledQuery struct {
	Base        BaseTable
	Attribution Attribution
	TimeFrame   *timeframe.TimeFrame
	Select      []Projection
	Joins       []JoinSpec
	Where       []sq.Sqlizer
	GroupBy     []string
	OrderBy     []string
	Limit       uint64
	Offset      uint64
	// Columns lists the output aliases in display order.
	Columns []string

	catalog     *Catalog
	attribution *attributionPlan
	hooks       []Hook
	totals      []string
}

// SQL renders the phase 1 statement and its bound arguments.
func (q *CompiledQuery) SQL() (string, []any, error) {
	return q.render(q.Select, true)
}

// TotalsSQL renders the window totals of every group without the page, for
// an offset past the last group. ok is false when the query has no totals.
func (q *CompiledQuery) TotalsSQL() (sql string, args []any, ok bool, err error) {
	var cols []Projection
	for _, p := range q.Select {
		if strings.HasPrefix(p.Alias, totalPrefix) {
			cols = append(cols, p)
		}
	}
	if len(cols) == 0 {
		return "", nil, false, nil
	}
	sql, args, err = q.render(cols, false)
	return sql, args, true, err
}

func (q *CompiledQuery) render(sel []Projection, paged bool) (string, []any, error) {
	cols := make([]string, len(sel))
	for i, p := range sel {
		cols[i] = p.Column()
	}
	stmt := sq.Select(cols...).From(q.catalog.baseTable(q.Base))
	for _, j := range q.Joins {
		stmt = stmt.JoinClause(j.Clause())
	}
	if len(q.Where) > 0 {
		stmt = stmt.Where(sq.And(q.Where))
	}
	if len(q.GroupBy) > 0 {
		stmt = stmt.GroupBy(q.GroupBy...)
	}
	if !paged {
		return stmt.Limit(1).ToSql()
	}
	if len(q.OrderBy) > 0 {
		stmt = stmt.OrderBy(q.OrderBy...)
	}
	if q.Limit > 0 {
		stmt = stmt.Limit(q.Limit)
	}
	if q.Offset > 0 {
		stmt = stmt.Offset(q.Offset)
	}
	return stmt.ToSql()
}

// NeedsAttribution reports whether execution issues the phase 2 query.
func (q *CompiledQuery) NeedsAttribution() bool {
	return q.attribution != nil
}

// JoinAliases returns the planned join aliases in order.
func (q *CompiledQuery) JoinAliases() []string {
	out := make([]string, len(q.Joins))
	for i, j := range q.Joins {
		out[i] = j.Alias
	}
	return out
}

// SelectAliases returns the aliases of the phase 1 SELECT list.
func (q *CompiledQuery) SelectAliases() []string {
	out := make([]string, len(q.Select))
	for i, p := range q.Select {
		out[i] = p.Alias
	}
	return out
}

type outputKind int

const (
	outputPrimary outputKind = iota
	outputExtra
	outputAttributed
	outputHook
	outputMeasure
)

type output struct {
	kind  outputKind
	expr  string
	owner string
}

type filterClause struct {
	name   string
	filter FilterDescriptor
	pred   sq.Sqlizer
}

// Compile validates req against the catalog and builds the query. Every
// request error is detected here, before any SQL runs.
func (c *Compiler) Compile(req *QueryRequest) (*CompiledQuery, error) {
	if req == nil {
		req = &QueryRequest{}
	}

	attribution := req.Attribution
	if attribution == "" {
		attribution = c.opts.DefaultAttribution
	}
	if !attribution.Valid() {
		return nil, &InvalidRequestError{Field: "attribution", Reason: fmt.Sprintf("%q is not one of first_touch, last_touch", req.Attribution)}
	}
	limit, offset, err := c.pagination(req)
	if err != nil {
		return nil, err
	}

	groupBys, err := c.resolveGroupBys(req.GroupBy)
	if err != nil {
		return nil, err
	}
	filters, err := c.resolveFilters(req.Filters)
	if err != nil {
		return nil, err
	}

	requested := NewAliasSet()
	for _, alias := range req.Projection {
		if alias = strings.TrimSpace(alias); alias != "" {
			requested[alias] = struct{}{}
		}
	}

	base, err := c.chooseBase(filters, groupBys, requested)
	if err != nil {
		return nil, err
	}

	tf, err := c.parser.ParseTimeFrame(req.DateRange.params())
	if err != nil {
		return nil, &InvalidRequestError{Field: "date_range", Reason: err.Error()}
	}
	env := Env{Base: base, Timezone: tf.Offset()}

	outputs, err := c.indexOutputs(env, groupBys)
	if err != nil {
		return nil, err
	}
	for _, alias := range requested.Sorted() {
		if _, ok := outputs[alias]; !ok {
			return nil, &InvalidProjectionError{Alias: alias, Reason: "not produced by the requested group_by or measures"}
		}
	}

	hooks := activeHooks(groupBys, requested)

	// fetch is what phase 1 selects: the requested columns plus the primary
	// columns, the inputs of active hooks and the columns ordered by.
	fetch := NewAliasSet()
	if !requested.All() {
		for alias := range requested {
			fetch[alias] = struct{}{}
		}
		for _, g := range groupBys {
			fetch[g.Alias] = struct{}{}
		}
		for _, h := range hooks {
			for _, need := range h.Needs {
				fetch[need] = struct{}{}
			}
		}
	}

	orderBy, err := c.resolveOrder(req.Order, groupBys, outputs, fetch, base)
	if err != nil {
		return nil, err
	}

	q := &CompiledQuery{
		Base:        base,
		Attribution: attribution,
		TimeFrame:   tf,
		OrderBy:     orderBy,
		Limit:       uint64(limit),
		Offset:      uint64(offset),
		catalog:     c.catalog,
		hooks:       hooks,
	}

	planner := NewJoinPlanner(string(base))
	if base == BaseViews {
		if err := planner.Add(c.catalog.sessionBridge()); err != nil {
			return nil, err
		}
	}

	if tf.IsBounded() {
		col := base.TimestampColumn()
		q.Where = append(q.Where, sq.Expr(col+" >= ? AND "+col+" <= ?", tf.From.UTC(), tf.To.UTC()))
	}
	for _, f := range filters {
		if err := planner.Add(f.filter.Joins...); err != nil {
			return nil, err
		}
		q.Where = append(q.Where, f.pred)
	}

	selected := make(map[string]bool)
	fanOut := false
	for _, g := range groupBys {
		if err := planner.Add(g.Joins...); err != nil {
			return nil, err
		}
		for _, p := range g.SelectColumns(env, attribution, fetch) {
			if selected[p.Alias] {
				continue
			}
			if err := planner.Add(p.Joins...); err != nil {
				return nil, err
			}
			selected[p.Alias] = true
			q.Select = append(q.Select, p)
		}
		for _, expr := range g.GroupExprs(env) {
			if !containsString(q.GroupBy, expr) {
				q.GroupBy = append(q.GroupBy, expr)
			}
		}
		if g.IsRollup() && g.needsAttribution(fetch) {
			plan := &attributionPlan{groupBy: g.Name}
			for _, p := range g.Attributed {
				if fetch.Wants(p.Alias) {
					plan.projections = append(plan.projections, p)
				}
			}
			q.attribution = plan
		}
		fanOut = fanOut || g.FanOut
	}

	var measures []Measure
	for _, name := range c.catalog.Measures.Names() {
		m, _ := c.catalog.Measures.Get(name)
		expr, ok := m.Exprs[base]
		if !ok || !fetch.Wants(m.Name) {
			continue
		}
		measures = append(measures, m)
		q.Select = append(q.Select, Projection{Expr: expr, Alias: m.Name})
	}

	if len(groupBys) == 0 || !fanOut {
		for _, m := range measures {
			if m.Additive[base] {
				q.totals = append(q.totals, m.Name)
			}
		}
	}
	if len(groupBys) > 0 && !fanOut {
		for _, name := range q.totals {
			m, _ := c.catalog.Measures.Get(name)
			q.Select = append(q.Select, Projection{Expr: "SUM(" + m.Exprs[base] + ") OVER ()", Alias: totalPrefix + name})
		}
		q.Select = append(q.Select, Projection{Expr: "COUNT(*) OVER ()", Alias: totalGroupsAlias})
	}

	if q.Joins, err = planner.Plan(); err != nil {
		return nil, err
	}

	q.Columns = visibleColumns(groupBys, hooks, measures, requested)
	return q, nil
}

func (c *Compiler) pagination(req *QueryRequest) (int, int, error) {
	if req.Limit < 0 {
		return 0, 0, &InvalidRequestError{Field: "limit", Reason: "must not be negative"}
	}
	if req.Offset < 0 {
		return 0, 0, &InvalidRequestError{Field: "offset", Reason: "must not be negative"}
	}
	limit := req.Limit
	if limit == 0 {
		limit = c.opts.DefaultLimit
	}
	if limit > c.opts.MaxLimit {
		limit = c.opts.MaxLimit
	}
	return limit, req.Offset, nil
}

func (c *Compiler) resolveGroupBys(names []string) ([]GroupByDescriptor, error) {
	var (
		out    []GroupByDescriptor
		seen   = make(map[string]bool)
		rollup string
	)
	for _, name := range names {
		name = strings.TrimSpace(name)
		g, ok := c.catalog.GroupBys.Get(name)
		if !ok {
			return nil, &InvalidGroupByError{Name: name}
		}
		if seen[name] {
			return nil, &InvalidGroupByError{Name: name, Reason: "listed more than once"}
		}
		seen[name] = true
		if g.IsRollup() {
			if rollup != "" {
				return nil, &InvalidGroupByError{Name: name, Reason: fmt.Sprintf("cannot be combined with %q", rollup)}
			}
			rollup = name
		}
		out = append(out, g)
	}
	return out, nil
}

// resolveFilters translates every (filter, operator) pair in name order so
// the compiled SQL does not depend on map iteration.
func (c *Compiler) resolveFilters(raw map[string]map[string]any) ([]filterClause, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []filterClause
	for _, name := range names {
		f, ok := c.catalog.Filters.Get(name)
		if !ok {
			return nil, &InvalidFilterError{Name: name}
		}

		ops := make([]string, 0, len(raw[name]))
		for op := range raw[name] {
			ops = append(ops, op)
		}
		sort.Strings(ops)

		for _, rawOp := range ops {
			op, known := ParseOperator(rawOp)
			if !known || !f.Supports(op) {
				return nil, &UnsupportedOperatorError{Filter: name, Operator: rawOp, Supported: f.Operators}
			}
			pred, err := TranslateOperator(f.Column, f.Type, op, raw[name][rawOp])
			if err != nil {
				return nil, withFilter(err, name, f.Operators)
			}
			out = append(out, filterClause{name: name, filter: f, pred: pred})
		}
	}
	return out, nil
}

func withFilter(err error, name string, supported []Operator) error {
	switch e := err.(type) {
	case *SanitizationError:
		e.Filter = name
	case *UnsupportedOperatorError:
		e.Filter = name
		e.Supported = supported
	}
	return err
}

// chooseBase picks the unique base table required by the active filters,
// group-bys and explicitly requested measures. Nothing required means sessions.
func (c *Compiler) chooseBase(filters []filterClause, groupBys []GroupByDescriptor, requested AliasSet) (BaseTable, error) {
	reqs := make(map[BaseTable][]string)
	note := func(base BaseTable, what string) {
		if base == "" || containsString(reqs[base], what) {
			return
		}
		reqs[base] = append(reqs[base], what)
	}
	for _, f := range filters {
		note(f.filter.Requires, "filter "+f.name)
	}
	for _, g := range groupBys {
		note(g.Requires, "group_by "+g.Name)
	}
	for _, alias := range requested.Sorted() {
		if m, ok := c.catalog.Measures.Get(alias); ok {
			note(m.Requires(), "measure "+m.Name)
		}
	}

	switch len(reqs) {
	case 0:
		return BaseSessions, nil
	case 1:
		for base := range reqs {
			return base, nil
		}
	}
	return "", &MissingRequirementError{Requirements: reqs}
}

// indexOutputs maps every alias the request could produce to its origin.
// Two dimensions may share an alias only for the same expression.
func (c *Compiler) indexOutputs(env Env, groupBys []GroupByDescriptor) (map[string]output, error) {
	outputs := make(map[string]output)
	claim := func(owner, alias string, o output) error {
		o.owner = owner
		if prev, ok := outputs[alias]; ok {
			shareable := prev.kind <= outputExtra && o.kind <= outputExtra && prev.expr == o.expr
			if !shareable && !(prev.kind == outputHook && o.kind == outputHook && prev.expr == o.expr) {
				return &InvalidGroupByError{Name: owner, Reason: fmt.Sprintf("column %q collides with %s", alias, prev.owner)}
			}
			return nil
		}
		outputs[alias] = o
		return nil
	}

	for _, g := range groupBys {
		if err := claim(g.Name, g.Alias, output{kind: outputPrimary, expr: g.Primary(env).Expr}); err != nil {
			return nil, err
		}
		for _, p := range g.Extras {
			if err := claim(g.Name, p.Alias, output{kind: outputExtra, expr: p.Expr}); err != nil {
				return nil, err
			}
		}
		for _, p := range g.Attributed {
			if err := claim(g.Name, p.Alias, output{kind: outputAttributed, expr: p.Expr}); err != nil {
				return nil, err
			}
		}
		for _, h := range g.Hooks {
			for _, out := range h.Outputs {
				// hooks are identified by name; the same hook may serve several dimensions
				if err := claim(g.Name, out, output{kind: outputHook, expr: h.Name}); err != nil {
					return nil, err
				}
			}
		}
	}
	for _, name := range c.catalog.Measures.Names() {
		m, _ := c.catalog.Measures.Get(name)
		expr, ok := m.Exprs[env.Base]
		if !ok {
			continue
		}
		if err := claim("measure "+name, name, output{kind: outputMeasure, expr: expr}); err != nil {
			return nil, err
		}
	}
	return outputs, nil
}

// resolveOrder maps order terms to SQL. Terms may name a dimension column or
// a measure; anything else is rejected so no caller text reaches the SQL.
// Dimension columns used for ordering are added to fetch.
func (c *Compiler) resolveOrder(terms []OrderTerm, groupBys []GroupByDescriptor, outputs map[string]output, fetch AliasSet, base BaseTable) ([]string, error) {
	// One aggregate row needs no ordering, but the terms must still name columns.
	if len(groupBys) == 0 {
		for _, term := range terms {
			by := strings.TrimSpace(term.By)
			if _, ok := outputs[by]; !ok {
				return nil, &InvalidProjectionError{Alias: by, Reason: "cannot order by an unknown column"}
			}
		}
		return nil, nil
	}
	if len(terms) == 0 {
		terms = groupBys[0].Order
	}

	var (
		out  []string
		used = make(map[string]bool)
	)
	for _, term := range terms {
		by := strings.TrimSpace(term.By)
		if used[by] {
			continue
		}
		o, ok := outputs[by]
		if !ok {
			return nil, &InvalidProjectionError{Alias: by, Reason: "cannot order by an unknown column"}
		}

		var key string
		switch o.kind {
		case outputPrimary, outputExtra:
			if !fetch.All() {
				fetch[by] = struct{}{}
			}
			key = by
		case outputMeasure:
			key = by
			if !fetch.Wants(by) {
				m, _ := c.catalog.Measures.Get(by)
				key = m.Exprs[base]
			}
		default:
			return nil, &InvalidProjectionError{Alias: by, Reason: "attributed and enrichment columns cannot be ordered by"}
		}

		dir := "ASC"
		if term.Desc {
			dir = "DESC"
		}
		used[by] = true
		out = append(out, key+" "+dir)
	}

	for _, g := range groupBys {
		if !used[g.Alias] {
			used[g.Alias] = true
			out = append(out, g.Alias+" ASC")
		}
	}
	return out, nil
}

// activeHooks returns the hooks with at least one requested output, once per name.
func activeHooks(groupBys []GroupByDescriptor, requested AliasSet) []Hook {
	var (
		out  []Hook
		seen = make(map[string]bool)
	)
	for _, g := range groupBys {
		for _, h := range g.Hooks {
			if seen[h.Name] {
				continue
			}
			for _, alias := range h.Outputs {
				if requested.Wants(alias) {
					seen[h.Name] = true
					out = append(out, h)
					break
				}
			}
		}
	}
	return out
}

func visibleColumns(groupBys []GroupByDescriptor, hooks []Hook, measures []Measure, requested AliasSet) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(alias string) {
		if !seen[alias] {
			seen[alias] = true
			out = append(out, alias)
		}
	}
	active := make(map[string]bool, len(hooks))
	for _, h := range hooks {
		active[h.Name] = true
	}

	for _, g := range groupBys {
		add(g.Alias)
		for _, p := range g.Extras {
			if requested.Wants(p.Alias) {
				add(p.Alias)
			}
		}
		for _, p := range g.Attributed {
			if requested.Wants(p.Alias) {
				add(p.Alias)
			}
		}
		for _, h := range g.Hooks {
			if !active[h.Name] {
				continue
			}
			for _, alias := range h.Outputs {
				if requested.Wants(alias) {
					add(alias)
				}
			}
		}
	}
	for _, m := range measures {
		if requested.Wants(m.Name) {
			add(m.Name)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
