package query

import (
	"fmt"

	"webstats/internal/schema"
)

// Registry is an insertion-ordered map of immutable descriptor values.
type Registry[T any] struct {
	names []string
	items map[string]T
}

func newRegistry[T any]() *Registry[T] {
	return &Registry[T]{items: make(map[string]T)}
}

func (r *Registry[T]) add(name string, item T) {
	if _, dup := r.items[name]; dup {
		panic(fmt.Sprintf("query: duplicate catalog entry %q", name))
	}
	r.names = append(r.names, name)
	r.items[name] = item
}

// Get returns the entry registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	item, ok := r.items[name]
	return item, ok
}

// Names returns the registered names in registration order.
func (r *Registry[T]) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of entries.
func (r *Registry[T]) Len() int {
	return len(r.names)
}

// Catalog is the static set of filters, group-bys and measures. It is built
// once at startup and only read afterwards, so concurrent requests share it
// without locking.
type Catalog struct {
	Filters  *Registry[FilterDescriptor]
	GroupBys *Registry[GroupByDescriptor]
	Measures *Registry[Measure]
	tables   schema.Tables
}

// NewCatalog builds the default catalog against the given physical table names.
func NewCatalog(tables schema.Tables) *Catalog {
	c := &Catalog{
		Filters:  newRegistry[FilterDescriptor](),
		GroupBys: newRegistry[GroupByDescriptor](),
		Measures: newRegistry[Measure](),
		tables:   tables,
	}

	j := newJoinBook(tables)
	for _, f := range sessionFilters(j) {
		c.Filters.add(f.Name, f)
	}
	for _, f := range viewFilters(j) {
		c.Filters.add(f.Name, f)
	}
	for _, g := range sessionGroupBys(j) {
		c.GroupBys.add(g.Name, g)
	}
	for _, g := range viewGroupBys(j) {
		c.GroupBys.add(g.Name, g)
	}
	for _, m := range defaultMeasures() {
		c.Measures.add(m.Name, m)
	}
	return c
}

// Tables returns the resolver the catalog was built with.
func (c *Catalog) Tables() schema.Tables {
	return c.tables
}

// baseTable returns the physical FROM clause for a base.
func (c *Catalog) baseTable(base BaseTable) string {
	if base == BaseViews {
		return c.tables.Name(schema.Views) + " AS views"
	}
	return c.tables.Name(schema.Sessions) + " AS sessions"
}

// sessionBridge joins the session of each view when views is the base, so
// session-level descriptors stay valid on either base.
func (c *Catalog) sessionBridge() JoinSpec {
	return JoinSpec{
		Table: c.tables.Name(schema.Sessions),
		Alias: "sessions",
		On:    "sessions.id = views.session_id",
		Type:  InnerJoin,
	}
}

// FilterInfo describes a filter for API discovery.
type FilterInfo struct {
	Name        string     `json:"name"`
	Type        ValueType  `json:"type"`
	Operators   []Operator `json:"operators"`
	Requires    BaseTable  `json:"requires,omitempty"`
	Description string     `json:"description,omitempty"`
}

// GroupByInfo describes a group-by for API discovery.
type GroupByInfo struct {
	Name        string    `json:"name"`
	Alias       string    `json:"alias"`
	Columns     []string  `json:"columns"`
	Attributed  []string  `json:"attributed,omitempty"`
	Requires    BaseTable `json:"requires,omitempty"`
	Description string    `json:"description,omitempty"`
}

// MeasureInfo describes a measure for API discovery.
type MeasureInfo struct {
	Name        string      `json:"name"`
	Bases       []BaseTable `json:"bases"`
	Description string      `json:"description,omitempty"`
}

// Description lists the catalog for API discovery.
type Description struct {
	Filters  []FilterInfo  `json:"filters"`
	GroupBys []GroupByInfo `json:"group_bys"`
	Measures []MeasureInfo `json:"measures"`
}

// Describe returns a serializable summary of every catalog entry.
func (c *Catalog) Describe() Description {
	var d Description
	for _, name := range c.Filters.Names() {
		f, _ := c.Filters.Get(name)
		d.Filters = append(d.Filters, FilterInfo{
			Name:        f.Name,
			Type:        f.Type,
			Operators:   f.Operators,
			Requires:    f.Requires,
			Description: f.Description,
		})
	}
	for _, name := range c.GroupBys.Names() {
		g, _ := c.GroupBys.Get(name)
		info := GroupByInfo{
			Name:        g.Name,
			Alias:       g.Alias,
			Columns:     g.OutputAliases(),
			Requires:    g.Requires,
			Description: g.Description,
		}
		for _, p := range g.Attributed {
			info.Attributed = append(info.Attributed, p.Alias)
		}
		d.GroupBys = append(d.GroupBys, info)
	}
	for _, name := range c.Measures.Names() {
		m, _ := c.Measures.Get(name)
		info := MeasureInfo{Name: m.Name, Description: m.Description}
		for _, base := range []BaseTable{BaseSessions, BaseViews} {
			if _, ok := m.Exprs[base]; ok {
				info.Bases = append(info.Bases, base)
			}
		}
		d.Measures = append(d.Measures, info)
	}
	return d
}
