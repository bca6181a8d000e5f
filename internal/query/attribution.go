package query

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// attributedSessionAlias carries the winning session id from phase 1 to phase 2.
const attributedSessionAlias = "__attributed_session_id"

// attributionOrderKey is a fixed-width text key that sorts chronologically:
// "YYYY-MM-DD HH:MM:SS.SSS" (23 chars, UTC) followed by the zero-padded
// session id, which breaks ties between sessions started in the same
// millisecond.
const attributionOrderKey = "strftime('%Y-%m-%d %H:%M:%f', sessions.started_at) || printf('%020d', sessions.id)"

// attributionKeyIDOffset is the 1-based position of the id inside the key.
const attributionKeyIDOffset = 24

// attributionKey returns the phase 1 projection selecting the id of the
// first (MIN) or last (MAX) session of each group.
func attributionKey(a Attribution) Projection {
	agg := "MIN"
	if a == LastTouch {
		agg = "MAX"
	}
	return Projection{
		Expr:  fmt.Sprintf("CAST(SUBSTR(%s(%s), %d) AS INTEGER)", agg, attributionOrderKey, attributionKeyIDOffset),
		Alias: attributedSessionAlias,
	}
}

// attributionPlan is the phase 2 work of a compiled query: the attributed
// projections to resolve for the session ids phase 1 picked.
type attributionPlan struct {
	groupBy     string
	projections []Projection
}

// aliases returns the attributed aliases phase 2 fills in.
func (p *attributionPlan) aliases() []string {
	out := make([]string, len(p.projections))
	for i, proj := range p.projections {
		out[i] = proj.Alias
	}
	return out
}

// build renders the phase 2 statement for ids: one row per session with
// every attributed projection and only the joins those projections need.
func (p *attributionPlan) build(c *Catalog, ids []int64) (string, []any, error) {
	planner := NewJoinPlanner("sessions")
	cols := []string{"sessions.id AS " + attributedSessionAlias}
	for _, proj := range p.projections {
		if err := planner.Add(proj.Joins...); err != nil {
			return "", nil, err
		}
		cols = append(cols, proj.Column())
	}
	joins, err := planner.Plan()
	if err != nil {
		return "", nil, err
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	stmt := sq.Select(cols...).From(c.baseTable(BaseSessions))
	for _, j := range joins {
		stmt = stmt.JoinClause(j.Clause())
	}
	return stmt.
		Where(sq.Expr("sessions.id IN ("+placeholders+")", args...)).
		OrderBy("sessions.id").
		ToSql()
}

// merge copies the attributes of each row's winning session into the row and
// drops the temporary id column. Rows whose session cannot be resolved get
// null attributes.
func (p *attributionPlan) merge(rows []Row, resolved []Row) {
	byID := make(map[int64]Row, len(resolved))
	for _, r := range resolved {
		if id, ok := asInt64(r[attributedSessionAlias]); ok {
			byID[id] = r
		}
	}
	for _, row := range rows {
		id, ok := asInt64(row[attributedSessionAlias])
		delete(row, attributedSessionAlias)
		var source Row
		if ok {
			source = byID[id]
		}
		for _, proj := range p.projections {
			if source == nil {
				row[proj.Alias] = nil
				continue
			}
			row[proj.Alias] = source[proj.Alias]
		}
	}
}

// attributedIDs returns the distinct winning session ids of rows.
func attributedIDs(rows []Row) []int64 {
	return collectIDs(rows, attributedSessionAlias)
}
