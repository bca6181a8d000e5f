package query

import (
	"fmt"
	"regexp"
	"strings"
)

// aliasRef matches "alias." references inside an ON condition.
var aliasRef = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.[A-Za-z_]`)

// quoted strips string literals so dotted text inside quotes is not read as a reference.
var quoted = regexp.MustCompile(`'(?:[^']|'')*'`)

// JoinPlanner collects the joins of every active descriptor, collapses
// duplicates by alias and orders the survivors so that a join always follows
// the joins its ON condition references.
type JoinPlanner struct {
	bases map[string]bool
	joins []JoinSpec
	index map[string]int
}

// NewJoinPlanner returns a planner whose FROM clause already provides the given aliases.
func NewJoinPlanner(baseAliases ...string) *JoinPlanner {
	bases := make(map[string]bool, len(baseAliases))
	for _, a := range baseAliases {
		bases[a] = true
	}
	return &JoinPlanner{bases: bases, index: make(map[string]int)}
}

// Add registers joins. Two specs with the same alias must describe the same
// join; when only the join type differs the INNER variant wins.
func (p *JoinPlanner) Add(specs ...JoinSpec) error {
	for _, spec := range specs {
		spec.On = normalizeCondition(spec.On)
		if spec.Type == "" {
			spec.Type = LeftJoin
		}
		if p.bases[spec.Alias] {
			return &JoinConflictError{Alias: spec.Alias, Reason: "alias is already used by the base table"}
		}

		i, ok := p.index[spec.Alias]
		if !ok {
			p.index[spec.Alias] = len(p.joins)
			p.joins = append(p.joins, spec)
			continue
		}

		existing := p.joins[i]
		switch {
		case existing.External != spec.External:
			return &JoinConflictError{Alias: spec.Alias, Reason: "alias is claimed by both an analytics and an external join"}
		case existing.Table != spec.Table:
			return &JoinConflictError{Alias: spec.Alias, Reason: fmt.Sprintf("tables differ (%s vs %s)", existing.Table, spec.Table)}
		case existing.On != spec.On:
			return &JoinConflictError{Alias: spec.Alias, Reason: fmt.Sprintf("conditions differ (%q vs %q)", existing.On, spec.On)}
		}
		if spec.Type == InnerJoin {
			p.joins[i].Type = InnerJoin
		}
	}
	return nil
}

// Plan returns the deduplicated joins in dependency order. Independent joins
// keep the order in which they were first added.
func (p *JoinPlanner) Plan() ([]JoinSpec, error) {
	indegree := make([]int, len(p.joins))
	dependents := make([][]int, len(p.joins))

	for i, j := range p.joins {
		for _, ref := range referencedAliases(j.On) {
			if ref == j.Alias || p.bases[ref] {
				continue
			}
			k, ok := p.index[ref]
			if !ok {
				return nil, &JoinConflictError{Alias: j.Alias, Reason: fmt.Sprintf("condition references undeclared alias %q", ref)}
			}
			dependents[k] = append(dependents[k], i)
			indegree[i]++
		}
	}

	ordered := make([]JoinSpec, 0, len(p.joins))
	done := make([]bool, len(p.joins))
	for len(ordered) < len(p.joins) {
		progressed := false
		for i := range p.joins {
			if done[i] || indegree[i] > 0 {
				continue
			}
			done[i] = true
			progressed = true
			ordered = append(ordered, p.joins[i])
			for _, d := range dependents[i] {
				indegree[d]--
			}
			// restart from the top so earlier-declared joins unblocked by i come first
			break
		}
		if !progressed {
			for i := range p.joins {
				if !done[i] {
					return nil, &JoinConflictError{Alias: p.joins[i].Alias, Reason: "cyclic join dependency"}
				}
			}
		}
	}
	return ordered, nil
}

func referencedAliases(on string) []string {
	stripped := quoted.ReplaceAllString(on, "''")
	seen := make(map[string]bool)
	var out []string
	for _, m := range aliasRef.FindAllStringSubmatch(stripped, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

func normalizeCondition(on string) string {
	return strings.Join(strings.Fields(on), " ")
}
