package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// ErrLookupUnavailable is returned by hooks whose lookup service was not configured.
var ErrLookupUnavailable = errors.New("lookup service not configured")

// User is a host-platform account as seen by enrichment.
type User struct {
	ID          int64
	DisplayName string
	URL         string
	Role        string
}

// Term is a host-platform taxonomy term.
type Term struct {
	ID       int64
	Name     string
	Slug     string
	Taxonomy string
}

// Country is the display data for an ISO 3166 alpha-2 code.
type Country struct {
	Code      string
	Name      string
	Continent string
	Region    string
	SubRegion string
}

// UserLookup resolves many user ids in one call. Unknown ids are absent from the result.
type UserLookup interface {
	UsersByID(ctx context.Context, ids []int64) (map[int64]User, error)
}

// TermLookup resolves taxonomy terms by term id or by the objects they are attached to.
type TermLookup interface {
	TermsByID(ctx context.Context, ids []int64) (map[int64]Term, error)
	TermsByObject(ctx context.Context, objectIDs []int64) (map[int64][]Term, error)
}

// CountryLookup resolves country display data by alpha-2 code.
type CountryLookup interface {
	CountryByCode(code string) (Country, bool)
}

// Lookups bundles the name-resolution services enrichment hooks use. Any of
// them may be nil; the hooks that need a missing one degrade to null fields.
type Lookups struct {
	Users     UserLookup
	Terms     TermLookup
	Countries CountryLookup
}

// EnrichmentPipeline runs the post-aggregation hooks of the active group-bys.
type EnrichmentPipeline struct {
	lookups Lookups
	logger  *slog.Logger
}

func NewEnrichmentPipeline(lookups Lookups, logger *slog.Logger) *EnrichmentPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrichmentPipeline{lookups: lookups, logger: logger}
}

// Run applies every hook in hooks to rows. Outputs are pre-filled with nil so
// a failing or panicking hook leaves null fields instead of failing the query.
func (p *EnrichmentPipeline) Run(ctx context.Context, hooks []Hook, rows []Row) {
	if len(rows) == 0 {
		return
	}
	for _, hook := range hooks {
		for _, row := range rows {
			for _, out := range hook.Outputs {
				if _, ok := row[out]; !ok {
					row[out] = nil
				}
			}
		}
		if err := p.runHook(ctx, hook, rows); err != nil {
			p.logger.Warn("Enrichment degraded",
				slog.String("hook", hook.Name),
				slog.Any("error", err))
			for _, row := range rows {
				for _, out := range hook.Outputs {
					row[out] = nil
				}
			}
		}
	}
}

func (p *EnrichmentPipeline) runHook(ctx context.Context, hook Hook, rows []Row) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return hook.Run(ctx, p.lookups, rows)
}

// collectIDs returns the distinct integer values of alias across rows, sorted.
func collectIDs(rows []Row, alias string) []int64 {
	seen := make(map[int64]struct{})
	for _, row := range rows {
		if id, ok := asInt64(row[alias]); ok {
			seen[id] = struct{}{}
		}
	}
	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
