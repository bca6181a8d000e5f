package hostdata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/karloscodes/cartridge/cache"
	"gorm.io/gorm"

	"webstats/internal/query"
	"webstats/internal/schema"
)

const userCacheTTL = 5 * time.Minute

// UserDirectory resolves host users in batches. Results are cached per id set
// for a few minutes since dashboards repeat the same lookups.
type UserDirectory struct {
	db     *gorm.DB
	table  string
	cache  *cache.Cache[string, map[int64]query.User]
	logger *slog.Logger
}

var _ query.UserLookup = (*UserDirectory)(nil)

func NewUserDirectory(db *gorm.DB, tables schema.Tables, logger *slog.Logger) *UserDirectory {
	d := &UserDirectory{
		db:     db,
		table:  tables.Host(schema.HostUsers),
		logger: logger,
	}
	d.cache = cache.NewCache[string, map[int64]query.User](logger, userCacheTTL, d.fetch)
	return d
}

func (d *UserDirectory) UsersByID(ctx context.Context, ids []int64) (map[int64]query.User, error) {
	if len(ids) == 0 {
		return map[int64]query.User{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.cache.Get(idKey(ids))
}

// Clear drops cached lookups.
func (d *UserDirectory) Clear() {
	d.cache.Clear()
}

func (d *UserDirectory) fetch(key string) (map[int64]query.User, error) {
	ids, err := parseIDKey(key)
	if err != nil {
		return nil, err
	}

	var users []User
	if err := d.db.Table(d.table).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to load users: %w", err)
	}

	out := make(map[int64]query.User, len(users))
	for _, u := range users {
		out[u.ID] = query.User{ID: u.ID, DisplayName: u.DisplayName, URL: u.URL, Role: u.Role}
	}
	return out, nil
}

// TermDirectory resolves host taxonomy terms.
type TermDirectory struct {
	db            *gorm.DB
	terms         string
	relationships string
}

var _ query.TermLookup = (*TermDirectory)(nil)

func NewTermDirectory(db *gorm.DB, tables schema.Tables) *TermDirectory {
	return &TermDirectory{
		db:            db,
		terms:         tables.Host(schema.HostTerms),
		relationships: tables.Host(schema.HostTermRelationships),
	}
}

func (d *TermDirectory) TermsByID(ctx context.Context, ids []int64) (map[int64]query.Term, error) {
	out := make(map[int64]query.Term, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var terms []Term
	if err := d.db.WithContext(ctx).Table(d.terms).Where("id IN ?", ids).Find(&terms).Error; err != nil {
		return nil, fmt.Errorf("failed to load terms: %w", err)
	}
	for _, t := range terms {
		out[t.ID] = toQueryTerm(t)
	}
	return out, nil
}

type objectTerm struct {
	ObjectID int64
	Term
}

func (d *TermDirectory) TermsByObject(ctx context.Context, objectIDs []int64) (map[int64][]query.Term, error) {
	out := make(map[int64][]query.Term, len(objectIDs))
	if len(objectIDs) == 0 {
		return out, nil
	}

	var rows []objectTerm
	err := d.db.WithContext(ctx).
		Table(d.relationships+" AS rel").
		Select("rel.object_id, t.id, t.name, t.slug, t.taxonomy").
		Joins("JOIN "+d.terms+" AS t ON t.id = rel.term_id").
		Where("rel.object_id IN ?", objectIDs).
		Order("rel.object_id, t.taxonomy, t.name").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load object terms: %w", err)
	}
	for _, r := range rows {
		out[r.ObjectID] = append(out[r.ObjectID], toQueryTerm(r.Term))
	}
	return out, nil
}

func toQueryTerm(t Term) query.Term {
	return query.Term{ID: t.ID, Name: t.Name, Slug: t.Slug, Taxonomy: t.Taxonomy}
}

func idKey(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func parseIDKey(key string) ([]int64, error) {
	parts := strings.Split(key, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
