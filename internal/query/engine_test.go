package query_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"webstats/internal/geo"
	"webstats/internal/hostdata"
	"webstats/internal/query"
	"webstats/internal/seeder"
	"webstats/internal/testsupport"
)

type clock struct{ now time.Time }

func (c clock) Now(loc *time.Location) time.Time { return c.now.In(loc) }

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func day(d, h int) time.Time {
	return time.Date(2024, 6, d, h, 0, 0, 0, time.UTC)
}

func defaultLookups(db *gorm.DB) query.Lookups {
	return query.Lookups{
		Users:     hostdata.NewUserDirectory(db, testsupport.Tables(), testsupport.GetLogger()),
		Terms:     hostdata.NewTermDirectory(db, testsupport.Tables()),
		Countries: geo.Default(),
	}
}

func newEngine(db *gorm.DB, lookups query.Lookups) *query.Engine {
	return query.NewEngine(
		query.NewCatalog(testsupport.Tables()),
		query.NewGormExecutor(db),
		lookups,
		testsupport.GetLogger(),
		query.Options{TimeProvider: clock{now}},
	)
}

func run(t *testing.T, e *query.Engine, req *query.QueryRequest) *query.QueryResult {
	t.Helper()
	res, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	return res
}

func TestEngineCountryByDeviceType(t *testing.T) {
	f := testsupport.NewFixture(t)
	f.Session(seeder.SessionInput{Visitor: "a", StartedAt: day(14, 9), Country: "US", DeviceType: "desktop", Views: testsupport.Views("/", "/pricing")})
	f.Session(seeder.SessionInput{Visitor: "b", StartedAt: day(13, 9), Country: "US", DeviceType: "desktop", Views: testsupport.Views("/")})
	f.Session(seeder.SessionInput{Visitor: "c", StartedAt: day(12, 9), Country: "US", DeviceType: "mobile", Views: testsupport.Views("/")})
	f.Session(seeder.SessionInput{Visitor: "d", StartedAt: day(1, 9), Country: "US", DeviceType: "desktop", Views: testsupport.Views("/")})
	f.Session(seeder.SessionInput{Visitor: "e", StartedAt: day(14, 9), Country: "DE", DeviceType: "desktop", Views: testsupport.Views("/")})

	e := newEngine(f.DB, defaultLookups(f.DB))
	filters := map[string]map[string]any{"country": {"is": "US"}}
	week := &query.DateRange{Preset: "last_7_days"}

	res := run(t, e, &query.QueryRequest{Filters: filters, GroupBy: query.GroupByList{"device_type"}, DateRange: week})

	require.Len(t, res.Rows, 2)
	assert.Equal(t, "desktop", res.Rows[0]["device_type"])
	assert.Equal(t, "Desktop", res.Rows[0]["device_type_label"])
	assert.Equal(t, int64(2), res.Rows[0]["sessions"])
	assert.Equal(t, int64(3), res.Rows[0]["views"])
	assert.Equal(t, "mobile", res.Rows[1]["device_type"])
	assert.Equal(t, int64(1), res.Rows[1]["sessions"])

	assert.Equal(t, int64(3), res.Totals["sessions"])
	assert.Equal(t, int64(2), res.Totals["groups"])
	assert.Equal(t, query.BaseSessions, res.Meta.Base)
	assert.Equal(t, "last_7_days", res.Meta.Range)
	assert.NotEmpty(t, res.Meta.QueryID)
	for _, row := range res.Rows {
		assert.NotContains(t, row, "__total_sessions")
	}

	overall := run(t, e, &query.QueryRequest{Filters: filters, DateRange: week, Projection: []string{"sessions"}})
	require.Len(t, overall.Rows, 1)
	assert.Equal(t, int64(3), overall.Rows[0]["sessions"])
	assert.Equal(t, res.Totals["sessions"], overall.Totals["sessions"])

	t.Run("totals ignore the page size", func(t *testing.T) {
		page := run(t, e, &query.QueryRequest{Filters: filters, GroupBy: query.GroupByList{"device_type"}, DateRange: week, Limit: 1})
		require.Len(t, page.Rows, 1)
		assert.Equal(t, int64(3), page.Totals["sessions"])
		assert.Equal(t, int64(2), page.Totals["groups"])
	})

	t.Run("totals survive an offset past the last group", func(t *testing.T) {
		page := run(t, e, &query.QueryRequest{Filters: filters, GroupBy: query.GroupByList{"device_type"}, DateRange: week, Offset: 5})
		assert.Empty(t, page.Rows)
		assert.Equal(t, int64(3), page.Totals["sessions"])
		assert.Equal(t, int64(4), page.Totals["views"])
		assert.Equal(t, int64(2), page.Totals["groups"])
	})
}

func TestEngineVisitorAttribution(t *testing.T) {
	f := testsupport.NewFixture(t)
	// inserted out of order so session ids do not follow time
	f.Session(seeder.SessionInput{Visitor: "v1", StartedAt: day(5, 10), Country: "FR", Views: testsupport.Views("/")})
	f.Session(seeder.SessionInput{Visitor: "v1", StartedAt: day(10, 10), Country: "US", Views: testsupport.Views("/pricing")})
	f.Session(seeder.SessionInput{Visitor: "v1", StartedAt: day(1, 10), Country: "DE", Views: testsupport.Views("/blog")})
	f.Session(seeder.SessionInput{Visitor: "v2", StartedAt: day(3, 8), Country: "JP", Views: testsupport.Views("/")})

	e := newEngine(f.DB, defaultLookups(f.DB))
	req := func(a query.Attribution) *query.QueryRequest {
		return &query.QueryRequest{
			GroupBy:     query.GroupByList{"visitor"},
			Attribution: a,
			Projection:  []string{"visitor_hash", "last_visit", "country_name"},
		}
	}

	last := run(t, e, req(query.LastTouch))
	require.Len(t, last.Rows, 2)
	assert.Equal(t, []string{"visitor_hash", "last_visit", "country_name"}, last.Columns)
	assert.Equal(t, query.Row{"visitor_hash": "v1", "last_visit": "2024-06-10T10:00:00Z", "country_name": "United States"}, last.Rows[0])
	assert.Equal(t, query.Row{"visitor_hash": "v2", "last_visit": "2024-06-03T08:00:00Z", "country_name": "Japan"}, last.Rows[1])
	assert.Equal(t, query.LastTouch, last.Meta.Attribution)

	first := run(t, e, req(query.FirstTouch))
	require.Len(t, first.Rows, 2)
	assert.Equal(t, "Germany", first.Rows[0]["country_name"])
	assert.Equal(t, "Japan", first.Rows[1]["country_name"])

	t.Run("repeated runs return the same rows", func(t *testing.T) {
		again := run(t, e, req(query.LastTouch))
		assert.Equal(t, last.Rows, again.Rows)
	})

	t.Run("attribution only considers filtered sessions", func(t *testing.T) {
		r := req(query.LastTouch)
		r.Filters = map[string]map[string]any{"country": {"is_not": "US"}}
		res := run(t, e, r)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "France", res.Rows[0]["country_name"])
		assert.Equal(t, "2024-06-05T10:00:00Z", res.Rows[0]["last_visit"])
	})

	t.Run("rollup measures cover every session", func(t *testing.T) {
		res := run(t, e, &query.QueryRequest{
			GroupBy:     query.GroupByList{"visitor"},
			Attribution: query.FirstTouch,
			Projection:  []string{"visitor_hash", "first_visit", "total_sessions", "entry_page", "country_continent", "country_region"},
			Order:       []query.OrderTerm{{By: "visitor_hash"}},
		})
		require.Len(t, res.Rows, 2)
		assert.Equal(t, "2024-06-01T10:00:00Z", res.Rows[0]["first_visit"])
		assert.Equal(t, int64(3), res.Rows[0]["total_sessions"])
		assert.Equal(t, "/blog", res.Rows[0]["entry_page"])
		assert.Equal(t, "Europe", res.Rows[0]["country_continent"])
		assert.Equal(t, "Europe", res.Rows[0]["country_region"])
		assert.NotContains(t, res.Rows[0], "country_code")
	})

	t.Run("attribution model does not change rollup aggregates", func(t *testing.T) {
		byModel := func(a query.Attribution) *query.QueryResult {
			return run(t, e, &query.QueryRequest{
				GroupBy:     query.GroupByList{"visitor"},
				Attribution: a,
				Projection:  []string{"visitor_hash", "total_sessions", "total_views", "country_name"},
			})
		}
		firstTouch := byModel(query.FirstTouch)
		lastTouch := byModel(query.LastTouch)

		require.Len(t, firstTouch.Rows, 2)
		require.Len(t, lastTouch.Rows, 2)
		for i := range firstTouch.Rows {
			assert.Equal(t, firstTouch.Rows[i]["visitor_hash"], lastTouch.Rows[i]["visitor_hash"])
			assert.Equal(t, firstTouch.Rows[i]["total_sessions"], lastTouch.Rows[i]["total_sessions"])
			assert.Equal(t, firstTouch.Rows[i]["total_views"], lastTouch.Rows[i]["total_views"])
		}
		assert.Equal(t, int64(3), firstTouch.Rows[0]["total_sessions"])
		assert.Equal(t, int64(3), firstTouch.Rows[0]["total_views"])
		assert.Equal(t, "Germany", firstTouch.Rows[0]["country_name"])
		assert.Equal(t, "United States", lastTouch.Rows[0]["country_name"])
	})
}

func TestEngineAttributionTies(t *testing.T) {
	f := testsupport.NewFixture(t)
	same := time.Date(2024, 6, 2, 9, 30, 15, 123_000_000, time.UTC)
	f.Session(seeder.SessionInput{Visitor: "tie", StartedAt: same, Country: "BR"})
	f.Session(seeder.SessionInput{Visitor: "tie", StartedAt: same, Country: "AR"})

	// distinct milliseconds inside one second, later one inserted first
	second := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	f.Session(seeder.SessionInput{Visitor: "subsecond", StartedAt: second.Add(750 * time.Millisecond), Country: "MX"})
	f.Session(seeder.SessionInput{Visitor: "subsecond", StartedAt: second.Add(250 * time.Millisecond), Country: "CA"})

	e := newEngine(f.DB, defaultLookups(f.DB))
	names := func(a query.Attribution) map[string]any {
		res := run(t, e, &query.QueryRequest{
			GroupBy:     query.GroupByList{"visitor"},
			Attribution: a,
			Projection:  []string{"visitor_hash", "country_name"},
		})
		out := make(map[string]any)
		for _, row := range res.Rows {
			out[row["visitor_hash"].(string)] = row["country_name"]
		}
		return out
	}

	first := names(query.FirstTouch)
	assert.Equal(t, "Brazil", first["tie"], "same instant resolves to the lower session id")
	assert.Equal(t, "Canada", first["subsecond"])

	last := names(query.LastTouch)
	assert.Equal(t, "Argentina", last["tie"], "same instant resolves to the higher session id")
	assert.Equal(t, "Mexico", last["subsecond"])
}

func TestEngineYAMLDateFilters(t *testing.T) {
	f := testsupport.NewFixture(t)
	f.Session(seeder.SessionInput{Visitor: "a", StartedAt: day(2, 9), Views: testsupport.Views("/")})
	f.Session(seeder.SessionInput{Visitor: "b", StartedAt: day(3, 9), Views: testsupport.Views("/")})
	e := newEngine(f.DB, defaultLookups(f.DB))

	tests := []struct {
		name     string
		doc      string
		sessions int64
	}{
		{"is covers the whole day", "filters: {session_date: {is: 2024-06-02}}", 1},
		{"between includes the end day", "filters: {session_date: {between: [2024-06-01, 2024-06-02]}}", 1},
		{"is_not excludes the whole day", "filters: {session_date: {is_not: 2024-06-02}}", 1},
		{"after an instant", "filters: {session_date: {after: 2024-06-02T10:00:00Z}}", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := query.DecodeRequestYAML([]byte(tt.doc + "\nprojection: [sessions]\n"))
			require.NoError(t, err)
			res := run(t, e, req)
			require.Len(t, res.Rows, 1)
			assert.Equal(t, tt.sessions, res.Rows[0]["sessions"])

			fromJSON, err := query.DecodeRequestJSON([]byte(`{"projection": ["sessions"], "filters": ` + yamlFiltersAsJSON(t, tt.doc) + `}`))
			require.NoError(t, err)
			assert.Equal(t, res.Rows, run(t, e, fromJSON).Rows)
		})
	}
}

func yamlFiltersAsJSON(t *testing.T, doc string) string {
	t.Helper()
	req, err := query.DecodeRequestYAML([]byte(doc))
	require.NoError(t, err)
	data, err := json.Marshal(req.Filters)
	require.NoError(t, err)
	return string(data)
}

func TestEngineSessionDurationBetween(t *testing.T) {
	f := testsupport.NewFixture(t)
	for i, d := range []int{10, 30, 120, 300, 301} {
		f.Session(seeder.SessionInput{Visitor: "v", StartedAt: day(2+i, 10), Duration: d, Views: testsupport.Views("/")})
	}

	e := newEngine(f.DB, defaultLookups(f.DB))
	res := run(t, e, &query.QueryRequest{
		Filters:    map[string]map[string]any{"session_duration": {"between": []any{30, 300}}},
		GroupBy:    query.GroupByList{"session"},
		Projection: []string{"session_id", "session_duration"},
	})

	require.Len(t, res.Rows, 3)
	var durations []int64
	for _, row := range res.Rows {
		d := row["session_duration"].(int64)
		assert.GreaterOrEqual(t, d, int64(30))
		assert.LessOrEqual(t, d, int64(300))
		durations = append(durations, d)
		assert.Len(t, row, 2)
	}
	// newest session first
	assert.Equal(t, []int64{300, 120, 30}, durations)
}

func TestEngineFilters(t *testing.T) {
	f := testsupport.NewFixture(t)
	f.User(hostdata.User{ID: 2, Login: "jdoe", DisplayName: "Jamie Doe", Role: "editor"})
	f.Session(seeder.SessionInput{
		Visitor: "r", StartedAt: day(1, 10), Country: "US", Referrer: "www.google.com",
		UserID: testsupport.Int64(2), UTM: map[string]string{"source": "newsletter"},
		Views: testsupport.Views("/", "/pricing"),
	})
	f.Session(seeder.SessionInput{Visitor: "r", StartedAt: day(2, 10), Country: "DE", Referrer: "facebook.com", Views: testsupport.Views("/pricing")})
	f.Session(seeder.SessionInput{Visitor: "n", StartedAt: day(3, 10), Views: testsupport.Views("/", "/about", "/contact")})

	e := newEngine(f.DB, defaultLookups(f.DB))

	tests := []struct {
		name    string
		filters map[string]map[string]any
		want    int64
	}{
		{"referrer channel", map[string]map[string]any{"referrer_channel": {"is": "search"}}, 1},
		{"referrer channel set", map[string]map[string]any{"referrer_channel": {"in": []any{"search", "social"}}}, 2},
		{"referrer name", map[string]map[string]any{"referrer_name": {"is": "Google"}}, 1},
		{"returning visitors", map[string]map[string]any{"visitor_type": {"is": "returning"}}, 1},
		{"new visitors", map[string]map[string]any{"visitor_type": {"is": "new"}}, 2},
		{"logged in", map[string]map[string]any{"logged_in": {"is": true}}, 1},
		{"host user role", map[string]map[string]any{"user_role": {"is": "editor"}}, 1},
		{"entry page", map[string]map[string]any{"entry_page": {"is": "/pricing"}}, 1},
		{"exit page", map[string]map[string]any{"exit_page": {"is": "/pricing"}}, 2},
		{"utm source", map[string]map[string]any{"utm_source": {"is": "newsletter"}}, 1},
		{"bounces", map[string]map[string]any{"bounce": {"is": "true"}}, 1},
		{"is_not keeps unknown countries", map[string]map[string]any{"country": {"is_not": "DE"}}, 2},
		{"empty in", map[string]map[string]any{"country": {"in": []any{}}}, 0},
		{"empty not_in", map[string]map[string]any{"country": {"not_in": []any{}}}, 3},
		{"continent", map[string]map[string]any{"continent": {"is": "EU"}}, 1},
		{"view count range", map[string]map[string]any{"total_views": {"gte": 2, "lt": 3}}, 1},
		{"session date", map[string]map[string]any{"session_date": {"is": "2024-06-02"}}, 1},
		{"first seen", map[string]map[string]any{"first_seen": {"before": "2024-06-02"}}, 2},
		{"visitor hash", map[string]map[string]any{"visitor": {"is": "n"}}, 1},
		{"combined filters", map[string]map[string]any{
			"entry_page": {"starts_with": "/"},
			"country":    {"not_in": []any{"US"}},
		}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, e, &query.QueryRequest{Filters: tt.filters, Projection: []string{"sessions"}})
			require.Len(t, res.Rows, 1)
			assert.Equal(t, tt.want, res.Rows[0]["sessions"])
		})
	}

	t.Run("views base", func(t *testing.T) {
		res := run(t, e, &query.QueryRequest{
			Filters:    map[string]map[string]any{"country": {"is": "US"}},
			GroupBy:    query.GroupByList{"page"},
			Projection: []string{"page", "views"},
			Order:      []query.OrderTerm{{By: "page"}},
		})
		assert.Equal(t, query.BaseViews, res.Meta.Base)
		require.Len(t, res.Rows, 2)
		assert.Equal(t, query.Row{"page": "/", "views": int64(1)}, res.Rows[0])
		assert.Equal(t, query.Row{"page": "/pricing", "views": int64(1)}, res.Rows[1])
	})
}

type failingUsers struct{}

func (failingUsers) UsersByID(context.Context, []int64) (map[int64]query.User, error) {
	return nil, errors.New("directory offline")
}

type panickingTerms struct{}

func (panickingTerms) TermsByID(context.Context, []int64) (map[int64]query.Term, error) {
	panic("boom")
}

func (panickingTerms) TermsByObject(context.Context, []int64) (map[int64][]query.Term, error) {
	panic("boom")
}

func seedContent(f *testsupport.Fixture) {
	f.User(hostdata.User{ID: 2, Login: "jdoe", DisplayName: "Jamie Doe", URL: "https://example.com/author/jdoe", Role: "editor"})
	f.Term(hostdata.Term{ID: 1, Name: "Tutorials", Slug: "tutorials", Taxonomy: "category"}, 10)
	f.Term(hostdata.Term{ID: 3, Name: "sql", Slug: "sql", Taxonomy: "post_tag"}, 10)

	post := seeder.ViewInput{URI: "/blog/a", Title: "A", ResourceType: "post", ObjectID: testsupport.Int64(10), AuthorID: testsupport.Int64(2), Duration: 30}
	page := seeder.ViewInput{URI: "/about", Title: "About", ResourceType: "page", ObjectID: testsupport.Int64(2), Duration: 30}
	f.Session(seeder.SessionInput{Visitor: "x", StartedAt: day(4, 10), UserID: testsupport.Int64(2), Views: []seeder.ViewInput{post, page}})
	f.Session(seeder.SessionInput{Visitor: "y", StartedAt: day(5, 10), Views: []seeder.ViewInput{post}})
}

func TestEngineEnrichment(t *testing.T) {
	f := testsupport.NewFixture(t)
	seedContent(f)
	req := &query.QueryRequest{
		GroupBy:    query.GroupByList{"resource"},
		Projection: []string{"resource_id", "resource_title", "author_name", "author_url", "term_names", "views"},
	}

	t.Run("resolves host names", func(t *testing.T) {
		res := run(t, newEngine(f.DB, defaultLookups(f.DB)), req)
		require.Len(t, res.Rows, 2)

		post := res.Rows[0]
		assert.Equal(t, "A", post["resource_title"])
		assert.Equal(t, int64(2), post["views"])
		assert.Equal(t, "Jamie Doe", post["author_name"])
		assert.Equal(t, "https://example.com/author/jdoe", post["author_url"])
		assert.Equal(t, []string{"Tutorials", "sql"}, post["term_names"])
		assert.NotContains(t, post, "author_id")
		assert.NotContains(t, post, "resource_object_id")

		about := res.Rows[1]
		assert.Equal(t, "About", about["resource_title"])
		assert.Nil(t, about["author_name"])
		assert.Empty(t, about["term_names"])
	})

	t.Run("failing lookups degrade to nulls", func(t *testing.T) {
		e := newEngine(f.DB, query.Lookups{Users: failingUsers{}, Terms: panickingTerms{}})
		res := run(t, e, req)
		require.Len(t, res.Rows, 2)
		for _, row := range res.Rows {
			assert.Contains(t, row, "author_name")
			assert.Nil(t, row["author_name"])
			assert.Nil(t, row["term_names"])
			assert.NotNil(t, row["resource_title"])
		}
	})

	t.Run("missing lookups degrade to nulls", func(t *testing.T) {
		res := run(t, newEngine(f.DB, query.Lookups{}), req)
		assert.Nil(t, res.Rows[0]["author_name"])
	})

	t.Run("visitor user names follow attribution", func(t *testing.T) {
		res := run(t, newEngine(f.DB, defaultLookups(f.DB)), &query.QueryRequest{
			GroupBy:    query.GroupByList{"visitor"},
			Projection: []string{"visitor_hash", "user_display_name"},
			Order:      []query.OrderTerm{{By: "visitor_hash"}},
		})
		require.Len(t, res.Rows, 2)
		assert.Equal(t, query.Row{"visitor_hash": "x", "user_display_name": "Jamie Doe"}, res.Rows[0])
		assert.Equal(t, query.Row{"visitor_hash": "y", "user_display_name": nil}, res.Rows[1])
	})
}

func TestEngineTermFanOut(t *testing.T) {
	f := testsupport.NewFixture(t)
	seedContent(f)

	res := run(t, newEngine(f.DB, defaultLookups(f.DB)), &query.QueryRequest{
		GroupBy:    query.GroupByList{"term"},
		Projection: []string{"term_id", "term_name", "term_taxonomy", "views"},
	})

	require.Len(t, res.Rows, 3)
	assert.Equal(t, query.Row{"term_id": int64(1), "term_name": "Tutorials", "term_taxonomy": "category", "views": int64(2)}, res.Rows[0])
	assert.Equal(t, query.Row{"term_id": int64(3), "term_name": "sql", "term_taxonomy": "post_tag", "views": int64(2)}, res.Rows[1])
	assert.Nil(t, res.Rows[2]["term_id"])
	assert.Equal(t, int64(1), res.Rows[2]["views"])
	// one view counts toward several terms, so there is no grand total
	assert.NotContains(t, res.Totals, "views")

	filtered := run(t, newEngine(f.DB, defaultLookups(f.DB)), &query.QueryRequest{
		Filters:    map[string]map[string]any{"term": {"is": 3}},
		Projection: []string{"views"},
	})
	assert.Equal(t, int64(2), filtered.Rows[0]["views"])
}

func TestEngineEmptyResult(t *testing.T) {
	f := testsupport.NewFixture(t)
	res := run(t, newEngine(f.DB, defaultLookups(f.DB)), &query.QueryRequest{GroupBy: query.GroupByList{"visitor"}})

	assert.Empty(t, res.Rows)
	assert.NotNil(t, res.Rows)
	assert.Equal(t, int64(0), res.Totals["sessions"])
	assert.Equal(t, int64(0), res.Totals["groups"])
}

func TestEngineExecutionErrors(t *testing.T) {
	f := testsupport.NewFixture(t)
	e := newEngine(f.DB, defaultLookups(f.DB))

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := e.Run(ctx, &query.QueryRequest{GroupBy: query.GroupByList{"country"}})
	require.Error(t, err)
	var execErr *query.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "aggregate", execErr.Phase)
	assert.Equal(t, query.CodeTimeout, query.ErrorCode(err))
	assert.False(t, query.IsRequestError(err))
}

func TestGormExecutorNormalizesValues(t *testing.T) {
	f := testsupport.NewFixture(t)
	rows, err := query.NewGormExecutor(f.DB).Execute(context.Background(),
		"SELECT 1 AS n, 'x' AS s, 2.5 AS r, NULL AS z, CAST('b' AS BLOB) AS b")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, query.Row{"n": int64(1), "s": "x", "r": 2.5, "z": nil, "b": "b"}, rows[0])
}
