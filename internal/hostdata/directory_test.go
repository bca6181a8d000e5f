package hostdata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webstats/internal/hostdata"
	"webstats/internal/query"
	"webstats/internal/testsupport"
)

func TestUserDirectory(t *testing.T) {
	f := testsupport.NewFixture(t)
	f.User(hostdata.User{ID: 1, Login: "admin", DisplayName: "Site Admin", Role: "administrator"})
	f.User(hostdata.User{ID: 2, Login: "jdoe", DisplayName: "Jamie Doe", URL: "https://example.com/author/jdoe", Role: "editor"})

	dir := hostdata.NewUserDirectory(f.DB, testsupport.Tables(), testsupport.GetLogger())
	ctx := context.Background()

	users, err := dir.UsersByID(ctx, []int64{2, 1, 99})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, query.User{ID: 2, DisplayName: "Jamie Doe", URL: "https://example.com/author/jdoe", Role: "editor"}, users[2])
	assert.NotContains(t, users, int64(99))

	t.Run("empty input skips the database", func(t *testing.T) {
		users, err := dir.UsersByID(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("results are cached until cleared", func(t *testing.T) {
		f.User(hostdata.User{ID: 99, Login: "late", DisplayName: "Late Arrival"})

		cached, err := dir.UsersByID(ctx, []int64{1, 2, 99})
		require.NoError(t, err)
		assert.NotContains(t, cached, int64(99))

		dir.Clear()
		fresh, err := dir.UsersByID(ctx, []int64{99, 2, 1})
		require.NoError(t, err)
		assert.Equal(t, "Late Arrival", fresh[99].DisplayName)
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := dir.UsersByID(canceled, []int64{1})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestTermDirectory(t *testing.T) {
	f := testsupport.NewFixture(t)
	f.Term(hostdata.Term{ID: 1, Name: "Tutorials", Slug: "tutorials", Taxonomy: "category"}, 10, 11)
	f.Term(hostdata.Term{ID: 2, Name: "News", Slug: "news", Taxonomy: "category"}, 11)
	f.Term(hostdata.Term{ID: 3, Name: "go", Slug: "go", Taxonomy: "post_tag"}, 10)

	dir := hostdata.NewTermDirectory(f.DB, testsupport.Tables())
	ctx := context.Background()

	t.Run("by id", func(t *testing.T) {
		terms, err := dir.TermsByID(ctx, []int64{3, 1, 42})
		require.NoError(t, err)
		assert.Len(t, terms, 2)
		assert.Equal(t, query.Term{ID: 3, Name: "go", Slug: "go", Taxonomy: "post_tag"}, terms[3])
	})

	t.Run("by object ordered by taxonomy then name", func(t *testing.T) {
		byObject, err := dir.TermsByObject(ctx, []int64{10, 11, 12})
		require.NoError(t, err)

		names := func(terms []query.Term) []string {
			out := make([]string, len(terms))
			for i, term := range terms {
				out[i] = term.Name
			}
			return out
		}
		assert.Equal(t, []string{"Tutorials", "go"}, names(byObject[10]))
		assert.Equal(t, []string{"News", "Tutorials"}, names(byObject[11]))
		assert.NotContains(t, byObject, int64(12))
	})

	t.Run("empty input", func(t *testing.T) {
		terms, err := dir.TermsByID(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, terms)

		byObject, err := dir.TermsByObject(ctx, []int64{})
		require.NoError(t, err)
		assert.Empty(t, byObject)
	})
}
