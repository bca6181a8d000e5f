package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aliasesOf(joins []JoinSpec) []string {
	out := make([]string, len(joins))
	for i, j := range joins {
		out[i] = j.Alias
	}
	return out
}

func TestJoinPlanner(t *testing.T) {
	countries := JoinSpec{Table: "countries", Alias: "countries", On: "countries.id = sessions.country_id"}
	cities := JoinSpec{Table: "cities", Alias: "cities", On: "cities.id = sessions.city_id"}
	cityCountries := JoinSpec{Table: "countries", Alias: "city_countries", On: "city_countries.id = cities.country_id"}

	t.Run("identical joins collapse to one", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		require.NoError(t, p.Add(countries, countries))
		require.NoError(t, p.Add(JoinSpec{Table: "countries", Alias: "countries", On: "countries.id   =  sessions.country_id"}))

		joins, err := p.Plan()
		require.NoError(t, err)
		require.Len(t, joins, 1)
		assert.Equal(t, LeftJoin, joins[0].Type)
		assert.Equal(t, "LEFT JOIN countries AS countries ON countries.id = sessions.country_id", joins[0].Clause())
	})

	t.Run("inner wins over left", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		inner := countries
		inner.Type = InnerJoin
		require.NoError(t, p.Add(countries, inner))

		joins, err := p.Plan()
		require.NoError(t, err)
		require.Len(t, joins, 1)
		assert.Equal(t, InnerJoin, joins[0].Type)
	})

	t.Run("dependencies come first", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		require.NoError(t, p.Add(cityCountries, countries, cities))

		joins, err := p.Plan()
		require.NoError(t, err)
		assert.Equal(t, []string{"countries", "cities", "city_countries"}, aliasesOf(joins))
	})

	t.Run("same alias with different condition conflicts", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		require.NoError(t, p.Add(countries))
		err := p.Add(JoinSpec{Table: "countries", Alias: "countries", On: "countries.code = sessions.country_code"})

		var conflict *JoinConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "countries", conflict.Alias)
	})

	t.Run("same alias on a different table conflicts", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		require.NoError(t, p.Add(countries))
		err := p.Add(JoinSpec{Table: "regions", Alias: "countries", On: "countries.id = sessions.country_id"})
		assert.Equal(t, CodeJoinConflict, ErrorCode(err))
	})

	t.Run("external and analytics joins cannot share an alias", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		require.NoError(t, p.Add(countries))
		external := countries
		external.External = true
		err := p.Add(external)
		assert.Equal(t, CodeJoinConflict, ErrorCode(err))
	})

	t.Run("base alias cannot be joined again", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		err := p.Add(JoinSpec{Table: "sessions", Alias: "sessions", On: "sessions.id = views.session_id"})
		assert.Equal(t, CodeJoinConflict, ErrorCode(err))
	})

	t.Run("undeclared alias in condition", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		require.NoError(t, p.Add(cityCountries))
		_, err := p.Plan()

		var conflict *JoinConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, "city_countries", conflict.Alias)
		assert.Contains(t, conflict.Reason, `"cities"`)
	})

	t.Run("cycles are rejected", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		require.NoError(t, p.Add(
			JoinSpec{Table: "a", Alias: "a", On: "a.id = b.a_id"},
			JoinSpec{Table: "b", Alias: "b", On: "b.id = a.b_id"},
		))
		_, err := p.Plan()
		assert.Equal(t, CodeJoinConflict, ErrorCode(err))
	})

	t.Run("quoted literals are not references", func(t *testing.T) {
		p := NewJoinPlanner("sessions")
		require.NoError(t, p.Add(JoinSpec{
			Table: "parameters",
			Alias: "utm_source_params",
			On:    "utm_source_params.session_id = sessions.id AND utm_source_params.parameter_name = 'utm.source'",
		}))
		joins, err := p.Plan()
		require.NoError(t, err)
		assert.Len(t, joins, 1)
	})
}
