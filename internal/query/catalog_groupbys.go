package query

import (
	"fmt"

	"webstats/internal/schema"
	"webstats/internal/timeframe"
)

func isoTime(expr string) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%dT%%H:%%M:%%SZ', %s)", expr)
}

var (
	bySessionsDesc = []OrderTerm{{By: "sessions", Desc: true}}
	byViewsDesc    = []OrderTerm{{By: "views", Desc: true}}
)

func dateGroupBy(name string, size timeframe.TimeFrameBucketSize) GroupByDescriptor {
	return GroupByDescriptor{
		Name:        name,
		Alias:       name,
		Bucket:      size,
		Order:       []OrderTerm{{By: name}},
		Description: fmt.Sprintf("%s bucket of the base timestamp in the request timezone", size),
	}
}

func sessionGroupBys(j joinBook) []GroupByDescriptor {
	entryView, entryURI, entryResource := j.landing("entry")
	exitView, exitURI, exitResource := j.landing("exit")
	cityCountries := JoinSpec{
		Table: j.t.Name(schema.Countries),
		Alias: "city_countries",
		On:    "city_countries.id = cities.country_id",
	}

	return []GroupByDescriptor{
		dateGroupBy("hour", timeframe.TimeFrameBucketSizeHour),
		dateGroupBy("date", timeframe.TimeFrameBucketSizeDay),
		dateGroupBy("week", timeframe.TimeFrameBucketSizeWeek),
		dateGroupBy("month", timeframe.TimeFrameBucketSizeMonth),
		{
			Name:   "country",
			Column: "countries.code",
			Alias:  "country_code",
			Group:  []string{"sessions.country_id", "countries.code"},
			Joins:  []JoinSpec{j.countries()},
			Extras: []Projection{
				{Expr: "countries.name", Alias: "country_name"},
				{Expr: "countries.continent_code", Alias: "country_continent_code"},
			},
			Hooks: []Hook{countryHook()},
			Order: bySessionsDesc,
		},
		{
			Name:   "city",
			Column: "cities.city_name",
			Alias:  "city_name",
			Group:  []string{"sessions.city_id", "cities.city_name"},
			Joins:  []JoinSpec{j.cities()},
			Extras: []Projection{
				{Expr: "cities.region_name", Alias: "region_name"},
				{Expr: "city_countries.code", Alias: "city_country_code", Joins: []JoinSpec{cityCountries}},
			},
			Order: bySessionsDesc,
		},
		{
			Name:   "device_type",
			Column: "device_types.name",
			Alias:  "device_type",
			Joins:  []JoinSpec{j.deviceTypes()},
			Hooks:  []Hook{labelHook("device_type_label", "device_type", "device_type_label")},
			Order:  bySessionsDesc,
		},
		{
			Name:   "browser",
			Column: "device_browsers.name",
			Alias:  "browser_name",
			Joins:  []JoinSpec{j.browsers()},
			Hooks:  []Hook{labelHook("browser_label", "browser_name", "browser_label")},
			Order:  bySessionsDesc,
		},
		{
			Name:   "os",
			Column: "device_oss.name",
			Alias:  "os_name",
			Joins:  []JoinSpec{j.oss()},
			Hooks:  []Hook{labelHook("os_label", "os_name", "os_label")},
			Order:  bySessionsDesc,
		},
		{
			Name:   "resolution",
			Column: "(resolutions.width || 'x' || resolutions.height)",
			Alias:  "resolution",
			Group:  []string{"sessions.resolution_id"},
			Joins:  []JoinSpec{j.resolutions()},
			Order:  bySessionsDesc,
		},
		{
			Name:   "language",
			Column: "languages.code",
			Alias:  "language_code",
			Joins:  []JoinSpec{j.languages()},
			Extras: []Projection{{Expr: "languages.name", Alias: "language_name"}},
			Order:  bySessionsDesc,
		},
		{
			Name:   "referrer",
			Column: "referrers.domain",
			Alias:  "referrer_domain",
			Group:  []string{"sessions.referrer_id", "referrers.domain"},
			Joins:  []JoinSpec{j.referrers()},
			Extras: []Projection{
				{Expr: "referrers.name", Alias: "referrer_name"},
				{Expr: "referrers.channel", Alias: "referrer_channel"},
			},
			Hooks: []Hook{referrerLabelHook()},
			Order: bySessionsDesc,
		},
		{
			Name:   "referrer_channel",
			Column: "referrers.channel",
			Alias:  "referrer_channel",
			Joins:  []JoinSpec{j.referrers()},
			Order:  bySessionsDesc,
		},
		{
			Name:   "entry_page",
			Column: "entry_page_uris.uri",
			Alias:  "entry_page",
			Joins:  []JoinSpec{entryView, entryURI},
			Extras: []Projection{
				{Expr: "entry_resources.cached_title", Alias: "entry_page_title", Joins: []JoinSpec{entryResource}},
			},
			Order: bySessionsDesc,
		},
		{
			Name:   "exit_page",
			Column: "exit_page_uris.uri",
			Alias:  "exit_page",
			Joins:  []JoinSpec{exitView, exitURI},
			Extras: []Projection{
				{Expr: "exit_resources.cached_title", Alias: "exit_page_title", Joins: []JoinSpec{exitResource}},
			},
			Order: bySessionsDesc,
		},
		{
			Name:   "utm_source",
			Column: "utm_source_params.parameter_value",
			Alias:  "utm_source",
			Joins:  []JoinSpec{j.utm("source")},
			Order:  bySessionsDesc,
		},
		{
			Name:   "utm_medium",
			Column: "utm_medium_params.parameter_value",
			Alias:  "utm_medium",
			Joins:  []JoinSpec{j.utm("medium")},
			Order:  bySessionsDesc,
		},
		{
			Name:   "utm_campaign",
			Column: "utm_campaign_params.parameter_value",
			Alias:  "utm_campaign",
			Joins:  []JoinSpec{j.utm("campaign")},
			Order:  bySessionsDesc,
		},
		visitorGroupBy(j, entryView, entryURI, exitView, exitURI),
		{
			Name:     "session",
			Column:   "sessions.id",
			Alias:    "session_id",
			Requires: BaseSessions,
			Extras: []Projection{
				{Expr: "sessions.duration", Alias: "session_duration"},
				{Expr: "sessions.total_views", Alias: "session_views"},
				{Expr: isoTime("sessions.started_at"), Alias: "session_started_at"},
				{Expr: "visitors.hash", Alias: "visitor_hash", Joins: []JoinSpec{j.visitors()}},
				{Expr: "countries.code", Alias: "country_code", Joins: []JoinSpec{j.countries()}},
			},
			Order:       []OrderTerm{{By: "session_started_at", Desc: true}},
			Description: "One row per session",
		},
	}
}

// visitorGroupBy rolls every session of a visitor into one row. Its
// dimensional attributes come from the session picked by the attribution model.
func visitorGroupBy(j joinBook, entryView, entryURI, exitView, exitURI JoinSpec) GroupByDescriptor {
	return GroupByDescriptor{
		Name:     "visitor",
		Column:   "visitors.hash",
		Alias:    "visitor_hash",
		Group:    []string{"sessions.visitor_id", "visitors.hash"},
		Joins:    []JoinSpec{j.visitors()},
		Requires: BaseSessions,
		Extras: []Projection{
			{Expr: isoTime("MIN(sessions.started_at)"), Alias: "first_visit"},
			{Expr: isoTime("MAX(sessions.started_at)"), Alias: "last_visit"},
			{Expr: "COUNT(DISTINCT sessions.id)", Alias: "total_sessions"},
			{Expr: "COALESCE(SUM(sessions.total_views), 0)", Alias: "total_views"},
		},
		Attributed: []Projection{
			{Expr: "countries.code", Alias: "country_code", Joins: []JoinSpec{j.countries()}},
			{Expr: "countries.name", Alias: "country_name", Joins: []JoinSpec{j.countries()}},
			{Expr: "cities.city_name", Alias: "city_name", Joins: []JoinSpec{j.cities()}},
			{Expr: "cities.region_name", Alias: "region_name", Joins: []JoinSpec{j.cities()}},
			{Expr: "device_types.name", Alias: "device_type", Joins: []JoinSpec{j.deviceTypes()}},
			{Expr: "device_browsers.name", Alias: "browser_name", Joins: []JoinSpec{j.browsers()}},
			{Expr: "device_oss.name", Alias: "os_name", Joins: []JoinSpec{j.oss()}},
			{Expr: "languages.code", Alias: "language_code", Joins: []JoinSpec{j.languages()}},
			{Expr: "referrers.domain", Alias: "referrer_domain", Joins: []JoinSpec{j.referrers()}},
			{Expr: "referrers.channel", Alias: "referrer_channel", Joins: []JoinSpec{j.referrers()}},
			{Expr: "entry_page_uris.uri", Alias: "entry_page", Joins: []JoinSpec{entryView, entryURI}},
			{Expr: "exit_page_uris.uri", Alias: "exit_page", Joins: []JoinSpec{exitView, exitURI}},
			{Expr: "sessions.user_id", Alias: "user_id"},
		},
		Hooks:       []Hook{userHook(), countryHook()},
		Order:       []OrderTerm{{By: "last_visit", Desc: true}},
		Description: "One row per visitor; attributes follow the attribution model",
	}
}

func viewGroupBys(j joinBook) []GroupByDescriptor {
	return []GroupByDescriptor{
		{
			Name:     "page",
			Column:   "resource_uris.uri",
			Alias:    "page",
			Group:    []string{"views.resource_uri_id", "resource_uris.uri"},
			Joins:    []JoinSpec{j.resourceURIs()},
			Requires: BaseViews,
			Extras: []Projection{
				{Expr: "resources.cached_title", Alias: "page_title", Joins: []JoinSpec{j.resources()}},
				{Expr: "resources.resource_type", Alias: "post_type", Joins: []JoinSpec{j.resources()}},
				{Expr: "views.resource_id", Alias: "resource_id"},
			},
			Order: byViewsDesc,
		},
		{
			Name:     "post_type",
			Column:   "resources.resource_type",
			Alias:    "post_type",
			Joins:    []JoinSpec{j.resources()},
			Requires: BaseViews,
			Order:    byViewsDesc,
		},
		{
			Name:     "resource",
			Column:   "views.resource_id",
			Alias:    "resource_id",
			Joins:    []JoinSpec{j.resources()},
			Requires: BaseViews,
			Extras: []Projection{
				{Expr: "resources.cached_title", Alias: "resource_title"},
				{Expr: "resources.resource_type", Alias: "resource_type"},
				{Expr: "resources.cached_author_id", Alias: "author_id"},
				{Expr: "resources.object_id", Alias: "resource_object_id"},
			},
			Hooks: []Hook{authorHook(), resourceTermsHook()},
			Order: byViewsDesc,
		},
		{
			Name:     "author",
			Column:   "resources.cached_author_id",
			Alias:    "author_id",
			Joins:    []JoinSpec{j.resources()},
			Requires: BaseViews,
			Hooks:    []Hook{authorHook()},
			Order:    byViewsDesc,
		},
		{
			Name:     "term",
			Column:   "resource_terms.term_id",
			Alias:    "term_id",
			Joins:    []JoinSpec{j.resources(), j.resourceTerms()},
			Requires: BaseViews,
			Hooks:    []Hook{termHook()},
			Order:    byViewsDesc,
			FanOut:   true,
		},
	}
}
