package query

import "fmt"

func sessionFilters(j joinBook) []FilterDescriptor {
	entryView, entryURI, _ := j.landing("entry")
	exitView, exitURI, _ := j.landing("exit")
	sessions := j.sessionsTable()

	return []FilterDescriptor{
		{Name: "country", Column: "countries.code", Type: TypeString, Operators: EnumOperators,
			Joins: []JoinSpec{j.countries()}, Description: "ISO 3166 alpha-2 country code"},
		{Name: "continent", Column: "countries.continent_code", Type: TypeString, Operators: EnumOperators,
			Joins: []JoinSpec{j.countries()}, Description: "Two letter continent code"},
		{Name: "city", Column: "cities.city_name", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.cities()}},
		{Name: "region", Column: "cities.region_name", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.cities()}},
		{Name: "device_type", Column: "device_types.name", Type: TypeString, Operators: EnumOperators,
			Joins: []JoinSpec{j.deviceTypes()}, Description: "desktop, mobile, tablet or bot"},
		{Name: "browser", Column: "device_browsers.name", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.browsers()}},
		{Name: "browser_version", Column: "device_browser_versions.version", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.browserVersions()}},
		{Name: "os", Column: "device_oss.name", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.oss()}},
		{Name: "resolution", Column: "(resolutions.width || 'x' || resolutions.height)", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.resolutions()}, Description: "Screen size as WIDTHxHEIGHT"},
		{Name: "language", Column: "languages.code", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.languages()}},
		{Name: "timezone", Column: "timezones.name", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.timezones()}},
		{Name: "referrer", Column: "referrers.domain", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.referrers()}, Description: "Referring domain"},
		{Name: "referrer_name", Column: "referrers.name", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.referrers()}},
		{Name: "referrer_channel", Column: "referrers.channel", Type: TypeString, Operators: EnumOperators,
			Joins: []JoinSpec{j.referrers()}, Description: "direct, search, social, email or referral"},
		{Name: "entry_page", Column: "entry_page_uris.uri", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{entryView, entryURI}, Description: "URI of the first view of the session"},
		{Name: "exit_page", Column: "exit_page_uris.uri", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{exitView, exitURI}, Description: "URI of the last view of the session"},
		{Name: "session_duration", Column: "sessions.duration", Type: TypeInteger, Operators: IntegerOperators,
			Description: "Session length in seconds"},
		{Name: "total_views", Column: "sessions.total_views", Type: TypeInteger, Operators: IntegerOperators},
		{Name: "bounce", Column: "(sessions.total_views <= 1)", Type: TypeBoolean, Operators: BooleanOperators,
			Description: "Session with at most one view"},
		{
			Name: "visitor_type",
			Column: fmt.Sprintf("(CASE WHEN EXISTS (SELECT 1 FROM %s AS prior_sessions"+
				" WHERE prior_sessions.visitor_id = sessions.visitor_id"+
				" AND prior_sessions.started_at < sessions.started_at)"+
				" THEN 'returning' ELSE 'new' END)", sessions),
			Type:        TypeString,
			Operators:   EnumOperators,
			Description: "new for a visitor's first session, returning otherwise",
		},
		{
			Name: "first_seen",
			Column: fmt.Sprintf("(SELECT MIN(seen_sessions.started_at) FROM %s AS seen_sessions"+
				" WHERE seen_sessions.visitor_id = sessions.visitor_id)", sessions),
			Type:        TypeDate,
			Operators:   DateOperators,
			Description: "Start of the visitor's earliest session",
		},
		{
			Name: "last_seen",
			Column: fmt.Sprintf("(SELECT MAX(seen_sessions.started_at) FROM %s AS seen_sessions"+
				" WHERE seen_sessions.visitor_id = sessions.visitor_id)", sessions),
			Type:        TypeDate,
			Operators:   DateOperators,
			Description: "Start of the visitor's most recent session",
		},
		{Name: "visitor", Column: "visitors.hash", Type: TypeString, Operators: EnumOperators,
			Joins: []JoinSpec{j.visitors()}},
		{Name: "logged_in", Column: "(sessions.user_id IS NOT NULL)", Type: TypeBoolean, Operators: BooleanOperators},
		{Name: "user_role", Column: "session_users.role", Type: TypeString, Operators: EnumOperators,
			Joins: []JoinSpec{j.sessionUsers()}, Description: "Role of the logged in host user"},
		{Name: "utm_source", Column: "utm_source_params.parameter_value", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.utm("source")}},
		{Name: "utm_medium", Column: "utm_medium_params.parameter_value", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.utm("medium")}},
		{Name: "utm_campaign", Column: "utm_campaign_params.parameter_value", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.utm("campaign")}},
		{Name: "session_date", Column: "sessions.started_at", Type: TypeDate, Operators: DateOperators},
	}
}

func viewFilters(j joinBook) []FilterDescriptor {
	return []FilterDescriptor{
		{Name: "page", Column: "resource_uris.uri", Type: TypeString, Operators: StringOperators,
			Joins: []JoinSpec{j.resourceURIs()}, Requires: BaseViews, Description: "Viewed URI"},
		{Name: "post_type", Column: "resources.resource_type", Type: TypeString, Operators: EnumOperators,
			Joins: []JoinSpec{j.resources()}, Requires: BaseViews},
		{Name: "resource_id", Column: "views.resource_id", Type: TypeInteger, Operators: IntegerOperators,
			Requires: BaseViews},
		{Name: "author", Column: "resources.cached_author_id", Type: TypeInteger, Operators: EnumOperators,
			Joins: []JoinSpec{j.resources()}, Requires: BaseViews, Description: "Host user id of the resource author"},
		{Name: "term", Column: "resource_terms.term_id", Type: TypeInteger, Operators: EnumOperators,
			Joins: []JoinSpec{j.resources(), j.resourceTerms()}, Requires: BaseViews, Description: "Host taxonomy term id"},
		{Name: "view_date", Column: "views.viewed_at", Type: TypeDate, Operators: DateOperators, Requires: BaseViews},
		{Name: "view_duration", Column: "views.duration", Type: TypeInteger, Operators: IntegerOperators,
			Requires: BaseViews, Description: "Time on page in seconds"},
	}
}
