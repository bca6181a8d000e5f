package query

import (
	"fmt"

	"webstats/internal/schema"
)

// joinBook holds the joins shared between descriptors. Descriptors that need
// the same relation take it from here, so equal aliases always carry equal
// conditions and the planner can collapse them.
type joinBook struct {
	t schema.Tables
}

func newJoinBook(t schema.Tables) joinBook {
	return joinBook{t: t}
}

func (b joinBook) bySession(logical, alias, column string) JoinSpec {
	return JoinSpec{
		Table: b.t.Name(logical),
		Alias: alias,
		On:    fmt.Sprintf("%s.id = sessions.%s", alias, column),
	}
}

func (b joinBook) visitors() JoinSpec    { return b.bySession(schema.Visitors, "visitors", "visitor_id") }
func (b joinBook) countries() JoinSpec   { return b.bySession(schema.Countries, "countries", "country_id") }
func (b joinBook) cities() JoinSpec      { return b.bySession(schema.Cities, "cities", "city_id") }
func (b joinBook) deviceTypes() JoinSpec { return b.bySession(schema.DeviceTypes, "device_types", "device_type_id") }
func (b joinBook) browsers() JoinSpec {
	return b.bySession(schema.DeviceBrowsers, "device_browsers", "device_browser_id")
}
func (b joinBook) browserVersions() JoinSpec {
	return b.bySession(schema.DeviceBrowserVersions, "device_browser_versions", "device_browser_version_id")
}
func (b joinBook) oss() JoinSpec         { return b.bySession(schema.DeviceOSs, "device_oss", "device_os_id") }
func (b joinBook) resolutions() JoinSpec { return b.bySession(schema.Resolutions, "resolutions", "resolution_id") }
func (b joinBook) languages() JoinSpec   { return b.bySession(schema.Languages, "languages", "language_id") }
func (b joinBook) timezones() JoinSpec   { return b.bySession(schema.Timezones, "timezones", "timezone_id") }
func (b joinBook) referrers() JoinSpec   { return b.bySession(schema.Referrers, "referrers", "referrer_id") }

// landing returns the joins from a session to the URI and resource of its
// first ("entry") or last ("exit") view.
func (b joinBook) landing(role string) (view, uri, resource JoinSpec) {
	column := "initial_view_id"
	if role == "exit" {
		column = "last_view_id"
	}
	view = b.bySession(schema.Views, role+"_views", column)
	uri = JoinSpec{
		Table: b.t.Name(schema.ResourceURIs),
		Alias: role + "_page_uris",
		On:    fmt.Sprintf("%s_page_uris.id = %s_views.resource_uri_id", role, role),
	}
	resource = JoinSpec{
		Table: b.t.Name(schema.Resources),
		Alias: role + "_resources",
		On:    fmt.Sprintf("%s_resources.id = %s_views.resource_id", role, role),
	}
	return view, uri, resource
}

func (b joinBook) sessionUsers() JoinSpec {
	return JoinSpec{
		Table:    b.t.Host(schema.HostUsers),
		Alias:    "session_users",
		On:       "session_users.id = sessions.user_id",
		External: true,
	}
}

// utm joins the parameter row with the given utm_* name; parameters are
// unique per session and name so the join never fans out.
func (b joinBook) utm(field string) JoinSpec {
	alias := "utm_" + field + "_params"
	return JoinSpec{
		Table: b.t.Name(schema.Parameters),
		Alias: alias,
		On:    fmt.Sprintf("%s.session_id = sessions.id AND %s.parameter_name = 'utm_%s'", alias, alias, field),
	}
}

func (b joinBook) resources() JoinSpec {
	return JoinSpec{
		Table: b.t.Name(schema.Resources),
		Alias: "resources",
		On:    "resources.id = views.resource_id",
	}
}

func (b joinBook) resourceURIs() JoinSpec {
	return JoinSpec{
		Table: b.t.Name(schema.ResourceURIs),
		Alias: "resource_uris",
		On:    "resource_uris.id = views.resource_uri_id",
	}
}

func (b joinBook) resourceTerms() JoinSpec {
	return JoinSpec{
		Table:    b.t.Host(schema.HostTermRelationships),
		Alias:    "resource_terms",
		On:       "resource_terms.object_id = resources.object_id",
		External: true,
	}
}

// sessionsTable is used by correlated subqueries.
func (b joinBook) sessionsTable() string {
	return b.t.Name(schema.Sessions)
}
