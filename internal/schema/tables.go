// Package schema holds the normalized analytics schema and the resolver that
// maps logical table names to their physical, prefixed names.
package schema

// Logical analytics table names.
const (
	Visitors              = "visitors"
	Sessions              = "sessions"
	Views                 = "views"
	Resources             = "resources"
	ResourceURIs          = "resource_uris"
	Referrers             = "referrers"
	Countries             = "countries"
	Cities                = "cities"
	DeviceTypes           = "device_types"
	DeviceBrowsers        = "device_browsers"
	DeviceBrowserVersions = "device_browser_versions"
	DeviceOSs             = "device_oss"
	Resolutions           = "resolutions"
	Languages             = "languages"
	Timezones             = "timezones"
	Parameters            = "parameters"
)

// Logical host-platform table names. These live outside the analytics schema
// and carry their own prefix.
const (
	HostUsers             = "users"
	HostTerms             = "terms"
	HostTermRelationships = "term_relationships"
)

// Tables resolves logical table names to physical ones. The zero value maps
// every name to itself.
type Tables struct {
	prefix     string
	hostPrefix string
}

// NewTables returns a resolver for the given analytics and host prefixes.
func NewTables(prefix, hostPrefix string) Tables {
	return Tables{prefix: prefix, hostPrefix: hostPrefix}
}

// Name returns the physical name of an analytics table.
func (t Tables) Name(logical string) string {
	return t.prefix + logical
}

// Host returns the physical name of a host-platform table.
func (t Tables) Host(logical string) string {
	return t.hostPrefix + logical
}

// Prefix returns the analytics table prefix.
func (t Tables) Prefix() string {
	return t.prefix
}
