package seeder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"webstats/internal/geo"
	"webstats/internal/hostdata"
	"webstats/internal/pkg/referrers"
	"webstats/internal/query"
	"webstats/internal/schema"
)

// ViewInput describes one page view of a session.
type ViewInput struct {
	URI          string
	Title        string
	ResourceType string
	ObjectID     *int64
	AuthorID     *int64
	Duration     int
}

// SessionInput describes one session. Empty dimension fields stay NULL.
type SessionInput struct {
	Visitor        string
	StartedAt      time.Time
	Country        string
	City           string
	Region         string
	DeviceType     string
	Browser        string
	BrowserVersion string
	OS             string
	Resolution     string
	Language       string
	Timezone       string
	Referrer       string
	UserID         *int64
	UTM            map[string]string
	Views          []ViewInput
	// Duration overrides the sum of view durations when positive.
	Duration int
}

// Builder writes normalized analytics rows, creating dimension rows on first
// use. It is used by the development seeder and by test fixtures.
type Builder struct {
	db        *gorm.DB
	tables    schema.Tables
	countries query.CountryLookup
	ids       map[string]int64
}

func NewBuilder(db *gorm.DB, tables schema.Tables) *Builder {
	return &Builder{
		db:        db,
		tables:    tables,
		countries: geo.Default(),
		ids:       make(map[string]int64),
	}
}

// WithDB returns a builder writing through db (typically a transaction) that
// shares the dimension id cache.
func (b *Builder) WithDB(db *gorm.DB) *Builder {
	return &Builder{db: db, tables: b.tables, countries: b.countries, ids: b.ids}
}

func (b *Builder) table(logical string) *gorm.DB {
	return schema.Table(b.db, b.tables, logical)
}

// dimension returns the id of the row matching where, creating it from value
// when missing.
func (b *Builder) dimension(logical, key string, value any, where map[string]any) (int64, error) {
	cacheKey := logical + ":" + key
	if id, ok := b.ids[cacheKey]; ok {
		return id, nil
	}

	var found struct{ ID int64 }
	err := b.table(logical).Select("id").Where(where).Limit(1).Scan(&found).Error
	if err != nil {
		return 0, fmt.Errorf("looking up %s %q: %w", logical, key, err)
	}
	if found.ID == 0 {
		if err := b.table(logical).Create(value).Error; err != nil {
			return 0, fmt.Errorf("creating %s %q: %w", logical, key, err)
		}
		found.ID = idOf(value)
	}
	b.ids[cacheKey] = found.ID
	return found.ID, nil
}

func idOf(v any) int64 {
	switch m := v.(type) {
	case *schema.Visitor:
		return m.ID
	case *schema.Country:
		return m.ID
	case *schema.City:
		return m.ID
	case *schema.DeviceType:
		return m.ID
	case *schema.DeviceBrowser:
		return m.ID
	case *schema.DeviceBrowserVersion:
		return m.ID
	case *schema.DeviceOS:
		return m.ID
	case *schema.Resolution:
		return m.ID
	case *schema.Language:
		return m.ID
	case *schema.Timezone:
		return m.ID
	case *schema.Referrer:
		return m.ID
	case *schema.Resource:
		return m.ID
	case *schema.ResourceURI:
		return m.ID
	}
	return 0
}

func optional(id int64, err error) (*int64, error) {
	if err != nil || id == 0 {
		return nil, err
	}
	return &id, nil
}

// Visitor returns the id of the visitor with hash, creating it when needed.
func (b *Builder) Visitor(hash string, firstSeen time.Time) (int64, error) {
	return b.dimension(schema.Visitors, hash,
		&schema.Visitor{Hash: hash, CreatedAt: firstSeen.UTC()},
		map[string]any{"hash": hash})
}

func (b *Builder) country(code string) (*int64, error) {
	if code == "" {
		return nil, nil
	}
	code = strings.ToUpper(code)
	row := &schema.Country{Code: code, Name: code}
	if c, ok := b.countries.CountryByCode(code); ok {
		row.Name = c.Name
		row.ContinentCode = geo.ContinentCode(c)
	}
	return optional(b.dimension(schema.Countries, code, row, map[string]any{"code": code}))
}

func (b *Builder) city(countryID *int64, name, region string) (*int64, error) {
	if name == "" || countryID == nil {
		return nil, nil
	}
	key := strconv.FormatInt(*countryID, 10) + ":" + name
	row := &schema.City{CountryID: *countryID, CityName: name, RegionName: region}
	return optional(b.dimension(schema.Cities, key, row, map[string]any{"country_id": *countryID, "city_name": name}))
}

func (b *Builder) named(logical, name string, row any) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	return optional(b.dimension(logical, name, row, map[string]any{"name": name}))
}

func (b *Builder) browserVersion(browserID *int64, version string) (*int64, error) {
	if browserID == nil || version == "" {
		return nil, nil
	}
	key := strconv.FormatInt(*browserID, 10) + ":" + version
	row := &schema.DeviceBrowserVersion{BrowserID: *browserID, Version: version}
	return optional(b.dimension(schema.DeviceBrowserVersions, key, row, map[string]any{"browser_id": *browserID, "version": version}))
}

func (b *Builder) resolution(size string) (*int64, error) {
	if size == "" {
		return nil, nil
	}
	w, h, ok := strings.Cut(size, "x")
	width, errW := strconv.Atoi(w)
	height, errH := strconv.Atoi(h)
	if !ok || errW != nil || errH != nil {
		return nil, fmt.Errorf("invalid resolution %q", size)
	}
	row := &schema.Resolution{Width: width, Height: height}
	return optional(b.dimension(schema.Resolutions, size, row, map[string]any{"width": width, "height": height}))
}

func (b *Builder) language(code string) (*int64, error) {
	if code == "" {
		return nil, nil
	}
	row := &schema.Language{Code: code, Name: code}
	return optional(b.dimension(schema.Languages, code, row, map[string]any{"code": code}))
}

func (b *Builder) referrer(domain string) (*int64, error) {
	if domain == "" {
		return nil, nil
	}
	domain = strings.ToLower(domain)
	row := &schema.Referrer{
		Domain:  domain,
		Name:    referrers.FriendlyName(domain),
		Channel: string(referrers.ChannelOf(domain)),
	}
	return optional(b.dimension(schema.Referrers, domain, row, map[string]any{"domain": domain}))
}

// resource returns the resource and URI ids of a view, creating them on first use.
func (b *Builder) resource(v ViewInput) (int64, int64, error) {
	resourceType := v.ResourceType
	if resourceType == "" {
		resourceType = "page"
	}
	res := &schema.Resource{
		ResourceType:   resourceType,
		ObjectID:       v.ObjectID,
		CachedTitle:    v.Title,
		CachedAuthorID: v.AuthorID,
	}
	if key := "uri:" + v.URI; b.ids[key] != 0 {
		return b.ids["resource-of:"+v.URI], b.ids[key], nil
	}

	var existing schema.ResourceURI
	err := b.table(schema.ResourceURIs).Where("uri = ?", v.URI).Limit(1).Find(&existing).Error
	if err != nil {
		return 0, 0, fmt.Errorf("looking up uri %q: %w", v.URI, err)
	}
	if existing.ID == 0 {
		if err := b.table(schema.Resources).Create(res).Error; err != nil {
			return 0, 0, fmt.Errorf("creating resource for %q: %w", v.URI, err)
		}
		existing = schema.ResourceURI{ResourceID: res.ID, URI: v.URI}
		if err := b.table(schema.ResourceURIs).Create(&existing).Error; err != nil {
			return 0, 0, fmt.Errorf("creating uri %q: %w", v.URI, err)
		}
	}
	b.ids["uri:"+v.URI] = existing.ID
	b.ids["resource-of:"+v.URI] = existing.ResourceID
	return existing.ResourceID, existing.ID, nil
}

// Session writes a session with its views and parameters and returns it.
// Views are spaced by their durations starting at StartedAt.
func (b *Builder) Session(in SessionInput) (*schema.Session, error) {
	started := in.StartedAt.UTC()
	visitorID, err := b.Visitor(in.Visitor, started)
	if err != nil {
		return nil, err
	}

	s := &schema.Session{VisitorID: visitorID, UserID: in.UserID, StartedAt: started}
	if s.CountryID, err = b.country(in.Country); err != nil {
		return nil, err
	}
	if s.CityID, err = b.city(s.CountryID, in.City, in.Region); err != nil {
		return nil, err
	}
	if s.DeviceTypeID, err = b.named(schema.DeviceTypes, in.DeviceType, &schema.DeviceType{Name: in.DeviceType}); err != nil {
		return nil, err
	}
	if s.DeviceBrowserID, err = b.named(schema.DeviceBrowsers, in.Browser, &schema.DeviceBrowser{Name: in.Browser}); err != nil {
		return nil, err
	}
	if s.DeviceBrowserVersionID, err = b.browserVersion(s.DeviceBrowserID, in.BrowserVersion); err != nil {
		return nil, err
	}
	if s.DeviceOSID, err = b.named(schema.DeviceOSs, in.OS, &schema.DeviceOS{Name: in.OS}); err != nil {
		return nil, err
	}
	if s.ResolutionID, err = b.resolution(in.Resolution); err != nil {
		return nil, err
	}
	if s.LanguageID, err = b.language(in.Language); err != nil {
		return nil, err
	}
	if s.TimezoneID, err = b.named(schema.Timezones, in.Timezone, &schema.Timezone{Name: in.Timezone}); err != nil {
		return nil, err
	}
	if s.ReferrerID, err = b.referrer(in.Referrer); err != nil {
		return nil, err
	}

	s.EndedAt = started
	if err := b.table(schema.Sessions).Create(s).Error; err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	at := started
	var prev *schema.View
	for _, vi := range in.Views {
		resourceID, uriID, err := b.resource(vi)
		if err != nil {
			return nil, err
		}
		v := &schema.View{
			SessionID:     s.ID,
			ResourceID:    &resourceID,
			ResourceURIID: &uriID,
			ViewedAt:      at,
			Duration:      vi.Duration,
		}
		if err := b.table(schema.Views).Create(v).Error; err != nil {
			return nil, fmt.Errorf("creating view: %w", err)
		}
		if prev == nil {
			s.InitialViewID = &v.ID
		} else {
			if err := b.table(schema.Views).Where("id = ?", prev.ID).Update("next_view_id", v.ID).Error; err != nil {
				return nil, fmt.Errorf("linking views: %w", err)
			}
		}
		s.LastViewID = &v.ID
		s.TotalViews++
		s.Duration += vi.Duration
		at = at.Add(time.Duration(vi.Duration) * time.Second)
		prev = v
	}
	if in.Duration > 0 {
		s.Duration = in.Duration
	}
	s.EndedAt = started.Add(time.Duration(s.Duration) * time.Second)

	err = b.table(schema.Sessions).Where("id = ?", s.ID).Updates(map[string]any{
		"initial_view_id": s.InitialViewID,
		"last_view_id":    s.LastViewID,
		"total_views":     s.TotalViews,
		"duration":        s.Duration,
		"ended_at":        s.EndedAt,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("finalizing session: %w", err)
	}

	for name, value := range in.UTM {
		p := &schema.Parameter{SessionID: s.ID, ViewID: s.InitialViewID, ParameterName: "utm_" + name, ParameterValue: value}
		if err := b.table(schema.Parameters).Create(p).Error; err != nil {
			return nil, fmt.Errorf("creating parameter: %w", err)
		}
	}
	return s, nil
}

// User writes a host user.
func (b *Builder) User(u *hostdata.User) error {
	return b.db.Table(b.tables.Host(schema.HostUsers)).Create(u).Error
}

// Term writes a host term and attaches it to the given content objects.
func (b *Builder) Term(t *hostdata.Term, objectIDs ...int64) error {
	if err := b.db.Table(b.tables.Host(schema.HostTerms)).Create(t).Error; err != nil {
		return err
	}
	for _, objectID := range objectIDs {
		rel := &hostdata.TermRelationship{ObjectID: objectID, TermID: t.ID}
		if err := b.db.Table(b.tables.Host(schema.HostTermRelationships)).Create(rel).Error; err != nil {
			return err
		}
	}
	return nil
}
