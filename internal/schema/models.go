package schema

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Visitor is one anonymous visitor, identified by a salted hash.
type Visitor struct {
	ID        int64     `gorm:"primaryKey"`
	Hash      string    `gorm:"size:64;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// Session is one visit. Dimension ids are nullable because the tracker may
// not resolve every attribute.
type Session struct {
	ID                     int64  `gorm:"primaryKey"`
	VisitorID              int64  `gorm:"index;not null"`
	UserID                 *int64 `gorm:"index"`
	ReferrerID             *int64
	CountryID              *int64 `gorm:"index"`
	CityID                 *int64
	DeviceTypeID           *int64
	DeviceBrowserID        *int64
	DeviceBrowserVersionID *int64
	DeviceOSID             *int64 `gorm:"column:device_os_id"`
	ResolutionID           *int64
	LanguageID             *int64
	TimezoneID             *int64
	InitialViewID          *int64
	LastViewID             *int64
	TotalViews             int       `gorm:"not null;default:0"`
	Duration               int       `gorm:"not null;default:0"`
	StartedAt              time.Time `gorm:"index;not null"`
	EndedAt                time.Time `gorm:"not null"`
}

// View is one page view inside a session.
type View struct {
	ID            int64  `gorm:"primaryKey"`
	SessionID     int64  `gorm:"index;not null"`
	ResourceID    *int64 `gorm:"index"`
	ResourceURIID *int64 `gorm:"column:resource_uri_id"`
	NextViewID    *int64
	ViewedAt      time.Time `gorm:"index;not null"`
	Duration      int       `gorm:"not null;default:0"`
}

// Resource is a piece of host content (post, page, archive) that was viewed.
type Resource struct {
	ID             int64  `gorm:"primaryKey"`
	ResourceType   string `gorm:"size:64;index;not null"`
	ObjectID       *int64 `gorm:"index"`
	CachedTitle    string
	CachedAuthorID *int64
	CachedDate     *time.Time
}

// ResourceURI is one URI under which a resource was reached.
type ResourceURI struct {
	ID         int64  `gorm:"primaryKey"`
	ResourceID int64  `gorm:"index;not null"`
	URI        string `gorm:"column:uri;uniqueIndex;not null"`
}

type Referrer struct {
	ID      int64  `gorm:"primaryKey"`
	Channel string `gorm:"size:32;not null"`
	Name    string
	Domain  string `gorm:"uniqueIndex;not null"`
}

type Country struct {
	ID            int64  `gorm:"primaryKey"`
	Code          string `gorm:"size:2;uniqueIndex;not null"`
	Name          string `gorm:"not null"`
	ContinentCode string `gorm:"size:2"`
}

type City struct {
	ID         int64 `gorm:"primaryKey"`
	CountryID  int64 `gorm:"index;not null"`
	RegionCode string
	RegionName string
	CityName   string `gorm:"not null"`
}

type DeviceType struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

type DeviceBrowser struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

type DeviceBrowserVersion struct {
	ID        int64  `gorm:"primaryKey"`
	BrowserID int64  `gorm:"index;not null"`
	Version   string `gorm:"not null"`
}

type DeviceOS struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

type Resolution struct {
	ID     int64 `gorm:"primaryKey"`
	Width  int   `gorm:"not null"`
	Height int   `gorm:"not null"`
}

type Language struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"size:16;uniqueIndex;not null"`
	Name string
}

type Timezone struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"uniqueIndex;not null"`
}

// Parameter stores a tracked query parameter (utm_source, utm_medium...) of a session.
type Parameter struct {
	ID             int64  `gorm:"primaryKey"`
	SessionID      int64  `gorm:"uniqueIndex:idx_parameter_session_name;not null"`
	ViewID         *int64
	ParameterName  string `gorm:"size:64;uniqueIndex:idx_parameter_session_name;not null"`
	ParameterValue string `gorm:"not null"`
}

// Model pairs a logical table name with the struct that defines it.
type Model struct {
	Table string
	Value any
}

// Models returns every analytics model keyed by logical table name.
func Models() []Model {
	return []Model{
		{Visitors, &Visitor{}},
		{Sessions, &Session{}},
		{Views, &View{}},
		{Resources, &Resource{}},
		{ResourceURIs, &ResourceURI{}},
		{Referrers, &Referrer{}},
		{Countries, &Country{}},
		{Cities, &City{}},
		{DeviceTypes, &DeviceType{}},
		{DeviceBrowsers, &DeviceBrowser{}},
		{DeviceBrowserVersions, &DeviceBrowserVersion{}},
		{DeviceOSs, &DeviceOS{}},
		{Resolutions, &Resolution{}},
		{Languages, &Language{}},
		{Timezones, &Timezone{}},
		{Parameters, &Parameter{}},
	}
}

// AutoMigrate creates or updates every analytics table under its physical name.
// Production schemas are owned by the tracking pipeline; this exists for
// development databases and tests.
func AutoMigrate(db *gorm.DB, tables Tables) error {
	for _, m := range Models() {
		if err := db.Table(tables.Name(m.Table)).AutoMigrate(m.Value); err != nil {
			return fmt.Errorf("migrating %s: %w", m.Table, err)
		}
	}
	return nil
}

// Table returns a session scoped to the physical name of an analytics table.
func Table(db *gorm.DB, tables Tables, logical string) *gorm.DB {
	return db.Table(tables.Name(logical))
}
