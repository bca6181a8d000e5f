// Package geo resolves ISO 3166 country codes to display data using the
// bundled gountries database.
package geo

import (
	"strings"
	"sync"

	"github.com/pariz/gountries"

	"webstats/internal/query"
)

// Directory implements query.CountryLookup. The underlying database is
// loaded once and is read-only afterwards.
type Directory struct {
	countries *gountries.Query
	mu        sync.RWMutex
	memo      map[string]query.Country
}

var _ query.CountryLookup = (*Directory)(nil)

var (
	defaultDirectory *Directory
	defaultOnce      sync.Once
)

// Default returns the process-wide directory.
func Default() *Directory {
	defaultOnce.Do(func() {
		defaultDirectory = NewDirectory()
	})
	return defaultDirectory
}

func NewDirectory() *Directory {
	return &Directory{
		countries: gountries.New(),
		memo:      make(map[string]query.Country),
	}
}

// CountryByCode looks up an alpha-2 code, case-insensitively.
func (d *Directory) CountryByCode(code string) (query.Country, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return query.Country{}, false
	}

	d.mu.RLock()
	c, ok := d.memo[code]
	d.mu.RUnlock()
	if ok {
		return c, true
	}

	found, err := d.countries.FindCountryByAlpha(code)
	if err != nil {
		return query.Country{}, false
	}
	c = query.Country{
		Code:      code,
		Name:      found.Name.Common,
		Region:    found.Region,
		SubRegion: found.SubRegion,
	}
	c.Continent = continentNames[ContinentCode(c)]

	d.mu.Lock()
	d.memo[code] = c
	d.mu.Unlock()
	return c, true
}

var continentNames = map[string]string{
	"AF": "Africa",
	"AN": "Antarctica",
	"AS": "Asia",
	"EU": "Europe",
	"NA": "North America",
	"OC": "Oceania",
	"SA": "South America",
}

// ContinentCode returns the two-letter continent code of a country, or ""
// when it cannot be derived.
func ContinentCode(c query.Country) string {
	switch c.Region {
	case "Africa":
		return "AF"
	case "Asia":
		return "AS"
	case "Europe":
		return "EU"
	case "Oceania":
		return "OC"
	case "Antarctic", "Antarctica":
		return "AN"
	case "Americas":
		if c.SubRegion == "South America" {
			return "SA"
		}
		return "NA"
	}
	return ""
}
