package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/karloscodes/cartridge"
	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"

	"webstats/internal/hostdata"
	"webstats/internal/schema"
)

// Seeder fills a development database with synthetic but coherent traffic.
type Seeder struct {
	DBManager    cartridge.DBManager
	Logger       *slog.Logger
	Tables       schema.Tables
	SessionCount int
	// Seed makes the generated data reproducible.
	Seed uint64
	Now  func() time.Time
}

// NewSeeder creates a new seeder instance
func NewSeeder(dbManager cartridge.DBManager, tables schema.Tables, logger *slog.Logger, sessionCount int) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		DBManager:    dbManager,
		Logger:       logger,
		Tables:       tables,
		SessionCount: sessionCount,
		Seed:         1,
		Now:          time.Now,
	}
}

type page struct {
	uri          string
	title        string
	resourceType string
	objectID     int64
	authorID     int64
}

// Realistic paths users take through a content site.
var journeyTemplates = [][]string{
	{"/", "/about", "/contact"},
	{"/", "/blog", "/blog/getting-started", "/pricing"},
	{"/blog/getting-started", "/blog/advanced-queries"},
	{"/pricing", "/features", "/signup"},
	{"/", "/products", "/products/widget-a", "/products/gadget-b", "/pricing"},
	{"/", "/docs", "/docs/api-reference"},
	{"/", "/blog", "/blog/getting-started", "/blog/release-notes"},
	{"/", "/signup"},
	{"/blog/release-notes"},
	{"/products", "/products/widget-a", "/pricing", "/signup"},
	{"/", "/about", "/features", "/pricing", "/docs", "/signup"},
	{"/account", "/account/settings"},
}

var pages = map[string]page{
	"/":                      {"/", "Home", "home", 0, 0},
	"/about":                 {"/about", "About us", "page", 2, 1},
	"/contact":               {"/contact", "Contact", "page", 3, 1},
	"/blog":                  {"/blog", "Blog", "archive", 0, 0},
	"/blog/getting-started":  {"/blog/getting-started", "Getting started", "post", 10, 1},
	"/blog/advanced-queries": {"/blog/advanced-queries", "Advanced queries", "post", 11, 2},
	"/blog/release-notes":    {"/blog/release-notes", "Release notes", "post", 12, 2},
	"/pricing":               {"/pricing", "Pricing", "page", 4, 1},
	"/features":              {"/features", "Features", "page", 5, 1},
	"/signup":                {"/signup", "Sign up", "page", 6, 1},
	"/products":              {"/products", "Products", "archive", 0, 0},
	"/products/widget-a":     {"/products/widget-a", "Widget A", "product", 20, 3},
	"/products/gadget-b":     {"/products/gadget-b", "Gadget B", "product", 21, 3},
	"/docs":                  {"/docs", "Documentation", "page", 7, 2},
	"/docs/api-reference":    {"/docs/api-reference", "API reference", "page", 8, 2},
	"/account":               {"/account", "Account", "page", 9, 0},
	"/account/settings":      {"/account/settings", "Account settings", "page", 13, 0},
}

type device struct {
	deviceType, browser, version, os, resolution string
}

var devices = []device{
	{"desktop", "chrome", "128.0", "windows", "1920x1080"},
	{"desktop", "safari", "17.4", "macos", "2560x1440"},
	{"mobile", "safari", "17.4", "ios", "390x844"},
	{"mobile", "chrome", "128.0", "android", "412x915"},
	{"desktop", "firefox", "130.0", "linux", "1920x1080"},
	{"tablet", "safari", "17.4", "ios", "820x1180"},
}

type place struct {
	country, city, region, language, timezone string
}

var places = []place{
	{"US", "New York", "New York", "en-US", "America/New_York"},
	{"US", "San Francisco", "California", "en-US", "America/Los_Angeles"},
	{"DE", "Berlin", "Berlin", "de-DE", "Europe/Berlin"},
	{"FR", "Paris", "Ile-de-France", "fr-FR", "Europe/Paris"},
	{"BR", "Sao Paulo", "Sao Paulo", "pt-BR", "America/Sao_Paulo"},
	{"JP", "Tokyo", "Tokyo", "ja-JP", "Asia/Tokyo"},
	{"ES", "Madrid", "Madrid", "es-ES", "Europe/Madrid"},
}

var referrerDomains = []string{
	"", // direct
	"",
	"google.com",
	"bing.com",
	"duckduckgo.com",
	"facebook.com",
	"twitter.com",
	"linkedin.com",
	"news.ycombinator.com",
	"mail.google.com",
	"some-other-website.com",
}

var utmChoices = map[string][]string{
	"source":   {"google", "facebook", "newsletter", "twitter", "linkedin"},
	"medium":   {"cpc", "social", "email", "organic", "referral"},
	"campaign": {"spring_sale", "product_launch", "dev_outreach", "q4_promo"},
}

var hostUsers = []hostdata.User{
	{ID: 1, Login: "admin", DisplayName: "Site Admin", Email: "admin@example.com", URL: "https://example.com/author/admin", Role: "administrator"},
	{ID: 2, Login: "jdoe", DisplayName: "Jamie Doe", Email: "jamie@example.com", URL: "https://example.com/author/jdoe", Role: "editor"},
	{ID: 3, Login: "store", DisplayName: "Store Team", Email: "store@example.com", Role: "shop_manager"},
	{ID: 4, Login: "member", DisplayName: "Member", Email: "member@example.com", Role: "subscriber"},
}

var hostTerms = []struct {
	term    hostdata.Term
	objects []int64
}{
	{hostdata.Term{ID: 1, Name: "Tutorials", Slug: "tutorials", Taxonomy: "category"}, []int64{10, 11}},
	{hostdata.Term{ID: 2, Name: "News", Slug: "news", Taxonomy: "category"}, []int64{12}},
	{hostdata.Term{ID: 3, Name: "sql", Slug: "sql", Taxonomy: "post_tag"}, []int64{11}},
	{hostdata.Term{ID: 4, Name: "Gadgets", Slug: "gadgets", Taxonomy: "product_cat"}, []int64{20, 21}},
}

// Run seeds host data and SessionCount sessions spread over the last 30 days.
func (s *Seeder) Run(ctx context.Context) error {
	start := time.Now()
	s.Logger.Info("Seeding database...", slog.Int("sessionCount", s.SessionCount))

	db := s.DBManager.GetConnection()
	if db == nil {
		return gorm.ErrInvalidDB
	}
	builder := NewBuilder(db, s.Tables)

	err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
		return s.seedHostData(builder.WithDB(tx))
	})
	if err != nil {
		return fmt.Errorf("failed to seed host data: %w", err)
	}

	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
	visitors := s.visitorPool(rng, max(s.SessionCount/3, 1))
	now := s.Now().UTC()

	created := 0
	for created < s.SessionCount {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		batch := min(100, s.SessionCount-created)
		inputs := make([]SessionInput, 0, batch)
		for i := 0; i < batch; i++ {
			inputs = append(inputs, s.randomSession(rng, visitors, now))
		}
		err := sqlite.PerformWrite(s.Logger, db, func(tx *gorm.DB) error {
			b := builder.WithDB(tx)
			for _, in := range inputs {
				if _, err := b.Session(in); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to seed sessions: %w", err)
		}
		created += batch
	}

	s.Logger.Info("Seeding completed successfully",
		slog.Int("sessions", created),
		slog.Int("visitors", len(visitors)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

func (s *Seeder) seedHostData(b *Builder) error {
	var count int64
	if err := b.db.Table(s.Tables.Host(schema.HostUsers)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		s.Logger.Info("Host data already present, skipping")
		return nil
	}
	for i := range hostUsers {
		u := hostUsers[i]
		if err := b.User(&u); err != nil {
			return err
		}
	}
	for _, t := range hostTerms {
		term := t.term
		if err := b.Term(&term, t.objects...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) visitorPool(rng *rand.Rand, n int) []string {
	hashes := make([]string, n)
	for i := range hashes {
		hashes[i] = fmt.Sprintf("%016x%016x", rng.Uint64(), rng.Uint64())
	}
	return hashes
}

func (s *Seeder) randomSession(rng *rand.Rand, visitors []string, now time.Time) SessionInput {
	journey := journeyTemplates[rng.IntN(len(journeyTemplates))]
	d := devices[rng.IntN(len(devices))]
	p := places[rng.IntN(len(places))]

	in := SessionInput{
		Visitor:        visitors[rng.IntN(len(visitors))],
		StartedAt:      now.Add(-time.Duration(rng.IntN(30*24*60*60)) * time.Second),
		Country:        p.country,
		City:           p.city,
		Region:         p.region,
		Language:       p.language,
		Timezone:       p.timezone,
		DeviceType:     d.deviceType,
		Browser:        d.browser,
		BrowserVersion: d.version,
		OS:             d.os,
		Resolution:     d.resolution,
		Referrer:       referrerDomains[rng.IntN(len(referrerDomains))],
	}

	// Account pages are only reached by logged-in members.
	if journey[0] == "/account" {
		id := int64(4)
		in.UserID = &id
	} else if rng.IntN(20) == 0 {
		id := int64(rng.IntN(3) + 1)
		in.UserID = &id
	}

	if rng.IntN(10) < 2 {
		in.UTM = make(map[string]string, len(utmChoices))
		for _, key := range []string{"source", "medium", "campaign"} {
			values := utmChoices[key]
			in.UTM[key] = values[rng.IntN(len(values))]
		}
	}

	for i, uri := range journey {
		pg := pages[uri]
		v := ViewInput{URI: pg.uri, Title: pg.title, ResourceType: pg.resourceType}
		if pg.objectID != 0 {
			objectID := pg.objectID
			v.ObjectID = &objectID
		}
		if pg.authorID != 0 {
			authorID := pg.authorID
			v.AuthorID = &authorID
		}
		// The last view of a session has no measured duration.
		if i < len(journey)-1 {
			v.Duration = rng.IntN(110) + 10
		}
		in.Views = append(in.Views, v)
	}
	return in
}
