// Package hostdata reads the host platform's users and taxonomy terms. The
// query engine resolves author names and term labels through it; it never
// writes to these tables outside of development seeding and tests.
package hostdata

import (
	"fmt"

	"gorm.io/gorm"

	"webstats/internal/schema"
)

// User is an account of the host platform.
type User struct {
	ID          int64  `gorm:"primaryKey"`
	Login       string `gorm:"size:60;uniqueIndex;not null"`
	DisplayName string `gorm:"not null"`
	Email       string
	URL         string `gorm:"column:url"`
	Role        string `gorm:"size:32;index"`
}

// Term is a taxonomy term (category, tag...) of the host platform.
type Term struct {
	ID       int64  `gorm:"primaryKey"`
	Name     string `gorm:"not null"`
	Slug     string `gorm:"index;not null"`
	Taxonomy string `gorm:"size:32;index;not null"`
}

// TermRelationship attaches a term to a content object.
type TermRelationship struct {
	ObjectID int64 `gorm:"primaryKey;autoIncrement:false"`
	TermID   int64 `gorm:"primaryKey;autoIncrement:false;index"`
}

// AutoMigrate creates the host tables under their prefixed names. Only
// development databases and tests need it; production hosts own these tables.
func AutoMigrate(db *gorm.DB, tables schema.Tables) error {
	models := []schema.Model{
		{Table: schema.HostUsers, Value: &User{}},
		{Table: schema.HostTerms, Value: &Term{}},
		{Table: schema.HostTermRelationships, Value: &TermRelationship{}},
	}
	for _, m := range models {
		if err := db.Table(tables.Host(m.Table)).AutoMigrate(m.Value); err != nil {
			return fmt.Errorf("migrating host table %s: %w", m.Table, err)
		}
	}
	return nil
}
