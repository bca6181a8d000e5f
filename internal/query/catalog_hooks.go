package query

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"webstats/internal/pkg/referrers"
)

const unknownLabel = "Unknown"

// labelHook writes a title-cased copy of source into output.
func labelHook(name, source, output string) Hook {
	return Hook{
		Name:    name,
		Outputs: []string{output},
		Needs:   []string{source},
		Run: func(_ context.Context, _ Lookups, rows []Row) error {
			caser := cases.Title(language.AmericanEnglish)
			for _, row := range rows {
				s, ok := asString(row[source])
				if !ok || s == "" {
					row[output] = unknownLabel
					continue
				}
				row[output] = caser.String(strings.ReplaceAll(s, "_", " "))
			}
			return nil
		},
	}
}

func referrerLabelHook() Hook {
	return Hook{
		Name:    "referrer_label",
		Outputs: []string{"referrer_label"},
		Needs:   []string{"referrer_domain"},
		Run: func(_ context.Context, _ Lookups, rows []Row) error {
			for _, row := range rows {
				domain, _ := asString(row["referrer_domain"])
				if domain == "" {
					row["referrer_label"] = "Direct / Unknown"
					continue
				}
				row["referrer_label"] = referrers.FriendlyName(domain)
			}
			return nil
		},
	}
}

func countryHook() Hook {
	return Hook{
		Name:    "country_continent",
		Outputs: []string{"country_continent", "country_region", "country_subregion"},
		Needs:   []string{"country_code"},
		Run: func(_ context.Context, l Lookups, rows []Row) error {
			if l.Countries == nil {
				return ErrLookupUnavailable
			}
			for _, row := range rows {
				code, _ := asString(row["country_code"])
				if code == "" {
					continue
				}
				if c, ok := l.Countries.CountryByCode(code); ok {
					row["country_continent"] = c.Continent
					row["country_region"] = c.Region
					row["country_subregion"] = c.SubRegion
				}
			}
			return nil
		},
	}
}

func userHook() Hook {
	return Hook{
		Name:    "user",
		Outputs: []string{"user_display_name"},
		Needs:   []string{"user_id"},
		Run: func(ctx context.Context, l Lookups, rows []Row) error {
			if l.Users == nil {
				return ErrLookupUnavailable
			}
			ids := collectIDs(rows, "user_id")
			if len(ids) == 0 {
				return nil
			}
			users, err := l.Users.UsersByID(ctx, ids)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if id, ok := asInt64(row["user_id"]); ok {
					if u, found := users[id]; found {
						row["user_display_name"] = u.DisplayName
					}
				}
			}
			return nil
		},
	}
}

func authorHook() Hook {
	return Hook{
		Name:    "author",
		Outputs: []string{"author_name", "author_url"},
		Needs:   []string{"author_id"},
		Run: func(ctx context.Context, l Lookups, rows []Row) error {
			if l.Users == nil {
				return ErrLookupUnavailable
			}
			ids := collectIDs(rows, "author_id")
			if len(ids) == 0 {
				return nil
			}
			users, err := l.Users.UsersByID(ctx, ids)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if id, ok := asInt64(row["author_id"]); ok {
					if u, found := users[id]; found {
						row["author_name"] = u.DisplayName
						row["author_url"] = u.URL
					}
				}
			}
			return nil
		},
	}
}

// resourceTermsHook lists the names of the terms attached to each resource.
func resourceTermsHook() Hook {
	return Hook{
		Name:    "resource_terms",
		Outputs: []string{"term_names"},
		Needs:   []string{"resource_object_id"},
		Run: func(ctx context.Context, l Lookups, rows []Row) error {
			if l.Terms == nil {
				return ErrLookupUnavailable
			}
			ids := collectIDs(rows, "resource_object_id")
			if len(ids) == 0 {
				return nil
			}
			byObject, err := l.Terms.TermsByObject(ctx, ids)
			if err != nil {
				return err
			}
			for _, row := range rows {
				id, ok := asInt64(row["resource_object_id"])
				if !ok {
					continue
				}
				names := make([]string, 0, len(byObject[id]))
				for _, term := range byObject[id] {
					names = append(names, term.Name)
				}
				row["term_names"] = names
			}
			return nil
		},
	}
}

func termHook() Hook {
	return Hook{
		Name:    "term",
		Outputs: []string{"term_name", "term_taxonomy"},
		Needs:   []string{"term_id"},
		Run: func(ctx context.Context, l Lookups, rows []Row) error {
			if l.Terms == nil {
				return ErrLookupUnavailable
			}
			ids := collectIDs(rows, "term_id")
			if len(ids) == 0 {
				return nil
			}
			terms, err := l.Terms.TermsByID(ctx, ids)
			if err != nil {
				return err
			}
			for _, row := range rows {
				if id, ok := asInt64(row["term_id"]); ok {
					if term, found := terms[id]; found {
						row["term_name"] = term.Name
						row["term_taxonomy"] = term.Taxonomy
					}
				}
			}
			return nil
		},
	}
}
