// Package seed loads demo assessments for local development.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/pricing"
	"github.com/Simplici0/studio-quotes/internal/store"
)

// Store is the part of store.SQL the seed needs.
type Store interface {
	Load(ctx context.Context, id string) (store.Record, error)
	Save(ctx context.Context, rec store.Record) error
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

type demo struct {
	id      string
	answers assessment.Answers
}

var demos = []demo{
	{
		id: "demo-bakery-website",
		answers: assessment.Answers{
			ProjectName:        "Corner Bakery Website",
			ProjectType:        assessment.TypeWebsite,
			ProjectDescription: "Menu, opening hours and catering requests for a neighbourhood bakery.",
			TargetAudience:     "Local customers",
			MainGoals:          []string{"Take catering requests online", "Show the weekly menu"},
			Platform:           []string{"web"},
			MustHaveFeatures:   []string{"contact-form", "blog"},
			PreferredTimeline:  "standard",
			Budget:             "2-5k",
			DesignLevel:        "standard",
			DomainServices:     []string{"domain-registration"},
			ClientName:         "Corner Bakery",
			ClientEmail:        "hello@cornerbakery.example",
		},
	},
	{
		id: "demo-client-portal",
		answers: assessment.Answers{
			ProjectName:       "Client Portal",
			ProjectType:       assessment.TypeWebapp,
			TargetAudience:    "Existing B2B customers",
			Platform:          []string{"web"},
			MustHaveFeatures:  []string{"user-auth", "payments", "chat"},
			PreferredTimeline: "rush",
			Budget:            "10k+",
			DesignLevel:       "premium",
			Integrations:      []string{"stripe"},
		},
	},
}

// Run inserts the demo assessments that are missing and refreshes the ones
// priced with another catalog version. It is safe to run on every start.
func Run(ctx context.Context, st Store, c *catalog.Catalog, now time.Time) (Stats, error) {
	stats := Stats{}
	for _, d := range demos {
		if err := ensureDemo(ctx, st, c, now.UTC(), d, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func ensureDemo(ctx context.Context, st Store, c *catalog.Catalog, now time.Time, d demo, stats *Stats) error {
	existing, err := st.Load(ctx, d.id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		b := pricing.Compute(d.answers, c)
		rec := store.Record{ID: d.id, Version: 1, Answers: d.answers, Pricing: &b, CreatedAt: now, UpdatedAt: now}
		if err := st.Save(ctx, rec); err != nil {
			return fmt.Errorf("insert demo assessment %s: %w", d.id, err)
		}
		stats.Inserts++
		return nil
	case err != nil:
		return fmt.Errorf("check demo assessment %s: %w", d.id, err)
	}

	if existing.Pricing != nil && existing.Pricing.CatalogVersion == c.Version {
		return nil
	}
	b := pricing.Compute(existing.Answers, c)
	existing.Pricing = &b
	existing.UpdatedAt = now
	if err := st.Save(ctx, existing); err != nil {
		return fmt.Errorf("refresh demo assessment %s: %w", d.id, err)
	}
	stats.Updates++
	return nil
}
