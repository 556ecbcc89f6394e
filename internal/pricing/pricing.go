package pricing

import (
	"sort"
	"strings"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/money"
)

// SchemaVersion is bumped whenever the Breakdown layout changes.
const SchemaVersion = 1

// FeatureLine is one priced must-have feature. Requested is the name as the
// client wrote it, which may be an alias or differ in case from Key.
type FeatureLine struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Requested string `json:"requested,omitempty"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
}

// PlatformCost prices the set of target platforms.
type PlatformCost struct {
	Platforms []string `json:"platforms"`
	Price     int64    `json:"price"`
}

// DesignCost prices the requested design level.
type DesignCost struct {
	Level      string  `json:"level"`
	Multiplier float64 `json:"multiplier"`
	Price      int64   `json:"price"`
}

// IntegrationCost prices the distinct integrations.
type IntegrationCost struct {
	Names []string `json:"names,omitempty"`
	Count int      `json:"count"`
	Price int64    `json:"price"`
}

// Complexity is derived from counted scope signals, never supplied by the client.
type Complexity struct {
	Level       string  `json:"level"`
	Score       int     `json:"score"`
	Multiplier  float64 `json:"multiplier"`
	Description string  `json:"description"`
}

// Timeline carries the delivery pace. Rush timelines always have a
// multiplier above 1.
type Timeline struct {
	Key         string  `json:"key"`
	Rush        bool    `json:"rush"`
	Multiplier  float64 `json:"multiplier"`
	Weeks       int     `json:"weeks"`
	Description string  `json:"description"`
}

// EstimatedRange is the market reference band for the project type. It is
// not derived from FinalTotal.
type EstimatedRange struct {
	Min     int64 `json:"min"`
	Max     int64 `json:"max"`
	Average int64 `json:"average"`
}

// Breakdown is the itemized price of an assessment. Amounts are in cents.
// It is always recomputed from the answers and never edited by hand.
type Breakdown struct {
	SchemaVersion      int             `json:"schemaVersion"`
	CatalogVersion     string          `json:"catalogVersion"`
	ProjectType        string          `json:"projectType"`
	BasePrice          int64           `json:"basePrice"`
	Features           []FeatureLine   `json:"features"`
	UnresolvedFeatures []string        `json:"unresolvedFeatures,omitempty"`
	Platform           PlatformCost    `json:"platform"`
	Design             DesignCost      `json:"design"`
	Integrations       IntegrationCost `json:"integrations"`
	Complexity         Complexity      `json:"complexity"`
	Timeline           Timeline        `json:"timeline"`
	Subtotal           int64           `json:"subtotal"`
	FinalTotal         int64           `json:"finalTotal"`
	EstimatedRange     EstimatedRange  `json:"estimatedRange"`
}

// FeaturesTotal sums the feature lines.
func (b Breakdown) FeaturesTotal() int64 {
	var total int64
	for _, f := range b.Features {
		total += f.Price
	}
	return total
}

// ExpectedTotal applies the multipliers to the itemized lines.
func (b Breakdown) ExpectedTotal() int64 {
	subtotal := b.BasePrice + b.FeaturesTotal() + b.Platform.Price + b.Design.Price + b.Integrations.Price
	return money.Apply(subtotal, b.Complexity.Multiplier, b.Timeline.Multiplier)
}

// Consistent reports whether FinalTotal matches the itemized lines.
func (b Breakdown) Consistent() bool {
	return b.FinalTotal == b.ExpectedTotal()
}

// Compute prices the answers against the catalog. Must-have features that
// the catalog does not know are excluded from every total and listed in
// UnresolvedFeatures. Feature lines keep the order of the answers.
func Compute(a assessment.Answers, c *catalog.Catalog) Breakdown {
	projectType, _ := c.ProjectType(a.ProjectType)

	features, unresolved := resolveFeatures(a.MustHaveFeatures, c)
	platform := platformCost(a.Platform, c)
	design := designCost(a.DesignLevel, c)
	integrations := integrationCost(a.Integrations, c)

	score := len(features) + integrations.Count + len(platform.Platforms)
	band := c.ComplexityFor(score)

	tl, _ := c.Timeline(a.PreferredTimeline)

	b := Breakdown{
		SchemaVersion:      SchemaVersion,
		CatalogVersion:     c.Version,
		ProjectType:        projectType.Key,
		BasePrice:          projectType.BasePrice,
		Features:           features,
		UnresolvedFeatures: unresolved,
		Platform:           platform,
		Design:             design,
		Integrations:       integrations,
		Complexity: Complexity{
			Level:       band.Level,
			Score:       score,
			Multiplier:  band.Multiplier,
			Description: band.Description,
		},
		Timeline: Timeline{
			Key:         tl.Key,
			Rush:        tl.Rush,
			Multiplier:  tl.Multiplier,
			Weeks:       tl.Weeks,
			Description: tl.Description,
		},
		EstimatedRange: EstimatedRange{
			Min:     projectType.MarketRange.Min,
			Max:     projectType.MarketRange.Max,
			Average: (projectType.MarketRange.Min + projectType.MarketRange.Max) / 2,
		},
	}

	b.Subtotal = b.BasePrice + b.FeaturesTotal() + platform.Price + design.Price + integrations.Price
	b.FinalTotal = money.Apply(b.Subtotal, band.Multiplier, tl.Multiplier)

	return b
}

func resolveFeatures(names []string, c *catalog.Catalog) ([]FeatureLine, []string) {
	features := make([]FeatureLine, 0, len(names))
	var unresolved []string

	seen := make(map[string]bool, len(names))
	seenUnknown := make(map[string]bool)
	for _, name := range names {
		key := catalog.NormalizeKey(name)
		if key == "" {
			continue
		}
		f, ok := c.Feature(name)
		if !ok {
			if !seenUnknown[key] {
				seenUnknown[key] = true
				unresolved = append(unresolved, strings.TrimSpace(name))
			}
			continue
		}
		if seen[f.Key] {
			continue
		}
		seen[f.Key] = true
		features = append(features, FeatureLine{
			Key:       f.Key,
			Name:      f.Name,
			Requested: strings.TrimSpace(name),
			Category:  f.Category,
			Price:     f.Price,
		})
	}
	return features, unresolved
}

// platformCost charges every distinct platform's increment except the
// cheapest one, which the base price covers.
func platformCost(platforms []string, c *catalog.Catalog) PlatformCost {
	keys := distinct(platforms)
	if len(keys) == 0 {
		return PlatformCost{Platforms: []string{}}
	}

	var sum int64
	cheapest := c.PlatformIncrement(keys[0])
	for _, k := range keys {
		inc := c.PlatformIncrement(k)
		sum += inc
		if inc < cheapest {
			cheapest = inc
		}
	}
	return PlatformCost{Platforms: keys, Price: sum - cheapest}
}

func designCost(level string, c *catalog.Catalog) DesignCost {
	d, _ := c.DesignLevel(level)
	return DesignCost{
		Level:      d.Key,
		Multiplier: d.Multiplier,
		Price:      money.Apply(c.Design.BaseCost, d.Multiplier),
	}
}

func integrationCost(names []string, c *catalog.Catalog) IntegrationCost {
	keys := distinct(names)
	var price int64
	for _, k := range keys {
		price += c.IntegrationCost(k)
	}
	return IntegrationCost{Names: keys, Count: len(keys), Price: price}
}

// distinct normalizes, drops empties and duplicates, and sorts so that set
// inputs price identically regardless of order.
func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		k := catalog.NormalizeKey(v)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
