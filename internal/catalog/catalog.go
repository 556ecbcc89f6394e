// Package catalog holds the versioned reference data the pricing engine reads:
// features and their prices, project types, multipliers and budget brackets.
//
// A Catalog is loaded once and must not be modified afterwards; every lookup
// is a read.
package catalog

import (
	"strings"
)

// Catalog is the complete pricing reference table. Amounts are in cents.
type Catalog struct {
	Version        string                 `yaml:"version"`
	Defaults       Defaults               `yaml:"defaults"`
	ProjectTypes   map[string]ProjectType `yaml:"project_types"`
	Features       []Feature              `yaml:"features"`
	Platforms      Platforms              `yaml:"platforms"`
	Design         Design                 `yaml:"design"`
	Integrations   Integrations           `yaml:"integrations"`
	Complexity     []ComplexityBand       `yaml:"complexity"`
	Timelines      map[string]Timeline    `yaml:"timelines"`
	Budgets        []BudgetRange          `yaml:"budgets"`
	Alternatives   map[string]Alternative `yaml:"alternatives"`
	DomainServices map[string]string      `yaml:"domain_services"`

	featureIndex map[string]int
}

// Defaults names the entries used when an answer does not match the catalog.
type Defaults struct {
	ProjectType string `yaml:"project_type"`
	Timeline    string `yaml:"timeline"`
	DesignLevel string `yaml:"design_level"`
	Budget      string `yaml:"budget"`
}

// Range is a closed [Min, Max] band of cents.
type Range struct {
	Min int64 `yaml:"min" json:"min"`
	Max int64 `yaml:"max" json:"max"`
}

// ProjectType is the reference data keyed by the assessment's project type.
type ProjectType struct {
	Key                   string   `yaml:"-"`
	Label                 string   `yaml:"label"`
	BasePrice             int64    `yaml:"base_price"`
	MarketRange           Range    `yaml:"market_range"`
	TechnicalRequirements []string `yaml:"technical_requirements"`
	Deliverables          []string `yaml:"deliverables"`
	RecommendedFeatures   []string `yaml:"recommended_features"`

	// PhaseDeliverables is keyed by delivery phase name.
	PhaseDeliverables map[string][]string `yaml:"phase_deliverables"`
}

// Feature is a priced, catalogued capability.
type Feature struct {
	Key      string   `yaml:"key"`
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Price    int64    `yaml:"price"`
	Aliases  []string `yaml:"aliases"`
}

// Platforms prices each platform beyond the cheapest one.
type Platforms struct {
	DefaultIncrement int64            `yaml:"default_increment"`
	Increments       map[string]int64 `yaml:"increments"`
}

// Design prices the visual design effort as BaseCost times the level multiplier.
type Design struct {
	BaseCost int64                  `yaml:"base_cost"`
	Levels   map[string]DesignLevel `yaml:"levels"`
}

// DesignLevel is one entry of the design multiplier table.
type DesignLevel struct {
	Key          string   `yaml:"-"`
	Label        string   `yaml:"label"`
	Multiplier   float64  `yaml:"multiplier"`
	Deliverables []string `yaml:"deliverables"`
}

// Integrations prices third-party integrations, with per-key overrides.
type Integrations struct {
	DefaultCost int64            `yaml:"default_cost"`
	Overrides   map[string]int64 `yaml:"overrides"`
}

// ComplexityBand maps a scope score to a multiplier. A nil MaxScore marks
// the open-ended last band.
type ComplexityBand struct {
	Level       string  `yaml:"level"`
	MaxScore    *int    `yaml:"max_score"`
	Multiplier  float64 `yaml:"multiplier"`
	Description string  `yaml:"description"`
}

// Timeline is a delivery pace and its price multiplier.
type Timeline struct {
	Key         string  `yaml:"-"`
	Label       string  `yaml:"label"`
	Rush        bool    `yaml:"rush"`
	Multiplier  float64 `yaml:"multiplier"`
	Weeks       int     `yaml:"weeks"`
	Description string  `yaml:"description"`
}

// BudgetRange is a named budget bracket. When Unbounded is set Max carries
// no meaning and must not be used as a divisor.
type BudgetRange struct {
	Key       string `yaml:"key" json:"key"`
	Label     string `yaml:"label" json:"label"`
	Min       int64  `yaml:"min" json:"min"`
	Max       int64  `yaml:"max" json:"max,omitempty"`
	Unbounded bool   `yaml:"unbounded" json:"unbounded"`
	Average   int64  `yaml:"average" json:"average"`
}

// Cap returns the upper bound and whether one exists.
func (b BudgetRange) Cap() (int64, bool) {
	if b.Unbounded {
		return 0, false
	}
	return b.Max, true
}

// Alternative is a cheaper substitute for a feature.
type Alternative struct {
	Alternative string `yaml:"alternative"`
	Savings     int64  `yaml:"savings"`
}

// NormalizeKey lower-cases s, trims it, and joins words with hyphens so that
// "User Auth", "user_auth" and "user-auth" resolve to the same key.
func NormalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), "-")
}

// Feature resolves a free-text feature name through keys and aliases.
func (c *Catalog) Feature(name string) (Feature, bool) {
	i, ok := c.featureIndex[NormalizeKey(name)]
	if !ok {
		return Feature{}, false
	}
	return c.Features[i], true
}

// FeatureByKey is Feature without alias resolution.
func (c *Catalog) FeatureByKey(key string) (Feature, bool) {
	for _, f := range c.Features {
		if f.Key == key {
			return f, true
		}
	}
	return Feature{}, false
}

// ProjectType returns the entry for key, or the default type and false.
func (c *Catalog) ProjectType(key string) (ProjectType, bool) {
	if pt, ok := c.ProjectTypes[NormalizeKey(key)]; ok {
		pt.Key = NormalizeKey(key)
		return pt, true
	}
	pt := c.ProjectTypes[c.Defaults.ProjectType]
	pt.Key = c.Defaults.ProjectType
	return pt, false
}

// Timeline returns the entry for key, or the default timeline and false.
func (c *Catalog) Timeline(key string) (Timeline, bool) {
	if t, ok := c.Timelines[NormalizeKey(key)]; ok {
		t.Key = NormalizeKey(key)
		return t, true
	}
	t := c.Timelines[c.Defaults.Timeline]
	t.Key = c.Defaults.Timeline
	return t, false
}

// DesignLevel returns the entry for key, or the default level and false.
func (c *Catalog) DesignLevel(key string) (DesignLevel, bool) {
	if d, ok := c.Design.Levels[NormalizeKey(key)]; ok {
		d.Key = NormalizeKey(key)
		return d, true
	}
	d := c.Design.Levels[c.Defaults.DesignLevel]
	d.Key = c.Defaults.DesignLevel
	return d, false
}

// Budget returns the bracket for key, or the default bracket and false.
func (c *Catalog) Budget(key string) (BudgetRange, bool) {
	want := strings.ToLower(strings.TrimSpace(key))
	for _, b := range c.Budgets {
		if b.Key == want {
			return b, true
		}
	}
	for _, b := range c.Budgets {
		if b.Key == c.Defaults.Budget {
			return b, false
		}
	}
	return BudgetRange{}, false
}

// IntegrationCost returns the override for key or the default cost.
func (c *Catalog) IntegrationCost(key string) int64 {
	if cost, ok := c.Integrations.Overrides[NormalizeKey(key)]; ok {
		return cost
	}
	return c.Integrations.DefaultCost
}

// PlatformIncrement returns the price a platform adds beyond the first.
func (c *Catalog) PlatformIncrement(key string) int64 {
	if inc, ok := c.Platforms.Increments[NormalizeKey(key)]; ok {
		return inc
	}
	return c.Platforms.DefaultIncrement
}

// ComplexityFor returns the first band whose MaxScore is at least score.
func (c *Catalog) ComplexityFor(score int) ComplexityBand {
	for _, band := range c.Complexity {
		if band.MaxScore == nil || score <= *band.MaxScore {
			return band
		}
	}
	return c.TopComplexity()
}

// TopComplexity returns the highest complexity band.
func (c *Catalog) TopComplexity() ComplexityBand {
	return c.Complexity[len(c.Complexity)-1]
}

// Alternative returns the catalogued substitute for a feature key.
func (c *Catalog) Alternative(featureKey string) (Alternative, bool) {
	alt, ok := c.Alternatives[featureKey]
	return alt, ok
}

// DomainService returns the description of a domain service.
func (c *Catalog) DomainService(key string) (string, bool) {
	desc, ok := c.DomainServices[NormalizeKey(key)]
	return desc, ok
}
