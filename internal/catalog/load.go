package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog. It panics if the embedded YAML is
// invalid, which the package tests rule out.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultYAML)
		if err != nil {
			panic(fmt.Sprintf("catalog: invalid embedded default: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog, validates it and builds the lookup indexes.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.buildIndex()
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs []error

	if c.Version == "" {
		errs = append(errs, errors.New("version is required"))
	}
	if _, ok := c.ProjectTypes[c.Defaults.ProjectType]; !ok {
		errs = append(errs, fmt.Errorf("default project type %q not defined", c.Defaults.ProjectType))
	}
	if _, ok := c.Timelines[c.Defaults.Timeline]; !ok {
		errs = append(errs, fmt.Errorf("default timeline %q not defined", c.Defaults.Timeline))
	}
	if _, ok := c.Design.Levels[c.Defaults.DesignLevel]; !ok {
		errs = append(errs, fmt.Errorf("default design level %q not defined", c.Defaults.DesignLevel))
	}

	seen := make(map[string]string)
	for _, f := range c.Features {
		if f.Key == "" || f.Price < 0 {
			errs = append(errs, fmt.Errorf("feature %q: key required and price must be >= 0", f.Name))
		}
		for _, name := range append([]string{f.Key}, f.Aliases...) {
			key := NormalizeKey(name)
			if owner, dup := seen[key]; dup {
				errs = append(errs, fmt.Errorf("feature name %q used by both %q and %q", key, owner, f.Key))
				continue
			}
			seen[key] = f.Key
		}
	}

	if len(c.Complexity) == 0 {
		errs = append(errs, errors.New("at least one complexity band is required"))
	}
	prev := -1
	for i, band := range c.Complexity {
		if band.Multiplier <= 0 {
			errs = append(errs, fmt.Errorf("complexity %q: multiplier must be > 0", band.Level))
		}
		if band.MaxScore == nil {
			if i != len(c.Complexity)-1 {
				errs = append(errs, fmt.Errorf("complexity %q: only the last band may be open-ended", band.Level))
			}
			continue
		}
		if *band.MaxScore <= prev {
			errs = append(errs, fmt.Errorf("complexity %q: max_score must increase", band.Level))
		}
		prev = *band.MaxScore
	}

	for key, t := range c.Timelines {
		if t.Multiplier <= 0 || t.Weeks <= 0 {
			errs = append(errs, fmt.Errorf("timeline %q: multiplier and weeks must be > 0", key))
		}
		if t.Rush && t.Multiplier <= 1 {
			errs = append(errs, fmt.Errorf("timeline %q: rush multiplier must be > 1", key))
		}
	}
	for key, d := range c.Design.Levels {
		if d.Multiplier <= 0 {
			errs = append(errs, fmt.Errorf("design level %q: multiplier must be > 0", key))
		}
	}

	defaultBudget := false
	for _, b := range c.Budgets {
		if b.Average <= 0 {
			errs = append(errs, fmt.Errorf("budget %q: average must be > 0", b.Key))
		}
		if !b.Unbounded && b.Max < b.Min {
			errs = append(errs, fmt.Errorf("budget %q: max below min", b.Key))
		}
		if b.Key == c.Defaults.Budget {
			defaultBudget = true
		}
	}
	if !defaultBudget {
		errs = append(errs, fmt.Errorf("default budget %q not defined", c.Defaults.Budget))
	}

	return errors.Join(errs...)
}

func (c *Catalog) buildIndex() {
	c.featureIndex = make(map[string]int, len(c.Features)*2)
	for i, f := range c.Features {
		c.featureIndex[NormalizeKey(f.Key)] = i
		for _, alias := range f.Aliases {
			c.featureIndex[NormalizeKey(alias)] = i
		}
	}
}
