package budget

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/money"
	"github.com/Simplici0/studio-quotes/internal/pricing"
)

// Action item priorities, highest first.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

var priorityRank = map[string]int{
	PriorityHigh:   3,
	PriorityMedium: 2,
	PriorityLow:    1,
}

// ActionItem is one suggested next move for closing the budget gap.
type ActionItem struct {
	Priority    string `json:"priority"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
}

// actionRule fires at most once per comparison.
type actionRule func(b pricing.Breakdown, cmp Comparison, c *catalog.Catalog) (ActionItem, bool)

// actionRules are evaluated in this order; the order breaks priority ties.
var actionRules = []actionRule{
	reduceScope,
	prioritizeMustHaves,
	useAlternatives,
	extendTimeline,
	phaseDelivery,
	addFeatures,
	simplifyDesign,
	confirmScope,
}

func actionItems(b pricing.Breakdown, cmp Comparison, c *catalog.Catalog) []ActionItem {
	items := []ActionItem{}
	for _, rule := range actionRules {
		if item, ok := rule(b, cmp, c); ok {
			items = append(items, item)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return priorityRank[items[i].Priority] > priorityRank[items[j].Priority]
	})
	return items
}

func overBudget(cmp Comparison) bool {
	s := cmp.Alignment.Status
	return s == StatusOverBudget || s == StatusSignificantlyOver
}

func reduceScope(_ pricing.Breakdown, cmp Comparison, _ *catalog.Catalog) (ActionItem, bool) {
	if cmp.Alignment.Status != StatusSignificantlyOver {
		return ActionItem{}, false
	}
	return ActionItem{
		Priority:    PriorityHigh,
		Title:       "Reduce project scope",
		Description: fmt.Sprintf("The estimate exceeds the %s budget by %d%%. Define a smaller first release.", cmp.Budget.Label, cmp.Alignment.PercentageDifference),
		Impact:      fmt.Sprintf("Closes a gap of %s", money.Format(cmp.Alignment.Difference)),
	}, true
}

func prioritizeMustHaves(_ pricing.Breakdown, cmp Comparison, _ *catalog.Catalog) (ActionItem, bool) {
	if cmp.Alignment.Status != StatusOverBudget {
		return ActionItem{}, false
	}
	return ActionItem{
		Priority:    PriorityHigh,
		Title:       "Prioritize must-have features",
		Description: "Rank the requested features with the client and move the lowest ranked ones to a later phase.",
		Impact:      fmt.Sprintf("Closes a gap of %s", money.Format(cmp.Alignment.Difference)),
	}, true
}

func useAlternatives(_ pricing.Breakdown, cmp Comparison, _ *catalog.Catalog) (ActionItem, bool) {
	alts := cmp.FeatureComparison.BudgetFriendlyAlternatives
	if len(alts) == 0 {
		return ActionItem{}, false
	}
	var savings int64
	names := make([]string, len(alts))
	for i, a := range alts {
		savings += a.CostSavings
		names[i] = a.Feature
	}
	return ActionItem{
		Priority:    PriorityMedium,
		Title:       "Use budget-friendly alternatives",
		Description: fmt.Sprintf("Cheaper equivalents exist for %s.", strings.Join(names, ", ")),
		Impact:      fmt.Sprintf("Saves up to %s", money.Format(savings)),
	}, true
}

func extendTimeline(b pricing.Breakdown, cmp Comparison, _ *catalog.Catalog) (ActionItem, bool) {
	if !b.Timeline.Rush || !overBudget(cmp) {
		return ActionItem{}, false
	}
	withComplexity := money.Apply(b.Subtotal, b.Complexity.Multiplier)
	return ActionItem{
		Priority:    PriorityMedium,
		Title:       "Extend the timeline",
		Description: "A standard timeline removes the rush premium.",
		Impact:      fmt.Sprintf("Saves %s", money.Format(b.FinalTotal-withComplexity)),
	}, true
}

// phaseDelivery fires when the scope lands in the catalog's highest band.
func phaseDelivery(b pricing.Breakdown, _ Comparison, c *catalog.Catalog) (ActionItem, bool) {
	if b.Complexity.Level != c.TopComplexity().Level {
		return ActionItem{}, false
	}
	return ActionItem{
		Priority:    PriorityMedium,
		Title:       "Phase the delivery",
		Description: "Split the build into phases so each release carries less integration risk.",
		Impact:      "Lowers delivery risk and spreads cost",
	}, true
}

func addFeatures(_ pricing.Breakdown, cmp Comparison, _ *catalog.Catalog) (ActionItem, bool) {
	if cmp.Alignment.Status != StatusUnderBudget {
		return ActionItem{}, false
	}
	desc := "The budget leaves room for additional scope or a higher design level."
	if rec := cmp.FeatureComparison.RecommendedFeatures; len(rec) > 0 {
		desc = fmt.Sprintf("The budget leaves room for %s.", strings.Join(rec, ", "))
	}
	return ActionItem{
		Priority:    PriorityMedium,
		Title:       "Consider adding features",
		Description: desc,
		Impact:      fmt.Sprintf("Uses %s of unspent budget", money.Format(-cmp.Alignment.Difference)),
	}, true
}

func simplifyDesign(b pricing.Breakdown, cmp Comparison, _ *catalog.Catalog) (ActionItem, bool) {
	if b.Design.Multiplier <= 1 || !overBudget(cmp) {
		return ActionItem{}, false
	}
	return ActionItem{
		Priority:    PriorityLow,
		Title:       "Simplify design level",
		Description: fmt.Sprintf("Moving from %s design to standard reduces design cost.", b.Design.Level),
		Impact:      fmt.Sprintf("Design currently costs %s", money.Format(b.Design.Price)),
	}, true
}

func confirmScope(_ pricing.Breakdown, cmp Comparison, _ *catalog.Catalog) (ActionItem, bool) {
	if cmp.Alignment.Status != StatusAligned {
		return ActionItem{}, false
	}
	return ActionItem{
		Priority:    PriorityLow,
		Title:       "Confirm scope and proceed",
		Description: "The estimate fits the budget. Confirm the feature list and schedule kickoff.",
		Impact:      "Ready for proposal",
	}, true
}
