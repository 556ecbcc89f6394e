// Package budget compares a pricing breakdown against the client's selected
// budget bracket and produces the gap analysis shown to clients and admins.
package budget

import (
	"fmt"
	"math"
	"sort"

	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/money"
	"github.com/Simplici0/studio-quotes/internal/pricing"
)

// Alignment statuses.
const (
	StatusAligned           = "aligned"
	StatusUnderBudget       = "under-budget"
	StatusOverBudget        = "over-budget"
	StatusSignificantlyOver = "significantly-over"
)

// Classification bands, in percent of the budget average. A total exactly
// on a band edge belongs to the narrower band.
const (
	AlignedBandPercent    = 10
	OverBudgetBandPercent = 40
)

// MaxRecommendedFeatures caps the upsell list for under-budget assessments.
const MaxRecommendedFeatures = 3

// Alignment classifies the gap between the computed total and the budget.
type Alignment struct {
	Status               string `json:"status"`
	PercentageDifference int64  `json:"percentageDifference"`
	Difference           int64  `json:"difference"`
	BudgetUtilization    int64  `json:"budgetUtilization"`
	Message              string `json:"message"`
	Recommendation       string `json:"recommendation"`
}

// AlternativeOption is a cheaper substitute for a feature the budget misses.
type AlternativeOption struct {
	Feature     string `json:"feature"`
	Alternative string `json:"alternative"`
	CostSavings int64  `json:"costSavings"`
}

// FeatureComparison partitions the assessment's features against the budget.
// IncludedInBudget, MissingFromBudget and UnpricedFeatures together hold every
// must-have feature exactly once.
type FeatureComparison struct {
	IncludedInBudget           []string            `json:"includedInBudget"`
	MissingFromBudget          []string            `json:"missingFromBudget"`
	UnpricedFeatures           []string            `json:"unpricedFeatures,omitempty"`
	RecommendedFeatures        []string            `json:"recommendedFeatures"`
	BudgetFriendlyAlternatives []AlternativeOption `json:"budgetFriendlyAlternatives"`
}

// Allocation spreads an amount over the pricing categories.
type Allocation struct {
	BasePrice    int64 `json:"basePrice"`
	Features     int64 `json:"features"`
	Platform     int64 `json:"platform"`
	Design       int64 `json:"design"`
	Integrations int64 `json:"integrations"`
	Complexity   int64 `json:"complexity"`
	Timeline     int64 `json:"timeline"`
}

// Total sums every category.
func (a Allocation) Total() int64 {
	return a.BasePrice + a.Features + a.Platform + a.Design + a.Integrations + a.Complexity + a.Timeline
}

func (a Allocation) values() []int64 {
	return []int64{a.BasePrice, a.Features, a.Platform, a.Design, a.Integrations, a.Complexity, a.Timeline}
}

func allocationFrom(v []int64) Allocation {
	return Allocation{
		BasePrice:    v[0],
		Features:     v[1],
		Platform:     v[2],
		Design:       v[3],
		Integrations: v[4],
		Complexity:   v[5],
		Timeline:     v[6],
	}
}

// CostBreakdown sets what the assessment costs next to what the budget buys.
type CostBreakdown struct {
	AssessmentAllocation Allocation `json:"assessmentAllocation"`
	BudgetAllocation     Allocation `json:"budgetAllocation"`
	Differences          Allocation `json:"differences"`
}

// ValueMetrics describes how much scope a given spend buys.
type ValueMetrics struct {
	FeaturesPerDollar float64 `json:"featuresPerDollar"`
	QualityLevel      string  `json:"qualityLevel"`
	ScopeLevel        string  `json:"scopeLevel"`
}

// ValueAnalysis compares the value density of the budget and the assessment.
type ValueAnalysis struct {
	BudgetValue     ValueMetrics `json:"budgetValue"`
	AssessmentValue ValueMetrics `json:"assessmentValue"`
	Recommendations []string     `json:"recommendations"`
}

// Comparison is the full gap analysis.
type Comparison struct {
	Budget            catalog.BudgetRange `json:"budget"`
	BudgetResolved    bool                `json:"budgetResolved"`
	CalculatedTotal   int64               `json:"calculatedTotal"`
	Alignment         Alignment           `json:"alignment"`
	FeatureComparison FeatureComparison   `json:"featureComparison"`
	CostBreakdown     CostBreakdown       `json:"costBreakdown"`
	ValueAnalysis     ValueAnalysis       `json:"valueAnalysis"`
	ActionItems       []ActionItem        `json:"actionItems"`
}

// Compare analyses b against the bracket named by budgetKey. An unknown key
// is compared against the catalog's default bracket and BudgetResolved is
// false.
func Compare(b pricing.Breakdown, budgetKey string, c *catalog.Catalog) Comparison {
	rng, resolved := c.Budget(budgetKey)

	cmp := Comparison{
		Budget:          rng,
		BudgetResolved:  resolved,
		CalculatedTotal: b.FinalTotal,
	}
	cmp.Alignment = align(b.FinalTotal, rng)
	cmp.FeatureComparison = compareFeatures(b, rng, cmp.Alignment.Status, c)
	cmp.CostBreakdown = costBreakdown(b, rng)
	cmp.ValueAnalysis = analyseValue(b, rng, cmp.Alignment.Status, len(cmp.FeatureComparison.IncludedInBudget))
	cmp.ActionItems = actionItems(b, cmp, c)

	return cmp
}

func align(total int64, rng catalog.BudgetRange) Alignment {
	avg := rng.Average
	diff := total - avg

	a := Alignment{
		Difference:        diff,
		BudgetUtilization: utilization(total, rng),
	}
	if avg <= 0 {
		a.Status = StatusAligned
		a.Message = "No budget average is available for comparison."
		a.Recommendation = "Confirm the budget with the client before sending a proposal."
		return a
	}

	a.PercentageDifference = money.DivRound(100*diff, avg)
	a.Status = classify(diff, avg)

	pct := a.PercentageDifference
	if pct < 0 {
		pct = -pct
	}
	switch a.Status {
	case StatusAligned:
		a.Message = fmt.Sprintf("The estimate is within %d%% of the %s budget.", AlignedBandPercent, rng.Label)
		a.Recommendation = "Proceed with the proposed scope."
	case StatusUnderBudget:
		a.Message = fmt.Sprintf("The estimate is %d%% below the %s budget.", pct, rng.Label)
		a.Recommendation = "There is room to add features or raise the design level."
	case StatusOverBudget:
		a.Message = fmt.Sprintf("The estimate is %d%% above the %s budget.", pct, rng.Label)
		a.Recommendation = "Trim lower priority features or use budget-friendly alternatives."
	case StatusSignificantlyOver:
		a.Message = fmt.Sprintf("The estimate is %d%% above the %s budget.", pct, rng.Label)
		a.Recommendation = "Reduce the scope to a first phase or increase the budget."
	}
	return a
}

// classify compares the exact ratio diff/avg against the bands using integer
// cross multiplication, so the rounded percentage never moves a boundary.
func classify(diff, avg int64) string {
	switch {
	case diff*100 < -AlignedBandPercent*avg:
		return StatusUnderBudget
	case diff*100 <= AlignedBandPercent*avg:
		return StatusAligned
	case diff*100 <= OverBudgetBandPercent*avg:
		return StatusOverBudget
	default:
		return StatusSignificantlyOver
	}
}

// utilization is the total as a percentage of the bracket's cap. Unbounded
// brackets measure against the average instead.
func utilization(total int64, rng catalog.BudgetRange) int64 {
	denom, bounded := rng.Cap()
	if !bounded || denom <= 0 {
		denom = rng.Average
	}
	if denom <= 0 {
		return 0
	}
	return money.DivRound(100*total, denom)
}

// compareFeatures fills the bracket greedily: features sorted by price
// ascending (ties keep answer order) are accepted while the running sum
// stays within average minus base price.
func compareFeatures(b pricing.Breakdown, rng catalog.BudgetRange, status string, c *catalog.Catalog) FeatureComparison {
	fc := FeatureComparison{
		IncludedInBudget:           []string{},
		MissingFromBudget:          []string{},
		UnpricedFeatures:           append([]string(nil), b.UnresolvedFeatures...),
		RecommendedFeatures:        []string{},
		BudgetFriendlyAlternatives: []AlternativeOption{},
	}

	sorted := append([]pricing.FeatureLine(nil), b.Features...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	headroom := rng.Average - b.BasePrice
	var spent int64
	accepting := true
	for _, f := range sorted {
		if accepting && spent+f.Price <= headroom {
			spent += f.Price
			fc.IncludedInBudget = append(fc.IncludedInBudget, requested(f))
			continue
		}
		accepting = false
		fc.MissingFromBudget = append(fc.MissingFromBudget, requested(f))
		if alt, ok := c.Alternative(f.Key); ok {
			fc.BudgetFriendlyAlternatives = append(fc.BudgetFriendlyAlternatives, AlternativeOption{
				Feature:     requested(f),
				Alternative: alt.Alternative,
				CostSavings: alt.Savings,
			})
		}
	}

	if status == StatusUnderBudget {
		fc.RecommendedFeatures = recommend(b, rng, c)
	}
	return fc
}

// requested is the feature name as the client wrote it. Breakdowns stored
// before the name was recorded fall back to the catalog key.
func requested(f pricing.FeatureLine) string {
	if f.Requested != "" {
		return f.Requested
	}
	return f.Key
}

// recommend lists project-type features the client did not pick that fit in
// the unspent budget, cheapest first.
func recommend(b pricing.Breakdown, rng catalog.BudgetRange, c *catalog.Catalog) []string {
	chosen := make(map[string]bool, len(b.Features))
	for _, f := range b.Features {
		chosen[f.Key] = true
	}

	pt, _ := c.ProjectType(b.ProjectType)
	var candidates []catalog.Feature
	for _, key := range pt.RecommendedFeatures {
		if f, ok := c.FeatureByKey(key); ok && !chosen[f.Key] {
			candidates = append(candidates, f)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Price < candidates[j].Price })

	out := []string{}
	remaining := rng.Average - b.FinalTotal
	for _, f := range candidates {
		if len(out) == MaxRecommendedFeatures || f.Price > remaining {
			break
		}
		remaining -= f.Price
		out = append(out, f.Key)
	}
	return out
}

func costBreakdown(b pricing.Breakdown, rng catalog.BudgetRange) CostBreakdown {
	withComplexity := money.Apply(b.Subtotal, b.Complexity.Multiplier)
	assessmentAlloc := Allocation{
		BasePrice:    b.BasePrice,
		Features:     b.FeaturesTotal(),
		Platform:     b.Platform.Price,
		Design:       b.Design.Price,
		Integrations: b.Integrations.Price,
		Complexity:   withComplexity - b.Subtotal,
		Timeline:     b.FinalTotal - withComplexity,
	}

	budgetAlloc := scale(assessmentAlloc, rng.Average)

	av, bv := assessmentAlloc.values(), budgetAlloc.values()
	diff := make([]int64, len(av))
	for i := range av {
		diff[i] = av[i] - bv[i]
	}

	return CostBreakdown{
		AssessmentAllocation: assessmentAlloc,
		BudgetAllocation:     budgetAlloc,
		Differences:          allocationFrom(diff),
	}
}

// scale re-expresses alloc so that it sums to target with the same mix. The
// last non-zero category absorbs rounding.
func scale(alloc Allocation, target int64) Allocation {
	values := alloc.values()
	total := alloc.Total()
	out := make([]int64, len(values))
	if total == 0 {
		out[0] = target
		return allocationFrom(out)
	}

	last := 0
	for i, v := range values {
		if v != 0 {
			last = i
		}
	}

	var assigned int64
	for i, v := range values {
		if i == last {
			continue
		}
		out[i] = money.DivRound(v*target, total)
		assigned += out[i]
	}
	out[last] = target - assigned
	return allocationFrom(out)
}

func analyseValue(b pricing.Breakdown, rng catalog.BudgetRange, status string, includedCount int) ValueAnalysis {
	va := ValueAnalysis{
		AssessmentValue: ValueMetrics{
			FeaturesPerDollar: featuresPerDollar(len(b.Features), b.FinalTotal),
			QualityLevel:      QualityLevel(b.FinalTotal),
			ScopeLevel:        ScopeLevel(len(b.Features)),
		},
		BudgetValue: ValueMetrics{
			FeaturesPerDollar: featuresPerDollar(includedCount, rng.Average),
			QualityLevel:      QualityLevel(rng.Average),
			ScopeLevel:        ScopeLevel(includedCount),
		},
		Recommendations: []string{},
	}

	if va.AssessmentValue.QualityLevel != va.BudgetValue.QualityLevel {
		va.Recommendations = append(va.Recommendations, fmt.Sprintf(
			"The scope implies a %s build while the budget funds a %s build.",
			va.AssessmentValue.QualityLevel, va.BudgetValue.QualityLevel))
	}
	if includedCount < len(b.Features) {
		va.Recommendations = append(va.Recommendations, fmt.Sprintf(
			"The budget covers %d of %d requested features.", includedCount, len(b.Features)))
	}
	if b.Complexity.Multiplier > 1 {
		va.Recommendations = append(va.Recommendations, fmt.Sprintf(
			"%s complexity adds %s to the estimate.", b.Complexity.Level, money.Format(money.Apply(b.Subtotal, b.Complexity.Multiplier)-b.Subtotal)))
	}
	if status == StatusUnderBudget {
		va.Recommendations = append(va.Recommendations, "The remaining budget can fund additional features or polish.")
	}
	return va
}

// featuresPerDollar is features per thousand dollars, rounded to two decimals.
func featuresPerDollar(count int, cents int64) float64 {
	if cents <= 0 || count == 0 {
		return 0
	}
	v := float64(count) / (money.Dollars(cents) / 1000)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Round(v*100) / 100
}

// QualityLevel bands a spend in cents.
func QualityLevel(cents int64) string {
	switch {
	case cents < 300000:
		return "Basic"
	case cents < 800000:
		return "Standard"
	case cents < 1500000:
		return "Premium"
	default:
		return "Enterprise"
	}
}

// ScopeLevel bands a feature count.
func ScopeLevel(features int) string {
	switch {
	case features <= 3:
		return "Focused"
	case features <= 7:
		return "Moderate"
	default:
		return "Extensive"
	}
}
