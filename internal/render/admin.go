package render

import (
	"fmt"
	"strings"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/budget"
	"github.com/Simplici0/studio-quotes/internal/money"
	"github.com/Simplici0/studio-quotes/internal/pricing"
)

const notAvailable = "N/A"

func orNA(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notAvailable
	}
	return s
}

func joinOrNA(values []string) string {
	var kept []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return notAvailable
	}
	return strings.Join(kept, ", ")
}

// AssessmentText renders the raw answers for the admin view. Unlike the
// client documents every field is printed, with N/A for missing values.
// b may be nil when the assessment has not been priced.
func AssessmentText(a assessment.Answers, b *pricing.Breakdown) string {
	var w textWriter

	w.line("%s", heavyRule)
	w.line("ASSESSMENT: %s", strings.ToUpper(orNA(a.ProjectName)))
	w.line("%s", heavyRule)

	w.section("Client")
	w.line("Name: %s", orNA(a.ClientName))
	w.line("Email: %s", orNA(a.ClientEmail))

	w.section("Project")
	w.line("Type: %s", orNA(a.ProjectType))
	w.line("Description: %s", orNA(a.ProjectDescription))
	w.line("Target Audience: %s", orNA(a.TargetAudience))
	w.line("Main Goals: %s", joinOrNA(a.MainGoals))
	w.line("Platforms: %s", joinOrNA(a.Platform))
	w.line("Must-have Features: %s", joinOrNA(a.MustHaveFeatures))
	w.line("Nice-to-have Features: %s", joinOrNA(a.NiceToHaveFeatures))
	w.line("Integrations: %s", joinOrNA(a.Integrations))
	w.line("Domain Services: %s", joinOrNA(a.DomainServices))
	w.line("Timeline: %s", orNA(a.PreferredTimeline))
	w.line("Budget: %s", orNA(a.Budget))
	w.line("Design Level: %s", orNA(a.DesignLevel))

	w.section("Pricing")
	if b == nil {
		w.line("Total: %s", notAvailable)
	} else {
		w.line("Catalog: %s", orNA(b.CatalogVersion))
		w.line("Base: %s", money.Format(b.BasePrice))
		w.line("Features: %s", money.Format(b.FeaturesTotal()))
		w.line("Unpriced Features: %s", joinOrNA(b.UnresolvedFeatures))
		w.line("Platform: %s", money.Format(b.Platform.Price))
		w.line("Design: %s", money.Format(b.Design.Price))
		w.line("Integrations: %s", money.Format(b.Integrations.Price))
		w.line("Complexity: %s (score %d, x%g)", b.Complexity.Level, b.Complexity.Score, b.Complexity.Multiplier)
		w.line("Timeline: %s (x%g)", b.Timeline.Key, b.Timeline.Multiplier)
		w.line("Total: %s", money.Format(b.FinalTotal))
		w.line("Market Range: %s - %s", money.Format(b.EstimatedRange.Min), money.Format(b.EstimatedRange.Max))
	}

	w.blank()
	w.line("%s", heavyRule)
	return w.String()
}

// ComparisonText renders the budget gap analysis for the admin view.
func ComparisonText(cmp budget.Comparison) string {
	var w textWriter

	w.line("%s", heavyRule)
	w.line("BUDGET COMPARISON")
	w.line("%s", heavyRule)

	budgetLine := cmp.Budget.Label
	if !cmp.BudgetResolved {
		budgetLine += " (default, selection not recognized)"
	}
	w.field("Budget", budgetLine)
	w.field("Budget Average", money.Format(cmp.Budget.Average))
	w.field("Calculated Total", money.Format(cmp.CalculatedTotal))

	al := cmp.Alignment
	w.section("Alignment")
	w.line("Status: %s (%+d%%, %s)", al.Status, al.PercentageDifference, money.Format(al.Difference))
	w.line("Budget Utilization: %d%%", al.BudgetUtilization)
	w.field("Summary", al.Message)
	w.field("Recommendation", al.Recommendation)

	fc := cmp.FeatureComparison
	w.section("Features")
	w.list("Included in Budget", fc.IncludedInBudget)
	w.list("Missing from Budget", fc.MissingFromBudget)
	w.list("Unpriced", fc.UnpricedFeatures)
	w.list("Recommended Additions", fc.RecommendedFeatures)
	if len(fc.BudgetFriendlyAlternatives) > 0 {
		alts := make([]string, len(fc.BudgetFriendlyAlternatives))
		for i, alt := range fc.BudgetFriendlyAlternatives {
			alts[i] = fmt.Sprintf("%s -> %s (saves %s)", alt.Feature, alt.Alternative, money.Format(alt.CostSavings))
		}
		w.list("Budget-friendly Alternatives", alts)
	}

	cb := cmp.CostBreakdown
	w.section("Cost Breakdown")
	w.line("%-16s %16s %16s %16s", "Category", "Assessment", "Budget", "Difference")
	rows := []struct {
		name string
		a, b int64
		d    int64
	}{
		{"Base price", cb.AssessmentAllocation.BasePrice, cb.BudgetAllocation.BasePrice, cb.Differences.BasePrice},
		{"Features", cb.AssessmentAllocation.Features, cb.BudgetAllocation.Features, cb.Differences.Features},
		{"Platform", cb.AssessmentAllocation.Platform, cb.BudgetAllocation.Platform, cb.Differences.Platform},
		{"Design", cb.AssessmentAllocation.Design, cb.BudgetAllocation.Design, cb.Differences.Design},
		{"Integrations", cb.AssessmentAllocation.Integrations, cb.BudgetAllocation.Integrations, cb.Differences.Integrations},
		{"Complexity", cb.AssessmentAllocation.Complexity, cb.BudgetAllocation.Complexity, cb.Differences.Complexity},
		{"Timeline", cb.AssessmentAllocation.Timeline, cb.BudgetAllocation.Timeline, cb.Differences.Timeline},
	}
	for _, r := range rows {
		w.line("%-16s %16s %16s %16s", r.name, money.Format(r.a), money.Format(r.b), money.Format(r.d))
	}

	va := cmp.ValueAnalysis
	w.section("Value")
	w.line("Assessment: %.2f features per $1k, %s quality, %s scope",
		va.AssessmentValue.FeaturesPerDollar, va.AssessmentValue.QualityLevel, va.AssessmentValue.ScopeLevel)
	w.line("Budget: %.2f features per $1k, %s quality, %s scope",
		va.BudgetValue.FeaturesPerDollar, va.BudgetValue.QualityLevel, va.BudgetValue.ScopeLevel)
	w.list("Notes", va.Recommendations)

	if len(cmp.ActionItems) > 0 {
		w.section("Action Items")
		for _, item := range cmp.ActionItems {
			w.line("[%s] %s", strings.ToUpper(item.Priority), item.Title)
			w.line("    %s", item.Description)
			w.line("    Impact: %s", item.Impact)
		}
	}

	w.blank()
	w.line("%s", heavyRule)
	return w.String()
}
