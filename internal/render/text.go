// Package render turns proposals, assessments and comparisons into plain
// text and print-ready HTML. Every function is deterministic for a given
// input.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/Simplici0/studio-quotes/internal/money"
	"github.com/Simplici0/studio-quotes/internal/proposal"
)

const (
	lineWidth  = 60
	dateLayout = "January 2, 2006"
)

var (
	heavyRule = strings.Repeat("=", lineWidth)
	lightRule = strings.Repeat("-", lineWidth)
)

type textWriter struct {
	sb strings.Builder
}

func (w *textWriter) line(format string, args ...any) {
	fmt.Fprintf(&w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func (w *textWriter) blank() {
	w.sb.WriteByte('\n')
}

func (w *textWriter) section(title string) {
	w.blank()
	w.line("%s", strings.ToUpper(title))
	w.line("%s", lightRule)
}

// field writes "Label: value" and skips empty values.
func (w *textWriter) field(label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		w.line("%s: %s", label, value)
	}
}

// list writes a titled bullet list and skips it entirely when empty.
func (w *textWriter) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	w.blank()
	w.line("%s", title)
	for _, item := range items {
		w.line("  - %s", item)
	}
}

func (w *textWriter) String() string {
	return w.sb.String()
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ProposalText renders doc as plain text for download.
func ProposalText(doc proposal.Document) string {
	var w textWriter

	w.line("%s", heavyRule)
	w.line("%s", strings.ToUpper(doc.Title))
	w.line("%s", heavyRule)
	if doc.ClientName != "" || doc.ClientEmail != "" {
		w.field("Prepared for", clientLine(doc.ClientName, doc.ClientEmail))
	}
	w.field("Date", formatDate(doc.Date))

	ov := doc.ProjectOverview
	w.section("Project Overview")
	w.field("Project", ov.ProjectName)
	w.field("Type", ov.ProjectTypeLabel)
	w.field("Description", ov.Description)
	w.field("Target Audience", ov.TargetAudience)
	w.list("Main Goals", ov.MainGoals)

	scope := doc.ScopeOfWork
	w.section("Scope of Work")
	w.list("Platforms", scope.Platforms)
	w.list("Features", scopeFeatureLines(scope.Features))
	w.list("Nice to Have", scope.NiceToHave)
	w.list("Integrations", scope.Integrations)
	w.list("Technical Requirements", scope.TechnicalRequirements)

	tl := doc.Timeline
	w.section("Timeline")
	w.field("Total Duration", tl.TotalDuration)
	w.field("Start Date", formatDate(tl.StartDate))
	w.field("Estimated Completion", formatDate(tl.EndDate))
	for _, p := range tl.Phases {
		w.blank()
		w.line("%s (%d days, %s - %s)", p.Name, p.Days, formatDate(p.Start), formatDate(p.End))
		for _, d := range p.Deliverables {
			w.line("  - %s", d)
		}
	}

	writePricing(&w, doc.Pricing)

	if len(doc.Deliverables) > 0 {
		w.section("Deliverables")
		for _, d := range doc.Deliverables {
			w.line("  - %s", d)
		}
	}

	w.section("Expectations")
	w.list("Client Responsibilities", doc.Expectations.Client)
	w.list("Studio Commitments", doc.Expectations.Studio)
	w.blank()
	w.field("Communication", doc.Expectations.Communication)

	if len(doc.DomainServices) > 0 {
		w.section("Domain Services")
		for _, ds := range doc.DomainServices {
			if ds.Description != "" {
				w.line("  - %s: %s", ds.Name, ds.Description)
			} else {
				w.line("  - %s", ds.Name)
			}
		}
	}

	if notes := strings.TrimSpace(doc.SpecialNotes); notes != "" {
		w.section("Special Notes")
		w.line("%s", notes)
	}

	if len(doc.NextSteps) > 0 {
		w.section("Next Steps")
		for i, step := range doc.NextSteps {
			w.line("%d. %s", i+1, step)
		}
	}

	w.blank()
	w.line("%s", heavyRule)
	return w.String()
}

func writePricing(w *textWriter, p proposal.Pricing) {
	w.section("Investment")
	w.line("%-40s %19s", "Base price", money.Format(p.BasePrice))
	for _, f := range p.Features {
		w.line("%-40s %19s", "  "+f.Name, money.Format(f.Price))
	}
	if p.Platform.Price > 0 {
		w.line("%-40s %19s", "Additional platforms", money.Format(p.Platform.Price))
	}
	w.line("%-40s %19s", "Design ("+p.Design.Level+")", money.Format(p.Design.Price))
	if p.Integrations.Count > 0 {
		w.line("%-40s %19s", fmt.Sprintf("Integrations (%d)", p.Integrations.Count), money.Format(p.Integrations.Price))
	}
	w.line("%-40s %19s", "Subtotal", money.Format(p.Subtotal))
	w.line("Complexity: %s (x%g)", p.Complexity.Level, p.Complexity.Multiplier)
	if p.Timeline.Rush {
		w.line("Rush timeline (x%g)", p.Timeline.Multiplier)
	}
	w.line("%s", lightRule)
	w.line("%-40s %19s", "TOTAL", money.Format(p.FinalTotal))

	if len(p.PaymentSchedule) > 0 {
		w.blank()
		w.line("Payment Schedule")
		for _, pay := range p.PaymentSchedule {
			w.line("  - %s (%d%%): %s due %s", pay.Milestone, pay.Percent, money.Format(pay.Amount), formatDate(pay.DueDate))
		}
	}
}

func scopeFeatureLines(features []proposal.ScopeFeature) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		switch {
		case f.Custom:
			out = append(out, f.Name+" (custom, quoted separately)")
		case f.Category != "":
			out = append(out, fmt.Sprintf("%s (%s)", f.Name, f.Category))
		default:
			out = append(out, f.Name)
		}
	}
	return out
}

func clientLine(name, email string) string {
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case name != "":
		return name
	default:
		return email
	}
}
