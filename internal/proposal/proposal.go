// Package proposal assembles the client-facing proposal document from an
// assessment and its pricing breakdown.
package proposal

import (
	"strings"
	"time"

	"github.com/Simplici0/studio-quotes/internal/assessment"
	"github.com/Simplici0/studio-quotes/internal/catalog"
	"github.com/Simplici0/studio-quotes/internal/pricing"
)

// KickoffLeadDays is the gap between the proposal date and project start.
const KickoffLeadDays = 14

// Document is a structured proposal. Optional sections are empty rather
// than filled with placeholders; renderers decide how to show absence.
type Document struct {
	Title           string          `json:"title"`
	ClientName      string          `json:"clientName,omitempty"`
	ClientEmail     string          `json:"clientEmail,omitempty"`
	Date            time.Time       `json:"date"`
	ProjectOverview Overview        `json:"projectOverview"`
	ScopeOfWork     Scope           `json:"scopeOfWork"`
	Timeline        Timeline        `json:"timeline"`
	Pricing         Pricing         `json:"pricing"`
	Deliverables    []string        `json:"deliverables"`
	Expectations    Expectations    `json:"expectations"`
	DomainServices  []DomainService `json:"domainServices,omitempty"`
	SpecialNotes    string          `json:"specialNotes,omitempty"`
	NextSteps       []string        `json:"nextSteps"`
}

// Overview restates what the client told us.
type Overview struct {
	ProjectName      string   `json:"projectName"`
	ProjectType      string   `json:"projectType"`
	ProjectTypeLabel string   `json:"projectTypeLabel"`
	Description      string   `json:"description,omitempty"`
	TargetAudience   string   `json:"targetAudience,omitempty"`
	MainGoals        []string `json:"mainGoals,omitempty"`
}

// ScopeFeature is one line of the feature scope. Custom features were not
// found in the catalog and are quoted separately.
type ScopeFeature struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Custom   bool   `json:"custom,omitempty"`
}

// Scope lists what will be built.
type Scope struct {
	Platforms             []string       `json:"platforms,omitempty"`
	Features              []ScopeFeature `json:"features,omitempty"`
	NiceToHave            []string       `json:"niceToHave,omitempty"`
	Integrations          []string       `json:"integrations,omitempty"`
	TechnicalRequirements []string       `json:"technicalRequirements,omitempty"`
}

// Expectations are the commitments on both sides.
type Expectations struct {
	Client        []string `json:"client"`
	Studio        []string `json:"studio"`
	Communication string   `json:"communication"`
}

// DomainService is an optional hosting or domain add-on.
type DomainService struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Pricing is the breakdown plus the payment schedule.
type Pricing struct {
	pricing.Breakdown
	PaymentSchedule []Payment `json:"paymentSchedule"`
}

var nextSteps = []string{
	"Review this proposal and send any questions",
	"Sign the agreement and pay the kickoff installment",
	"Schedule the discovery workshop",
	"Share brand assets and existing content",
}

// Assembler builds proposals. The clock is injectable so documents are
// reproducible in tests.
type Assembler struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		a.now = now
	}
}

// NewAssembler returns an Assembler reading reference data from c.
func NewAssembler(c *catalog.Catalog, opts ...Option) *Assembler {
	a := &Assembler{catalog: c, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the proposal for ans priced as b. specialNotes is passed
// through unchanged.
func (a *Assembler) Assemble(ans assessment.Answers, b pricing.Breakdown, specialNotes string) Document {
	now := a.now().UTC()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	pt, _ := a.catalog.ProjectType(b.ProjectType)
	design, _ := a.catalog.DesignLevel(b.Design.Level)

	timeline := buildTimeline(date.AddDate(0, 0, KickoffLeadDays), b.Timeline.Weeks, pt)

	return Document{
		Title:       proposalTitle(ans.ProjectName),
		ClientName:  strings.TrimSpace(ans.ClientName),
		ClientEmail: strings.TrimSpace(ans.ClientEmail),
		Date:        date,
		ProjectOverview: Overview{
			ProjectName:      ans.ProjectName,
			ProjectType:      ans.ProjectType,
			ProjectTypeLabel: pt.Label,
			Description:      ans.ProjectDescription,
			TargetAudience:   ans.TargetAudience,
			MainGoals:        nonEmpty(ans.MainGoals),
		},
		ScopeOfWork: Scope{
			Platforms:             b.Platform.Platforms,
			Features:              scopeFeatures(b),
			NiceToHave:            nonEmpty(ans.NiceToHaveFeatures),
			Integrations:          b.Integrations.Names,
			TechnicalRequirements: pt.TechnicalRequirements,
		},
		Timeline: timeline,
		Pricing: Pricing{
			Breakdown:       b,
			PaymentSchedule: Schedule(b.FinalTotal, timeline),
		},
		Deliverables:   deliverables(pt, design),
		Expectations:   expectations(pt, design, b.Timeline.Rush),
		DomainServices: a.domainServices(ans.DomainServices),
		SpecialNotes:   specialNotes,
		NextSteps:      append([]string(nil), nextSteps...),
	}
}

func proposalTitle(projectName string) string {
	name := strings.TrimSpace(projectName)
	if name == "" {
		name = "Project"
	}
	return name + " Proposal"
}

func scopeFeatures(b pricing.Breakdown) []ScopeFeature {
	var out []ScopeFeature
	for _, f := range b.Features {
		out = append(out, ScopeFeature{Name: f.Name, Category: f.Category})
	}
	for _, name := range b.UnresolvedFeatures {
		out = append(out, ScopeFeature{Name: strings.TrimSpace(name), Custom: true})
	}
	return out
}

func deliverables(pt catalog.ProjectType, design catalog.DesignLevel) []string {
	out := make([]string, 0, len(pt.Deliverables)+len(design.Deliverables)+1)
	out = append(out, pt.Deliverables...)
	out = append(out, design.Deliverables...)
	return append(out, "Source code repository and technical documentation")
}

func expectations(pt catalog.ProjectType, design catalog.DesignLevel, rush bool) Expectations {
	e := Expectations{
		Client: []string{
			"Provide content and brand assets before the design phase starts",
			"Name a single decision maker for approvals",
			"Review deliverables within three business days",
		},
		Studio: []string{
			"Deliver the " + strings.ToLower(pt.Label) + " to the agreed scope and schedule",
			"Keep a staging environment available for review",
			"Fix defects reported within 30 days of launch at no cost",
		},
		Communication: "Weekly progress call and written status update",
	}
	if design.Multiplier > 1 {
		e.Client = append(e.Client, "Attend the design workshops and moodboard review")
	}
	if rush {
		e.Client = append(e.Client, "Turn around feedback within one business day")
		e.Communication = "Twice-weekly progress calls and a shared daily status channel"
	}
	return e
}

func (a *Assembler) domainServices(keys []string) []DomainService {
	var out []DomainService
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		norm := catalog.NormalizeKey(k)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		desc, _ := a.catalog.DomainService(norm)
		out = append(out, DomainService{Name: strings.TrimSpace(k), Description: desc})
	}
	return out
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
