package proposal

import (
	"fmt"
	"time"

	"github.com/Simplici0/studio-quotes/internal/catalog"
)

// Timeline is the delivery plan. Phase dates are half-open: a phase ends on
// the day the next one starts.
type Timeline struct {
	TotalWeeks    int       `json:"totalWeeks"`
	TotalDuration string    `json:"totalDuration"`
	StartDate     time.Time `json:"startDate"`
	EndDate       time.Time `json:"endDate"`
	Phases        []Phase   `json:"phases"`
}

// Phase is one stage of the delivery plan.
type Phase struct {
	Name         string    `json:"name"`
	Days         int       `json:"days"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Deliverables []string  `json:"deliverables"`
}

// Phase names.
const (
	PhaseDiscovery   = "Discovery"
	PhaseDesign      = "Design"
	PhaseDevelopment = "Development"
	PhaseTesting     = "Testing"
	PhaseLaunch      = "Launch"
)

// phasePlan lists the phases in order with their share of the total days.
// The last phase absorbs the days lost to flooring.
var phasePlan = []struct {
	name    string
	percent int
}{
	{PhaseDiscovery, 10},
	{PhaseDesign, 20},
	{PhaseDevelopment, 45},
	{PhaseTesting, 15},
	{PhaseLaunch, 10},
}

// genericDeliverables covers project types whose catalog entry does not list
// deliverables for a phase.
var genericDeliverables = map[string][]string{
	PhaseDiscovery:   {"Requirements document", "Sitemap and user flows"},
	PhaseDesign:      {"Wireframes", "Visual design for key screens"},
	PhaseDevelopment: {"Working build on staging", "Integrations connected"},
	PhaseTesting:     {"Cross-device QA report", "Fixed defect list"},
	PhaseLaunch:      {"Production release", "Handover and training session"},
}

func phaseDeliverables(name string, pt catalog.ProjectType) []string {
	if d, ok := pt.PhaseDeliverables[name]; ok && len(d) > 0 {
		return append([]string(nil), d...)
	}
	return append([]string(nil), genericDeliverables[name]...)
}

func buildTimeline(start time.Time, weeks int, pt catalog.ProjectType) Timeline {
	totalDays := weeks * 7

	t := Timeline{
		TotalWeeks:    weeks,
		TotalDuration: fmt.Sprintf("%d weeks", weeks),
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, totalDays),
		Phases:        make([]Phase, 0, len(phasePlan)),
	}

	cursor := start
	used := 0
	for i, p := range phasePlan {
		days := totalDays * p.percent / 100
		if i == len(phasePlan)-1 {
			days = totalDays - used
		}
		used += days
		end := cursor.AddDate(0, 0, days)
		t.Phases = append(t.Phases, Phase{
			Name:         p.name,
			Days:         days,
			Start:        cursor,
			End:          end,
			Deliverables: phaseDeliverables(p.name, pt),
		})
		cursor = end
	}
	return t
}

// phaseEnd returns the end date of the named phase, or the timeline end.
func (t Timeline) phaseEnd(name string) time.Time {
	for _, p := range t.Phases {
		if p.Name == name {
			return p.End
		}
	}
	return t.EndDate
}
