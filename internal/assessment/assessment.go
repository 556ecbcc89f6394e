// Package assessment defines the client-submitted project requirements that
// drive pricing and proposals.
package assessment

// Project types accepted by the questionnaire.
const (
	TypeWebsite   = "website"
	TypeWebapp    = "webapp"
	TypeEcommerce = "ecommerce"
	TypeMobile    = "mobile"
	TypeCustom    = "custom"
	TypeOther     = "other"
)

// Answers is the questionnaire as submitted. Optional fields are empty when
// the client skipped them; nothing here ever holds a placeholder like "N/A".
type Answers struct {
	ProjectName        string   `json:"projectName"`
	ProjectType        string   `json:"projectType"`
	ProjectDescription string   `json:"projectDescription,omitempty"`
	TargetAudience     string   `json:"targetAudience,omitempty"`
	MainGoals          []string `json:"mainGoals,omitempty"`
	Platform           []string `json:"platform,omitempty"`
	MustHaveFeatures   []string `json:"mustHaveFeatures,omitempty"`
	NiceToHaveFeatures []string `json:"niceToHaveFeatures,omitempty"`
	PreferredTimeline  string   `json:"preferredTimeline,omitempty"`
	Budget             string   `json:"budget,omitempty"`
	DesignLevel        string   `json:"designLevel,omitempty"`
	Integrations       []string `json:"integrations,omitempty"`
	DomainServices     []string `json:"domainServices,omitempty"`
	ClientName         string   `json:"clientName,omitempty"`
	ClientEmail        string   `json:"clientEmail,omitempty"`
}

// WithFeatures returns a copy of a with the must-have features replaced.
func (a Answers) WithFeatures(features []string) Answers {
	out := a
	out.MustHaveFeatures = append([]string(nil), features...)
	return out
}
