package assessment

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_AcceptsCompleteAnswers(t *testing.T) {
	raw := []byte(`{
		"projectName": "Bakery site",
		"projectType": "website",
		"mainGoals": ["sell online"],
		"platform": ["web"],
		"mustHaveFeatures": ["blog"],
		"clientEmail": "owner@bakery.test"
	}`)

	if err := Validate(raw); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	raw := []byte(`{
		"projectName": "",
		"projectType": "spaceship",
		"platform": "web",
		"clientEmail": "not-an-email"
	}`)

	err := Validate(raw)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("error %v is not ErrInvalid", err)
	}
	for _, field := range []string{"projectName", "projectType", "platform", "clientEmail"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error %q does not mention %s", err, field)
		}
	}
}

func TestValidate_ClientEmailMayBeEmpty(t *testing.T) {
	if err := Validate([]byte(`{"projectName": "Bakery site", "projectType": "website", "clientEmail": ""}`)); err != nil {
		t.Fatalf("empty email rejected: %v", err)
	}
	err := Validate([]byte(`{"projectName": "Bakery site", "projectType": "website", "clientEmail": "owner at bakery"}`))
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "clientEmail") {
		t.Fatalf("expected clientEmail violation, got %v", err)
	}
}

func TestValidate_RejectsMalformedJSON(t *testing.T) {
	if err := Validate([]byte(`{"projectName":`)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestValidateFeatureUpdate(t *testing.T) {
	if err := ValidateFeatureUpdate([]byte(`{"mustHaveFeatures": ["chat", "search"]}`)); err != nil {
		t.Fatalf("valid update rejected: %v", err)
	}
	if err := ValidateFeatureUpdate([]byte(`{"mustHaveFeatures": [1]}`)); err == nil {
		t.Fatalf("expected error for non-string feature")
	}
	if err := ValidateFeatureUpdate([]byte(`{}`)); err == nil {
		t.Fatalf("expected error for missing list")
	}
}

func TestWithFeatures_CopiesList(t *testing.T) {
	in := []string{"chat"}
	a := Answers{ProjectName: "x", MustHaveFeatures: []string{"blog"}}

	b := a.WithFeatures(in)
	in[0] = "mutated"

	if b.MustHaveFeatures[0] != "chat" {
		t.Fatalf("WithFeatures must copy the input slice, got %v", b.MustHaveFeatures)
	}
	if a.MustHaveFeatures[0] != "blog" {
		t.Fatalf("original answers changed: %v", a.MustHaveFeatures)
	}
}
