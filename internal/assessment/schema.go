package assessment

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalid wraps every schema violation returned by Validate.
var ErrInvalid = errors.New("invalid assessment")

const answersSchema = `{
	"type": "object",
	"required": ["projectName", "projectType"],
	"properties": {
		"projectName": {"type": "string", "minLength": 1, "maxLength": 200},
		"projectType": {"type": "string", "enum": ["website", "webapp", "ecommerce", "mobile", "custom", "other"]},
		"projectDescription": {"type": "string"},
		"targetAudience": {"type": "string"},
		"mainGoals": {"$ref": "#/definitions/strings"},
		"platform": {"$ref": "#/definitions/strings"},
		"mustHaveFeatures": {"$ref": "#/definitions/strings"},
		"niceToHaveFeatures": {"$ref": "#/definitions/strings"},
		"preferredTimeline": {"type": "string"},
		"budget": {"type": "string"},
		"designLevel": {"type": "string"},
		"integrations": {"$ref": "#/definitions/strings"},
		"domainServices": {"$ref": "#/definitions/strings"},
		"clientName": {"type": "string"},
		"clientEmail": {"type": "string", "anyOf": [{"format": "email"}, {"maxLength": 0}]}
	},
	"definitions": {
		"strings": {"type": "array", "items": {"type": "string"}}
	}
}`

const featuresSchema = `{
	"type": "object",
	"required": ["mustHaveFeatures"],
	"properties": {
		"mustHaveFeatures": {"type": "array", "items": {"type": "string"}}
	}
}`

var (
	answersLoader  = gojsonschema.NewStringLoader(answersSchema)
	featuresLoader = gojsonschema.NewStringLoader(featuresSchema)
)

// Validate checks a raw answers document at the API boundary.
func Validate(raw []byte) error {
	return validate(answersLoader, raw)
}

// ValidateFeatureUpdate checks the body of a feature adjustment request.
func ValidateFeatureUpdate(raw []byte) error {
	return validate(featuresLoader, raw)
}

func validate(schema gojsonschema.JSONLoader, raw []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		msgs[i] = desc.String()
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
