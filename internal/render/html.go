package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"

	"github.com/Simplici0/studio-quotes/internal/money"
	"github.com/Simplici0/studio-quotes/internal/proposal"
)

//go:embed templates/proposal.html
var proposalTemplate string

var printTemplate = template.Must(template.New("proposal").Funcs(template.FuncMap{
	"money":    money.Format,
	"date":     formatDate,
	"features": scopeFeatureLines,
}).Parse(proposalTemplate))

// ProposalPrintHTML renders doc as a standalone HTML page with inline
// styles, suitable for printing or PDF conversion.
func ProposalPrintHTML(doc proposal.Document) (string, error) {
	var buf bytes.Buffer
	if err := printTemplate.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render proposal html: %w", err)
	}
	return buf.String(), nil
}
