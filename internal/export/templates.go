package export

import (
	"bytes"
	"html/template"
	"time"

	"bofu/api/internal/product"
)

var reportTemplate = template.Must(template.New("report").Parse(reportTemplateHTML))

// TemplateData holds data for report template rendering
type TemplateData struct {
	Title       string
	Author      string
	GeneratedAt time.Time
	Records     []product.Analysis
}

// RenderReportHTML renders the research report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const reportTemplateHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #222; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    h2 { margin-top: 2rem; page-break-before: always; }
    h2:first-of-type { page-break-before: avoid; }
    h3 { margin-bottom: 0.25rem; color: #444; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .section { margin: 1rem 0; }
    ul { margin: 0.25rem 0 0.75rem 1.25rem; }
    .badge { display: inline-block; background: #e8f5e9; color: #2e7d32; padding: 2px 8px; border-radius: 4px; font-size: 0.8em; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">{{.Author}} | {{.GeneratedAt.Format "Jan 2, 2006"}}</div>
  {{range .Records}}
  <h2>{{.ProductDetails.Name}} — {{.CompanyName}}{{if .IsApproved}} <span class="badge">Approved</span>{{end}}</h2>
  {{if .ProductDetails.Description}}<p>{{.ProductDetails.Description}}</p>{{end}}
  <div class="section">
    <h3>Business Overview</h3>
    {{if .BusinessOverview.Mission}}<p>{{.BusinessOverview.Mission}}</p>{{end}}
    {{if .BusinessOverview.Industry}}<p><em>{{.BusinessOverview.Industry}}</em></p>{{end}}
    {{if .BusinessOverview.KeyOperations}}<ul>{{range .BusinessOverview.KeyOperations}}<li>{{.}}</li>{{end}}</ul>{{end}}
  </div>
  {{if .USPs}}
  <div class="section">
    <h3>Unique Selling Points</h3>
    <ul>{{range .USPs}}<li>{{.}}</li>{{end}}</ul>
  </div>
  {{end}}
  {{if .Features}}
  <div class="section">
    <h3>Features</h3>
    <ul>{{range .Features}}<li>{{.}}</li>{{end}}</ul>
  </div>
  {{end}}
  {{if .PainPoints}}
  <div class="section">
    <h3>Pain Points Addressed</h3>
    <ul>{{range .PainPoints}}<li>{{.}}</li>{{end}}</ul>
  </div>
  {{end}}
  {{if .Pricing}}
  <div class="section">
    <h3>Pricing</h3>
    <p>{{.Pricing}}</p>
  </div>
  {{end}}
  {{if .TargetPersona.PrimaryAudience}}
  <div class="section">
    <h3>Target Persona</h3>
    <p>{{.TargetPersona.PrimaryAudience}}</p>
    {{if .TargetPersona.PainPoints}}<ul>{{range .TargetPersona.PainPoints}}<li>{{.}}</li>{{end}}</ul>{{end}}
  </div>
  {{end}}
  {{if .Capabilities}}
  <div class="section">
    <h3>Capabilities</h3>
    {{range .Capabilities}}
    <p><strong>{{.Title}}</strong>{{if .Description}} — {{.Description}}{{end}}</p>
    {{end}}
  </div>
  {{end}}
  {{if .Competitors}}
  <div class="section">
    <h3>Competitors</h3>
    {{if .Competitors.Direct}}<p>Direct:</p><ul>{{range .Competitors.Direct}}<li>{{.}}</li>{{end}}</ul>{{end}}
    {{if .Competitors.Niche}}<p>Niche:</p><ul>{{range .Competitors.Niche}}<li>{{.}}</li>{{end}}</ul>{{end}}
    {{if .Competitors.Broader}}<p>Broader:</p><ul>{{range .Competitors.Broader}}<li>{{.}}</li>{{end}}</ul>{{end}}
  </div>
  {{end}}
  {{end}}
</body>
</html>`
