package marketplace

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/reseller/crosslist/internal/domain/fieldmap"
	"github.com/reseller/crosslist/internal/domain/listing"
)

const craigslistTemplate = `CRAIGSLIST POSTING TEMPLATE
===========================

Title: {{ .title }}

Price: {{ .price }}
{{- with .location }}

Location: {{ . }}
{{- end }}

Description:
{{ .description }}

---
Photos to upload:
{{- range $i, $p := .photos }}
{{ inc $i }}. {{ $p }}
{{- end }}

---
INSTRUCTIONS:
1. Go to https://craigslist.org
2. Click "post to classifieds"
3. Select your category
4. Copy the title and description above
5. Enter the price
6. Upload the photos in the order listed
7. Publish, then delist by hand once the item sells elsewhere
`

const chairishTemplate = `CHAIRISH POSTING TEMPLATE
=========================

Title: {{ .title }}

Price: {{ .price }}

Brand/Designer: {{ titleCase .brand }}
{{- with .condition }}

Condition: {{ . }}
{{- end }}
{{- with .material }}

Materials: {{ . }}
{{- end }}

Description:
{{ .description }}

---
Photos to upload: {{ len .photos }} photos ready

---
INSTRUCTIONS:
1. Go to https://www.chairish.com/shop/create-listing
2. Select the appropriate category
3. Enter the title and description above
4. Add the brand or designer
5. Enter the price
6. Upload the photos
7. Add dimensions if applicable
8. Review and submit for approval
`

// TemplateAdapter renders copy-paste posting instructions for platforms that
// forbid automation. The seller posts by hand, so there is no remote state to
// cancel or update.
type TemplateAdapter struct {
	baseAdapter
	tmpl *template.Template
}

func newTemplateAdapter(p listing.Platform, table fieldmap.Table, text string, logger *zap.Logger) *TemplateAdapter {
	funcs := template.FuncMap{
		"inc": func(i int) int { return i + 1 },
		// Casers keep state, so each call gets its own
		"titleCase": func(s any) string { return cases.Title(language.English).String(listing.FormatValue(s)) },
	}
	return &TemplateAdapter{
		baseAdapter: newBaseAdapter(p, table, logger),
		tmpl:        template.Must(template.New(p.String()).Funcs(funcs).Parse(text)),
	}
}

// NewCraigslistAdapter creates the Craigslist posting template adapter
func NewCraigslistAdapter(logger *zap.Logger) *TemplateAdapter {
	return newTemplateAdapter(listing.PlatformCraigslist, craigslistTable(), craigslistTemplate, logger)
}

// NewChairishAdapter creates the Chairish posting template adapter
func NewChairishAdapter(logger *zap.Logger) *TemplateAdapter {
	return newTemplateAdapter(listing.PlatformChairish, chairishTable(), chairishTemplate, logger)
}

// Publish implements listing.Adapter. The result succeeds with the rendered
// instructions and RequiresManualAction set.
func (a *TemplateAdapter) Publish(ctx context.Context, l *listing.UnifiedListing) listing.PlatformResult {
	return a.publish(ctx, l, a.render)
}

func (a *TemplateAdapter) render(_ context.Context, l *listing.UnifiedListing, payload listing.Payload) (listing.PlatformResult, error) {
	content, err := a.Render(payload)
	if err != nil {
		return listing.PlatformResult{}, err
	}
	res := listing.SucceededResult(a.platform, "", "")
	res.PlatformRef = l.SKU
	res.RequiresManualAction = true
	res.ManualContent = content
	return res, nil
}

// Render fills the platform template from a mapped payload
func (a *TemplateAdapter) Render(payload listing.Payload) (string, error) {
	data := make(map[string]any, len(a.table.Rules))
	for _, name := range a.table.Fields() {
		data[name] = ""
	}
	for _, f := range payload.Fields {
		if list, ok := f.Value.([]string); ok {
			data[f.Name] = list
			continue
		}
		data[f.Name] = listing.FormatValue(f.Value)
	}
	if _, ok := data["photos"].([]string); !ok {
		data["photos"] = []string{}
	}

	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", a.permanent("render", fmt.Errorf("%w: %v", listing.ErrOutputWriteFailed, err), "")
	}
	return strings.TrimSpace(buf.String()) + "\n", nil
}

// Cancel is a no-op: the seller delists by hand
func (a *TemplateAdapter) Cancel(_ context.Context, link *listing.PlatformListingLink) error {
	a.logger.Debug("template listing needs manual delisting", zap.String("link_id", link.ID.String()))
	return nil
}

// UpdateQuantity is a no-op: template platforms carry no quantity
func (a *TemplateAdapter) UpdateQuantity(_ context.Context, _ *listing.PlatformListingLink, _ int) error {
	return nil
}

var _ listing.Adapter = (*TemplateAdapter)(nil)
