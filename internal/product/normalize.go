package product

import (
	"strings"

	"github.com/tidwall/gjson"
)

// maxListLen bounds every string list pulled out of a raw record so a
// hostile or runaway payload cannot inflate a record without limit.
const maxListLen = 25

// Normalize converts one raw JSON object into an Analysis. Field lookup is
// tolerant: several alias paths are tried per field, scalars are coerced to
// strings, and absent nested objects come back as empty values rather than
// nils. Returns false when the fragment carries nothing identifiable.
func Normalize(raw gjson.Result) (Analysis, bool) {
	if !raw.IsObject() {
		return Analysis{}, false
	}

	a := Analysis{
		CompanyName: firstString(raw, "companyName", "company_name", "company"),
		ProductDetails: ProductDetails{
			Name:        firstString(raw, "productDetails.name", "product_details.name", "productName", "name"),
			Description: firstString(raw, "productDetails.description", "product_details.description", "description"),
		},
		USPs:       stringList(raw, "usps", "uniqueSellingPoints"),
		Features:   stringList(raw, "features"),
		PainPoints: stringList(raw, "painPoints", "pain_points"),
		BusinessOverview: BusinessOverview{
			Mission:       firstString(raw, "businessOverview.mission", "business_overview.mission"),
			Industry:      firstString(raw, "businessOverview.industry", "business_overview.industry", "industry"),
			KeyOperations: stringList(raw, "businessOverview.keyOperations", "business_overview.key_operations"),
		},
		TargetPersona: TargetPersona{
			PrimaryAudience: firstString(raw, "targetPersona.primaryAudience", "target_persona.primary_audience"),
			Demographics:    firstString(raw, "targetPersona.demographics", "target_persona.demographics"),
			IndustrySegment: firstString(raw, "targetPersona.industrySegment", "target_persona.industry_segment"),
			PainPoints:      stringList(raw, "targetPersona.painPoints", "target_persona.pain_points"),
		},
		Pricing: firstString(raw, "pricing", "pricingModel"),
		CurrentSolutions: CurrentSolutions{
			DirectCompetitors: stringList(raw, "currentSolutions.directCompetitors", "current_solutions.direct_competitors"),
			ExistingMethods:   stringList(raw, "currentSolutions.existingMethods", "current_solutions.existing_methods"),
			MarketGaps:        firstString(raw, "currentSolutions.marketGaps", "current_solutions.market_gaps"),
		},
		Capabilities:          capabilityList(raw),
		CompetitorAnalysisURL: firstString(raw, "competitorAnalysisUrl", "competitor_analysis_url"),
	}

	if comp := raw.Get("competitors"); comp.IsObject() {
		a.Competitors = &Competitors{
			Direct:  stringList(comp, "direct"),
			Niche:   stringList(comp, "niche"),
			Broader: stringList(comp, "broader"),
		}
	}

	if a.CompanyName == "" && a.ProductDetails.Name == "" {
		return Analysis{}, false
	}
	return a, true
}

// Placeholder is the record substituted when no input path yields anything
// usable. Callers are guaranteed a non-empty, renderable result.
func Placeholder() Analysis {
	return Analysis{
		CompanyName: "Sample Company",
		ProductDetails: ProductDetails{
			Name:        "Sample Product",
			Description: "Analysis could not be parsed from the webhook response.",
		},
	}
}

func firstString(raw gjson.Result, paths ...string) string {
	for _, path := range paths {
		value := raw.Get(path)
		if !value.Exists() {
			continue
		}
		switch value.Type {
		case gjson.String:
			if s := strings.TrimSpace(value.String()); s != "" {
				return s
			}
		case gjson.Number, gjson.True, gjson.False:
			return value.String()
		}
	}
	return ""
}

func stringList(raw gjson.Result, paths ...string) []string {
	for _, path := range paths {
		value := raw.Get(path)
		if !value.Exists() {
			continue
		}
		if value.Type == gjson.String {
			if s := strings.TrimSpace(value.String()); s != "" {
				return []string{s}
			}
			continue
		}
		if !value.IsArray() {
			continue
		}
		out := make([]string, 0)
		value.ForEach(func(_, item gjson.Result) bool {
			if len(out) >= maxListLen {
				return false
			}
			var s string
			if item.IsObject() {
				// Lists sometimes arrive as [{title, description}] pairs.
				s = strings.TrimSpace(item.Get("title").String())
				if desc := strings.TrimSpace(item.Get("description").String()); desc != "" {
					if s != "" {
						s = s + ": " + desc
					} else {
						s = desc
					}
				}
			} else {
				s = strings.TrimSpace(item.String())
			}
			if s != "" {
				out = append(out, s)
			}
			return true
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func capabilityList(raw gjson.Result) []Capability {
	value := raw.Get("capabilities")
	if !value.IsArray() {
		return nil
	}
	out := make([]Capability, 0)
	value.ForEach(func(_, item gjson.Result) bool {
		if len(out) >= maxListLen {
			return false
		}
		if item.Type == gjson.String {
			if s := strings.TrimSpace(item.String()); s != "" {
				out = append(out, Capability{Title: s})
			}
			return true
		}
		if !item.IsObject() {
			return true
		}
		entry := Capability{
			Title:       strings.TrimSpace(item.Get("title").String()),
			Description: strings.TrimSpace(item.Get("description").String()),
			Content:     strings.TrimSpace(item.Get("content").String()),
		}
		item.Get("images").ForEach(func(_, img gjson.Result) bool {
			if s := strings.TrimSpace(img.String()); s != "" {
				entry.Images = append(entry.Images, s)
			}
			return true
		})
		if entry.Title != "" || entry.Description != "" || entry.Content != "" {
			out = append(out, entry)
		}
		return true
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
