// Package product defines the normalized product-analysis record and the
// tolerant parser that produces records from raw analysis webhook payloads.
package product

import "time"

type ProductDetails struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type BusinessOverview struct {
	Mission       string   `json:"mission"`
	Industry      string   `json:"industry"`
	KeyOperations []string `json:"keyOperations"`
}

type TargetPersona struct {
	PrimaryAudience string   `json:"primaryAudience"`
	Demographics    string   `json:"demographics"`
	IndustrySegment string   `json:"industrySegment"`
	PainPoints      []string `json:"painPoints"`
}

type CurrentSolutions struct {
	DirectCompetitors []string `json:"directCompetitors"`
	ExistingMethods   []string `json:"existingMethods"`
	MarketGaps        string   `json:"marketGaps"`
}

type Capability struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Images      []string `json:"images"`
}

type Competitors struct {
	Direct  []string `json:"direct"`
	Niche   []string `json:"niche"`
	Broader []string `json:"broader"`
}

// Analysis is one normalized product-analysis record. Nested objects are
// always populated so renderers can index into them without nil checks.
type Analysis struct {
	CompanyName      string           `json:"companyName"`
	ProductDetails   ProductDetails   `json:"productDetails"`
	USPs             []string         `json:"usps"`
	Features         []string         `json:"features"`
	PainPoints       []string         `json:"painPoints"`
	BusinessOverview BusinessOverview `json:"businessOverview"`
	TargetPersona    TargetPersona    `json:"targetPersona"`
	Pricing          string           `json:"pricing"`
	CurrentSolutions CurrentSolutions `json:"currentSolutions"`
	Capabilities     []Capability     `json:"capabilities"`

	Competitors           *Competitors `json:"competitors,omitempty"`
	CompetitorAnalysisURL string       `json:"competitorAnalysisUrl,omitempty"`

	IsApproved bool       `json:"isApproved,omitempty"`
	ApprovedBy string     `json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
}

// DedupKey identifies a record for duplicate collapsing: case-insensitive
// product name plus company name. Two distinct products sharing both
// collapse into one; that matches the observable submit behavior.
func (a Analysis) DedupKey() string {
	return lower(a.ProductDetails.Name) + "\x00" + lower(a.CompanyName)
}
