// Package record defines the business record that flows through the
// enrichment pipeline and the owner-identity fields written back onto it.
package record

// Sentinel owner values written in place of a real name.
const (
	// OwnerNotFound marks a record the lookup service investigated without
	// finding an owner.
	OwnerNotFound = "Not Found"

	// OwnerCredentialError marks a record whose lookup was rejected because
	// the API credential is invalid, revoked or leaked.
	OwnerCredentialError = "API KEY ERROR"
)

// Confidence levels reported for an owner match.
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// Record is one business row.
//
// ID and the business attributes are fixed at load time. The enrichment
// attributes start empty and are written as a unit by Apply.
type Record struct {
	ID string `json:"id"`

	// Business attributes (inputs)
	BusinessName string `json:"business_name"`
	Website      string `json:"website"`
	ProfileURL   string `json:"profile_url"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`

	// Enrichment attributes
	OwnerFirstName string `json:"owner_first_name"`
	OwnerLastName  string `json:"owner_last_name"`
	Source         string `json:"source"`
	Confidence     string `json:"confidence"`
}

// Enrichment is the owner-identity triple produced by a lookup: owner name,
// where it was found and how sure the lookup is.
type Enrichment struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Source     string `json:"source"`
	Confidence string `json:"confidence"`
}

// Enriched reports whether the record already carries an owner identity.
// Sentinel owners count as enriched.
func (r Record) Enriched() bool {
	return r.OwnerFirstName != ""
}

// Found reports whether the record holds a real owner rather than a sentinel.
func (r Record) Found() bool {
	return r.Enriched() &&
		r.OwnerFirstName != OwnerNotFound &&
		r.OwnerFirstName != OwnerCredentialError
}

// CredentialProblem reports whether the record was marked with the
// credential-error sentinel.
func (r Record) CredentialProblem() bool {
	return r.OwnerFirstName == OwnerCredentialError
}

// Apply writes all enrichment fields at once.
func (r *Record) Apply(e Enrichment) {
	r.OwnerFirstName = e.FirstName
	r.OwnerLastName = e.LastName
	r.Source = e.Source
	r.Confidence = e.Confidence
}

// Enrichment returns the record's current enrichment fields.
func (r Record) Enrichment() Enrichment {
	return Enrichment{
		FirstName:  r.OwnerFirstName,
		LastName:   r.OwnerLastName,
		Source:     r.Source,
		Confidence: r.Confidence,
	}
}

// NotFoundEnrichment is written when the lookup found no owner.
func NotFoundEnrichment() Enrichment {
	return Enrichment{
		FirstName:  OwnerNotFound,
		Source:     "AI Investigation",
		Confidence: ConfidenceLow,
	}
}

// CredentialErrorEnrichment is written when the lookup credential was rejected.
func CredentialErrorEnrichment() Enrichment {
	return Enrichment{
		FirstName:  OwnerCredentialError,
		Source:     "System",
		Confidence: ConfidenceLow,
	}
}
