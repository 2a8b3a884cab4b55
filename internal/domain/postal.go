package domain

// PostalAddress is the result of resolving a CEP.
// Blank fields mean the lookup service had no value for them.
type PostalAddress struct {
	PostalCode string `json:"postalCode"`
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`

	// Region is the full state name (ViaCEP "estado"). It only feeds the
	// country default and is never written into a form field.
	Region string `json:"region,omitempty"`
}

// HasRegion reports whether the lookup implies a national region.
func (p PostalAddress) HasRegion() bool {
	return p.State != "" || p.Region != ""
}
