// Package domain defines the core entities of the profile BFF.
// These models mirror the JSON contract of the records backend and are
// shared by the form engine, the services and the HTTP layer.
package domain

// ============================================================
// Address
// ============================================================

// AddressType classifies an address.
type AddressType string

const (
	AddressResidential AddressType = "RESIDENTIAL"
	AddressCommercial  AddressType = "COMMERCIAL"
)

// Valid reports whether t is one of the known address types.
func (t AddressType) Valid() bool {
	return t == AddressResidential || t == AddressCommercial
}

// AddressRecord is one address owned by a profile.
// ID is the backend identifier; older backends omit it and key addresses
// by postal code instead.
type AddressRecord struct {
	ID          string      `json:"id,omitempty"`
	Street      string      `json:"street" validate:"required,max=255"`
	City        string      `json:"city" validate:"required,max=100"`
	State       string      `json:"state" validate:"required,max=100"`
	Country     string      `json:"country" validate:"required,max=100"`
	PostalCode  string      `json:"postalCode" validate:"required,max=20,cep"`
	AddressType AddressType `json:"addressType" validate:"required,oneof=RESIDENTIAL COMMERCIAL"`
}

// Key returns the identifier used to address this record on the backend.
func (a AddressRecord) Key() string {
	if a.ID != "" {
		return a.ID
	}
	return a.PostalCode
}

// EmptyAddress returns the defaults of a fresh address entry.
func EmptyAddress() AddressRecord {
	return AddressRecord{AddressType: AddressResidential}
}

// ============================================================
// Profile
// ============================================================

// ProfileRecord is a user profile keyed by CPF.
type ProfileRecord struct {
	CPF       string          `json:"cpf" validate:"required,len=11,numeric"`
	Name      string          `json:"name" validate:"required,max=120"`
	Email     string          `json:"email" validate:"required,email,max=50"`
	Phone     string          `json:"phone" validate:"required,min=10,max=13"`
	Addresses []AddressRecord `json:"addresses" validate:"required,min=1,dive"`
}

// ProfileRow is a profile prepared for table rendering.
type ProfileRow struct {
	ProfileRecord
	MaskedCPF      string `json:"maskedCpf"`
	FormattedPhone string `json:"formattedPhone"`
}
