package form

import (
	"github.com/boddenberg/profile-bff-go/internal/domain"
)

// AddressAccumulator is the ordered list of addresses already accepted by
// a profile form. Every item passed ValidateAddress when it was added.
type AddressAccumulator struct {
	Items []domain.AddressRecord `json:"items"`
}

// NewAddressAccumulator starts from seed. Records failing the schema are
// left out and returned so the caller can ask for them again.
func NewAddressAccumulator(seed []domain.AddressRecord) (AddressAccumulator, []domain.AddressRecord) {
	acc := AddressAccumulator{Items: make([]domain.AddressRecord, 0, len(seed))}
	var rejected []domain.AddressRecord
	for _, a := range seed {
		a.PostalCode = NormalizePostalCode(a.PostalCode)
		if err := acc.Add(a); err != nil {
			rejected = append(rejected, a)
		}
	}
	return acc, rejected
}

// Add appends candidate if it satisfies the address schema.
func (a *AddressAccumulator) Add(candidate domain.AddressRecord) error {
	if err := ValidateAddress(candidate); err != nil {
		return err
	}
	a.Items = append(a.Items, candidate)
	return nil
}

// Remove deletes the address at index.
func (a *AddressAccumulator) Remove(index int) error {
	if index < 0 || index >= len(a.Items) {
		return &domain.ErrValidation{Field: "addresses", Message: "endereço inexistente na posição informada"}
	}
	a.Items = append(a.Items[:index:index], a.Items[index+1:]...)
	return nil
}

// Len returns the number of accepted addresses.
func (a *AddressAccumulator) Len() int {
	return len(a.Items)
}

// Snapshot returns a copy safe to hand out.
func (a *AddressAccumulator) Snapshot() []domain.AddressRecord {
	out := make([]domain.AddressRecord, len(a.Items))
	copy(out, a.Items)
	return out
}
