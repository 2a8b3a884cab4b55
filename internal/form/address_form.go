package form

import (
	"fmt"
	"strconv"

	"github.com/boddenberg/profile-bff-go/internal/domain"
)

const lookupRequired = "Consulte o CEP antes de salvar o endereço"

// AddressForm edits addresses of one owner. Create mode may carry several
// independent entries; edit mode carries exactly the seeded one.
type AddressForm struct {
	Mode     Mode            `json:"mode"`
	OwnerCPF string          `json:"ownerCpf"`
	Entries  []*AddressEntry `json:"entries"`

	// OriginalKey addresses the record being edited on the backend.
	OriginalKey string                `json:"originalKey,omitempty"`
	Initial     *domain.AddressRecord `json:"initial,omitempty"`
}

// NewAddressForm opens a form for owner, in edit mode when initial is set.
func NewAddressForm(owner string, initial *domain.AddressRecord) *AddressForm {
	f := &AddressForm{Mode: ModeCreate, OwnerCPF: owner}
	if initial != nil {
		seed := *initial
		f.Mode = ModeEdit
		f.Initial = &seed
		f.OriginalKey = seed.Key()
	}
	f.Entries = []*AddressEntry{NewAddressEntry(f.Initial)}
	return f
}

// EntryAt returns the entry at index.
func (f *AddressForm) EntryAt(index int) (*AddressEntry, error) {
	if index < 0 || index >= len(f.Entries) {
		return nil, &domain.ErrNotFound{Resource: "address entry", ID: strconv.Itoa(index)}
	}
	return f.Entries[index], nil
}

// AddEntry appends an empty entry and returns its index.
func (f *AddressForm) AddEntry() (int, error) {
	if f.Mode == ModeEdit {
		return 0, &domain.ErrValidation{Field: "entries", Message: "edição aceita apenas um endereço"}
	}
	f.Entries = append(f.Entries, NewAddressEntry(nil))
	return len(f.Entries) - 1, nil
}

// Payload returns the records to persist, one per entry. Every entry must
// validate and hold the address of its current CEP.
func (f *AddressForm) Payload() ([]domain.AddressRecord, error) {
	set := &domain.ErrValidationSet{Scope: "address"}
	out := make([]domain.AddressRecord, 0, len(f.Entries))

	for i, e := range f.Entries {
		prefix := fmt.Sprintf("entries[%d].", i)
		for _, fe := range validationFields(ValidateAddress(e.Value)) {
			set.Fields = append(set.Fields, domain.FieldError{Field: prefix + fe.Field, Message: fe.Message})
		}
		if !e.AddressConfirmed() {
			set.Fields = append(set.Fields, domain.FieldError{Field: prefix + string(FieldPostalCode), Message: lookupRequired})
		}

		rec := e.Value
		if f.Initial != nil {
			rec.ID = f.Initial.ID
		}
		out = append(out, rec)
	}

	if len(set.Fields) > 0 {
		return nil, set
	}
	return out, nil
}

// CanSubmit reports whether Payload would succeed.
func (f *AddressForm) CanSubmit() bool {
	_, err := f.Payload()
	return err == nil
}

// Errors returns the inline messages for the current values.
func (f *AddressForm) Errors() []domain.FieldError {
	_, err := f.Payload()
	return validationFields(err)
}

// Reset returns the form to the values it was opened with.
func (f *AddressForm) Reset() {
	*f = *NewAddressForm(f.OwnerCPF, f.Initial)
}
