package form

import (
	"strconv"
	"strings"

	"github.com/boddenberg/profile-bff-go/internal/domain"
)

// Mode tells whether a form creates a record or edits an existing one.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

const entryIncomplete = "Preencha todos os campos obrigatórios do endereço."

// ProfileForm edits a profile with its addresses: the top-level fields, an
// address entry in progress and the accumulated addresses.
type ProfileForm struct {
	Mode        Mode                  `json:"mode"`
	OriginalCPF string                `json:"originalCpf,omitempty"`
	Fields      ProfileFields         `json:"fields"`
	Entry       *AddressEntry         `json:"entry"`
	Addresses   AddressAccumulator    `json:"addresses"`
	Initial     *domain.ProfileRecord `json:"initial,omitempty"`

	// Rejected holds seeded addresses that fail the schema and were not
	// accumulated; the first one is loaded into Entry for correction.
	Rejected []domain.AddressRecord `json:"rejected,omitempty"`

	// FocusPostalCode asks the UI to focus the entry CEP input next.
	FocusPostalCode bool   `json:"focusPostalCode"`
	EntryError      string `json:"entryError,omitempty"`
}

// NewProfileForm opens a create form, or an edit form seeded from initial.
func NewProfileForm(initial *domain.ProfileRecord) *ProfileForm {
	f := &ProfileForm{Mode: ModeCreate, Entry: NewAddressEntry(nil)}
	if initial == nil {
		f.Addresses, _ = NewAddressAccumulator(nil)
		return f
	}

	seed := *initial
	seed.Addresses = append([]domain.AddressRecord(nil), initial.Addresses...)
	f.Initial = &seed
	f.Mode = ModeEdit
	f.OriginalCPF = initial.CPF
	f.Fields = ProfileFields{
		CPF:   initial.CPF,
		Name:  initial.Name,
		Email: initial.Email,
		Phone: initial.Phone,
	}
	f.Addresses, f.Rejected = NewAddressAccumulator(initial.Addresses)
	if len(f.Rejected) > 0 {
		f.Entry = NewAddressEntry(&f.Rejected[0])
		f.Rejected = f.Rejected[1:]
	}
	return f
}

// EntryAt returns the entry in progress; a profile form has only index 0.
func (f *ProfileForm) EntryAt(index int) (*AddressEntry, error) {
	if index != 0 {
		return nil, &domain.ErrNotFound{Resource: "address entry", ID: strconv.Itoa(index)}
	}
	return f.Entry, nil
}

// IsFieldEditable reports whether a top-level profile field accepts input.
func (f *ProfileForm) IsFieldEditable(name string) bool {
	switch name {
	case "cpf":
		return f.Mode == ModeCreate
	case "name", "email", "phone":
		return true
	}
	return false
}

// SetField writes a top-level profile field.
func (f *ProfileForm) SetField(name, value string) error {
	if !f.IsFieldEditable(name) {
		if name == "cpf" {
			return &domain.ErrFieldLocked{Field: name, Reason: "CPF não pode ser alterado na edição"}
		}
		return &domain.ErrValidation{Field: name, Message: "campo desconhecido"}
	}
	value = strings.TrimSpace(value)
	switch name {
	case "cpf":
		f.Fields.CPF = digitsOnly(value)
	case "name":
		f.Fields.Name = value
	case "email":
		f.Fields.Email = value
	case "phone":
		f.Fields.Phone = value
	}
	return nil
}

// AddAddress moves the entry in progress into the accumulated list. The
// entry must validate and its CEP must be confirmed. On failure nothing but
// EntryError changes.
func (f *ProfileForm) AddAddress() error {
	if !f.Entry.AddressConfirmed() {
		f.EntryError = lookupRequired
		return &domain.ErrValidation{Field: string(FieldPostalCode), Message: lookupRequired}
	}
	if err := f.Addresses.Add(f.Entry.Value); err != nil {
		f.EntryError = entryIncomplete
		return err
	}
	f.Entry = NewAddressEntry(nil)
	f.EntryError = ""
	f.FocusPostalCode = true
	return nil
}

// RemoveAddress drops the accumulated address at index.
func (f *ProfileForm) RemoveAddress(index int) error {
	return f.Addresses.Remove(index)
}

// Payload assembles the record to persist. With nothing accumulated, the
// entry in progress is used when it validates and its CEP is confirmed.
func (f *ProfileForm) Payload() (domain.ProfileRecord, error) {
	set := &domain.ErrValidationSet{Scope: "profile"}

	if err := ValidateProfileFields(f.Fields); err != nil {
		fields := validationFields(err)
		if fields == nil {
			return domain.ProfileRecord{}, err
		}
		set.Fields = append(set.Fields, fields...)
	}

	addresses := f.Addresses.Snapshot()
	if len(addresses) == 0 {
		if err := ValidateAddress(f.Entry.Value); err != nil {
			set.Fields = append(set.Fields, domain.FieldError{Field: "addresses", Message: messages["addresses.*"]})
			for _, fe := range validationFields(err) {
				set.Fields = append(set.Fields, domain.FieldError{Field: "entry." + fe.Field, Message: fe.Message})
			}
		} else if !f.Entry.AddressConfirmed() {
			set.Fields = append(set.Fields,
				domain.FieldError{Field: "addresses", Message: messages["addresses.*"]},
				domain.FieldError{Field: "entry." + string(FieldPostalCode), Message: lookupRequired},
			)
		} else {
			addresses = []domain.AddressRecord{f.Entry.Value}
		}
	}

	if len(set.Fields) > 0 {
		return domain.ProfileRecord{}, set
	}

	rec := domain.ProfileRecord{
		CPF:       f.Fields.CPF,
		Name:      f.Fields.Name,
		Email:     f.Fields.Email,
		Phone:     f.Fields.Phone,
		Addresses: addresses,
	}
	if f.Mode == ModeEdit {
		rec.CPF = f.OriginalCPF
	}
	if err := ValidateProfile(rec); err != nil {
		return domain.ProfileRecord{}, err
	}
	return rec, nil
}

// CanSubmit reports whether Payload would succeed.
func (f *ProfileForm) CanSubmit() bool {
	_, err := f.Payload()
	return err == nil
}

// Errors returns the inline messages for the current values.
func (f *ProfileForm) Errors() []domain.FieldError {
	_, err := f.Payload()
	return validationFields(err)
}

// Reset returns the form to the values it was opened with.
func (f *ProfileForm) Reset() {
	*f = *NewProfileForm(f.Initial)
}
