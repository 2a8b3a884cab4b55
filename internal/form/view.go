package form

import "github.com/boddenberg/profile-bff-go/internal/domain"

// FieldView is how one input renders.
type FieldView struct {
	Value      string `json:"value"`
	Editable   bool   `json:"editable"`
	AutoFilled bool   `json:"autoFilled"`
}

// EntryView renders one address entry.
type EntryView struct {
	Index   int                  `json:"index"`
	State   LockState            `json:"state"`
	Pending bool                 `json:"pending"`
	Fields  map[string]FieldView `json:"fields"`
}

// FormView is the payload every form route answers with.
type FormView struct {
	ID              string                 `json:"id"`
	Kind            Kind                   `json:"kind"`
	Mode            Mode                   `json:"mode"`
	OwnerCPF        string                 `json:"ownerCpf,omitempty"`
	Fields          map[string]FieldView   `json:"fields,omitempty"`
	Entries         []EntryView            `json:"entries"`
	Addresses       []domain.AddressRecord `json:"addresses,omitempty"`
	Rejected        []domain.AddressRecord `json:"rejected,omitempty"`
	Errors          []domain.FieldError    `json:"errors"`
	EntryError      string                 `json:"entryError,omitempty"`
	CanSubmit       bool                   `json:"canSubmit"`
	FocusPostalCode bool                   `json:"focusPostalCode"`
	Pending         bool                   `json:"pending"`
	LastLookup      *LookupOutcome         `json:"lastLookup,omitempty"`
}

// View renders s.
func View(s *Session) FormView {
	v := FormView{
		ID:         s.ID,
		Kind:       s.Kind,
		Mode:       s.Mode(),
		Pending:    s.Pending(),
		CanSubmit:  s.CanSubmit(),
		LastLookup: s.LastLookup,
	}

	switch s.Kind {
	case KindProfile:
		p := s.Profile
		v.Fields = map[string]FieldView{
			"cpf":   {Value: p.Fields.CPF, Editable: p.IsFieldEditable("cpf")},
			"name":  {Value: p.Fields.Name, Editable: true},
			"email": {Value: p.Fields.Email, Editable: true},
			"phone": {Value: p.Fields.Phone, Editable: true},
		}
		v.Entries = []EntryView{entryView(0, p.Entry)}
		v.Addresses = p.Addresses.Snapshot()
		v.Rejected = p.Rejected
		v.Errors = p.Errors()
		v.EntryError = p.EntryError
		v.FocusPostalCode = p.FocusPostalCode
	case KindAddress:
		a := s.Address
		v.OwnerCPF = a.OwnerCPF
		for i, e := range a.Entries {
			v.Entries = append(v.Entries, entryView(i, e))
		}
		v.Errors = a.Errors()
	}

	if v.Errors == nil {
		v.Errors = []domain.FieldError{}
	}
	return v
}

func entryView(index int, e *AddressEntry) EntryView {
	fields := make(map[string]FieldView, len(AllFields))
	for _, f := range AllFields {
		fields[string(f)] = FieldView{
			Value:      e.fieldValue(f),
			Editable:   e.IsFieldEditable(f),
			AutoFilled: e.IsAutoFilled(f),
		}
	}
	return EntryView{Index: index, State: e.State, Pending: e.Pending(), Fields: fields}
}
