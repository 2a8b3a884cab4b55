package form

import (
	"errors"
	"strings"

	"github.com/boddenberg/profile-bff-go/internal/domain"
)

// Field names an input of an address entry.
type Field string

const (
	FieldStreet      Field = "street"
	FieldCity        Field = "city"
	FieldState       Field = "state"
	FieldCountry     Field = "country"
	FieldPostalCode  Field = "postalCode"
	FieldAddressType Field = "addressType"
)

// LookupFields are the inputs a CEP lookup fills in.
var LookupFields = []Field{FieldStreet, FieldCity, FieldState, FieldCountry}

// DependentFields stay locked until the entry's CEP has been resolved.
var DependentFields = []Field{FieldStreet, FieldCity, FieldState, FieldCountry, FieldAddressType}

// AllFields lists every entry input in display order.
var AllFields = []Field{FieldPostalCode, FieldStreet, FieldCity, FieldState, FieldCountry, FieldAddressType}

// ParseField maps a wire name to a Field.
func ParseField(name string) (Field, bool) {
	for _, f := range AllFields {
		if string(f) == name {
			return f, true
		}
	}
	return "", false
}

// LockState is the resolution state of one address entry.
//
//	locked ──CEP complete──▶ awaiting_resolution ──success──▶ resolved
//	   ▲                            │ failure                   │ override
//	   └────────────────────────────┘◀──────CEP changed─────────┴──▶ user_edited
type LockState string

const (
	StateLocked             LockState = "locked"
	StateAwaitingResolution LockState = "awaiting_resolution"
	StateResolved           LockState = "resolved"
	StateUserEdited         LockState = "user_edited"
)

// ErrStaleLookup is returned when a lookup outcome no longer matches the
// entry's current CEP and was dropped.
var ErrStaleLookup = errors.New("stale postal code lookup")

// LookupRequest asks the caller to resolve Code (8 digits).
type LookupRequest struct {
	Code string
}

// AutoFilled flags the lookup fields whose value came from the last
// resolution and has not been overridden.
type AutoFilled struct {
	Street  bool `json:"street"`
	City    bool `json:"city"`
	State   bool `json:"state"`
	Country bool `json:"country"`
}

func (a AutoFilled) get(f Field) bool {
	switch f {
	case FieldStreet:
		return a.Street
	case FieldCity:
		return a.City
	case FieldState:
		return a.State
	case FieldCountry:
		return a.Country
	}
	return false
}

func (a *AutoFilled) set(f Field, v bool) {
	switch f {
	case FieldStreet:
		a.Street = v
	case FieldCity:
		a.City = v
	case FieldState:
		a.State = v
	case FieldCountry:
		a.Country = v
	}
}

// AddressEntry is one address being edited together with its lock state.
type AddressEntry struct {
	Value domain.AddressRecord `json:"value"`
	State LockState            `json:"state"`

	// LastResolvedPostalCode is the masked CEP of the last successful lookup.
	LastResolvedPostalCode string `json:"lastResolvedPostalCode,omitempty"`
	// PendingPostalCode holds the digits of the lookup in flight.
	PendingPostalCode string `json:"pendingPostalCode,omitempty"`
	// FocusValue is the CEP captured when the input gained focus; cleared
	// as soon as the value changes.
	FocusValue string `json:"focusValue,omitempty"`

	AutoFilled AutoFilled `json:"autoFilled"`

	// Resolved keeps what the last lookup wrote, and ResolvedFlags which of
	// those values the lookup itself provided.
	Resolved      domain.PostalAddress `json:"resolved"`
	ResolvedFlags AutoFilled           `json:"resolvedFlags"`

	// SeedPostalCode is the stored CEP of a seeded entry.
	SeedPostalCode string `json:"seedPostalCode,omitempty"`
}

// NewAddressEntry seeds an entry from initial, or from empty defaults.
// Seeded entries start locked: edit mode also goes through a lookup.
func NewAddressEntry(initial *domain.AddressRecord) *AddressEntry {
	value := domain.EmptyAddress()
	if initial != nil {
		value = *initial
		value.PostalCode = NormalizePostalCode(initial.PostalCode)
		if value.AddressType == "" {
			value.AddressType = domain.AddressResidential
		}
	}
	return &AddressEntry{Value: value, State: StateLocked, SeedPostalCode: value.PostalCode}
}

// IsResolved reports whether a successful lookup backs the current CEP.
func (e *AddressEntry) IsResolved() bool {
	return e.State == StateResolved || e.State == StateUserEdited
}

// AddressConfirmed reports whether the dependent fields belong to the
// current CEP. Either a lookup resolved it, or it is still the stored CEP
// of a seeded entry whose values no lookup has replaced.
func (e *AddressEntry) AddressConfirmed() bool {
	if e.IsResolved() {
		return true
	}
	return e.SeedPostalCode != "" &&
		e.LastResolvedPostalCode == "" &&
		!e.Pending() &&
		e.Value.PostalCode == e.SeedPostalCode
}

// Pending reports whether a lookup is in flight.
func (e *AddressEntry) Pending() bool {
	return e.State == StateAwaitingResolution
}

// IsAutoFilled reports whether f currently holds a lookup value.
func (e *AddressEntry) IsAutoFilled(f Field) bool {
	return e.AutoFilled.get(f)
}

// IsFieldEditable reports whether f accepts plain user input.
// Auto-filled fields report false; they change only through an override.
func (e *AddressEntry) IsFieldEditable(f Field) bool {
	switch f {
	case FieldPostalCode:
		return true
	case FieldAddressType:
		return e.IsResolved()
	case FieldStreet, FieldCity, FieldState, FieldCountry:
		return e.IsResolved() && !e.AutoFilled.get(f)
	}
	return false
}

// FocusPostalCode records the CEP shown when the input gains focus.
func (e *AddressEntry) FocusPostalCode() {
	e.FocusValue = e.Value.PostalCode
}

// ChangePostalCode masks raw into the entry and decides whether a lookup
// is due. Any change away from the resolved CEP relocks the dependent
// fields; coming back to it restores that resolution without a new lookup.
func (e *AddressEntry) ChangePostalCode(raw string) (LookupRequest, bool) {
	normalized := NormalizePostalCode(raw)
	if normalized != e.Value.PostalCode {
		e.Value.PostalCode = normalized
		e.FocusValue = ""
		e.relock()
	}

	digits := PostalCodeDigits(normalized)
	if len(digits) != postalCodeDigits {
		return LookupRequest{}, false
	}
	if e.LastResolvedPostalCode != "" && digits == PostalCodeDigits(e.LastResolvedPostalCode) {
		if e.State == StateLocked {
			e.restore()
		}
		return LookupRequest{}, false
	}
	if digits == PostalCodeDigits(e.FocusValue) {
		return LookupRequest{}, false
	}

	e.State = StateAwaitingResolution
	e.PendingPostalCode = digits
	return LookupRequest{Code: digits}, true
}

// ApplyLookup writes a successful lookup for code into the entry.
// fallbackCountry fills the country when the response names a region but
// no country. Returns ErrStaleLookup when code is not the pending CEP.
func (e *AddressEntry) ApplyLookup(code string, addr domain.PostalAddress, fallbackCountry string) error {
	if !e.awaiting(code) {
		return ErrStaleLookup
	}

	country := addr.Country
	if strings.TrimSpace(country) == "" && addr.HasRegion() {
		country = fallbackCountry
	}

	e.Value.Street = addr.Street
	e.Value.City = addr.City
	e.Value.State = addr.State
	e.Value.Country = country

	e.ResolvedFlags = AutoFilled{
		Street:  notBlank(addr.Street),
		City:    notBlank(addr.City),
		State:   notBlank(addr.State),
		Country: notBlank(addr.Country),
	}
	e.AutoFilled = e.ResolvedFlags
	e.Resolved = domain.PostalAddress{
		PostalCode: e.Value.PostalCode,
		Street:     addr.Street,
		City:       addr.City,
		State:      addr.State,
		Country:    country,
		Region:     addr.Region,
	}
	e.LastResolvedPostalCode = e.Value.PostalCode
	e.PendingPostalCode = ""
	e.State = StateResolved
	return nil
}

// FailLookup drops the pending lookup for code so the next qualifying
// edit retries it. It reports false for outcomes that are already stale.
func (e *AddressEntry) FailLookup(code string) bool {
	if !e.awaiting(code) {
		return false
	}
	e.PendingPostalCode = ""
	e.State = StateLocked
	return true
}

// SetField writes a dependent field. Fields still holding a lookup value
// need override; writing a different value hands the field to the user.
func (e *AddressEntry) SetField(f Field, value string, override bool) error {
	switch f {
	case FieldStreet, FieldCity, FieldState, FieldCountry, FieldAddressType:
	case FieldPostalCode:
		return &domain.ErrValidation{Field: string(f), Message: "CEP deve ser alterado pela consulta de CEP"}
	default:
		return &domain.ErrValidation{Field: string(f), Message: "campo desconhecido"}
	}

	if !e.IsResolved() {
		return &domain.ErrFieldLocked{Field: string(f), Reason: "consulte o CEP antes de editar o endereço"}
	}
	if e.AutoFilled.get(f) {
		if !override {
			return &domain.ErrFieldLocked{Field: string(f), Reason: "preenchido automaticamente pelo CEP"}
		}
		if value != e.resolvedValue(f) {
			e.AutoFilled.set(f, false)
			e.State = StateUserEdited
		}
	}
	e.setValue(f, value)
	return nil
}

func (e *AddressEntry) awaiting(code string) bool {
	digits := PostalCodeDigits(code)
	return e.State == StateAwaitingResolution &&
		digits == e.PendingPostalCode &&
		digits == PostalCodeDigits(e.Value.PostalCode)
}

func (e *AddressEntry) relock() {
	e.State = StateLocked
	e.PendingPostalCode = ""
	e.AutoFilled = AutoFilled{}
}

// restore brings back the last resolution after the CEP returned to it.
// Fields edited since then are no longer auto-filled.
func (e *AddressEntry) restore() {
	e.State = StateResolved
	for _, f := range LookupFields {
		filled := e.ResolvedFlags.get(f) && e.fieldValue(f) == e.resolvedValue(f)
		e.AutoFilled.set(f, filled)
		if e.ResolvedFlags.get(f) && !filled {
			e.State = StateUserEdited
		}
	}
}

func (e *AddressEntry) resolvedValue(f Field) string {
	switch f {
	case FieldStreet:
		return e.Resolved.Street
	case FieldCity:
		return e.Resolved.City
	case FieldState:
		return e.Resolved.State
	case FieldCountry:
		return e.Resolved.Country
	}
	return ""
}

func (e *AddressEntry) fieldValue(f Field) string {
	switch f {
	case FieldStreet:
		return e.Value.Street
	case FieldCity:
		return e.Value.City
	case FieldState:
		return e.Value.State
	case FieldCountry:
		return e.Value.Country
	case FieldPostalCode:
		return e.Value.PostalCode
	case FieldAddressType:
		return string(e.Value.AddressType)
	}
	return ""
}

func (e *AddressEntry) setValue(f Field, v string) {
	switch f {
	case FieldStreet:
		e.Value.Street = v
	case FieldCity:
		e.Value.City = v
	case FieldState:
		e.Value.State = v
	case FieldCountry:
		e.Value.Country = v
	case FieldAddressType:
		e.Value.AddressType = domain.AddressType(strings.ToUpper(strings.TrimSpace(v)))
	}
}

func notBlank(s string) bool {
	return strings.TrimSpace(s) != ""
}
