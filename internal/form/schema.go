package form

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/boddenberg/profile-bff-go/internal/domain"

	"github.com/go-playground/validator/v10"
)

var cepPattern = regexp.MustCompile(`^\d{5}-\d{3}$`)

// validate is the schema checker shared by every form.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so messages line up with the fields the UI renders.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := v.RegisterValidation("cep", func(fl validator.FieldLevel) bool {
		return cepPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic("form: register cep validation: " + err.Error())
	}
	return v
}

// ProfileFields are the top-level profile inputs, validated apart from
// the address list.
type ProfileFields struct {
	CPF   string `json:"cpf" validate:"required,len=11,numeric"`
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email,max=50"`
	Phone string `json:"phone" validate:"required,min=10,max=13"`
}

var messages = map[string]string{
	"street.required":     "Rua obrigatória",
	"city.required":       "Cidade obrigatória",
	"state.required":      "Estado obrigatório",
	"country.required":    "País obrigatório",
	"postalCode.required": "CEP obrigatório",
	"postalCode.cep":      "CEP deve estar no formato 00000-000",
	"addressType.*":       "Tipo de endereço deve ser RESIDENTIAL ou COMMERCIAL",
	"cpf.*":               "CPF deve ter 11 dígitos",
	"name.required":       "Nome obrigatório",
	"email.*":             "E-mail inválido",
	"phone.*":             "Telefone deve ter entre 10 e 13 dígitos",
	"addresses.*":         "Adicione pelo menos um endereço",
	"max":                 "Máximo de %s caracteres",
	"required":            "Campo obrigatório",
}

func messageFor(fe validator.FieldError) string {
	if m, ok := messages[fe.Field()+"."+fe.Tag()]; ok {
		return m
	}
	if m, ok := messages[fe.Field()+".*"]; ok {
		return m
	}
	if fe.Tag() == "max" {
		return fmt.Sprintf(messages["max"], fe.Param())
	}
	if m, ok := messages[fe.Tag()]; ok {
		return m
	}
	return "Valor inválido"
}

// fieldPath drops the root struct name from the namespace:
// "ProfileRecord.addresses[0].street" becomes "addresses[0].street".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func check(scope string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %s: %w", scope, err)
	}
	set := &domain.ErrValidationSet{Scope: scope}
	for _, fe := range fieldErrs {
		set.Fields = append(set.Fields, domain.FieldError{
			Field:   fieldPath(fe),
			Message: messageFor(fe),
		})
	}
	return set
}

// ValidateAddress checks a single address against the address schema.
func ValidateAddress(a domain.AddressRecord) error {
	return check("address", a)
}

// ValidateProfileFields checks the top-level profile inputs.
func ValidateProfileFields(p ProfileFields) error {
	return check("profile", p)
}

// ValidateProfile checks a full profile, addresses included.
func ValidateProfile(p domain.ProfileRecord) error {
	return check("profile", p)
}

// validationFields flattens err into inline messages; nil for nil.
func validationFields(err error) []domain.FieldError {
	var set *domain.ErrValidationSet
	if errors.As(err, &set) {
		return set.Fields
	}
	return nil
}
