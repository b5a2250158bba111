package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/pharmacontrol/identity-service/internal/core/ports"
)

// passwordSymbols is the punctuation set accepted by PasswordStrength.
const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

const minPasswordStrengthLen = 8

// maxPasswordBytes is bcrypt's input limit. It counts bytes, not characters.
const maxPasswordBytes = 72

// fieldRule pairs a field name with the validator tags applied to its value.
type fieldRule struct {
	field string
	value any
	rule  string
}

// Validator evaluates explicit rule lists and reports every violation.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator backed by a fresh validator/v10 instance.
func NewValidator() *Validator {
	return &Validator{v: validator.New()}
}

// LoginRules reports every violated login rule; the password is only
// checked for presence.
func (val *Validator) LoginRules(in ports.LoginInput) []string {
	return val.check([]fieldRule{
		{field: "email", value: in.Email, rule: "required,email"},
		{field: "password", value: in.Password, rule: "required"},
	})
}

// CreateUserRules reports every violated registration rule. Optional fields
// are checked only when present. Password strength is checked separately by
// PasswordStrength.
func (val *Validator) CreateUserRules(in ports.CreateUserInput) []string {
	rules := []fieldRule{
		{field: "email", value: in.Email, rule: "required,email,max=100"},
		{field: "password", value: in.Password, rule: "required,min=6"},
		{field: "first_name", value: in.FirstName, rule: "required,max=50"},
	}
	if in.LastName != nil {
		rules = append(rules, fieldRule{field: "last_name", value: *in.LastName, rule: "omitempty,max=50"})
	}
	if in.RoleID != nil {
		rules = append(rules, fieldRule{field: "role_id", value: *in.RoleID, rule: "gt=0"})
	}
	return val.check(rules)
}

func (val *Validator) check(rules []fieldRule) []string {
	var causes []string
	for _, r := range rules {
		err := val.v.Var(r.value, r.rule)
		if err == nil {
			continue
		}
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			causes = append(causes, fmt.Sprintf("%s is invalid", r.field))
			continue
		}
		for _, fe := range ve {
			causes = append(causes, RuleMessage(r.field, fe))
		}
	}
	return causes
}

// RuleMessage renders one validator violation for field. The HTTP surface
// uses it too so both report rules in the same words.
func RuleMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}

// PasswordStrength returns every unmet strength rule for pw.
func PasswordStrength(pw string) []string {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}

	var causes []string
	if utf8.RuneCountInString(pw) < minPasswordStrengthLen {
		causes = append(causes, fmt.Sprintf("password must be at least %d characters long", minPasswordStrengthLen))
	}
	if len(pw) > maxPasswordBytes {
		causes = append(causes, fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}
	if !hasUpper {
		causes = append(causes, "password must contain an uppercase letter")
	}
	if !hasLower {
		causes = append(causes, "password must contain a lowercase letter")
	}
	if !hasDigit {
		causes = append(causes, "password must contain a digit")
	}
	if !hasSymbol {
		causes = append(causes, "password must contain one of "+passwordSymbols)
	}
	return causes
}
