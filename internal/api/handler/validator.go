package handler

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/core/service"
)

// requestValidator lets Echo run struct tags through c.Validate.
type requestValidator struct {
	v *validator.Validate
}

// NewValidator reports fields by their json names.
func NewValidator() *requestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	return &requestValidator{v: v}
}

// Validate returns a *domain.ValidationError listing every violated tag.
func (rv *requestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	causes := make([]string, 0, len(ve))
	for _, fe := range ve {
		causes = append(causes, service.RuleMessage(fe.Field(), fe))
	}
	return domain.NewValidationError(causes)
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(f.Name)
	}
	return name
}
