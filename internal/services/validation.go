package services

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Account names follow the token ledger's naming rules: up to 12 of
// a-z, 1-5 and '.'.
var accountPattern = regexp.MustCompile(`^[a-z1-5.]{1,12}$`)

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a validator that also understands the
// "account" tag.
func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterValidation("account", func(fl validator.FieldLevel) bool {
		return accountPattern.MatchString(fl.Field().String())
	})
	return &ValidationHelper{validator: v}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// ValidateAccount checks a bare account name, such as a path parameter.
func (vh *ValidationHelper) ValidateAccount(account string) error {
	return vh.validator.Var(account, "required,account")
}

// FieldErrors flattens validator errors into field → message.
func FieldErrors(err error) map[string]string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", fe.Tag())
	}
	return details
}
