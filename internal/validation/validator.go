// Package validation adapts the teacher's go-playground/validator wrapper
// to this domain: struct-tag validation for the HTTP request bodies in
// internal/api, catching malformed energy/price/value fields at the
// boundary before they ever reach the engine.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// Validator validates request structs against their `validate` tags.
type Validator struct {
	validator *validator.Validate
}

// NewValidator builds a Validator with the amount/price custom tags this
// domain needs registered.
func NewValidator() *Validator {
	v := validator.New()

	v.RegisterValidation("amount", validateAmount)
	v.RegisterValidation("price", validatePrice)

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: v}
}

// Validate validates a struct, returning a single joined, user-facing error
// message rather than the raw validator.ValidationErrors type.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			messages := make([]string, 0, len(validationErrors))
			for _, e := range validationErrors {
				messages = append(messages, formatValidationError(e))
			}
			return errors.New(strings.Join(messages, "; "))
		}
		return err
	}
	return nil
}

func formatValidationError(e validator.FieldError) string {
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "amount":
		return fmt.Sprintf("%s must be a positive energy amount", field)
	case "price":
		return fmt.Sprintf("%s must be a positive unit price", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// validateAmount requires a positive energy amount. Handled via the
// field's Kind rather than FieldLevel.Field().Float(), since this domain's
// amounts are unsigned integers (energy units), not floats.
func validateAmount(fl validator.FieldLevel) bool {
	return isPositive(fl.Field())
}

// validatePrice requires a positive unit price, for the same reason.
func validatePrice(fl validator.FieldLevel) bool {
	return isPositive(fl.Field())
}

func isPositive(field reflect.Value) bool {
	switch field.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return field.Uint() > 0
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return field.Int() > 0
	case reflect.Float32, reflect.Float64:
		return field.Float() > 0
	default:
		return false
	}
}
