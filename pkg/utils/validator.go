package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ronl/business-api/pkg/errors"
)

// defaultValidator is shared by every request DTO.
var defaultValidator *validator.Validate

// resourceKeyPattern matches engine definition keys and instance/task ids.
var resourceKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:-]{0,254}$`)

func init() {
	defaultValidator = validator.New()
	_ = defaultValidator.RegisterValidation("resourcekey", validateResourceKey)
}

// ValidateStruct validates a struct using the default validator.
// It returns a VALIDATION_ERROR carrying a per-field message map.
func ValidateStruct(s interface{}) errors.AppError {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ErrValidation(err.Error())
	}
	details := make(map[string]string, len(validationErrors))
	for _, fe := range validationErrors {
		details[toSnakeCase(fe.Field())] = formatValidationError(fe)
	}
	return errors.ErrValidation("Request validation failed").WithDetails(details)
}

// ValidResourceKey reports whether s is usable as a path segment towards the engine.
func ValidResourceKey(s string) bool {
	return resourceKeyPattern.MatchString(s)
}

func validateResourceKey(fl validator.FieldLevel) bool {
	return ValidResourceKey(fl.Field().String())
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "resourcekey":
		return "must be 1-255 characters of letters, digits, '_', '.', ':' or '-'"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// toSnakeCase converts CamelCase field names to snake_case for error details.
func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}
