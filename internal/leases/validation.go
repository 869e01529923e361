package leases

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("leases: validation failed")

// FieldError names one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field.Field, field.Message))
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return validate
}

func validateStruct(value any) error {
	err := structValidator.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	result := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrors))}
	for _, fieldError := range fieldErrors {
		result.Fields = append(result.Fields, FieldError{
			Field:   trimNamespace(fieldError.Namespace()),
			Message: describeTag(fieldError),
		})
	}
	return result
}

func trimNamespace(namespace string) string {
	if index := strings.Index(namespace, "."); index >= 0 {
		return namespace[index+1:]
	}
	return namespace
}

func describeTag(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be an email address"
	case "datetime":
		return "must be a date formatted " + fieldError.Param()
	case "gte":
		return "must be at least " + fieldError.Param()
	default:
		return "failed " + fieldError.Tag()
	}
}

// Validate checks that every required section of the draft is complete.
func (d ApplicationDraft) Validate() error {
	return validateStruct(d)
}

// Validate checks the terms: positive rent, non-negative deposit, ISO dates with end after start.
func (t LeaseTerms) Validate() error {
	if err := validateStruct(t); err != nil {
		return err
	}
	var fields []FieldError
	if !t.Rent.IsPositive() {
		fields = append(fields, FieldError{Field: "rent", Message: "must be greater than 0"})
	}
	if t.Deposit.IsNegative() {
		fields = append(fields, FieldError{Field: "deposit", Message: "must not be negative"})
	}
	start, _ := time.Parse(time.DateOnly, t.StartDate)
	end, _ := time.Parse(time.DateOnly, t.EndDate)
	if !end.After(start) {
		fields = append(fields, FieldError{Field: "end_date", Message: "must be after start_date"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// VerifySignature checks that signature matches fullName after trimming, case-sensitively.
func VerifySignature(fullName, signature string) error {
	expected := strings.TrimSpace(fullName)
	if expected == "" {
		return newValidationError("personal.full_name", "is required before signing")
	}
	if strings.TrimSpace(signature) != expected {
		return newValidationError("signature", "must match the applicant's full name")
	}
	return nil
}
