package server

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"photoshare/internal/apperr"
)

var handlePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	return v
}

// check validates in and reports failures as a field-keyed Validation error.
func (s *Server) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := map[string][]string{}
	for _, fe := range verrs {
		field, msg := fieldMessage(fe)
		fields[field] = append(fields[field], msg)
	}
	return apperr.Validation(fields)
}

func fieldMessage(fe validator.FieldError) (string, string) {
	field := fe.Field()
	label := strings.ReplaceAll(field, "_", " ")
	switch fe.Tag() {
	case "required":
		return field, "The " + label + " field is required."
	case "email":
		return field, "The " + label + " field must be a valid email address."
	case "max":
		return field, "The " + label + " field must not be greater than " + fe.Param() + " characters."
	case "min":
		return field, "The " + label + " field must be at least " + fe.Param() + " characters."
	case "eqfield":
		// Reported on the confirmed field, e.g. password.
		target := strings.ToLower(fe.Param())
		return target, "The " + target + " field confirmation does not match."
	case "handle":
		return field, "The " + label + " field must only contain letters, numbers and underscores."
	}
	return field, "The " + label + " field is invalid."
}
