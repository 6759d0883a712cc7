package utils

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value against its validate struct tags and rewrites
// validator errors into a message safe to return to callers.
func Validate[T any](value T) (T, error) {
	err := validate.Struct(value)
	if err == nil {
		return value, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return value, err
	}

	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		part := fmt.Sprintf("field %q failed rule %q", fe.StructField(), fe.Tag())
		if fe.Param() != "" {
			part += fmt.Sprintf(" (expected %q, got %v)", fe.Param(), fe.Value())
		}
		parts = append(parts, part)
	}
	return value, errors.New(strings.Join(parts, "; "))
}
