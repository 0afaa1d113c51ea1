package types

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

type (
	// Body of every error answer. Fields maps request fields to what is wrong with them.
	Error struct {
		Fields  *map[string]string `json:"fields,omitempty" validate:"optional"`
		Message string             `json:"message"          validate:"required"`
	}
)

func StringError(message string) Error {
	return Error{Message: message}
}

// ValidationError lists the failing rule per field when err came from the validator
func ValidationError(err error) Error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return Error{Message: "validation error"}
	}

	fields := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		problem := fmt.Sprintf("failed %q", fe.Tag())
		if fe.Param() != "" {
			problem = fmt.Sprintf("failed %q (%s)", fe.Tag(), fe.Param())
		}
		fields[fe.Namespace()] = problem
	}

	return Error{Message: "validation error", Fields: &fields}
}

// Error pointing at a single request field
func FieldError(message string, field string, problem string) Error {
	return Error{Message: message, Fields: &map[string]string{field: problem}}
}
