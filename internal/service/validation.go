package service

import (
	"errors"

	apperrors "be-guichet/pkg/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateStruct runs the struct tags and reports failures field by field
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid input", nil)
	}

	details := make(map[string]interface{}, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Namespace()] = fe.Tag()
	}
	return apperrors.NewValidationError("validation failed", details)
}
