package service

import (
	"errors"

	apperrors "be-guichet/pkg/errors"
)

// isBusinessError reports whether err is a rule violation the caller must
// fix, as opposed to an infrastructure failure
func isBusinessError(err error) bool {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	switch appErr.Type {
	case apperrors.ErrorTypeUnavailable, apperrors.ErrorTypeInternal:
		return false
	}
	return true
}
