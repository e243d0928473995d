package service

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/studio-api/internal/repository"
	"github.com/noah-isme/studio-api/pkg/docstore"
	appErrors "github.com/noah-isme/studio-api/pkg/errors"
	"github.com/noah-isme/studio-api/pkg/identity"
)

// remoteError wraps a backend failure, keeping its identity or docstore code.
func remoteError(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	code := identity.CodeOf(err)
	if code == "" {
		code = docstore.CodeOf(err)
	}
	return appErrors.Remote(err, code, message)
}

// validationError converts validator output into a ValidationError.
func validationError(err error, message string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		e := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
		e.Message = message + ": " + verrs[0].Field() + " failed " + verrs[0].Tag()
		return e
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// identityError maps identity codes onto user-facing application errors.
func identityError(err error) error {
	code := identity.CodeOf(err)
	switch code {
	case identity.CodeEmailInUse:
		e := appErrors.Clone(appErrors.ErrConflict, identity.Message(code))
		e.BackendCode = code
		return e
	case identity.CodeInvalidEmail, identity.CodeWeakPassword:
		e := appErrors.Validation(identity.Message(code))
		e.BackendCode = code
		return e
	case identity.CodeWrongPassword, identity.CodeUserNotFound, identity.CodeInvalidCredential:
		e := appErrors.Clone(appErrors.ErrInvalidCredentials, identity.Message(code))
		e.BackendCode = code
		return e
	default:
		return remoteError(err, identity.Message(code))
	}
}

func identityOrStoreCode(err error) string {
	if code := identity.CodeOf(err); code != "" {
		return code
	}
	if code := docstore.CodeOf(err); code != "unknown" {
		return code
	}
	return ""
}

func isNotFound(err error) bool {
	return repository.IsNotFound(err)
}
