package rbac

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"

	"github.com/odyssey-erp/odyssey-iam/internal/shared"
)

var validate = validator.New()

// validateInput runs struct tag validation and folds failures into ErrValidation.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			if fe.Param() != "" {
				msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
				continue
			}
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", shared.ErrValidation, err)
}

// normalizeName trims surrounding space and applies NFC so visually equal
// identifiers compare equal. Case is preserved.
func normalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := normalizeName(*s)
	return &v
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func requiredField(field string) error {
	return fmt.Errorf("%w: %s is required", shared.ErrValidation, field)
}
