package service

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"qr-wallet/config"
	"qr-wallet/pkg/apperror"

	"github.com/go-playground/validator/v10"
)

// ValidationHelper runs struct-tag validation on service inputs.
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a validator with the wallet rules registered.
func NewValidationHelper(cfg config.WalletConfig) *ValidationHelper {
	v := validator.New()
	_ = v.RegisterValidation("phone_digits", func(fl validator.FieldLevel) bool {
		return isPhoneNumber(fl.Field().String(), cfg.MinPhoneDigits)
	})
	_ = v.RegisterValidation("pin_length", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) >= cfg.MinPINLength
	})
	return &ValidationHelper{validator: v}
}

// ValidateStruct returns a VAL_001 error naming the first failing field.
func (vh *ValidationHelper) ValidateStruct(s any) error {
	err := vh.validator.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return apperror.Validation(fmt.Sprintf("%s failed on '%s'", fe.Field(), fe.Tag()))
	}
	return apperror.Validation(err.Error())
}

// normalizePhone strips spaces, dashes and parentheses.
func normalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

func isPhoneNumber(phone string, minDigits int) bool {
	digits := 0
	for i, r := range phone {
		switch {
		case unicode.IsDigit(r) && r < unicode.MaxASCII:
			digits++
		case r == '+' && i == 0:
		default:
			return false
		}
	}
	return digits >= minDigits
}
