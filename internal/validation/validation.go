// Package validation はリクエストペイロードの入力検証を提供する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/learnhub/internal/model"
)

// DateLayout は生年月日などの日付文字列の形式。
const DateLayout = "2006-01-02"

const notFutureDateTag = "notfuture"

// Validator はvalidator/v10をラップし、検証エラーをAPIErrorへ変換する。
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

// New はJSONタグ名でフィールドを報告するValidatorを生成する。
func New() *Validator {
	v := &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}

	v.validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// 空文字は検証対象外。形式の検証はdatetimeタグで行う
	_ = v.validate.RegisterValidation(notFutureDateTag, func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		d, err := time.Parse(DateLayout, s)
		if err != nil {
			return false
		}
		return !d.After(v.now())
	})

	return v
}

// Struct は構造体を検証する。
// 不正な場合はVALIDATION_FAILEDのAPIErrorを返す。
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return model.NewValidationError(err.Error())
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, describe(fe))
	}
	return model.NewValidationError(strings.Join(msgs, "; "))
}

// describe はフィールドエラーを利用者向けの文言に変換する。
func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	case "datetime":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD format", field)
	case notFutureDateTag:
		return fmt.Sprintf("%s must not be in the future", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ParseDate はYYYY-MM-DD形式の文字列をUTCの日付に変換する。空文字はnilを返す。
func ParseDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, model.NewValidationError("date_of_birth must be a date in YYYY-MM-DD format")
	}
	return &d, nil
}
