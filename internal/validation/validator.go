// Package validation はgo-playground/validatorによるリクエストDTOの検証を提供する。
// 検証エラーはmodel.NewValidationErrorに変換して返す。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/wearly/wearly/internal/model"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator はシングルトンのvalidatorを返す。
// フィールド名にはjsonタグの名前を使う。
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		// notblank は空白のみの文字列を拒否する
		if err := validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		}); err != nil {
			panic(fmt.Sprintf("register notblank: %v", err))
		}
	})
	return validate
}

// ValidateStruct は構造体を検証する。
// 検証に失敗した場合はVALIDATION_ERRORの*model.APIErrorを返す。
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.NewValidationError(err.Error())
	}

	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		messages = append(messages, message(fe))
	}
	return model.NewValidationError(strings.Join(messages, "; "))
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%sは必須です", field)
	case "email":
		return fmt.Sprintf("%sはメールアドレスの形式で指定してください", field)
	case "min":
		return fmt.Sprintf("%sは%s以上で指定してください", field, fe.Param())
	case "max":
		return fmt.Sprintf("%sは%s以下で指定してください", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%sは次のいずれかで指定してください: %s", field, fe.Param())
	case "latitude":
		return fmt.Sprintf("%sは-90から90の範囲で指定してください", field)
	case "longitude":
		return fmt.Sprintf("%sは-180から180の範囲で指定してください", field)
	case "datetime":
		return fmt.Sprintf("%sは%s形式で指定してください", field, fe.Param())
	case "uuid":
		return fmt.Sprintf("%sはUUID形式で指定してください", field)
	default:
		return fmt.Sprintf("%sが不正です（%s）", field, fe.Tag())
	}
}
