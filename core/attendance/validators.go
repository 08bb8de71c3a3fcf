package attendance

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tkceria/ceria/core"
)

var (
	statusTag  = "attstatus"
	statusText = "{0} must be one of " + strings.Join(Statuses, ", ")
)

func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(statusTag, statusValidation)
	core.RegisterCustomTranslation(validate, translator, statusTag, statusText)
}

func statusValidation(fl validator.FieldLevel) bool {
	return ValidStatus(fl.Field().String())
}
