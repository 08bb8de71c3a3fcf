package student

import (
	"regexp"
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/tkceria/ceria/core"
)

var (
	academicYearTag   = "academicyear"
	academicYearText  = "{0} must be an academic year such as 2024/2025"
	academicYearRegex = regexp.MustCompile(`^(\d{4})/(\d{4})$`)
)

// RegisterValidators registers the class and student validations on validate.
func RegisterValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(academicYearTag, academicYearValidation)
	core.RegisterCustomTranslation(validate, translator, academicYearTag, academicYearText)
}

// academicYearValidation accepts "YYYY/YYYY" spanning consecutive years.
func academicYearValidation(fl validator.FieldLevel) bool {
	m := academicYearRegex.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	return to == from+1
}
