package course

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/eduflow/eduflow/core"
)

var (
	levelTag  = "courselevel"
	levelText = "invalid level; must be one of: beginner, intermediate, advanced"
)

// InitValidators registers course-specific validators and translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(levelTag, levelValidation)
	core.RegisterCustomTranslation(validate, translator, levelTag, levelText)
}

// levelValidation checks that the provided level is one of AllLevels.
func levelValidation(fl validator.FieldLevel) bool {
	level, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	for _, l := range AllLevels {
		if level == l {
			return true
		}
	}
	return false
}
