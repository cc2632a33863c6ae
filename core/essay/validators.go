package essay

import (
	"github.com/go-playground/validator/v10"

	"github.com/notamil/backend/core"
)

var (
	essayKindTag  = "essaykind"
	essayKindText = "invalid submission kind"
)

func init() {
	_ = core.Validate.RegisterValidation(essayKindTag, essayKindValidation)
	core.RegisterCustomTranslation(essayKindTag, essayKindText)
}

// essayKindValidation checks that the provided kind is one of AllKinds.
func essayKindValidation(fl validator.FieldLevel) bool {
	kind := Kind(fl.Field().String())
	for _, k := range AllKinds {
		if kind == k {
			return true
		}
	}
	return false
}
