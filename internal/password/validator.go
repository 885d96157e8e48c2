package password

import "github.com/go-playground/validator/v10"

// Tag is the struct tag name bound to Acceptable.
const Tag = "strongpassword"

// RegisterValidation installs the strongpassword tag on v.
func RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation(Tag, func(fl validator.FieldLevel) bool {
		return Acceptable(fl.Field().String())
	})
}
