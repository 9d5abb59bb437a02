package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var paymentCodeRe = regexp.MustCompile(`^[A-Z]{2}\.[A-Z]{2}$`)

// v is the package-level singleton validator. Custom tags are registered in init
// before the first call to Struct.
var v = validator.New()

func init() {
	// paymentcode: "<METHOD>.<PHASE>", e.g. DD.DB
	_ = v.RegisterValidation("paymentcode", func(fl validator.FieldLevel) bool {
		return paymentCodeRe.MatchString(fl.Field().String())
	})
	// flag: the processor's upper-case boolean strings
	_ = v.RegisterValidation("flag", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "TRUE" || s == "FALSE"
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
