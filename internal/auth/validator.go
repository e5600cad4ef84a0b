package auth

import (
	"errors"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/aura-webinar/live/pkg/utils"
)

// RegisterValidators adds the "mobile" binding tag to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return v.RegisterValidation("mobile", func(fl validator.FieldLevel) bool {
		return utils.IsValidMobile(utils.NormalizeMobile(fl.Field().String()))
	})
}

// bindingMessage turns a binding error into a client-facing message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request body"
	}
	switch fe := verrs[0]; fe.Field() {
	case "Mobile":
		return ErrInvalidMobile.Error()
	case "Email":
		return "invalid email address"
	default:
		if fe.Tag() == "required" {
			return fe.Field() + " is required"
		}
		return "invalid " + fe.Field()
	}
}
