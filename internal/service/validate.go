package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var loginNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// SignupInput is the body of POST /api/auth/signup.
type SignupInput struct {
	LoginName string `json:"loginName" validate:"required,min=3,max=50,loginname"`
	Password  string `json:"password" validate:"required,min=6,strongpassword"`
	Role      int    `json:"role" validate:"required,oneof=99 89"`
}

// LoginInput is the body of POST /api/auth/login.
type LoginInput struct {
	LoginName string `json:"loginName" validate:"required"`
	Password  string `json:"password" validate:"required"`
}

// ChangePasswordInput is the body of PUT /api/auth/password.
type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,strongpassword"`
}

// messages keyed by "<json field>.<failed tag>"; "<json field>" is the
// fallback for tags without their own wording.
var messages = map[string]string{
	"loginName.required":         "Login name is required",
	"loginName.min":              "Login name must be between 3 and 50 characters",
	"loginName.max":              "Login name must be between 3 and 50 characters",
	"loginName.loginname":        "Login name can only contain letters, numbers, underscores, and hyphens",
	"password.required":          "Password is required",
	"password.min":               "Password must be at least 6 characters long",
	"password.strongpassword":    "Password must contain at least one uppercase letter, one lowercase letter, and one number",
	"role.required":              "Role is required",
	"role.oneof":                 "Role must be either 99 (Admin) or 89 (Staff)",
	"currentPassword.required":   "Current password is required",
	"newPassword.required":       "New password is required",
	"newPassword.min":            "New password must be at least 6 characters long",
	"newPassword.strongpassword": "New password must contain at least one uppercase letter, one lowercase letter, and one number",
	"loginName":                  "Login name is invalid",
	"password":                   "Password is invalid",
	"role":                       "Role is invalid",
	"currentPassword":            "Current password is invalid",
	"newPassword":                "New password is invalid",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("loginname", func(fl validator.FieldLevel) bool {
		return loginNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return strongPassword(fl.Field().String())
	})
	return v
}

// strongPassword only counts ASCII letters and digits toward the required
// character classes.
func strongPassword(s string) bool {
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case 'A' <= r && r <= 'Z':
			upper = true
		case 'a' <= r && r <= 'z':
			lower = true
		case '0' <= r && r <= '9':
			digit = true
		}
	}
	return upper && lower && digit
}

// check runs struct validation and turns failures into a KindValidation
// error with one message per field.
func (s *AuthService) check(in interface{}) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return newError(KindValidation, "Validation failed", err)
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = messages[fe.Field()]
		}
		fields = append(fields, FieldError{Field: fe.Field(), Message: msg})
	}
	return &Error{Kind: KindValidation, Message: "Validation failed", Fields: fields}
}
