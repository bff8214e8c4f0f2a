package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/authkit/session-auth/pkg/util"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterInput is the registration request after decoding.
type RegisterInput struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"emailshape"`
	Password  string `json:"password" validate:"min=6"`
}

// LoginInput is the login request after decoding.
type LoginInput struct {
	Email    string `json:"email" validate:"emailshape"`
	Password string `json:"password" validate:"min=6"`
}

// messages maps "<field>.<tag>" to the client-visible text.
var messages = map[string]string{
	"firstName.required": "First name is required",
	"lastName.required":  "Last name is required",
	"email.emailshape":   "Please provide a valid email address",
	"password.min":       "Password must be at least 6 characters long",
}

// Validator checks auth request bodies and reports every violation at once.
type Validator struct {
	validate *validator.Validate
}

// New builds a Validator with the auth rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Register trims the name and email fields in place and validates the input.
func (v *Validator) Register(in *RegisterInput) error {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)
	return v.check(in)
}

// Login trims the email in place and validates the input.
func (v *Validator) Login(in *LoginInput) error {
	in.Email = strings.TrimSpace(in.Email)
	return v.check(in)
}

func (v *Validator) check(in any) error {
	err := v.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	issues := make([]apperrors.Issue, 0, len(fieldErrs))
	seen := make(map[string]struct{}, len(fieldErrs))
	for _, fe := range fieldErrs {
		field := fe.Field()
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		issues = append(issues, apperrors.NewIssue(field, message(field, fe.Tag())))
	}
	return &apperrors.ValidationError{Issues: issues}
}

func message(field, tag string) string {
	if msg, ok := messages[field+"."+tag]; ok {
		return msg
	}
	return field + " is invalid"
}
