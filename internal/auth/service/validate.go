package service

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var (
	passwordRules = []validation.Rule{
		validation.Required,
		validation.Length(MinPasswordLength, MaxPasswordLength),
	}
	emailRules = []validation.Rule{
		validation.Required,
		validation.Length(3, 254),
		validation.Match(emailPattern).Error("must be a valid email address"),
	}
)

// RegisterInput is what a new account signs up with.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in *RegisterInput) normalize() {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = normalizeEmail(in.Email)
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username,
			validation.Required,
			validation.Length(3, 32),
			validation.Match(usernamePattern).Error("must contain only letters, digits and underscores"),
		),
		validation.Field(&in.Email, emailRules...),
		validation.Field(&in.Password, passwordRules...),
	)
}

func validatePassword(password string) error {
	if err := validation.Validate(password, passwordRules...); err != nil {
		return invalidInput(validation.Errors{"password": err})
	}
	return nil
}

func validateEmail(email string) error {
	if err := validation.Validate(email, emailRules...); err != nil {
		return invalidInput(validation.Errors{"email": err})
	}
	return nil
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// maskEmail keeps the first character of the local part and the domain:
// alice@example.com becomes a***@example.com.
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(local)
	return local[:size] + "***@" + domain
}
