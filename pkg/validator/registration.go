package validator

import (
	"errors"
	"strings"
	"unicode/utf8"

	playground "github.com/go-playground/validator/v10"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

var (
	// ErrInvalidEmail indicates a malformed email address
	ErrInvalidEmail = errors.New("email address is not valid")

	// ErrPasswordTooShort indicates a password under MinPasswordLength characters
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")

	// ErrEmptyName indicates a blank full name
	ErrEmptyName = errors.New("full name cannot be empty")
)

// Registration holds the fields of a sign-up form after validation
type Registration struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// RegistrationValidator validates sign-up forms
type RegistrationValidator struct {
	fields *playground.Validate
	phone  *PhoneValidator
}

// NewRegistrationValidator creates a new registration validator
func NewRegistrationValidator() *RegistrationValidator {
	return &RegistrationValidator{
		fields: playground.New(),
		phone:  NewPhoneValidator(),
	}
}

// ValidateEmail returns the trimmed, lower-cased address
func (v *RegistrationValidator) ValidateEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := v.fields.Var(email, "required,email,max=254"); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidatePassword checks the password length in characters
func (v *RegistrationValidator) ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// Validate checks every field and returns the normalized form. The first
// failing field's error is returned.
func (v *RegistrationValidator) Validate(email, password, fullName, phone string) (*Registration, error) {
	normalizedEmail, err := v.ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, ErrEmptyName
	}

	normalizedPhone, err := v.phone.Validate(phone)
	if err != nil {
		return nil, err
	}

	if err := v.ValidatePassword(password); err != nil {
		return nil, err
	}

	return &Registration{
		Email:    normalizedEmail,
		Password: password,
		FullName: fullName,
		Phone:    normalizedPhone,
	}, nil
}
