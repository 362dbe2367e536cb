package httpapi

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const minPasswordLength = 5

type signupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate runs the signup rules on trimmed input.
func (r signupRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Password = strings.TrimSpace(r.Password)

	return validation.ValidateStruct(&r,
		validation.Field(&r.FullName, validation.Required.Error("Bad request")),
		validation.Field(&r.Email,
			validation.Required,
			is.Email.Error("Please enter a valid email"),
		),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(minPasswordLength, 0),
		),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}
