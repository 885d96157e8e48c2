package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
	"github.com/ErlanBelekov/backup-desk/internal/password"
	"github.com/go-playground/validator/v10"
)

const (
	errInvalidForm    = "Invalid form submission"
	errInvalidLink    = "Email link is invalid or has expired"
	errNoSession      = "Auth session missing!"
	msgProfileUpdated = "Profile updated"
)

// fieldMessages maps struct field and validator tag to the inline message.
var fieldMessages = map[string]map[string]string{
	"Email": {
		"required": "Email is required",
		"email":    "Please enter a valid email address",
	},
	"Password": {
		"required":   "Password is required",
		"min":        "Password must be at least 8 characters long",
		password.Tag: "Password must include uppercase, lowercase, number and special character",
	},
	"ConfirmPassword": {
		"required": "Please confirm your password",
		"eqfield":  "Passwords do not match",
	},
}

// fieldErrors turns binding failures into per-input messages keyed by form
// field name. ok is false when err is not a validation failure.
func fieldErrors(err error) (out map[string]string, ok bool) {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil, false
	}
	out = make(map[string]string, len(ves))
	for _, fe := range ves {
		msg := fieldMessages[fe.Field()][fe.Tag()]
		if msg == "" {
			msg = fe.Error()
		}
		out[formName(fe.Field())] = msg
	}
	return out, true
}

func formName(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// statusFor picks the response code a screen is re-rendered with after a
// failed action.
func statusFor(err error) int {
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		return http.StatusInternalServerError
	}
	switch ae.Kind {
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindSessionMissing:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindNetwork:
		return http.StatusBadGateway
	case domain.KindBackend:
		if ae.Status >= 400 && ae.Status < 500 {
			return ae.Status
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
