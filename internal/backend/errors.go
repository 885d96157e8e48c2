package backend

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
)

// messageFields are checked in order; the auth API uses msg or
// error_description, the data API uses message.
var messageFields = []string{"msg", "message", "error_description", "error"}

var codeFields = []string{"error_code", "code", "error"}

// classify turns a non-2xx response into an AuthError. A body without any
// usable message field is unclassified, and the caller falls back to its
// own copy.
func classify(status int, body []byte) *domain.AuthError {
	ae := &domain.AuthError{Kind: domain.KindUnclassified, Status: status}

	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		ae.Err = fmt.Errorf("status %d: unparseable error body", status)
		return ae
	}

	ae.Code = firstString(fields, codeFields)
	if msg := firstString(fields, messageFields); msg != "" {
		ae.Kind = domain.KindBackend
		ae.Message = msg
	}
	ae.Err = fmt.Errorf("status %d: %s", status, ae.Code)
	return ae
}

func firstString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		if v, ok := fields[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// IsStatus reports whether err is an AuthError carrying one of statuses.
func IsStatus(err error, statuses ...int) bool {
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		return false
	}
	for _, s := range statuses {
		if ae.Status == s {
			return true
		}
	}
	return false
}
