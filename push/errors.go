package push

import (
	"errors"
	"fmt"
)

// ErrNotConfigured means no usable FCM transport was resolved. It is only
// surfaced when a send is attempted, never at construction.
var ErrNotConfigured = errors.New("no FCM transport configured")

// ErrLegacyOnly marks operations the v1 API has no equivalent for
var ErrLegacyOnly = errors.New("operation requires the legacy FCM transport")

var errMissingServiceAccountFields = errors.New("service account JSON is missing project_id, client_email or private_key")

// AuthError - OAuth2 access token issuance failed. Fatal for the current
// dispatch only.
type AuthError struct {
	Op     string
	Status int
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fcm auth: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("fcm auth: %s: status %d", e.Op, e.Status)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
