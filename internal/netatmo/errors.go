package netatmo

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the credentials were rejected; the user must
	// reconnect the account.
	ErrUnauthorized = errors.New("netatmo: reconnect required")
	// ErrUnavailable covers network failures, timeouts and 5xx responses.
	ErrUnavailable = errors.New("netatmo: service unavailable")
)

// Vendor error codes meaning the access token is invalid or expired.
const (
	codeInvalidToken = 2
	codeExpiredToken = 3
)

// APIError is a non-transient vendor error.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("netatmo: http %d code %d: %s", e.Status, e.Code, e.Message)
}

func classify(status int, body apiErrorBody) error {
	apiErr := &APIError{Status: status, Code: body.Error.Code, Message: body.Error.Message}
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr)
	case status == http.StatusForbidden && (apiErr.Code == codeInvalidToken || apiErr.Code == codeExpiredToken):
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr)
	case status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrUnavailable, apiErr)
	default:
		return apiErr
	}
}

// IsAuth reports whether err requires the user to reconnect.
func IsAuth(err error) bool { return errors.Is(err, ErrUnauthorized) }
