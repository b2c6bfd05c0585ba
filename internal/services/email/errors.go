package email

import (
	"errors"
	"fmt"
	"strings"
)

// AuthError means the server rejected the configured credentials. It is
// never retried: the monitor loop stops and waits for the operator.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ConnectionError wraps a connect failure that is not an auth failure.
// RetriesExhausted tells the caller every configured attempt was spent;
// it should back off and widen its poll interval before trying again.
type ConnectionError struct {
	Err              error
	RetriesExhausted bool
}

func (e *ConnectionError) Error() string {
	if e.RetriesExhausted {
		return fmt.Sprintf("connection failed after all retries: %v", e.Err)
	}
	return fmt.Sprintf("connection failed: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// FetchError wraps a failure to retrieve one message. The message is
// skipped; the poll cycle continues.
type FetchError struct {
	ID  uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch message %d: %v", e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// transientMarkers are the substrings that classify an error as a likely
// temporary protocol or network failure. Classification by error text is
// deliberate: IMAP servers under soft-block return a variety of opaque
// errors whose only common trait is the wording.
var transientMarkers = []string{"eof", "protocol", "connection", "timeout", "socket"}

// IsTransient reports whether err looks like a temporary network or
// protocol failure that is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsAuthError reports whether err is (or wraps) an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
