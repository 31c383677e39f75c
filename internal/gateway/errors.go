package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrTimeout             = errors.New("gateway request timed out")
	ErrNoRedirectURL       = errors.New("no redirect url found in gateway response")
	ErrUnknownStatus       = errors.New("unrecognised gateway status")
	ErrTransactionMismatch = errors.New("gateway answered for a different transaction")
)

// Error is a failure reported by, or while talking to, the payment gateway.
type Error struct {
	Op         string
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("gateway %s failed", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Code != "" {
		msg += fmt.Sprintf(": %s", e.Code)
	}
	if e.Message != "" {
		msg += fmt.Sprintf(": %s", e.Message)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a gateway call that ran out of time.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
