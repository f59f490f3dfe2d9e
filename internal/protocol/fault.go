package protocol

import (
	"errors"
	"fmt"
)

// Well-known fault codes. ACCOUNTEXISTS is the only code interpreted by the
// account synchronizer; AUTH_EXPIRED is handled inside this package.
const (
	CodeAccountExists = "ACCOUNTEXISTS"
	CodeAuthExpired   = "AUTH_EXPIRED"
	CodeAuthFailed    = "AUTH_FAILED"
	CodeNoSuchAccount = "NO_SUCH_ACCOUNT"
)

// Fault is a structured error returned by the remote server. Code is
// machine-readable; Message is for logs only.
type Fault struct {
	Code    string
	Message string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("remote fault %s: %s", f.Code, f.Message)
}

// IsFaultCode reports whether err is (or wraps) a Fault with the given code.
func IsFaultCode(err error, code string) bool {
	var f *Fault
	return errors.As(err, &f) && f.Code == code
}

// IsAccountExists reports whether err is the naming-collision fault that
// triggers the synchronizer's suffix retry.
func IsAccountExists(err error) bool {
	return IsFaultCode(err, CodeAccountExists)
}
