package entity

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy. Callers wrap these with fmt.Errorf("%w: ...") and match
// them with errors.Is.
var (
	ErrInvalidName            = errors.New("invalid name")
	ErrUnsupportedProvider    = errors.New("unsupported provider")
	ErrAlreadyExists          = errors.New("already exists")
	ErrNotFound               = errors.New("not found")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrMissingCredential      = errors.New("missing credential")
	ErrTimeout                = errors.New("timed out")
	ErrDownstreamReloadFailed = errors.New("downstream reload failed")
	ErrDeclined               = errors.New("declined")
	ErrInsufficientPrivilege  = errors.New("insufficient privilege")
	ErrConflict               = errors.New("concurrent modification")
)

// Process exit codes.
const (
	ExitOK                = 0
	ExitUsage             = 1
	ExitConflict          = 2
	ExitDeclined          = 3
	ExitPrivilege         = 4
	ExitMissingCredential = 5
)

var categories = []struct {
	err      error
	category string
	code     int
}{
	{ErrInvalidName, "InvalidName", ExitUsage},
	{ErrUnsupportedProvider, "UnsupportedProvider", ExitUsage},
	{ErrAlreadyExists, "AlreadyExists", ExitConflict},
	{ErrNotFound, "NotFound", ExitConflict},
	{ErrDeclined, "Declined", ExitDeclined},
	{ErrInsufficientPrivilege, "InsufficientPrivilege", ExitPrivilege},
	{ErrMissingCredential, "MissingCredential", ExitMissingCredential},
	{ErrStoreUnavailable, "StoreUnavailable", ExitUsage},
	{ErrConflict, "Conflict", ExitUsage},
	{ErrTimeout, "Timeout", ExitUsage},
	{ErrDownstreamReloadFailed, "DownstreamReloadFailed", ExitUsage},
}

// Category returns the taxonomy name of err, or "Error" when it is not
// one of the known sentinels.
func Category(err error) string {
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.category
		}
	}
	return "Error"
}

// ExitCode maps err to the CLI exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, c := range categories {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return ExitUsage
}

// StepError reports a provisioning step that failed after earlier steps
// already created resources. Nothing is rolled back.
type StepError struct {
	Step    string
	Created []ResourceRef
	Err     error
}

func (e *StepError) Error() string {
	if len(e.Created) == 0 {
		return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
	}
	refs := make([]string, len(e.Created))
	for i, r := range e.Created {
		refs[i] = r.String()
	}
	return fmt.Sprintf("step %q failed (already in place: %s): %v", e.Step, strings.Join(refs, ", "), e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
