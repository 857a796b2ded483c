// Package cerrors defines the error taxonomy shared by the key expander,
// block transform, and container layers, and wraps causes with
// github.com/pkg/errors so a caller can print a full stack trace on request.
package cerrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which of the seven documented failure modes an error
// represents. The CLI uses it to decide the exit message; callers should
// never need to match on Error() text.
type Kind int

const (
	// InvalidKeyLength: requested length outside [1024, 1<<30].
	InvalidKeyLength Kind = iota
	// InvalidInput: empty input file on encrypt, or bad CLI arguments.
	InvalidInput
	// CorruptContainer: under-minimum size, magic mismatch, unsupported
	// version, or an internal size field that can't be trusted.
	CorruptContainer
	// WrongKey: container fingerprint doesn't match the loaded key.
	WrongKey
	// IntegrityFailure: authentication tag mismatch.
	IntegrityFailure
	// RandomnessFailure: the CSPRNG refused to produce bytes.
	RandomnessFailure
	// IOFailure: underlying read/write (or allocation) failed.
	IOFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidKeyLength:
		return "InvalidKeyLength"
	case InvalidInput:
		return "InvalidInput"
	case CorruptContainer:
		return "CorruptContainer"
	case WrongKey:
		return "WrongKey"
	case IntegrityFailure:
		return "IntegrityFailure"
	case RandomnessFailure:
		return "RandomnessFailure"
	case IOFailure:
		return "IOFailure"
	default:
		return "Unknown"
	}
}

// CipherError is the concrete error type returned across every package
// boundary in this module (expander, block transform, CBC mode, both
// container formats). It always carries a Kind from the §7 taxonomy.
type CipherError struct {
	Kind Kind
	msg  string
	// cause is always non-nil: either errors.New(msg) for a fresh error, or
	// errors.Wrap(cause, msg) when an underlying failure is being wrapped.
	// Carrying it separately from msg lets %+v print a stack trace.
	cause error
}

// New creates a CipherError with a fresh stack trace rooted at the call site.
func New(kind Kind, msg string) error {
	return &CipherError{Kind: kind, msg: msg, cause: errors.New(msg)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, format string, args ...interface{}) error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap annotates cause with msg and tags it with kind, preserving cause's
// stack trace (or starting one here if cause doesn't carry one yet).
func Wrap(kind Kind, cause error, msg string) error {
	if cause == nil {
		return New(kind, msg)
	}
	return &CipherError{Kind: kind, msg: msg, cause: errors.Wrap(cause, msg)}
}

func (e *CipherError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *CipherError) Unwrap() error {
	return e.cause
}

// Format makes "%+v" print the full pkg/errors stack trace of the wrapped
// cause, the way the teacher's CLI surfaces errors.Wrap chains under -v.
func (e *CipherError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "%s: ", e.Kind)
		if f, ok := e.cause.(fmt.Formatter); ok {
			f.Format(s, verb)
			return
		}
		fmt.Fprint(s, e.cause.Error())
		return
	}
	fmt.Fprint(s, e.Error())
}

// KindOf extracts the Kind from err if it is (or wraps) a *CipherError.
func KindOf(err error) (Kind, bool) {
	var ce *CipherError
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// Is reports whether err is (or wraps) a *CipherError of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
