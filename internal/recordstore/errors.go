package recordstore

import "fmt"

// Kind classifies a record-store failure per spec §4.1/§7.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindAuthFailure Kind = "auth_failure"
	KindConflict   Kind = "conflict"
	KindTransport  Kind = "transport"
	KindServer     Kind = "server_error"
)

// Error is the typed error every recordstore operation returns on failure.
type Error struct {
	Kind    Kind
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("recordstore: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("recordstore: %s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is allows errors.Is(err, recordstore.ErrNotFound) style checks by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newErr(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ErrNotFound, etc. are sentinels usable with errors.Is for kind checks;
// their Op/Err fields are ignored by Is.
var (
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrAuthFailure = &Error{Kind: KindAuthFailure}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrTransport   = &Error{Kind: KindTransport}
	ErrServer      = &Error{Kind: KindServer}
)
