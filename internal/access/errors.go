package access

import "errors"

var (
	// ErrUnauthenticated means the request carried no credential at all.
	ErrUnauthenticated = errors.New("access: unauthenticated")

	// ErrForbidden means the principal's capability or scope denies the
	// operation.
	ErrForbidden = errors.New("access: forbidden")

	// ErrInternal covers every unexpected fault, including a credential that
	// does not resolve to a user. Callers surface it as an opaque internal
	// error so a spoofed identifier cannot be probed for user existence.
	ErrInternal = errors.New("access: internal fault")
)
