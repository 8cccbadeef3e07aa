package capture

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies capture failures. A Kind is itself an error so it can be
// used as an errors.Is target.
type Kind uint8

const (
	InterfaceNotFound Kind = iota + 1
	NameTooLong
	BindFailed
	PromiscuousModeFailed
	OutputUnavailable
	HeaderWriteFailed
	SocketReadFailed
	RecordWriteFailed
)

func (k Kind) String() string {
	switch k {
	case InterfaceNotFound:
		return "interface not found"
	case NameTooLong:
		return "interface name too long"
	case BindFailed:
		return "bind failed"
	case PromiscuousModeFailed:
		return "promiscuous mode failed"
	case OutputUnavailable:
		return "output unavailable"
	case HeaderWriteFailed:
		return "header write failed"
	case SocketReadFailed:
		return "socket read failed"
	case RecordWriteFailed:
		return "record write failed"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) Error() string {
	return k.String()
}

// Error is a failure of one capture step on one interface.
type Error struct {
	Kind  Kind
	Iface string
	Err   error
}

func newError(kind Kind, iface string, err error) *Error {
	return &Error{Kind: kind, Iface: iface, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Iface, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Iface, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is e's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// KindOf returns the Kind carried by err, or 0 if there is none.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}

// lifecycle errors
var (
	ErrNotInitialized     = errors.New("capture session is not initialized")
	ErrAlreadyInitialized = errors.New("capture session is already initialized")
	ErrAlreadyStarted     = errors.New("capture already started")
	ErrNotStarted         = errors.New("capture not started")
	ErrSessionStopped     = errors.New("capture session stopped")
	ErrSessionUnusable    = errors.New("capture session failed to initialize, create a new one")
	ErrEndOfStream        = errors.New("socket returned no data")
	ErrUnsupported        = errors.New("raw capture is not supported on this platform")
)
