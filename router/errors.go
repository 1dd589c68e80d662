package router

import "fmt"

// Error is a sentinel error type for routing failures.
type Error string

func (e Error) Error() string { return string(e) }

var (
	// ErrProtocolNotSupported is matched by every *ProtocolNotSupportedError.
	ErrProtocolNotSupported = Error("protocol not supported")

	// ErrNoRoute is matched by every *NoRouteError.
	ErrNoRoute = Error("no route matches path")

	ErrNilHandler          = Error("handler cannot be nil")
	ErrUnknownProtocolType = Error("unknown protocol type")
	ErrNoRoutes            = Error("route list is empty")
	ErrInvalidPattern      = Error("invalid route pattern")
	ErrMissingTransport    = Error("scope has no http transport")
)

// ProtocolNotSupportedError is returned when a connection declares a protocol
// that has no entry in the routing table.
type ProtocolNotSupportedError struct {
	Protocol string
}

func (e *ProtocolNotSupportedError) Error() string {
	return fmt.Sprintf("protocol %q not supported", e.Protocol)
}

func (e *ProtocolNotSupportedError) Is(target error) bool {
	return target == ErrProtocolNotSupported
}

// NoRouteError is returned by URLRouter when no pattern matches the scope path.
type NoRouteError struct {
	Path string
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no route matches path %q", e.Path)
}

func (e *NoRouteError) Is(target error) bool {
	return target == ErrNoRoute
}
