package ecochat

// Error is a sentinel error type for connection and chat failures.
type Error string

func (e Error) Error() string { return string(e) }

var (
	ErrInvalidMessageFormat = Error("invalid message format")
	ErrClientNotFound       = Error("client not found")
	ErrConnectionClosed     = Error("client connection is closed")
	ErrContextCancelled     = Error("client context cancelled")
	ErrFailedToEncode       = Error("failed to encode message")
	ErrServerClosed         = Error("websocket server is closed")
	ErrAlreadyInGroup       = Error("connection already in group")
	ErrNotInGroup           = Error("connection not in group")
	ErrEmptyGroup           = Error("group name cannot be empty")
)
