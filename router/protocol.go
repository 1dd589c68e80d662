package router

// ProtocolType is the transport class of an inbound connection.
type ProtocolType uint8

const (
	ProtocolHTTP ProtocolType = iota
	ProtocolWebSocket

	numProtocolTypes
)

// Wire-level protocol tags.
const (
	TagHTTP      = "http"
	TagWebSocket = "websocket"
)

// String returns the wire-level tag of p.
func (p ProtocolType) String() string {
	switch p {
	case ProtocolHTTP:
		return TagHTTP
	case ProtocolWebSocket:
		return TagWebSocket
	default:
		return "unknown"
	}
}

// Valid reports whether p is one of the supported protocol types.
func (p ProtocolType) Valid() bool {
	return p < numProtocolTypes
}

// ProtocolTypes returns every supported protocol type in table order.
func ProtocolTypes() []ProtocolType {
	return []ProtocolType{ProtocolHTTP, ProtocolWebSocket}
}

// ParseProtocolType converts a wire-level tag into a ProtocolType.
// Matching is exact and case-sensitive.
func ParseProtocolType(tag string) (ProtocolType, error) {
	switch tag {
	case TagHTTP:
		return ProtocolHTTP, nil
	case TagWebSocket:
		return ProtocolWebSocket, nil
	default:
		return 0, &ProtocolNotSupportedError{Protocol: tag}
	}
}
