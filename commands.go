package ecochat

// Chat command IDs. Client and server use the same ids in both directions.
const (
	CmdPrivateMessage  uint32 = 0x0001
	CmdGroupMessage    uint32 = 0x0002
	CmdJoinGroup       uint32 = 0x0003
	CmdLeaveGroup      uint32 = 0x0004
	CmdOnlineUsers     uint32 = 0x0005
	CmdUserJoinedGroup uint32 = 0x0006
	CmdUserLeftGroup   uint32 = 0x0007
	CmdError           uint32 = 0x00FF
)

// Reserved command IDs for internal use.
const (
	// CmdJSONRPC is reserved for JSON-RPC 2.0 messages
	CmdJSONRPC      uint32 = 0xFFFFFFFF
	CmdJSONRPCError uint32 = 0xFFFFFFFE
)

// JSON-RPC error codes (following JSON-RPC 2.0 specification)
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// JSONRPCVersion is the only protocol version accepted.
const JSONRPCVersion = "2.0"

// JSON-RPC error messages
const (
	MsgParseError     = "Parse error"
	MsgInvalidRequest = "Invalid Request"
	MsgMethodNotFound = "Method not found"
	MsgInternalError  = "Internal error"
)
