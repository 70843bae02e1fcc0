package pgwire

// Protocol version 3.0.
const ProtocolVersion int32 = 196608 // 3 << 16

// SSL request code sent by clients before the real startup message.
const SSLRequestCode int32 = 80877103

// MaxMessageSize bounds the length of any single frontend message.
// Commands are short; anything larger is treated as a protocol violation.
const MaxMessageSize = 1 << 20

// Frontend (client → server) message types.
const (
	MsgPasswordMessage byte = 'p'
	MsgQuery           byte = 'Q'
	MsgTerminate       byte = 'X'

	// Extended query protocol. Not supported; see IsExtendedQuery.
	MsgParse    byte = 'P'
	MsgBind     byte = 'B'
	MsgDescribe byte = 'D'
	MsgExecute  byte = 'E'
	MsgClose    byte = 'C'
	MsgFlush    byte = 'H'
	MsgSync     byte = 'S'
)

// IsExtendedQuery reports whether msgType belongs to the extended query
// protocol (everything up to and including Sync).
func IsExtendedQuery(msgType byte) bool {
	switch msgType {
	case MsgParse, MsgBind, MsgDescribe, MsgExecute, MsgClose, MsgFlush, MsgSync:
		return true
	}
	return false
}

// Backend (server → client) message types.
const (
	MsgAuthentication     byte = 'R'
	MsgBackendKeyData     byte = 'K'
	MsgCommandComplete    byte = 'C'
	MsgDataRow            byte = 'D'
	MsgErrorResponse      byte = 'E'
	MsgEmptyQueryResponse byte = 'I'
	MsgNoticeResponse     byte = 'N'
	MsgParameterStatus    byte = 'S'
	MsgReadyForQuery      byte = 'Z'
	MsgRowDescription     byte = 'T'
)

// Authentication sub-types (carried inside 'R' messages).
const (
	AuthOk                int32 = 0
	AuthCleartextPassword int32 = 3
)

// Transaction status indicators for ReadyForQuery.
const (
	TxIdle   byte = 'I'
	TxInTx   byte = 'T'
	TxFailed byte = 'E'
)

// StartupMessage is the initial message sent by the client after the TCP
// connection is established (and after an optional SSL negotiation).
type StartupMessage struct {
	ProtocolVersion int32
	Parameters      map[string]string
}

// Severity levels for ErrorResponse and NoticeResponse.
const (
	SeverityError  = "ERROR"
	SeverityFatal  = "FATAL"
	SeverityNotice = "NOTICE"
)

// ColumnInfo describes a single column in a RowDescription message.
type ColumnInfo struct {
	Name         string
	TableOID     int32
	ColumnAttr   int16
	DataTypeOID  int32
	DataTypeSize int16
	TypeModifier int32
	FormatCode   int16
}
