package executor

// Column describes a column in a command result.
type Column struct {
	Name     string
	TypeOID  int32 // PostgreSQL type OID for wire protocol
	TypeSize int16 // type size in bytes (-1 for variable length)
}

// Result is the outcome of executing a single command.
type Result struct {
	// Columns is set for commands that return rows. nil otherwise.
	Columns []Column

	// Rows holds text-encoded values (nil entry means NULL). Outer slice =
	// rows, inner slice = columns.
	Rows [][][]byte

	// Tag is the CommandComplete tag, e.g. "SELECT 2", "BORROW".
	Tag string

	// Notices are sent to the client as NoticeResponse messages before
	// the rows.
	Notices []string
}

// PostgreSQL type OIDs for the column types the executor produces.
const (
	OIDInt8    int32 = 20  // INT8 / BIGINT
	OIDText    int32 = 25  // TEXT
	OIDFloat8  int32 = 701 // FLOAT8
	OIDUnknown int32 = 705 // UNKNOWN
)

func intColumn(name string) Column {
	return Column{Name: name, TypeOID: OIDInt8, TypeSize: 8}
}

func textColumn(name string) Column {
	return Column{Name: name, TypeOID: OIDText, TypeSize: -1}
}

func floatColumn(name string) Column {
	return Column{Name: name, TypeOID: OIDFloat8, TypeSize: 8}
}
