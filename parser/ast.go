package parser

// Statement is the interface implemented by all command AST nodes.
// The unexported marker method restricts implementations to this package.
type Statement interface {
	statementNode()
}

// Target names the record kind a command operates on.
type Target uint8

const (
	TargetBooks Target = iota
	TargetUsers
)

func (t Target) String() string {
	if t == TargetUsers {
		return "USERS"
	}
	return "BOOKS"
}

// SearchField is the book attribute matched by SEARCH.
type SearchField uint8

const (
	SearchTitle SearchField = iota
	SearchAuthor
	SearchCategory
)

func (f SearchField) String() string {
	switch f {
	case SearchAuthor:
		return "AUTHOR"
	case SearchCategory:
		return "CATEGORY"
	default:
		return "TITLE"
	}
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

// Value is a literal on the right-hand side of an ADD assignment.
type Value struct {
	IsInt bool
	Int   int64
	Str   string
}

// Assignment is a single field=value pair in ADD.
type Assignment struct {
	Field string // lower-cased
	Value Value
	Pos   int
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// AddStmt: ADD BOOK|USER field=value[, ...]
type AddStmt struct {
	Target Target
	Fields []Assignment
}

// FindStmt: FIND BOOK <id> | FIND USER <id> | FIND USER EMAIL '<email>'
type FindStmt struct {
	Target  Target
	ID      int64
	Email   string // set when ByEmail
	ByEmail bool
}

// SearchStmt: SEARCH BOOKS BY TITLE|AUTHOR|CATEGORY '<text>'
type SearchStmt struct {
	Field SearchField
	Text  string
}

// ListStmt: LIST BOOKS|USERS
type ListStmt struct {
	Target Target
}

// CountStmt: COUNT BOOKS|USERS
type CountStmt struct {
	Target Target
}

// BorrowStmt: BORROW <user> <book>
type BorrowStmt struct {
	UserID int64
	BookID int64
}

// ReturnStmt: RETURN <user> <book>
type ReturnStmt struct {
	UserID int64
	BookID int64
}

// TopStmt: TOP BOOKS|USERS [n]
type TopStmt struct {
	Target   Target
	Limit    int
	HasLimit bool
}

// ShowStmt: SHOW <view>
type ShowStmt struct {
	Name string // lower-cased
}

// SetStmt: SET <anything>. Accepted and ignored so that clients which send
// session settings on connect keep working.
type SetStmt struct{}

func (*AddStmt) statementNode()    {}
func (*FindStmt) statementNode()   {}
func (*SearchStmt) statementNode() {}
func (*ListStmt) statementNode()   {}
func (*CountStmt) statementNode()  {}
func (*BorrowStmt) statementNode() {}
func (*ReturnStmt) statementNode() {}
func (*TopStmt) statementNode()    {}
func (*ShowStmt) statementNode()   {}
func (*SetStmt) statementNode()    {}
