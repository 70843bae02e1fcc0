package executor

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"shelfdb/parser"
	"shelfdb/storage"
)

const (
	// DefaultTopLimit is the TOP row count when none is given.
	DefaultTopLimit = 10
	// MaxTopLimit caps TOP row counts.
	MaxTopLimit = 100
)

// Executor takes a parsed command and executes it against the catalog,
// returning a Result suitable for the wire protocol.
type Executor struct {
	catalog storage.Catalog
}

// New creates an Executor backed by the given catalog.
func New(catalog storage.Catalog) *Executor {
	return &Executor{catalog: catalog}
}

// Execute runs a single command (no tracing overhead).
func (e *Executor) Execute(cmd string) (*Result, error) {
	return e.execute(cmd, nil)
}

// ExecuteTraced runs a single command with timing instrumentation.
func (e *Executor) ExecuteTraced(cmd string) (*Result, *Trace, error) {
	tr := &Trace{}
	start := time.Now()
	result, err := e.execute(cmd, tr)
	tr.Total = time.Since(start)
	if result != nil {
		tr.RowsReturned = int64(len(result.Rows))
	}
	return result, tr, err
}

func (e *Executor) execute(cmd string, tr *Trace) (*Result, error) {
	var parseStart time.Time
	if tr != nil {
		parseStart = time.Now()
	}

	stmt, err := parser.Parse(cmd)

	if tr != nil {
		tr.Parse = time.Since(parseStart)
	}
	if err != nil {
		return nil, &QueryError{Code: codeSyntaxError, Message: err.Error()}
	}

	switch s := stmt.(type) {
	case *parser.AddStmt:
		tr.set("ADD", s.Target.String())
		return e.execAdd(s, tr)
	case *parser.FindStmt:
		tr.set("FIND", s.Target.String())
		return e.execFind(s, tr)
	case *parser.SearchStmt:
		tr.set("SEARCH", "BOOKS")
		return e.execSearch(s, tr)
	case *parser.ListStmt:
		tr.set("LIST", s.Target.String())
		return e.execList(s, tr)
	case *parser.CountStmt:
		tr.set("COUNT", s.Target.String())
		return e.execCount(s, tr)
	case *parser.BorrowStmt:
		tr.set("BORROW", "")
		return e.execLoan("BORROW", s.UserID, s.BookID, e.catalog.Borrow, tr)
	case *parser.ReturnStmt:
		tr.set("RETURN", "")
		return e.execLoan("RETURN", s.UserID, s.BookID, e.catalog.Return, tr)
	case *parser.TopStmt:
		tr.set("TOP", s.Target.String())
		return e.execTop(s, tr)
	case *parser.ShowStmt:
		tr.set("SHOW", s.Name)
		return e.execShow(s, tr)
	case *parser.SetStmt:
		tr.set("SET", "")
		return &Result{Tag: "SET"}, nil
	default:
		return nil, &QueryError{Code: codeFeatureNotSupport, Message: fmt.Sprintf("unsupported statement type %T", stmt)}
	}
}

// -------------------------------------------------------------------------
// ADD
// -------------------------------------------------------------------------

var bookFields = map[string]bool{
	"id": true, "title": false, "author": false, "isbn": false,
	"category": false, "copies": true, "available": true,
}

var userFields = map[string]bool{
	"id": true, "name": false, "email": false, "role": false,
}

// assignments validates ADD fields against the allowed set (field name to
// "is integer") and returns them keyed by name.
func assignments(fields []parser.Assignment, allowed map[string]bool, kind string) (map[string]parser.Value, error) {
	out := make(map[string]parser.Value, len(fields))
	for _, f := range fields {
		isInt, ok := allowed[f.Field]
		if !ok {
			return nil, &QueryError{
				Code:    codeUndefinedColumn,
				Message: fmt.Sprintf("%s has no field %q", kind, f.Field),
			}
		}
		if _, dup := out[f.Field]; dup {
			return nil, &QueryError{
				Code:    codeDuplicateColumn,
				Message: fmt.Sprintf("field %q specified more than once", f.Field),
			}
		}
		if f.Value.IsInt != isInt {
			want := "text"
			if isInt {
				want = "integer"
			}
			return nil, &QueryError{
				Code:    codeDatatypeMismatch,
				Message: fmt.Sprintf("field %q must be %s", f.Field, want),
			}
		}
		out[f.Field] = f.Value
	}
	return out, nil
}

func (e *Executor) execAdd(s *parser.AddStmt, tr *Trace) (*Result, error) {
	if s.Target == parser.TargetUsers {
		return e.execAddUser(s, tr)
	}

	vals, err := assignments(s.Fields, bookFields, "book")
	if err != nil {
		return nil, err
	}
	b := storage.Book{
		ID:       vals["id"].Int,
		Title:    vals["title"].Str,
		Author:   vals["author"].Str,
		ISBN:     vals["isbn"].Str,
		Category: vals["category"].Str,
		Copies:   int(vals["copies"].Int),
	}
	// Available defaults to the number of copies.
	if v, ok := vals["available"]; ok {
		b.Available = int(v.Int)
	} else {
		b.Available = b.Copies
	}

	var added storage.Book
	tr.exec(func() { added, err = e.catalog.AddBook(b) })
	if err != nil {
		return nil, WrapError(err)
	}
	return &Result{
		Columns: bookColumns,
		Rows:    [][][]byte{bookRow(added)},
		Tag:     "ADD BOOK",
	}, nil
}

func (e *Executor) execAddUser(s *parser.AddStmt, tr *Trace) (*Result, error) {
	vals, err := assignments(s.Fields, userFields, "user")
	if err != nil {
		return nil, err
	}
	u := storage.User{
		ID:    vals["id"].Int,
		Name:  vals["name"].Str,
		Email: vals["email"].Str,
		Role:  vals["role"].Str,
	}
	if u.Role == "" {
		u.Role = "member"
	}

	var added storage.User
	tr.exec(func() { added, err = e.catalog.AddUser(u) })
	if err != nil {
		return nil, WrapError(err)
	}
	return &Result{
		Columns: userColumns,
		Rows:    [][][]byte{userRow(added)},
		Tag:     "ADD USER",
	}, nil
}

// -------------------------------------------------------------------------
// Reads
// -------------------------------------------------------------------------

func (e *Executor) execFind(s *parser.FindStmt, tr *Trace) (*Result, error) {
	if s.Target == parser.TargetBooks {
		var (
			b  storage.Book
			ok bool
		)
		tr.exec(func() { b, ok = e.catalog.FindBook(s.ID) })
		if !ok {
			return emptyResult(bookColumns, fmt.Sprintf("book %d not found", s.ID)), nil
		}
		return rowsResult(bookColumns, [][][]byte{bookRow(b)}), nil
	}

	var (
		u  storage.User
		ok bool
	)
	tr.exec(func() {
		if s.ByEmail {
			u, ok = e.catalog.FindUserByEmail(s.Email)
		} else {
			u, ok = e.catalog.FindUser(s.ID)
		}
	})
	if !ok {
		key := strconv.FormatInt(s.ID, 10)
		if s.ByEmail {
			key = s.Email
		}
		return emptyResult(userColumns, fmt.Sprintf("user %s not found", key)), nil
	}
	return rowsResult(userColumns, [][][]byte{userRow(u)}), nil
}

func (e *Executor) execSearch(s *parser.SearchStmt, tr *Trace) (*Result, error) {
	var books []storage.Book
	tr.exec(func() {
		switch s.Field {
		case parser.SearchAuthor:
			books = e.catalog.SearchByAuthor(s.Text)
		case parser.SearchCategory:
			books = e.catalog.SearchByCategory(s.Text)
		default:
			books = e.catalog.SearchByTitle(s.Text)
		}
	})
	var rows [][][]byte
	tr.render(func() { rows = bookRows(books) })
	return rowsResult(bookColumns, rows), nil
}

func (e *Executor) execList(s *parser.ListStmt, tr *Trace) (*Result, error) {
	var rows [][][]byte
	if s.Target == parser.TargetUsers {
		var users []storage.User
		tr.exec(func() { users = e.catalog.Users() })
		tr.render(func() {
			sortUsers(users)
			rows = make([][][]byte, len(users))
			for i, u := range users {
				rows[i] = userRow(u)
			}
		})
		return rowsResult(userColumns, rows), nil
	}

	var books []storage.Book
	tr.exec(func() { books = e.catalog.Books() })
	tr.render(func() { rows = bookRows(books) })
	return rowsResult(bookColumns, rows), nil
}

func (e *Executor) execCount(s *parser.CountStmt, tr *Trace) (*Result, error) {
	var n int
	tr.exec(func() {
		if s.Target == parser.TargetUsers {
			n = e.catalog.UserCount()
		} else {
			n = e.catalog.BookCount()
		}
	})
	return rowsResult([]Column{intColumn("count")}, [][][]byte{{formatValue(int64(n))}}), nil
}

// -------------------------------------------------------------------------
// Transactions
// -------------------------------------------------------------------------

var loanColumns = []Column{
	intColumn("user_id"),
	intColumn("book_id"),
	textColumn("title"),
	intColumn("held"),
	intColumn("circulation"),
}

func (e *Executor) execLoan(tag string, userID, bookID int64, op func(int64, int64) (storage.Loan, error), tr *Trace) (*Result, error) {
	var (
		loan storage.Loan
		err  error
	)
	tr.exec(func() { loan, err = op(userID, bookID) })
	if err != nil {
		return nil, WrapError(err)
	}
	return &Result{
		Columns: loanColumns,
		Rows: [][][]byte{{
			formatValue(loan.User.ID),
			formatValue(loan.Book.ID),
			formatValue(loan.Book.Title),
			formatValue(int64(len(loan.User.BorrowedBooks))),
			formatValue(loan.Circulation),
		}},
		Tag: tag,
	}, nil
}

// -------------------------------------------------------------------------
// Statistics
// -------------------------------------------------------------------------

// topLimit applies the default and the MaxTopLimit cap. A limit of zero or
// less falls back to the default. The notice is empty unless the requested
// limit was adjusted.
func topLimit(s *parser.TopStmt) (int, string) {
	if !s.HasLimit {
		return DefaultTopLimit, ""
	}
	n := s.Limit
	switch {
	case n <= 0:
		n = DefaultTopLimit
	case n > MaxTopLimit:
		n = MaxTopLimit
	}
	if n != s.Limit {
		return n, fmt.Sprintf("TOP limit %d adjusted to %d", s.Limit, n)
	}
	return n, ""
}

func (e *Executor) execTop(s *parser.TopStmt, tr *Trace) (*Result, error) {
	n, notice := topLimit(s)

	var result *Result
	if s.Target == parser.TargetUsers {
		var tallies []storage.Tally
		tr.exec(func() { tallies = e.catalog.MostActiveUsers(n) })
		rows := make([][][]byte, len(tallies))
		tr.render(func() {
			for i, t := range tallies {
				var name []byte
				if u, ok := e.catalog.FindUser(t.ID); ok {
					name = []byte(u.Name)
				}
				rows[i] = [][]byte{formatValue(t.ID), name, formatValue(t.Count)}
			}
		})
		result = rowsResult([]Column{intColumn("user_id"), textColumn("name"), intColumn("borrowed")}, rows)
	} else {
		var tallies []storage.Tally
		tr.exec(func() { tallies = e.catalog.MostBorrowedBooks(n) })
		rows := make([][][]byte, len(tallies))
		tr.render(func() {
			for i, t := range tallies {
				var title []byte
				if b, ok := e.catalog.FindBook(t.ID); ok {
					title = []byte(b.Title)
				}
				rows[i] = [][]byte{formatValue(t.ID), title, formatValue(t.Count)}
			}
		})
		result = rowsResult([]Column{intColumn("book_id"), textColumn("title"), intColumn("circulation")}, rows)
	}
	if notice != "" {
		result.Notices = append(result.Notices, notice)
	}
	return result, nil
}

func (e *Executor) execShow(s *parser.ShowStmt, tr *Trace) (*Result, error) {
	v, ok := views[s.Name]
	if !ok {
		return nil, &QueryError{
			Code:    codeUndefinedObject,
			Message: fmt.Sprintf("unrecognized view %q", s.Name),
			Detail:  "SHOW views lists the available views.",
		}
	}
	var rows [][][]byte
	tr.exec(func() { rows = v.rows(e.catalog) })
	return rowsResult(v.columns, rows), nil
}

// -------------------------------------------------------------------------
// Rendering
// -------------------------------------------------------------------------

var bookColumns = []Column{
	intColumn("id"),
	textColumn("title"),
	textColumn("author"),
	textColumn("isbn"),
	textColumn("category"),
	intColumn("copies"),
	intColumn("available"),
}

var userColumns = []Column{
	intColumn("id"),
	textColumn("name"),
	textColumn("email"),
	textColumn("role"),
	textColumn("borrowed"),
}

func bookRow(b storage.Book) [][]byte {
	return [][]byte{
		formatValue(b.ID),
		formatValue(b.Title),
		formatValue(b.Author),
		formatValue(b.ISBN),
		formatValue(b.Category),
		formatValue(int64(b.Copies)),
		formatValue(int64(b.Available)),
	}
}

func bookRows(books []storage.Book) [][][]byte {
	rows := make([][][]byte, len(books))
	for i, b := range books {
		rows[i] = bookRow(b)
	}
	return rows
}

// userRow renders the borrowed list as comma-separated book IDs in borrow
// order.
func userRow(u storage.User) [][]byte {
	ids := make([]string, len(u.BorrowedBooks))
	for i, id := range u.BorrowedBooks {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return [][]byte{
		formatValue(u.ID),
		formatValue(u.Name),
		formatValue(u.Email),
		formatValue(u.Role),
		[]byte(strings.Join(ids, ",")),
	}
}

func sortUsers(users []storage.User) {
	slices.SortFunc(users, func(a, b storage.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
}

func rowsResult(cols []Column, rows [][][]byte) *Result {
	if rows == nil {
		rows = [][][]byte{}
	}
	return &Result{
		Columns: cols,
		Rows:    rows,
		Tag:     fmt.Sprintf("SELECT %d", len(rows)),
	}
}

func emptyResult(cols []Column, notice string) *Result {
	r := rowsResult(cols, nil)
	r.Notices = []string{notice}
	return r
}

// formatValue converts a value to its text-encoded wire format.
// nil means SQL NULL.
func formatValue(v any) []byte {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case int64:
		return []byte(strconv.FormatInt(val, 10))
	case float64:
		return []byte(strconv.FormatFloat(val, 'g', -1, 64))
	case string:
		return []byte(val)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}
