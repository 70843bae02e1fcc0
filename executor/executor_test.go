package executor

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelfdb/parser"
	"shelfdb/storage"
)

func setup(t *testing.T) *Executor {
	t.Helper()
	store := storage.New(nil)
	require.NoError(t, storage.Seed(store))
	return New(store)
}

func exec(t *testing.T, e *Executor, cmd string) *Result {
	t.Helper()
	r, err := e.Execute(cmd)
	require.NoError(t, err, "Execute(%q)", cmd)
	return r
}

func execErr(t *testing.T, e *Executor, cmd string) *QueryError {
	t.Helper()
	_, err := e.Execute(cmd)
	require.Error(t, err, "Execute(%q)", cmd)
	var qe *QueryError
	require.True(t, errors.As(err, &qe), "expected QueryError, got %T: %v", err, err)
	return qe
}

// cells returns the text of every row as a slice of strings.
func cells(r *Result) [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = string(v)
		}
	}
	return out
}

func column(r *Result, name string) []string {
	idx := -1
	for i, c := range r.Columns {
		if c.Name == name {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}
	var out []string
	for _, row := range r.Rows {
		out = append(out, string(row[idx]))
	}
	return out
}

// -------------------------------------------------------------------------
// Records
// -------------------------------------------------------------------------

func TestExecutor_AddAndFindBook(t *testing.T) {
	e := New(storage.New(nil))

	r := exec(t, e, "ADD BOOK title='Dune', author='Frank Herbert', category='Science Fiction', copies=2")
	assert.Equal(t, "ADD BOOK", r.Tag)
	require.Len(t, r.Rows, 1)
	assert.Equal(t, []string{"1000", "Dune", "Frank Herbert", "", "Science Fiction", "2", "2"}, cells(r)[0])

	r = exec(t, e, "FIND BOOK 1000")
	assert.Equal(t, "SELECT 1", r.Tag)
	assert.Equal(t, []string{"Dune"}, column(r, "title"))
	assert.Len(t, r.Columns, 7)
	assert.Equal(t, OIDInt8, r.Columns[0].TypeOID)
	assert.Equal(t, OIDText, r.Columns[1].TypeOID)

	r = exec(t, e, "FIND BOOK 1")
	assert.Equal(t, "SELECT 0", r.Tag)
	assert.Empty(t, r.Rows)
	assert.Equal(t, []string{"book 1 not found"}, r.Notices)
}

func TestExecutor_AddUser(t *testing.T) {
	e := New(storage.New(nil))

	r := exec(t, e, "ADD USER id=7, name='Ada', email='ada@x.com'")
	assert.Equal(t, "ADD USER", r.Tag)
	assert.Equal(t, []string{"7", "Ada", "ada@x.com", "member", ""}, cells(r)[0])

	r = exec(t, e, "FIND USER EMAIL 'ada@x.com'")
	assert.Equal(t, []string{"7"}, column(r, "id"))

	qe := execErr(t, e, "ADD USER name='Eve', email='ada@x.com'")
	assert.Equal(t, "23505", qe.Code)
	assert.Contains(t, qe.Detail, "ada@x.com")
}

func TestExecutor_AddValidation(t *testing.T) {
	e := New(storage.New(nil))

	tests := []struct {
		cmd  string
		code string
	}{
		{"ADD BOOK title='X', pages=3", "42703"},
		{"ADD BOOK title='X', title='Y'", "42701"},
		{"ADD BOOK title=5", "42804"},
		{"ADD BOOK title='X', copies='two'", "42804"},
		{"ADD BOOK author='Nobody'", "22023"},
		{"ADD BOOK title='X', copies=1, available=3", "22023"},
		{"ADD USER name='No Email'", "22023"},
		{"ADD BOOK title=", "42601"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			qe := execErr(t, e, tt.cmd)
			assert.Equal(t, tt.code, qe.Code, qe.Message)
		})
	}
	assert.Equal(t, []string{"0"}, column(exec(t, e, "COUNT BOOKS"), "count"))
}

func TestExecutor_ListAndCount(t *testing.T) {
	e := setup(t)

	r := exec(t, e, "LIST BOOKS")
	assert.Equal(t, "SELECT 10", r.Tag)
	titles := column(r, "title")
	assert.Equal(t, "1984", titles[0])
	assert.Equal(t, "To Kill a Mockingbird", titles[9])

	r = exec(t, e, "LIST USERS")
	assert.Equal(t, []string{"1001", "1002", "1003"}, column(r, "id"))
	assert.Equal(t, []string{"", "101,103", "109"}, column(r, "borrowed"))

	assert.Equal(t, []string{"10"}, column(exec(t, e, "COUNT BOOKS"), "count"))
	assert.Equal(t, []string{"3"}, column(exec(t, e, "count users;"), "count"))
}

func TestExecutor_Search(t *testing.T) {
	e := setup(t)

	for _, q := range []string{"the", "THE", "ThE"} {
		r := exec(t, e, "SEARCH BOOKS BY TITLE '"+q+"'")
		assert.Equal(t, []string{"Lord of the Flies", "The Catcher in the Rye", "The Great Gatsby", "The Hobbit"}, column(r, "title"), q)
	}

	r := exec(t, e, "SEARCH BOOKS BY AUTHOR 'orwell'")
	assert.Equal(t, []string{"103", "106"}, column(r, "id"))

	r = exec(t, e, "SEARCH BOOKS BY CATEGORY 'fiction'")
	assert.Equal(t, "SELECT 3", r.Tag)

	r = exec(t, e, "SEARCH BOOKS BY TITLE 'zzz'")
	assert.Equal(t, "SELECT 0", r.Tag)
	assert.NotNil(t, r.Rows)
}

// -------------------------------------------------------------------------
// Transactions
// -------------------------------------------------------------------------

func TestExecutor_BorrowReturn(t *testing.T) {
	e := setup(t)

	r := exec(t, e, "BORROW 1001 106")
	assert.Equal(t, "BORROW", r.Tag)
	assert.Equal(t, []string{"1001", "106", "Animal Farm", "1", "1"}, cells(r)[0])

	qe := execErr(t, e, "BORROW 1001 106")
	assert.Equal(t, "23505", qe.Code)

	r = exec(t, e, "RETURN 1001 106")
	assert.Equal(t, "RETURN", r.Tag)
	assert.Equal(t, []string{"1001", "106", "Animal Farm", "0", "1"}, cells(r)[0])

	qe = execErr(t, e, "RETURN 1001 106")
	assert.Equal(t, "55000", qe.Code)
}

func TestExecutor_TransactionErrors(t *testing.T) {
	e := setup(t)

	tests := []struct {
		cmd  string
		code string
	}{
		{"BORROW 9 101", "P0002"},
		{"BORROW 1001 9", "P0002"},
		{"BORROW 1001 110", "55006"},
		{"RETURN 9 101", "P0002"},
		{"RETURN 1001 101", "55000"},
		{"BORROW 1001", "42601"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			qe := execErr(t, e, tt.cmd)
			assert.Equal(t, tt.code, qe.Code, qe.Message)
		})
	}
}

// -------------------------------------------------------------------------
// Statistics
// -------------------------------------------------------------------------

func TestExecutor_Top(t *testing.T) {
	e := setup(t)
	exec(t, e, "BORROW 1001 103")

	r := exec(t, e, "TOP BOOKS 1")
	assert.Equal(t, [][]string{{"103", "1984", "2"}}, cells(r))
	assert.Empty(t, r.Notices)

	r = exec(t, e, "TOP USERS")
	assert.Equal(t, "SELECT 3", r.Tag)
	assert.Equal(t, []string{"1002", "Bob Smith", "2"}, cells(r)[0])

	// Non-positive limits fall back to the default.
	r = exec(t, e, "TOP BOOKS 0")
	assert.Len(t, r.Rows, 3)
	assert.Equal(t, []string{"TOP limit 0 adjusted to 10"}, r.Notices)

	r = exec(t, e, "TOP USERS -5")
	assert.Len(t, r.Rows, 3)
	assert.Equal(t, []string{"TOP limit -5 adjusted to 10"}, r.Notices)

	r = exec(t, e, "TOP USERS 500")
	assert.Len(t, r.Rows, 3)
	assert.Equal(t, []string{"TOP limit 500 adjusted to 100"}, r.Notices)
}

func TestExecutor_AddMaxID(t *testing.T) {
	e := setup(t)
	qe := execErr(t, e, "ADD BOOK id=9223372036854775807, title='x'")
	assert.Equal(t, "22023", qe.Code)

	exec(t, e, "ADD BOOK id=9223372036854775806, title='y'")
	qe = execErr(t, e, "ADD BOOK title='z'")
	assert.Equal(t, "22023", qe.Code)
	assert.Contains(t, qe.Message, "sequence exhausted")
}

func TestTopLimit(t *testing.T) {
	tests := []struct {
		limit    int
		hasLimit bool
		want     int
	}{
		{0, false, DefaultTopLimit},
		{5, true, 5},
		{1, true, 1},
		{0, true, DefaultTopLimit},
		{-4, true, DefaultTopLimit},
		{MaxTopLimit, true, MaxTopLimit},
		{MaxTopLimit + 1, true, MaxTopLimit},
	}
	for _, tt := range tests {
		n, _ := topLimit(&parser.TopStmt{Limit: tt.limit, HasLimit: tt.hasLimit})
		assert.Equal(t, tt.want, n, "limit %d", tt.limit)
	}
}

func TestExecutor_ShowViews(t *testing.T) {
	e := setup(t)

	r := exec(t, e, "SHOW dashboard")
	assert.Equal(t, [][]string{
		{"total_books", "10"},
		{"available_books", "9"},
		{"unavailable_books", "1"},
		{"total_users", "3"},
		{"borrowed_copies", "3"},
	}, cells(r))

	r = exec(t, e, "SHOW categories")
	assert.Equal(t, "SELECT 7", r.Tag)
	assert.Equal(t, []string{"Science Fiction", "1", "0", "1", "100.0"}, cells(r)[6])
	assert.Equal(t, OIDFloat8, r.Columns[4].TypeOID)

	r = exec(t, e, "SHOW VERSION")
	require.Len(t, r.Rows, 1)
	assert.Contains(t, string(r.Rows[0][0]), "shelfdb")

	r = exec(t, e, "SHOW views")
	assert.Equal(t, []string{"categories", "dashboard", "memory", "version", "views"}, column(r, "name"))

	r = exec(t, e, "SHOW memory")
	assert.Equal(t, []string{"books_by_title", "users_by_id", "users_by_email", "circulation", ""}, column(r, "index"))
	assert.Equal(t, []string{"10", "3", "3", "3", ""}, column(r, "entries"))
	total := r.Rows[len(r.Rows)-1]
	assert.Equal(t, "total", string(total[1]))
	assert.Nil(t, total[0])
	var sum int64
	for _, row := range r.Rows[:len(r.Rows)-1] {
		n, err := strconv.ParseInt(string(row[3]), 10, 64)
		require.NoError(t, err)
		assert.Positive(t, n)
		sum += n
	}
	assert.Equal(t, strconv.FormatInt(sum, 10), string(total[3]))

	qe := execErr(t, e, "SHOW loans")
	assert.Equal(t, "42704", qe.Code)
	assert.NotEmpty(t, qe.Detail)
}

func TestExecutor_Set(t *testing.T) {
	e := setup(t)
	r := exec(t, e, "SET client_encoding TO 'UTF8'")
	assert.Equal(t, "SET", r.Tag)
	assert.Nil(t, r.Columns)
}

func TestExecutor_Traced(t *testing.T) {
	e := setup(t)

	r, tr, err := e.ExecuteTraced("SEARCH BOOKS BY AUTHOR 'orwell'")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Len(t, r.Rows, 2)
	assert.Equal(t, "SEARCH", tr.StmtType)
	assert.Equal(t, "BOOKS", tr.Target)
	assert.Equal(t, int64(2), tr.RowsReturned)
	assert.GreaterOrEqual(t, tr.Total, tr.Parse)

	out := TraceToResult(tr)
	assert.Equal(t, []string{"Parse", "Execute", "Render", "Total", "Statement", "Target", "Rows Returned"}, column(out, "step"))

	_, tr, err = e.ExecuteTraced("FIND")
	require.Error(t, err)
	assert.Empty(t, tr.StmtType)

	assert.Equal(t, "SELECT 1", TraceToResult(nil).Tag)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil))

	qe := &QueryError{Code: "42601", Message: "x"}
	assert.Same(t, qe, WrapError(qe))

	var got *QueryError
	require.True(t, errors.As(WrapError(errors.New("boom")), &got))
	assert.Equal(t, "XX000", got.Code)

	require.True(t, errors.As(WrapError(&storage.UnavailableError{BookID: 1, Title: "X"}), &got))
	assert.Equal(t, "55006", got.Code)
}
