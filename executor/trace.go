package executor

import (
	"fmt"
	"time"
)

// Trace captures timing and metadata for a single command execution.
// Only populated when tracing is enabled (ExecuteTraced).
type Trace struct {
	Total        time.Duration
	Parse        time.Duration // lexer + parser
	Exec         time.Duration // store calls
	Render       time.Duration // row encoding
	RowsReturned int64
	Target       string // "BOOKS", "USERS" or the view name
	StmtType     string // "BORROW", "SEARCH", etc.
}

func (tr *Trace) set(stmtType, target string) {
	if tr != nil {
		tr.StmtType = stmtType
		tr.Target = target
	}
}

// exec runs fn, charging its duration to the Exec step.
func (tr *Trace) exec(fn func()) {
	if tr == nil {
		fn()
		return
	}
	start := time.Now()
	fn()
	tr.Exec += time.Since(start)
}

// render runs fn, charging its duration to the Render step.
func (tr *Trace) render(fn func()) {
	if tr == nil {
		fn()
		return
	}
	start := time.Now()
	fn()
	tr.Render += time.Since(start)
}

// TraceToResult formats a Trace as a result set with columns "step" and "duration".
func TraceToResult(tr *Trace) *Result {
	if tr == nil {
		return &Result{
			Columns: []Column{textColumn("message")},
			Rows: [][][]byte{
				{[]byte("no trace available")},
			},
			Tag: "SELECT 1",
		}
	}

	rows := [][][]byte{
		{[]byte("Parse"), []byte(tr.Parse.String())},
		{[]byte("Execute"), []byte(tr.Exec.String())},
		{[]byte("Render"), []byte(tr.Render.String())},
		{[]byte("Total"), []byte(tr.Total.String())},
		{[]byte("Statement"), []byte(tr.StmtType)},
	}
	if tr.Target != "" {
		rows = append(rows, [][]byte{[]byte("Target"), []byte(tr.Target)})
	}
	rows = append(rows, [][]byte{[]byte("Rows Returned"), []byte(fmt.Sprintf("%d", tr.RowsReturned))})

	return &Result{
		Columns: []Column{textColumn("step"), textColumn("duration")},
		Rows:    rows,
		Tag:     fmt.Sprintf("SELECT %d", len(rows)),
	}
}
