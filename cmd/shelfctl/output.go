package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"shelfdb/executor"
)

// resultJSON is the JSON form of an executor result. NULL values are
// encoded as null.
type resultJSON struct {
	Command string   `json:"command,omitempty"`
	Tag     string   `json:"tag"`
	Columns []string `json:"columns,omitempty"`
	Rows    [][]any  `json:"rows,omitempty"`
	Notices []string `json:"notices,omitempty"`
}

func toJSON(command string, r *executor.Result) resultJSON {
	out := resultJSON{Command: command, Tag: r.Tag, Notices: r.Notices}
	for _, c := range r.Columns {
		out.Columns = append(out.Columns, c.Name)
	}
	for _, row := range r.Rows {
		vals := make([]any, len(row))
		for i, v := range row {
			if v != nil {
				vals[i] = string(v)
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	return out
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes notices, then the rows aligned under a header, then the
// command tag.
func printTable(w io.Writer, r *executor.Result) error {
	for _, n := range r.Notices {
		fmt.Fprintf(w, "NOTICE:  %s\n", n)
	}

	if len(r.Columns) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		names := make([]string, len(r.Columns))
		rules := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			names[i] = c.Name
			rules[i] = strings.Repeat("-", len(c.Name))
		}
		fmt.Fprintln(tw, strings.Join(names, "\t"))
		fmt.Fprintln(tw, strings.Join(rules, "\t"))
		for _, row := range r.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = string(v)
			}
			fmt.Fprintln(tw, strings.Join(cells, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "(%s)\n", r.Tag)
	return err
}
