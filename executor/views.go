package executor

import (
	"fmt"
	"sort"
	"strconv"

	"shelfdb/storage"
	"shelfdb/version"
)

// view is a read-only report reachable through SHOW <name>. Rows are
// generated on demand from the catalog.
type view struct {
	description string
	columns     []Column
	rows        func(storage.Catalog) [][][]byte
}

// views is the registry of all SHOW views, keyed by lower-case name.
var views = map[string]*view{}

func init() {
	registerDashboard()
	registerCategories()
	registerMemory()
	registerVersion()
	registerViews()
}

func registerDashboard() {
	views["dashboard"] = &view{
		description: "catalog totals",
		columns:     []Column{textColumn("metric"), intColumn("value")},
		rows: func(c storage.Catalog) [][][]byte {
			ov := c.Dashboard()
			metrics := []struct {
				name  string
				value int
			}{
				{"total_books", ov.TotalBooks},
				{"available_books", ov.AvailableBooks},
				{"unavailable_books", ov.UnavailableBooks},
				{"total_users", ov.TotalUsers},
				{"borrowed_copies", ov.BorrowedCopies},
			}
			rows := make([][][]byte, len(metrics))
			for i, m := range metrics {
				rows[i] = [][]byte{[]byte(m.name), formatValue(int64(m.value))}
			}
			return rows
		},
	}
}

func registerCategories() {
	views["categories"] = &view{
		description: "per-category availability",
		columns: []Column{
			textColumn("category"),
			intColumn("total"),
			intColumn("available"),
			intColumn("unavailable"),
			floatColumn("borrow_rate"),
		},
		rows: func(c storage.Catalog) [][][]byte {
			stats := c.Categories()
			rows := make([][][]byte, len(stats))
			for i, st := range stats {
				rows[i] = [][]byte{
					[]byte(st.Category),
					formatValue(int64(st.Total)),
					formatValue(int64(st.Available)),
					formatValue(int64(st.Unavailable)),
					[]byte(strconv.FormatFloat(st.BorrowRate, 'f', 1, 64)),
				}
			}
			return rows
		},
	}
}

func registerMemory() {
	views["memory"] = &view{
		description: "estimated index memory",
		columns: []Column{
			textColumn("index"),
			textColumn("type"),
			intColumn("entries"),
			intColumn("size_bytes"),
			textColumn("size_human"),
		},
		rows: func(c storage.Catalog) [][][]byte {
			var rows [][][]byte
			var total int64
			for _, m := range c.MemoryUsage() {
				total += m.Bytes
				rows = append(rows, [][]byte{
					[]byte(m.Name),
					[]byte(m.Kind),
					formatValue(int64(m.Entries)),
					formatValue(m.Bytes),
					[]byte(humanBytes(m.Bytes)),
				})
			}
			return append(rows, [][]byte{
				nil,
				[]byte("total"),
				nil,
				formatValue(total),
				[]byte(humanBytes(total)),
			})
		},
	}
}

func humanBytes(b int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func registerVersion() {
	views["version"] = &view{
		description: "server version",
		columns:     []Column{textColumn("version")},
		rows: func(storage.Catalog) [][][]byte {
			return [][][]byte{{[]byte(version.String())}}
		},
	}
}

// registerViews adds the view that lists all views, itself included.
func registerViews() {
	views["views"] = &view{
		description: "available SHOW views",
		columns:     []Column{textColumn("name"), textColumn("description")},
		rows: func(storage.Catalog) [][][]byte {
			names := make([]string, 0, len(views))
			for name := range views {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][][]byte, len(names))
			for i, name := range names {
				rows[i] = [][]byte{[]byte(name), []byte(views[name].description)}
			}
			return rows
		},
	}
}
