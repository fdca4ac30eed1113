package storage

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"

	"budget/internal/core"

	"modernc.org/sqlite"
)

// containsFoldFunc is the SQL name of core.ContainsFold. SQLite's own LIKE
// and lower() only fold ASCII, author names are not ASCII-only.
const containsFoldFunc = "budget_contains_fold"

var registerFuncsOnce sync.Once
var registerFuncsErr error

func registerFuncs() error {
	registerFuncsOnce.Do(func() {
		registerFuncsErr = sqlite.RegisterDeterministicScalarFunction(containsFoldFunc, 2,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				s, ok1 := args[0].(string)
				substr, ok2 := args[1].(string)
				if !ok1 || !ok2 {
					return int64(0), nil
				}
				if core.ContainsFold(s, substr) {
					return int64(1), nil
				}
				return int64(0), nil
			})
	})
	return registerFuncsErr
}

// whereClause renders f as a SQL WHERE clause over the aliases b (budget)
// and a (author). An empty filter renders as an empty string.
func whereClause(f core.RecordFilter) (string, []any, error) {
	clauses := f.Clauses()
	if len(clauses) == 0 {
		return "", nil, nil
	}

	parts := make([]string, 0, len(clauses))
	args := make([]any, 0, len(clauses))
	for _, c := range clauses {
		switch c := c.(type) {
		case core.YearIs:
			parts = append(parts, "b.year = ?")
			args = append(args, c.Year)
		case core.AuthorNameContains:
			parts = append(parts, containsFoldFunc+"(a.full_name, ?)")
			args = append(args, c.Pattern)
		default:
			return "", nil, fmt.Errorf("unsupported filter clause %T", c)
		}
	}
	return " WHERE " + strings.Join(parts, " AND "), args, nil
}
