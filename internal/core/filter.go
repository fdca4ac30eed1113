package core

import "strings"

// Clause is one conjunctive condition of a RecordFilter. Stores translate the
// concrete clause types into their own query language; Matches is the
// reference semantics.
type Clause interface {
	Matches(r BudgetRecord) bool
}

// YearIs selects records of a single year.
type YearIs struct {
	Year int
}

func (c YearIs) Matches(r BudgetRecord) bool {
	return r.Year == c.Year
}

// AuthorNameContains selects records whose resolved author's full name
// contains Pattern, ignoring case. Records without an author never match.
type AuthorNameContains struct {
	Pattern string
}

func (c AuthorNameContains) Matches(r BudgetRecord) bool {
	if r.Author == nil {
		return false
	}
	return ContainsFold(r.Author.FullName, c.Pattern)
}

// ContainsFold reports whether substr is within s under Unicode lower-casing.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// RecordFilter is an immutable conjunction of clauses.
type RecordFilter struct {
	clauses []Clause
}

func NewRecordFilter() RecordFilter {
	return RecordFilter{}
}

// Where returns a copy of f with c appended.
func (f RecordFilter) Where(c Clause) RecordFilter {
	clauses := make([]Clause, 0, len(f.clauses)+1)
	clauses = append(clauses, f.clauses...)
	clauses = append(clauses, c)
	return RecordFilter{clauses: clauses}
}

// WhereIf appends c only when cond holds.
func (f RecordFilter) WhereIf(cond bool, c Clause) RecordFilter {
	if !cond {
		return f
	}
	return f.Where(c)
}

func (f RecordFilter) Clauses() []Clause {
	return append([]Clause(nil), f.clauses...)
}

// NeedsAuthor reports whether evaluating f requires the author join.
func (f RecordFilter) NeedsAuthor() bool {
	for _, c := range f.clauses {
		if _, ok := c.(AuthorNameContains); ok {
			return true
		}
	}
	return false
}

// Matches reports whether r satisfies every clause. An empty filter matches all.
func (f RecordFilter) Matches(r BudgetRecord) bool {
	for _, c := range f.clauses {
		if !c.Matches(r) {
			return false
		}
	}
	return true
}

// Page is a pagination window over an ordered result.
type Page struct {
	Limit  int
	Offset int
}

// Bounds returns the [start, end) indexes of the window over n items.
func (p Page) Bounds(n int) (start, end int) {
	start = p.Offset
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	end = n
	if p.Limit >= 0 && start+p.Limit < n {
		end = start + p.Limit
	}
	return start, end
}
