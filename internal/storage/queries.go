package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"budget/internal/core"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// createdAtLayout is the on-disk layout of author.created_at.
const createdAtLayout = time.RFC3339Nano

type Author struct {
	ID        int64
	FullName  string
	CreatedAt string
}

type Budget struct {
	ID       int64
	Year     int64
	Month    int64
	Amount   int64
	Type     string
	AuthorID sql.NullInt64
}

// BudgetWithAuthor is a budget row left-joined with its author.
type BudgetWithAuthor struct {
	Budget
	AuthorRowID     sql.NullInt64
	AuthorFullName  sql.NullString
	AuthorCreatedAt sql.NullString
}

type CreateAuthorParams struct {
	FullName  string
	CreatedAt string
}

const createAuthor = `-- name: CreateAuthor :one
INSERT INTO author (full_name, created_at)
VALUES (?, ?)
RETURNING id, full_name, created_at
`

func (q *Queries) CreateAuthor(ctx context.Context, arg CreateAuthorParams) (Author, error) {
	row := q.db.QueryRowContext(ctx, createAuthor, arg.FullName, arg.CreatedAt)
	var i Author
	err := row.Scan(&i.ID, &i.FullName, &i.CreatedAt)
	return i, err
}

const getAuthor = `-- name: GetAuthor :one
SELECT id, full_name, created_at FROM author
WHERE id = ?
`

func (q *Queries) GetAuthor(ctx context.Context, id int64) (Author, error) {
	row := q.db.QueryRowContext(ctx, getAuthor, id)
	var i Author
	err := row.Scan(&i.ID, &i.FullName, &i.CreatedAt)
	return i, err
}

type CreateBudgetParams struct {
	Year     int64
	Month    int64
	Amount   int64
	Type     string
	AuthorID sql.NullInt64
}

const createBudget = `-- name: CreateBudget :one
INSERT INTO budget (year, month, amount, type, author_id)
VALUES (?, ?, ?, ?, ?)
RETURNING id, year, month, amount, type, author_id
`

func (q *Queries) CreateBudget(ctx context.Context, arg CreateBudgetParams) (Budget, error) {
	row := q.db.QueryRowContext(ctx, createBudget,
		arg.Year,
		arg.Month,
		arg.Amount,
		arg.Type,
		arg.AuthorID,
	)
	var i Budget
	err := row.Scan(&i.ID, &i.Year, &i.Month, &i.Amount, &i.Type, &i.AuthorID)
	return i, err
}

const budgetFrom = `
FROM budget b
LEFT JOIN author a ON a.id = b.author_id`

const budgetOnlyFrom = `
FROM budget b`

// fromClause joins author only when f filters on it.
func fromClause(f core.RecordFilter) string {
	if f.NeedsAuthor() {
		return budgetFrom
	}
	return budgetOnlyFrom
}

const getBudget = `SELECT b.id, b.year, b.month, b.amount, b.type, b.author_id,
       a.id, a.full_name, a.created_at` + budgetFrom + `
WHERE b.id = ?
`

func (q *Queries) GetBudget(ctx context.Context, id int64) (BudgetWithAuthor, error) {
	row := q.db.QueryRowContext(ctx, getBudget, id)
	var i BudgetWithAuthor
	err := row.Scan(
		&i.ID, &i.Year, &i.Month, &i.Amount, &i.Type, &i.AuthorID,
		&i.AuthorRowID, &i.AuthorFullName, &i.AuthorCreatedAt,
	)
	return i, err
}

// CountBudgets counts rows matching f.
func (q *Queries) CountBudgets(ctx context.Context, f core.RecordFilter) (int64, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return 0, err
	}
	var count int64
	err = q.db.QueryRowContext(ctx, "SELECT COUNT(*)"+fromClause(f)+where, args...).Scan(&count)
	return count, err
}

// ListBudgets returns rows matching f in report order. A negative limit
// means no limit.
func (q *Queries) ListBudgets(ctx context.Context, f core.RecordFilter, limit, offset int) ([]BudgetWithAuthor, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}
	query := `SELECT b.id, b.year, b.month, b.amount, b.type, b.author_id,
       a.id, a.full_name, a.created_at` + budgetFrom + where + `
ORDER BY b.month ASC, b.amount DESC, b.id ASC
LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []BudgetWithAuthor
	for rows.Next() {
		var i BudgetWithAuthor
		if err := rows.Scan(
			&i.ID, &i.Year, &i.Month, &i.Amount, &i.Type, &i.AuthorID,
			&i.AuthorRowID, &i.AuthorFullName, &i.AuthorCreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type TypeSum struct {
	Type  string
	Total int64
}

// SumBudgetsByType sums amounts of rows matching f per type.
func (q *Queries) SumBudgetsByType(ctx context.Context, f core.RecordFilter) ([]TypeSum, error) {
	where, args, err := whereClause(f)
	if err != nil {
		return nil, err
	}
	query := "SELECT b.type, COALESCE(SUM(b.amount), 0)" + fromClause(f) + where + "\nGROUP BY b.type ORDER BY b.type"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TypeSum
	for rows.Next() {
		var i TypeSum
		if err := rows.Scan(&i.Type, &i.Total); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (a Author) toCore() (core.Author, error) {
	createdAt, err := time.Parse(createdAtLayout, a.CreatedAt)
	if err != nil {
		return core.Author{}, fmt.Errorf("parse author %d created_at: %w", a.ID, err)
	}
	return core.Author{ID: a.ID, FullName: a.FullName, CreatedAt: createdAt}, nil
}

func (b Budget) toCore() core.BudgetRecord {
	r := core.BudgetRecord{
		ID:     b.ID,
		Year:   int(b.Year),
		Month:  int(b.Month),
		Amount: b.Amount,
		Type:   core.BudgetType(b.Type),
	}
	if b.AuthorID.Valid {
		id := b.AuthorID.Int64
		r.AuthorID = &id
	}
	return r
}

func (b BudgetWithAuthor) toCore() (core.BudgetRecord, error) {
	r := b.Budget.toCore()
	if b.AuthorRowID.Valid {
		a, err := Author{
			ID:        b.AuthorRowID.Int64,
			FullName:  b.AuthorFullName.String,
			CreatedAt: b.AuthorCreatedAt.String,
		}.toCore()
		if err != nil {
			return core.BudgetRecord{}, err
		}
		r.Author = &a
	}
	return r, nil
}
