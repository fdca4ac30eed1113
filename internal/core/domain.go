package core

import (
	"errors"
	"strings"
	"time"
)

const (
	TypeIncome     BudgetType = "Приход"
	TypeExpense    BudgetType = "Расход"
	TypeCommission BudgetType = "Комиссия"
)

const (
	MinYear      = 1900
	MaxAuthorLen = 255
)

type (
	// BudgetType is the closed set of budget line categories.
	BudgetType string

	Author struct {
		ID        int64
		FullName  string
		CreatedAt time.Time
	}

	// BudgetRecord is a stored budget line. AuthorID is a weak reference;
	// Author is only populated when the reference was resolved on read.
	BudgetRecord struct {
		ID       int64
		Year     int
		Month    int
		Amount   int64
		Type     BudgetType
		AuthorID *int64
		Author   *Author
	}

	// NewBudgetRecord carries the fields of a record that has not been stored yet.
	NewBudgetRecord struct {
		Year     int
		Month    int
		Amount   int64
		Type     BudgetType
		AuthorID *int64
	}
)

var (
	ErrInvalidYear     = errors.New("invalid year")
	ErrInvalidMonth    = errors.New("invalid month")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidType     = errors.New("invalid budget type")
	ErrEmptyAuthorName = errors.New("empty author name")
	ErrAuthorNameLong  = errors.New("author name too long")
)

// BudgetTypes returns every known budget type in declaration order.
func BudgetTypes() []BudgetType {
	return []BudgetType{TypeIncome, TypeExpense, TypeCommission}
}

func (t BudgetType) String() string {
	return string(t)
}

// IsValid reports whether t belongs to the closed set of budget types.
func (t BudgetType) IsValid() bool {
	switch t {
	case TypeIncome, TypeExpense, TypeCommission:
		return true
	default:
		return false
	}
}

// ParseBudgetType returns the budget type named s.
func ParseBudgetType(s string) (BudgetType, error) {
	t := BudgetType(strings.TrimSpace(s))
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (r NewBudgetRecord) Validate() error {
	if r.Year < MinYear {
		return ErrInvalidYear
	}
	if r.Month < 1 || r.Month > 12 {
		return ErrInvalidMonth
	}
	if r.Amount < 1 {
		return ErrInvalidAmount
	}
	if !r.Type.IsValid() {
		return ErrInvalidType
	}
	return nil
}

// ValidateAuthorName checks a full name before an author is created.
func ValidateAuthorName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyAuthorName
	}
	if len([]rune(name)) > MaxAuthorLen {
		return ErrAuthorNameLong
	}
	return nil
}

// IsValidationError reports whether err is one of the input validation errors.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidYear, ErrInvalidMonth, ErrInvalidAmount, ErrInvalidType,
		ErrEmptyAuthorName, ErrAuthorNameLong,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
