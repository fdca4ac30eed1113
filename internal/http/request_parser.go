package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budget/internal/core"
)

const maxBodyBytes = 1 << 20

// errBadRequest marks request-shape problems that map to 400.
var errBadRequest = errors.New("bad request")

func badRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

type addRecordRequest struct {
	Year     *int    `json:"year"`
	Month    *int    `json:"month"`
	Amount   *int64  `json:"amount"`
	Type     *string `json:"type"`
	AuthorID *int64  `json:"authorId"`
}

type addAuthorRequest struct {
	FullName string `json:"fullName"`
}

// decodeJSON reads a single JSON object from the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequestf("request body is empty")
		}
		return badRequestf("malformed JSON body: %v", err)
	}
	if dec.More() {
		return badRequestf("request body must contain a single JSON object")
	}
	return nil
}

// ParseNewRecord decodes and validates the body of POST /budget/add.
func ParseNewRecord(r *http.Request) (core.NewBudgetRecord, error) {
	var req addRecordRequest
	if err := decodeJSON(r, &req); err != nil {
		return core.NewBudgetRecord{}, err
	}

	switch {
	case req.Year == nil:
		return core.NewBudgetRecord{}, badRequestf("year is required")
	case req.Month == nil:
		return core.NewBudgetRecord{}, badRequestf("month is required")
	case req.Amount == nil:
		return core.NewBudgetRecord{}, badRequestf("amount is required")
	case req.Type == nil:
		return core.NewBudgetRecord{}, badRequestf("type is required")
	}

	t, err := core.ParseBudgetType(*req.Type)
	if err != nil {
		return core.NewBudgetRecord{}, err
	}

	rec := core.NewBudgetRecord{
		Year:     *req.Year,
		Month:    *req.Month,
		Amount:   *req.Amount,
		Type:     t,
		AuthorID: req.AuthorID,
	}
	if err := rec.Validate(); err != nil {
		return core.NewBudgetRecord{}, err
	}
	return rec, nil
}

// ParseAuthorName decodes and validates the body of POST /author/add.
func ParseAuthorName(r *http.Request) (string, error) {
	var req addAuthorRequest
	if err := decodeJSON(r, &req); err != nil {
		return "", err
	}
	name := sanitizeInput(req.FullName)
	if err := core.ValidateAuthorName(name); err != nil {
		return "", err
	}
	return name, nil
}

// ParseYearStatsParams reads the year path value and the limit, offset and
// name query parameters. limit and offset are required.
func ParseYearStatsParams(r *http.Request) (core.YearStatsParams, error) {
	year, err := strconv.Atoi(strings.TrimSpace(r.PathValue("year")))
	if err != nil {
		return core.YearStatsParams{}, badRequestf("year must be an integer")
	}

	query := r.URL.Query()
	limit, err := requiredNonNegative(query, "limit")
	if err != nil {
		return core.YearStatsParams{}, err
	}
	offset, err := requiredNonNegative(query, "offset")
	if err != nil {
		return core.YearStatsParams{}, err
	}

	return core.YearStatsParams{
		Year:   year,
		Name:   stripControl(query.Get("name")),
		Limit:  limit,
		Offset: offset,
	}, nil
}

func requiredNonNegative(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, badRequestf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequestf("%s must be an integer", key)
	}
	if n < 0 {
		return 0, badRequestf("%s must not be negative", key)
	}
	return n, nil
}

// sanitizeInput strips control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(stripControl(s))
}

// stripControl removes control characters except tab, newline and carriage
// return.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func isBadRequest(err error) bool {
	return errors.Is(err, errBadRequest) || core.IsValidationError(err)
}
