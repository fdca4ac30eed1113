package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"budget/internal/core"
)

func TestParseNewRecord(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/budget/add",
		strings.NewReader(`{"year":2024,"month":12,"amount":7,"type":" Комиссия ","authorId":3}`))

	got, err := ParseNewRecord(req)
	if err != nil {
		t.Fatalf("ParseNewRecord() error = %v", err)
	}
	if got.Year != 2024 || got.Month != 12 || got.Amount != 7 || got.Type != core.TypeCommission {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.AuthorID == nil || *got.AuthorID != 3 {
		t.Fatalf("AuthorID = %v", got.AuthorID)
	}
}

func TestParseNewRecordErrorsAreBadRequests(t *testing.T) {
	for _, body := range []string{
		`[]`,
		`{"year":"2020","month":1,"amount":1,"type":"Приход"}`,
		`{"year":2020,"month":1,"amount":-3,"type":"Приход"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/budget/add", strings.NewReader(body))
		_, err := ParseNewRecord(req)
		if err == nil || !isBadRequest(err) {
			t.Errorf("body %s: err = %v, want bad request", body, err)
		}
	}
}

func TestParseAuthorName(t *testing.T) {
	tests := []struct {
		body    string
		want    string
		wantErr error
	}{
		{`{"fullName":"Ann\u0007 Lee"}`, "Ann Lee", nil},
		{`{"fullName":""}`, "", core.ErrEmptyAuthorName},
		{`{"fullName":"` + strings.Repeat("я", core.MaxAuthorLen+1) + `"}`, "", core.ErrAuthorNameLong},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/author/add", strings.NewReader(tt.body))
		got, err := ParseAuthorName(req)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseAuthorName() = %q, %v; want %q", got, err, tt.want)
		}
	}
}

func TestParseYearStatsParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/budget/year/2020/stats?limit=5&offset=10&name=%20ann%20", nil)
	req.SetPathValue("year", "2020")

	got, err := ParseYearStatsParams(req)
	if err != nil {
		t.Fatalf("ParseYearStatsParams() error = %v", err)
	}
	want := core.YearStatsParams{Year: 2020, Name: " ann ", Limit: 5, Offset: 10}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseYearStatsParamsKeepsWhitespaceName(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/budget/year/2020/stats?limit=5&offset=0&name=%20%20%00", nil)
	req.SetPathValue("year", "2020")

	got, err := ParseYearStatsParams(req)
	if err != nil {
		t.Fatalf("ParseYearStatsParams() error = %v", err)
	}
	if got.Name != "  " {
		t.Fatalf("Name = %q, want two spaces", got.Name)
	}
	if !got.ItemsFilter().NeedsAuthor() {
		t.Fatal("a whitespace pattern must still filter by author name")
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  a\x00b\tc\n "); got != "ab\tc" {
		t.Fatalf("sanitizeInput() = %q", got)
	}
	if got := stripControl(" a\x00b\x1f "); got != " ab " {
		t.Fatalf("stripControl() = %q", got)
	}
}
