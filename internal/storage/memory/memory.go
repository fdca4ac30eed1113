package memory

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"budget/internal/core"
	"budget/internal/ports"
)

// Store keeps authors and budget records in process memory. Units of work
// are serialized by mu; a failed write unit leaves no trace.
type Store struct {
	mu      sync.RWMutex
	authors []core.Author
	records []core.BudgetRecord
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// NewFromFiles seeds authors from base/seed_authors.txt, one full name per line.
func NewFromFiles(base string) *Store {
	s := New()
	now := time.Now()
	for _, name := range readLines(filepath.Join(base, "seed_authors.txt")) {
		_, _ = s.CreateAuthor(context.Background(), name, now)
	}
	return s
}

// Ping always succeeds once ctx is live.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) Close() error { return nil }

// CreateAuthor implements ports.AuthorWriter
func (s *Store) CreateAuthor(_ context.Context, fullName string, createdAt time.Time) (core.Author, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := core.Author{
		ID:        int64(len(s.authors) + 1),
		FullName:  fullName,
		CreatedAt: createdAt,
	}
	s.authors = append(s.authors, a)
	return a, nil
}

// GetAuthor implements ports.AuthorReader
func (s *Store) GetAuthor(_ context.Context, id int64) (core.Author, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.author(id)
	return a, ok, nil
}

// GetRecord returns a single record with its author joined in.
func (s *Store) GetRecord(_ context.Context, id int64) (core.BudgetRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 1 || id > int64(len(s.records)) {
		return core.BudgetRecord{}, false, nil
	}
	return s.joined(s.records[id-1]), true, nil
}

// WriteTx implements ports.Store
func (s *Store) WriteTx(ctx context.Context, fn func(tx ports.RecordTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &writeTx{s: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.records = append(s.records, tx.pending...)
	return nil
}

// ReadTx implements ports.Store
func (s *Store) ReadTx(ctx context.Context, fn func(r ports.RecordReader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(readView{s: s})
}

// author and joined expect mu to be held.
func (s *Store) author(id int64) (core.Author, bool) {
	if id < 1 || id > int64(len(s.authors)) {
		return core.Author{}, false
	}
	return s.authors[id-1], true
}

func (s *Store) joined(r core.BudgetRecord) core.BudgetRecord {
	r.Author = nil
	if r.AuthorID != nil {
		if a, ok := s.author(*r.AuthorID); ok {
			r.Author = &a
		}
	}
	return r
}

type writeTx struct {
	s       *Store
	pending []core.BudgetRecord
}

func (t *writeTx) GetAuthor(_ context.Context, id int64) (core.Author, bool, error) {
	a, ok := t.s.author(id)
	return a, ok, nil
}

func (t *writeTx) InsertRecord(_ context.Context, in core.NewBudgetRecord) (core.BudgetRecord, error) {
	r := core.BudgetRecord{
		ID:     int64(len(t.s.records) + len(t.pending) + 1),
		Year:   in.Year,
		Month:  in.Month,
		Amount: in.Amount,
		Type:   in.Type,
	}
	if in.AuthorID != nil {
		id := *in.AuthorID
		r.AuthorID = &id
	}
	t.pending = append(t.pending, r)
	return r, nil
}

type readView struct {
	s *Store
}

func (v readView) GetAuthor(_ context.Context, id int64) (core.Author, bool, error) {
	a, ok := v.s.author(id)
	return a, ok, nil
}

func (v readView) matching(f core.RecordFilter) []core.BudgetRecord {
	var out []core.BudgetRecord
	for _, r := range v.s.records {
		r = v.s.joined(r)
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (v readView) CountRecords(_ context.Context, f core.RecordFilter) (int64, error) {
	return int64(len(v.matching(f))), nil
}

func (v readView) SelectRecords(_ context.Context, f core.RecordFilter, page core.Page) ([]core.BudgetRecord, error) {
	items := v.matching(f)
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Month != items[j].Month {
			return items[i].Month < items[j].Month
		}
		return items[i].Amount > items[j].Amount
	})
	start, end := page.Bounds(len(items))
	return append([]core.BudgetRecord(nil), items[start:end]...), nil
}

func (v readView) SumByType(_ context.Context, f core.RecordFilter) (map[core.BudgetType]int64, error) {
	out := make(map[core.BudgetType]int64)
	for _, r := range v.matching(f) {
		out[r.Type] += r.Amount
	}
	return out, nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	seen := map[string]struct{}{}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
