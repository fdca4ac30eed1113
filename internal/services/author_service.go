package services

import (
	"context"
	"fmt"
	"time"

	"budget/internal/core"
	"budget/internal/ports"
)

// AuthorService registers authors.
type AuthorService struct {
	store ports.AuthorWriter
	now   func() time.Time
}

func NewAuthorService(store ports.AuthorWriter) *AuthorService {
	return &AuthorService{store: store, now: time.Now}
}

// AddAuthor creates an author stamped with the current time.
func (s *AuthorService) AddAuthor(ctx context.Context, fullName string) (core.Author, error) {
	a, err := s.store.CreateAuthor(ctx, fullName, s.now())
	if err != nil {
		return core.Author{}, fmt.Errorf("add author: %w", err)
	}
	return a, nil
}
