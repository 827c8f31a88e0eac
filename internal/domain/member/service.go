package member

import (
	"context"
	"fmt"
	"strings"

	"github.com/xenking/retail-crm/internal/domain/paging"
)

// RegisterRequest holds the input for registering a member.
type RegisterRequest struct {
	Name string
	Sex  string
	Age  int
}

// Service encapsulates member registration and lookup.
type Service struct {
	members Repository
}

// NewService creates a member Service backed by the given repository.
func NewService(members Repository) *Service {
	return &Service{members: members}
}

// Register validates the request and persists a new member with zero
// monetary value.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Member, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, &ValidationError{Field: "member_name", Reason: "must not be empty"}
	}
	sex := strings.TrimSpace(req.Sex)
	if sex == "" {
		return nil, &ValidationError{Field: "sex", Reason: "must not be empty"}
	}
	if req.Age < 0 {
		return nil, &ValidationError{Field: "age", Reason: "must not be negative"}
	}

	m := &Member{Name: name, Sex: sex, Age: req.Age}
	if err := s.members.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create member: %w", err)
	}
	return m, nil
}

// Get returns a single member by ID.
func (s *Service) Get(ctx context.Context, id int64) (*Member, error) {
	return s.members.Get(ctx, id)
}

// List returns one page of members ordered by ID. It returns
// paging.ErrOutOfRange when the page lies past the last one.
func (s *Service) List(ctx context.Context, page paging.Page) ([]Member, error) {
	if !page.All() {
		total, err := s.members.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count members: %w", err)
		}
		if err := page.Check(total); err != nil {
			return nil, err
		}
	}
	return s.members.List(ctx, page)
}

// Delete removes a member and all of its orders.
func (s *Service) Delete(ctx context.Context, id int64) (*Member, error) {
	return s.members.Delete(ctx, id)
}
