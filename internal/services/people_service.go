package services

import (
	"context"
	"fmt"
	"strings"

	"dispensa/internal/core"
	"dispensa/internal/storage"
)

// PeopleService manages household members. Members are never hard-deleted;
// deactivation keeps every historical consumption entry and payment intact.
type PeopleService struct {
	store storage.Store
}

func NewPeopleService(store storage.Store) *PeopleService {
	return &PeopleService{store: store}
}

func (s *PeopleService) Create(ctx context.Context, name string) (*core.Person, error) {
	p := &core.Person{
		Name:   strings.TrimSpace(name),
		Active: true,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreatePerson(ctx, p); err != nil {
		return nil, fmt.Errorf("create person: %w", err)
	}
	return p, nil
}

func (s *PeopleService) Get(ctx context.Context, id string) (*core.Person, error) {
	return s.store.GetPerson(ctx, id)
}

func (s *PeopleService) List(ctx context.Context, activeOnly bool) ([]core.Person, error) {
	return s.store.ListPeople(ctx, activeOnly)
}

// Rename changes the display name, keeping the id stable so existing ledger
// rows stay attached.
func (s *PeopleService) Rename(ctx context.Context, id, name string) (*core.Person, error) {
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = strings.TrimSpace(name)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return nil, fmt.Errorf("rename person: %w", err)
	}
	return p, nil
}

// Deactivate soft-deletes a member. Already-inactive members are a no-op.
func (s *PeopleService) Deactivate(ctx context.Context, id string) error {
	p, err := s.store.GetPerson(ctx, id)
	if err != nil {
		return err
	}
	if !p.Active {
		return nil
	}
	p.Active = false
	if err := s.store.UpdatePerson(ctx, p); err != nil {
		return fmt.Errorf("deactivate person: %w", err)
	}
	return nil
}
