package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/pershin-daniil/Events/pkg/models"
)

const msgGroupTaken = "group with this name already exists."

var groupSortFields = map[string]bool{
	"id":   true,
	"name": true,
}

func (s *EventsService) CreateGroup(ctx context.Context, req models.GroupRequest) (models.Group, error) {
	group := models.Group{Name: trimmed(req.Name)}
	if err := s.validateStruct(group); err != nil {
		return models.Group{}, err
	}
	created, err := s.store.CreateGroup(ctx, group)
	switch {
	case errors.Is(err, models.ErrDuplicate):
		return models.Group{}, NewValidationError("name", msgGroupTaken)
	case err != nil:
		return models.Group{}, fmt.Errorf("err creating group: %w", err)
	}
	return created, nil
}

func (s *EventsService) GetGroup(ctx context.Context, id int) (models.Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return models.Group{}, fmt.Errorf("err getting group (id %d) from store: %w", id, err)
	}
	return group, nil
}

func (s *EventsService) ListGroups(ctx context.Context, opts models.ListOptions) ([]models.Group, int, error) {
	opts, err := listOptions(opts, groupSortFields)
	if err != nil {
		return nil, 0, err
	}
	groups, total, err := s.store.ListGroups(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("err listing groups: %w", err)
	}
	return groups, total, nil
}

func (s *EventsService) UpdateGroup(ctx context.Context, id int, req models.GroupRequest, partial bool) (models.Group, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return models.Group{}, fmt.Errorf("err updating group (id %d) from store: %w", id, err)
	}
	if !partial && req.Name == nil {
		return models.Group{}, NewValidationError("name", msgRequired)
	}
	if req.Name != nil {
		group.Name = trimmed(req.Name)
	}
	if err = s.validateStruct(group); err != nil {
		return models.Group{}, err
	}
	updated, err := s.store.UpdateGroup(ctx, group)
	switch {
	case errors.Is(err, models.ErrDuplicate):
		return models.Group{}, NewValidationError("name", msgGroupTaken)
	case err != nil:
		return models.Group{}, fmt.Errorf("err updating group (id %d) from store: %w", id, err)
	}
	return updated, nil
}

func (s *EventsService) DeleteGroup(ctx context.Context, id int) error {
	if err := s.store.DeleteGroup(ctx, id); err != nil {
		return fmt.Errorf("err deleting group (id %d) from store: %w", id, err)
	}
	return nil
}
