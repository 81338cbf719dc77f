package service

import (
	"context"
	"fmt"

	"github.com/pershin-daniil/Events/pkg/models"
)

const (
	ChangeCreated = "created"
	ChangeUpdated = "updated"
	ChangeDeleted = "deleted"
)

var eventSortFields = map[string]bool{
	"id":          true,
	"title":       true,
	"presenter":   true,
	"time":        true,
	"location":    true,
	"description": true,
}

// CreateEvent validates req, fills in defaults and stores a new event.
// A missing time defaults to the current time of the service clock.
func (s *EventsService) CreateEvent(ctx context.Context, req models.EventRequest) (models.Event, error) {
	event := models.Event{
		Title:       trimmed(req.Title),
		Presenter:   trimmed(req.Presenter),
		Location:    trimmed(req.Location),
		Description: trimmed(req.Description),
		Time:        s.clock.Now(),
	}
	if req.Time != nil {
		event.Time = req.Time.UTC()
	}
	if err := s.validateEvent(event, req); err != nil {
		return models.Event{}, err
	}
	created, err := s.store.CreateEvent(ctx, event)
	if err != nil {
		return models.Event{}, fmt.Errorf("err creating event: %w", err)
	}
	s.notify(ctx, ChangeCreated, created.ID)
	return created, nil
}

func (s *EventsService) GetEvent(ctx context.Context, id int) (models.Event, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return models.Event{}, fmt.Errorf("err getting event (id %d) from store: %w", id, err)
	}
	return event, nil
}

func (s *EventsService) ListEvents(ctx context.Context, opts models.ListOptions) ([]models.Event, int, error) {
	opts, err := listOptions(opts, eventSortFields)
	if err != nil {
		return nil, 0, err
	}
	events, total, err := s.store.ListEvents(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("err listing events: %w", err)
	}
	return events, total, nil
}

// UpdateEvent applies req on top of the stored event. A full update (partial == false)
// requires a title; fields absent from req keep their stored values in both modes.
func (s *EventsService) UpdateEvent(ctx context.Context, id int, req models.EventRequest, partial bool) (models.Event, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return models.Event{}, fmt.Errorf("err updating event (id %d) from store: %w", id, err)
	}
	if !partial && req.Title == nil {
		return models.Event{}, NewValidationError("title", msgRequired)
	}
	if req.Title != nil {
		event.Title = trimmed(req.Title)
	}
	if req.Presenter != nil {
		event.Presenter = trimmed(req.Presenter)
	}
	if req.Location != nil {
		event.Location = trimmed(req.Location)
	}
	if req.Description != nil {
		event.Description = trimmed(req.Description)
	}
	if req.Time != nil {
		event.Time = req.Time.UTC()
	}
	if err = s.validateEvent(event, req); err != nil {
		return models.Event{}, err
	}
	updated, err := s.store.UpdateEvent(ctx, event)
	if err != nil {
		return models.Event{}, fmt.Errorf("err updating event (id %d) from store: %w", id, err)
	}
	s.notify(ctx, ChangeUpdated, updated.ID)
	return updated, nil
}

func (s *EventsService) DeleteEvent(ctx context.Context, id int) error {
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return fmt.Errorf("err deleting event (id %d) from store: %w", id, err)
	}
	s.notify(ctx, ChangeDeleted, id)
	return nil
}

func (s *EventsService) validateEvent(event models.Event, req models.EventRequest) error {
	err := s.validateStruct(event)
	if err == nil {
		return nil
	}
	// A title the client never sent is "required", not "blank".
	if vErr, ok := err.(*ValidationError); ok && req.Title == nil {
		if _, bad := vErr.Fields["title"]; bad && event.Title == "" {
			vErr.Fields["title"] = []string{msgRequired}
		}
	}
	return err
}
