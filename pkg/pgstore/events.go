package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pershin-daniil/Events/pkg/models"
)

const eventColumns = `id, title, presenter, time, location, description`

var eventSortColumns = map[string]string{
	"id":          "id",
	"title":       "title",
	"presenter":   "presenter",
	"time":        "time",
	"location":    "location",
	"description": "description",
}

func (s *Store) CreateEvent(ctx context.Context, event models.Event) (_ models.Event, err error) {
	defer func(start time.Time) { observe("CreateEvent", start, err) }(time.Now())
	var created models.Event
	query := `
INSERT INTO events (title, presenter, time, location, description)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + eventColumns + `;`
	if err = s.db.GetContext(ctx, &created, query,
		event.Title, event.Presenter, event.Time, event.Location, event.Description); err != nil {
		return models.Event{}, fmt.Errorf("err inserting event: %w", err)
	}
	return created, nil
}

func (s *Store) GetEvent(ctx context.Context, id int) (_ models.Event, err error) {
	defer func(start time.Time) { observe("GetEvent", start, err) }(time.Now())
	var event models.Event
	query := `
SELECT ` + eventColumns + ` FROM events
WHERE id = $1;`
	err = s.db.GetContext(ctx, &event, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Event{}, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	case err != nil:
		return models.Event{}, fmt.Errorf("err getting event %d: %w", id, err)
	}
	return event, nil
}

func (s *Store) ListEvents(ctx context.Context, opts models.ListOptions) (_ []models.Event, _ int, err error) {
	defer func(start time.Time) { observe("ListEvents", start, err) }(time.Now())
	order, err := orderBy(eventSortColumns, opts)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = s.db.GetContext(ctx, &total, `SELECT count(*) FROM events;`); err != nil {
		return nil, 0, fmt.Errorf("err counting events: %w", err)
	}
	page, args := limitOffset(opts)
	events := make([]models.Event, 0)
	if err = s.db.SelectContext(ctx, &events, `SELECT `+eventColumns+` FROM events`+order+page, args...); err != nil {
		return nil, 0, fmt.Errorf("err listing events: %w", err)
	}
	return events, total, nil
}

func (s *Store) UpdateEvent(ctx context.Context, event models.Event) (_ models.Event, err error) {
	defer func(start time.Time) { observe("UpdateEvent", start, err) }(time.Now())
	var updated models.Event
	query := `
UPDATE events
SET title = $2,
    presenter = $3,
    time = $4,
    location = $5,
    description = $6
WHERE id = $1
RETURNING ` + eventColumns + `;`
	err = s.db.GetContext(ctx, &updated, query,
		event.ID, event.Title, event.Presenter, event.Time, event.Location, event.Description)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Event{}, fmt.Errorf("event %d: %w", event.ID, models.ErrNotFound)
	case err != nil:
		return models.Event{}, fmt.Errorf("err updating event %d: %w", event.ID, err)
	}
	return updated, nil
}

func (s *Store) DeleteEvent(ctx context.Context, id int) (err error) {
	defer func(start time.Time) { observe("DeleteEvent", start, err) }(time.Now())
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("err deleting event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("err deleting event %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	}
	return nil
}
