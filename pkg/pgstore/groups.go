package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pershin-daniil/Events/pkg/models"
)

var groupSortColumns = map[string]string{
	"id":   "id",
	"name": "name",
}

func (s *Store) CreateGroup(ctx context.Context, group models.Group) (_ models.Group, err error) {
	defer func(start time.Time) { observe("CreateGroup", start, err) }(time.Now())
	var created models.Group
	err = s.db.GetContext(ctx, &created, `INSERT INTO groups (name) VALUES ($1) RETURNING id, name;`, group.Name)
	switch {
	case isUniqueViolation(err):
		return models.Group{}, fmt.Errorf("group %q: %w", group.Name, models.ErrDuplicate)
	case err != nil:
		return models.Group{}, fmt.Errorf("err inserting group: %w", err)
	}
	return created, nil
}

func (s *Store) GetGroup(ctx context.Context, id int) (_ models.Group, err error) {
	defer func(start time.Time) { observe("GetGroup", start, err) }(time.Now())
	var group models.Group
	err = s.db.GetContext(ctx, &group, `SELECT id, name FROM groups WHERE id = $1;`, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Group{}, fmt.Errorf("group %d: %w", id, models.ErrNotFound)
	case err != nil:
		return models.Group{}, fmt.Errorf("err getting group %d: %w", id, err)
	}
	return group, nil
}

func (s *Store) ListGroups(ctx context.Context, opts models.ListOptions) (_ []models.Group, _ int, err error) {
	defer func(start time.Time) { observe("ListGroups", start, err) }(time.Now())
	order, err := orderBy(groupSortColumns, opts)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = s.db.GetContext(ctx, &total, `SELECT count(*) FROM groups;`); err != nil {
		return nil, 0, fmt.Errorf("err counting groups: %w", err)
	}
	page, args := limitOffset(opts)
	groups := make([]models.Group, 0)
	if err = s.db.SelectContext(ctx, &groups, `SELECT id, name FROM groups`+order+page, args...); err != nil {
		return nil, 0, fmt.Errorf("err listing groups: %w", err)
	}
	return groups, total, nil
}

func (s *Store) UpdateGroup(ctx context.Context, group models.Group) (_ models.Group, err error) {
	defer func(start time.Time) { observe("UpdateGroup", start, err) }(time.Now())
	var updated models.Group
	err = s.db.GetContext(ctx, &updated, `UPDATE groups SET name = $2 WHERE id = $1 RETURNING id, name;`, group.ID, group.Name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.Group{}, fmt.Errorf("group %d: %w", group.ID, models.ErrNotFound)
	case isUniqueViolation(err):
		return models.Group{}, fmt.Errorf("group %q: %w", group.Name, models.ErrDuplicate)
	case err != nil:
		return models.Group{}, fmt.Errorf("err updating group %d: %w", group.ID, err)
	}
	return updated, nil
}

func (s *Store) DeleteGroup(ctx context.Context, id int) (err error) {
	defer func(start time.Time) { observe("DeleteGroup", start, err) }(time.Now())
	return s.deleteByID(ctx, "groups", "group", id)
}
