package models

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate value")
)

// ListOptions describes the ordering and the window of a list query.
// Sort is a field name without direction; an empty Sort means ordering by id.
type ListOptions struct {
	Sort   string
	Desc   bool
	Limit  int
	Offset int
}
