package models

import "time"

type EventRequest struct {
	Title       *string    `json:"title"`
	Presenter   *string    `json:"presenter"`
	Time        *time.Time `json:"time"`
	Location    *string    `json:"location"`
	Description *string    `json:"description"`
}

type Event struct {
	ID          int       `json:"id" db:"id"`
	Title       string    `json:"title" db:"title" validate:"required,max=256"`
	Presenter   string    `json:"presenter" db:"presenter" validate:"max=256"`
	Time        time.Time `json:"time" db:"time" validate:"required"`
	Location    string    `json:"location" db:"location" validate:"max=256"`
	Description string    `json:"description" db:"description"`
}
