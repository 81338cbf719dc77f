package models

import (
	"time"
)

type UserRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Groups   *[]int  `json:"groups"`
}

type User struct {
	ID           int       `json:"id" db:"id"`
	Username     string    `json:"username" db:"username" validate:"required,max=150"`
	Email        string    `json:"email" db:"email" validate:"omitempty,email,max=254"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Groups       []int     `json:"groups" db:"-"`
	DateJoined   time.Time `json:"date_joined" db:"date_joined"`
}

type GroupRequest struct {
	Name *string `json:"name"`
}

type Group struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name" validate:"required,max=150"`
}
