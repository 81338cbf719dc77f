package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pershin-daniil/Events/pkg/models"
)

const userColumns = `id, username, email, password_hash, date_joined`

var userSortColumns = map[string]string{
	"id":          "id",
	"username":    "username",
	"email":       "email",
	"date_joined": "date_joined",
}

type membership struct {
	UserID  int `db:"user_id"`
	GroupID int `db:"group_id"`
}

func (s *Store) CreateUser(ctx context.Context, user models.User) (_ models.User, err error) {
	defer func(start time.Time) { observe("CreateUser", start, err) }(time.Now())
	var created models.User
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
INSERT INTO users (username, email, password_hash, date_joined)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns + `;`
		if err := tx.GetContext(ctx, &created, query,
			user.Username, user.Email, user.PasswordHash, user.DateJoined); err != nil {
			return err
		}
		created.Groups = user.Groups
		return setGroups(ctx, tx, created.ID, user.Groups)
	})
	switch {
	case isUniqueViolation(err):
		return models.User{}, fmt.Errorf("username %q: %w", user.Username, models.ErrDuplicate)
	case err != nil:
		return models.User{}, fmt.Errorf("err inserting user: %w", err)
	}
	return created, nil
}

func (s *Store) GetUser(ctx context.Context, id int) (_ models.User, err error) {
	defer func(start time.Time) { observe("GetUser", start, err) }(time.Now())
	return s.getUserWhere(ctx, `id = $1`, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (_ models.User, err error) {
	defer func(start time.Time) { observe("GetUserByUsername", start, err) }(time.Now())
	return s.getUserWhere(ctx, `username = $1`, username)
}

func (s *Store) getUserWhere(ctx context.Context, cond string, arg any) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE `+cond+`;`, arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.User{}, fmt.Errorf("user %v: %w", arg, models.ErrNotFound)
	case err != nil:
		return models.User{}, fmt.Errorf("err getting user %v: %w", arg, err)
	}
	users := []models.User{user}
	if err = s.loadGroups(ctx, users); err != nil {
		return models.User{}, err
	}
	return users[0], nil
}

func (s *Store) ListUsers(ctx context.Context, opts models.ListOptions) (_ []models.User, _ int, err error) {
	defer func(start time.Time) { observe("ListUsers", start, err) }(time.Now())
	order, err := orderBy(userSortColumns, opts)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err = s.db.GetContext(ctx, &total, `SELECT count(*) FROM users;`); err != nil {
		return nil, 0, fmt.Errorf("err counting users: %w", err)
	}
	page, args := limitOffset(opts)
	users := make([]models.User, 0)
	if err = s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users`+order+page, args...); err != nil {
		return nil, 0, fmt.Errorf("err listing users: %w", err)
	}
	if err = s.loadGroups(ctx, users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *Store) UpdateUser(ctx context.Context, user models.User) (_ models.User, err error) {
	defer func(start time.Time) { observe("UpdateUser", start, err) }(time.Now())
	var updated models.User
	err = s.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `
UPDATE users
SET username = $2,
    email = $3,
    password_hash = $4
WHERE id = $1
RETURNING ` + userColumns + `;`
		if err := tx.GetContext(ctx, &updated, query,
			user.ID, user.Username, user.Email, user.PasswordHash); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE user_id = $1;`, user.ID); err != nil {
			return err
		}
		updated.Groups = user.Groups
		return setGroups(ctx, tx, user.ID, user.Groups)
	})
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return models.User{}, fmt.Errorf("user %d: %w", user.ID, models.ErrNotFound)
	case isUniqueViolation(err):
		return models.User{}, fmt.Errorf("username %q: %w", user.Username, models.ErrDuplicate)
	case err != nil:
		return models.User{}, fmt.Errorf("err updating user %d: %w", user.ID, err)
	}
	return updated, nil
}

func (s *Store) DeleteUser(ctx context.Context, id int) (err error) {
	defer func(start time.Time) { observe("DeleteUser", start, err) }(time.Now())
	return s.deleteByID(ctx, "users", "user", id)
}

// loadGroups fills Groups of every user with its group ids in ascending order.
func (s *Store) loadGroups(ctx context.Context, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	ids := make([]int, len(users))
	index := make(map[int]int, len(users))
	for i := range users {
		ids[i] = users[i].ID
		index[users[i].ID] = i
		users[i].Groups = []int{}
	}
	query, args, err := sqlx.In(`SELECT user_id, group_id FROM user_groups WHERE user_id IN (?) ORDER BY group_id;`, ids)
	if err != nil {
		return fmt.Errorf("err building groups query: %w", err)
	}
	var rows []membership
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("err loading user groups: %w", err)
	}
	for _, row := range rows {
		i := index[row.UserID]
		users[i].Groups = append(users[i].Groups, row.GroupID)
	}
	return nil
}

func setGroups(ctx context.Context, tx *sqlx.Tx, userID int, groups []int) error {
	for _, groupID := range groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_groups (user_id, group_id) VALUES ($1, $2);`, userID, groupID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warnf("err during rollback: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *Store) deleteByID(ctx context.Context, table, kind string, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("err deleting %s %d: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("err deleting %s %d: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, models.ErrNotFound)
	}
	return nil
}
