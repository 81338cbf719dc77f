package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/pershin-daniil/Events/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const msgUsernameTaken = "A user with that username already exists."

var userSortFields = map[string]bool{
	"id":          true,
	"username":    true,
	"email":       true,
	"date_joined": true,
}

func (s *EventsService) CreateUser(ctx context.Context, req models.UserRequest) (models.User, error) {
	user := models.User{
		Username:   trimmed(req.Username),
		Email:      trimmed(req.Email),
		Groups:     []int{},
		DateJoined: s.clock.Now(),
	}
	if req.Groups != nil {
		user.Groups = normalizeGroups(*req.Groups)
	}
	if err := s.validateUser(ctx, user); err != nil {
		return models.User{}, err
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := hashPassword(*req.Password)
		if err != nil {
			return models.User{}, err
		}
		user.PasswordHash = hash
	}
	created, err := s.store.CreateUser(ctx, user)
	switch {
	case errors.Is(err, models.ErrDuplicate):
		return models.User{}, NewValidationError("username", msgUsernameTaken)
	case err != nil:
		return models.User{}, fmt.Errorf("err creating user: %w", err)
	}
	return created, nil
}

func (s *EventsService) GetUser(ctx context.Context, id int) (models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("err getting user (id %d) from store: %w", id, err)
	}
	return user, nil
}

// ListUsers orders by date_joined descending unless another order is requested.
func (s *EventsService) ListUsers(ctx context.Context, opts models.ListOptions) ([]models.User, int, error) {
	if opts.Sort == "" {
		opts.Sort, opts.Desc = "date_joined", true
	}
	opts, err := listOptions(opts, userSortFields)
	if err != nil {
		return nil, 0, err
	}
	users, total, err := s.store.ListUsers(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("err listing users: %w", err)
	}
	return users, total, nil
}

func (s *EventsService) UpdateUser(ctx context.Context, id int, req models.UserRequest, partial bool) (models.User, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("err updating user (id %d) from store: %w", id, err)
	}
	if !partial && req.Username == nil {
		return models.User{}, NewValidationError("username", msgRequired)
	}
	if req.Username != nil {
		user.Username = trimmed(req.Username)
	}
	if req.Email != nil {
		user.Email = trimmed(req.Email)
	}
	if req.Groups != nil {
		user.Groups = normalizeGroups(*req.Groups)
	}
	if err = s.validateUser(ctx, user); err != nil {
		return models.User{}, err
	}
	if req.Password != nil && *req.Password != "" {
		if user.PasswordHash, err = hashPassword(*req.Password); err != nil {
			return models.User{}, err
		}
	}
	updated, err := s.store.UpdateUser(ctx, user)
	switch {
	case errors.Is(err, models.ErrDuplicate):
		return models.User{}, NewValidationError("username", msgUsernameTaken)
	case err != nil:
		return models.User{}, fmt.Errorf("err updating user (id %d) from store: %w", id, err)
	}
	return updated, nil
}

func (s *EventsService) DeleteUser(ctx context.Context, id int) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("err deleting user (id %d) from store: %w", id, err)
	}
	return nil
}

// Authenticate checks username and password and returns the matching user.
func (s *EventsService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, models.ErrNotFound):
		return models.User{}, models.ErrInvalidCredentials
	case err != nil:
		return models.User{}, fmt.Errorf("err getting user %q: %w", username, err)
	}
	if user.PasswordHash == "" {
		return models.User{}, models.ErrInvalidCredentials
	}
	if err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, models.ErrInvalidCredentials
	}
	return user, nil
}

func (s *EventsService) validateUser(ctx context.Context, user models.User) error {
	err := s.validateStruct(user)
	vErr, ok := err.(*ValidationError)
	if err != nil && !ok {
		return err
	}
	for _, id := range user.Groups {
		_, err := s.store.GetGroup(ctx, id)
		switch {
		case errors.Is(err, models.ErrNotFound):
			if vErr == nil {
				vErr = &ValidationError{}
			}
			vErr.Add("groups", "Invalid pk \""+strconv.Itoa(id)+"\" - object does not exist.")
		case err != nil:
			return fmt.Errorf("err checking group %d: %w", id, err)
		}
	}
	if vErr != nil {
		return vErr
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("err hashing password: %w", err)
	}
	return string(hash), nil
}

func normalizeGroups(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	groups := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			groups = append(groups, id)
		}
	}
	sort.Ints(groups)
	return groups
}
