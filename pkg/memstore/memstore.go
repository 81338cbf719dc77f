// Package memstore keeps events, users and groups in process memory.
// It backs the service in tests and in development runs without postgres.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pershin-daniil/Events/pkg/models"
	"github.com/sirupsen/logrus"
)

type Store struct {
	log *logrus.Entry

	mu          sync.RWMutex
	events      map[int]models.Event
	users       map[int]models.User
	groups      map[int]models.Group
	nextEventID int
	nextUserID  int
	nextGroupID int
}

func New(log *logrus.Logger) *Store {
	return &Store{
		log:         log.WithField("component", "memstore"),
		events:      make(map[int]models.Event),
		users:       make(map[int]models.User),
		groups:      make(map[int]models.Group),
		nextEventID: 1,
		nextUserID:  1,
		nextGroupID: 1,
	}
}

func (s *Store) CreateEvent(_ context.Context, event models.Event) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event.ID = s.nextEventID
	s.nextEventID++
	s.events[event.ID] = event
	return event, nil
}

func (s *Store) GetEvent(_ context.Context, id int) (models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[id]
	if !ok {
		return models.Event{}, fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	}
	return event, nil
}

func (s *Store) ListEvents(_ context.Context, opts models.ListOptions) ([]models.Event, int, error) {
	s.mu.RLock()
	events := make([]models.Event, 0, len(s.events))
	for _, event := range s.events {
		events = append(events, event)
	}
	s.mu.RUnlock()

	less, err := eventLess(opts.Sort)
	if err != nil {
		return nil, 0, err
	}
	sortSlice(events, opts.Desc, less, func(e models.Event) int { return e.ID })
	return window(events, opts), len(events), nil
}

func (s *Store) UpdateEvent(_ context.Context, event models.Event) (models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		return models.Event{}, fmt.Errorf("event %d: %w", event.ID, models.ErrNotFound)
	}
	s.events[event.ID] = event
	return event, nil
}

func (s *Store) DeleteEvent(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("event %d: %w", id, models.ErrNotFound)
	}
	delete(s.events, id)
	return nil
}

func (s *Store) CreateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.usernameTaken(user.Username, 0) {
		return models.User{}, fmt.Errorf("username %q: %w", user.Username, models.ErrDuplicate)
	}
	user.ID = s.nextUserID
	s.nextUserID++
	user.Groups = copyInts(user.Groups)
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) GetUser(_ context.Context, id int) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	user.Groups = copyInts(user.Groups)
	return user, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.Username == username {
			user.Groups = copyInts(user.Groups)
			return user, nil
		}
	}
	return models.User{}, fmt.Errorf("user %q: %w", username, models.ErrNotFound)
}

func (s *Store) ListUsers(_ context.Context, opts models.ListOptions) ([]models.User, int, error) {
	s.mu.RLock()
	users := make([]models.User, 0, len(s.users))
	for _, user := range s.users {
		user.Groups = copyInts(user.Groups)
		users = append(users, user)
	}
	s.mu.RUnlock()

	var less func(a, b models.User) int
	switch opts.Sort {
	case "", "id":
		less = func(a, b models.User) int { return a.ID - b.ID }
	case "username":
		less = func(a, b models.User) int { return strings.Compare(a.Username, b.Username) }
	case "email":
		less = func(a, b models.User) int { return strings.Compare(a.Email, b.Email) }
	case "date_joined":
		less = func(a, b models.User) int { return a.DateJoined.Compare(b.DateJoined) }
	default:
		return nil, 0, fmt.Errorf("unknown user sort field %q", opts.Sort)
	}
	sortSlice(users, opts.Desc, less, func(u models.User) int { return u.ID })
	return window(users, opts), len(users), nil
}

func (s *Store) UpdateUser(_ context.Context, user models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return models.User{}, fmt.Errorf("user %d: %w", user.ID, models.ErrNotFound)
	}
	if s.usernameTaken(user.Username, user.ID) {
		return models.User{}, fmt.Errorf("username %q: %w", user.Username, models.ErrDuplicate)
	}
	user.Groups = copyInts(user.Groups)
	s.users[user.ID] = user
	return user, nil
}

func (s *Store) DeleteUser(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	delete(s.users, id)
	return nil
}

func (s *Store) CreateGroup(_ context.Context, group models.Group) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groupNameTaken(group.Name, 0) {
		return models.Group{}, fmt.Errorf("group %q: %w", group.Name, models.ErrDuplicate)
	}
	group.ID = s.nextGroupID
	s.nextGroupID++
	s.groups[group.ID] = group
	return group, nil
}

func (s *Store) GetGroup(_ context.Context, id int) (models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[id]
	if !ok {
		return models.Group{}, fmt.Errorf("group %d: %w", id, models.ErrNotFound)
	}
	return group, nil
}

func (s *Store) ListGroups(_ context.Context, opts models.ListOptions) ([]models.Group, int, error) {
	s.mu.RLock()
	groups := make([]models.Group, 0, len(s.groups))
	for _, group := range s.groups {
		groups = append(groups, group)
	}
	s.mu.RUnlock()

	var less func(a, b models.Group) int
	switch opts.Sort {
	case "", "id":
		less = func(a, b models.Group) int { return a.ID - b.ID }
	case "name":
		less = func(a, b models.Group) int { return strings.Compare(a.Name, b.Name) }
	default:
		return nil, 0, fmt.Errorf("unknown group sort field %q", opts.Sort)
	}
	sortSlice(groups, opts.Desc, less, func(g models.Group) int { return g.ID })
	return window(groups, opts), len(groups), nil
}

func (s *Store) UpdateGroup(_ context.Context, group models.Group) (models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; !ok {
		return models.Group{}, fmt.Errorf("group %d: %w", group.ID, models.ErrNotFound)
	}
	if s.groupNameTaken(group.Name, group.ID) {
		return models.Group{}, fmt.Errorf("group %q: %w", group.Name, models.ErrDuplicate)
	}
	s.groups[group.ID] = group
	return group, nil
}

// DeleteGroup also drops the group from every user, like the ON DELETE CASCADE in postgres.
func (s *Store) DeleteGroup(_ context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("group %d: %w", id, models.ErrNotFound)
	}
	delete(s.groups, id)
	for userID, user := range s.users {
		kept := user.Groups[:0:0]
		for _, groupID := range user.Groups {
			if groupID != id {
				kept = append(kept, groupID)
			}
		}
		user.Groups = kept
		s.users[userID] = user
	}
	return nil
}

// ResetTables empties the store and restarts ids at 1.
func (s *Store) ResetTables() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[int]models.Event)
	s.users = make(map[int]models.User)
	s.groups = make(map[int]models.Group)
	s.nextEventID, s.nextUserID, s.nextGroupID = 1, 1, 1
	s.log.Debug("store reset")
}

func (s *Store) usernameTaken(username string, exceptID int) bool {
	for id, user := range s.users {
		if id != exceptID && user.Username == username {
			return true
		}
	}
	return false
}

func (s *Store) groupNameTaken(name string, exceptID int) bool {
	for id, group := range s.groups {
		if id != exceptID && group.Name == name {
			return true
		}
	}
	return false
}

func eventLess(field string) (func(a, b models.Event) int, error) {
	switch field {
	case "", "id":
		return func(a, b models.Event) int { return a.ID - b.ID }, nil
	case "title":
		return func(a, b models.Event) int { return strings.Compare(a.Title, b.Title) }, nil
	case "presenter":
		return func(a, b models.Event) int { return strings.Compare(a.Presenter, b.Presenter) }, nil
	case "time":
		return func(a, b models.Event) int { return a.Time.Compare(b.Time) }, nil
	case "location":
		return func(a, b models.Event) int { return strings.Compare(a.Location, b.Location) }, nil
	case "description":
		return func(a, b models.Event) int { return strings.Compare(a.Description, b.Description) }, nil
	}
	return nil, fmt.Errorf("unknown event sort field %q", field)
}

// sortSlice orders items by cmp and breaks ties by id in the same direction,
// matching ORDER BY <field>, id in pgstore.
func sortSlice[T any](items []T, desc bool, cmp func(a, b T) int, id func(T) int) {
	sort.Slice(items, func(i, j int) bool {
		c := cmp(items[i], items[j])
		if c == 0 {
			c = id(items[i]) - id(items[j])
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func window[T any](items []T, opts models.ListOptions) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}

func copyInts(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}
