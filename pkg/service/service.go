package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pershin-daniil/Events/pkg/clock"
	"github.com/pershin-daniil/Events/pkg/models"
	"github.com/sirupsen/logrus"
)

type Notifier interface {
	Notify(ctx context.Context, change string, eventID int) error
}

type Store interface {
	CreateEvent(ctx context.Context, event models.Event) (models.Event, error)
	GetEvent(ctx context.Context, id int) (models.Event, error)
	ListEvents(ctx context.Context, opts models.ListOptions) ([]models.Event, int, error)
	UpdateEvent(ctx context.Context, event models.Event) (models.Event, error)
	DeleteEvent(ctx context.Context, id int) error

	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	ListUsers(ctx context.Context, opts models.ListOptions) ([]models.User, int, error)
	UpdateUser(ctx context.Context, user models.User) (models.User, error)
	DeleteUser(ctx context.Context, id int) error

	CreateGroup(ctx context.Context, group models.Group) (models.Group, error)
	GetGroup(ctx context.Context, id int) (models.Group, error)
	ListGroups(ctx context.Context, opts models.ListOptions) ([]models.Group, int, error)
	UpdateGroup(ctx context.Context, group models.Group) (models.Group, error)
	DeleteGroup(ctx context.Context, id int) error
}

type EventsService struct {
	log      *logrus.Entry
	store    Store
	notifier Notifier
	clock    clock.Clock
	validate *validator.Validate
}

func NewEventsService(log *logrus.Logger, store Store, notifier Notifier, clk clock.Clock) *EventsService {
	s := EventsService{
		log:      log.WithField("component", "service"),
		store:    store,
		notifier: notifier,
		clock:    clk,
		validate: newValidator(),
	}
	return &s
}

func (s *EventsService) notify(ctx context.Context, change string, eventID int) {
	if err := s.notifier.Notify(ctx, change, eventID); err != nil {
		s.log.Errorf("err notifying about event %d: %v", eventID, err)
	}
}

// listOptions checks sort against the sortable fields of a resource.
func listOptions(opts models.ListOptions, sortable map[string]bool) (models.ListOptions, error) {
	if opts.Sort == "" {
		opts.Sort = "id"
	}
	if !sortable[opts.Sort] {
		return models.ListOptions{}, NewValidationError("sort", "Invalid sort field \""+opts.Sort+"\".")
	}
	if opts.Limit < 0 || opts.Offset < 0 {
		return models.ListOptions{}, NewValidationError("page", "Invalid page.")
	}
	return opts, nil
}
