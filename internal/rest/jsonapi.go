package rest

import (
	"strconv"
	"strings"
	"time"

	"github.com/pershin-daniil/Events/pkg/models"
	"github.com/pershin-daniil/Events/pkg/service"
)

// Every payload is a JSON:API 1.0 document. Documents carry no links so that
// both event route registrations render byte-identical bodies.
const (
	jsonAPIVersion     = "1.0"
	jsonAPIContentType = "application/vnd.api+json"
)

type jsonAPIObject struct {
	Version string `json:"version"`
}

type document struct {
	JSONAPI jsonAPIObject `json:"jsonapi"`
	Data    any           `json:"data,omitempty"`
	Meta    *documentMeta `json:"meta,omitempty"`
	Errors  []errorObject `json:"errors,omitempty"`
}

type documentMeta struct {
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Count int `json:"count"`
}

type resourceObject struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Attributes any    `json:"attributes"`
}

type errorObject struct {
	Status string       `json:"status"`
	Code   string       `json:"code"`
	Detail string       `json:"detail"`
	Source *errorSource `json:"source,omitempty"`
}

type errorSource struct {
	Pointer   string `json:"pointer,omitempty"`
	Parameter string `json:"parameter,omitempty"`
}

type eventAttributes struct {
	Title       string `json:"title"`
	Presenter   string `json:"presenter"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type userAttributes struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Groups     []int  `json:"groups"`
	DateJoined string `json:"date_joined"`
}

type groupAttributes struct {
	Name string `json:"name"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func eventResource(e models.Event) resourceObject {
	return resourceObject{
		Type: "events",
		ID:   strconv.Itoa(e.ID),
		Attributes: eventAttributes{
			Title:       e.Title,
			Presenter:   e.Presenter,
			Time:        formatTime(e.Time),
			Location:    e.Location,
			Description: e.Description,
		},
	}
}

func userResource(u models.User) resourceObject {
	groups := u.Groups
	if groups == nil {
		groups = []int{}
	}
	return resourceObject{
		Type: "users",
		ID:   strconv.Itoa(u.ID),
		Attributes: userAttributes{
			Username:   u.Username,
			Email:      u.Email,
			Groups:     groups,
			DateJoined: formatTime(u.DateJoined),
		},
	}
}

func groupResource(g models.Group) resourceObject {
	return resourceObject{
		Type:       "groups",
		ID:         strconv.Itoa(g.ID),
		Attributes: groupAttributes{Name: g.Name},
	}
}

func single(res resourceObject) document {
	return document{JSONAPI: jsonAPIObject{Version: jsonAPIVersion}, Data: res}
}

// collection wraps one page of resources. A page past the last one is errInvalidPage;
// page 1 of an empty collection is valid.
func collection(items []resourceObject, page, size, total int) (document, error) {
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if page > pages {
		return document{}, errInvalidPage
	}
	if items == nil {
		items = []resourceObject{}
	}
	return document{
		JSONAPI: jsonAPIObject{Version: jsonAPIVersion},
		Data:    items,
		Meta:    &documentMeta{Pagination: pagination{Page: page, Pages: pages, Count: total}},
	}, nil
}

func errorsDocument(errs ...errorObject) document {
	return document{JSONAPI: jsonAPIObject{Version: jsonAPIVersion}, Errors: errs}
}

// validationDocument renders one error object per message, fields in name order.
// Query parameters point at the parameter, body fields at their attribute.
func validationDocument(vErr *service.ValidationError) document {
	var errs []errorObject
	for _, field := range vErr.FieldNames() {
		source := &errorSource{Pointer: "/data/attributes/" + field}
		if field == "sort" || strings.HasPrefix(field, "page") {
			source = &errorSource{Parameter: field}
		}
		for _, msg := range vErr.Fields[field] {
			errs = append(errs, errorObject{
				Status: "400",
				Code:   "invalid",
				Detail: msg,
				Source: source,
			})
		}
	}
	return errorsDocument(errs...)
}
