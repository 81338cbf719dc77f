package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/pershin-daniil/Events/internal/rest"
	"github.com/pershin-daniil/Events/pkg/clock"
	"github.com/pershin-daniil/Events/pkg/logger"
	"github.com/pershin-daniil/Events/pkg/memstore"
	"github.com/pershin-daniil/Events/pkg/models"
	"github.com/pershin-daniil/Events/pkg/notifier"
	"github.com/pershin-daniil/Events/pkg/service"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

const (
	version = "test"
	secret  = "test-secret"
	origin  = "http://localhost:4200"
)

var now = time.Date(2019, 5, 7, 18, 30, 0, 0, time.UTC)

type errorObject struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
	Source struct {
		Pointer   string `json:"pointer"`
		Parameter string `json:"parameter"`
	} `json:"source"`
}

type resource struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Attributes json.RawMessage `json:"attributes"`
}

type eventAttributes struct {
	Title       string `json:"title"`
	Presenter   string `json:"presenter"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type responseDoc struct {
	JSONAPI struct {
		Version string `json:"version"`
	} `json:"jsonapi"`
	Data json.RawMessage `json:"data"`
	Meta *struct {
		Pagination struct {
			Page  int `json:"page"`
			Pages int `json:"pages"`
			Count int `json:"count"`
		} `json:"pagination"`
	} `json:"meta"`
	Errors []errorObject `json:"errors"`
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) doc(s *suite.Suite) responseDoc {
	var doc responseDoc
	s.Require().NoError(json.Unmarshal(r.body, &doc), string(r.body))
	return doc
}

type RestTestSuite struct {
	suite.Suite
	log   *logrus.Logger
	store *memstore.Store
	app   *service.EventsService
	srv   *httptest.Server
}

func TestRestTestSuite(t *testing.T) {
	suite.Run(t, new(RestTestSuite))
}

func (s *RestTestSuite) SetupSuite() {
	s.log = logger.New("panic")
	s.store = memstore.New(s.log)
	s.app = service.NewEventsService(s.log, s.store, notifier.New(s.log), clock.NewFixed(now))
	handler := rest.New(s.log, s.app, rest.Options{
		Version:     version,
		Secret:      []byte(secret),
		CORSOrigins: []string{origin},
	})
	s.srv = httptest.NewServer(handler.Handler())
}

func (s *RestTestSuite) TearDownSuite() {
	s.srv.Close()
}

func (s *RestTestSuite) SetupTest() {
	s.store.ResetTables()
}

func (s *RestTestSuite) sendRequest(method, path string, body any, header http.Header) response {
	s.T().Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, s.srv.URL+path, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer func() {
		err = resp.Body.Close()
		s.Require().NoError(err)
	}()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return response{status: resp.StatusCode, header: resp.Header, body: raw}
}

func (s *RestTestSuite) createEvent(path string, body any) resource {
	s.T().Helper()
	resp := s.sendRequest(http.MethodPost, path, body, nil)
	s.Require().Equal(http.StatusCreated, resp.status, string(resp.body))
	var res resource
	s.Require().NoError(json.Unmarshal(resp.doc(&s.Suite).Data, &res))
	return res
}

func (s *RestTestSuite) attributes(res resource) eventAttributes {
	s.T().Helper()
	var attrs eventAttributes
	s.Require().NoError(json.Unmarshal(res.Attributes, &attrs))
	return attrs
}

func (s *RestTestSuite) bearer(username, password string) http.Header {
	s.T().Helper()
	resp := s.sendRequest(http.MethodPost, "/api-auth/login", map[string]string{
		"username": username,
		"password": password,
	}, nil)
	s.Require().Equal(http.StatusOK, resp.status, string(resp.body))
	var token models.TokenResponse
	s.Require().NoError(json.Unmarshal(resp.body, &token))
	s.Require().NotEmpty(token.Token)
	return http.Header{"Authorization": {"Bearer " + token.Token}}
}

func (s *RestTestSuite) TestCreateEventDefaults() {
	res := s.createEvent("/events", map[string]string{"title": "Systems Paper", "location": "Room 5"})
	s.Require().Equal("events", res.Type)
	s.Require().Equal("1", res.ID)
	attrs := s.attributes(res)
	s.Require().Equal("Systems Paper", attrs.Title)
	s.Require().Equal("", attrs.Presenter)
	s.Require().Equal("2019-05-07T18:30:00Z", attrs.Time)
	s.Require().Equal("Room 5", attrs.Location)
	s.Require().Equal("", attrs.Description)

	resp := s.sendRequest(http.MethodGet, "/events/1", nil, nil)
	s.Require().Equal(http.StatusOK, resp.status)
	s.Require().Equal("application/vnd.api+json", resp.header.Get("Content-Type"))
	doc := resp.doc(&s.Suite)
	s.Require().Equal("1.0", doc.JSONAPI.Version)
	var got resource
	s.Require().NoError(json.Unmarshal(doc.Data, &got))
	s.Require().Equal(attrs, s.attributes(got))
}

func (s *RestTestSuite) TestCreateEventJSONAPIBody() {
	res := s.createEvent("/api/events", `{"data":{"type":"events","attributes":{"title":"Talk","presenter":"Ann","time":"2020-01-02T10:00:00+03:00"}}}`)
	attrs := s.attributes(res)
	s.Require().Equal("Talk", attrs.Title)
	s.Require().Equal("Ann", attrs.Presenter)
	s.Require().Equal("2020-01-02T07:00:00Z", attrs.Time)
}

func (s *RestTestSuite) TestCreateEventValidation() {
	s.Run("missing title", func() {
		resp := s.sendRequest(http.MethodPost, "/events", map[string]string{"location": "Room 5"}, nil)
		s.Require().Equal(http.StatusBadRequest, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("This field is required.", doc.Errors[0].Detail)
		s.Require().Equal("/data/attributes/title", doc.Errors[0].Source.Pointer)
	})

	s.Run("blank title", func() {
		resp := s.sendRequest(http.MethodPost, "/events", map[string]string{"title": "   "}, nil)
		s.Require().Equal(http.StatusBadRequest, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("This field may not be blank.", doc.Errors[0].Detail)
	})

	s.Run("too long", func() {
		resp := s.sendRequest(http.MethodPost, "/events", map[string]string{
			"title":    strings.Repeat("я", 257),
			"location": strings.Repeat("x", 257),
		}, nil)
		s.Require().Equal(http.StatusBadRequest, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 2)
		s.Require().Equal("/data/attributes/location", doc.Errors[0].Source.Pointer)
		s.Require().Equal("/data/attributes/title", doc.Errors[1].Source.Pointer)
		s.Require().Equal("Ensure this field has no more than 256 characters.", doc.Errors[1].Detail)
	})

	s.Run("multibyte title at the limit", func() {
		s.createEvent("/events", map[string]string{"title": strings.Repeat("я", 256)})
	})

	s.Run("malformed json", func() {
		resp := s.sendRequest(http.MethodPost, "/events", `{"title":`, nil)
		s.Require().Equal(http.StatusBadRequest, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("parse_error", doc.Errors[0].Code)
	})

	resp := s.sendRequest(http.MethodGet, "/events", nil, nil)
	s.Require().Equal(1, resp.doc(&s.Suite).Meta.Pagination.Count)
}

func (s *RestTestSuite) TestEventNotFound() {
	for _, tc := range []struct {
		method string
		path   string
		body   any
	}{
		{method: http.MethodGet, path: "/events/42"},
		{method: http.MethodPatch, path: "/events/42", body: map[string]string{"location": "x"}},
		{method: http.MethodPut, path: "/events/42", body: map[string]string{"title": "x"}},
		{method: http.MethodDelete, path: "/events/42"},
		{method: http.MethodGet, path: "/api/events/42"},
		{method: http.MethodDelete, path: "/api/events/42"},
		{method: http.MethodGet, path: "/events/abc"},
		{method: http.MethodGet, path: "/api/events/abc"},
	} {
		s.Run(tc.method+" "+tc.path, func() {
			resp := s.sendRequest(tc.method, tc.path, tc.body, nil)
			s.Require().Equal(http.StatusNotFound, resp.status)
			doc := resp.doc(&s.Suite)
			s.Require().Len(doc.Errors, 1)
			s.Require().Equal("Not found.", doc.Errors[0].Detail)
		})
	}
}

func (s *RestTestSuite) TestPartialUpdateChangesOnlyGivenField() {
	created := s.createEvent("/events", map[string]string{
		"title":       "Talk",
		"presenter":   "Ann",
		"location":    "Room 1",
		"description": "about",
	})
	before := s.attributes(created)

	resp := s.sendRequest(http.MethodPatch, "/events/"+created.ID, map[string]string{"location": "Room 2"}, nil)
	s.Require().Equal(http.StatusOK, resp.status, string(resp.body))
	var res resource
	s.Require().NoError(json.Unmarshal(resp.doc(&s.Suite).Data, &res))
	after := s.attributes(res)

	before.Location = "Room 2"
	s.Require().Equal(before, after)
}

func (s *RestTestSuite) TestFullUpdate() {
	created := s.createEvent("/events", map[string]string{"title": "Talk", "presenter": "Ann"})

	s.Run("title required", func() {
		resp := s.sendRequest(http.MethodPut, "/events/"+created.ID, map[string]string{"presenter": "Bob"}, nil)
		s.Require().Equal(http.StatusBadRequest, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("/data/attributes/title", doc.Errors[0].Source.Pointer)
	})

	s.Run("replace", func() {
		resp := s.sendRequest(http.MethodPut, "/events/"+created.ID, map[string]string{"title": "Keynote"}, nil)
		s.Require().Equal(http.StatusOK, resp.status)
		var res resource
		s.Require().NoError(json.Unmarshal(resp.doc(&s.Suite).Data, &res))
		attrs := s.attributes(res)
		s.Require().Equal("Keynote", attrs.Title)
		s.Require().Equal("Ann", attrs.Presenter)
	})

	s.Run("blank title rejected", func() {
		resp := s.sendRequest(http.MethodPatch, "/events/"+created.ID, map[string]string{"title": ""}, nil)
		s.Require().Equal(http.StatusBadRequest, resp.status)
	})
}

func (s *RestTestSuite) TestDeleteThenNotFound() {
	created := s.createEvent("/events", map[string]string{"title": "Talk"})

	resp := s.sendRequest(http.MethodDelete, "/events/"+created.ID, nil, nil)
	s.Require().Equal(http.StatusNoContent, resp.status)
	s.Require().Empty(resp.body)

	resp = s.sendRequest(http.MethodGet, "/events/"+created.ID, nil, nil)
	s.Require().Equal(http.StatusNotFound, resp.status)
	resp = s.sendRequest(http.MethodDelete, "/events/"+created.ID, nil, nil)
	s.Require().Equal(http.StatusNotFound, resp.status)
}

// runSequence issues the same requests against one routing shape and returns every body.
func (s *RestTestSuite) runSequence(prefix string) [][]byte {
	s.T().Helper()
	s.store.ResetTables()
	steps := []struct {
		method string
		path   string
		body   any
		status int
	}{
		{http.MethodPost, "/events", map[string]string{"title": "Talk", "location": "Room 1"}, http.StatusCreated},
		{http.MethodPost, "/events/", `{"data":{"type":"events","attributes":{"title":"Keynote","time":"2020-01-01T09:00:00Z"}}}`, http.StatusCreated},
		{http.MethodPost, "/events", map[string]string{}, http.StatusBadRequest},
		{http.MethodGet, "/events", nil, http.StatusOK},
		{http.MethodGet, "/events?sort=-title", nil, http.StatusOK},
		{http.MethodGet, "/events/1", nil, http.StatusOK},
		{http.MethodPatch, "/events/1", map[string]string{"location": "Room 2"}, http.StatusOK},
		{http.MethodPut, "/events/1/", map[string]string{"title": "Talk II"}, http.StatusOK},
		{http.MethodDelete, "/events/1", nil, http.StatusNoContent},
		{http.MethodGet, "/events/1", nil, http.StatusNotFound},
		{http.MethodDelete, "/events/1", nil, http.StatusNotFound},
		{http.MethodGet, "/events", nil, http.StatusOK},
	}
	bodies := make([][]byte, 0, len(steps))
	for _, step := range steps {
		resp := s.sendRequest(step.method, prefix+step.path, step.body, nil)
		s.Require().Equal(step.status, resp.status, "%s %s: %s", step.method, prefix+step.path, resp.body)
		bodies = append(bodies, resp.body)
	}
	return bodies
}

func (s *RestTestSuite) TestRoutingShapesAreEquivalent() {
	combined := s.runSequence("")
	split := s.runSequence("/api")
	s.Require().Len(split, len(combined))
	for i := range combined {
		s.Require().Equal(string(combined[i]), string(split[i]), "step %d", i)
	}
}

func (s *RestTestSuite) TestListPaginationAndSort() {
	for _, title := range []string{"b", "c", "a"} {
		s.createEvent("/events", map[string]string{"title": title})
	}

	titles := func(resp response) []string {
		var items []resource
		s.Require().NoError(json.Unmarshal(resp.doc(&s.Suite).Data, &items))
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, s.attributes(item).Title)
		}
		return out
	}

	s.Run("default order by id", func() {
		resp := s.sendRequest(http.MethodGet, "/events", nil, nil)
		s.Require().Equal(http.StatusOK, resp.status)
		s.Require().Equal([]string{"b", "c", "a"}, titles(resp))
	})

	s.Run("sort ascending and descending", func() {
		s.Require().Equal([]string{"a", "b", "c"}, titles(s.sendRequest(http.MethodGet, "/events?sort=title", nil, nil)))
		s.Require().Equal([]string{"c", "b", "a"}, titles(s.sendRequest(http.MethodGet, "/api/events?sort=-title", nil, nil)))
	})

	s.Run("second page", func() {
		resp := s.sendRequest(http.MethodGet, "/events?page[size]=2&page[number]=2", nil, nil)
		s.Require().Equal(http.StatusOK, resp.status)
		s.Require().Equal([]string{"a"}, titles(resp))
		meta := resp.doc(&s.Suite).Meta
		s.Require().NotNil(meta)
		s.Require().Equal(2, meta.Pagination.Page)
		s.Require().Equal(2, meta.Pagination.Pages)
		s.Require().Equal(3, meta.Pagination.Count)
	})

	s.Run("page out of range", func() {
		resp := s.sendRequest(http.MethodGet, "/events?page[number]=5", nil, nil)
		s.Require().Equal(http.StatusNotFound, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("Invalid page.", doc.Errors[0].Detail)
	})

	s.Run("invalid sort field", func() {
		resp := s.sendRequest(http.MethodGet, "/events?sort=nope", nil, nil)
		s.Require().Equal(http.StatusBadRequest, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("sort", doc.Errors[0].Source.Parameter)
	})
}

func (s *RestTestSuite) TestEmptyList() {
	resp := s.sendRequest(http.MethodGet, "/events", nil, nil)
	s.Require().Equal(http.StatusOK, resp.status)
	s.Require().JSONEq(`{"jsonapi":{"version":"1.0"},"data":[],"meta":{"pagination":{"page":1,"pages":1,"count":0}}}`, string(resp.body))
}

func (s *RestTestSuite) TestIdentityWritesRequireToken() {
	resp := s.sendRequest(http.MethodPost, "/users", map[string]string{"username": "bob"}, nil)
	s.Require().Equal(http.StatusUnauthorized, resp.status)

	resp = s.sendRequest(http.MethodPost, "/groups", map[string]string{"name": "staff"}, http.Header{
		"Authorization": {"Bearer not-a-token"},
	})
	s.Require().Equal(http.StatusUnauthorized, resp.status)

	resp = s.sendRequest(http.MethodGet, "/users", nil, nil)
	s.Require().Equal(http.StatusOK, resp.status)
}

func (s *RestTestSuite) TestLogin() {
	password := "s3cret"
	username := "admin"
	_, err := s.app.CreateUser(context.Background(), models.UserRequest{Username: &username, Password: &password})
	s.Require().NoError(err)

	s.Run("wrong password", func() {
		resp := s.sendRequest(http.MethodPost, "/api-auth/login", map[string]string{"username": "admin", "password": "nope"}, nil)
		s.Require().Equal(http.StatusUnauthorized, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("Unable to log in with provided credentials.", doc.Errors[0].Detail)
	})

	auth := s.bearer("admin", "s3cret")

	resp := s.sendRequest(http.MethodPost, "/api/groups/", map[string]string{"name": "staff"}, auth)
	s.Require().Equal(http.StatusCreated, resp.status, string(resp.body))
	var group resource
	s.Require().NoError(json.Unmarshal(resp.doc(&s.Suite).Data, &group))
	groupID, err := strconv.Atoi(group.ID)
	s.Require().NoError(err)

	s.Run("user with groups", func() {
		resp := s.sendRequest(http.MethodPost, "/users", map[string]any{
			"username": "bob",
			"email":    "bob@example.com",
			"groups":   []int{groupID},
		}, auth)
		s.Require().Equal(http.StatusCreated, resp.status, string(resp.body))
		var user resource
		s.Require().NoError(json.Unmarshal(resp.doc(&s.Suite).Data, &user))
		s.Require().JSONEq(`{"username":"bob","email":"bob@example.com","groups":[`+group.ID+`],"date_joined":"2019-05-07T18:30:00Z"}`, string(user.Attributes))
	})

	s.Run("unknown group", func() {
		resp := s.sendRequest(http.MethodPost, "/users", map[string]any{"username": "carl", "groups": []int{999}}, auth)
		s.Require().Equal(http.StatusBadRequest, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("/data/attributes/groups", doc.Errors[0].Source.Pointer)
	})

	s.Run("duplicate username", func() {
		resp := s.sendRequest(http.MethodPost, "/users", map[string]any{"username": "bob"}, auth)
		s.Require().Equal(http.StatusBadRequest, resp.status)
		doc := resp.doc(&s.Suite)
		s.Require().Len(doc.Errors, 1)
		s.Require().Equal("/data/attributes/username", doc.Errors[0].Source.Pointer)
	})

	s.Run("delete group", func() {
		resp := s.sendRequest(http.MethodDelete, "/groups/"+group.ID, nil, auth)
		s.Require().Equal(http.StatusNoContent, resp.status)
		resp = s.sendRequest(http.MethodGet, "/groups/"+group.ID, nil, nil)
		s.Require().Equal(http.StatusNotFound, resp.status)
	})
}

func (s *RestTestSuite) TestCORS() {
	s.Run("allowed preflight", func() {
		resp := s.sendRequest(http.MethodOptions, "/events", nil, http.Header{
			"Origin":                        {origin},
			"Access-Control-Request-Method": {http.MethodPost},
		})
		s.Require().Equal(http.StatusNoContent, resp.status)
		s.Require().Equal(origin, resp.header.Get("Access-Control-Allow-Origin"))
		s.Require().Contains(resp.header.Get("Access-Control-Allow-Methods"), http.MethodPatch)
	})

	s.Run("rejected preflight", func() {
		resp := s.sendRequest(http.MethodOptions, "/events", nil, http.Header{
			"Origin":                        {"http://evil.example"},
			"Access-Control-Request-Method": {http.MethodPost},
		})
		s.Require().Equal(http.StatusForbidden, resp.status)
		s.Require().Empty(resp.header.Get("Access-Control-Allow-Origin"))
	})

	s.Run("simple request", func() {
		resp := s.sendRequest(http.MethodGet, "/events", nil, http.Header{"Origin": {origin}})
		s.Require().Equal(http.StatusOK, resp.status)
		s.Require().Equal(origin, resp.header.Get("Access-Control-Allow-Origin"))
	})
}

func (s *RestTestSuite) TestServiceEndpoints() {
	resp := s.sendRequest(http.MethodGet, "/version", nil, nil)
	s.Require().Equal(http.StatusOK, resp.status)
	s.Require().Equal(version+"\n", string(resp.body))

	resp = s.sendRequest(http.MethodGet, "/healthz", nil, nil)
	s.Require().Equal(http.StatusOK, resp.status)
	s.Require().JSONEq(`{"status":"ok"}`, string(resp.body))

	resp = s.sendRequest(http.MethodGet, "/events", nil, http.Header{"X-Request-Id": {"abc"}})
	s.Require().Equal("abc", resp.header.Get("X-Request-ID"))

	resp = s.sendRequest(http.MethodGet, "/metrics", nil, nil)
	s.Require().Equal(http.StatusOK, resp.status)
	s.Require().Contains(string(resp.body), "events_http_requests_total")
}

func (s *RestTestSuite) TestMethodNotAllowed() {
	resp := s.sendRequest(http.MethodPost, "/events/1", map[string]string{"title": "x"}, nil)
	s.Require().Equal(http.StatusMethodNotAllowed, resp.status)
}
