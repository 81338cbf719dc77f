package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pershin-daniil/Events/pkg/models"
	"github.com/pershin-daniil/Events/pkg/service"
)

const (
	maxBodySize     = 1 << 20
	defaultPageSize = 100
	maxPageSize     = 100
)

var errInvalidPage = fmt.Errorf("invalid page: %w", models.ErrNotFound)

type App interface {
	CreateEvent(ctx context.Context, req models.EventRequest) (models.Event, error)
	GetEvent(ctx context.Context, id int) (models.Event, error)
	ListEvents(ctx context.Context, opts models.ListOptions) ([]models.Event, int, error)
	UpdateEvent(ctx context.Context, id int, req models.EventRequest, partial bool) (models.Event, error)
	DeleteEvent(ctx context.Context, id int) error

	CreateUser(ctx context.Context, req models.UserRequest) (models.User, error)
	GetUser(ctx context.Context, id int) (models.User, error)
	ListUsers(ctx context.Context, opts models.ListOptions) ([]models.User, int, error)
	UpdateUser(ctx context.Context, id int, req models.UserRequest, partial bool) (models.User, error)
	DeleteUser(ctx context.Context, id int) error
	Authenticate(ctx context.Context, username, password string) (models.User, error)

	CreateGroup(ctx context.Context, req models.GroupRequest) (models.Group, error)
	GetGroup(ctx context.Context, id int) (models.Group, error)
	ListGroups(ctx context.Context, opts models.ListOptions) ([]models.Group, int, error)
	UpdateGroup(ctx context.Context, id int, req models.GroupRequest, partial bool) (models.Group, error)
	DeleteGroup(ctx context.Context, id int) error
}

// requestError marks a body or parameter the server could not parse.
type requestError struct {
	err error
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

func (s *Server) versionHandler(w http.ResponseWriter, _ *http.Request) {
	_, err := fmt.Fprintf(w, "%s\n", s.version)
	if err != nil {
		s.log.Warnf("err during writing to connection: %v", err)
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, models.ErrNotFound)
}

func (s *Server) methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	s.writeResponse(w, http.StatusMethodNotAllowed, errorsDocument(errorObject{
		Status: strconv.Itoa(http.StatusMethodNotAllowed),
		Code:   "method_not_allowed",
		Detail: fmt.Sprintf("Method \"%s\" not allowed.", r.Method),
	}))
}

// decodeBody reads either a JSON:API document ({"data": {"attributes": {...}}})
// or a flat JSON object into dst. An empty body decodes as {}.
func decodeBody(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return &requestError{err: fmt.Errorf("err reading body: %w", err)}
	}
	if len(raw) > maxBodySize {
		return &requestError{err: errors.New("request body too large")}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = []byte("{}")
	}
	var doc struct {
		Data *struct {
			Attributes json.RawMessage `json:"attributes"`
		} `json:"data"`
	}
	if err = json.Unmarshal(raw, &doc); err != nil {
		return &requestError{err: fmt.Errorf("JSON parse error - %w", err)}
	}
	if doc.Data != nil {
		raw = doc.Data.Attributes
		if len(raw) == 0 || string(raw) == "null" {
			raw = []byte("{}")
		}
	}
	if err = json.Unmarshal(raw, dst); err != nil {
		return &requestError{err: fmt.Errorf("JSON parse error - %w", err)}
	}
	return nil
}

// idParam returns the numeric id route parameter. Routes only match digits,
// so a failure here means the id does not fit into an int.
func idParam(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("bad id %q: %w", chi.URLParam(r, "id"), models.ErrNotFound)
	}
	return id, nil
}

// listParams reads sort, page[number] and page[size] from the query string.
func listParams(r *http.Request) (models.ListOptions, int, int, error) {
	q := r.URL.Query()
	page := 1
	if v := q.Get("page[number]"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return models.ListOptions{}, 0, 0, errInvalidPage
		}
		page = n
	}
	size := defaultPageSize
	if v := q.Get("page[size]"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			size = min(n, maxPageSize)
		}
	}
	opts := models.ListOptions{Limit: size, Offset: (page - 1) * size}
	if v := strings.TrimSpace(q.Get("sort")); v != "" {
		opts.Desc = strings.HasPrefix(v, "-")
		opts.Sort = strings.TrimPrefix(v, "-")
	}
	return opts, page, size, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warnf("err during encoding response: %v", err)
	}
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, doc document) {
	w.Header().Set("Content-Type", jsonAPIContentType)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		s.log.Warnf("err during encoding response: %v", err)
	}
}

// writeError maps service errors onto statuses. Server errors are logged and
// rendered without their cause.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.log.WithField("request_id", requestIDFrom(r.Context()))
	var (
		reqErr *requestError
		vErr   *service.ValidationError
	)
	switch {
	case errors.As(err, &reqErr):
		log.Debugf("bad request: %v", err)
		s.writeResponse(w, http.StatusBadRequest, errorsDocument(errorObject{
			Status: strconv.Itoa(http.StatusBadRequest),
			Code:   "parse_error",
			Detail: reqErr.Error(),
		}))
	case errors.As(err, &vErr):
		log.Debugf("validation failed: %v", err)
		s.writeResponse(w, http.StatusBadRequest, validationDocument(vErr))
	case errors.Is(err, errInvalidPage):
		s.writeResponse(w, http.StatusNotFound, errorsDocument(errorObject{
			Status: strconv.Itoa(http.StatusNotFound),
			Code:   "not_found",
			Detail: "Invalid page.",
		}))
	case errors.Is(err, models.ErrNotFound):
		log.Debugf("not found: %v", err)
		s.writeResponse(w, http.StatusNotFound, errorsDocument(errorObject{
			Status: strconv.Itoa(http.StatusNotFound),
			Code:   "not_found",
			Detail: "Not found.",
		}))
	case errors.Is(err, ErrUnauthorised), errors.Is(err, models.ErrInvalidCredentials):
		log.Debugf("unauthorised: %v", err)
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		s.writeResponse(w, http.StatusUnauthorized, errorsDocument(errorObject{
			Status: strconv.Itoa(http.StatusUnauthorized),
			Code:   "not_authenticated",
			Detail: unauthorisedDetail(err),
		}))
	default:
		log.Errorf("err during %s %s: %v", r.Method, r.URL.Path, err)
		s.writeResponse(w, http.StatusInternalServerError, errorsDocument(errorObject{
			Status: strconv.Itoa(http.StatusInternalServerError),
			Code:   "error",
			Detail: "A server error occurred.",
		}))
	}
}

func unauthorisedDetail(err error) string {
	if errors.Is(err, models.ErrInvalidCredentials) {
		return "Unable to log in with provided credentials."
	}
	return "Authentication credentials were not provided or are invalid."
}
