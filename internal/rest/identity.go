package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pershin-daniil/Events/pkg/models"
)

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.app.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	token, err := s.issueToken(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, models.TokenResponse{Token: token})
}

func (s *Server) issueToken(user models.User) (string, error) {
	now := time.Now()
	claims := models.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:   user.ID,
		Username: user.Username,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts, page, size, err := listParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	users, total, err := s.app.ListUsers(ctx, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]resourceObject, 0, len(users))
	for _, user := range users {
		items = append(items, userResource(user))
	}
	doc, err := collection(items, page, size, total)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, doc)
}

func (s *Server) createUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.UserRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.app.CreateUser(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Infof("user %d created by %s", user.ID, actor(ctx))
	s.writeResponse(w, http.StatusCreated, single(userResource(user)))
}

func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.app.GetUser(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, single(userResource(user)))
}

func (s *Server) updateUserHandler(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req models.UserRequest
		if err = decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		user, err := s.app.UpdateUser(ctx, id, req, partial)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeResponse(w, http.StatusOK, single(userResource(user)))
	}
}

func (s *Server) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.app.DeleteUser(ctx, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listGroupsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts, page, size, err := listParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	groups, total, err := s.app.ListGroups(ctx, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]resourceObject, 0, len(groups))
	for _, group := range groups {
		items = append(items, groupResource(group))
	}
	doc, err := collection(items, page, size, total)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, doc)
}

func (s *Server) createGroupHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.GroupRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	group, err := s.app.CreateGroup(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusCreated, single(groupResource(group)))
}

func (s *Server) getGroupHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	group, err := s.app.GetGroup(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, single(groupResource(group)))
}

func (s *Server) updateGroupHandler(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req models.GroupRequest
		if err = decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		group, err := s.app.UpdateGroup(ctx, id, req, partial)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeResponse(w, http.StatusOK, single(groupResource(group)))
	}
}

func (s *Server) deleteGroupHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.app.DeleteGroup(ctx, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
