package rest

import (
	"net/http"

	"github.com/pershin-daniil/Events/pkg/models"
)

func (s *Server) listEventsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts, page, size, err := listParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, total, err := s.app.ListEvents(ctx, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items := make([]resourceObject, 0, len(events))
	for _, event := range events {
		items = append(items, eventResource(event))
	}
	doc, err := collection(items, page, size, total)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, doc)
}

func (s *Server) createEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req models.EventRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	event, err := s.app.CreateEvent(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusCreated, single(eventResource(event)))
}

func (s *Server) getEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	event, err := s.app.GetEvent(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeResponse(w, http.StatusOK, single(eventResource(event)))
}

// updateEventHandler serves PUT (partial == false) and PATCH (partial == true).
func (s *Server) updateEventHandler(partial bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := idParam(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req models.EventRequest
		if err = decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		event, err := s.app.UpdateEvent(ctx, id, req, partial)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeResponse(w, http.StatusOK, single(eventResource(event)))
	}
}

func (s *Server) deleteEventHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.app.DeleteEvent(ctx, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
