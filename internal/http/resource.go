package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ledger/internal/log"
	"ledger/internal/session"
)

type entity interface {
	Validate() error
}

type patch[T any] interface {
	Apply(T) T
}

type creator[T any] interface {
	toEntity() (T, error)
}

type patcher[P any] interface {
	toPatch() (P, error)
}

// resource exposes one session collection as a REST collection. C and U
// are the create and update request bodies; a resource without an update
// body serves no PATCH route.
type resource[T entity, P patch[T], C creator[T], U patcher[P]] struct {
	name       string
	collection func(*session.Session) session.Collection[T, P]
	updatable  bool
}

func (res resource[T, P, C, U]) routes(s *Server) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", s.withSession(res.list))
		r.Post("/", s.withSession(res.create))
		r.Get("/{id}", s.withSession(res.get))
		if res.updatable {
			r.Patch("/{id}", s.withSession(res.update))
		}
		r.Delete("/{id}", s.withSession(res.delete))
	}
}

func (res resource[T, P, C, U]) list(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, res.collection(sess).List())
}

func (res resource[T, P, C, U]) get(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, ok := res.collection(sess).Find(id)
	if !ok {
		writeError(w, r, notFound(res.name, id))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (res resource[T, P, C, U]) create(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	var in C
	if err := s.decodeAndValidate(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := in.toEntity()
	if err != nil {
		writeError(w, r, invalid(err))
		return
	}

	col := res.collection(sess)
	created, err := col.Create(r.Context(), v)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.entityChanged(r, sess, res.name, log.OpCreate, col.ID(created))
	writeJSON(w, http.StatusCreated, created)
}

func (res resource[T, P, C, U]) update(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in U
	if err := s.decodeAndValidate(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := in.toPatch()
	if err != nil {
		writeError(w, r, invalid(err))
		return
	}

	updated, err := res.collection(sess).Update(r.Context(), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.entityChanged(r, sess, res.name, log.OpUpdate, id)
	writeJSON(w, http.StatusOK, updated)
}

func (res resource[T, P, C, U]) delete(s *Server, sess *session.Session, w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := res.collection(sess).Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	s.entityChanged(r, sess, res.name, log.OpDelete, id)
	w.WriteHeader(http.StatusNoContent)
}

// noPatch is the update body of resources that serve no PATCH route.
type noPatch[P any] struct{}

func (noPatch[P]) toPatch() (P, error) {
	var p P
	return p, nil
}
