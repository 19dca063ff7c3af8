package skill

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clawmart/clawmart/internal/auth"
	"github.com/clawmart/clawmart/pkg/cerr"
)

type Handler struct {
	server *Server
}

func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

func (h *Handler) MountPublic(r chi.Router) {
	r.Get("/skills/{idOrSlug}/reviews", cerr.HandlerFunc(h.listReviews))
}

func (h *Handler) MountPrivate(r chi.Router) {
	r.Route("/registry/skills", func(r chi.Router) {
		r.Get("/", cerr.HandlerFunc(h.list))
		r.Post("/", cerr.HandlerFunc(h.create))
		r.Get("/mine", cerr.HandlerFunc(h.mine))
		r.Get("/{id}", cerr.HandlerFunc(h.get))
		r.Patch("/{id}", cerr.HandlerFunc(h.update))
		r.Delete("/{id}", cerr.HandlerFunc(h.remove))
		r.Post("/{id}/reviews", cerr.HandlerFunc(h.submitReview))
	})
}

func (h *Handler) MountAdmin(r chi.Router) {
	r.Get("/skills", cerr.HandlerFunc(h.listAll))
}

type listResponse struct {
	Skills []*Skill `json:"skills"`
	Count  int      `json:"count"`
}

func newListResponse(skills []*Skill) *listResponse {
	if skills == nil {
		skills = []*Skill{}
	}
	return &listResponse{Skills: skills, Count: len(skills)}
}

func (h *Handler) list(r *http.Request) (any, error) {
	q := r.URL.Query()
	in := ListInput{Category: q.Get("category"), Query: q.Get("q")}
	// inactive skills are only listed back to their author
	if q.Get("status") == "all" {
		in.AllStatuses = true
		in.Author = auth.Subject(r.Context())
	}
	skills, err := h.server.List(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return newListResponse(skills), nil
}

func (h *Handler) listAll(r *http.Request) (any, error) {
	skills, err := h.server.List(r.Context(), ListInput{AllStatuses: true})
	if err != nil {
		return nil, err
	}
	return newListResponse(skills), nil
}

func (h *Handler) mine(r *http.Request) (any, error) {
	skills, err := h.server.ListByAuthor(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		return nil, err
	}
	return newListResponse(skills), nil
}

func (h *Handler) get(r *http.Request) (any, error) {
	return h.server.View(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"))
}

func (h *Handler) create(r *http.Request) (any, error) {
	var in CreateInput
	if err := cerr.DecodeJSON(r, &in); err != nil {
		return nil, err
	}
	return h.server.Create(r.Context(), auth.Subject(r.Context()), in)
}

func (h *Handler) update(r *http.Request) (any, error) {
	var p Patch
	if err := cerr.DecodeJSON(r, &p); err != nil {
		return nil, err
	}
	return h.server.Update(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"), p)
}

func (h *Handler) remove(r *http.Request) (any, error) {
	id := chi.URLParam(r, "id")
	if err := h.server.Remove(r.Context(), auth.Subject(r.Context()), id); err != nil {
		return nil, err
	}
	return map[string]string{"id": id}, nil
}

type createdReview struct {
	*ReviewResult
}

func (createdReview) HTTPStatus() int { return http.StatusCreated }

func (h *Handler) submitReview(r *http.Request) (any, error) {
	var in ReviewInput
	if err := cerr.DecodeJSON(r, &in); err != nil {
		return nil, err
	}
	res, err := h.server.SubmitReview(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		return nil, err
	}
	return createdReview{res}, nil
}

func (h *Handler) listReviews(r *http.Request) (any, error) {
	reviews, err := h.server.ListReviews(r.Context(), chi.URLParam(r, "idOrSlug"))
	if err != nil {
		return nil, err
	}
	if reviews == nil {
		reviews = []*ReviewView{}
	}
	return map[string]any{"reviews": reviews}, nil
}
