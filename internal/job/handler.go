package job

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/transport"
	"github.com/go-chi/chi"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

type JobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// CreateJob serves POST /jobs. The router only lets companies through.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := internal.CallerFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	var dto CreateJobDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	j, err := h.Service.Create(r.Context(), caller, dto, audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, NewJobResponse(j, caller))
}

// ListJobs serves GET /jobs. With ?mine=true a company sees its own postings,
// closed ones included.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	caller, _ := internal.CallerFromContext(r.Context())
	q := r.URL.Query()

	if q.Get("mine") == "true" {
		if caller == nil {
			h.WriteAppError(w, internal.ErrUnauthenticated)
			return
		}
		jobs, err := h.Service.ListMine(r.Context(), caller)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}
		h.WriteJSON(w, http.StatusOK, JobsResponse{Jobs: NewJobListResponse(jobs, caller)})
		return
	}

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	jobs, err := h.Service.ListActive(r.Context(), limit, offset)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, JobsResponse{Jobs: NewJobListResponse(jobs, caller)})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	caller, _ := internal.CallerFromContext(r.Context())
	j, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewJobResponse(j, caller))
}

func (h *Handler) CloseJob(w http.ResponseWriter, r *http.Request) {
	caller, ok := internal.CallerFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	j, err := h.Service.Close(r.Context(), caller, chi.URLParam(r, "id"), audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, NewJobResponse(j, caller))
}
