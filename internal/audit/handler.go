package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/transport"
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

// ListAuditLogs serves GET /admin/audit-logs.
func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		UserID:     q.Get("userId"),
		ActionType: ActionType(q.Get("actionType")),
	}

	var err error
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			h.WriteAppError(w, internal.NewValidationFieldError("limit", "limit must be a non-negative integer", internal.ErrCodeValidationFailed))
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if f.Offset, err = strconv.Atoi(v); err != nil || f.Offset < 0 {
			h.WriteAppError(w, internal.NewValidationFieldError("offset", "offset must be a non-negative integer", internal.ErrCodeValidationFailed))
			return
		}
	}

	page, err := h.Service.List(r.Context(), f)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, page)
}
