package interview

import (
	"log/slog"
	"net/http"

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

type VerifyCodeRequest struct {
	Code string `json:"code"`
}

type VerifyCodeResponse struct {
	JobRef *JobRef `json:"jobRef"`
}

// VerifyCode serves POST /verify-interview-code.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if appErr := h.DecodeJSON(r, &req); appErr != nil {
		// an unreadable body is just a missing code
		h.WriteAppError(w, ErrPasscodeNotFound)
		return
	}

	ref, err := h.Service.Redeem(r.Context(), req.Code)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, VerifyCodeResponse{JobRef: ref})
}
