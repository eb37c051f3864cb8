package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/frahmantamala/acuhire/internal"
	"github.com/frahmantamala/acuhire/internal/audit"
	"github.com/frahmantamala/acuhire/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service  ServiceAPI
	Sessions *SessionTransport
}

func NewHandler(svc ServiceAPI, sessions *SessionTransport, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
		Sessions:    sessions,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var dto RegisterDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	u, err := h.Service.Register(r.Context(), dto, audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, RegisterResponse{ID: u.ID, Email: u.Email, Role: string(u.Role)})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	res, err := h.Service.Login(r.Context(), dto, audit.MetaFromRequest(r))
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.Sessions.SetSession(w, res.Token)
	h.WriteJSON(w, http.StatusOK, NewUserResponse(res.User))
}

// Logout always succeeds and always expires the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.Service.Logout(r.Context(), h.Sessions.RawToken(r), audit.MetaFromRequest(r))
	h.Sessions.Clear(w)
	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Logged out"})
}

func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.Sessions.CurrentCaller(r)
	if !ok {
		if _, err := r.Cookie(CookieName); err == nil {
			h.Sessions.Clear(w)
		}
		h.WriteAppError(w, internal.ErrUnauthenticated)
		return
	}

	h.WriteJSON(w, http.StatusOK, SessionResponse{
		ID:        claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Role:      claims.Role,
		ExpiresAt: claims.ExpiresAtTime().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var dto ForgotPasswordDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	if err := h.Service.ForgotPassword(r.Context(), dto, audit.MetaFromRequest(r)); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "If an account exists for this email, a reset link has been sent"})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var dto ResetPasswordDTO
	if appErr := h.DecodeJSON(r, &dto); appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	if err := h.Service.ResetPassword(r.Context(), dto, audit.MetaFromRequest(r)); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset"})
}
