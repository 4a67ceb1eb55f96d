package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/imagevault/service/internal/response"
	"github.com/imagevault/service/internal/user"
)

// emailRegex is a permissive sanity check, not full RFC 5322 validation.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
	log *zap.Logger
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authData struct {
	User  *user.User `json:"user"`
	Token string     `json:"token"`
}

// Register godoc
//
//	@Summary	Register a new account and receive a bearer token.
//	@Router		/api/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		response.BadRequest(w, "please provide username, email, and password")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		response.BadRequest(w, "invalid email address")
		return
	}

	u, token, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if errors.Is(err, ErrTaken) {
		response.Conflict(w, ErrTaken.Error())
		return
	}
	if err != nil {
		h.log.Error("registration failed", zap.Error(err))
		response.InternalError(w)
		return
	}

	response.Created(w, authData{User: u, Token: token})
}

// Login godoc
//
//	@Summary	Exchange email and password for a bearer token.
//	@Router		/api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, "please provide email and password")
		return
	}

	u, token, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		response.Unauthorized(w, ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		h.log.Error("login failed", zap.Error(err))
		response.InternalError(w)
		return
	}

	response.OK(w, authData{User: u, Token: token})
}
