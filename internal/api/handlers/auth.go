package handlers

import (
	"errors"
	"net/http"

	"github.com/ramonehamilton/deckvault/internal/api/response"
	"github.com/ramonehamilton/deckvault/internal/service"
)

// AuthHandler handles accounts, tokens and API keys.
type AuthHandler struct {
	accounts *service.AccountService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

// Register creates an account and returns a session.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, session)
}

// LoginRequest accepts a username or an email as login.
type LoginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token pair.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	login := req.Login
	if login == "" {
		login = req.Username
	}
	if login == "" {
		login = req.Email
	}
	if login == "" || req.Password == "" {
		response.BadRequest(w, errors.New("login and password are required"))
		return
	}
	session, err := h.accounts.Login(r.Context(), login, req.Password)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, session)
}

// RefreshRequest carries a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, err := h.accounts.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, session)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	user, err := h.accounts.Me(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, user)
}

// Stats returns the caller's deck and inventory totals.
func (h *AuthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	stats, err := h.accounts.Stats(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, stats)
}

// ListAPIKeys lists the caller's API keys without their secrets.
func (h *AuthHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	keys, err := h.accounts.ListAPIKeys(r.Context(), userID)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Success(w, keys)
}

// CreateAPIKeyRequest names a new key.
type CreateAPIKeyRequest struct {
	Name string `json:"name"`
}

// CreateAPIKey creates a key; the secret is only returned here.
func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	var req CreateAPIKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := h.accounts.CreateAPIKey(r.Context(), userID, req.Name)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.Created(w, key)
}

// DeleteAPIKey revokes a key.
func (h *AuthHandler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	keyID, ok := pathID(w, r, "keyID")
	if !ok {
		return
	}
	if err := h.accounts.DeleteAPIKey(r.Context(), userID, keyID); err != nil {
		response.FromError(w, err)
		return
	}
	response.NoContent(w)
}
