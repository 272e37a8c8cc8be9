package handlers

import (
	"net/http"

	"github.com/teamboard/engine/internal/api/types"
	"github.com/teamboard/engine/internal/models"
	"github.com/teamboard/engine/internal/services"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuthHandler(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	u, err := h.auth.Register(r.Context(), &services.RegisterInput{
		StudentID: req.StudentID,
		Email:     req.Email,
		Password:  req.Password,
		Name:      req.Name,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, userResponse(u))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	token, u, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, types.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   86400,
		User:        userResponse(u),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true})
}

func userResponse(u *models.User) types.UserResponse {
	return types.UserResponse{ID: u.ID.String(), StudentID: u.StudentID, Email: u.Email, Name: u.Name}
}
