package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coursewise/videokb/internal/api"
	"github.com/coursewise/videokb/internal/domain"
)

type AuthService interface {
	CreateOwner(ctx context.Context, name string) (*domain.Owner, error)
	CreateAPIKey(ctx context.Context, ownerID, name string) (string, error)
}

type AuthHandler struct {
	svc AuthService
}

func NewAuthHandler(svc AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type CreateOwnerRequest struct {
	Name string `json:"name"`
}

type OwnerResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type CreateAPIKeyRequest struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
}

type APIKeyResponse struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

func (h *AuthHandler) CreateOwner(w http.ResponseWriter, r *http.Request) {
	var req CreateOwnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	owner, err := h.svc.CreateOwner(r.Context(), req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, OwnerResponse{
		ID:        owner.ID,
		Name:      owner.Name,
		CreatedAt: owner.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *AuthHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OwnerID == "" {
		api.Error(w, http.StatusBadRequest, "owner_id is required")
		return
	}
	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	token, err := h.svc.CreateAPIKey(r.Context(), req.OwnerID, req.Name)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, APIKeyResponse{
		Token: token,
		Name:  req.Name,
	})
}
