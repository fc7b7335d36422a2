package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/service"
)

type createUserRequest struct {
	ExternalAuthID string      `json:"externalAuthId"`
	Email          string      `json:"email" binding:"required,email"`
	Name           string      `json:"name" binding:"required,max=200"`
	Role           domain.Role `json:"role" binding:"required"`
	Specialization string      `json:"specialization"`
}

type updateUserRequest struct {
	Email          *string      `json:"email" binding:"omitempty,email"`
	Name           *string      `json:"name" binding:"omitempty,max=200"`
	Role           *domain.Role `json:"role"`
	Specialization *string      `json:"specialization"`
	IsActive       *bool        `json:"isActive"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

func (h *Handler) createUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.svc.Users.CreateUser(c.Request.Context(), &service.CreateUserCommand{
		ExternalAuthID: req.ExternalAuthID,
		Email:          req.Email,
		Name:           req.Name,
		Role:           req.Role,
		Specialization: req.Specialization,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondCreated(c, u)
}

func (h *Handler) getUser(c *gin.Context) {
	u, err := h.svc.Users.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *Handler) updateUser(c *gin.Context) {
	var req updateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	u, err := h.svc.Users.UpdateUser(c.Request.Context(), c.Param("id"), &domain.UpdateUserCommand{
		Email:          req.Email,
		Name:           req.Name,
		Role:           req.Role,
		Specialization: req.Specialization,
		IsActive:       req.IsActive,
	}, callerFrom(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}

func (h *Handler) listUsers(c *gin.Context) {
	us, err := h.svc.Users.ListUsers(c.Request.Context(), domain.Role(c.Query("role")))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, us)
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	pair, err := h.svc.Auth.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, pair)
}
