package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendhub/spendhub/internal/authz"
	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/domain/user"
	"github.com/spendhub/spendhub/internal/repo/postgres"
	"github.com/spendhub/spendhub/internal/security"
)

type UserStore interface {
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, username, email, passwordHash, role string) (user.User, error)
	Update(ctx context.Context, id string, fields postgres.UpdateFields) (user.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]user.User, error)
}

type UsersHandler struct {
	store UserStore
}

func NewUsersHandler(store UserStore) *UsersHandler {
	return &UsersHandler{store: store}
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.store.GetByID(cctx, actor.ID)
	if err != nil {
		RespondInternal(ctx, "Could not load profile")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Get(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	if !authz.Authorize(actor, authz.ActionReadUser, id).Allowed() {
		RespondForbidden(ctx, "Cannot view this user")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.store.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not fetch user")
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) List(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	if !authz.Authorize(actor, authz.ActionListUsers, "").Allowed() {
		RespondForbidden(ctx, "Admin role required")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.store.List(cctx)
	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": users,
		"count": len(users),
	})
}

type CreateUserRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=USER ADMIN"`
}

func (h *UsersHandler) Create(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	if !authz.Authorize(actor, authz.ActionCreateUser, "").Allowed() {
		RespondForbidden(ctx, "Admin role required")
		return
	}

	var req CreateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	role := req.Role
	if role == "" {
		role = user.RoleUser
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.store.Create(cctx, req.Username, req.Email, hash, role)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, postgres.ErrUsernameTaken):
			RespondConflict(ctx, "username_taken", "Username is already in use.")
		default:
			RespondInternal(ctx, "Could not create user")
		}
		return
	}

	ctx.JSON(http.StatusCreated, u)
}

type UpdateUserRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=64"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8"`
	Role     *string `json:"role" binding:"omitempty,oneof=USER ADMIN"`
	Enabled  *bool   `json:"enabled"`
}

func (h *UsersHandler) Update(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	if !authz.Authorize(actor, authz.ActionUpdateUser, id).Allowed() {
		RespondForbidden(ctx, "Cannot update this user")
		return
	}

	var req UpdateUserRequest
	if !BindJSON(ctx, &req) {
		return
	}

	// Role and enabled are admin-only knobs, even on your own record.
	if (req.Role != nil || req.Enabled != nil) && !authz.CanChangeRole(actor) {
		RespondForbidden(ctx, "Cannot change role or enabled state")
		return
	}

	fields := postgres.UpdateFields{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
		Enabled:  req.Enabled,
	}

	if req.Password != nil {
		hash, err := security.HashPassword(*req.Password)
		if err != nil {
			RespondInternal(ctx, "Could not update user")
			return
		}
		fields.PasswordHash = &hash
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	u, err := h.store.Update(cctx, id, fields)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrUserNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, postgres.ErrUsernameTaken):
			RespondConflict(ctx, "username_taken", "Username is already in use.")
		default:
			RespondInternal(ctx, "Could not update user")
		}
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	id := ctx.Param("id")

	if !authz.Authorize(actor, authz.ActionDeleteUser, id).Allowed() {
		RespondForbidden(ctx, "Cannot delete this user")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if err := h.store.Delete(cctx, id); err != nil {
		if errors.Is(err, postgres.ErrUserNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not delete user")
		return
	}

	ctx.Status(http.StatusNoContent)
}
