package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spendhub/spendhub/internal/auth"
	"github.com/spendhub/spendhub/internal/config"
	"github.com/spendhub/spendhub/internal/domain/user"
	"github.com/spendhub/spendhub/internal/repo/postgres"
	"github.com/spendhub/spendhub/internal/security"
)

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

type UserWriter interface {
	Create(ctx context.Context, username, email, passwordHash, role string) (user.User, error)
}

type AuthHandler struct {
	users      UserReader
	userWriter UserWriter
	jwt        *auth.Manager
	cfg        config.Config
}

func NewAuthHandler(users UserReader, userWriter UserWriter, jwtManager *auth.Manager, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:      users,
		userWriter: userWriter,
		jwt:        jwtManager,
		cfg:        cfg,
	}
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=64"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req RegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	// Cheap uniqueness probes before paying for the bcrypt hash. The
	// insert still races against concurrent registration, so the unique
	// violation from Create stays handled below.
	if taken, err := h.users.ExistsByEmail(cctx, req.Email); err == nil && taken {
		RespondConflict(ctx, "email_taken", "Email is already in use.")
		return
	}
	if taken, err := h.users.ExistsByUsername(cctx, req.Username); err == nil && taken {
		RespondConflict(ctx, "username_taken", "Username is already in use.")
		return
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	// Everyone self-registers as a regular user. Admins are created by
	// other admins or seeded at startup.
	u, err := h.userWriter.Create(cctx, req.Username, req.Email, hash, user.RoleUser)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrEmailAlreadyUsed):
			RespondConflict(ctx, "email_taken", "Email is already in use.")
		case errors.Is(err, postgres.ErrUsernameTaken):
			RespondConflict(ctx, "username_taken", "Username is already in use.")
		default:
			RespondInternal(ctx, "Could not create account")
		}
		return
	}

	token, err := h.jwt.Issue(u)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"accessToken": token,
		"user":        u,
	})
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, req.Email)
	if err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if err := security.CheckPassword(foundUser.PasswordHash, req.Password); err != nil {
		RespondUnAuthorized(ctx, "invalid_credentials", "Email or password is incorrect.")
		return
	}

	if !foundUser.Enabled {
		RespondUnAuthorized(ctx, "account_disabled", "Account is disabled.")
		return
	}

	token, err := h.jwt.Issue(foundUser)
	if err != nil {
		RespondInternal(ctx, "Could not generate access token")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"accessToken": token,
		"user":        foundUser,
	})
}
