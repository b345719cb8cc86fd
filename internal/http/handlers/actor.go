package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/spendhub/spendhub/internal/authz"
	"github.com/spendhub/spendhub/internal/http/middlewares"
)

// actorFrom rebuilds the authenticated actor from what RequireAuth
// stashed on the context. The bool is false on unauthenticated routes.
func actorFrom(ctx *gin.Context) (authz.Actor, bool) {
	id, ok := middlewares.UserIDFromContext(ctx)
	if !ok || id == "" {
		return authz.Actor{}, false
	}

	email, _ := middlewares.EmailFromContext(ctx)
	role, _ := middlewares.RoleFromContext(ctx)

	return authz.Actor{ID: id, Email: email, Role: role}, true
}
