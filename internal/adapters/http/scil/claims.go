package scil

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sasp-edomex/scil-auditoria/internal/core/user"
	httpmw "github.com/sasp-edomex/scil-auditoria/internal/infrastructure/http/middleware"
)

// usuarioFromRequest extracts the "sub" claim of the verified JWT (the
// usuario login) from the request context. Returns "" if the context holds
// no verified token or the claim is absent; userTokens then grants no
// entities.
func usuarioFromRequest(r *http.Request) string {
	tok, ok := r.Context().Value(httpmw.ContextKeyToken{}).(*jwt.Token)
	if !ok || tok == nil {
		return ""
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}

// userTokens resolves the request's authenticated usuario to its assigned
// entity tokens via the Directory built at startup (bootstrap.Load). An
// unknown or absent usuario gets no entities (fail closed), except when
// auth is disabled entirely, in which case the caller passes a nil
// directory and every request is treated as full-access.
func userTokens(dir *user.Directory, r *http.Request) []string {
	if dir == nil {
		return []string{"TODOS"}
	}
	usuario := usuarioFromRequest(r)
	if usuario == "" {
		return nil
	}
	u, ok := dir.Lookup(usuario)
	if !ok {
		return nil
	}
	return u.Entes
}
