package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/julienschmidt/httprouter"

	"locafy/pkg/auth"
	apperrors "locafy/pkg/errors"
	httputil "locafy/pkg/http"
	"locafy/pkg/model"
)

// TokenParser verifies a bearer token and returns its identity.
type TokenParser interface {
	Parse(token string) (auth.Identity, error)
}

// RequireAuth rejects requests without a valid bearer token. When roles are
// given the caller must hold one of them.
func RequireAuth(tokens TokenParser, roles ...model.Role) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			token := bearerToken(r)
			if token == "" {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Missing authorization token"))
				return
			}

			identity, err := tokens.Parse(token)
			if err != nil {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Invalid or expired token"))
				return
			}

			if len(roles) > 0 && !slices.Contains(roles, identity.Role) {
				_ = httputil.WriteError(w, apperrors.Forbidden("Access denied for role "+string(identity.Role)))
				return
			}

			next(w, r.WithContext(auth.WithIdentity(r.Context(), identity)), ps)
		}
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
