/*
Package handler provides the HTTP handler that reports the caller's identity.
*/
package handler

import (
	"net/http"

	"swiftchat/internal/pkg/auth/jwt"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/resp"
)

// HandleProtected answers with the identity carried by the bearer token, or 401.
func HandleProtected(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		username := identity.Username
		if u, ok := deps.Users.Get(identity.UserID()); ok {
			username = u.Username
		}

		resp.RespondSuccess(w, r, map[string]any{
			"user_id":  identity.UserID(),
			"username": username,
		})
	}
}
