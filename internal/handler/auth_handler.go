/*
Package handler provides HTTP handler functions for account registration and login.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"

	"swiftchat/internal/app/user"
	authjwt "swiftchat/internal/pkg/auth/jwt"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
	"swiftchat/internal/pkg/req"
	"swiftchat/internal/pkg/resp"
)

type CredentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AccountResponse is the data of a successful register or login.
type AccountResponse struct {
	Token    string `json:"token"`
	ID       string `json:"id"`
	Username string `json:"username"`
}

// HandleRegister creates an account and answers 201 with a fresh token.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, customErr := deps.Users.Register(input.Username, input.Password)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, customErr := issueAccount(deps, u)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("user registered", "user_id", u.ID, "username", u.Username)
		resp.RespondCreated(w, r, account)
	}
}

// HandleLogin verifies user credentials and issues a JWT token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, customErr := deps.Users.Authenticate(input.Username, input.Password)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, customErr := issueAccount(deps, u)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, account)
	}
}

func issueAccount(deps *AppDeps, u user.User) (*AccountResponse, *errs.CustomError) {
	payload := &authjwt.Payload{
		StandardClaims: jwt.StandardClaims{Subject: u.ID},
		Username:       u.Username,
		LastActive:     u.CreatedAt.UTC().Format(time.RFC3339),
	}

	token, err := authjwt.GenerateToken(payload, deps.Config.JWTSecret, authjwt.UserIdentityExpiration)
	if err != nil {
		logx.Error(err, "jwt generation failed", "user_id", u.ID)
		return nil, errs.NewError(errs.ErrUnknown, err)
	}

	return &AccountResponse{Token: token, ID: u.ID, Username: u.Username}, nil
}
