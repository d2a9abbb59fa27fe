/*
Package handler provides HTTP handler functions for listing, creating, joining and deleting rooms.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"swiftchat/internal/pkg/auth/jwt"
	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/req"
	"swiftchat/internal/pkg/resp"
)

type CreateRoomInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type JoinRoomInput struct {
	RoomID string `json:"room_id"`
}

// requireIdentity writes 401 and returns nil when the caller is anonymous.
func requireIdentity(w http.ResponseWriter, r *http.Request) *jwt.Payload {
	identity := jwt.GetPayloadFromContext(r)
	if identity == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
	}
	return identity
}

func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requireIdentity(w, r) == nil {
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"rooms": deps.Hub.Rooms(),
		})
	}
}

// HandleCreateRoom creates a room and answers 201 with its REST view.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := requireIdentity(w, r)
		if identity == nil {
			return
		}

		var input CreateRoomInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, customErr := deps.Hub.CreateRoom(input.Name, input.Description, identity.UserID())
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondCreated(w, r, room.Info())
	}
}

// HandleJoinRoom checks that a room exists. Membership itself is established over the
// real-time channel with a join_room frame.
func HandleJoinRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requireIdentity(w, r) == nil {
			return
		}

		var input JoinRoomInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if input.RoomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		room := deps.Hub.GetRoom(input.RoomID)
		if room == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrRoomNotFound))
			return
		}

		resp.RespondSuccess(w, r, room.Info())
	}
}

func HandleDeleteRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requireIdentity(w, r) == nil {
			return
		}

		roomID := chi.URLParam(r, "id")
		if customErr := deps.Hub.DeleteRoom(roomID); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]string{"id": roomID})
	}
}

// HandleMessages returns the recent history of the room named by ?room_id=.
func HandleMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requireIdentity(w, r) == nil {
			return
		}

		roomID := r.URL.Query().Get("room_id")
		if roomID == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		messages, customErr := deps.Hub.Messages(roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages": messages,
		})
	}
}
