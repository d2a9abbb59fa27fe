/*
Package resp provides helper functions for constructing and sending standardized HTTP JSON responses.

Every relay response uses one envelope: a success flag, a business code, a message,
and an optional data payload. The REST client in internal/app/api reads the same shape.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"swiftchat/internal/pkg/errs"
	"swiftchat/internal/pkg/logx"
)

// JSONResponse defines the standardized JSON response structure returned by the relay.
type JSONResponse struct {
	// Success mirrors whether the request was fulfilled.
	Success bool `json:"success"`

	// Code is the business status code (0 for success, others for specific errors, see errs package).
	Code int `json:"code"`

	// Message is the client-friendly status description or error message.
	Message string `json:"message"`

	// Data is the optional response payload (e.g., data returned from a successful request).
	Data any `json:"data,omitempty"`
}

// RespondJSON is a generic response function used to set the Content-Type and send the JSON payload.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
			"path", r.URL.Path,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends a successful HTTP response (HTTP 200 OK).
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, JSONResponse{
		Success: true,
		Message: "success",
		Data:    data,
	})
}

// RespondCreated sends a successful HTTP response for a created resource (HTTP 201).
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusCreated, JSONResponse{
		Success: true,
		Message: "created",
		Data:    data,
	})
}

// RespondError sends an HTTP response containing custom error information.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	status := customErr.Status
	if status < http.StatusBadRequest {
		status = http.StatusBadRequest
	}

	RespondJSON(w, r, status, JSONResponse{
		Success: false,
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
