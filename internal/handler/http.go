package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"token-economy/internal/service"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	requestIDKey
)

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}

// WithRequestID returns a context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request id or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Response messages that do not come from an error value.
const (
	msgUnauthorized = "Unauthorized"
	msgForbidden    = "Forbidden"
	msgInternal     = "Internal server error"
)

type envelope struct {
	Action Action `json:"action"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP decodes {action, ...params}, dispatches it for the user in the
// request context and writes the JSON result.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := UserIDFromContext(ctx)
	if !ok {
		WriteError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		WriteError(w, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	if env.Action == "" {
		WriteError(w, http.StatusBadRequest, "action is required")
		return
	}

	caller := Caller{
		UserID: userID,
		Client: service.ClientInfo{IP: clientIP(r), UserAgent: r.UserAgent()},
	}

	res, err := d.Dispatch(ctx, caller, env.Action, body)
	if err != nil {
		writeActionError(w, r, env.Action, userID, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

// writeActionError maps an action error onto the response status.
func writeActionError(w http.ResponseWriter, r *http.Request, action Action, userID uuid.UUID, err error) {
	switch {
	case service.IsValidationError(err):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		WriteError(w, http.StatusForbidden, msgForbidden)
	case service.IsBusinessError(err):
		log.Debug().
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("action", string(action)).
			Str("user_id", userID.String()).
			Str("reason", err.Error()).
			Msg("Action rejected")
		WriteError(w, http.StatusOK, err.Error())
	default:
		log.Error().
			Err(err).
			Str("request_id", RequestIDFromContext(r.Context())).
			Str("action", string(action)).
			Str("user_id", userID.String()).
			Msg("Action failed")
		WriteError(w, http.StatusInternalServerError, msgInternal)
	}
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

// WriteError writes {"error": msg}.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, errorResponse{Error: msg})
}

// clientIP prefers the first X-Forwarded-For hop set by the edge proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
