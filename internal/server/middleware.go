package server

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"

	"token-economy/internal/handler"
)

const (
	allowOrigin  = "*"
	allowHeaders = "authorization, content-type, x-client-info, apikey"
	allowMethods = "POST, OPTIONS"
)

// requestInfo collects what the access log needs from inner middleware.
type requestInfo struct {
	status int
	userID uuid.UUID
}

type requestInfoKey struct{}

func infoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(*requestInfo)
	return info
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	info *requestInfo
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.info.status == 0 {
		r.info.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.info.status == 0 {
		r.info.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// RequestIDMiddleware assigns every request an id, reusing X-Request-ID
// when the caller sent a valid one.
func RequestIDMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-ID")
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)
			next.ServeHTTP(w, r.WithContext(handler.WithRequestID(r.Context(), id)))
		})
	}
}

// LoggingMiddleware logs one line per request.
func LoggingMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{}
			ctx := context.WithValue(r.Context(), requestInfoKey{}, info)

			next.ServeHTTP(&statusRecorder{ResponseWriter: w, info: info}, r.WithContext(ctx))

			var event *zerolog.Event
			switch {
			case info.status >= http.StatusInternalServerError:
				event = log.Error()
			case info.status >= http.StatusBadRequest:
				event = log.Warn()
			default:
				event = log.Debug()
			}
			event = event.
				Str("request_id", handler.RequestIDFromContext(ctx)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", info.status).
				Dur("duration", time.Since(start))
			if info.userID != uuid.Nil {
				event = event.Str("user_id", info.userID.String())
			}
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				event = event.Str("trace_id", sc.TraceID().String())
			}
			event.Msg("Request handled")
		})
	}
}

// RecoveryMiddleware turns a panic into a 500 response.
func RecoveryMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().
						Str("request_id", handler.RequestIDFromContext(r.Context())).
						Interface("panic", rec).
						Bytes("stack", debug.Stack()).
						Msg("Recovered from panic")
					handler.WriteError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware allows browser calls from any origin and answers
// preflight requests directly.
func CORSMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware rejects requests without a valid bearer token and puts
// the user id into the request context.
func AuthMiddleware(auth *Authenticator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := auth.Verify(r.Header.Get("Authorization"))
			if err != nil {
				log.Debug().
					Err(err).
					Str("request_id", handler.RequestIDFromContext(r.Context())).
					Msg("Rejected credentials")
				handler.WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if info := infoFrom(r.Context()); info != nil {
				info.userID = userID
			}
			next.ServeHTTP(w, r.WithContext(handler.WithUserID(r.Context(), userID)))
		})
	}
}

// LimitMiddleware bounds the request body size and handling time.
func LimitMiddleware(maxBody int64, timeout time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBody > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBody)
			}
			if timeout > 0 {
				ctx, cancel := context.WithTimeout(r.Context(), timeout)
				defer cancel()
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
