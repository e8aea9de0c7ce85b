package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/api/handlers"
	"github.com/ramonehamilton/deckvault/internal/api/response"
	"github.com/ramonehamilton/deckvault/internal/metrics"
	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// requestLogger logs one line per request and records it in m.
func requestLogger(logger *zap.Logger, m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				m.RecordRequest(ww.Status(), time.Since(start))
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote", r.RemoteAddr),
				}
				switch {
				case ww.Status() >= 500:
					logger.Error("request", fields...)
				case ww.Status() >= 400:
					logger.Warn("request", fields...)
				default:
					logger.Info("request", fields...)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// requireAuth resolves the caller from a bearer token or an X-API-Key
// header and rejects anonymous requests.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			user *models.User
			err  error
		)
		switch {
		case r.Header.Get("X-API-Key") != "":
			user, err = s.facades.Accounts.AuthenticateAPIKey(r.Context(), strings.TrimSpace(r.Header.Get("X-API-Key")))
		case bearerToken(r) != "":
			user, err = s.facades.Accounts.Authenticate(r.Context(), bearerToken(r))
		default:
			response.Unauthorized(w, errors.New("authentication required"))
			return
		}
		if err != nil {
			response.FromError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.WithUser(r.Context(), user)))
	})
}

// requireAdmin rejects callers without the admin flag. It runs after
// requireAuth.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := handlers.UserFromContext(r.Context())
		if user == nil {
			response.Unauthorized(w, errors.New("authentication required"))
			return
		}
		if !user.IsAdmin {
			response.Forbidden(w, errors.New("administrator access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on a websocket handshake, so upgrades may pass ?access_token= instead.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}
