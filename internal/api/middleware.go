package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Saranwich/longsorn/internal/apperror"
	"github.com/Saranwich/longsorn/internal/logger"
)

type contextKey string

const OwnerIDKey contextKey = "owner_id"

// AuthMiddleware authenticates a bearer JWT and puts the owner ID from the
// subject claim on the request context.
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				apperror.WriteJSON(w, r, apperror.WrapWithMessage(nil, "unauthorized", "Missing authorization header", http.StatusUnauthorized))
				return
			}

			tokenString := extractBearerToken(authHeader)
			if tokenString == "" {
				apperror.WriteJSON(w, r, apperror.WrapWithMessage(nil, "unauthorized", "Invalid authorization format", http.StatusUnauthorized))
				return
			}

			token, err := parseToken(tokenString, jwtSecret)
			if err != nil || !token.Valid {
				apperror.WriteJSON(w, r, apperror.Wrap(err, apperror.ErrUnauthorized))
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				apperror.WriteJSON(w, r, apperror.ErrUnauthorized)
				return
			}

			sub, ok := claims["sub"].(string)
			if !ok {
				apperror.WriteJSON(w, r, apperror.WrapWithMessage(nil, "unauthorized", "Missing subject claim", http.StatusUnauthorized))
				return
			}

			ownerID, err := uuid.Parse(sub)
			if err != nil {
				apperror.WriteJSON(w, r, apperror.WrapWithMessage(err, "unauthorized", "Invalid owner ID in token", http.StatusUnauthorized))
				return
			}

			ctx := context.WithValue(r.Context(), OwnerIDKey, ownerID)
			ctx = logger.WithOwnerID(ctx, ownerID.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseToken(tokenString, secret string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Only HMAC algorithms are accepted, so a token cannot downgrade
		// the verification to "none" or an asymmetric scheme.
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
}

func extractBearerToken(authHeader string) string {
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

func GetOwnerID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(OwnerIDKey).(uuid.UUID)
	return id, ok
}

type responseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logger.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}

		log := logger.FromContext(r.Context())

		log.Debug("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		next.ServeHTTP(wrapped, r)

		log.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"size", wrapped.size,
		)
	})
}

func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log := logger.FromContext(r.Context())
				log.Error("panic recovered",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
