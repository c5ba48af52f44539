package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"invoicing-service/internal/app"
	"invoicing-service/internal/core"

	"github.com/golang-jwt/jwt/v5"
)

const authCookie = "auth_token"

type principalKey struct{}

// principalFromContext returns the principal stored by RequireAuth.
func principalFromContext(ctx context.Context) (core.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(core.Principal)
	return p, ok
}

// jwtClaims is the JWT payload struct used for signing and parsing.
type jwtClaims struct {
	UserID   int    `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func (h *Handler) signToken(session *app.UserSession, now time.Time) (string, error) {
	claims := &jwtClaims{
		UserID:   session.UserID,
		Username: session.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(h.opts.TokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.opts.JWTSecret))
}

func (h *Handler) parseToken(raw string) (*jwtClaims, error) {
	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.opts.JWTSecret), nil
	})
	if err != nil || !token.Valid || claims.UserID <= 0 {
		return nil, core.ErrUnauthenticated
	}
	return claims, nil
}

// tokenFromRequest reads the session token from the auth cookie or, failing that, an
// Authorization: Bearer header.
func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(authCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// RequireAuth is chi middleware that validates the session token, checks the user still
// exists and injects the caller's Principal into the request context. Returns 401 if the
// token is absent, invalid or names a deleted user.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		claims, err := h.parseToken(raw)
		if err != nil {
			writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		// A token outlives its user when the account is deleted.
		user, err := h.svc.GetUser(r.Context(), claims.UserID)
		if err != nil {
			if core.IsNotFound(err) {
				writeError(w, r, "invalid or expired token", "UNAUTHORIZED", http.StatusUnauthorized)
				return
			}
			h.fail(w, r, "RequireAuth", err)
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, core.Principal{
			UserID:   user.UserID,
			Username: user.Username,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal returns the caller or writes a 401 when the route is not behind RequireAuth.
func principal(w http.ResponseWriter, r *http.Request) (core.Principal, bool) {
	p, ok := principalFromContext(r.Context())
	if !ok {
		writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
	}
	return p, ok
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   maxAge,
	})
}

// register handles POST /api/auth/register.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req app.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, "register", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, user)
}

// login handles POST /api/auth/login.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req app.CredentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.svc.AuthenticateUser(r.Context(), req)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}

	signed, err := h.signToken(session, time.Now())
	if err != nil {
		h.fail(w, r, "login", fmt.Errorf("token generation failed: %w", err))
		return
	}
	h.setSessionCookie(w, signed, int(h.opts.TokenTTL.Seconds()))

	type loginResponse struct {
		*app.UserSession
		Token string `json:"token"`
	}
	writeJSON(w, loginResponse{UserSession: session, Token: signed})
}

// logout handles POST /api/auth/logout and clears the auth cookie.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	user, err := h.svc.GetUser(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, "me", err)
		return
	}
	writeJSON(w, user)
}
