package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/CoderLord25/ZenSocial/internal/logger"
	"github.com/CoderLord25/ZenSocial/internal/models"
	"github.com/golang-jwt/jwt/v5"
)

var logg = logger.New()

type contextKey string

const AuthCtxKey = contextKey("auth")

const SessionCookieName = "zen_session"

// Auth is the resolved caller of a request.
type Auth struct {
	ZenID        string
	SessionToken string // empty for bearer-token callers
}

// SessionLookup resolves session tokens to sessions.
type SessionLookup interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
}

// Authenticator attaches an Auth to requests carrying a valid session cookie
// or bearer token. It never rejects a request; see RequirePage and RequireAPI.
type Authenticator struct {
	Sessions     SessionLookup
	JWTSecret    []byte
	CookieSecure bool
}

func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
			sess, err := a.Sessions.GetSession(r.Context(), c.Value)
			if err == nil {
				ctx := WithAuth(r.Context(), Auth{ZenID: sess.ZenID, SessionToken: sess.Token})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			logg.Info("http/auth", "Invalid or expired session cookie, clearing it")
			a.ClearSessionCookie(w)
		}

		if zenID, ok := a.bearerZenID(r); ok {
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), Auth{ZenID: zenID})))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *Authenticator) bearerZenID(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.JWTSecret, nil
	})
	if err != nil || !token.Valid {
		logg.Info("http/auth", "Rejected bearer token")
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	zenID, ok := claims["zenid"].(string)
	if !ok || zenID == "" {
		return "", false
	}
	return zenID, true
}

// IssueToken signs a bearer token for zenID.
func (a *Authenticator) IssueToken(zenID string, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"zenid": zenID,
		"exp":   time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(a.JWTSecret)
}

// SetSessionCookie stores the session token in an HTTP-only cookie.
func (a *Authenticator) SetSessionCookie(w http.ResponseWriter, sess *models.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   a.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *Authenticator) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// RequirePage redirects unauthenticated browser requests to /login.
func RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPI answers unauthenticated API requests with 401.
func RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := AuthFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithAuth(ctx context.Context, a Auth) context.Context {
	return context.WithValue(ctx, AuthCtxKey, a)
}

// Extracting the caller in handler
func AuthFromContext(ctx context.Context) (Auth, bool) {
	a, ok := ctx.Value(AuthCtxKey).(Auth)
	return a, ok
}
