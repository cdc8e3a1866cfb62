package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

const sessionCookie = "tablesniper_session"

// Auth guards the control API with a single-operator session. A nil
// *Auth disables the check entirely (local-only deployments).
type Auth struct {
	sc           *securecookie.SecureCookie
	passwordHash string
}

func NewAuth(hashKey, blockKey []byte, passwordBcrypt string) *Auth {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(14 * 24 * 3600)
	return &Auth{sc: sc, passwordHash: passwordBcrypt}
}

func (a *Auth) login(w http.ResponseWriter, r *http.Request, password string) error {
	if bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) != nil {
		return errors.New("invalid password")
	}
	encoded, err := a.sc.Encode(sessionCookie, map[string]string{"role": "operator"})
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
		MaxAge:   14 * 24 * 3600,
	})
	return nil
}

func (a *Auth) logout(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

func (a *Auth) authenticated(r *http.Request) bool {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return false
	}
	val := map[string]string{}
	if err := a.sc.Decode(sessionCookie, c.Value, &val); err != nil {
		return false
	}
	return val["role"] == "operator"
}

// middleware rejects unauthenticated API calls. The session endpoint
// itself stays reachable so the operator can log in.
func (a *Auth) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a == nil || r.URL.Path == "/api/session" {
			next.ServeHTTP(w, r)
			return
		}
		if !a.authenticated(r) {
			respondErr(w, http.StatusUnauthorized, "session required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
