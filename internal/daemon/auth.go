package daemon

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"tsencode/internal/config"
)

const jwtLeeway = time.Minute

// authenticator accepts either the static API token or an HS256 JWT signed
// with the configured secret. With neither configured every request passes.
type authenticator struct {
	token  string
	secret []byte
	issuer string
	now    func() time.Time
}

func newAuthenticator(cfg config.API) (*authenticator, error) {
	a := &authenticator{
		token:  strings.TrimSpace(cfg.Token),
		issuer: strings.TrimSpace(cfg.JWTIssuer),
		now:    time.Now,
	}
	if secret := strings.TrimSpace(cfg.JWTSecret); secret != "" {
		if len(secret) < 32 {
			return nil, errors.New("api.jwt_secret must be at least 32 bytes")
		}
		a.secret = []byte(secret)
	}
	return a, nil
}

func (a *authenticator) enabled() bool {
	return a != nil && (a.token != "" || len(a.secret) > 0)
}

// middleware returns a handler that requires "Authorization: Bearer <credential>".
func (a *authenticator) middleware(next http.HandlerFunc) http.HandlerFunc {
	if !a.enabled() {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(w)
			return
		}
		if !a.authorize(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))) {
			unauthorized(w)
			return
		}
		next(w, r)
	}
}

func (a *authenticator) authorize(credential string) bool {
	if credential == "" {
		return false
	}
	if a.token != "" && subtle.ConstantTimeCompare([]byte(credential), []byte(a.token)) == 1 {
		return true
	}
	if len(a.secret) == 0 {
		return false
	}
	return a.verifyJWT(credential) == nil
}

func (a *authenticator) verifyJWT(raw string) error {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return err
	}
	var claims jwt.Claims
	if err := tok.Claims(a.secret, &claims); err != nil {
		return err
	}
	if claims.Expiry == nil {
		return errors.New("token has no expiry")
	}
	return claims.ValidateWithLeeway(jwt.Expected{Issuer: a.issuer, Time: a.now()}, jwtLeeway)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="tsencode"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
