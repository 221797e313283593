package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/promptdoc-go/internal/logging"
)

// Reasons an Authorization header is refused. The text is sent to the client.
var (
	errNoCredentials = errors.New("authorization required")
	errBadScheme     = errors.New("authorization scheme must be Bearer")
	errBadToken      = errors.New("invalid token")
)

// tokenAuth guards the upload and chat routes with a single static bearer
// token (PROMPTDOC_API_KEY).
type tokenAuth struct {
	// digest is the SHA-256 of the configured token. Nil disables auth.
	digest []byte
	// reject records a refused request for metrics.
	reject func(reason string)
}

// newTokenAuth builds a tokenAuth for token. An empty token disables it.
func newTokenAuth(token string, reject func(reason string)) *tokenAuth {
	a := &tokenAuth{reject: reject}
	if token != "" {
		sum := sha256.Sum256([]byte(token))
		a.digest = sum[:]
	}
	return a
}

// wrap returns next guarded by the token check, or next itself when auth is
// disabled.
func (a *tokenAuth) wrap(next http.Handler) http.Handler {
	if a.digest == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := a.check(r.Header.Get("Authorization"))
		if err == nil {
			next.ServeHTTP(w, r)
			return
		}

		logging.FromContext(r.Context()).Warn("request not authorised",
			slog.String("path", r.URL.Path),
			slog.String("reason", err.Error()),
		)
		if a.reject != nil {
			a.reject("unauthorized")
		}

		challenge := `Bearer realm="promptdoc"`
		if errors.Is(err, errBadToken) {
			challenge += `, error="invalid_token"`
		}
		w.Header().Set("WWW-Authenticate", challenge)
		http.Error(w, err.Error(), http.StatusUnauthorized)
	})
}

// check validates an Authorization header value. Digests are compared so the
// comparison time does not depend on the token length.
func (a *tokenAuth) check(header string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return errNoCredentials
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return errBadScheme
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	if subtle.ConstantTimeCompare(sum[:], a.digest) != 1 {
		return errBadToken
	}
	return nil
}
