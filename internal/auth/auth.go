// Package auth extracts an optional user identity from bearer tokens.
// Requests without a valid token are served anonymously.
package auth

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Verifier validates HS256 bearer tokens. An empty secret disables
// verification entirely and every request is anonymous.
type Verifier struct {
	secret []byte
}

// NewVerifier returns a verifier over the shared secret.
func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return &Verifier{}
	}
	return &Verifier{secret: []byte(secret)}
}

// UserFromRequest returns the token subject, or nil for anonymous
// requests. An invalid or expired token does not fail the request, it
// just downgrades it to anonymous.
func (v *Verifier) UserFromRequest(r *http.Request) *string {
	if v == nil || len(v.secret) == 0 {
		return nil
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		log.Debug().Err(err).Msg("bearer token rejected, serving anonymously")
		return nil
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return nil
	}
	return &sub
}
