package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

const subjectKey contextKey = "subject"

// BearerAuthenticator is middleware that validates HS256 bearer tokens
type BearerAuthenticator struct {
	secret []byte
	issuer string
	// Public paths skip authentication.
	Public map[string]bool
}

// NewBearerAuthenticator creates a new bearer token middleware. An empty
// issuer accepts tokens from any issuer.
func NewBearerAuthenticator(secret []byte, issuer string) *BearerAuthenticator {
	return &BearerAuthenticator{
		secret: secret,
		issuer: issuer,
		Public: map[string]bool{"/": true},
	}
}

func (b *BearerAuthenticator) parse(tokenStr string) (*jwt.RegisteredClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if b.issuer != "" {
		options = append(options, jwt.WithIssuer(b.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.NewParser(options...).ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return b.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware returns an HTTP middleware that validates bearer tokens
func (b *BearerAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Public[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if len(authHeader) == 0 {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Authorization missing"))
			return
		}

		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenStr == "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Malformed authorization header"))
			return
		}

		claims, err := b.parse(tokenStr)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte("Invalid token"))
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubjectFrom returns the authenticated subject, or "".
func SubjectFrom(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}
