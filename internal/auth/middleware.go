package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"furgocasa/internal/utils"
)

type contextKey string

const subjectKey contextKey = "auth_subject"

// Verifier checks bearer tokens on the admin endpoints. Tokens are
// HMAC-signed JWTs carrying a role claim.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) parse(authHeader string) (*jwt.Token, error) {
	raw := strings.TrimPrefix(authHeader, "Bearer ")

	return jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	})
}

func (v *Verifier) roleFromToken(token *jwt.Token) string {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}

// RequireAdmin is chi-style middleware guarding admin routes.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		token, err := v.parse(authHeader)
		if err != nil || !token.Valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if v.roleFromToken(token) != "admin" {
			http.Error(w, "insufficient role", http.StatusForbidden)
			return
		}

		claims := token.Claims.(jwt.MapClaims)
		sub, _ := claims["sub"].(string)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey, sub)))
	})
}

// RequireAdminGin is the same guard for the gin service.
func (v *Verifier) RequireAdminGin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "missing bearer token"))
			return
		}

		token, err := v.parse(authHeader)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", "invalid token"))
			return
		}
		if v.roleFromToken(token) != "admin" {
			c.AbortWithStatusJSON(http.StatusForbidden, utils.ErrorResponse("Forbidden", "insufficient role"))
			return
		}

		c.Next()
	}
}

// Subject returns the authenticated subject stored by RequireAdmin.
func Subject(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}
