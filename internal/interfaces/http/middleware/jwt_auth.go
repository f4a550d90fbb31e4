package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/turtacn/clusterkeys/internal/interfaces/http/handlers"
	"github.com/turtacn/clusterkeys/pkg/errors"
	"github.com/turtacn/clusterkeys/pkg/logger"
)

// AdminRole is the role claim required on admin tokens.
const AdminRole = "keys-admin"

// AdminClaims are the claims of an operator token.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// extractBearer extracts the token from the Authorization header.
func extractBearer(authHeader string) string {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// RequireAdminJWT protects mutating admin routes with HS256 operator tokens.
// The token must carry role=keys-admin and, when issuer is set, a matching iss.
func RequireAdminJWT(secret []byte, issuer string, log logger.Logger) gin.HandlerFunc {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		tokenStr := extractBearer(c.GetHeader("Authorization"))
		if tokenStr == "" {
			handlers.SendError(c, errors.New(errors.CodeUnauthorized, "missing bearer token"))
			return
		}

		claims := &AdminClaims{}
		_, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil {
			log.Warn(c.Request.Context(), "Admin token rejected", logger.Err(err))
			handlers.SendError(c, errors.New(errors.CodeUnauthorized, "invalid admin token"))
			return
		}
		if claims.Role != AdminRole {
			log.Warn(c.Request.Context(), "Admin token lacks role", logger.String("subject", claims.Subject))
			handlers.SendError(c, errors.New(errors.CodeUnauthorized, "admin role required"))
			return
		}

		c.Set("admin_subject", claims.Subject)
		c.Next()
	}
}

// NewAdminToken signs an HS256 operator token valid for ttl.
func NewAdminToken(secret []byte, subject, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		Role: AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
