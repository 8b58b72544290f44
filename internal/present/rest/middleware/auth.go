package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tastevault/tastevault/internal/domain"
)

var tracer = otel.Tracer("auth")

// AuthMiddleware resolves bearer session tokens to owner ids. Session
// issuance lives in the separate identity service; this side only
// reads the session keys it writes into redis.
type AuthMiddleware struct {
	rdb *redis.Client
}

func NewAuthMiddleware(rdb *redis.Client) *AuthMiddleware {
	return &AuthMiddleware{rdb: rdb}
}

const sessionKeyPrefix = "tv:session:"

// IdentifyOwner attaches the requester's owner id to the context when
// a valid session token is presented. Requests without one proceed
// unauthenticated; handlers decide what requires an owner.
func (m *AuthMiddleware) IdentifyOwner(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.IdentifyOwner")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")
		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) == 2 && split[0] == "Bearer" {
				ownerID, err := m.rdb.Get(ctx, sessionKeyPrefix+split[1]).Result()
				if err == nil && ownerID != "" {
					ctx = context.WithValue(ctx, domain.RequesterIdCtxKey, ownerID)
					span.SetAttributes(attribute.String("RequesterId", ownerID))
				} else if err != nil && err != redis.Nil {
					span.RecordError(errors.Wrap(err, "AuthMiddleware.IdentifyOwner: session lookup failed"))
				}
			}
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
