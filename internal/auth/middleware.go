package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Header names carrying the authenticated actor identity. The upstream
// gateway terminates authentication and forwards these; in development
// they can be set by hand.
const (
	HeaderActorID   = "X-Actor-Id"
	HeaderActorRole = "X-Actor-Role"
)

const actorContextKey = "actor"

// Middleware extracts the Actor from request headers and stores it on
// the echo context. Requests without an actor id are rejected.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderActorID)
			if id == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing actor identity")
			}
			role := Role(c.Request().Header.Get(HeaderActorRole))
			if role == "" {
				role = RoleEmployee
			}
			c.Set(actorContextKey, Actor{ID: id, Role: role})
			return next(c)
		}
	}
}

// ActorFromContext returns the actor placed on the context by Middleware.
func ActorFromContext(c echo.Context) Actor {
	if a, ok := c.Get(actorContextKey).(Actor); ok {
		return a
	}
	return Actor{}
}
