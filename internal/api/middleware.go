package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// userContextKey is the echo context key under which the authenticated
// caller's identifier is stored. Authentication itself is handled by the
// session layer in front of this API; handlers only consume the identity.
const userContextKey = "user_id"

// HeaderIdentity returns the default identity middleware. It trusts the
// X-User-ID header set by the authenticating reverse proxy and rejects
// requests without one. Deployments terminate sessions in front of this
// service and inject the verified identity.
func HeaderIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			userID := ctx.Request().Header.Get("X-User-ID")
			if userID == "" {
				return ctx.JSON(http.StatusUnauthorized, failResponse{
					Status:  "fail",
					Message: "You are not logged in. Please log in to get access.",
				})
			}
			ctx.Set(userContextKey, userID)
			return next(ctx)
		}
	}
}

// requireUser returns the authenticated caller's identifier from the request
// context. An empty result means the auth middleware did not run.
func requireUser(ctx echo.Context) string {
	userID, _ := ctx.Get(userContextKey).(string)
	return userID
}
