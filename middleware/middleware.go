// Package middleware provides HTTP authorization middleware for Warrant.
package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/warrant"
	"github.com/xraph/warrant/catalog"
)

// RequirePermission allows the request only when the caller's effective
// permission set contains key. The caller is the Forge user ID; requests
// without one are denied.
func RequirePermission(eng *warrant.Engine, key catalog.Key) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			userID := forge.UserIDFromContext(ctx.Context())
			if userID == "" {
				return denyResponse(ctx)
			}
			ok, err := eng.HasPermission(ctx.Context(), userID, key)
			if err != nil || !ok {
				return denyResponse(ctx)
			}
			return next(ctx)
		}
	}
}

// RequireAny allows the request if the caller holds ANY of the keys.
func RequireAny(eng *warrant.Engine, keys ...catalog.Key) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			res, err := resolveCaller(ctx, eng)
			if err != nil {
				return denyResponse(ctx)
			}
			for _, k := range keys {
				if res.Has(k) {
					return next(ctx)
				}
			}
			return denyResponse(ctx)
		}
	}
}

// RequireAll allows the request only if the caller holds ALL of the keys.
func RequireAll(eng *warrant.Engine, keys ...catalog.Key) forge.Middleware {
	return func(next forge.Handler) forge.Handler {
		return func(ctx forge.Context) error {
			res, err := resolveCaller(ctx, eng)
			if err != nil {
				return denyResponse(ctx)
			}
			for _, k := range keys {
				if !res.Has(k) {
					return denyResponse(ctx)
				}
			}
			return next(ctx)
		}
	}
}

func resolveCaller(ctx forge.Context, eng *warrant.Engine) (*warrant.Resolution, error) {
	userID := forge.UserIDFromContext(ctx.Context())
	if userID == "" {
		return nil, warrant.ErrValidation
	}
	return eng.ResolveAccess(ctx.Context(), userID)
}

func denyResponse(ctx forge.Context) error {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.Response().WriteHeader(http.StatusForbidden)
	return json.NewEncoder(ctx.Response()).Encode(map[string]string{"error": "access denied"})
}
