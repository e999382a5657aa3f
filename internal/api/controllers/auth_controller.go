package controllers

import (
	"errors"
	"fmt"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"github.com/curaious/chrono/internal/api/authenticator"
	"github.com/curaious/chrono/internal/api/ratelimit"
	"github.com/curaious/chrono/internal/perrors"
	"github.com/curaious/chrono/internal/services"
	user2 "github.com/curaious/chrono/internal/services/user"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *user2.User `json:"user"`
}

func RegisterAuthRoutes(r *router.Router, svc *services.Services, auth *authenticator.Authenticator, limiter ratelimit.Limiter) {
	// Login
	r.POST("/api/auth/login", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		var body loginRequest
		if err := parseBody(ctx, &body); err != nil {
			writeError(ctx, stdCtx, "Invalid request body", perrors.NewErrInvalidRequest("Invalid request body", err))
			return
		}

		if body.Username == "" || body.Password == "" {
			writeError(ctx, stdCtx, "Username and password are required", perrors.NewErrInvalidRequest("Username and password are required", errors.New("missing credentials")))
			return
		}

		// Throttle per username+address so one locked-out account cannot
		// exhaust attempts for everybody behind a NAT.
		key := fmt.Sprintf("login:%s:%s", body.Username, ctx.RemoteIP().String())
		allowed, err := limiter.Allow(stdCtx, key)
		if err != nil {
			// Throttling is best effort. A broken limiter backend should
			// not take down login.
			allowed = true
		}
		if !allowed {
			writeError(ctx, stdCtx, "Too many login attempts", perrors.New(perrors.ErrCode{Code: "rate_limited", Status: fasthttp.StatusTooManyRequests}, "Too many login attempts", errors.New("login rate limit exceeded")))
			return
		}

		u, err := svc.User.Authenticate(stdCtx, body.Username, body.Password)
		if err != nil {
			switch {
			case errors.Is(err, user2.ErrInvalidCredentials):
				writeError(ctx, stdCtx, "Invalid username or password", perrors.NewErrUnauthorized("Invalid username or password", err))
			default:
				writeError(ctx, stdCtx, "Failed to login", perrors.NewErrInternalServerError("Failed to login", err))
			}
			return
		}

		if !u.IsActive {
			writeError(ctx, stdCtx, "Account is deactivated", perrors.NewErrForbidden("Account is deactivated", errors.New("user is inactive")))
			return
		}

		token, err := auth.GenerateToken(u.ID, u.Username, u.Name, string(u.Role))
		if err != nil {
			writeError(ctx, stdCtx, "Failed to issue token", perrors.NewErrInternalServerError("Failed to issue token", err))
			return
		}

		cookie := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(cookie)
		cookie.SetKey("access_token")
		cookie.SetValue(token)
		cookie.SetPath("/")
		cookie.SetHTTPOnly(true)
		cookie.SetMaxAge(int(auth.TokenTTL().Seconds()))
		ctx.Response.Header.SetCookie(cookie)

		writeOK(ctx, stdCtx, "Login successful", loginResponse{Token: token, User: u})
	})

	// Current user
	r.GET("/api/auth/me", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)
		actor, err := currentUser(ctx)
		if err != nil {
			writeError(ctx, stdCtx, "Not authenticated", perrors.NewErrUnauthorized("Not authenticated", err))
			return
		}

		writeOK(ctx, stdCtx, "User retrieved successfully", actor)
	})

	// Logout clears the access token cookie. Tokens stay valid until expiry;
	// there is no server side session to revoke.
	r.POST("/api/auth/logout", func(ctx *fasthttp.RequestCtx) {
		stdCtx := requestContext(ctx)

		cookie := fasthttp.AcquireCookie()
		defer fasthttp.ReleaseCookie(cookie)
		cookie.SetKey("access_token")
		cookie.SetValue("")
		cookie.SetPath("/")
		cookie.SetHTTPOnly(true)
		cookie.SetMaxAge(-1)
		ctx.Response.Header.SetCookie(cookie)

		writeOK(ctx, stdCtx, "Logged out successfully", nil)
	})
}
