package api

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fasthttp/router"
	"github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel/propagation"

	"github.com/curaious/chrono/internal/api/authenticator"
	"github.com/curaious/chrono/internal/api/controllers"
	"github.com/curaious/chrono/internal/api/ratelimit"
	"github.com/curaious/chrono/internal/config"
)

var tracePropagator = propagation.TraceContext{}

// Login attempts allowed per username+address per window.
const (
	loginAttempts = 10
	loginWindow   = time.Minute
)

func (s *Server) initRoutes() fasthttp.RequestHandler {
	r := router.New()

	r.GET("/api/health", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		_, _ = ctx.Write([]byte("OK"))
	})

	conf := config.ReadConfig()
	auth := authenticator.New(conf)

	controllers.RegisterAuthRoutes(r, s.services, auth, newLoginLimiter(conf))
	controllers.RegisterUserRoutes(r, s.services)
	controllers.RegisterProjectRoutes(r, s.services)
	controllers.RegisterTaskRoutes(r, s.services)

	return s.withMiddlewares(r.Handler, auth)
}

// newLoginLimiter prefers a shared Redis bucket and falls back to a per
// instance in-memory one when Redis is not configured.
func newLoginLimiter(conf *config.Config) ratelimit.Limiter {
	if conf.REDIS_ADDR == "" {
		return ratelimit.NewInMemory(loginAttempts, loginWindow)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     conf.REDIS_ADDR,
		Password: conf.REDIS_PASSWORD,
	})
	slog.Info("Using redis for login rate limiting", slog.String("addr", conf.REDIS_ADDR))

	return ratelimit.NewRedis(client, "chrono:login:", loginAttempts, loginWindow)
}

func (s *Server) withMiddlewares(next fasthttp.RequestHandler, auth *authenticator.Authenticator) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		applyCORS(ctx)
		if string(ctx.Method()) == fasthttp.MethodOptions {
			ctx.SetStatusCode(fasthttp.StatusNoContent)
			return
		}

		start := time.Now()
		uri := ctx.URI()
		requestURI := string(uri.FullURI())
		slog.Info("Started processing", slog.String("method", string(ctx.Method())), slog.String("request_uri", requestURI))

		h := http.Header{}
		ctx.Request.Header.VisitAll(func(k, v []byte) {
			h[string(k)] = []string{string(v)}
		})
		traceCtx := tracePropagator.Extract(ctx, propagation.HeaderCarrier(h))
		ctx.SetUserValue("traceCtx", traceCtx)

		// Auth check
		if !isPublicRoute(ctx) {
			accessToken := strings.TrimPrefix(string(ctx.Request.Header.Peek("Authorization")), "Bearer ")
			if accessToken == "" {
				accessToken = string(ctx.Request.Header.Cookie("access_token"))
			}

			if accessToken == "" {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			claims, err := auth.VerifyAccessToken(accessToken)
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			// Resolve the full user so handlers see current role and
			// reporting line, not the snapshot baked into the token.
			u, err := s.services.User.GetByID(traceCtx, userID)
			if err != nil || !u.IsActive {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				return
			}

			ctx.SetUserValue("userClaims", claims)
			ctx.SetUserValue("currentUser", u)
		}

		next(ctx)

		slog.Info("Finished processing", slog.String("method", string(ctx.Method())), slog.String("request_uri", requestURI), slog.Duration("duration", time.Since(start)))
	}
}

func applyCORS(ctx *fasthttp.RequestCtx) {
	headers := &ctx.Response.Header
	headers.Set("Access-Control-Allow-Origin", string(ctx.Request.Header.Peek("Origin")))
	headers.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS,PATCH")
	headers.Set("Access-Control-Allow-Headers", os.Getenv("ALLOWED_HEADERS"))
	headers.Set("Access-Control-Allow-Credentials", "true")
}

func isPublicRoute(ctx *fasthttp.RequestCtx) bool {
	switch string(ctx.Path()) {
	case "/api/health", "/api/auth/login":
		return true
	default:
		return false
	}
}
