package controllers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/curaious/chrono/internal/api/response"
	"github.com/curaious/chrono/internal/services/user"
	"github.com/valyala/fasthttp"
)

// requestContext returns a baseline context for handlers. fasthttp does not provide
// a standard context, so we start from Background for downstream calls.
func requestContext(_ *fasthttp.RequestCtx) context.Context {
	return context.Background()
}

// currentUser returns the authenticated user resolved by the auth middleware.
func currentUser(ctx *fasthttp.RequestCtx) (*user.User, error) {
	u, ok := ctx.UserValue("currentUser").(*user.User)
	if !ok || u == nil {
		return nil, errors.New("no authenticated user in request context")
	}

	return u, nil
}

func parseBody(ctx *fasthttp.RequestCtx, target any) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return errors.New("request body is empty")
	}

	return json.Unmarshal(body, target)
}

func writeError(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, err error) {
	response.NewResponse[any](stdCtx, message, nil).WithError(err).Write(ctx)
}

func writeOK(ctx *fasthttp.RequestCtx, stdCtx context.Context, message string, data any) {
	response.NewResponse(stdCtx, message, data).Write(ctx)
}

func pathParam(ctx *fasthttp.RequestCtx, key string) (string, error) {
	val := ctx.UserValue(key)
	if val == nil {
		return "", fmt.Errorf("%s is required", key)
	}

	return fmt.Sprint(val), nil
}

func pathParamInt64(ctx *fasthttp.RequestCtx, key string) (int64, error) {
	val, err := pathParam(ctx, key)
	if err != nil {
		return 0, err
	}

	return strconv.ParseInt(val, 10, 64)
}

func stringQuery(ctx *fasthttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func boolQuery(ctx *fasthttp.RequestCtx, key string) bool {
	return ctx.QueryArgs().GetBool(key)
}

func intQuery(ctx *fasthttp.RequestCtx, key string, def int) int {
	raw := ctx.QueryArgs().Peek(key)
	if len(raw) == 0 {
		return def
	}

	v, err := strconv.Atoi(string(raw))
	if err != nil {
		return def
	}
	return v
}

func optionalInt64Query(ctx *fasthttp.RequestCtx, key string) (*int64, error) {
	raw := ctx.QueryArgs().Peek(key)
	if len(raw) == 0 {
		return nil, nil
	}

	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", key)
	}
	return &v, nil
}

func optionalDayQuery(ctx *fasthttp.RequestCtx, key string) (*time.Time, error) {
	raw := ctx.QueryArgs().Peek(key)
	if len(raw) == 0 {
		return nil, nil
	}

	t, err := time.ParseInLocation("2006-01-02", string(raw), time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%s must be a YYYY-MM-DD date", key)
	}
	return &t, nil
}
