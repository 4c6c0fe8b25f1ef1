package middleware

import (
	"context"
	"net/http"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"

	"workhub/pkg/errcode"
	"workhub/pkg/jwt"
)

// stubValidator stands in for AuthService in front of the middleware
type stubValidator struct {
	claims *jwt.Claims
	err    error
}

func (s *stubValidator) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.claims, nil
}

func newAuthEngine(v TokenValidator) *route.Engine {
	engine := route.NewEngine(hertzconfig.NewOptions(nil))
	engine.GET("/whoami", JWTAuth(v), func(ctx context.Context, c *app.RequestContext) {
		c.String(http.StatusOK, GetUserId(c))
	})
	return engine
}

func TestJWTAuthMissingHeader(t *testing.T) {
	engine := newAuthEngine(&stubValidator{})

	w := ut.PerformRequest(engine, "GET", "/whoami", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode())
}

func TestJWTAuthRejectsMalformedHeader(t *testing.T) {
	engine := newAuthEngine(&stubValidator{})

	w := ut.PerformRequest(engine, "GET", "/whoami", nil,
		ut.Header{Key: AuthorizationHeader, Value: "Token abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode())
}

func TestJWTAuthRejectsRevokedToken(t *testing.T) {
	// The validator says the token is no longer live (logged out or
	// kicked), even though its signature would still verify
	engine := newAuthEngine(&stubValidator{err: errcode.ErrTokenInvalid})

	w := ut.PerformRequest(engine, "GET", "/whoami", nil,
		ut.Header{Key: AuthorizationHeader, Value: BearerPrefix + "stale-token"})
	assert.Equal(t, http.StatusUnauthorized, w.Result().StatusCode())
}

func TestJWTAuthAcceptsValidatedToken(t *testing.T) {
	engine := newAuthEngine(&stubValidator{claims: &jwt.Claims{UserId: "alice", PlatformId: 1}})

	w := ut.PerformRequest(engine, "GET", "/whoami", nil,
		ut.Header{Key: AuthorizationHeader, Value: BearerPrefix + "live-token"})
	resp := w.Result()
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "alice", string(resp.Body()))
}
