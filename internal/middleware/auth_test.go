package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/taskboard/pkg/httpcontext"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func run(header, query string) (*fasthttp.RequestCtx, string) {
	var seen string
	handler := JWTAuth(secret, nil)(func(ctx *fasthttp.RequestCtx) {
		seen = httpcontext.UserID(ctx)
		ctx.SetStatusCode(fasthttp.StatusOK)
	})
	var rc fasthttp.RequestCtx
	uri := "/api/v1/tasks"
	if query != "" {
		uri += "?access_token=" + query
	}
	rc.Request.SetRequestURI(uri)
	if header != "" {
		rc.Request.Header.Set("Authorization", header)
	}
	rc.Request.Header.Set(httpcontext.HeaderUserID, "mallory")
	handler(&rc)
	return &rc, seen
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	token := sign(t, jwt.MapClaims{"user_id": "alice", "sid": "s1", "exp": time.Now().Add(time.Hour).Unix()})

	rc, seen := run("Bearer "+token, "")
	assert.Equal(t, fasthttp.StatusOK, rc.Response.StatusCode())
	assert.Equal(t, "alice", seen)
	assert.Equal(t, "s1", httpcontext.SessionID(rc))
}

func TestJWTAuthAcceptsQueryToken(t *testing.T) {
	token := sign(t, jwt.MapClaims{"user_id": "alice"})
	rc, seen := run("", token)
	assert.Equal(t, fasthttp.StatusOK, rc.Response.StatusCode())
	assert.Equal(t, "alice", seen)
}

func TestJWTAuthRejects(t *testing.T) {
	expired := sign(t, jwt.MapClaims{"user_id": "alice", "exp": time.Now().Add(-time.Minute).Unix()})
	anonymous := sign(t, jwt.MapClaims{"sid": "s1"})

	for name, header := range map[string]string{
		"missing":   "",
		"garbage":   "Bearer not-a-token",
		"expired":   "Bearer " + expired,
		"anonymous": "Bearer " + anonymous,
	} {
		t.Run(name, func(t *testing.T) {
			rc, seen := run(header, "")
			assert.Equal(t, fasthttp.StatusUnauthorized, rc.Response.StatusCode())
			assert.Empty(t, seen)
		})
	}
}
