package accounts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/auth"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/server/middleware"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct{}

func (fakeLoader) Ensure(ctx context.Context, slug string) (string, error) {
	if slug != "acme" {
		return "", tenantrouter.ErrTenantNotFound.Msg("tenant " + slug + " not found")
	}
	return models.AliasForSlug(slug), nil
}

type fakeUsers struct {
	users []*models.TenantUser
	alias string
}

func (f *fakeUsers) GetTenantUserByEmail(ctx context.Context, email string) (*models.TenantUser, apperrors.Error) {
	f.alias, _ = tenantrouter.AliasFromContext(ctx)
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, dberror.ErrNotFound.Msg("user not found")
}

func newHandler(t *testing.T) (http.Handler, *fakeUsers, *auth.TokenService) {
	t.Helper()
	tokens, err := auth.NewTokenService("accounts-test-secret", time.Hour, 7*24*time.Hour)
	require.NoError(t, err)
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	users := &fakeUsers{users: []*models.TenantUser{
		{ID: uuid.New(), Email: "ada@acme.test", FullName: "Ada", TenantSlug: "acme", PasswordHash: hash, IsActive: true},
		{ID: uuid.New(), Email: "old@acme.test", FullName: "Old", TenantSlug: "acme", PasswordHash: hash, IsActive: false},
	}}
	return Router(&Handler{Tokens: tokens, Loader: fakeLoader{}, Users: users}), users, tokens
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func cookieNamed(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginSetsCookies(t *testing.T) {
	h, users, tokens := newHandler(t)

	rr := post(h, "/login", `{"email":"ADA@acme.test","tenant_slug":"acme","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "tenant_acme", users.alias)

	var rsp UserRsp
	require.NoError(t, jsoniter.Unmarshal(rr.Body.Bytes(), &rsp))
	assert.Equal(t, "ada@acme.test", rsp.Email)
	assert.Equal(t, "Ada", rsp.FullName)

	access := cookieNamed(rr, middleware.AccessTokenCookie)
	require.NotNil(t, access)
	assert.True(t, access.HttpOnly)
	assert.Equal(t, 3600, access.MaxAge)
	refresh := cookieNamed(rr, middleware.RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, 7*24*3600, refresh.MaxAge)

	claims, err := tokens.Decode(access.Value)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.TenantSlug)
	assert.Equal(t, "ada@acme.test", claims.Email)

	// me echoes the claims from the cookie
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(access)
	me := httptest.NewRecorder()
	h.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	require.NoError(t, jsoniter.Unmarshal(me.Body.Bytes(), &rsp))
	assert.Equal(t, "Ada", rsp.FullName)
}

func TestLoginFailures(t *testing.T) {
	h, _, _ := newHandler(t)
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing fields", `{"email":"ada@acme.test"}`, http.StatusBadRequest},
		{"unknown tenant", `{"email":"ada@acme.test","tenant_slug":"ghost","password":"x"}`, http.StatusNotFound},
		{"unknown user", `{"email":"nobody@acme.test","tenant_slug":"acme","password":"correct-horse"}`, http.StatusUnauthorized},
		{"wrong password", `{"email":"ada@acme.test","tenant_slug":"acme","password":"nope"}`, http.StatusUnauthorized},
		{"inactive", `{"email":"old@acme.test","tenant_slug":"acme","password":"correct-horse"}`, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(h, "/login", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Nil(t, cookieNamed(rr, middleware.AccessTokenCookie))
		})
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	h, _, _ := newHandler(t)
	rr := post(h, "/logout", "")
	require.Equal(t, http.StatusOK, rr.Code)
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c := cookieNamed(rr, name)
		require.NotNil(t, c, name)
		assert.Equal(t, "", c.Value)
		assert.True(t, c.MaxAge < 0)
	}
}

func TestMeRejectsMissingToken(t *testing.T) {
	h, _, _ := newHandler(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), auth.ReasonNotAuthenticated)
}
