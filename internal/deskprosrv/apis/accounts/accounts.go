// Package accounts serves agent login, logout and identity lookup. Tokens
// travel in httpOnly cookies.
package accounts

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/common/httpx"
	"github.com/softflow/deskpro/internal/deskprosrv/auth"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/server/middleware"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
)

var ErrAccountInactive apperrors.Error = auth.ErrAuth.New("account is inactive").
	SetStatusCode(http.StatusForbidden).
	SetReason("account_inactive")

type TokenIssuer interface {
	auth.Decoder
	IssueAccess(id auth.Identity) (string, error)
	IssueRefresh(id auth.Identity) (string, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

type UserReader interface {
	GetTenantUserByEmail(ctx context.Context, email string) (*models.TenantUser, apperrors.Error)
}

type Handler struct {
	Tokens TokenIssuer
	Loader middleware.AliasLoader
	Users  UserReader
	// SecureCookies marks the token cookies Secure.
	SecureCookies bool

	validate *validator.Validate
}

func Router(h *Handler) chi.Router {
	h.validate = validator.New(validator.WithRequiredStructEnabled())
	router := chi.NewRouter()
	router.Post("/login", h.login)
	router.Post("/logout", h.logout)
	router.Get("/me", h.me)
	return router
}

type LoginReq struct {
	Email      string `json:"email" validate:"required,email"`
	TenantSlug string `json:"tenant_slug" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type UserRsp struct {
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req LoginReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		httpx.SendError(w, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validate.Struct(req); err != nil {
		httpx.ErrInvalidRequest("email, tenant_slug and password are required").Send(w)
		return
	}

	alias, err := h.Loader.Ensure(ctx, req.TenantSlug)
	if err != nil {
		httpx.SendError(w, err)
		return
	}

	var user *models.TenantUser
	err = tenantrouter.WithAlias(ctx, alias, func(ctx context.Context) error {
		u, uerr := h.Users.GetTenantUserByEmail(ctx, req.Email)
		if uerr != nil {
			return uerr
		}
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			httpx.SendError(w, auth.ErrInvalidCredentials)
			return
		}
		httpx.SendError(w, err)
		return
	}
	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		httpx.SendError(w, auth.ErrInvalidCredentials)
		return
	}
	if !user.IsActive {
		httpx.SendError(w, ErrAccountInactive)
		return
	}

	id := auth.Identity{
		UserID:     user.ID.String(),
		TenantSlug: user.TenantSlug,
		Email:      user.Email,
		FullName:   user.FullName,
	}
	if id.TenantSlug == "" {
		id.TenantSlug = req.TenantSlug
	}
	access, err := h.Tokens.IssueAccess(id)
	if err != nil {
		httpx.SendError(w, err)
		return
	}
	refresh, err := h.Tokens.IssueRefresh(id)
	if err != nil {
		httpx.SendError(w, err)
		return
	}
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, access, h.Tokens.AccessTTL()))
	http.SetCookie(w, h.cookie(middleware.RefreshTokenCookie, refresh, h.Tokens.RefreshTTL()))
	log.Ctx(ctx).Info().Str("tenant", id.TenantSlug).Str("email", user.Email).Msg("agent logged in")
	httpx.SendJsonRsp(ctx, w, http.StatusOK, &UserRsp{Email: user.Email, FullName: user.FullName})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.cookie(middleware.AccessTokenCookie, "", -1))
	http.SetCookie(w, h.cookie(middleware.RefreshTokenCookie, "", -1))
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{"detail": "Logged out."})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Tokens.Decode(middleware.Credential(r))
	if err != nil {
		httpx.SendError(w, err)
		return
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &UserRsp{Email: claims.Email, FullName: claims.FullName})
}

// cookie builds a token cookie. A negative ttl expires it.
func (h *Handler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
	} else {
		c.MaxAge = int(ttl.Seconds())
	}
	return c
}
