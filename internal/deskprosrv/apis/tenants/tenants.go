// Package tenants serves tenant signup and the admin key protected tenant
// operations.
package tenants

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/common/httpx"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/provisioning"
	"github.com/softflow/deskpro/internal/deskprosrv/server/middleware"
)

type Provisioner interface {
	Signup(ctx context.Context, req provisioning.SignupRequest) (*models.Tenant, error)
	Delete(ctx context.Context, slug string) error
}

type Directory interface {
	GetTenantBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Tenant, apperrors.Error)
	ListTenantMembers(ctx context.Context, tenantID uuid.UUID) ([]*models.TenantMember, apperrors.Error)
}

type Handler struct {
	Provisioner Provisioner
	Directory   Directory
	AdminKey    string
}

func Router(h *Handler) chi.Router {
	router := chi.NewRouter()
	router.Method(http.MethodPost, "/signup", httpx.WrapHttpRsp(h.signup))
	router.Group(func(r chi.Router) {
		r.Use(middleware.AdminKey(h.AdminKey))
		for _, handler := range []httpx.ResponseHandlerParam{
			{Method: http.MethodDelete, Path: "/{slug}", Handler: h.deleteTenant},
			{Method: http.MethodGet, Path: "/{slug}/members", Handler: h.listMembers},
		} {
			r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
		}
	})
	return router
}

type SignupRsp struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Message string `json:"message"`
}

func (h *Handler) signup(r *http.Request) (*httpx.Response, error) {
	var req provisioning.SignupRequest
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	tenant, err := h.Provisioner.Signup(r.Context(), req)
	if err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("slug", tenant.Slug).Msg("tenant signed up")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &SignupRsp{
			ID:      tenant.ID.String(),
			Name:    tenant.Name,
			Slug:    tenant.Slug,
			Message: "Tenant provisioned successfully.",
		},
	}, nil
}

type DeleteRsp struct {
	Slug    string `json:"slug"`
	Message string `json:"message"`
}

func (h *Handler) deleteTenant(r *http.Request) (*httpx.Response, error) {
	slug := chi.URLParam(r, "slug")
	if err := h.Provisioner.Delete(r.Context(), slug); err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response: &DeleteRsp{
			Slug:    slug,
			Message: fmt.Sprintf("Tenant '%s' deleted successfully.", slug),
		},
	}, nil
}

type MemberRsp struct {
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func (h *Handler) listMembers(r *http.Request) (*httpx.Response, error) {
	ctx := r.Context()
	slug := chi.URLParam(r, "slug")
	tenant, err := h.Directory.GetTenantBySlug(ctx, slug, false)
	if err != nil {
		if errors.Is(err, dberror.ErrNotFound) {
			return nil, provisioning.ErrTenantNotFound.Msg("tenant " + slug + " not found")
		}
		return nil, err
	}
	members, err := h.Directory.ListTenantMembers(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}
	rsp := make([]MemberRsp, 0, len(members))
	for _, m := range members {
		rsp = append(rsp, MemberRsp{
			Email:     m.Email,
			FullName:  m.FullName,
			Role:      string(m.Role),
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   rsp,
	}, nil
}
