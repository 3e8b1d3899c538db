// Package db exposes the stores used by the server. Every store method
// asks the tenant router for its connection, so the database a call
// touches is decided by the entity and the request context, never by the
// caller.
package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/db/postgresql"
)

// ControlPlane is the durable registry of tenants and the cross tenant
// member directory.
type ControlPlane interface {
	CreateTenant(ctx context.Context, t *models.Tenant) apperrors.Error
	GetTenantBySlug(ctx context.Context, slug string, activeOnly bool) (*models.Tenant, apperrors.Error)
	ListTenants(ctx context.Context, activeOnly bool) ([]*models.Tenant, apperrors.Error)
	UpdateTenantConnection(ctx context.Context, tenantID uuid.UUID, conn models.TenantConnection) apperrors.Error
	ActivateTenant(ctx context.Context, tenantID uuid.UUID) apperrors.Error
	DeleteTenant(ctx context.Context, tenantID uuid.UUID) apperrors.Error

	UpsertTenantMember(ctx context.Context, m *models.TenantMember) apperrors.Error
	ListTenantMembers(ctx context.Context, tenantID uuid.UUID) ([]*models.TenantMember, apperrors.Error)
}

// TenantData holds the records stored in each tenant's own database.
type TenantData interface {
	CreateTenantUser(ctx context.Context, u *models.TenantUser) apperrors.Error
	GetTenantUserByEmail(ctx context.Context, email string) (*models.TenantUser, apperrors.Error)

	CreateTicket(ctx context.Context, t *models.Ticket) apperrors.Error
	GetTicket(ctx context.Context, id int64) (*models.Ticket, apperrors.Error)
	ListTickets(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, apperrors.Error)
	UpdateTicket(ctx context.Context, t *models.Ticket) apperrors.Error
	AddTicketMessage(ctx context.Context, ticket *models.Ticket, m *models.TicketMessage) apperrors.Error
	ListTicketMessages(ctx context.Context, ticket *models.Ticket) ([]*models.TicketMessage, apperrors.Error)
}

func NewControlPlane(r postgresql.ConnResolver) ControlPlane {
	return postgresql.NewControlPlaneStore(r)
}

func NewTenantData(r postgresql.ConnResolver) TenantData {
	return postgresql.NewTenantDataStore(r)
}
