package models

import "strings"

// Entity names a persisted record type. The router decides which physical
// database an entity lives in from its category.
type Entity string

const (
	EntityTenant        Entity = "tenant"
	EntityTenantMember  Entity = "tenant_member"
	EntityTenantUser    Entity = "tenant_user"
	EntityTicket        Entity = "ticket"
	EntityTicketMessage Entity = "ticket_message"
)

const (
	// ControlPlaneAlias is the alias of the shared database holding tenants
	// and the member directory.
	ControlPlaneAlias = "default"
	TenantAliasPrefix = "tenant_"
)

func AliasForSlug(slug string) string {
	return TenantAliasPrefix + slug
}

func SlugFromAlias(alias string) (string, bool) {
	if !strings.HasPrefix(alias, TenantAliasPrefix) || len(alias) == len(TenantAliasPrefix) {
		return "", false
	}
	return strings.TrimPrefix(alias, TenantAliasPrefix), true
}

func IsTenantAlias(alias string) bool {
	_, ok := SlugFromAlias(alias)
	return ok
}
