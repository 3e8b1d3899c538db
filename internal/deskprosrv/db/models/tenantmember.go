package models

import (
	"time"

	"github.com/google/uuid"
)

/*
   Column    |           Type           | Nullable | Default
-------------+--------------------------+----------+---------
 id          | uuid                     | not null |
 tenant_id   | uuid                     | not null |
 email       | character varying(254)   | not null |
 full_name   | character varying(255)   | not null | ''
 role        | character varying(20)    | not null | 'agent'
 created_at  | timestamp with time zone | not null | now()
Indexes:
    "tenant_members_pkey" PRIMARY KEY, btree (id)
    "tenant_members_tenant_id_email_key" UNIQUE CONSTRAINT, btree (tenant_id, email)
Foreign-key constraints:
    "tenant_members_tenant_id_fkey" FOREIGN KEY (tenant_id) REFERENCES tenants(id) ON DELETE CASCADE
*/

type MemberRole string

const (
	MemberRoleAgent MemberRole = "agent"
	MemberRoleAdmin MemberRole = "admin"
)

func (r MemberRole) Valid() bool {
	return r == MemberRoleAgent || r == MemberRoleAdmin
}

// TenantMember is the control plane directory entry for a user of a
// tenant. It never carries credentials.
type TenantMember struct {
	ID        uuid.UUID  `db:"id"`
	TenantID  uuid.UUID  `db:"tenant_id"`
	Email     string     `db:"email"`
	FullName  string     `db:"full_name"`
	Role      MemberRole `db:"role"`
	CreatedAt time.Time  `db:"created_at"`
}
