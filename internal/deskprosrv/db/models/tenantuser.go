package models

import (
	"time"

	"github.com/google/uuid"
)

/*
    Column     |           Type           | Nullable | Default
---------------+--------------------------+----------+---------
 id            | uuid                     | not null |
 email         | character varying(254)   | not null |
 full_name     | character varying(255)   | not null | ''
 tenant_slug   | character varying(50)    | not null | ''
 password_hash | text                     | not null |
 is_admin      | boolean                  | not null | false
 is_active     | boolean                  | not null | true
 date_joined   | timestamp with time zone | not null | now()
Indexes:
    "tenant_users_pkey" PRIMARY KEY, btree (id)
    "tenant_users_email_key" UNIQUE CONSTRAINT, btree (email)
*/

// TenantUser is an agent account stored in a tenant database.
type TenantUser struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	FullName     string    `db:"full_name"`
	TenantSlug   string    `db:"tenant_slug"`
	PasswordHash string    `db:"password_hash"`
	IsAdmin      bool      `db:"is_admin"`
	IsActive     bool      `db:"is_active"`
	DateJoined   time.Time `db:"date_joined"`
}
