package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

/*
     Column     |           Type           | Nullable |      Default
----------------+--------------------------+----------+-------------------
 id             | uuid                     | not null |
 name           | character varying(255)   | not null |
 slug           | character varying(50)    | not null |
 admin_email    | character varying(254)   | not null |
 db_host        | character varying(255)   | not null | ''
 db_user        | character varying(255)   | not null | ''
 db_password    | text                     | not null | ''
 db_name        | character varying(255)   | not null | ''
 db_port        | integer                  | not null | 5432
 is_active      | boolean                  | not null | false
 created_at     | timestamp with time zone | not null | now()
Indexes:
    "tenants_pkey" PRIMARY KEY, btree (id)
    "tenants_slug_key" UNIQUE CONSTRAINT, btree (slug)
*/

var SlugPattern = regexp.MustCompile(`^[a-z0-9-]{3,50}$`)

type Tenant struct {
	ID         uuid.UUID `db:"id"`
	Name       string    `db:"name"`
	Slug       string    `db:"slug"`
	AdminEmail string    `db:"admin_email"`
	DBHost     string    `db:"db_host"`
	DBUser     string    `db:"db_user"`
	DBPassword string    `db:"db_password"` // encrypted form only
	DBName     string    `db:"db_name"`
	DBPort     int       `db:"db_port"`
	IsActive   bool      `db:"is_active"`
	CreatedAt  time.Time `db:"created_at"`
}

func (t *Tenant) Alias() string {
	return AliasForSlug(t.Slug)
}

// TenantConnection is the connection part of a Tenant row. Password holds
// the encrypted value.
type TenantConnection struct {
	Host     string
	User     string
	Password string
	DBName   string
	Port     int
}
