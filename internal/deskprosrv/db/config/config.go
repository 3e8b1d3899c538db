// Package config builds connection settings for the control plane and
// tenant databases.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"

	srvconfig "github.com/softflow/deskpro/internal/deskprosrv/config"
)

const (
	DefaultPort             = 5432
	TenantSSLMode           = "require"
	DefaultLockTimeout      = "5s"
	DefaultStatementTimeout = "30s"
)

// ConnConfig is everything needed to open a pool to one database. Password
// is always the decrypted value.
type ConnConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns a URL connection string. Unknown query parameters are sent by
// pgx as session settings, which is how every pooled connection gets its
// lock and statement timeouts.
func (c ConnConfig) DSN() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	q.Set("lock_timeout", DefaultLockTimeout)
	q.Set("statement_timeout", DefaultStatementTimeout)
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(port)),
		Path:     "/" + c.DBName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// String is safe to log.
func (c ConnConfig) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.DBName)
}

func fromParam(p srvconfig.DBConnParam) ConnConfig {
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	return ConnConfig{
		Host:     p.Host,
		Port:     port,
		User:     p.User,
		Password: p.Password,
		DBName:   p.DBName,
		SSLMode:  p.SSLMode,
	}
}

func ControlPlane() ConnConfig {
	return fromParam(srvconfig.Config().ControlDB)
}

// DevTenant is the single database shared by every tenant when
// tenant_dev_mode is enabled.
func DevTenant() ConnConfig {
	c := fromParam(srvconfig.Config().DevTenantDB)
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	return c
}
