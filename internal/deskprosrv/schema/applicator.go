// Package schema applies the embedded SQL migrations to the control plane
// and tenant databases.
package schema

import (
	"context"
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
)

//go:embed migrations
var migrationsFS embed.FS

const (
	DefaultTable = "schema_migrations"
	// key for pg_advisory_xact_lock; serializes concurrent appliers on one database
	advisoryLockKey int64 = 0x6465736b70726f
)

var (
	ErrSchema         = apperrors.New("schema migration failed")
	ErrNoMigrationSet = ErrSchema.New("no migration set applies to database")
)

type migrationSet struct {
	dir      string
	entities []models.Entity
}

var migrationSets = []migrationSet{
	{dir: "migrations/controlplane", entities: []models.Entity{models.EntityTenant, models.EntityTenantMember}},
	{dir: "migrations/tenant", entities: []models.Entity{models.EntityTenantUser, models.EntityTicket, models.EntityTicketMessage}},
}

// ConnSource is satisfied by *tenantrouter.Router.
type ConnSource interface {
	ConnForAlias(ctx context.Context, alias string) (*sql.DB, error)
	AllowMigrate(alias string, entity models.Entity) bool
}

type Applicator interface {
	Apply(ctx context.Context, alias string) error
}

type applicator struct {
	conns ConnSource
	table string
}

func NewApplicator(conns ConnSource) Applicator {
	return &applicator{conns: conns, table: DefaultTable}
}

// Apply brings the database behind alias up to date. Every file is applied
// at most once, in its own transaction, so repeated and concurrent calls
// converge on the same schema.
func (a *applicator) Apply(ctx context.Context, alias string) error {
	set, ok := a.setFor(alias)
	if !ok {
		return ErrNoMigrationSet.Msg("no migration set applies to " + alias)
	}
	files, err := fs.Glob(migrationsFS, path.Join(set.dir, "*.sql"))
	if err != nil {
		return ErrSchema.Err(err)
	}
	sort.Strings(files)

	db, err := a.conns.ConnForAlias(ctx, alias)
	if err != nil {
		return err
	}
	logger := log.Ctx(ctx).With().Str("alias", alias).Logger()
	table := pq.QuoteIdentifier(a.table)
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+table+` (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		logger.Error().Err(err).Msg("failed to create migrations table")
		return ErrSchema.Err(err)
	}

	applied := 0
	for _, file := range files {
		name := path.Base(file)
		done, err := a.applyFile(ctx, db, table, file, name)
		if err != nil {
			logger.Error().Err(err).Str("file", name).Msg("migration failed")
			return ErrSchema.MsgErr("migration "+name+" failed", err)
		}
		if done {
			applied++
			logger.Info().Str("file", name).Msg("migration applied")
		}
	}
	logger.Info().Int("applied", applied).Int("total", len(files)).Msg("schema up to date")
	return nil
}

func (a *applicator) applyFile(ctx context.Context, db *sql.DB, table, file, name string) (bool, error) {
	body, err := migrationsFS.ReadFile(file)
	if err != nil {
		return false, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryLockKey); err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE filename = $1)`, name).Scan(&exists); err != nil {
		return false, err
	}
	if exists {
		return false, tx.Commit()
	}
	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+table+` (filename) VALUES ($1)`, name); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (a *applicator) setFor(alias string) (migrationSet, bool) {
	for _, set := range migrationSets {
		allowed := true
		for _, e := range set.entities {
			if !a.conns.AllowMigrate(alias, e) {
				allowed = false
				break
			}
		}
		if allowed {
			return set, true
		}
	}
	return migrationSet{}, false
}

// Files lists the migration files that apply to alias, for diagnostics.
func Files(conns ConnSource, alias string) ([]string, error) {
	a := &applicator{conns: conns, table: DefaultTable}
	set, ok := a.setFor(alias)
	if !ok {
		return nil, ErrNoMigrationSet
	}
	files, err := fs.Glob(migrationsFS, path.Join(set.dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	for i := range files {
		files[i] = path.Base(files[i])
	}
	return files, nil
}
