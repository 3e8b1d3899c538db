// Package dbmanager keeps one database/sql pool per database alias.
package dbmanager

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/deskprosrv/db/config"
)

// Opener opens a pool for a DSN. Tests replace it to hand out sqlmock
// handles.
type Opener func(dsn string) (*sql.DB, error)

func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

type pool struct {
	cfg config.ConnConfig
	db  *sql.DB
}

// Pools caches open pools by alias. A pool is opened on first use and
// reopened if the alias is later requested with different settings.
type Pools struct {
	mu    sync.Mutex
	pools map[string]*pool
	open  Opener
}

type Option func(*Pools)

func WithOpener(o Opener) Option {
	return func(p *Pools) {
		p.open = o
	}
}

func NewPools(opts ...Option) *Pools {
	p := &Pools{
		pools: make(map[string]*pool),
		open:  OpenPostgres,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pools) Get(ctx context.Context, alias string, cfg config.ConnConfig) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.pools[alias]; ok {
		if existing.cfg == cfg {
			return existing.db, nil
		}
		log.Ctx(ctx).Info().Str("alias", alias).Msg("connection settings changed, reopening pool")
		existing.db.Close()
		delete(p.pools, alias)
	}
	db, err := p.open(cfg.DSN())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("alias", alias).Str("db", cfg.String()).Msg("failed to open db")
		return nil, err
	}
	p.pools[alias] = &pool{cfg: cfg, db: db}
	return db, nil
}

func (p *Pools) Close(alias string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.pools[alias]; ok {
		existing.db.Close()
		delete(p.pools, alias)
	}
}

func (p *Pools) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for alias, existing := range p.pools {
		existing.db.Close()
		delete(p.pools, alias)
	}
}

func (p *Pools) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pools)
}
