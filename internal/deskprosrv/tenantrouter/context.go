package tenantrouter

import (
	"context"
	"sync"

	"github.com/softflow/deskpro/internal/common/apperrors"
)

// scope is the per request holder of the current tenant alias. A fresh
// scope is installed for every request, so an alias never outlives the
// request that set it.
type scope struct {
	mu    sync.RWMutex
	alias string
}

type scopeContextKey struct{}

var ErrNoScope = apperrors.New("context carries no tenant scope")

// NewScope returns a child context with an empty scope. Any alias set on a
// parent scope is not visible through the child.
func NewScope(ctx context.Context) context.Context {
	return context.WithValue(ctx, scopeContextKey{}, &scope{})
}

func scopeFromContext(ctx context.Context) *scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(scopeContextKey{}).(*scope)
	return s
}

func SetAlias(ctx context.Context, alias string) error {
	s := scopeFromContext(ctx)
	if s == nil {
		return ErrNoScope
	}
	s.mu.Lock()
	s.alias = alias
	s.mu.Unlock()
	return nil
}

func AliasFromContext(ctx context.Context) (string, bool) {
	s := scopeFromContext(ctx)
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alias, s.alias != ""
}

func ClearAlias(ctx context.Context) {
	if s := scopeFromContext(ctx); s != nil {
		s.mu.Lock()
		s.alias = ""
		s.mu.Unlock()
	}
}

// Acquire installs alias in a new scope derived from ctx. The release
// function clears it and must be called on every exit path.
func Acquire(ctx context.Context, alias string) (context.Context, func()) {
	ctx = NewScope(ctx)
	SetAlias(ctx, alias)
	return ctx, func() { ClearAlias(ctx) }
}

// WithAlias runs fn with alias installed and clears it afterwards, also
// when fn fails or panics.
func WithAlias(ctx context.Context, alias string, fn func(ctx context.Context) error) error {
	ctx, release := Acquire(ctx, alias)
	defer release()
	return fn(ctx)
}
