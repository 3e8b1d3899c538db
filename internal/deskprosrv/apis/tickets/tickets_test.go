package tickets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/softflow/deskpro/internal/common/apperrors"
	"github.com/softflow/deskpro/internal/deskprosrv/auth"
	"github.com/softflow/deskpro/internal/deskprosrv/db/dberror"
	"github.com/softflow/deskpro/internal/deskprosrv/db/models"
	"github.com/softflow/deskpro/internal/deskprosrv/tenantrouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps tickets per tenant alias, read from the request scope.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	tickets  map[string]map[int64]*models.Ticket
	messages map[int64][]*models.TicketMessage
}

func newMemStore() *memStore {
	return &memStore{tickets: map[string]map[int64]*models.Ticket{}, messages: map[int64][]*models.TicketMessage{}}
}

func (s *memStore) alias(ctx context.Context) (string, apperrors.Error) {
	alias, ok := tenantrouter.AliasFromContext(ctx)
	if !ok {
		return "", tenantrouter.ErrRoutingConfiguration.Msg("no tenant database selected")
	}
	return alias, nil
}

func (s *memStore) CreateTicket(ctx context.Context, t *models.Ticket) apperrors.Error {
	alias, err := s.alias(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt, t.UpdatedAt = time.Now(), time.Now()
	t.DBAlias = alias
	if s.tickets[alias] == nil {
		s.tickets[alias] = map[int64]*models.Ticket{}
	}
	cp := *t
	s.tickets[alias][t.ID] = &cp
	return nil
}

func (s *memStore) GetTicket(ctx context.Context, id int64) (*models.Ticket, apperrors.Error) {
	alias, err := s.alias(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[alias][id]
	if !ok {
		return nil, dberror.ErrNotFound.Msg("ticket not found")
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) ListTickets(ctx context.Context, filter models.TicketFilter) ([]*models.Ticket, apperrors.Error) {
	alias, err := s.alias(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*models.Ticket{}
	for id := int64(1); id <= s.nextID; id++ {
		t, ok := s.tickets[alias][id]
		if !ok || (filter.Status != "" && t.Status != filter.Status) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memStore) UpdateTicket(ctx context.Context, t *models.Ticket) apperrors.Error {
	alias, err := s.alias(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[alias][t.ID]; !ok {
		return dberror.ErrNotFound.Msg("ticket not found")
	}
	t.UpdatedAt = time.Now()
	cp := *t
	s.tickets[alias][t.ID] = &cp
	return nil
}

func (s *memStore) AddTicketMessage(ctx context.Context, ticket *models.Ticket, m *models.TicketMessage) apperrors.Error {
	alias, err := s.alias(ctx)
	if err != nil {
		return err
	}
	if ticket.DBAlias != alias {
		return tenantrouter.ErrCrossDatabaseRelation.Msg("cross database")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = uuid.New()
	m.TicketID = ticket.ID
	m.Timestamp = time.Now()
	s.messages[ticket.ID] = append(s.messages[ticket.ID], m)
	return nil
}

func (s *memStore) ListTicketMessages(ctx context.Context, ticket *models.Ticket) ([]*models.TicketMessage, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[ticket.ID], nil
}

// asTenant mimics the tenant gate for slug.
func asTenant(slug string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, release := tenantrouter.Acquire(r.Context(), models.AliasForSlug(slug))
		defer release()
		ctx = auth.WithClaims(ctx, &auth.Claims{TenantSlug: slug, Email: "agent@" + slug + ".test", FullName: "Agent " + slug})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func call(t *testing.T, h http.Handler, method, path, body string, out any) int {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if out != nil && rr.Code < 300 {
		require.NoError(t, jsoniter.Unmarshal(rr.Body.Bytes(), out), rr.Body.String())
	}
	return rr.Code
}

func TestTicketLifecycle(t *testing.T) {
	store := newMemStore()
	h := asTenant("acme", Router(&Handler{Store: store}))

	var created TicketRsp
	code := call(t, h, http.MethodPost, "/", `{"subject":"Printer on fire","customerEmail":"Bob@Example.com","tags":["hw"],"message":"help"}`, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "open", created.Status)
	assert.Equal(t, "medium", created.Priority)
	assert.Equal(t, "email", created.Channel)
	assert.Equal(t, "bob@example.com", created.CustomerEmail)
	require.Len(t, created.Messages, 1)
	assert.Equal(t, "bob@example.com", created.Messages[0].Sender)

	var msg MessageRsp
	code = call(t, h, http.MethodPost, "/1/messages", `{"body":"on it"}`, &msg)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Agent acme", msg.Sender)

	var updated TicketRsp
	code = call(t, h, http.MethodPatch, "/1", `{"status":"resolved","assignee":"ada"}`, &updated)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "resolved", updated.Status)
	assert.Equal(t, "ada", updated.Assignee)
	assert.Equal(t, []string{"hw"}, updated.Tags)

	var got TicketRsp
	code = call(t, h, http.MethodGet, "/1", "", &got)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "resolved", got.Status)
	assert.Len(t, got.Messages, 2)

	var list []TicketRsp
	code = call(t, h, http.MethodGet, "/?status=resolved", "", &list)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 1)
}

func TestTicketsAreIsolatedPerTenant(t *testing.T) {
	store := newMemStore()
	acme := asTenant("acme", Router(&Handler{Store: store}))
	globex := asTenant("globex", Router(&Handler{Store: store}))

	require.Equal(t, http.StatusCreated, call(t, acme, http.MethodPost, "/", `{"subject":"acme only"}`, nil))

	assert.Equal(t, http.StatusNotFound, call(t, globex, http.MethodGet, "/1", "", nil))
	var list []TicketRsp
	require.Equal(t, http.StatusOK, call(t, globex, http.MethodGet, "/", "", &list))
	assert.Empty(t, list)
}

func TestTicketValidation(t *testing.T) {
	h := asTenant("acme", Router(&Handler{Store: newMemStore()}))
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"missing subject", http.MethodPost, "/", `{"customerName":"Bob"}`, http.StatusBadRequest},
		{"bad priority", http.MethodPost, "/", `{"subject":"x","priority":"whenever"}`, http.StatusBadRequest},
		{"bad email", http.MethodPost, "/", `{"subject":"x","customerEmail":"nope"}`, http.StatusBadRequest},
		{"bad id", http.MethodGet, "/abc", "", http.StatusBadRequest},
		{"unknown ticket", http.MethodGet, "/42", "", http.StatusNotFound},
		{"bad status", http.MethodPatch, "/42", `{"status":"done"}`, http.StatusBadRequest},
		{"empty message", http.MethodPost, "/42/messages", `{"body":""}`, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/?limit=-1", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, call(t, h, tt.method, tt.path, tt.body, nil))
		})
	}
}

func TestTicketsWithoutTenantScopeFail(t *testing.T) {
	h := Router(&Handler{Store: newMemStore()})
	assert.Equal(t, http.StatusInternalServerError, call(t, h, http.MethodGet, "/", "", nil))
}
