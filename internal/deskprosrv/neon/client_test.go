package neon

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type fakeNeon struct {
	mu        sync.Mutex
	calls     []string
	databases map[string]bool
	failOn    string
	delay     time.Duration
}

func (f *fakeNeon) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(correlationHeader))

		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		failOn := f.failOn
		f.mu.Unlock()

		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		if failOn == r.Method+" "+r.URL.Path {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"code":"","message":"database already exists"}`)
			return
		}

		const branches = "/api/v2/projects/proj-1/branches"
		switch {
		case r.Method == http.MethodGet && r.URL.Path == branches:
			io.WriteString(w, `{"branches":[{"id":"br-dev","primary":false},{"id":"br-main","primary":true}]}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/v2/projects/proj-1/endpoints":
			io.WriteString(w, `{"endpoints":[{"type":"read_only","host":"ro.neon.tech"},{"type":"read_write","host":"ep-rw.neon.tech"}]}`)
		case r.Method == http.MethodGet && r.URL.Path == branches+"/br-main/roles/owner/reveal_password":
			io.WriteString(w, `{"password":"pw-123"}`)
		case r.Method == http.MethodPost && r.URL.Path == branches+"/br-main/databases":
			body, _ := io.ReadAll(r.Body)
			name := gjson.GetBytes(body, "database.name").String()
			assert.Equal(t, "owner", gjson.GetBytes(body, "database.owner_name").String())
			f.mu.Lock()
			f.databases[name] = true
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			io.WriteString(w, `{"database":{"id":1,"name":"`+name+`"}}`)
		case r.Method == http.MethodGet && r.URL.Path == branches+"/br-main/databases":
			io.WriteString(w, `{"databases":[{"id":1,"name":"neondb","owner_name":"owner"},{"id":2,"name":"tenant_acme","owner_name":"owner"}]}`)
		case r.Method == http.MethodDelete && r.URL.Path == branches+"/br-main/databases/tenant_acme":
			f.mu.Lock()
			delete(f.databases, "tenant_acme")
			f.mu.Unlock()
			io.WriteString(w, `{"database":{"id":2,"name":"tenant_acme"}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message":"not found"}`)
		}
	})
}

func newTestClient(t *testing.T, f *fakeNeon, timeout time.Duration) *Client {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{
		BaseURL:   srv.URL + "/api/v2",
		APIKey:    "test-key",
		ProjectID: "proj-1",
		RoleName:  "owner",
		Timeout:   timeout,
	})
	require.NoError(t, err)
	return c
}

func TestCreateDatabase(t *testing.T) {
	f := &fakeNeon{databases: map[string]bool{}}
	c := newTestClient(t, f, time.Second)

	creds, err := c.CreateDatabase(context.Background(), "tenant_acme")
	require.NoError(t, err)
	assert.Equal(t, &Credentials{
		Host:         "ep-rw.neon.tech",
		User:         "owner",
		Password:     "pw-123",
		DatabaseName: "tenant_acme",
		Port:         5432,
	}, creds)
	assert.True(t, f.databases["tenant_acme"])
}

func TestDeleteAndListDatabases(t *testing.T) {
	f := &fakeNeon{databases: map[string]bool{"tenant_acme": true}}
	c := newTestClient(t, f, time.Second)

	dbs, err := c.ListDatabases(context.Background())
	require.NoError(t, err)
	require.Len(t, dbs, 2)
	assert.Equal(t, "tenant_acme", dbs[1].Name)
	assert.Equal(t, "owner", dbs[1].OwnerName)

	require.NoError(t, c.DeleteDatabase(context.Background(), "tenant_acme"))
	assert.False(t, f.databases["tenant_acme"])
}

func TestNon2xxIsProviderError(t *testing.T) {
	f := &fakeNeon{databases: map[string]bool{}, failOn: "POST /api/v2/projects/proj-1/branches/br-main/databases"}
	c := newTestClient(t, f, time.Second)

	_, err := c.CreateDatabase(context.Background(), "tenant_acme")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)

	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "create_database", perr.Op)
	assert.Equal(t, http.StatusUnprocessableEntity, perr.StatusCode)
	assert.Contains(t, perr.Error(), "database already exists")
}

func TestTimeoutIsProviderError(t *testing.T) {
	f := &fakeNeon{databases: map[string]bool{}, delay: 200 * time.Millisecond}
	c := newTestClient(t, f, 20*time.Millisecond)

	_, err := c.PrimaryBranchID(context.Background())
	require.Error(t, err)
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "primary_branch", perr.Op)
	assert.Zero(t, perr.StatusCode)
}

func TestNoRetryOnFailure(t *testing.T) {
	f := &fakeNeon{databases: map[string]bool{}, failOn: "DELETE /api/v2/projects/proj-1/branches/br-main/databases/tenant_acme"}
	c := newTestClient(t, f, time.Second)

	err := c.DeleteDatabase(context.Background(), "tenant_acme")
	assert.ErrorIs(t, err, ErrProvider)
	deletes := 0
	for _, call := range f.calls {
		if call == "DELETE /api/v2/projects/proj-1/branches/br-main/databases/tenant_acme" {
			deletes++
		}
	}
	assert.Equal(t, 1, deletes)
}

func TestResolvePath(t *testing.T) {
	path, err := resolvePath(&deleteDatabaseRequest{ProjectID: "p", BranchID: "b", DatabaseName: "tenant_acme"})
	require.NoError(t, err)
	assert.Equal(t, "/projects/p/branches/b/databases/tenant_acme", path)

	_, err = resolvePath(&deleteDatabaseRequest{ProjectID: "p"})
	assert.Error(t, err)
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(Options{ProjectID: "p"})
	assert.Error(t, err)
}
