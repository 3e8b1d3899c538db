// Package neon is a client for the Neon Management API v2, limited to the
// calls needed to give each tenant its own database on a shared branch.
package neon

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/softflow/deskpro/internal/deskprosrv/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	DefaultPort = 5432

	correlationHeader = "X-Request-Id"
	maxErrorBody      = 512
)

// Credentials are the connection parameters of a newly created database.
type Credentials struct {
	Host         string
	User         string
	Password     string
	DatabaseName string
	Port         int
}

type Database struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OwnerName string    `json:"owner_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Provider is the subset of the managed database API used by provisioning.
type Provider interface {
	CreateDatabase(ctx context.Context, name string) (*Credentials, error)
	DeleteDatabase(ctx context.Context, name string) error
	ListDatabases(ctx context.Context) ([]Database, error)
}

type Options struct {
	BaseURL   string
	APIKey    string
	ProjectID string
	RoleName  string
	Timeout   time.Duration
	// Transport overrides the HTTP transport, for tests.
	Transport http.RoundTripper
}

type Client struct {
	rc        *resty.Client
	projectID string
	roleName  string
}

var _ Provider = (*Client)(nil)

func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" || opts.ProjectID == "" {
		return nil, errors.New("neon: api key and project id are required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultNeonBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = config.DefaultNeonTimeout
	}
	if opts.RoleName == "" {
		opts.RoleName = "neondb_owner"
	}
	rc := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetAuthToken(opts.APIKey).
		SetHeader("Accept", "application/json")
	if opts.Transport != nil {
		rc.SetTransport(opts.Transport)
	}
	return &Client{
		rc:        rc,
		projectID: opts.ProjectID,
		roleName:  opts.RoleName,
	}, nil
}

func NewClientFromConfig(c *config.ConfigParam) (*Client, error) {
	return NewClient(Options{
		BaseURL:   c.Neon.BaseURL,
		APIKey:    c.Neon.APIKey,
		ProjectID: c.Neon.ProjectID,
		RoleName:  c.Neon.RoleName,
		Timeout:   c.NeonTimeout(),
	})
}

func (c *Client) RoleName() string {
	return c.roleName
}

// do executes one call and returns the parsed body. Calls are never
// retried here; callers decide what to do with a failure.
func (c *Client) do(ctx context.Context, op string, req requester, body []byte) (gjson.Result, error) {
	method, _ := req.RequestMethod()
	path, err := resolvePath(req)
	if err != nil {
		return gjson.Result{}, &ProviderError{Op: op, Err: err}
	}
	id, _ := gonanoid.New()
	r := c.rc.R().
		SetContext(ctx).
		SetHeader(correlationHeader, id)
	if body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	logger := log.Ctx(ctx).With().Str("neon_op", op).Str("neon_request_id", id).Logger()
	start := time.Now()
	rsp, err := r.Execute(method, path)
	if err != nil {
		logger.Error().Err(err).Msg("neon call failed")
		return gjson.Result{}, &ProviderError{Op: op, Err: err}
	}
	logger.Debug().Int("status", rsp.StatusCode()).Dur("elapsed", time.Since(start)).Msg("neon call")

	raw := rsp.Body()
	if !rsp.IsSuccess() {
		msg := gjson.GetBytes(raw, "message").String()
		if msg == "" {
			msg = string(raw)
			if len(msg) > maxErrorBody {
				msg = msg[:maxErrorBody]
			}
		}
		logger.Error().Int("status", rsp.StatusCode()).Str("message", msg).Msg("neon call rejected")
		return gjson.Result{}, &ProviderError{Op: op, StatusCode: rsp.StatusCode(), Err: errors.New(msg)}
	}
	if len(raw) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, &ProviderError{Op: op, StatusCode: rsp.StatusCode(), Err: errors.New("invalid JSON in response")}
	}
	return gjson.ParseBytes(raw), nil
}

func (c *Client) PrimaryBranchID(ctx context.Context) (string, error) {
	const op = "primary_branch"
	res, err := c.do(ctx, op, &listBranchesRequest{ProjectID: c.projectID}, nil)
	if err != nil {
		return "", err
	}
	id := res.Get(`branches.#(primary==true).id`).String()
	if id == "" {
		id = res.Get(`branches.#(default==true).id`).String()
	}
	if id == "" {
		return "", &ProviderError{Op: op, Err: errors.New("project has no primary branch")}
	}
	return id, nil
}

func (c *Client) ReadWriteHost(ctx context.Context) (string, error) {
	const op = "read_write_host"
	res, err := c.do(ctx, op, &listEndpointsRequest{ProjectID: c.projectID}, nil)
	if err != nil {
		return "", err
	}
	host := res.Get(`endpoints.#(type=="read_write").host`).String()
	if host == "" {
		return "", &ProviderError{Op: op, Err: errors.New("project has no read_write endpoint")}
	}
	return host, nil
}

func (c *Client) RevealPassword(ctx context.Context, branchID string) (string, error) {
	const op = "reveal_password"
	res, err := c.do(ctx, op, &revealPasswordRequest{
		ProjectID: c.projectID,
		BranchID:  branchID,
		RoleName:  c.roleName,
	}, nil)
	if err != nil {
		return "", err
	}
	password := res.Get("password").String()
	if password == "" {
		return "", &ProviderError{Op: op, Err: errors.New("empty password in response")}
	}
	return password, nil
}

// CreateDatabase creates name on the primary branch, owned by the shared
// role, and returns the parameters needed to connect to it.
func (c *Client) CreateDatabase(ctx context.Context, name string) (*Credentials, error) {
	const op = "create_database"
	branchID, err := c.PrimaryBranchID(ctx)
	if err != nil {
		return nil, err
	}
	body, err := sjson.SetBytes(nil, "database.name", name)
	if err == nil {
		body, err = sjson.SetBytes(body, "database.owner_name", c.roleName)
	}
	if err != nil {
		return nil, &ProviderError{Op: op, Err: errors.Wrap(err, "build request body")}
	}
	if _, err := c.do(ctx, op, &createDatabaseRequest{ProjectID: c.projectID, BranchID: branchID}, body); err != nil {
		return nil, err
	}
	host, err := c.ReadWriteHost(ctx)
	if err != nil {
		return nil, err
	}
	password, err := c.RevealPassword(ctx, branchID)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Info().Str("database", name).Str("host", host).Msg("neon database created")
	return &Credentials{
		Host:         host,
		User:         c.roleName,
		Password:     password,
		DatabaseName: name,
		Port:         DefaultPort,
	}, nil
}

func (c *Client) DeleteDatabase(ctx context.Context, name string) error {
	branchID, err := c.PrimaryBranchID(ctx)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "delete_database", &deleteDatabaseRequest{
		ProjectID:    c.projectID,
		BranchID:     branchID,
		DatabaseName: name,
	}, nil)
	if err != nil {
		return err
	}
	log.Ctx(ctx).Info().Str("database", name).Msg("neon database deleted")
	return nil
}

func (c *Client) ListDatabases(ctx context.Context) ([]Database, error) {
	const op = "list_databases"
	branchID, err := c.PrimaryBranchID(ctx)
	if err != nil {
		return nil, err
	}
	res, err := c.do(ctx, op, &listDatabasesRequest{ProjectID: c.projectID, BranchID: branchID}, nil)
	if err != nil {
		return nil, err
	}
	raw := res.Get("databases").Raw
	if raw == "" {
		return nil, nil
	}
	var dbs []Database
	if err := json.Unmarshal([]byte(raw), &dbs); err != nil {
		return nil, &ProviderError{Op: op, Err: errors.Wrap(err, "decode databases")}
	}
	return dbs, nil
}
