package neon

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// requester describes one Management API call. The path template uses
// {json_field} placeholders filled from the request struct.
type requester interface {
	RequestMethod() (string, string)
}

type listBranchesRequest struct {
	ProjectID string `json:"project_id"`
}

func (r *listBranchesRequest) RequestMethod() (string, string) {
	return http.MethodGet, "/projects/{project_id}/branches"
}

type listEndpointsRequest struct {
	ProjectID string `json:"project_id"`
}

func (r *listEndpointsRequest) RequestMethod() (string, string) {
	return http.MethodGet, "/projects/{project_id}/endpoints"
}

type revealPasswordRequest struct {
	ProjectID string `json:"project_id"`
	BranchID  string `json:"branch_id"`
	RoleName  string `json:"role_name"`
}

func (r *revealPasswordRequest) RequestMethod() (string, string) {
	return http.MethodGet, "/projects/{project_id}/branches/{branch_id}/roles/{role_name}/reveal_password"
}

type createDatabaseRequest struct {
	ProjectID string `json:"project_id"`
	BranchID  string `json:"branch_id"`
}

func (r *createDatabaseRequest) RequestMethod() (string, string) {
	return http.MethodPost, "/projects/{project_id}/branches/{branch_id}/databases"
}

type listDatabasesRequest struct {
	ProjectID string `json:"project_id"`
	BranchID  string `json:"branch_id"`
}

func (r *listDatabasesRequest) RequestMethod() (string, string) {
	return http.MethodGet, "/projects/{project_id}/branches/{branch_id}/databases"
}

type deleteDatabaseRequest struct {
	ProjectID    string `json:"project_id"`
	BranchID     string `json:"branch_id"`
	DatabaseName string `json:"database_name"`
}

func (r *deleteDatabaseRequest) RequestMethod() (string, string) {
	return http.MethodDelete, "/projects/{project_id}/branches/{branch_id}/databases/{database_name}"
}

var placeholder = regexp.MustCompile(`\{([^}]+)\}`)

func resolvePath(req requester) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", err
	}
	_, template := req.RequestMethod()
	missing := false
	path := placeholder.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := fields[key].(string)
		if !ok || value == "" {
			missing = true
			return match
		}
		return url.PathEscape(value)
	})
	if missing || strings.Contains(path, "//") {
		return "", errors.Errorf("unable to resolve request path %s", template)
	}
	return path, nil
}
