package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deptexhq/deptex/internal/cache"
	"github.com/deptexhq/deptex/internal/model"
)

const (
	cacheSize = 1024
	cacheTTL  = 60 * time.Second
)

// Client implements Repository against the core API over HTTP/JSON with a
// read-through response cache.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *slog.Logger
	cache      *cache.TTL[string, any]
}

var _ Repository = (*Client)(nil)

// New creates a client targeting the given base URL (e.g.
// "https://core.deptex.dev"). tokens may be nil for unauthenticated
// endpoints like health probes.
func New(baseURL string, tokens TokenSource, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	responses, err := cache.New[string, any](cacheSize, cacheTTL)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		cache:      responses,
	}, nil
}

// Close is a no-op for the HTTP client.
func (c *Client) Close() error { return nil }

// cachedGet reads through the cache: a typed hit is returned as-is, a miss
// calls fetch and stores the whole result under the key.
func cachedGet[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}
	v, err := fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	c.cache.Set(key, v)
	return v, nil
}

// --- Organizations ---

func (c *Client) GetOrganization(ctx context.Context, orgID string) (*model.Organization, error) {
	return cachedGet(ctx, c, "org:"+orgID, func(ctx context.Context) (*model.Organization, error) {
		var org model.Organization
		if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID), nil, &org); err != nil {
			return nil, err
		}
		return &org, nil
	})
}

func (c *Client) ListOrganizations(ctx context.Context) ([]*model.Organization, error) {
	return cachedGet(ctx, c, "orgs:all", func(ctx context.Context) ([]*model.Organization, error) {
		var resp struct {
			Organizations []*model.Organization `json:"organizations"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs", nil, &resp); err != nil {
			return nil, err
		}
		return resp.Organizations, nil
	})
}

// --- Teams ---

func (c *Client) GetTeam(ctx context.Context, teamID string) (*model.Team, error) {
	return cachedGet(ctx, c, "team:"+teamID, func(ctx context.Context) (*model.Team, error) {
		var team model.Team
		if err := c.doJSON(ctx, http.MethodGet, "/v1/teams/"+url.PathEscape(teamID), nil, &team); err != nil {
			return nil, err
		}
		return &team, nil
	})
}

func (c *Client) ListTeams(ctx context.Context, orgID string) ([]*model.Team, error) {
	return cachedGet(ctx, c, "teams:"+orgID, func(ctx context.Context) ([]*model.Team, error) {
		var resp struct {
			Teams []*model.Team `json:"teams"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/teams", nil, &resp); err != nil {
			return nil, err
		}
		return resp.Teams, nil
	})
}

// --- Projects ---

func (c *Client) GetProject(ctx context.Context, projectID string) (*model.Project, error) {
	return cachedGet(ctx, c, "project:"+projectID, func(ctx context.Context) (*model.Project, error) {
		var project model.Project
		if err := c.doJSON(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(projectID), nil, &project); err != nil {
			return nil, err
		}
		return &project, nil
	})
}

func (c *Client) ListProjects(ctx context.Context, teamID string) ([]*model.Project, error) {
	return cachedGet(ctx, c, "projects:"+teamID, func(ctx context.Context) ([]*model.Project, error) {
		var resp struct {
			Projects []*model.Project `json:"projects"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/v1/teams/"+url.PathEscape(teamID)+"/projects", nil, &resp); err != nil {
			return nil, err
		}
		return resp.Projects, nil
	})
}

// --- Dependencies ---

func (c *Client) ListDependencies(ctx context.Context, projectID, version string, f model.DependencyFilter) ([]*model.Dependency, error) {
	q := url.Values{}
	if version != "" {
		q.Set("version", version)
	}
	if len(f.Severity) > 0 {
		q.Set("severity", joinSeverities(f.Severity))
	}
	if len(f.Ecosystem) > 0 {
		ecosystems := make([]string, len(f.Ecosystem))
		for i, e := range f.Ecosystem {
			ecosystems[i] = string(e)
		}
		q.Set("ecosystem", strings.Join(ecosystems, ","))
	}
	if f.Direct != nil {
		q.Set("direct", fmt.Sprintf("%t", *f.Direct))
	}
	if f.Zombie != nil {
		q.Set("zombie", fmt.Sprintf("%t", *f.Zombie))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Sort != "" {
		q.Set("sort", f.Sort)
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", f.Offset))
	}

	key := "deps:" + projectID + ":" + q.Encode()
	return cachedGet(ctx, c, key, func(ctx context.Context) ([]*model.Dependency, error) {
		path := "/v1/projects/" + url.PathEscape(projectID) + "/dependencies"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		var resp struct {
			Dependencies []*model.Dependency `json:"dependencies"`
		}
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Dependencies, nil
	})
}

// --- Vulnerabilities ---

func (c *Client) ListVulnerabilities(ctx context.Context, projectID, version string, f model.VulnerabilityFilter) ([]*model.Vulnerability, error) {
	q := url.Values{}
	if version != "" {
		q.Set("version", version)
	}
	if len(f.Severity) > 0 {
		q.Set("severity", joinSeverities(f.Severity))
	}
	if f.ReachableOnly {
		q.Set("reachable_only", "true")
	}
	if f.KEVOnly {
		q.Set("kev_only", "true")
	}
	if f.Package != "" {
		q.Set("package", f.Package)
	}
	if f.Limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", fmt.Sprintf("%d", f.Offset))
	}

	key := "vulns:" + projectID + ":" + q.Encode()
	return cachedGet(ctx, c, key, func(ctx context.Context) ([]*model.Vulnerability, error) {
		path := "/v1/projects/" + url.PathEscape(projectID) + "/vulnerabilities"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		var resp struct {
			Vulnerabilities []*model.Vulnerability `json:"vulnerabilities"`
		}
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		return resp.Vulnerabilities, nil
	})
}

// --- Graph trees ---

func (c *Client) ProjectTree(ctx context.Context, projectID, version string) (*model.ProjectTree, error) {
	key := "tree:" + projectID + ":" + version
	return cachedGet(ctx, c, key, func(ctx context.Context) (*model.ProjectTree, error) {
		path := "/v1/projects/" + url.PathEscape(projectID) + "/tree"
		if version != "" {
			path += "?version=" + url.QueryEscape(version)
		}
		var tree model.ProjectTree
		if err := c.doJSON(ctx, http.MethodGet, path, nil, &tree); err != nil {
			return nil, err
		}
		return &tree, nil
	})
}

func (c *Client) TeamTree(ctx context.Context, teamID string) (*model.TeamTree, error) {
	return cachedGet(ctx, c, "teamtree:"+teamID, func(ctx context.Context) (*model.TeamTree, error) {
		var tree model.TeamTree
		if err := c.doJSON(ctx, http.MethodGet, "/v1/teams/"+url.PathEscape(teamID)+"/tree", nil, &tree); err != nil {
			return nil, err
		}
		return &tree, nil
	})
}

func (c *Client) OrgTree(ctx context.Context, orgID string) (*model.OrgTree, error) {
	return cachedGet(ctx, c, "orgtree:"+orgID, func(ctx context.Context) (*model.OrgTree, error) {
		var tree model.OrgTree
		if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/tree", nil, &tree); err != nil {
			return nil, err
		}
		return &tree, nil
	})
}

// --- Policy ---

func (c *Client) ListBans(ctx context.Context, orgID string) ([]*model.BannedVersion, error) {
	return cachedGet(ctx, c, "bans:"+orgID, func(ctx context.Context) ([]*model.BannedVersion, error) {
		var resp struct {
			Bans []*model.BannedVersion `json:"bans"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/bans", nil, &resp); err != nil {
			return nil, err
		}
		return resp.Bans, nil
	})
}

func (c *Client) CreateBan(ctx context.Context, req *CreateBanRequest) (*model.BannedVersion, error) {
	var ban model.BannedVersion
	path := "/v1/orgs/" + url.PathEscape(req.OrganizationID) + "/bans"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &ban); err != nil {
		return nil, err
	}
	c.invalidatePolicy(req.OrganizationID)
	return &ban, nil
}

func (c *Client) RemoveBan(ctx context.Context, orgID, banID string) error {
	path := "/v1/orgs/" + url.PathEscape(orgID) + "/bans/" + url.PathEscape(banID)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return err
	}
	c.invalidatePolicy(orgID)
	return nil
}

func (c *Client) ListExceptions(ctx context.Context, orgID string) ([]*model.PolicyException, error) {
	return cachedGet(ctx, c, "exceptions:"+orgID, func(ctx context.Context) ([]*model.PolicyException, error) {
		var resp struct {
			Exceptions []*model.PolicyException `json:"exceptions"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/exceptions", nil, &resp); err != nil {
			return nil, err
		}
		return resp.Exceptions, nil
	})
}

func (c *Client) CreateException(ctx context.Context, req *CreateExceptionRequest) (*model.PolicyException, error) {
	var exception model.PolicyException
	path := "/v1/orgs/" + url.PathEscape(req.OrganizationID) + "/exceptions"
	if err := c.doJSON(ctx, http.MethodPost, path, req, &exception); err != nil {
		return nil, err
	}
	c.cache.Invalidate("exceptions:" + req.OrganizationID)
	return &exception, nil
}

func (c *Client) ListBumpPRs(ctx context.Context, orgID string) ([]*model.BumpPR, error) {
	return cachedGet(ctx, c, "bumpprs:"+orgID, func(ctx context.Context) ([]*model.BumpPR, error) {
		var resp struct {
			BumpPRs []*model.BumpPR `json:"bump_prs"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/bump-prs", nil, &resp); err != nil {
			return nil, err
		}
		return resp.BumpPRs, nil
	})
}

// invalidatePolicy drops every cached policy record for an org. Ban
// mutations can open bump PRs, so those fall too.
func (c *Client) invalidatePolicy(orgID string) {
	c.cache.Invalidate("bans:" + orgID)
	c.cache.Invalidate("bumpprs:" + orgID)
}

// --- Composite ---

// FetchProjectView loads the project screen in one call: the project
// itself, then its org, dependency list, and policy records concurrently.
// Only the project fetch is fatal; the rest degrade into the Degraded list
// so a policy outage never blanks the dependency view.
func (c *Client) FetchProjectView(ctx context.Context, projectID, version string) (*ProjectView, error) {
	project, err := c.GetProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetching project: %w", err)
	}

	view := &ProjectView{Project: project}
	var mu sync.Mutex
	degrade := func(concern string, err error) {
		c.logger.Debug("project view fetch degraded", "project", projectID, "concern", concern, "err", err)
		mu.Lock()
		view.Degraded = append(view.Degraded, concern)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		org, err := c.GetOrganization(gctx, project.OrganizationID)
		if err != nil {
			degrade("organization", err)
			return nil
		}
		mu.Lock()
		view.Organization = org
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		deps, err := c.ListDependencies(gctx, projectID, version, model.DependencyFilter{})
		if err != nil {
			degrade("dependencies", err)
			return nil
		}
		mu.Lock()
		view.Dependencies = deps
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		bans, err := c.ListBans(gctx, project.OrganizationID)
		if err != nil {
			degrade("policy", err)
			return nil
		}
		mu.Lock()
		view.Bans = bans
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	sort.Strings(view.Degraded)
	return view, nil
}

// --- Prefetch ---

// PrefetchProject warms the caches behind a project scope. Best-effort:
// failures are logged at debug and dropped.
func (c *Client) PrefetchProject(ctx context.Context, projectID, version string) {
	if _, err := c.ProjectTree(ctx, projectID, version); err != nil {
		c.logger.Debug("prefetch tree failed", "project", projectID, "err", err)
	}
	if _, err := c.ListDependencies(ctx, projectID, version, model.DependencyFilter{}); err != nil {
		c.logger.Debug("prefetch dependencies failed", "project", projectID, "err", err)
	}
}

// PrefetchOrganization warms an org scope and its policy records.
func (c *Client) PrefetchOrganization(ctx context.Context, orgID string) {
	if _, err := c.OrgTree(ctx, orgID); err != nil {
		c.logger.Debug("prefetch org tree failed", "org", orgID, "err", err)
	}
	if _, err := c.ListBans(ctx, orgID); err != nil {
		c.logger.Debug("prefetch bans failed", "org", orgID, "err", err)
	}
}

// --- Health ---

// Health reports the core API's status string, "ok" when reachable.
func (c *Client) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp)
	return resp.Status, err
}

// --- transport ---

// APIError is a non-2xx answer from the core API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string { return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message) }

// IsNotFound reports whether err is a core-API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func joinSeverities(severities []model.Severity) string {
	parts := make([]string, len(severities))
	for i, s := range severities {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// doJSON round-trips one JSON request against the core API. A nil result
// discards the response body.
func (c *Client) doJSON(ctx context.Context, method, path string, body, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	return decodeResponse(resp, result)
}

// newRequest builds a core-API request, attaching the JSON body and
// whatever credential the token source currently holds.
func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolving token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// decodeResponse consumes the body, mapping error statuses to *APIError.
// 204s and nil results decode nothing.
func decodeResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return apiErrorFrom(resp.StatusCode, data)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// apiErrorFrom prefers the {"error": ...} envelope, falling back to the raw
// body for proxies that answer in plain text.
func apiErrorFrom(status int, body []byte) *APIError {
	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != "" {
		return &APIError{StatusCode: status, Message: envelope.Error}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}
