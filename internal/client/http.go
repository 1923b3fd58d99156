package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/deptexhq/deptex/internal/canvas"
	"github.com/deptexhq/deptex/internal/depscore"
	"github.com/deptexhq/deptex/internal/model"
	"github.com/deptexhq/deptex/internal/upstream"
)

// HTTPClient implements GatewayClient using the gateway's HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	user       string
	httpClient *http.Client
}

var _ GatewayClient = (*HTTPClient)(nil)

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request; when user is non-empty, it is sent as the
// acting identity for views, preferences, and audit attribution.
func NewHTTPClient(baseURL, token, user string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		user:       user,
		httpClient: &http.Client{},
	}
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Hierarchy ---

func (c *HTTPClient) ListOrganizations(ctx context.Context) ([]*model.Organization, error) {
	var resp struct {
		Organizations []*model.Organization `json:"organizations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Organizations, nil
}

func (c *HTTPClient) GetOrganization(ctx context.Context, id string) (*model.Organization, error) {
	var org model.Organization
	if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(id), nil, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *HTTPClient) ListTeams(ctx context.Context, orgID string) ([]*model.Team, error) {
	var resp struct {
		Teams []*model.Team `json:"teams"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/teams", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

func (c *HTTPClient) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	var team model.Team
	if err := c.doJSON(ctx, http.MethodGet, "/v1/teams/"+url.PathEscape(id), nil, &team); err != nil {
		return nil, err
	}
	return &team, nil
}

func (c *HTTPClient) ListProjects(ctx context.Context, teamID string) ([]*model.Project, error) {
	var resp struct {
		Projects []*model.Project `json:"projects"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/teams/"+url.PathEscape(teamID)+"/projects", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (c *HTTPClient) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var project model.Project
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

func (c *HTTPClient) GetProjectView(ctx context.Context, id string) (*upstream.ProjectView, error) {
	var view upstream.ProjectView
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(id)+"?full=true", nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// --- Graph ---

// graphPath maps a scope string to its graph endpoint.
func graphPath(scope string) (string, error) {
	kind, id, ok := strings.Cut(scope, ":")
	if !ok || id == "" {
		return "", fmt.Errorf("scope must be project:<id>, team:<id>, or org:<id>: %q", scope)
	}
	switch kind {
	case "project", "package":
		return "/v1/projects/" + url.PathEscape(id) + "/graph", nil
	case "team":
		return "/v1/teams/" + url.PathEscape(id) + "/graph", nil
	case "org":
		return "/v1/orgs/" + url.PathEscape(id) + "/graph", nil
	default:
		return "", fmt.Errorf("unknown scope kind: %s", kind)
	}
}

func (r *GraphRequest) query() url.Values {
	q := url.Values{}
	if r.Version != "" {
		q.Set("version", r.Version)
	}
	if r.ReachableOnly {
		q.Set("reachable_only", "true")
	}
	return q
}

func (c *HTTPClient) GetGraph(ctx context.Context, req *GraphRequest) (*GraphResponse, error) {
	path, err := graphPath(req.Scope)
	if err != nil {
		return nil, err
	}
	if q := req.query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp GraphResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExportGraph fetches a rendered graph in the given format ("png" or
// "html") and returns the raw bytes.
func (c *HTTPClient) ExportGraph(ctx context.Context, req *GraphRequest, format string) ([]byte, error) {
	path, err := graphPath(req.Scope)
	if err != nil {
		return nil, err
	}
	q := req.query()
	q.Set("format", format)
	return c.doRaw(ctx, path+"?"+q.Encode())
}

func (c *HTTPClient) Score(ctx context.Context, scoreCtx depscore.Context) (*ScoreResponse, error) {
	var resp ScoreResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/score", scoreCtx, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Inventory ---

func (c *HTTPClient) ListDependencies(ctx context.Context, req *ListDependenciesRequest) (*ListDependenciesResponse, error) {
	q := url.Values{}
	if req.Version != "" {
		q.Set("version", req.Version)
	}
	if len(req.Ecosystem) > 0 {
		q.Set("ecosystem", strings.Join(req.Ecosystem, ","))
	}
	if len(req.Severity) > 0 {
		q.Set("severity", strings.Join(req.Severity, ","))
	}
	if req.Direct != nil {
		q.Set("direct", strconv.FormatBool(*req.Direct))
	}
	if req.Zombie != nil {
		q.Set("zombie", strconv.FormatBool(*req.Zombie))
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if req.Sort != "" {
		q.Set("sort", req.Sort)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	path := "/v1/projects/" + url.PathEscape(req.ProjectID) + "/dependencies"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp ListDependenciesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListVulnerabilities(ctx context.Context, req *ListVulnerabilitiesRequest) (*ListVulnerabilitiesResponse, error) {
	q := url.Values{}
	if req.Version != "" {
		q.Set("version", req.Version)
	}
	if len(req.Severity) > 0 {
		q.Set("severity", strings.Join(req.Severity, ","))
	}
	if req.ReachableOnly {
		q.Set("reachable_only", "true")
	}
	if req.KEVOnly {
		q.Set("kev_only", "true")
	}
	if req.Package != "" {
		q.Set("package", req.Package)
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}

	path := "/v1/projects/" + url.PathEscape(req.ProjectID) + "/vulnerabilities"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp ListVulnerabilitiesResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Policy ---

func (c *HTTPClient) ListBans(ctx context.Context, orgID string) ([]*model.BannedVersion, error) {
	var resp struct {
		Bans []*model.BannedVersion `json:"bans"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/bans", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Bans, nil
}

func (c *HTTPClient) CreateBan(ctx context.Context, orgID string, req *CreateBanRequest) (*model.BannedVersion, error) {
	var ban model.BannedVersion
	if err := c.doJSON(ctx, http.MethodPost, "/v1/orgs/"+url.PathEscape(orgID)+"/bans", req, &ban); err != nil {
		return nil, err
	}
	return &ban, nil
}

func (c *HTTPClient) RemoveBan(ctx context.Context, orgID, banID string) error {
	path := "/v1/orgs/" + url.PathEscape(orgID) + "/bans/" + url.PathEscape(banID)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) ListExceptions(ctx context.Context, orgID string) ([]*model.PolicyException, error) {
	var resp struct {
		Exceptions []*model.PolicyException `json:"exceptions"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/exceptions", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Exceptions, nil
}

func (c *HTTPClient) CreateException(ctx context.Context, orgID string, req *CreateExceptionRequest) (*model.PolicyException, error) {
	var exc model.PolicyException
	if err := c.doJSON(ctx, http.MethodPost, "/v1/orgs/"+url.PathEscape(orgID)+"/exceptions", req, &exc); err != nil {
		return nil, err
	}
	return &exc, nil
}

func (c *HTTPClient) ListBumpPRs(ctx context.Context, orgID string) ([]*model.BumpPR, error) {
	var resp struct {
		BumpPRs []*model.BumpPR `json:"bump_prs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/bump-prs", nil, &resp); err != nil {
		return nil, err
	}
	return resp.BumpPRs, nil
}

func (c *HTTPClient) ListOrgViolations(ctx context.Context, orgID string) ([]*model.Violation, error) {
	var resp struct {
		Violations []*model.Violation `json:"violations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/orgs/"+url.PathEscape(orgID)+"/violations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Violations, nil
}

func (c *HTTPClient) ListProjectViolations(ctx context.Context, projectID string) ([]*model.Violation, error) {
	var resp struct {
		Violations []*model.Violation `json:"violations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(projectID)+"/violations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Violations, nil
}

// --- Saved views ---

func (c *HTTPClient) ListViews(ctx context.Context) ([]*model.SavedView, error) {
	var resp struct {
		Views []*model.SavedView `json:"views"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/views", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Views, nil
}

func (c *HTTPClient) GetView(ctx context.Context, name string) (*model.SavedView, error) {
	var view model.SavedView
	if err := c.doJSON(ctx, http.MethodGet, "/v1/views/"+url.PathEscape(name), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) SaveView(ctx context.Context, name string, req *SaveViewRequest) (*model.SavedView, error) {
	var view model.SavedView
	if err := c.doJSON(ctx, http.MethodPut, "/v1/views/"+url.PathEscape(name), req, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *HTTPClient) DeleteView(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/views/"+url.PathEscape(name), nil, nil)
}

// --- Preferences ---

func (c *HTTPClient) ListPreferences(ctx context.Context) ([]*model.Preference, error) {
	var resp struct {
		Preferences []*model.Preference `json:"preferences"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/preferences", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Preferences, nil
}

func (c *HTTPClient) GetPreference(ctx context.Context, key string) (*model.Preference, error) {
	var pref model.Preference
	if err := c.doJSON(ctx, http.MethodGet, "/v1/preferences/"+url.PathEscape(key), nil, &pref); err != nil {
		return nil, err
	}
	return &pref, nil
}

func (c *HTTPClient) SetPreference(ctx context.Context, key, value string) (*model.Preference, error) {
	body := map[string]string{"value": value}
	var pref model.Preference
	if err := c.doJSON(ctx, http.MethodPut, "/v1/preferences/"+url.PathEscape(key), body, &pref); err != nil {
		return nil, err
	}
	return &pref, nil
}

func (c *HTTPClient) DeletePreference(ctx context.Context, key string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/preferences/"+url.PathEscape(key), nil, nil)
}

// --- Watch sessions ---

func (c *HTTPClient) StartWatch(ctx context.Context, req *StartWatchRequest) (*WatchEntry, error) {
	var entry WatchEntry
	if err := c.doJSON(ctx, http.MethodPost, "/v1/watch", req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *HTTPClient) ListWatches(ctx context.Context) ([]*WatchStatus, error) {
	var resp struct {
		Watches []*WatchStatus `json:"watches"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/watch", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Watches, nil
}

func (c *HTTPClient) GetWatchGraph(ctx context.Context, scope string) (*canvas.Graph, error) {
	var g canvas.Graph
	if err := c.doJSON(ctx, http.MethodGet, "/v1/watch/"+url.PathEscape(scope), nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *HTTPClient) StopWatch(ctx context.Context, scope string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/watch/"+url.PathEscape(scope), nil, nil)
}

// --- Security agent ---

func (c *HTTPClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/agent/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) ListConversations(ctx context.Context) ([]string, error) {
	var resp struct {
		Conversations []string `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/agent/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Conversations, nil
}

func (c *HTTPClient) GetConversation(ctx context.Context, id string, limit int) ([]ConversationTurn, error) {
	path := "/v1/agent/conversations/" + url.PathEscape(id)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp struct {
		Messages []ConversationTurn `json:"messages"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// --- Audit, presence, live events ---

func (c *HTTPClient) ListEvents(ctx context.Context, subject string, limit int) ([]*model.Event, error) {
	q := url.Values{}
	if subject != "" {
		q.Set("subject", subject)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (c *HTTPClient) Heartbeat(ctx context.Context, scope, user, via string) error {
	body := map[string]string{"scope": scope, "user": user, "via": via}
	return c.doJSON(ctx, http.MethodPost, "/v1/presence/heartbeat", body, nil)
}

func (c *HTTPClient) GetPresence(ctx context.Context, scope string) (*PresenceResponse, error) {
	var resp PresenceResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/presence/"+url.PathEscape(scope), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	var resp HealthStatus
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- internal helpers ---

// APIError represents an error response from the gateway.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// newRequest builds an authenticated request against the gateway. A non-nil
// payload is marshaled to JSON and sets the content type.
func (c *HTTPClient) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.user != "" {
		req.Header.Set("X-Deptex-User", c.user)
	}
	return req, nil
}

// readResponse drains the body and maps error statuses to *APIError.
func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, apiError(resp.StatusCode, body)
	}
	return body, nil
}

// doJSON round-trips a JSON request. A nil result discards the response
// body, for DELETE and status-only endpoints.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	respBody, err := readResponse(resp)
	if err != nil {
		return err
	}
	if result == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// doRaw performs a GET and returns the raw response body, for binary and
// HTML graph exports.
func (c *HTTPClient) doRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	return readResponse(resp)
}

func apiError(status int, body []byte) error {
	var errResp struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: string(body)}
}

// StreamEvents opens the gateway's SSE stream and invokes fn for each
// event until the context is canceled, the server closes the stream, or fn
// returns an error. Keepalive comments are skipped. The caller handles
// reconnection, passing the last seen event id to resume replay.
func (c *HTTPClient) StreamEvents(ctx context.Context, opts StreamOptions, fn func(StreamEvent) error) error {
	q := url.Values{}
	if len(opts.Topics) > 0 {
		q.Set("topics", strings.Join(opts.Topics, ","))
	}
	if opts.Scope != "" {
		q.Set("scope", opts.Scope)
	}
	path := "/v1/events/stream"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if opts.LastEventID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatUint(opts.LastEventID, 10))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}

	var ev StreamEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			// Blank line terminates a frame; keepalives carry no event name.
			if ev.Topic != "" {
				if err := fn(ev); err != nil {
					return err
				}
			}
			ev = StreamEvent{}
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "id:"):
			if id, err := strconv.ParseUint(strings.TrimSpace(line[len("id:"):]), 10, 64); err == nil {
				ev.ID = id
			}
		case strings.HasPrefix(line, "event:"):
			ev.Topic = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			ev.Data = json.RawMessage(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading stream: %w", err)
	}
	return ctx.Err()
}
