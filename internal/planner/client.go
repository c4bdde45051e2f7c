// Package planner is a typed HTTP client for the external task-system
// integration: listing and creating teams, channels, plans and tabs, and
// managing the project connection and its sync state.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is used when NewClient is given a zero timeout.
const DefaultTimeout = 30 * time.Second

// Client talks JSON over HTTP to the dashboard API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a Client for baseURL with a bearer token.
// Pass an empty token to skip authorization headers.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// Status reports whether the integration is configured and reachable. It
// never fails: an unreachable or broken endpoint is described in the result.
func (c *Client) Status(ctx context.Context) IntegrationStatus {
	var st IntegrationStatus
	if err := c.do(ctx, "get status", http.MethodGet, "/planner/status", nil, &st); err != nil {
		st = IntegrationStatus{Error: err.Error()}
		switch Classify(err) {
		case KindPermission:
			st.Configured = true
			st.PermissionIssue = true
			st.Message = Hint(err)
		case KindConfiguration:
			st.Message = "the planner integration is not configured"
		default:
			st.Message = "the planner integration could not be reached"
		}
	}
	return st
}

// ListGroups returns one page of groups. Pass the previous page's NextLink as
// skipToken to continue; an empty skipToken fetches the first page.
func (c *Client) ListGroups(ctx context.Context, skipToken string) (GroupPage, error) {
	path := "/planner/groups"
	if skipToken != "" {
		path += "?skipToken=" + url.QueryEscape(skipToken)
	}
	var page GroupPage
	if err := c.do(ctx, "list groups", http.MethodGet, path, nil, &page); err != nil {
		return GroupPage{}, err
	}
	if page.Source == "" {
		page.Source = SourceUser
	}
	return page, nil
}

// ListPlans returns every plan visible to the caller.
func (c *Client) ListPlans(ctx context.Context) ([]Plan, error) {
	var plans []Plan
	if err := c.do(ctx, "list plans", http.MethodGet, "/planner/plans", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// ListGroupPlans returns the plans owned by a single group.
func (c *Client) ListGroupPlans(ctx context.Context, groupID string) ([]Plan, error) {
	var plans []Plan
	path := "/planner/groups/" + url.PathEscape(groupID) + "/plans"
	if err := c.do(ctx, "list group plans", http.MethodGet, path, nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// ListChannels returns the channels of a team.
func (c *Client) ListChannels(ctx context.Context, teamID string) ([]Channel, error) {
	var channels []Channel
	path := "/planner/teams/" + url.PathEscape(teamID) + "/channels"
	if err := c.do(ctx, "list channels", http.MethodGet, path, nil, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

// ListTeamTemplates returns the catalog of team templates.
func (c *Client) ListTeamTemplates(ctx context.Context) ([]TeamTemplate, error) {
	var templates []TeamTemplate
	if err := c.do(ctx, "list team templates", http.MethodGet, "/planner/team-templates", nil, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

// CreateTeam creates a new team.
func (c *Client) CreateTeam(ctx context.Context, req CreateTeamRequest) (Group, error) {
	var g Group
	if err := c.do(ctx, "create team", http.MethodPost, "/planner/teams", req, &g); err != nil {
		return Group{}, err
	}
	return g, nil
}

// CreateChannel creates a channel inside a team.
func (c *Client) CreateChannel(ctx context.Context, teamID string, req CreateChannelRequest) (Channel, error) {
	var ch Channel
	path := "/planner/teams/" + url.PathEscape(teamID) + "/channels"
	if err := c.do(ctx, "create channel", http.MethodPost, path, req, &ch); err != nil {
		return Channel{}, err
	}
	return ch, nil
}

// CreatePlan creates a plan owned by a group.
func (c *Client) CreatePlan(ctx context.Context, groupID string, req CreatePlanRequest) (Plan, error) {
	var p Plan
	path := "/planner/groups/" + url.PathEscape(groupID) + "/plans"
	if err := c.do(ctx, "create plan", http.MethodPost, path, req, &p); err != nil {
		return Plan{}, err
	}
	if p.Owner == "" {
		p.Owner = groupID
	}
	return p, nil
}

// CreateTab pins a plan as a tab on a channel.
func (c *Client) CreateTab(ctx context.Context, teamID, channelID string, req CreateTabRequest) error {
	path := "/planner/teams/" + url.PathEscape(teamID) + "/channels/" + url.PathEscape(channelID) + "/tabs"
	return c.do(ctx, "create tab", http.MethodPost, path, req, nil)
}

// LinkProject persists the connection for a project, replacing any existing one.
func (c *Client) LinkProject(ctx context.Context, projectID string, req LinkRequest) (Connection, error) {
	if req.SyncDirection == "" {
		req.SyncDirection = SyncDirectionBidirectional
	}
	var conn Connection
	if err := c.do(ctx, "link project", http.MethodPost, projectPath(projectID, "planner-connection"), req, &conn); err != nil {
		return Connection{}, err
	}
	return conn, nil
}

// SyncStatus returns the connection and sync read model for a project.
func (c *Client) SyncStatus(ctx context.Context, projectID string) (SyncStatus, error) {
	var st SyncStatus
	if err := c.do(ctx, "get sync status", http.MethodGet, projectPath(projectID, "planner-sync-status"), nil, &st); err != nil {
		return SyncStatus{}, err
	}
	return st, nil
}

// TriggerSync runs a manual sync and returns its counters.
func (c *Client) TriggerSync(ctx context.Context, projectID string) (SyncResult, error) {
	var res SyncResult
	if err := c.do(ctx, "trigger sync", http.MethodPost, projectPath(projectID, "planner-sync"), nil, &res); err != nil {
		return SyncResult{}, err
	}
	return res, nil
}

// SetConnectionFlags patches the sync toggles of a connection.
func (c *Client) SetConnectionFlags(ctx context.Context, projectID string, flags ConnectionFlags) (Connection, error) {
	var conn Connection
	if err := c.do(ctx, "update connection", http.MethodPatch, projectPath(projectID, "planner-connection"), flags, &conn); err != nil {
		return Connection{}, err
	}
	return conn, nil
}

// Unlink removes the connection record. External tasks are left untouched.
func (c *Client) Unlink(ctx context.Context, projectID string) error {
	return c.do(ctx, "unlink project", http.MethodDelete, projectPath(projectID, "planner-connection"), nil, nil)
}

func projectPath(projectID, leaf string) string {
	return "/projects/" + url.PathEscape(projectID) + "/" + leaf
}

// do sends one request and decodes a JSON response into out (when non-nil).
// Every failure is returned as an *IntegrationError.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	requestID := uuid.NewString()
	fail := func(status int, err error) *IntegrationError {
		return &IntegrationError{
			Kind:      KindTransport,
			Op:        op,
			Status:    status,
			RequestID: requestID,
			Payload:   summarize(body),
			Err:       err,
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fail(0, fmt.Errorf("marshal: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fail(0, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fail(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		ie := fail(resp.StatusCode, nil)
		ie.Kind = kindFor(resp.StatusCode, eb)
		ie.Message = eb.Message
		if ie.Message == "" {
			ie.Message = eb.Error
		}
		if ie.Message == "" {
			ie.Message = strings.TrimSpace(string(raw))
		}
		ie.Hint = eb.Hint
		if ie.Hint == "" && ie.Kind == KindPermission {
			ie.Hint = eb.Message
		}
		return ie
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// summarize renders a request body for error context. Empty for bodyless calls.
func summarize(body any) string {
	if body == nil {
		return ""
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(data)
}
