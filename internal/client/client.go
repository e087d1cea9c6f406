package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"

	"github.com/ldi/trellis/internal/board"
	"github.com/ldi/trellis/pkg/models"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the board server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("board server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("board server returned %d: %s", e.StatusCode, e.Message)
}

// ServerMessage is the text the server sent for the user.
func (e *APIError) ServerMessage() string {
	return e.Message
}

// Client talks to the REST board server.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func (c *Client) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	var orgs []*models.Organization
	err := c.do(ctx, http.MethodGet, "/api/organizations", nil, &orgs)
	return orgs, err
}

func (c *Client) ListProjects(ctx context.Context, organizationID string) ([]*models.Project, error) {
	var projects []*models.Project
	err := c.do(ctx, http.MethodGet, "/api/organizations/"+url.PathEscape(organizationID)+"/projects", nil, &projects)
	return projects, err
}

func (c *Client) ListModules(ctx context.Context, projectID string) ([]*models.Module, error) {
	var modules []*models.Module
	err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/modules", nil, &modules)
	return modules, err
}

func (c *Client) ListTasks(ctx context.Context, moduleID string) ([]*models.Task, error) {
	var tasks []*models.Task
	err := c.do(ctx, http.MethodGet, "/api/modules/"+url.PathEscape(moduleID)+"/tasks", nil, &tasks)
	return tasks, err
}

// Cards loads the cards of one board.
func (c *Client) Cards(ctx context.Context, scope board.Scope) ([]board.Card, error) {
	switch scope.Kind {
	case board.KindTask:
		tasks, err := c.ListTasks(ctx, scope.ID)
		if err != nil {
			return nil, err
		}
		return board.FromTasks(tasks), nil
	case board.KindModule:
		modules, err := c.ListModules(ctx, scope.ID)
		if err != nil {
			return nil, err
		}
		return board.FromModules(modules), nil
	default:
		return nil, fmt.Errorf("unknown board kind %q", scope.Kind)
	}
}

// UpdateStatus sends one status update. The response body is not needed:
// the board refetches after every success.
func (c *Client) UpdateStatus(ctx context.Context, kind board.Kind, u models.StatusUpdate) error {
	var path string
	switch kind {
	case board.KindTask:
		path = "/api/tasks/" + url.PathEscape(u.ID) + "/status"
	case board.KindModule:
		path = "/api/modules/" + url.PathEscape(u.ID) + "/status"
	default:
		return fmt.Errorf("unknown card kind %q", kind)
	}
	return c.do(ctx, http.MethodPatch, path, u, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if gjson.ValidBytes(respBody) {
			apiErr.Message = gjson.GetBytes(respBody, "message").String()
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
