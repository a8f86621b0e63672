// Package client provides a typed HTTP client for the idearoom API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/idearoom/idearoom/pkg/models"
)

// Client talks to a running idearoom server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    http.DefaultClient,
	}
}

// NewWithHTTPClient creates a client using a custom HTTP client, e.g. the one
// returned by httptest.Server.Client().
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s", method, path, apiErr.Error)
		}
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) SaveSettings(ctx context.Context, settings *models.Settings) error {
	return c.do(ctx, http.MethodPut, "/api/settings", settings, nil)
}

func (c *Client) GetArtifact(ctx context.Context, id string) (*models.Artifact, error) {
	var artifact models.Artifact
	if err := c.do(ctx, http.MethodGet, "/api/artifacts/"+url.PathEscape(id), nil, &artifact); err != nil {
		return nil, err
	}
	return &artifact, nil
}

func (c *Client) SaveArtifact(ctx context.Context, artifact *models.Artifact) (*models.Artifact, error) {
	var saved models.Artifact
	if err := c.do(ctx, http.MethodPost, "/api/artifacts", artifact, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Client) DeleteArtifact(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/artifacts/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListArtifacts(ctx context.Context, typ models.ArtifactType, projectID string) ([]*models.Artifact, error) {
	q := url.Values{}
	if typ != "" {
		q.Set("type", string(typ))
	}
	if projectID != "" {
		q.Set("projectId", projectID)
	}
	path := "/api/artifacts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var artifacts []*models.Artifact
	if err := c.do(ctx, http.MethodGet, path, nil, &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (c *Client) ListFavorites(ctx context.Context, projectID string) ([]*models.Artifact, error) {
	path := "/api/favorites"
	if projectID != "" {
		path += "?projectId=" + url.QueryEscape(projectID)
	}
	var artifacts []*models.Artifact
	if err := c.do(ctx, http.MethodGet, path, nil, &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (c *Client) ListByTag(ctx context.Context, tag string) ([]*models.Artifact, error) {
	var artifacts []*models.Artifact
	err := c.do(ctx, http.MethodGet, "/api/tags/"+url.PathEscape(tag)+"/artifacts", nil, &artifacts)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (c *Client) GetProjects(ctx context.Context) ([]*models.Project, error) {
	var projects []*models.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) SaveProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	var saved models.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", project, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListCalendarEvents(ctx context.Context, projectID string) ([]*models.CalendarEventRecord, error) {
	path := "/api/events"
	if projectID != "" {
		path += "?projectId=" + url.QueryEscape(projectID)
	}
	var events []*models.CalendarEventRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) SaveCalendarEvent(ctx context.Context, event *models.CalendarEventRecord) error {
	return c.do(ctx, http.MethodPost, "/api/events", event, nil)
}

func (c *Client) DeleteCalendarEvent(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/events/"+url.PathEscape(id), nil, nil)
}
