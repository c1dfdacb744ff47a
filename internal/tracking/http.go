package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"intake/internal/config"
	"intake/internal/services"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPClient implements Client against the tracking service's JSON REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  HTTPDoer
}

// NewHTTPClient constructs a tracking client using the provided HTTP backend.
func NewHTTPClient(baseURL, token string, client HTTPDoer) *HTTPClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  client,
	}
}

// NewFromConfig builds an HTTP client against the configured endpoint with
// the configured request timeout.
func NewFromConfig(cfg *config.Config) *HTTPClient {
	return NewHTTPClient(cfg.Tracking.URL, cfg.Tracking.APIKey, &http.Client{
		Timeout: cfg.TrackingTimeout(),
	})
}

type searchRequest struct {
	Filters []Filter `json:"filters"`
	Fields  []string `json:"fields,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

type searchResponse struct {
	Entities []Entity `json:"entities"`
}

type entityRequest struct {
	Data             map[string]any    `json:"data"`
	MultiEntityModes map[string]string `json:"multi_entity_modes,omitempty"`
}

type entityResponse struct {
	Entity Entity `json:"entity"`
}

type schemaResponse struct {
	Properties map[string]any `json:"properties"`
}

// FindOne returns the first entity matching the filters, or nil when nothing
// matches.
func (c *HTTPClient) FindOne(ctx context.Context, entityType string, filters []Filter, fields []string) (Entity, error) {
	var resp searchResponse
	body := searchRequest{Filters: filters, Fields: fields, Limit: 1}
	op := fmt.Sprintf("find %s", entityType)
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/entity/"+entityType+"/search", body, op, &resp); err != nil {
		return nil, err
	}
	if len(resp.Entities) == 0 {
		return nil, nil
	}
	return resp.Entities[0], nil
}

// Find returns every entity matching the filters.
func (c *HTTPClient) Find(ctx context.Context, entityType string, filters []Filter, fields []string) ([]Entity, error) {
	var resp searchResponse
	body := searchRequest{Filters: filters, Fields: fields}
	op := fmt.Sprintf("find %s", entityType)
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/entity/"+entityType+"/search", body, op, &resp); err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// Create inserts a new entity and returns the stored record.
func (c *HTTPClient) Create(ctx context.Context, entityType string, data map[string]any) (Entity, error) {
	var resp entityResponse
	body := entityRequest{Data: data}
	op := fmt.Sprintf("create %s", entityType)
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/entity/"+entityType, body, op, &resp); err != nil {
		return nil, err
	}
	return resp.Entity, nil
}

// Update modifies an existing entity and returns the stored record.
func (c *HTTPClient) Update(ctx context.Context, entityType string, id int64, data map[string]any, opts ...UpdateOption) (Entity, error) {
	options := buildUpdateOptions(opts)
	var resp entityResponse
	body := entityRequest{Data: data, MultiEntityModes: options.MultiEntityModes}
	op := fmt.Sprintf("update %s %d", entityType, id)
	path := fmt.Sprintf("/api/v1/entity/%s/%d", entityType, id)
	if err := c.doJSON(ctx, http.MethodPatch, path, body, op, &resp); err != nil {
		return nil, err
	}
	return resp.Entity, nil
}

// Delete removes an entity.
func (c *HTTPClient) Delete(ctx context.Context, entityType string, id int64) error {
	op := fmt.Sprintf("delete %s %d", entityType, id)
	path := fmt.Sprintf("/api/v1/entity/%s/%d", entityType, id)
	return c.doJSON(ctx, http.MethodDelete, path, nil, op, nil)
}

// SchemaFieldRead returns the schema properties for one entity field.
func (c *HTTPClient) SchemaFieldRead(ctx context.Context, entityType, fieldName string) (map[string]any, error) {
	var resp schemaResponse
	op := fmt.Sprintf("read schema %s.%s", entityType, fieldName)
	path := fmt.Sprintf("/api/v1/schema/%s/%s", entityType, fieldName)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, op, &resp); err != nil {
		return nil, err
	}
	return resp.Properties, nil
}

// SchemaFieldUpdate replaces the schema properties for one entity field.
func (c *HTTPClient) SchemaFieldUpdate(ctx context.Context, entityType, fieldName string, properties map[string]any) error {
	body := map[string]any{"properties": properties}
	op := fmt.Sprintf("update schema %s.%s", entityType, fieldName)
	path := fmt.Sprintf("/api/v1/schema/%s/%s", entityType, fieldName)
	return c.doJSON(ctx, http.MethodPatch, path, body, op, nil)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, operation string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "tracking", operation, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(bodyBytes))
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return services.Wrap(
			classifyStatus(resp.StatusCode), "tracking", operation,
			fmt.Sprintf("service returned %d: %s", resp.StatusCode, detail), nil)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "tracking", operation, "decode response", err)
	}
	return nil
}

func classifyStatus(status int) error {
	switch {
	case status == http.StatusNotFound:
		return services.ErrNotFound
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return services.ErrConfiguration
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return services.ErrTimeout
	case status >= http.StatusInternalServerError:
		return services.ErrTransient
	default:
		return services.ErrValidation
	}
}
