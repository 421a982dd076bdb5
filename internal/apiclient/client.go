package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"cellar/internal/api"
	"cellar/internal/services"
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Kind       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return e.Message
}

// Unwrap maps the response kind back to a service marker.
func (e *APIError) Unwrap() error {
	switch e.Kind {
	case "not_found":
		return services.ErrNotFound
	case "conflict":
		return services.ErrConflict
	case "invalid_transition":
		return services.ErrInvalidTransition
	case "validation":
		return services.ErrValidation
	case "provider_unavailable":
		return services.ErrProviderUnavailable
	case "provider_error":
		return services.ErrProviderError
	}
	return nil
}

// Client calls the daemon API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a client for the API at baseURL (scheme optional).
func New(baseURL, token string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL != "" && !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{
		baseURL:    baseURL,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (api.DaemonStatus, error) {
	var resp api.DaemonStatus
	err := c.doJSON(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

// RecordScan registers a scanned bottle.
func (c *Client) RecordScan(ctx context.Context, req api.ScanRequest) (api.ScanResponse, error) {
	var resp api.ScanResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/scans", req, &resp)
	return resp, err
}

// ListWines lists wines with bottle counts.
func (c *Client) ListWines(ctx context.Context, query api.WineQuery) ([]api.WineSummary, error) {
	values := url.Values{}
	if query.Query != "" {
		values.Set("q", query.Query)
	}
	if query.PlaceholdersOnly {
		values.Set("placeholders", "true")
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	if query.Offset > 0 {
		values.Set("offset", strconv.Itoa(query.Offset))
	}
	path := "/api/wines"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.WineListResponse
	err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	return resp.Wines, err
}

// GetWine returns a wine with its bottles.
func (c *Client) GetWine(ctx context.Context, id int64) (api.WineDetail, error) {
	var resp api.WineDetail
	err := c.doJSON(ctx, http.MethodGet, winePath(id), nil, &resp)
	return resp, err
}

// UpdateWine applies a manual edit.
func (c *Client) UpdateWine(ctx context.Context, id int64, req api.WinePatchRequest) (api.Wine, error) {
	var resp api.Wine
	err := c.doJSON(ctx, http.MethodPatch, winePath(id), req, &resp)
	return resp, err
}

// DeleteWine removes a wine and its bottles.
func (c *Client) DeleteWine(ctx context.Context, id int64) (api.DeleteWineResponse, error) {
	var resp api.DeleteWineResponse
	err := c.doJSON(ctx, http.MethodDelete, winePath(id), nil, &resp)
	return resp, err
}

// EnrichWine runs a barcode lookup for a wine.
func (c *Client) EnrichWine(ctx context.Context, id int64) (api.WineUpdate, error) {
	var resp api.WineUpdate
	err := c.doJSON(ctx, http.MethodPost, winePath(id)+"/enrich", nil, &resp)
	return resp, err
}

// DeleteBottle removes one bottle.
func (c *Client) DeleteBottle(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/bottles/"+strconv.FormatInt(id, 10), nil, nil)
}

// UploadLabel submits a label photo and returns the queued task.
func (c *Client) UploadLabel(ctx context.Context, filename string, image []byte, wantReview bool) (api.LabelTask, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", filename)
	if err != nil {
		return api.LabelTask{}, err
	}
	if _, err := part.Write(image); err != nil {
		return api.LabelTask{}, err
	}
	if err := form.WriteField("review", strconv.FormatBool(wantReview)); err != nil {
		return api.LabelTask{}, err
	}
	if err := form.Close(); err != nil {
		return api.LabelTask{}, err
	}

	var resp api.LabelTask
	err = c.do(ctx, http.MethodPost, "/api/labels", &body, form.FormDataContentType(), &resp)
	return resp, err
}

// GetLabelTask polls a label task.
func (c *Client) GetLabelTask(ctx context.Context, id int64) (api.LabelTask, error) {
	var resp api.LabelTask
	err := c.doJSON(ctx, http.MethodGet, labelPath(id), nil, &resp)
	return resp, err
}

// ListLabelTasks lists label tasks, optionally filtered by status.
func (c *Client) ListLabelTasks(ctx context.Context, statuses ...string) ([]api.LabelTask, error) {
	path := "/api/labels"
	if len(statuses) > 0 {
		values := url.Values{}
		for _, status := range statuses {
			values.Add("status", status)
		}
		path += "?" + values.Encode()
	}
	var resp api.LabelTaskListResponse
	err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	return resp.Tasks, err
}

// ApplyLabelTask merges a finished label reading into a wine.
func (c *Client) ApplyLabelTask(ctx context.Context, taskID, wineID int64) (api.WineUpdate, error) {
	var resp api.WineUpdate
	err := c.doJSON(ctx, http.MethodPost, labelPath(taskID)+"/apply", api.ApplyLabelRequest{WineID: wineID}, &resp)
	return resp, err
}

// WaitForLabelTask polls until the task reaches a terminal state or ctx ends.
func (c *Client) WaitForLabelTask(ctx context.Context, id int64, interval time.Duration) (api.LabelTask, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		task, err := c.GetLabelTask(ctx, id)
		if err != nil {
			return api.LabelTask{}, err
		}
		if task.Status == "done" || task.Status == "failed" {
			return task, nil
		}
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	if c.baseURL == "" {
		return errors.New("api address not configured")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connect to daemon at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var payload api.ErrorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		apiErr.Kind = payload.Kind
		apiErr.Message = payload.Error
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(raw))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func winePath(id int64) string {
	return "/api/wines/" + strconv.FormatInt(id, 10)
}

func labelPath(id int64) string {
	return "/api/labels/" + strconv.FormatInt(id, 10)
}
