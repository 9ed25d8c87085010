package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nextpie/sessiond/internal/domain"
	"github.com/nextpie/sessiond/internal/ports"
)

const maxResponseBytes = 4 << 20

// UnexpectedStatusError reports a panel response that is neither success
// nor a known transient fault.
type UnexpectedStatusError struct {
	Status int
	Detail string
}

func (e *UnexpectedStatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("unexpected panel status %d", e.Status)
	}
	return fmt.Sprintf("unexpected panel status %d: %s", e.Status, e.Detail)
}

// Client talks to the panel application API with a static API key. Every
// request carries a bounded timeout; 5xx responses and timeouts surface as
// domain.ErrPanelTransient.
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	requestTimeout time.Duration
}

var _ ports.Panel = (*Client)(nil)

func NewClient(baseURL, apiKey string, httpClient *http.Client, requestTimeout time.Duration) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("panel base url is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("panel api key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if requestTimeout <= 0 {
		requestTimeout = 15 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
	}, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]domain.PanelUser, error) {
	var list listResponse[userAttributes]
	if err := c.getJSON(ctx, "/api/application/users", &list); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := make([]domain.PanelUser, 0, len(list.Data))
	for _, entry := range list.Data {
		users = append(users, entry.Attributes.toDomain())
	}
	return users, nil
}

func (c *Client) ListServers(ctx context.Context) ([]domain.Server, error) {
	var list listResponse[serverAttributes]
	if err := c.getJSON(ctx, "/api/application/servers", &list); err != nil {
		return nil, fmt.Errorf("list servers: %w", err)
	}
	servers := make([]domain.Server, 0, len(list.Data))
	for _, entry := range list.Data {
		servers = append(servers, entry.Attributes.toDomain())
	}
	return servers, nil
}

func (c *Client) ListAllocations(ctx context.Context, nodeID int) ([]domain.Allocation, error) {
	var list listResponse[allocationAttributes]
	path := fmt.Sprintf("/api/application/nodes/%d/allocations", nodeID)
	if err := c.getJSON(ctx, path, &list); err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	allocations := make([]domain.Allocation, 0, len(list.Data))
	for _, entry := range list.Data {
		allocations = append(allocations, entry.Attributes.toDomain())
	}
	return allocations, nil
}

func (c *Client) GetServer(ctx context.Context, id int) (domain.Server, error) {
	var envelope attributesEnvelope[serverAttributes]
	if err := c.getJSON(ctx, fmt.Sprintf("/api/application/servers/%d", id), &envelope); err != nil {
		return domain.Server{}, fmt.Errorf("get server %d: %w", id, err)
	}
	return envelope.Attributes.toDomain(), nil
}

func (c *Client) SuspendServer(ctx context.Context, id int) error {
	path := fmt.Sprintf("/api/application/servers/%d/suspend", id)
	if err := c.postNoContent(ctx, path); err != nil {
		return fmt.Errorf("suspend server %d: %w", id, err)
	}
	return nil
}

func (c *Client) UnsuspendServer(ctx context.Context, id int) error {
	path := fmt.Sprintf("/api/application/servers/%d/unsuspend", id)
	if err := c.postNoContent(ctx, path); err != nil {
		return fmt.Errorf("unsuspend server %d: %w", id, err)
	}
	return nil
}

func (c *Client) CreateServer(ctx context.Context, spec domain.ServerSpec) (domain.Server, error) {
	payload := createServerRequest{
		Name:        spec.Name,
		User:        spec.UserID,
		Nest:        spec.NestID,
		Egg:         spec.EggID,
		DockerImage: spec.DockerImage,
		Startup:     spec.Startup,
		Environment: spec.Environment,
		Limits: serverLimits{
			Memory: spec.MemoryMB,
			Disk:   spec.DiskMB,
			CPU:    spec.CPUPercent,
		},
		Allocation: allocationBinding{Default: spec.AllocationID},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Server{}, fmt.Errorf("encode create server request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/application/servers", bytes.NewReader(body))
	if err != nil {
		return domain.Server{}, fmt.Errorf("create server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return domain.Server{}, fmt.Errorf("create server: %w", c.statusError(resp))
	}

	var envelope attributesEnvelope[serverAttributes]
	if err := decodeJSON(resp.Body, &envelope); err != nil {
		return domain.Server{}, fmt.Errorf("decode create server response: %w", err)
	}
	return envelope.Attributes.toDomain(), nil
}

func (c *Client) DeleteServer(ctx context.Context, id int) error {
	if err := c.deleteNoContent(ctx, fmt.Sprintf("/api/application/servers/%d", id)); err != nil {
		return fmt.Errorf("delete server %d: %w", id, err)
	}
	return nil
}

func (c *Client) DeleteUser(ctx context.Context, id int) error {
	if err := c.deleteNoContent(ctx, fmt.Sprintf("/api/application/users/%d", id)); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	return decodeJSON(resp.Body, out)
}

func (c *Client) postNoContent(ctx context.Context, path string) error {
	return c.expectNoContent(ctx, http.MethodPost, path)
}

func (c *Client) deleteNoContent(ctx context.Context, path string) error {
	return c.expectNoContent(ctx, http.MethodDelete, path)
}

func (c *Client) expectNoContent(ctx context.Context, method, path string) error {
	resp, err := c.do(ctx, method, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return c.statusError(resp)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("build panel url: %w", err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)

	req, err := http.NewRequestWithContext(requestCtx, method, endpoint, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create panel request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", domain.ErrPanelTransient, err)
		}
		return nil, fmt.Errorf("panel request: %w", err)
	}

	// The timeout must stay armed until the caller finishes reading the
	// body, so cancellation rides on Close.
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func (c *Client) statusError(resp *http.Response) error {
	detail := readErrorDetail(resp.Body)
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d: %s", domain.ErrPanelTransient, resp.StatusCode, detail)
	}
	return &UnexpectedStatusError{Status: resp.StatusCode, Detail: detail}
}

func readErrorDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBytes))
	if err != nil {
		return ""
	}
	var parsed errorResponse
	if err := json.Unmarshal(data, &parsed); err == nil && len(parsed.Errors) > 0 {
		return parsed.Errors[0].Detail
	}
	return strings.TrimSpace(string(data))
}

func decodeJSON(body io.Reader, out any) error {
	data, err := io.ReadAll(io.LimitReader(body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read panel response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode panel response: %w", err)
	}
	return nil
}
