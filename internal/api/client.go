package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/harentsoaR/bloodbank-api/internal/errs"
)

// DefaultTimeout bounds a single action call.
const DefaultTimeout = 15 * time.Second

// Client turns named actions into calls against one endpoint. Every call is
// a single attempt.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
	mu         sync.RWMutex
	token      string
}

// NewClient targets baseURL, e.g. "http://localhost:8080/api".
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(DefaultTimeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{httpClient: httpClient, logger: logger}
}

// SetToken replaces the bearer token sent with every call.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Invoke calls action with method. A non-GET payload is sent as the JSON
// body; on GET a Params payload becomes query parameters. The decoded
// response is stored in out when out is non-nil.
//
// A response carrying an "error" field becomes an errs.KindRejected error
// holding that message verbatim. Failing to reach the endpoint, or getting
// back something that is not JSON, becomes errs.KindUnreachable.
func (c *Client) Invoke(ctx context.Context, action, method string, payload, out any) error {
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("action", action)
	if token := c.Token(); token != "" {
		req.SetAuthToken(token)
	}
	if method == http.MethodGet {
		if params, ok := payload.(Params); ok {
			req.SetQueryParams(params)
		}
	} else if payload != nil {
		req.SetBody(payload)
	}

	resp, err := req.Execute(method, "")
	if err != nil {
		c.logger.Warn("action call failed", zap.String("action", action), zap.Error(err))
		return errs.Unreachable(fmt.Errorf("%s %s: %w", method, action, err))
	}

	body := resp.Body()
	var failure ErrorResponse
	if err := json.Unmarshal(body, &failure); err != nil {
		c.logger.Warn("undecodable action response",
			zap.String("action", action),
			zap.Int("status_code", resp.StatusCode()),
			zap.Error(err))
		return errs.Unreachable(fmt.Errorf("decode %s response: %w", action, err))
	}
	if failure.Error != "" {
		return errs.Text(errs.KindRejected, failure.Error)
	}
	if resp.IsError() {
		return errs.Rejected("Request failed with status %d", resp.StatusCode())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errs.Unreachable(fmt.Errorf("decode %s response: %w", action, err))
	}
	return nil
}

func (c *Client) get(ctx context.Context, action string, params Params, out any) error {
	return c.Invoke(ctx, action, http.MethodGet, params, out)
}

func (c *Client) post(ctx context.Context, action string, payload, out any) error {
	return c.Invoke(ctx, action, http.MethodPost, payload, out)
}
