// Package client is a small signing client for the sandbox REST API. It
// speaks the same wire contract as the real exchange, so it also serves as a
// reference for client code under test.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"kraken-sandbox-go/internal/auth"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const apiVersion = "/0"

// APIError carries the error list of a failed call.
type APIError struct {
	Status int
	Errors []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.Status, strings.Join(e.Errors, "; "))
}

type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// Client signs private calls with an API key and secret.
type Client struct {
	client *resty.Client
	key    string
	secret string
	logger *zap.Logger

	mu        sync.Mutex
	lastNonce int64
}

// New creates a client for the sandbox at baseURL.
func New(baseURL, key, secret string, logger *zap.Logger) *Client {
	return &Client{
		client: resty.New().SetBaseURL(strings.TrimRight(baseURL, "/")).SetTimeout(10 * time.Second),
		key:    key,
		secret: secret,
		logger: logger.Named("sandbox-client"),
	}
}

// nonce returns a strictly increasing millisecond nonce.
func (c *Client) nonce() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := time.Now().UnixMilli()
	if n <= c.lastNonce {
		n = c.lastNonce + 1
	}
	c.lastNonce = n
	return strconv.FormatInt(n, 10)
}

// Public calls a public method and decodes its result into out.
func (c *Client) Public(ctx context.Context, method string, params url.Values, out interface{}) error {
	req := c.client.R().SetContext(ctx).SetQueryParamsFromValues(params)
	resp, err := req.Get(apiVersion + "/public/" + method)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	return c.decode(method, resp, out)
}

// Private signs and calls a private method and decodes its result into out.
func (c *Client) Private(ctx context.Context, method string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	nonce := c.nonce()
	params.Set("nonce", nonce)
	body := params.Encode()
	path := apiVersion + "/private/" + method

	sig, err := auth.Sign(path, nonce, body, c.secret)
	if err != nil {
		return fmt.Errorf("failed to sign %s: %w", method, err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("API-Key", c.key).
		SetHeader("API-Sign", sig).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", method, err)
	}
	return c.decode(method, resp, out)
}

func (c *Client) decode(method string, resp *resty.Response, out interface{}) error {
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("failed to decode %s response (status %d): %w", method, resp.StatusCode(), err)
	}
	if len(env.Error) > 0 {
		c.logger.Debug("API call failed", zap.String("method", method), zap.Strings("errors", env.Error))
		return &APIError{Status: resp.StatusCode(), Errors: env.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// Balance returns the caller's balances by asset.
func (c *Client) Balance(ctx context.Context) (map[string]decimal.Decimal, error) {
	var balances map[string]decimal.Decimal
	if err := c.Private(ctx, "Balance", nil, &balances); err != nil {
		return nil, err
	}
	return balances, nil
}

// Order describes a new order.
type Order struct {
	Pair      string
	Side      string
	OrderType string
	Volume    string
	Price     string
	UserRef   *int64
	ClOrdID   string
}

// AddOrderResult is the decoded AddOrder result.
type AddOrderResult struct {
	Descr struct {
		Order string `json:"order"`
	} `json:"descr"`
	TxID []string `json:"txid"`
}

// AddOrder places an order.
func (c *Client) AddOrder(ctx context.Context, o Order) (AddOrderResult, error) {
	params := url.Values{
		"pair":      {o.Pair},
		"type":      {o.Side},
		"ordertype": {o.OrderType},
		"volume":    {o.Volume},
	}
	if o.Price != "" {
		params.Set("price", o.Price)
	}
	if o.UserRef != nil {
		params.Set("userref", strconv.FormatInt(*o.UserRef, 10))
	}
	if o.ClOrdID != "" {
		params.Set("cl_ord_id", o.ClOrdID)
	}

	var result AddOrderResult
	if err := c.Private(ctx, "AddOrder", params, &result); err != nil {
		return AddOrderResult{}, err
	}
	return result, nil
}

// CancelOrder cancels one order by id and returns the number canceled.
func (c *Client) CancelOrder(ctx context.Context, txid string) (int, error) {
	var result struct {
		Count int `json:"count"`
	}
	if err := c.Private(ctx, "CancelOrder", url.Values{"txid": {txid}}, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}
