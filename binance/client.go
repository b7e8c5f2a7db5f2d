// Package binance is the USD-M futures exchange adapter. It implements the
// broker interfaces against the REST API and streams live klines over
// websocket.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production USD-M futures endpoint.
const DefaultBaseURL = "https://fapi.binance.com"

// recvWindow is the signed-request validity window in milliseconds.
const recvWindow = 5000

// APIError is a non-2xx response from the exchange.
type APIError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: code %d: %s", e.Code, e.Msg)
}

// Client is a rate-limited REST client for the futures API. Signed calls
// use an HMAC-SHA256 signature over the query string; the timestamp is
// offset by the measured drift against server time.
type Client struct {
	baseURL string
	key     string
	secret  string
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger

	timeOffset time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different endpoint, typically the
// testnet or an httptest server.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient creates a client with the given credentials. Keys may be empty
// for public-data-only use.
func NewClient(log *zap.Logger, key, secret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		key:     key,
		secret:  secret,
		http:    &http.Client{Timeout: 15 * time.Second},
		// The futures API allows 2400 request weight per minute; staying
		// well under that leaves headroom for weight-10 endpoints.
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SyncTime measures the offset between local and server clocks. Signed
// requests fail when the drift exceeds the recv window, so call this once
// at startup.
func (c *Client) SyncTime(ctx context.Context) error {
	var out struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := c.public(ctx, "/fapi/v1/time", nil, &out); err != nil {
		return fmt.Errorf("server time: %w", err)
	}
	server := time.UnixMilli(out.ServerTime)
	c.timeOffset = server.Sub(time.Now())
	c.log.Debug("synced exchange clock", zap.Duration("offset", c.timeOffset))
	return nil
}

func (c *Client) public(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, false, out)
}

func (c *Client) signedGet(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, params, true, out)
}

func (c *Client) signedPost(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, params, true, out)
}

func (c *Client) signedDelete(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, http.MethodDelete, path, params, true, out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}
	if signed {
		ts := time.Now().Add(c.timeOffset).UnixMilli()
		params.Set("timestamp", strconv.FormatInt(ts, 10))
		params.Set("recvWindow", strconv.Itoa(recvWindow))
		params.Set("signature", c.sign(params.Encode()))
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	if c.key != "" {
		req.Header.Set("X-MBX-APIKEY", c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr == nil && apiErr.Code != 0 {
			return apiErr
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

// parseFloat decodes the API's quoted decimal strings.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
