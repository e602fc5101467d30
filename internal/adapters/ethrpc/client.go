// Package ethrpc wraps a go-ethereum RPC client for throttled, read-only
// contract calls.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// Default throttle applied to every client.
const (
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 5
	DefaultTimeout           = 15 * time.Second
)

// RPCError is a JSON-RPC error object returned by the node, such as a
// revert (code 3).
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// Client sends eth_* requests to a single RPC endpoint.
type Client struct {
	url string
	rpc *rpc.Client
	eth *ethclient.Client
}

type options struct {
	timeout time.Duration
	rps     float64
	burst   int
	base    http.RoundTripper
}

// Option configures a Client.
type Option func(*options)

// WithTimeout bounds every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRateLimit sets the request throttle. rps <= 0 disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *options) {
		o.rps, o.burst = rps, burst
	}
}

// WithTransport replaces the underlying HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.base = rt
		}
	}
}

// limitedTransport waits on the limiter before every request.
type limitedTransport struct {
	base    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return t.base.RoundTrip(req)
}

// Dial creates a client for the HTTP RPC endpoint at url. No request is
// sent until the first call.
func Dial(url string, opts ...Option) (*Client, error) {
	o := options{
		timeout: DefaultTimeout,
		rps:     DefaultRequestsPerSecond,
		burst:   DefaultBurst,
		base:    http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(&o)
	}

	transport := o.base
	if o.rps > 0 {
		burst := o.burst
		if burst < 1 {
			burst = 1
		}
		transport = &limitedTransport{base: o.base, limiter: rate.NewLimiter(rate.Limit(o.rps), burst)}
	}
	hc := &http.Client{Timeout: o.timeout, Transport: transport}

	rc, err := rpc.DialOptions(context.Background(), url, rpc.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{url: url, rpc: rc, eth: ethclient.NewClient(rc)}, nil
}

// URL returns the endpoint this client talks to.
func (c *Client) URL() string { return c.url }

// Close releases the underlying connection.
func (c *Client) Close() { c.rpc.Close() }

// Call executes eth_call against the latest block and returns the raw
// return data.
func (c *Client) Call(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth_call %s: %w", to.Hex(), wrapError(err))
	}
	return out, nil
}

// BlockTimestamp returns the timestamp of the latest block in unix seconds.
func (c *Client) BlockTimestamp(ctx context.Context) (int64, error) {
	var block *struct {
		Timestamp hexutil.Uint64 `json:"timestamp"`
	}
	if err := c.rpc.CallContext(ctx, &block, "eth_getBlockByNumber", "latest", false); err != nil {
		return 0, fmt.Errorf("eth_getBlockByNumber: %w", wrapError(err))
	}
	if block == nil {
		return 0, errors.New("eth_getBlockByNumber: latest block not found")
	}
	return int64(block.Timestamp), nil
}

// wrapError converts node errors into *RPCError and describes HTTP
// failures. Other errors are returned unchanged.
func wrapError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return &RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
	}
	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Errorf("server returned %d: %s", httpErr.StatusCode, strings.TrimSpace(string(httpErr.Body)))
	}
	return err
}
