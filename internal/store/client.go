// Package store provides a client for the IPFS HTTP RPC API.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/wforney/net-ipfs-mount/internal/logging"
	"github.com/wforney/net-ipfs-mount/internal/metrics"
)

// DefaultAPIURL is the RPC endpoint of a local IPFS daemon.
const DefaultAPIURL = "http://127.0.0.1:5001"

// streamErrorTrailer carries errors that occur after a streamed response has started.
const streamErrorTrailer = "X-Stream-Error"

// Client talks to one IPFS node. It is safe for concurrent use and keeps no
// per-object state.
type Client struct {
	apiURL     string
	httpClient *http.Client
	attempts   uint
	retryDelay time.Duration
	pinType    string

	mu       sync.RWMutex
	online   bool
	lastSeen time.Time
}

// Config holds client configuration.
type Config struct {
	APIURL        string
	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
	PinType       string // recursive, direct, indirect, all
}

// New creates a new client.
func New(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.PinType == "" {
		cfg.PinType = "recursive"
	}

	return &Client{
		apiURL: strings.TrimSuffix(cfg.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
				DisableCompression:  false,
			},
		},
		attempts:   cfg.RetryAttempts,
		retryDelay: cfg.RetryDelay,
		pinType:    cfg.PinType,
		online:     true,
	}
}

// APIURL returns the endpoint the client talks to.
func (c *Client) APIURL() string {
	return c.apiURL
}

// IsOnline returns true if the last request reached the node.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.online != online {
		if online {
			logging.Info("IPFS node is reachable again", logging.String("api", c.apiURL))
		} else {
			logging.Warn("IPFS node is unreachable", logging.String("api", c.apiURL))
		}
	}
	c.online = online
	c.lastSeen = time.Now()
}

// Identity returns the identity of the node. It is the cheapest call that
// proves the endpoint is an IPFS RPC API.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	var id Identity
	if err := c.call(ctx, "id", nil, &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// GetNode returns the metadata of the object at path, which may be a bare
// CID or an /ipfs/ or /ipns/ path.
func (c *Client) GetNode(ctx context.Context, path string) (*Node, error) {
	var resp lsResponse
	if err := c.call(ctx, "file/ls", url.Values{"arg": {path}}, &resp); err != nil {
		return nil, err
	}

	hash, ok := resp.Arguments[path]
	if !ok && len(resp.Objects) == 1 {
		for h := range resp.Objects {
			hash = h
		}
	}
	obj, ok := resp.Objects[hash]
	if !ok {
		return nil, fmt.Errorf("file/ls %s: no object in response", path)
	}
	if obj.Hash == "" {
		obj.Hash = hash
	}
	return obj.toNode(), nil
}

// ReadRange streams length bytes of the file id starting at offset. The
// reader may return fewer bytes per call than requested.
func (c *Client) ReadRange(ctx context.Context, id string, offset, length int64) (io.ReadCloser, error) {
	args := url.Values{
		"arg":    {id},
		"offset": {strconv.FormatInt(offset, 10)},
		"length": {strconv.FormatInt(length, 10)},
	}
	resp, err := c.do(ctx, "cat", args)
	if err != nil {
		return nil, err
	}
	return &streamReader{resp: resp}, nil
}

// ListPinned returns the ids of the pinned objects, sorted.
func (c *Client) ListPinned(ctx context.Context) ([]string, error) {
	var resp pinResponse
	if err := c.call(ctx, "pin/ls", url.Values{"type": {c.pinType}}, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Keys))
	for id := range resp.Keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// call performs an RPC and decodes the JSON response into out.
func (c *Client) call(ctx context.Context, cmd string, args url.Values, out interface{}) error {
	resp, err := c.do(ctx, cmd, args)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", cmd, err)
	}
	return nil
}

// do performs an RPC with retries on transient failures. On success the
// caller owns the response body.
func (c *Client) do(ctx context.Context, cmd string, args url.Values) (*http.Response, error) {
	endpoint := c.apiURL + "/api/v0/" + cmd
	if len(args) > 0 {
		endpoint += "?" + args.Encode()
	}

	resp, err := retry.DoWithData(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			metrics.RecordStoreRequest(cmd, 0, time.Since(start))
			c.setOnline(false)
			return nil, err
		}
		metrics.RecordStoreRequest(cmd, resp.StatusCode, time.Since(start))
		c.setOnline(true)

		if resp.StatusCode != http.StatusOK {
			defer resp.Body.Close()
			return nil, decodeAPIError(resp)
		}
		return resp, nil
	},
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.MaxDelay(2*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsTransient),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logging.Debug("retrying IPFS request",
				logging.String("cmd", cmd),
				logging.Int("attempt", int(n)+1),
				logging.Err(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd, err)
	}
	return resp, nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	apiErr.StatusCode = resp.StatusCode
	return apiErr
}

// IsTransient reports whether err is a transport failure worth retrying.
// Errors reported by the API are final, except gateway style statuses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	// *url.Error satisfies net.Error for every failure, so only socket level
	// errors and real timeouts count.
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// streamReader surfaces errors the node reports in the trailer once the
// body has been fully consumed.
type streamReader struct {
	resp *http.Response
}

func (s *streamReader) Read(p []byte) (int, error) {
	n, err := s.resp.Body.Read(p)
	if err == io.EOF {
		if msg := s.resp.Trailer.Get(streamErrorTrailer); msg != "" {
			return n, &APIError{Message: msg, StatusCode: s.resp.StatusCode}
		}
	}
	return n, err
}

func (s *streamReader) Close() error {
	return s.resp.Body.Close()
}
