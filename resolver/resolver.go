// Package resolver turns content locators into bytes.
//
// ipfs:// locators are rewritten through an HTTP gateway; anything else is
// fetched as-is. When a storage.CAS is configured, content addressed by a
// CIDv1 raw sha2-256 CID is served from and written back to the mirror.
package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"xdao.co/gridstore/cidutil"
	"xdao.co/gridstore/pointer"
	"xdao.co/gridstore/storage"
)

// Config configures the resolver.
type Config struct {
	Gateway   string        // IPFS gateway base URL. Default: DefaultGateway.
	Timeout   time.Duration // HTTP timeout. Default: 15s.
	MaxBytes  int64         // Max response body size. Default: 8MB.
	UserAgent string
}

func (c *Config) defaults() {
	if c.Gateway == "" {
		c.Gateway = DefaultGateway
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 8 << 20
	}
	if c.UserAgent == "" {
		c.UserAgent = "gridstore/1.0"
	}
}

var errTooLarge = errors.New("response body exceeds size limit")

type Resolver struct {
	cfg    Config
	client *http.Client
	cas    storage.CAS
	log    *zap.Logger
}

type Option func(*Resolver)

// WithCAS mirrors raw-CID content through cas.
func WithCAS(cas storage.CAS) Option { return func(r *Resolver) { r.cas = cas } }

func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// WithHTTPClient replaces the default client. Config.Timeout is not applied
// to a caller-supplied client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Resolver) {
		if c != nil {
			r.client = c
		}
	}
}

func New(cfg Config, opts ...Option) *Resolver {
	cfg.defaults()
	r := &Resolver{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) Gateway() string { return r.cfg.Gateway }

// URL returns the fetchable URL for locator using the configured gateway.
func (r *Resolver) URL(locator string) string {
	return ToFetchableURL(r.cfg.Gateway, locator)
}

// Fetch performs a single GET for locator. There are no retries.
func (r *Resolver) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if locator == "" {
		return nil, ErrEmptyLocator
	}

	id, rest, isCID := cidutil.ParseLocator(locator)
	mirrored := isCID && rest == "" && cidutil.IsRawSHA256(id) && r.cas != nil
	if mirrored {
		if b, err := r.cas.Get(id); err == nil {
			r.log.Debug("mirror hit", zap.String("cid", id.String()))
			return b, nil
		} else if !storage.IsNotFound(err) {
			r.log.Warn("mirror read failed", zap.String("cid", id.String()), zap.Error(err))
		}
	}

	body, err := r.get(ctx, r.URL(locator))
	if err != nil {
		return nil, err
	}

	if mirrored {
		if !cidutil.Matches(id, body) {
			r.log.Warn("gateway content does not match cid, not mirrored", zap.String("cid", id.String()))
		} else if _, err := r.cas.Put(body); err != nil {
			r.log.Warn("mirror write failed", zap.String("cid", id.String()), zap.Error(err))
		}
	}
	return body, nil
}

func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", r.cfg.UserAgent)
	req.Header.Set("Accept", "application/json, */*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, r.cfg.MaxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if int64(len(body)) > r.cfg.MaxBytes {
		return nil, &FetchError{URL: url, Err: errTooLarge}
	}
	return body, nil
}

// FetchJSON fetches locator and returns the body if it is valid JSON. Any
// failure is logged and reported as nil.
func (r *Resolver) FetchJSON(ctx context.Context, locator string) json.RawMessage {
	body, err := r.Fetch(ctx, locator)
	if err != nil {
		r.log.Warn("fetch failed", zap.String("locator", locator), zap.Error(err))
		return nil
	}
	if !json.Valid(body) {
		r.log.Warn("fetched content is not json", zap.String("locator", locator), zap.Int("bytes", len(body)))
		return nil
	}
	return json.RawMessage(body)
}

// FetchPointer fetches the pointer's locator and checks the bytes against
// its hash. Unverified pointers skip the check.
func (r *Resolver) FetchPointer(ctx context.Context, p *pointer.Pointer) ([]byte, error) {
	if p == nil {
		return nil, ErrEmptyLocator
	}
	body, err := r.Fetch(ctx, p.Locator)
	if err != nil {
		return nil, err
	}
	if err := p.Verify(body); err != nil {
		return nil, fmt.Errorf("%w: %s (want %s)", ErrIntegrity, p.Locator, p.HashHex())
	}
	return body, nil
}
