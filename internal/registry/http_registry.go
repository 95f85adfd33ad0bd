package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/haatos/simple-release/internal"
	"github.com/haatos/simple-release/internal/types"
	"golang.org/x/time/rate"
)

// HTTPRegistry talks to a registry served by `release registry serve` or
// anything speaking the same /api/v1/packages protocol.
type HTTPRegistry struct {
	baseURL  *url.URL
	client   *http.Client
	limiter  *rate.Limiter
	observer Observer
}

type HTTPOption func(*HTTPRegistry)

func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPRegistry) {
		r.client = c
	}
}

// WithRateLimit paces requests; rps <= 0 disables pacing.
func WithRateLimit(rps float64) HTTPOption {
	return func(r *HTTPRegistry) {
		if rps <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithObserver(o Observer) HTTPOption {
	return func(r *HTTPRegistry) {
		r.observer = o
	}
}

func NewHTTPRegistry(baseURL *url.URL, opts ...HTTPOption) *HTTPRegistry {
	r := &HTTPRegistry{
		baseURL:  baseURL,
		client:   &http.Client{},
		limiter:  rate.NewLimiter(rate.Inf, 0),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HTTPRegistry) Name() string {
	return r.baseURL.Host
}

func (r *HTTPRegistry) packageURL(parts ...string) string {
	u := *r.baseURL
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/v1/packages/" + strings.Join(escaped, "/")
	return u.String()
}

func (r *HTTPRegistry) do(req *http.Request) (*http.Response, error) {
	if err := r.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return r.client.Do(req)
}

func (r *HTTPRegistry) Lookup(ctx context.Context, name, version string) (info *PackageInfo, err error) {
	defer func() { r.observer.ObserveRequest("lookup", resultLabel(err)) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.packageURL(name, version), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := r.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		info = new(PackageInfo)
		if err := json.NewDecoder(resp.Body).Decode(info); err != nil {
			return nil, fmt.Errorf("err decoding package info: %w", err)
		}
		return info, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	default:
		return nil, readStatusError(resp)
	}
}

// Availability reports whether a package name is taken. Unexpected statuses
// yield Unknown without an error.
func (r *HTTPRegistry) Availability(ctx context.Context, name string) (a types.Availability, err error) {
	defer func() { r.observer.ObserveRequest("availability", resultLabel(err)) }()

	if name == "" {
		return types.Unknown, fmt.Errorf("package name can't be empty")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.packageURL(name), nil)
	if err != nil {
		return types.Unknown, err
	}
	resp, err := r.do(req)
	if err != nil {
		return types.Unknown, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		return types.Unavailable, nil
	case http.StatusNotFound:
		return types.Available, nil
	default:
		return types.Unknown, nil
	}
}

func (r *HTTPRegistry) Upload(ctx context.Context, ur UploadRequest) (receipt *types.Receipt, err error) {
	defer func() { r.observer.ObserveRequest("upload", resultLabel(err)) }()

	f, err := os.Open(ur.ArtifactPath)
	if err != nil {
		return nil, fmt.Errorf("err opening artifact: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, r.packageURL(ur.Name, ur.Version), f)
	if err != nil {
		return nil, err
	}
	req.ContentLength = ur.Size
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(internal.ChecksumHeader, ur.Checksum)
	req.Header.Set("Authorization", "Bearer "+ur.Credential.Reveal())

	resp, err := r.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, readStatusError(resp)
	}
	receipt = new(types.Receipt)
	if err := json.NewDecoder(resp.Body).Decode(receipt); err != nil {
		return nil, fmt.Errorf("err decoding receipt: %w", err)
	}
	return receipt, nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := &StatusError{StatusCode: resp.StatusCode}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		se.Message = payload.Message
	} else {
		se.Message = strings.TrimSpace(string(body))
	}
	return se
}
