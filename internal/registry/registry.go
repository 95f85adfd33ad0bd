package registry

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/haatos/simple-release/internal/types"
)

// Registry is a remote package registry.
type Registry interface {
	Name() string
	// Lookup returns ErrNotFound when the version is absent.
	Lookup(ctx context.Context, name, version string) (*PackageInfo, error)
	Availability(ctx context.Context, name string) (types.Availability, error)
	Upload(ctx context.Context, req UploadRequest) (*types.Receipt, error)
}

type PackageInfo struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Checksum    string    `json:"checksum"`
	Size        int64     `json:"size"`
	PublishedOn time.Time `json:"published_on"`
}

type UploadRequest struct {
	Name         string
	Version      string
	ArtifactPath string
	Size         int64
	Checksum     string
	Credential   types.Credential
}

// Observer receives one call per registry request.
type Observer interface {
	ObserveRequest(op, result string)
}

type nopObserver struct{}

func (nopObserver) ObserveRequest(string, string) {}

type Options struct {
	RequestsPerSecond float64
	KnownHosts        string
	Credential        types.Credential
	Observer          Observer
}

// New returns the registry implementation for the URL scheme.
func New(rawURL string, opts Options) (Registry, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTPRegistry(u, WithRateLimit(opts.RequestsPerSecond), WithObserver(opts.Observer)), nil
	case "sftp":
		return NewSFTPRegistry(u, opts.Credential, opts.KnownHosts, opts.Observer)
	default:
		return nil, fmt.Errorf("unsupported registry scheme %q", u.Scheme)
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNotFound(err):
		return "not_found"
	case IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}
