package store

import (
	"context"
	"time"
)

// Package is a published package version held by the registry server.
type Package struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Checksum    string    `json:"checksum"`
	Size        int64     `json:"size"`
	Location    string    `json:"-"`
	PublishedBy string    `json:"-"`
	PublishedOn time.Time `json:"published_on"`
}

type PackageStore interface {
	// CreatePackage inserts p and calls finalize inside the same
	// transaction. The row is only committed when finalize succeeds.
	CreatePackage(ctx context.Context, p *Package, finalize func() error) error
	ReadPackage(ctx context.Context, name, version string) (*Package, error)
	ListPackageVersions(ctx context.Context, name string) ([]*Package, error)
}
