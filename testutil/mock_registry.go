package testutil

import (
	"context"

	"github.com/haatos/simple-release/internal/registry"
	"github.com/haatos/simple-release/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockRegistry) Lookup(ctx context.Context, name, version string) (*registry.PackageInfo, error) {
	args := m.Called(ctx, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registry.PackageInfo), args.Error(1)
}

func (m *MockRegistry) Availability(ctx context.Context, name string) (types.Availability, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(types.Availability), args.Error(1)
}

func (m *MockRegistry) Upload(ctx context.Context, req registry.UploadRequest) (*types.Receipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Receipt), args.Error(1)
}
