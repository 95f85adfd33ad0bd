package testutil

import (
	"context"

	"github.com/haatos/simple-release/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockBuilder struct {
	mock.Mock
}

func (m *MockBuilder) Build(
	ctx context.Context,
	projectRoot string,
	mode types.BuildMode,
	version types.Version,
) (*types.Artifact, error) {
	args := m.Called(ctx, projectRoot, mode, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Artifact), args.Error(1)
}
