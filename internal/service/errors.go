package service

import (
	"context"
	"errors"

	"github.com/haatos/simple-release/internal/registry"
	"github.com/haatos/simple-release/internal/security"
	"github.com/haatos/simple-release/internal/types"
)

var (
	ErrPackageExists      = errors.New("package version already exists")
	ErrChecksumMismatch   = errors.New("checksum does not match uploaded content")
	ErrInvalidPackageName = errors.New("invalid package name or version")
	ErrInvalidToken       = errors.New("invalid or revoked token")
)

// registryFailure maps a registry error, after retries, to a release error.
// Any secret is removed from the message.
func registryFailure(ctx context.Context, stage types.Stage, err error, secret string) *types.ReleaseError {
	var re *types.ReleaseError
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		re = types.NewCancelled(err)
	case registry.IsUnauthorized(err):
		re = types.NewAuthenticationFailed(registry.Message(err))
	case registry.IsConflict(err):
		re = types.NewPublishRejected("version already exists in registry")
	case registry.IsTransient(err):
		re = types.NewRegistryUnreachable(err)
	case stage == types.StageGate:
		re = types.NewRegistryUnreachable(err)
	default:
		re = types.NewPublishRejected(registry.Message(err))
	}
	re.Message = security.Redact(re.Message, secret)
	return re.WithStage(stage)
}
