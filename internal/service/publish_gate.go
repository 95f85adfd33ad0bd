package service

import (
	"context"

	"github.com/haatos/simple-release/internal/registry"
	"github.com/haatos/simple-release/internal/types"
	"github.com/rs/zerolog"
)

// PublishGate reports whether a version may still be published.
type PublishGate struct {
	registry registry.Registry
	policy   RetryPolicy
	logger   zerolog.Logger
}

func NewPublishGate(r registry.Registry, policy RetryPolicy, logger zerolog.Logger) *PublishGate {
	return &PublishGate{
		registry: r,
		policy:   policy,
		logger:   logger.With().Str("stage", string(types.StageGate)).Logger(),
	}
}

// CheckNotPublished returns true when the registry has no record of the
// version. It never reports true on an error.
func (g *PublishGate) CheckNotPublished(ctx context.Context, pkg string, version types.Version) (bool, error) {
	found := false
	err := g.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		_, err := g.registry.Lookup(ctx, pkg, version.String())
		switch {
		case err == nil:
			found = true
			return nil
		case registry.IsNotFound(err):
			found = false
			return nil
		case registry.IsTransient(err):
			g.logger.Warn().Err(err).
				Str("package", pkg).
				Int("attempt", attempt).
				Msg("registry lookup failed")
		}
		return err
	})
	if err != nil {
		return false, registryFailure(ctx, types.StageGate, err, "")
	}
	g.logger.Debug().
		Str("package", pkg).
		Str("version", version.String()).
		Bool("published", found).
		Msg("gate checked")
	return !found, nil
}
