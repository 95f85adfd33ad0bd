package service

import (
	"context"
	"time"

	"github.com/haatos/simple-release/internal/registry"
	"github.com/haatos/simple-release/internal/types"
	"github.com/rs/zerolog"
)

// Publisher uploads a built artifact to the registry.
type Publisher struct {
	registry registry.Registry
	policy   RetryPolicy
	logger   zerolog.Logger
	now      func() time.Time
}

func NewPublisher(r registry.Registry, policy RetryPolicy, logger zerolog.Logger) *Publisher {
	return &Publisher{
		registry: r,
		policy:   policy,
		logger:   logger.With().Str("stage", string(types.StagePublish)).Logger(),
		now:      time.Now,
	}
}

func (p *Publisher) Publish(
	ctx context.Context,
	artifact *types.Artifact,
	pkg string,
	version types.Version,
	credential types.Credential,
) (*types.Receipt, error) {
	if credential.IsEmpty() {
		return nil, types.NewAuthenticationFailed("no publish credential provided").WithStage(types.StagePublish)
	}

	var receipt *types.Receipt
	// an upload that timed out may still have landed
	uncertain := false
	err := p.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		r, err := p.registry.Upload(ctx, registry.UploadRequest{
			Name:         pkg,
			Version:      version.String(),
			ArtifactPath: artifact.Path,
			Size:         artifact.Size,
			Checksum:     artifact.Checksum,
			Credential:   credential,
		})
		if err == nil {
			receipt = r
			return nil
		}
		if registry.IsConflict(err) && uncertain {
			if r, ok := p.recover(ctx, artifact, pkg, version); ok {
				receipt = r
				return nil
			}
		}
		if registry.IsTransient(err) {
			uncertain = true
			p.logger.Warn().
				Str("package", pkg).
				Int("attempt", attempt).
				Str("error", registry.Message(err)).
				Msg("upload failed")
		}
		return err
	})
	if err != nil {
		return nil, registryFailure(ctx, types.StagePublish, err, credential.Reveal())
	}

	if receipt.Package == "" {
		receipt.Package = pkg
	}
	if receipt.Version == "" {
		receipt.Version = version.String()
	}
	if receipt.Checksum == "" {
		receipt.Checksum = artifact.Checksum
	}
	if receipt.PublishedOn.IsZero() {
		receipt.PublishedOn = p.now().UTC()
	}
	p.logger.Info().
		Str("package", pkg).
		Str("version", version.String()).
		Str("location", receipt.Location).
		Bool("recovered", receipt.Recovered).
		Msg("published")
	return receipt, nil
}

// recover treats a conflict after an uncertain attempt as success when the
// registry holds exactly this artifact.
func (p *Publisher) recover(
	ctx context.Context,
	artifact *types.Artifact,
	pkg string,
	version types.Version,
) (*types.Receipt, bool) {
	info, err := p.registry.Lookup(ctx, pkg, version.String())
	if err != nil || info.Checksum != artifact.Checksum {
		return nil, false
	}
	return &types.Receipt{
		Package:     pkg,
		Version:     version.String(),
		Checksum:    info.Checksum,
		Location:    p.registry.Name(),
		PublishedOn: info.PublishedOn,
		Recovered:   true,
	}, true
}
