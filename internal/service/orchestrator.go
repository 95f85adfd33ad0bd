package service

import (
	"context"
	"time"

	"github.com/haatos/simple-release/internal/registry"
	"github.com/haatos/simple-release/internal/types"
	"github.com/rs/zerolog"
)

type VersionSource interface {
	Resolve(triggerRef string) (types.Version, error)
}

type Gate interface {
	CheckNotPublished(ctx context.Context, pkg string, version types.Version) (bool, error)
}

type ArtifactPublisher interface {
	Publish(
		ctx context.Context,
		artifact *types.Artifact,
		pkg string,
		version types.Version,
		credential types.Credential,
	) (*types.Receipt, error)
}

// AttemptRecorder persists attempts as they move through the pipeline.
type AttemptRecorder interface {
	CreateAttempt(ctx context.Context, a *types.Attempt) error
	UpdateAttempt(ctx context.Context, a *types.Attempt) error
}

type ReleaseObserver interface {
	ObserveAttempt(pkg, outcome string)
	ObserveStage(stage string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) CreateAttempt(context.Context, *types.Attempt) error { return nil }
func (nopRecorder) UpdateAttempt(context.Context, *types.Attempt) error { return nil }

type nopReleaseObserver struct{}

func (nopReleaseObserver) ObserveAttempt(string, string)      {}
func (nopReleaseObserver) ObserveStage(string, time.Duration) {}

type Request struct {
	Package     string
	TriggerRef  string
	ProjectRoot string
	Mode        types.BuildMode
	Credential  types.Credential
	DryRun      bool
}

// Orchestrator drives one package through resolve, build, gate and publish.
// Stages run strictly in order and the first failure ends the attempt.
type Orchestrator struct {
	resolver  VersionSource
	builder   Builder
	gate      Gate
	publisher ArtifactPublisher
	recorder  AttemptRecorder
	observer  ReleaseObserver
	uuidGen   UUIDGenerator
	logger    zerolog.Logger
	now       func() time.Time
}

type OrchestratorOption func(*Orchestrator)

func WithRecorder(r AttemptRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

func WithReleaseObserver(obs ReleaseObserver) OrchestratorOption {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

func WithUUIDGenerator(g UUIDGenerator) OrchestratorOption {
	return func(o *Orchestrator) {
		o.uuidGen = g
	}
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		o.now = now
	}
}

func NewOrchestrator(
	resolver VersionSource,
	builder Builder,
	gate Gate,
	publisher ArtifactPublisher,
	logger zerolog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	o := &Orchestrator{
		resolver:  resolver,
		builder:   builder,
		gate:      gate,
		publisher: publisher,
		recorder:  nopRecorder{},
		observer:  nopReleaseObserver{},
		uuidGen:   NewUUIDGen(),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewRegistryOrchestrator wires the standard gate and publisher for r.
func NewRegistryOrchestrator(
	resolver VersionSource,
	builder Builder,
	r registry.Registry,
	policy RetryPolicy,
	logger zerolog.Logger,
	opts ...OrchestratorOption,
) *Orchestrator {
	return NewOrchestrator(
		resolver,
		builder,
		NewPublishGate(r, policy, logger),
		NewPublisher(r, policy, logger),
		logger,
		opts...,
	)
}

// Run executes one attempt. The returned attempt is always non-nil and in a
// terminal state; the error is a *types.ReleaseError when the attempt failed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*types.Attempt, error) {
	attempt := &types.Attempt{
		ID:         o.uuidGen.GenerateUUID(),
		Package:    req.Package,
		TriggerRef: req.TriggerRef,
		State:      types.StateInit,
		Outcome:    types.OutcomePending,
		DryRun:     req.DryRun,
		StartedOn:  o.now().UTC(),
	}
	logger := o.logger.With().
		Str("attempt", attempt.ID).
		Str("package", req.Package).
		Logger()
	if err := o.recorder.CreateAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		logger.Warn().Err(err).Msg("could not record attempt")
	}

	fail := func(stage types.Stage, err error) (*types.Attempt, error) {
		re := stageError(ctx, stage, err)
		attempt.Fail(re, o.now().UTC())
		o.save(ctx, logger, attempt)
		o.observer.ObserveAttempt(req.Package, string(attempt.Outcome))
		ev := logger.Error().
			Str("stage", string(re.Stage)).
			Str("kind", string(re.Kind))
		if re.Kind == types.KindBuildFailed {
			ev = ev.Int("exit_code", re.ExitCode)
		}
		ev.Msg(re.Message)
		return attempt, re
	}

	// resolve
	start := time.Now()
	version, err := o.resolver.Resolve(req.TriggerRef)
	o.observer.ObserveStage(string(types.StageResolve), time.Since(start))
	if err != nil {
		return fail(types.StageResolve, err)
	}
	attempt.Version = version
	attempt.Advance(types.StateVersionResolved)
	o.save(ctx, logger, attempt)
	logger = logger.With().Str("version", version.String()).Logger()

	// build
	if ctx.Err() != nil {
		return fail(types.StageBuild, ctx.Err())
	}
	start = time.Now()
	artifact, err := o.builder.Build(ctx, req.ProjectRoot, req.Mode, version)
	o.observer.ObserveStage(string(types.StageBuild), time.Since(start))
	if err != nil {
		return fail(types.StageBuild, err)
	}
	attempt.Artifact = artifact
	attempt.Advance(types.StateBuilt)
	o.save(ctx, logger, attempt)

	// gate
	if ctx.Err() != nil {
		return fail(types.StageGate, ctx.Err())
	}
	start = time.Now()
	notPublished, err := o.gate.CheckNotPublished(ctx, req.Package, version)
	o.observer.ObserveStage(string(types.StageGate), time.Since(start))
	if err != nil {
		return fail(types.StageGate, err)
	}
	if !notPublished {
		return fail(types.StageGate, types.NewPublishRejected("version already exists in registry"))
	}
	attempt.Advance(types.StateGateChecked)
	o.save(ctx, logger, attempt)

	if req.DryRun {
		attempt.Succeed(o.now().UTC())
		o.save(ctx, logger, attempt)
		o.observer.ObserveAttempt(req.Package, string(attempt.Outcome))
		logger.Info().Str("artifact", artifact.Path).Msg("dry run finished, skipping publish")
		return attempt, nil
	}

	// publish
	if ctx.Err() != nil {
		return fail(types.StagePublish, ctx.Err())
	}
	start = time.Now()
	receipt, err := o.publisher.Publish(ctx, artifact, req.Package, version, req.Credential)
	o.observer.ObserveStage(string(types.StagePublish), time.Since(start))
	if err != nil {
		return fail(types.StagePublish, err)
	}
	attempt.Receipt = receipt
	attempt.Advance(types.StatePublished)
	o.save(ctx, logger, attempt)

	attempt.Succeed(o.now().UTC())
	o.save(ctx, logger, attempt)
	o.observer.ObserveAttempt(req.Package, string(attempt.Outcome))
	logger.Info().Str("location", receipt.Location).Msg("release published")
	return attempt, nil
}

// save records progress without letting a history failure affect the release.
func (o *Orchestrator) save(ctx context.Context, logger zerolog.Logger, a *types.Attempt) {
	if err := o.recorder.UpdateAttempt(context.WithoutCancel(ctx), a); err != nil {
		logger.Warn().Err(err).Str("state", string(a.State)).Msg("could not record attempt")
	}
}

func stageError(ctx context.Context, stage types.Stage, err error) *types.ReleaseError {
	if re, ok := types.AsReleaseError(err); ok {
		return re.WithStage(stage)
	}
	if ctx.Err() != nil {
		return types.NewCancelled(err).WithStage(stage)
	}
	var re *types.ReleaseError
	switch stage {
	case types.StageResolve:
		re = types.NewInvalidVersionFormat("%s", err.Error())
	case types.StageBuild:
		re = &types.ReleaseError{Kind: types.KindBuildFailed, Message: err.Error(), ExitCode: -1, Err: err}
	case types.StageGate:
		re = types.NewRegistryUnreachable(err)
	default:
		re = types.NewPublishRejected(err.Error())
	}
	return re.WithStage(stage)
}
