package store

import (
	"context"
	"time"

	"github.com/haatos/simple-release/internal/types"
	"github.com/haatos/simple-release/internal/util"
)

// AttemptRecord is the persisted form of a release attempt.
type AttemptRecord struct {
	ID               string
	Package          string
	TriggerRef       string
	Version          string
	ArtifactPath     *string
	ArtifactChecksum *string
	ArtifactSize     *int64
	State            string
	Outcome          string
	FailedStage      *string
	FailureKind      *string
	FailureReason    *string
	DryRun           bool
	ReceiptLocation  *string
	StartedOn        time.Time
	EndedOn          *time.Time
}

type AttemptStore interface {
	CreateAttempt(context.Context, *types.Attempt) error
	UpdateAttempt(context.Context, *types.Attempt) error
	ReadAttemptByID(context.Context, string) (*types.Attempt, error)
	ListAttempts(ctx context.Context, pkg string, limit int) ([]*types.Attempt, error)
}

func newAttemptRecord(a *types.Attempt) *AttemptRecord {
	r := &AttemptRecord{
		ID:         a.ID,
		Package:    a.Package,
		TriggerRef: a.TriggerRef,
		Version:    a.Version.String(),
		State:      string(a.State),
		Outcome:    string(a.Outcome),
		DryRun:     a.DryRun,
		StartedOn:  a.StartedOn.UTC(),
		EndedOn:    a.EndedOn,
	}
	if a.Artifact != nil {
		r.ArtifactPath = util.AsPtr(a.Artifact.Path)
		r.ArtifactChecksum = util.AsPtr(a.Artifact.Checksum)
		r.ArtifactSize = util.AsPtr(a.Artifact.Size)
	}
	if a.State == types.StateFailed {
		r.FailedStage = util.AsPtr(string(a.FailedStage))
		r.FailureKind = util.AsPtr(string(a.FailureKind))
		r.FailureReason = util.AsPtr(a.FailureReason)
	}
	if a.Receipt != nil {
		r.ReceiptLocation = util.AsPtr(a.Receipt.Location)
	}
	return r
}

func (r *AttemptRecord) Attempt() *types.Attempt {
	a := &types.Attempt{
		ID:         r.ID,
		Package:    r.Package,
		TriggerRef: r.TriggerRef,
		Version:    types.NewVersion(r.Version),
		State:      types.State(r.State),
		Outcome:    types.Outcome(r.Outcome),
		DryRun:     r.DryRun,
		StartedOn:  r.StartedOn,
		EndedOn:    r.EndedOn,
	}
	if r.ArtifactPath != nil {
		a.Artifact = &types.Artifact{Path: *r.ArtifactPath}
		if r.ArtifactChecksum != nil {
			a.Artifact.Checksum = *r.ArtifactChecksum
		}
		if r.ArtifactSize != nil {
			a.Artifact.Size = *r.ArtifactSize
		}
	}
	if r.FailedStage != nil {
		a.FailedStage = types.Stage(*r.FailedStage)
	}
	if r.FailureKind != nil {
		a.FailureKind = types.Kind(*r.FailureKind)
	}
	if r.FailureReason != nil {
		a.FailureReason = *r.FailureReason
	}
	if r.ReceiptLocation != nil {
		a.Receipt = &types.Receipt{
			Package:  r.Package,
			Version:  r.Version,
			Location: *r.ReceiptLocation,
		}
		if a.Artifact != nil {
			a.Receipt.Checksum = a.Artifact.Checksum
		}
	}
	return a
}
