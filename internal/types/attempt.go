package types

import "time"

type State string

const (
	StateInit            State = "init"
	StateVersionResolved State = "version_resolved"
	StateBuilt           State = "built"
	StateGateChecked     State = "gate_checked"
	StatePublished       State = "published"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

type Stage string

const (
	StageResolve Stage = "resolve"
	StageBuild   Stage = "build"
	StageGate    Stage = "gate"
	StagePublish Stage = "publish"
)

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Attempt is the record of a single orchestration run.
type Attempt struct {
	ID            string
	Package       string
	TriggerRef    string
	Version       Version
	Artifact      *Artifact
	State         State
	Outcome       Outcome
	FailedStage   Stage
	FailureKind   Kind
	FailureReason string
	DryRun        bool
	Receipt       *Receipt
	StartedOn     time.Time
	EndedOn       *time.Time
}

func (a *Attempt) Advance(state State) {
	a.State = state
}

func (a *Attempt) Fail(err error, now time.Time) {
	a.State = StateFailed
	a.Outcome = OutcomeFailed
	a.EndedOn = &now
	if re, ok := AsReleaseError(err); ok {
		a.FailedStage = re.Stage
		a.FailureKind = re.Kind
		a.FailureReason = re.Message
		return
	}
	a.FailureReason = err.Error()
}

func (a *Attempt) Succeed(now time.Time) {
	a.State = StateDone
	a.Outcome = OutcomeSucceeded
	a.EndedOn = &now
}
