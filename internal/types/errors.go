package types

import (
	"context"
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidVersionFormat Kind = "InvalidVersionFormat"
	KindBuildFailed          Kind = "BuildFailed"
	KindRegistryUnreachable  Kind = "RegistryUnreachable"
	KindPublishRejected      Kind = "PublishRejected"
	KindAuthenticationFailed Kind = "AuthenticationFailed"
	KindCancelled            Kind = "Cancelled"
)

// Process exit codes reported by the CLI.
const (
	ExitOK            = 0
	ExitBuildFailed   = 1
	ExitPublishFailed = 2
	ExitInvalidTag    = 3
	ExitCancelled     = 4
	ExitUsage         = 64
)

type ReleaseError struct {
	Stage   Stage
	Kind    Kind
	Message string

	// ExitCode and Log are only set for BuildFailed.
	ExitCode int
	Log      string

	Err error
}

func (e *ReleaseError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("stage=%s kind=%s: %s", e.Stage, e.Kind, e.Message)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// WithStage returns a copy of the error attributed to stage.
func (e *ReleaseError) WithStage(stage Stage) *ReleaseError {
	c := *e
	c.Stage = stage
	return &c
}

func NewInvalidVersionFormat(format string, args ...any) *ReleaseError {
	return &ReleaseError{Kind: KindInvalidVersionFormat, Message: fmt.Sprintf(format, args...)}
}

func NewBuildFailed(exitCode int, log string, err error) *ReleaseError {
	return &ReleaseError{
		Kind:     KindBuildFailed,
		Message:  fmt.Sprintf("build exited with code %d", exitCode),
		ExitCode: exitCode,
		Log:      log,
		Err:      err,
	}
}

func NewRegistryUnreachable(err error) *ReleaseError {
	return &ReleaseError{Kind: KindRegistryUnreachable, Message: err.Error(), Err: err}
}

func NewPublishRejected(reason string) *ReleaseError {
	return &ReleaseError{Kind: KindPublishRejected, Message: reason}
}

func NewAuthenticationFailed(reason string) *ReleaseError {
	return &ReleaseError{Kind: KindAuthenticationFailed, Message: reason}
}

func NewCancelled(err error) *ReleaseError {
	return &ReleaseError{Kind: KindCancelled, Message: "release cancelled", Err: err}
}

func AsReleaseError(err error) (*ReleaseError, bool) {
	var re *ReleaseError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// KindOf returns the kind of a release error. Bare context errors count as
// Cancelled; anything else returns "".
func KindOf(err error) Kind {
	if re, ok := AsReleaseError(err); ok {
		return re.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return ""
}

func ExitCodeFor(err error) int {
	if err == nil {
		return ExitOK
	}
	switch KindOf(err) {
	case KindBuildFailed:
		return ExitBuildFailed
	case KindRegistryUnreachable, KindPublishRejected, KindAuthenticationFailed:
		return ExitPublishFailed
	case KindInvalidVersionFormat:
		return ExitInvalidTag
	case KindCancelled:
		return ExitCancelled
	default:
		return ExitUsage
	}
}
