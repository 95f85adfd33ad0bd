package types

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrors_ExitCodeFor(t *testing.T) {
	testcases := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, ExitOK},
		{"build failed", NewBuildFailed(2, "boom", nil), ExitBuildFailed},
		{"publish rejected", NewPublishRejected("already exists"), ExitPublishFailed},
		{"auth failed", NewAuthenticationFailed("bad token"), ExitPublishFailed},
		{"registry unreachable", NewRegistryUnreachable(errors.New("dial tcp")), ExitPublishFailed},
		{"invalid version", NewInvalidVersionFormat("bad"), ExitInvalidTag},
		{"cancelled", NewCancelled(context.Canceled), ExitCancelled},
		{"bare context cancel", context.Canceled, ExitCancelled},
		{"wrapped", fmt.Errorf("outer: %w", NewBuildFailed(1, "", nil)), ExitBuildFailed},
		{"unknown", errors.New("config broken"), ExitUsage},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ExitCodeFor(tc.err))
		})
	}
}

func TestErrors_ReleaseError(t *testing.T) {
	t.Run("success - message includes stage and kind", func(t *testing.T) {
		// arrange
		err := NewPublishRejected("already exists").WithStage(StageGate)

		// act
		msg := err.Error()

		// assert
		assert.Equal(t, "stage=gate kind=PublishRejected: already exists", msg)
	})
	t.Run("success - with stage does not mutate the original", func(t *testing.T) {
		// arrange
		original := NewAuthenticationFailed("bad token")

		// act
		staged := original.WithStage(StagePublish)

		// assert
		assert.Equal(t, Stage(""), original.Stage)
		assert.Equal(t, StagePublish, staged.Stage)
	})
	t.Run("success - unwrap exposes cause", func(t *testing.T) {
		// arrange
		cause := errors.New("connection refused")

		// act
		err := NewRegistryUnreachable(cause)

		// assert
		assert.ErrorIs(t, err, cause)
	})
}
