package testutil

import (
	"context"
	"sync"

	"github.com/haatos/simple-release/internal/types"
)

// AttemptRecorder keeps a copy of every state an attempt was saved in.
type AttemptRecorder struct {
	mu     sync.Mutex
	States map[string][]types.State
}

func NewAttemptRecorder() *AttemptRecorder {
	return &AttemptRecorder{States: make(map[string][]types.State)}
}

func (r *AttemptRecorder) CreateAttempt(ctx context.Context, a *types.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.States[a.ID] = append(r.States[a.ID], a.State)
	return nil
}

func (r *AttemptRecorder) UpdateAttempt(ctx context.Context, a *types.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	states := r.States[a.ID]
	if len(states) == 0 || states[len(states)-1] != a.State {
		r.States[a.ID] = append(states, a.State)
	}
	return nil
}
