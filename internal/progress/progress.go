// Package progress decides what to do with a file given its current
// content hash and its last recorded processing_progress row: skip,
// resume from a checkpoint, or start fresh. The row itself is plain
// store.ProgressStore state; this package is the policy layered on
// top of it.
package progress

import (
	"context"
	"fmt"

	"github.com/katanaquant/ragengine/internal/domain"
	"github.com/katanaquant/ragengine/internal/store"
)

// Action is the outcome of evaluating a file's processing state.
type Action int

const (
	// ActionStartFresh means no usable prior progress exists; begin
	// processing from chunk 0.
	ActionStartFresh Action = iota
	// ActionResume means an in_progress row for the same content hash
	// exists; continue from ResumeFromChunk.
	ActionResume
	// ActionSkip means the file is already fully indexed at this hash.
	ActionSkip
	// ActionRetry means the file previously failed or was rejected;
	// the caller should attempt processing again from scratch.
	ActionRetry
)

func (a Action) String() string {
	switch a {
	case ActionStartFresh:
		return "start_fresh"
	case ActionResume:
		return "resume"
	case ActionSkip:
		return "skip"
	case ActionRetry:
		return "retry"
	default:
		return "unknown"
	}
}

// Decision is the result of evaluating one file against its stored
// progress.
type Decision struct {
	Action          Action
	ResumeFromChunk int
}

// Tracker wraps a store.ProgressStore with the should-process-file
// policy original_source's ProcessingProgressTracker.start_processing
// and the §4.4 resumable state machine implement.
type Tracker struct {
	backend store.ProgressStore
}

func New(backend store.ProgressStore) *Tracker {
	return &Tracker{backend: backend}
}

// Evaluate decides how to handle path given its current content hash.
// It does not mutate state; callers act on the Decision and then call
// the corresponding StartProcessing/etc. themselves, so the decision
// and the side effect stay independently testable.
func (t *Tracker) Evaluate(ctx context.Context, path, hash string) (Decision, error) {
	existing, err := t.backend.GetProgress(ctx, path)
	if err != nil {
		if err == store.ErrNotFound {
			return Decision{Action: ActionStartFresh}, nil
		}
		return Decision{}, fmt.Errorf("progress: get progress for %s: %w", path, err)
	}

	switch existing.Status {
	case domain.StatusCompleted:
		if existing.FileHash == hash {
			return Decision{Action: ActionSkip}, nil
		}
		return Decision{Action: ActionStartFresh}, nil
	case domain.StatusInProgress:
		if existing.FileHash == hash {
			return Decision{Action: ActionResume, ResumeFromChunk: int(existing.LastChunkEnd)}, nil
		}
		return Decision{Action: ActionStartFresh}, nil
	case domain.StatusFailed, domain.StatusRejected:
		return Decision{Action: ActionRetry}, nil
	default:
		return Decision{Action: ActionStartFresh}, nil
	}
}
