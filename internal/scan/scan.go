// Package scan runs the configured Validator across every indexed
// document as a background job, so a caller can kick off a full
// re-screen (e.g. after rotating the validator's allowed-extension
// list) without blocking the request that started it. The core never
// implements malware detection itself; it only re-applies the
// Validator contract (§6.3) document by document and records the
// verdicts.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/katanaquant/ragengine/internal/store"
	"github.com/katanaquant/ragengine/internal/validate"
)

// Status is the lifecycle state of one scan job.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Finding is one document the validator flagged during a scan.
type Finding struct {
	FilePath        string `json:"file_path"`
	Severity        string `json:"severity"`
	Reason          string `json:"reason"`
	ValidationCheck string `json:"validation_check"`
}

// Snapshot is an immutable view of a job's progress, safe to encode
// directly as a JSON response body.
type Snapshot struct {
	JobID          string    `json:"job_id"`
	Status         Status    `json:"status"`
	FilesTotal     int       `json:"files_total"`
	FilesScanned   int       `json:"files_scanned"`
	Findings       []Finding `json:"findings"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
}

type job struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

func (j *job) snap() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.snapshot
}

// Runner launches and tracks validator sweeps over the backend's
// current document set, keyed by a generated job ID.
type Runner struct {
	backend   store.Backend
	validator *validate.Validator

	mu   sync.Mutex
	jobs map[string]*job
}

func NewRunner(backend store.Backend, validator *validate.Validator) *Runner {
	return &Runner{
		backend:   backend,
		validator: validator,
		jobs:      make(map[string]*job),
	}
}

// Start launches a scan in the background and returns its job ID
// immediately.
func (r *Runner) Start(ctx context.Context) string {
	id := uuid.NewString()
	j := &job{snapshot: Snapshot{JobID: id, Status: StatusRunning, StartedAt: time.Now()}}

	r.mu.Lock()
	r.jobs[id] = j
	r.mu.Unlock()

	go r.run(ctx, j)
	return id
}

func (r *Runner) run(ctx context.Context, j *job) {
	docs, err := r.backend.QueryDocumentsWithChunks(ctx)
	if err != nil {
		j.mu.Lock()
		j.snapshot.Status = StatusFailed
		j.snapshot.ErrorMessage = err.Error()
		j.snapshot.CompletedAt = time.Now()
		j.mu.Unlock()
		return
	}

	j.mu.Lock()
	j.snapshot.FilesTotal = len(docs)
	j.mu.Unlock()

	for _, doc := range docs {
		if ctx.Err() != nil {
			j.mu.Lock()
			j.snapshot.Status = StatusFailed
			j.snapshot.ErrorMessage = ctx.Err().Error()
			j.snapshot.CompletedAt = time.Now()
			j.mu.Unlock()
			return
		}

		result := r.validator.Validate(doc.FilePath)

		j.mu.Lock()
		j.snapshot.FilesScanned++
		if !result.IsValid {
			j.snapshot.Findings = append(j.snapshot.Findings, Finding{
				FilePath:        doc.FilePath,
				Severity:        string(result.Severity),
				Reason:          result.Reason,
				ValidationCheck: result.ValidationCheck,
			})
		}
		j.mu.Unlock()
	}

	j.mu.Lock()
	j.snapshot.Status = StatusCompleted
	j.snapshot.CompletedAt = time.Now()
	j.mu.Unlock()
}

// Snapshot returns the current state of a job, or false if jobID is
// unknown.
func (r *Runner) Snapshot(jobID string) (Snapshot, bool) {
	r.mu.Lock()
	j, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return j.snap(), true
}
