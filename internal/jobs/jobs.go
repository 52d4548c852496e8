// Package jobs defines the job record and its lifecycle, shared by every
// component that reads or mutates a submission's state.
package jobs

import "time"

// Status is one of the five states in the job lifecycle DAG.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Step identifies which pipeline stage currently owns a processing job.
type Step string

const (
	StepScript Step = "script"
	StepAudio  Step = "audio"
	StepSlides Step = "slides"
	StepVideo  Step = "video"
)

// CanTransitionTo reports whether moving from s to next is legal under the
// DAG in spec §3: pending -> {processing, cancelled}; processing ->
// {completed, failed, cancelled}; terminal states never move again.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing || next == StatusCancelled
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

// Terminal reports whether s is one of the DAG's terminal states.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Cancellable reports whether a job in status s may still be cancelled.
func (s Status) Cancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// Record is the persisted representation of one job, mirroring spec §3.
type Record struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Status          Status     `json:"status"`
	Progress        int        `json:"progress"`
	ProgressMessage string     `json:"progress_message"`
	CurrentStep     Step       `json:"current_step,omitempty"`
	VideoPath       string     `json:"video_path,omitempty"`
	VideoSize       int64      `json:"video_size,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ClientIP        string     `json:"client_ip"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ExpiresAt       time.Time  `json:"expires_at"`
	Created         time.Time  `json:"created"`
	Updated         time.Time  `json:"updated"`
}

// Patch describes a partial update to a Record; nil fields are left
// untouched by the record store. A pointer-typed zero value (e.g. an
// empty string pointer) is a deliberate write of the zero value, distinct
// from leaving the field alone.
type Patch struct {
	Status          *Status    `json:"status,omitempty"`
	Progress        *int       `json:"progress,omitempty"`
	ProgressMessage *string    `json:"progress_message,omitempty"`
	CurrentStep     *Step      `json:"current_step,omitempty"`
	VideoPath       *string    `json:"video_path,omitempty"`
	VideoSize       *int64     `json:"video_size,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func strp(s string) *string          { return &s }
func intp(i int) *int                { return &i }
func statusp(s Status) *Status       { return &s }
func stepp(s Step) *Step             { return &s }
func timep(t time.Time) *time.Time   { return &t }

// PatchProcessing builds the patch the worker applies on claim (spec §4.6).
func PatchProcessing(now time.Time) Patch {
	return Patch{
		Status:          statusp(StatusProcessing),
		Progress:        intp(0),
		ProgressMessage: strp(""),
		CurrentStep:     stepp(""),
		StartedAt:       timep(now),
	}
}

// PatchProgress builds a progress-update patch (spec §4.8).
func PatchProgress(step Step, pct int, message string) Patch {
	return Patch{
		CurrentStep:     stepp(step),
		Progress:        intp(pct),
		ProgressMessage: strp(message),
	}
}

// PatchCompleted builds the terminal success patch (spec §4.5).
func PatchCompleted(now time.Time, videoPath string, videoSize int64) Patch {
	return Patch{
		Status:      statusp(StatusCompleted),
		Progress:    intp(100),
		VideoPath:   strp(videoPath),
		VideoSize:   &videoSize,
		CompletedAt: timep(now),
	}
}

// PatchFailed builds the terminal failure patch (spec §4.5, §7).
func PatchFailed(now time.Time, message string) Patch {
	if len(message) > 2048 {
		message = message[:2048]
	}
	return Patch{
		Status:       statusp(StatusFailed),
		ErrorMessage: strp(message),
		CompletedAt:  timep(now),
	}
}

// PatchCancelled builds the patch the HTTP cancel endpoint applies
// (spec §4.4). It never touches progress: the cancelling endpoint is not
// the job's owner and must not appear to have made stage progress.
func PatchCancelled(now time.Time) Patch {
	return Patch{
		Status:      statusp(StatusCancelled),
		CompletedAt: timep(now),
	}
}
