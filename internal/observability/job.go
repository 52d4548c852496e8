package observability

import "log/slog"

// ForJob returns a logger scoped to one job, so every line it emits
// carries job_id — the convention spec §7's error-propagation policy
// relies on for correlating a failure with its record.
func ForJob(logger *slog.Logger, jobID string) *slog.Logger {
	return logger.With("job_id", jobID)
}
