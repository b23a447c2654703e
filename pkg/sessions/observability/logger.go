// Package observability provides logging, metrics and tracing for the
// session history core.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import "log/slog"

// LogSessionStart logs the creation of a live session store.
func LogSessionStart(logger *slog.Logger, runID, name, reference string) {
	if logger == nil {
		return
	}
	logger.Info("session starting",
		slog.String("run_id", runID),
		slog.String("session", name),
		slog.String("reference", reference),
	)
}

// LogSessionComplete logs a clean session shutdown.
func LogSessionComplete(logger *slog.Logger, runID, name string, pruned int) {
	if logger == nil {
		return
	}
	logger.Info("session complete",
		slog.String("run_id", runID),
		slog.String("session", name),
		slog.Int("pruned", pruned),
	)
}

// LogDeselection logs the result of the rerun filter.
func LogDeselection(logger *slog.Logger, runID string, kept, deselected, carried int) {
	if logger == nil {
		return
	}
	logger.Debug("rerun filter applied",
		slog.String("run_id", runID),
		slog.Int("kept", kept),
		slog.Int("deselected", deselected),
		slog.Int("carried_forward", carried),
	)
}

// LogSkipperDisabled logs that collection skipping could not be enabled.
// This is a silent fallback to full collection, never a user error.
func LogSkipperDisabled(logger *slog.Logger, runID, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("collection skipping disabled",
		slog.String("run_id", runID),
		slog.String("reason", reason),
	)
}

// LogFilesSkipped logs how many files were short-circuited during
// collection.
func LogFilesSkipped(logger *slog.Logger, runID string, skipped int) {
	if logger == nil {
		return
	}
	logger.Info("collection files skipped",
		slog.String("run_id", runID),
		slog.Int("files", skipped),
	)
}

// LogReplayStart logs the beginning of a stored session replay.
func LogReplayStart(logger *slog.Logger, reference string, tests int) {
	if logger == nil {
		return
	}
	logger.Info("replaying stored session",
		slog.String("reference", reference),
		slog.Int("tests", tests),
	)
}
