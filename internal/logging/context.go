package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one ingest run.
	FieldRunID = "run_id"
	// FieldWorker is the index of the pipeline worker handling a group.
	FieldWorker = "worker"
	// FieldGroup is the image group name.
	FieldGroup = "group"
	// FieldStage is the pipeline stage name.
	FieldStage = "stage"
	// FieldErrorKind classifies a logged error.
	FieldErrorKind = "error_kind"
)

type contextKey int

const (
	runIDKey contextKey = iota
	workerKey
	groupKey
	stageKey
)

// WithRunID tags ctx with the ingest run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithWorker tags ctx with a worker index.
func WithWorker(ctx context.Context, worker int) context.Context {
	return context.WithValue(ctx, workerKey, worker)
}

// WithGroup tags ctx with an image group name.
func WithGroup(ctx context.Context, group string) context.Context {
	return context.WithValue(ctx, groupKey, group)
}

// WithStage tags ctx with a pipeline stage.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// RunIDFromContext returns the run id stored by WithRunID.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if worker, ok := ctx.Value(workerKey).(int); ok {
		fields = append(fields, slog.Int(FieldWorker, worker))
	}
	if group, ok := ctx.Value(groupKey).(string); ok && group != "" {
		fields = append(fields, slog.String(FieldGroup, group))
	}
	if stage, ok := ctx.Value(stageKey).(string); ok && stage != "" {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
