package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sentinel-hq/aegis/pkg/enforce"
)

// Record is one enforcement call's audit trail.
type Record struct {
	// ID uniquely identifies the record.
	ID string `json:"id"`

	// RecordedAt is when the record was created.
	RecordedAt time.Time `json:"recorded_at"`

	// Intent fields.
	Layer     string `json:"layer"`
	AgentID   string `json:"agent_id,omitempty"`
	Operation string `json:"operation,omitempty"`
	Target    string `json:"target,omitempty"`

	// VectorResolved is false when the intent arrived without a usable
	// embedding.
	VectorResolved bool `json:"vector_resolved"`

	// Outcome fields.
	Decision       enforce.Decision       `json:"decision"`
	Reason         string                 `json:"reason,omitempty"`
	RulesEvaluated int                    `json:"rules_evaluated"`
	ShortCircuited bool                   `json:"short_circuited"`
	Evidence       []enforce.RuleEvidence `json:"evidence,omitempty"`
	Duration       time.Duration          `json:"duration"`
}

// Sink receives completed audit records.
type Sink interface {
	Write(ctx context.Context, rec *Record)
}

// Recorder builds audit records from enforcement calls and hands them to
// its sink. It implements enforce.AuditHook.
type Recorder struct {
	sink   Sink
	logger *slog.Logger
}

// NewRecorder creates a recorder writing to the given sink. A nil sink
// falls back to the no-op sink.
func NewRecorder(sink Sink) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	return &Recorder{
		sink:   sink,
		logger: slog.Default().With("component", "audit"),
	}
}

// RecordEnforcement builds and emits the audit record for one call.
func (r *Recorder) RecordEnforcement(ctx context.Context, intent *enforce.Intent, result *enforce.Result) {
	rec := &Record{
		ID:             uuid.NewString(),
		RecordedAt:     time.Now().UTC(),
		Decision:       result.Decision,
		Reason:         result.Reason,
		RulesEvaluated: result.RulesEvaluated,
		ShortCircuited: result.ShortCircuited,
		Evidence:       result.Evidence,
		Duration:       result.Duration,
	}
	if intent != nil {
		rec.Layer = intent.Layer
		rec.AgentID = intent.AgentID
		rec.Operation = intent.Operation
		rec.Target = intent.Target
		rec.VectorResolved = intent.Vector != nil
	}
	r.sink.Write(ctx, rec)
}

// NopSink discards records.
type NopSink struct{}

// Write discards the record.
func (NopSink) Write(ctx context.Context, rec *Record) {}

// LogSink writes each record as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to the given logger, or the default
// logger when nil.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit.sink")}
}

// Write logs the record.
func (s *LogSink) Write(ctx context.Context, rec *Record) {
	s.logger.InfoContext(ctx, "enforcement decision",
		"audit_id", rec.ID,
		"layer", rec.Layer,
		"agent_id", rec.AgentID,
		"operation", rec.Operation,
		"decision", rec.Decision,
		"reason", rec.Reason,
		"vector_resolved", rec.VectorResolved,
		"rules_evaluated", rec.RulesEvaluated,
		"short_circuited", rec.ShortCircuited,
		"duration", rec.Duration,
	)
}
