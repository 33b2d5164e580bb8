package staged

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Diagnostics observes stage execution. Stage callbacks fire only for stages
// that have scheduled work, not for all 256 stages of every step.
type Diagnostics interface {
	StageStart(world WorldID, stage StageID)
	StageEnd(world WorldID, stage StageID, duration time.Duration)
}

// NopDiagnostics is a no-op diagnostics implementation.
type NopDiagnostics struct{}

func (NopDiagnostics) StageStart(WorldID, StageID)              {}
func (NopDiagnostics) StageEnd(WorldID, StageID, time.Duration) {}

// LogDiagnostics logs stage execution to a printf-style logger.
type LogDiagnostics struct {
	log interface{ Printf(string, ...any) }
}

// NewLogDiagnostics creates a diagnostics handler that logs to the given
// logger.
func NewLogDiagnostics(log interface{ Printf(string, ...any) }) *LogDiagnostics {
	return &LogDiagnostics{log: log}
}

func (d *LogDiagnostics) StageStart(world WorldID, stage StageID) {
	d.log.Printf("world %d stage %d started", world, stage)
}

func (d *LogDiagnostics) StageEnd(world WorldID, stage StageID, duration time.Duration) {
	d.log.Printf("world %d stage %d finished in %v", world, stage, duration)
}

// ZapDiagnostics logs stage execution through a zap logger at debug level.
type ZapDiagnostics struct {
	log *zap.Logger
}

// NewZapDiagnostics creates a diagnostics handler over a zap logger.
func NewZapDiagnostics(log *zap.Logger) *ZapDiagnostics {
	return &ZapDiagnostics{log: log}
}

func (d *ZapDiagnostics) StageStart(world WorldID, stage StageID) {
	d.log.Debug("stage started",
		zap.Uint16("world", uint16(world)),
		zap.Uint8("stage", uint8(stage)))
}

func (d *ZapDiagnostics) StageEnd(world WorldID, stage StageID, duration time.Duration) {
	d.log.Debug("stage finished",
		zap.Uint16("world", uint16(world)),
		zap.Uint8("stage", uint8(stage)),
		zap.Duration("duration", duration))
}

// OtelDiagnostics emits one tracing span per executed world stage. Stages of
// one world never overlap, so a single in-flight span per instance suffices.
type OtelDiagnostics struct {
	tracer trace.Tracer
	span   trace.Span
}

// NewOtelDiagnostics creates a diagnostics handler emitting spans through the
// given tracer.
func NewOtelDiagnostics(tracer trace.Tracer) *OtelDiagnostics {
	return &OtelDiagnostics{tracer: tracer}
}

func (d *OtelDiagnostics) StageStart(world WorldID, stage StageID) {
	_, span := d.tracer.Start(context.Background(), "staged.stage",
		trace.WithAttributes(
			attribute.Int("world", int(world)),
			attribute.Int("stage", int(stage)),
		))
	d.span = span
}

func (d *OtelDiagnostics) StageEnd(world WorldID, stage StageID, duration time.Duration) {
	if d.span == nil {
		return
	}
	d.span.SetAttributes(attribute.Int64("duration_us", duration.Microseconds()))
	d.span.End()
	d.span = nil
}
