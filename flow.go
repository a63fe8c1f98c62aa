package authflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/rentoapp/authflow/internal/audit"
)

// Flow is the identity resolver and flow router. It holds no per-traversal
// state: callers pass the [FlowContext] returned by one step into the next.
// Flow is safe for concurrent use.
type Flow struct {
	config  Config
	backend Backend
	logger  *zap.Logger
	metrics *Metrics
	audit   *internalaudit.Dispatcher
	sleep   func(ctx context.Context, d time.Duration) error
}

// Close drains pending audit events. The flow must not be used afterwards.
func (f *Flow) Close() {
	if f == nil {
		return
	}
	f.audit.Close()
	_ = f.logger.Sync()
}

// MetricsSnapshot returns a copy of the flow counters.
func (f *Flow) MetricsSnapshot() MetricsSnapshot {
	if f == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return f.metrics.Snapshot()
}

// AuditDropped returns the number of audit events lost to backpressure.
func (f *Flow) AuditDropped() uint64 {
	if f == nil {
		return 0
	}
	return f.audit.Dropped()
}

func (f *Flow) metricInc(id MetricID) {
	f.metrics.Inc(id)
}

// call runs one backend operation. A panic inside the backend is converted
// into a transport error so that no failure escapes the flow.
func (f *Flow) call(
	ctx context.Context,
	op string,
	fn func(ctx context.Context) (AuthResult, error),
) (res AuthResult, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res = AuthResult{}
			err = fmt.Errorf("%s: backend panic: %v", op, r)
		}
		f.metrics.Observe(MetricBackendLatency, time.Since(start))
		if err != nil {
			f.metricInc(MetricTransportError)
			f.logger.Warn("backend call failed",
				zap.String("op", op),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
		}
	}()
	return fn(ctx)
}

func stay(step Step, fc FlowContext) Transition {
	return Transition{From: step, To: step, Flow: fc}
}

func advance(step Step, fc FlowContext, ev Event, res AuthResult) Transition {
	return Transition{From: step, To: Next(step, fc.Journey, ev), Flow: fc, Result: res}
}

func messageOr(msg, fallback string) string {
	if msg != "" {
		return msg
	}
	return fallback
}

// reject keeps the flow on step because validation failed before any backend call.
func (f *Flow) reject(ctx context.Context, step Step, fc FlowContext, violations []Violation) Transition {
	f.metricInc(MetricValidationRejected)
	t := stay(step, fc)
	t.Violations = violations
	t.Message = violations[0].Message
	f.emitAudit(ctx, auditEventValidationRejected, t, false, auditErrValidation, func() map[string]string {
		return map[string]string{"field": violations[0].Field}
	})
	return f.logged(t)
}

// transportFailure keeps the flow on step with a generic message.
func (f *Flow) transportFailure(ctx context.Context, step Step, fc FlowContext, msg string) Transition {
	t := stay(step, fc)
	t.Message = msg
	f.emitAudit(ctx, auditEventTransportError, t, false, auditErrTransport, nil)
	return f.logged(t)
}

func (f *Flow) logged(t Transition) Transition {
	if ce := f.logger.Check(zap.DebugLevel, "flow transition"); ce != nil {
		ce.Write(
			zap.Stringer("from", t.From),
			zap.Stringer("to", t.To),
			zap.String("journey", string(t.Flow.Journey)),
			zap.String("kind", string(t.Flow.Identifier.Kind)),
			zap.String("identifier", maskIdentifier(t.Flow.Identifier)),
			zap.Bool("success", t.Result.Success),
			zap.String("message", t.Message),
		)
	}
	return t
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requireContext rejects a FlowContext that does not carry a classified
// identifier and one of the accepted journeys.
func (f *Flow) requireContext(ctx context.Context, step Step, fc FlowContext, journeys ...Journey) (Transition, bool) {
	if strings.TrimSpace(fc.Identifier.Value) == "" || !fc.Identifier.Kind.Valid() {
		return f.reject(ctx, step, fc, []Violation{{Field: "identifier", Message: MsgRequired}}), false
	}
	for _, j := range journeys {
		if fc.Journey == j {
			return Transition{}, true
		}
	}
	f.logger.Error("flow context journey not accepted on step",
		zap.Stringer("step", step),
		zap.String("journey", string(fc.Journey)),
	)
	return f.reject(ctx, step, fc, []Violation{{Field: "journey", Message: MsgGeneric}}), false
}
