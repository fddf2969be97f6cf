// Package gate runs mutating and provider-facing actions through a
// compliance evaluation, an optional human confirmation, and an audit
// trail. A blocked action never reaches the wrapped operation.
package gate

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/starford/tiwaz/internal/audit"
	"github.com/starford/tiwaz/internal/ethics"
	"github.com/starford/tiwaz/internal/models"
)

// Status is the terminal state of a guarded action.
type Status string

const (
	// StatusBlocked means the rule engine forbade the action outright.
	StatusBlocked Status = "blocked"
	// StatusCancelled means a warning was declined or confirmation refused.
	StatusCancelled Status = "cancelled"
	// StatusCompleted means the wrapped operation ran. Its own error, if
	// any, is carried in Outcome.Err.
	StatusCompleted Status = "completed"
)

// Outcome reports how a guarded action ended.
type Outcome struct {
	Status     Status
	Verdict    models.Verdict
	Overridden bool
	// Err is the wrapped operation's error. Only set when Status is
	// StatusCompleted; gate decisions themselves are not errors.
	Err error
}

// Executed reports whether the wrapped operation ran successfully.
func (o Outcome) Executed() bool {
	return o.Status == StatusCompleted && o.Err == nil
}

// Decider supplies the two human decision points in the state machine.
// Implementations may block (console prompt, UI modal) and should honor
// ctx cancellation by declining.
type Decider interface {
	// ApproveWarning asks whether to proceed despite a warn verdict.
	ApproveWarning(ctx context.Context, v models.Verdict) bool
	// ConfirmAction asks for the final go-ahead before execution.
	ConfirmAction(ctx context.Context, action ethics.Action) bool
}

// StaticDecider answers both decision points from fixed flags. Request
// handlers build one from override/confirm parameters; batch paths use
// Auto.
type StaticDecider struct {
	Override bool
	Confirm  bool
}

// ApproveWarning implements Decider.
func (d StaticDecider) ApproveWarning(context.Context, models.Verdict) bool { return d.Override }

// ConfirmAction implements Decider.
func (d StaticDecider) ConfirmAction(context.Context, ethics.Action) bool { return d.Confirm }

// Auto approves warnings and confirmations unconditionally, for
// non-interactive callers that opted in.
var Auto = StaticDecider{Override: true, Confirm: true}

// Gate wires the rule engine and audit sink around guarded actions.
type Gate struct {
	engine *ethics.Engine
	sink   audit.Sink
	log    *slog.Logger

	confirmEnabled atomic.Bool
}

// New builds a gate. confirmEnabled sets the initial state of the
// interactive-confirmation feature.
func New(engine *ethics.Engine, sink audit.Sink, logger *slog.Logger, confirmEnabled bool) *Gate {
	g := &Gate{engine: engine, sink: sink, log: logger}
	g.confirmEnabled.Store(confirmEnabled)
	return g
}

// ConfirmationEnabled reports the current state of the confirmation step.
func (g *Gate) ConfirmationEnabled() bool {
	return g.confirmEnabled.Load()
}

// SetConfirmation toggles the confirmation step at runtime and audits the
// change.
func (g *Gate) SetConfirmation(enabled bool, actor string) {
	g.confirmEnabled.Store(enabled)
	g.emit(models.AuditEvent{
		EventType: models.EventConfirmationToggled,
		Actor:     actor,
		Details:   map[string]any{"enabled": enabled},
	})
}

// Run drives one guarded action through the state machine:
// evaluate, then (on warn) override or cancel, then (when enabled)
// confirm or cancel, then execute. Exactly one audit event per decision
// point is emitted. The wrapped op runs only from the executing state and
// its error is reported, never absorbed.
func (g *Gate) Run(ctx context.Context, action ethics.Action, payload map[string]any, actor *ethics.Actor, evalCtx ethics.Context, decider Decider, op func(ctx context.Context) error) Outcome {
	if decider == nil {
		decider = StaticDecider{}
	}
	actorName := ""
	if actor != nil {
		actorName = actor.Name
	}

	verdict := g.engine.Evaluate(payload, action, actor, evalCtx)
	out := Outcome{Verdict: verdict}

	switch verdict.Severity {
	case models.SeverityBlock:
		g.emit(models.AuditEvent{
			EventType: models.EventEthicalBlock,
			Actor:     actorName,
			Details:   verdictDetails(action, verdict),
		})
		out.Status = StatusBlocked
		return out

	case models.SeverityWarn:
		if !decider.ApproveWarning(ctx, verdict) {
			g.emit(models.AuditEvent{
				EventType: models.EventEthicalWarnCancel,
				Actor:     actorName,
				Details:   verdictDetails(action, verdict),
			})
			out.Status = StatusCancelled
			return out
		}
		g.emit(models.AuditEvent{
			EventType: models.EventEthicalWarnOverride,
			Actor:     actorName,
			Details:   verdictDetails(action, verdict),
		})
		out.Overridden = true
	}

	if g.confirmEnabled.Load() && !decider.ConfirmAction(ctx, action) {
		g.emit(models.AuditEvent{
			EventType: models.EventActionCancelled,
			Actor:     actorName,
			Details:   map[string]any{"action": string(action)},
		})
		out.Status = StatusCancelled
		return out
	}

	err := op(ctx)
	details := map[string]any{"action": string(action), "ok": err == nil}
	if err != nil {
		details["error"] = err.Error()
	}
	g.emit(models.AuditEvent{
		EventType: models.EventActionExecuted,
		Actor:     actorName,
		Details:   details,
	})
	out.Status = StatusCompleted
	out.Err = err
	return out
}

// emit writes one audit event. A failing sink is logged and otherwise
// ignored so the trail cannot take the action path down with it.
func (g *Gate) emit(ev models.AuditEvent) {
	if g.sink == nil {
		return
	}
	if err := g.sink.Append(ev); err != nil {
		g.log.Warn("audit append failed",
			slog.String("event_type", ev.EventType),
			slog.String("error", err.Error()))
	}
}

func verdictDetails(action ethics.Action, v models.Verdict) map[string]any {
	return map[string]any{
		"action":      string(action),
		"severity":    v.Severity.String(),
		"rule":        v.RuleID,
		"reference":   v.Reference,
		"explanation": v.Explanation,
	}
}
