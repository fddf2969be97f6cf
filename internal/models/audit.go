package models

import "time"

// Audit event types emitted by the compliance gate and service layer.
const (
	EventEthicalBlock        = "ETHICAL_BLOCK"
	EventEthicalWarnOverride = "ETHICAL_WARN_OVERRIDE"
	EventEthicalWarnCancel   = "ETHICAL_WARN_CANCEL"
	EventActionCancelled     = "ACTION_CANCELLED"
	EventActionExecuted      = "ACTION_EXECUTED"
	EventSnapshotSaved       = "SNAPSHOT_SAVED"
	EventSnapshotRestored    = "SNAPSHOT_RESTORED"
	EventConfirmationToggled = "CONFIRMATION_TOGGLED"
)

// AuditEvent is one append-only entry in the audit trail. Events are
// never mutated or deleted once written.
type AuditEvent struct {
	ID        int64          `json:"id,omitempty"`
	EventType string         `json:"event_type"`
	Actor     string         `json:"actor,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
