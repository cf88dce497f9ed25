// Package model holds the core domain types of the command-dispatch and
// agent-coordination subsystem: deployments, agents, commands and the
// queue index row that backs priority-ordered dispatch.
package model

import "time"

// AgentStatus mirrors spec.md §3's Agent lifecycle states.
type AgentStatus string

const (
	AgentOnline   AgentStatus = "online"
	AgentOffline  AgentStatus = "offline"
	AgentDegraded AgentStatus = "degraded"
)

// Agent is the single execution endpoint bound 1:1 to a deployment.
type Agent struct {
	ID             string            `json:"id"`
	DeploymentHash string            `json:"deployment_hash"`
	Capabilities   []string          `json:"capabilities"`
	Version        string            `json:"version"`
	SystemInfo     map[string]string `json:"system_info,omitempty"`
	LastHeartbeat  time.Time         `json:"last_heartbeat"`
	Status         AgentStatus       `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// HasCapability reports whether the agent advertised the given tag.
func (a *Agent) HasCapability(tag string) bool {
	for _, c := range a.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// CommandStatus is the state-machine position of a Command (spec.md §4.3).
type CommandStatus string

const (
	StatusQueued    CommandStatus = "queued"
	StatusSent      CommandStatus = "sent"
	StatusExecuting CommandStatus = "executing"
	StatusCompleted CommandStatus = "completed"
	StatusFailed    CommandStatus = "failed"
	StatusCancelled CommandStatus = "cancelled"
)

// IsTerminal reports whether status admits no further transitions.
func (s CommandStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Priority is the user-facing priority label; Ordinal() gives the numeric
// ordering used by the queue (higher wins).
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Ordinal returns the numeric ordering for priority comparison: critical=3,
// high=2, normal=1, low=0. Unrecognized values sort as low.
func (p Priority) Ordinal() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the four declared priority labels.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// CommandType enumerates the built-in payload schemas (spec.md §4.4).
// Additional types may be registered by the capability catalog; the
// validator is table-driven, not a closed switch on this type.
type CommandType string

const (
	CommandHealth  CommandType = "health"
	CommandLogs    CommandType = "logs"
	CommandRestart CommandType = "restart"
)

// Command is a unit of work targeting a deployment.
type Command struct {
	CommandID         string            `json:"command_id"`
	DeploymentHash    string            `json:"deployment_hash"`
	Type              CommandType       `json:"type"`
	Status            CommandStatus     `json:"status"`
	Priority          Priority          `json:"priority"`
	Parameters        map[string]any    `json:"parameters"`
	Result            map[string]any    `json:"result,omitempty"`
	Error             *CommandError     `json:"error,omitempty"`
	CreatedBy         string            `json:"created_by"`
	CreatedAt         time.Time         `json:"created_at"`
	ScheduledFor      *time.Time        `json:"scheduled_for,omitempty"`
	SentAt            *time.Time        `json:"sent_at,omitempty"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
	TimeoutSeconds    int               `json:"timeout_seconds"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CancelRequested   bool              `json:"cancel_requested,omitempty"`
}

// CommandError is populated on a failed terminal transition.
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EffectiveCreatedAt is the timestamp used for FIFO ordering within a
// priority level: max(CreatedAt, ScheduledFor), per spec.md §4.2.
func (c *Command) EffectiveCreatedAt() time.Time {
	if c.ScheduledFor != nil && c.ScheduledFor.After(c.CreatedAt) {
		return *c.ScheduledFor
	}
	return c.CreatedAt
}

// IsVisible reports whether the command should be considered for dispatch
// at the given instant (scheduled_for in the future hides it).
func (c *Command) IsVisible(at time.Time) bool {
	return c.ScheduledFor == nil || !c.ScheduledFor.After(at)
}

// QueueEntry is the derived pending-dispatch index row (spec.md §3,
// CommandQueueEntry). It exists only while its command is StatusQueued.
type QueueEntry struct {
	CommandID          string
	DeploymentHash     string
	PriorityOrdinal    int
	EffectiveCreatedAt time.Time
}

// AuditLog is an append-only security-relevant event record.
type AuditLog struct {
	ID             string            `json:"id"`
	DeploymentHash string            `json:"deployment_hash,omitempty"`
	Action         string            `json:"action"`
	Status         string            `json:"status"`
	Details        map[string]string `json:"details,omitempty"`
	SourceAddr     string            `json:"source_addr,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// CommandHistoryEntry records one status transition for auditability.
type CommandHistoryEntry struct {
	CommandID string    `json:"command_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedBy string    `json:"changed_by"`
	Reason    string    `json:"reason,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Deployment is an external, mostly-read-only tenant identifier. The core
// only ever writes LastSeenAt.
type Deployment struct {
	DeploymentHash string            `json:"deployment_hash"`
	UserID         string            `json:"user_id"`
	LastSeenAt     time.Time         `json:"last_seen_at"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}
