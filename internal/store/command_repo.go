package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentbridge/agentbridge/internal/apierr"
	"github.com/agentbridge/agentbridge/internal/model"
)

// CommandRepo persists commands and the derived dispatch queue index,
// grounded on the teacher's events.SQLiteStore (composite index, JSON
// payload column) and tasks.Store (status-driven upsert, RecordHistory).
type CommandRepo struct {
	db *sql.DB
}

func NewCommandRepo(db *sql.DB) *CommandRepo { return &CommandRepo{db: db} }

// Create inserts a new queued command and its queue index row in one
// transaction, so a reader never observes a command without its index.
func (r *CommandRepo) Create(c *model.Command) error {
	params, _ := json.Marshal(c.Parameters)
	meta, _ := json.Marshal(c.Metadata)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin create command: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO commands (command_id, deployment_hash, type, status, priority, parameters,
			created_by, created_at, scheduled_for, updated_at, timeout_seconds, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.CommandID, c.DeploymentHash, c.Type, model.StatusQueued, c.Priority, string(params),
		c.CreatedBy, c.CreatedAt, c.ScheduledFor, c.CreatedAt, c.TimeoutSeconds, string(meta))
	if err != nil {
		return fmt.Errorf("insert command: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO command_queue (command_id, deployment_hash, priority_ordinal, effective_created_at)
		VALUES (?, ?, ?, ?)
	`, c.CommandID, c.DeploymentHash, c.Priority.Ordinal(), c.EffectiveCreatedAt())
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}

	return tx.Commit()
}

// ClaimNext atomically selects and removes the highest-priority, oldest
// visible queue entry for deploymentHash, transitions the underlying
// command to sent, and returns it. Returns apierr.KindNotFound if the
// queue is empty. The single-writer SQLite connection pool (db.go) plus
// this transaction give at-most-once claim semantics without a
// SELECT ... FOR UPDATE SKIP LOCKED clause SQLite doesn't support.
//
// excludeCommandID, when non-empty, skips that command id even if it is
// still the head of the queue. This backs the long-poll's last_command_id
// dedup contract (spec.md §4.2): a reconnecting agent that already holds a
// command must not be handed the same one again by the retry loop that
// re-claims after its wait wakes up.
func (r *CommandRepo) ClaimNext(deploymentHash string, now time.Time, excludeCommandID string) (*model.Command, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback()

	var commandID string
	err = tx.QueryRow(`
		SELECT command_id FROM command_queue
		WHERE deployment_hash = ? AND effective_created_at <= ? AND command_id != ?
		ORDER BY priority_ordinal DESC, effective_created_at ASC
		LIMIT 1
	`, deploymentHash, now, excludeCommandID).Scan(&commandID)
	if err == sql.ErrNoRows {
		return nil, apierr.New(apierr.KindNotFound, "no pending command")
	}
	if err != nil {
		return nil, fmt.Errorf("select next queue entry: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM command_queue WHERE command_id = ?`, commandID); err != nil {
		return nil, fmt.Errorf("delete queue entry: %w", err)
	}

	if _, err := tx.Exec(`
		UPDATE commands SET status = ?, sent_at = ?, updated_at = ? WHERE command_id = ?
	`, model.StatusSent, now, now, commandID); err != nil {
		return nil, fmt.Errorf("mark command sent: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO command_history (command_id, from_status, to_status, changed_by, reason, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, commandID, model.StatusQueued, model.StatusSent, "dispatcher", "claimed by long-poll", now); err != nil {
		return nil, fmt.Errorf("record claim history: %w", err)
	}

	row := tx.QueryRow(`
		SELECT command_id, deployment_hash, type, status, priority, parameters, result,
			error_code, error_message, created_by, created_at, scheduled_for, sent_at,
			started_at, completed_at, updated_at, timeout_seconds, metadata, cancel_requested
		FROM commands WHERE command_id = ?
	`, commandID)
	cmd, err := scanCommand(row)
	if err != nil {
		return nil, fmt.Errorf("reload claimed command: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim: %w", err)
	}
	return cmd, nil
}

// Transition applies a status change, enforcing terminal-state immutability
// and recording a history row. A transition out of queued also removes the
// command's queue row in the same transaction. Returns apierr.KindConflict
// if from is already terminal or does not match the stored status.
func (r *CommandRepo) Transition(commandID string, from, to model.CommandStatus, changedBy, reason string, result map[string]any, cmdErr *model.CommandError, now time.Time) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback()

	var current string
	if err := tx.QueryRow(`SELECT status FROM commands WHERE command_id = ?`, commandID).Scan(&current); err != nil {
		if err == sql.ErrNoRows {
			return apierr.New(apierr.KindNotFound, "command not found")
		}
		return fmt.Errorf("read current status: %w", err)
	}

	if model.CommandStatus(current).IsTerminal() {
		return apierr.New(apierr.KindConflict, "command is already in a terminal state")
	}
	if model.CommandStatus(current) != from {
		return apierr.New(apierr.KindConflict, fmt.Sprintf("expected status %s, found %s", from, current))
	}

	resultJSON, _ := json.Marshal(result)
	var errCode, errMsg sql.NullString
	if cmdErr != nil {
		errCode = sql.NullString{String: cmdErr.Code, Valid: true}
		errMsg = sql.NullString{String: cmdErr.Message, Valid: true}
	}

	var startedAt, completedAt any
	switch to {
	case model.StatusExecuting:
		startedAt = now
	case model.StatusCompleted, model.StatusFailed, model.StatusCancelled:
		completedAt = now
	}

	_, err = tx.Exec(`
		UPDATE commands SET status = ?, result = ?, error_code = ?, error_message = ?,
			started_at = COALESCE(?, started_at), completed_at = COALESCE(?, completed_at),
			updated_at = ?
		WHERE command_id = ?
	`, to, string(resultJSON), errCode, errMsg, startedAt, completedAt, now, commandID)
	if err != nil {
		return fmt.Errorf("update command status: %w", err)
	}

	if from == model.StatusQueued {
		if _, err := tx.Exec(`DELETE FROM command_queue WHERE command_id = ?`, commandID); err != nil {
			return fmt.Errorf("delete queue entry: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO command_history (command_id, from_status, to_status, changed_by, reason, changed_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, commandID, from, to, changedBy, reason, now)
	if err != nil {
		return fmt.Errorf("record transition history: %w", err)
	}

	return tx.Commit()
}

// ListTimedOut returns sent/executing commands whose individually configured
// timeout_seconds window has elapsed as of now, for the reaper to fail. Each
// command carries its own timeout, so this filters in Go after a single
// query rather than expressing per-row datetime arithmetic in SQL.
func (r *CommandRepo) ListTimedOut(now time.Time) ([]*model.Command, error) {
	rows, err := r.db.Query(`
		SELECT command_id, deployment_hash, type, status, priority, parameters, result,
			error_code, error_message, created_by, created_at, scheduled_for, sent_at,
			started_at, completed_at, updated_at, timeout_seconds, metadata, cancel_requested
		FROM commands WHERE status IN (?, ?) AND sent_at IS NOT NULL
	`, model.StatusSent, model.StatusExecuting)
	if err != nil {
		return nil, fmt.Errorf("query sent/executing commands: %w", err)
	}
	defer rows.Close()

	var out []*model.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command row: %w", err)
		}
		if c.SentAt == nil {
			continue
		}
		deadline := c.SentAt.Add(time.Duration(c.TimeoutSeconds) * time.Second)
		if now.After(deadline) {
			out = append(out, c)
		}
	}
	return out, rows.Err()
}

// RequestCancel flags a sent/executing command for cooperative cancellation
// on its next payload, per the piggyback design in SPEC_FULL.md §5-9.
func (r *CommandRepo) RequestCancel(commandID string) error {
	res, err := r.db.Exec(`
		UPDATE commands SET cancel_requested = 1
		WHERE command_id = ? AND status IN (?, ?)
	`, commandID, model.StatusSent, model.StatusExecuting)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apierr.New(apierr.KindConflict, "command is not in a cancellable state")
	}
	return nil
}

// GetByID fetches a single command.
func (r *CommandRepo) GetByID(commandID string) (*model.Command, error) {
	row := r.db.QueryRow(`
		SELECT command_id, deployment_hash, type, status, priority, parameters, result,
			error_code, error_message, created_by, created_at, scheduled_for, sent_at,
			started_at, completed_at, updated_at, timeout_seconds, metadata, cancel_requested
		FROM commands WHERE command_id = ?
	`, commandID)
	c, err := scanCommand(row)
	if err == sql.ErrNoRows {
		return nil, apierr.New(apierr.KindNotFound, "command not found")
	}
	if err != nil {
		return nil, fmt.Errorf("scan command: %w", err)
	}
	return c, nil
}

// ListByDeployment returns commands for a deployment, newest first.
func (r *CommandRepo) ListByDeployment(deploymentHash string, limit int) ([]*model.Command, error) {
	rows, err := r.db.Query(`
		SELECT command_id, deployment_hash, type, status, priority, parameters, result,
			error_code, error_message, created_by, created_at, scheduled_for, sent_at,
			started_at, completed_at, updated_at, timeout_seconds, metadata, cancel_requested
		FROM commands WHERE deployment_hash = ? ORDER BY created_at DESC LIMIT ?
	`, deploymentHash, limit)
	if err != nil {
		return nil, fmt.Errorf("query commands: %w", err)
	}
	defer rows.Close()

	var out []*model.Command
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, fmt.Errorf("scan command row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// History returns the ordered state-transition trail for a command.
func (r *CommandRepo) History(commandID string) ([]*model.CommandHistoryEntry, error) {
	rows, err := r.db.Query(`
		SELECT command_id, from_status, to_status, changed_by, reason, changed_at
		FROM command_history WHERE command_id = ? ORDER BY changed_at ASC
	`, commandID)
	if err != nil {
		return nil, fmt.Errorf("query command history: %w", err)
	}
	defer rows.Close()

	var out []*model.CommandHistoryEntry
	for rows.Next() {
		var h model.CommandHistoryEntry
		var reason sql.NullString
		if err := rows.Scan(&h.CommandID, &h.From, &h.To, &h.ChangedBy, &reason, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		h.Reason = reason.String
		out = append(out, &h)
	}
	return out, rows.Err()
}

func scanCommand(s rowScanner) (*model.Command, error) {
	var c model.Command
	var params, result, meta sql.NullString
	var errCode, errMsg sql.NullString
	var scheduledFor, sentAt, startedAt, completedAt sql.NullTime
	var cancelRequested int

	err := s.Scan(&c.CommandID, &c.DeploymentHash, &c.Type, &c.Status, &c.Priority, &params,
		&result, &errCode, &errMsg, &c.CreatedBy, &c.CreatedAt, &scheduledFor, &sentAt,
		&startedAt, &completedAt, &c.UpdatedAt, &c.TimeoutSeconds, &meta, &cancelRequested)
	if err != nil {
		return nil, err
	}

	if params.Valid && params.String != "" {
		_ = json.Unmarshal([]byte(params.String), &c.Parameters)
	}
	if result.Valid && result.String != "" && result.String != "null" {
		_ = json.Unmarshal([]byte(result.String), &c.Result)
	}
	if meta.Valid && meta.String != "" {
		_ = json.Unmarshal([]byte(meta.String), &c.Metadata)
	}
	if errCode.Valid {
		c.Error = &model.CommandError{Code: errCode.String, Message: errMsg.String}
	}
	if scheduledFor.Valid {
		c.ScheduledFor = &scheduledFor.Time
	}
	if sentAt.Valid {
		c.SentAt = &sentAt.Time
	}
	if startedAt.Valid {
		c.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	c.CancelRequested = cancelRequested != 0

	return &c, nil
}
