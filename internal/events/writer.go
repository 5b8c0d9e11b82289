package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Activity types recorded by the client.
const (
	ProjectCreated     = "project.created"
	ProjectUpdated     = "project.updated"
	ProjectStarted     = "project.started"
	ProjectCompleted   = "project.completed"
	ProjectDeleted     = "project.deleted"
	ProjectConcluded   = "project.concluded"
	ActionCreated      = "action.created"
	ActionAttached     = "action.attached"
	ActionAttachFailed = "action.attach_failed"
	ActionUpdated      = "action.updated"
	ActionStarted      = "action.started"
	ActionCompleted    = "action.completed"
	ActionDeleted      = "action.deleted"
	ActionConcluded    = "action.concluded"
	SessionLoggedIn    = "session.logged_in"
	SessionLoggedOut   = "session.logged_out"
	UserRegistered     = "user.registered"
	UserUpdated        = "user.updated"
	UserDeleted        = "user.deleted"
	PasswordChanged    = "user.password_changed"
	DepartmentCreated  = "department.created"
	DepartmentUpdated  = "department.updated"
)

type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type EventPayload map[string]any

// Entry is one activity to record. RequestID defaults to a fresh UUID and
// makes repeated appends of the same entry idempotent.
type Entry struct {
	Type      string
	Target    string
	EntityID  string
	ProjectID string
	ActorID   string
	RequestID string
	Payload   EventPayload
}

// Append records e. A nil tx writes directly to DB.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if e.Payload == nil {
		e.Payload = EventPayload{}
	}
	if e.RequestID == "" {
		e.RequestID = uuid.NewString()
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	const q = `INSERT INTO activity(ts,type,target,entity_id,project_id,actor_id,request_id,payload_json) VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(request_id) DO NOTHING`
	args := []any{ts, e.Type, e.Target, nullable(e.EntityID), nullable(e.ProjectID), nullable(e.ActorID), e.RequestID, string(data)}
	if tx != nil {
		_, err = tx.ExecContext(ctx, q, args...)
	} else {
		_, err = w.DB.ExecContext(ctx, q, args...)
	}
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
