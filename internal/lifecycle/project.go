package lifecycle

import (
	"strings"
	"time"

	"fivew2h/internal/domain"
	"fivew2h/internal/failure"
)

// ProjectState is the view-model of one project detail view.
type ProjectState struct {
	Project domain.Project
	Actions []domain.Action
	// Unresolved lists linked actions whose status could not be loaded.
	// Completion stays unavailable while any are left.
	Unresolved []domain.ID

	// Busy is set while a request is in flight; new requests are dropped.
	Busy bool
	// Pending is the operation awaiting its response.
	Pending Op
	// AwaitingConfirmation is set between Delete and ConfirmDelete.
	AwaitingConfirmation bool
	// Removed is set once the backend accepted the deletion.
	Removed bool
	// Err is the last rejection or failure, shown until the next event.
	Err error

	inFlight Call
}

// NewProjectState builds the view-model from fetched data. Only the
// project's own live actions are kept.
func NewProjectState(p domain.Project, actions []domain.Action) ProjectState {
	return ProjectState{Project: p, Actions: ownActions(p.ID, actions)}
}

func ownActions(projectID domain.ID, actions []domain.Action) []domain.Action {
	out := make([]domain.Action, 0, len(actions))
	for _, a := range actions {
		if a.IsDeleted {
			continue
		}
		if !a.ProjectID.IsZero() && a.ProjectID != projectID {
			continue
		}
		out = append(out, a)
	}
	return out
}

// Controls returns the offered operations, all disabled while busy.
func (s ProjectState) Controls() Controls {
	cs := ProjectControls(s.Project, s.Actions)
	if len(s.Unresolved) > 0 {
		cs = cs.disable(OpComplete, ReasonActionsUnknown)
	}
	if s.Busy {
		return cs.disableAll(ReasonBusy)
	}
	return cs
}

// ConclusionEditorVisible is derived from data only, so a stored conclusion
// keeps the editor hidden across reloads.
func (s ProjectState) ConclusionEditorVisible() bool {
	return s.Project.Status == domain.ProjectCompleted && !s.Project.Concluded()
}

// Apply runs one event through the project rules.
func (s ProjectState) Apply(ev Event, now time.Time) (ProjectState, Effect) {
	switch ev.(type) {
	case Succeeded, Failed, Reloaded, ActionAdded:
	default:
		if s.Busy {
			return s, nil
		}
		s.Err = nil
	}
	id := s.Project.ID

	switch e := ev.(type) {
	case Start:
		if s.Project.Status != domain.ProjectCreated {
			return s.reject(OpStart, "only created projects can be started")
		}
		return s.send(Call{Target: TargetProject, Op: OpStart, ID: id})

	case Complete:
		if s.Project.Status != domain.ProjectInProgress {
			return s.reject(OpComplete, "only in-progress projects can be completed")
		}
		if !ActionsComplete(s.Actions) {
			return s.reject(OpComplete, ReasonActionsIncomplete)
		}
		if len(s.Unresolved) > 0 {
			return s.reject(OpComplete, ReasonActionsUnknown)
		}
		return s.send(Call{Target: TargetProject, Op: OpComplete, ID: id, Text: strings.TrimSpace(e.Conclusion)})

	case AddAction:
		if s.Project.Status != domain.ProjectInProgress {
			return s.reject(OpAddAction, "actions can only be added to in-progress projects")
		}
		return s, OpenActionForm{ProjectID: id}

	case ActionAdded:
		s.Actions = append(s.Actions, e.Action)
		s.Project.ActionIDs = append(s.Project.ActionIDs, e.Action.ID)
		return s, nil

	case Delete:
		if s.Project.Status == domain.ProjectCompleted {
			return s.reject(OpDelete, "completed projects cannot be deleted")
		}
		s.AwaitingConfirmation = true
		return s, Confirm{Target: TargetProject, ID: id, Prompt: "Delete project " + s.Project.Title + "? This cannot be undone."}

	case CancelDelete:
		s.AwaitingConfirmation = false
		return s, nil

	case ConfirmDelete:
		if !s.AwaitingConfirmation {
			return s.reject(OpDelete, "deletion was not requested")
		}
		s.AwaitingConfirmation = false
		return s.send(Call{Target: TargetProject, Op: OpDelete, ID: id})

	case Update:
		if !s.Project.Editable() {
			return s.reject(OpUpdate, ReasonNotEditable)
		}
		changes := e.Changes
		if strings.TrimSpace(changes.Title) == "" {
			s.Err = &failure.ValidationFailure{Fields: map[string]string{"title": "required"}}
			return s, nil
		}
		return s.send(Call{Target: TargetProject, Op: OpUpdate, ID: id, Changes: &changes})

	case SetConclusion:
		if s.Project.Status != domain.ProjectCompleted {
			return s.reject(OpSetConclusion, ReasonNotCompleted)
		}
		if s.Project.Concluded() {
			return s.reject(OpSetConclusion, ReasonConcluded)
		}
		text := strings.TrimSpace(e.Text)
		if text == "" {
			s.Err = &failure.ValidationFailure{Fields: map[string]string{"conclusionText": "required"}}
			return s, nil
		}
		return s.send(Call{Target: TargetProject, Op: OpSetConclusion, ID: id, Text: text})

	case Succeeded:
		return s.succeeded(e, now)

	case Failed:
		s.Busy = false
		s.Pending = ""
		s.inFlight = Call{}
		s.Err = e.Err
		return s, Refetch{Target: TargetProject, ID: id}

	case Reloaded:
		if e.Project != nil {
			s.Project = *e.Project
		}
		if e.Actions != nil {
			s.Actions = ownActions(s.Project.ID, e.Actions)
			s.Unresolved = e.Unresolved
		}
		return s, nil
	}
	return s, nil
}

func (s ProjectState) succeeded(e Succeeded, now time.Time) (ProjectState, Effect) {
	if e.Op != s.Pending {
		return s, nil
	}
	prev := s.Project
	last := s.inFlight
	s.Busy = false
	s.Pending = ""
	s.inFlight = Call{}
	if e.Project != nil && !e.Project.ID.IsZero() {
		s.Project = *e.Project
	}
	switch e.Op {
	case OpStart:
		s.Project.Status = domain.ProjectInProgress
		if s.Project.StartedAt.IsZero() {
			s.Project.StartedAt = domain.NewTimestamp(now)
		}
	case OpComplete:
		s.Project.Status = domain.ProjectCompleted
		if s.Project.CompletedAt.IsZero() {
			s.Project.CompletedAt = domain.NewTimestamp(now)
		}
		if !s.Project.Concluded() {
			s.Project.ConclusionText = last.Text
		}
	case OpSetConclusion:
		if !prev.Concluded() {
			s.Project.ConclusionText = last.Text
		}
	case OpUpdate:
		if e.Project == nil && last.Changes != nil {
			s.Project.Title = last.Changes.Title
			s.Project.Description = last.Changes.Description
			s.Project.Origin = last.Changes.Origin
			s.Project.OriginNumber = last.Changes.OriginNumber
			s.Project.OriginDate = last.Changes.OriginDate
		}
	case OpDelete:
		s.Removed = true
		return s, Leave{Target: TargetProject, ID: prev.ID}
	}
	return s, nil
}

func (s ProjectState) send(c Call) (ProjectState, Effect) {
	s.Busy = true
	s.Pending = c.Op
	s.inFlight = c
	return s, c
}

func (s ProjectState) reject(op Op, reason string) (ProjectState, Effect) {
	s.Err = failure.Precondition(string(op), reason)
	return s, nil
}
