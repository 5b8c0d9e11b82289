package lifecycle

import (
	"strings"
	"time"

	"fivew2h/internal/domain"
	"fivew2h/internal/failure"
)

// ActionState is the view-model of one action row or detail view.
type ActionState struct {
	Action domain.Action
	// Draft is the conclusion text typed so far.
	Draft string

	Busy                 bool
	Pending              Op
	AwaitingConfirmation bool
	Removed              bool
	Err                  error

	inFlight Call
}

func NewActionState(a domain.Action) ActionState { return ActionState{Action: a} }

// Controls returns the offered operations, all disabled while busy.
func (s ActionState) Controls() Controls {
	cs := ActionControls(s.Action)
	if s.Busy {
		return cs.disableAll(ReasonBusy)
	}
	return cs
}

// ConclusionEditorVisible is true only for a completed action without a
// stored conclusion.
func (s ActionState) ConclusionEditorVisible() bool {
	return s.Action.Status == domain.ActionCompleted && !s.Action.Concluded()
}

// Apply runs one event through the action rules.
func (s ActionState) Apply(ev Event, now time.Time) (ActionState, Effect) {
	switch ev.(type) {
	case Succeeded, Failed, Reloaded, Draft:
	default:
		if s.Busy {
			return s, nil
		}
		s.Err = nil
	}
	id := s.Action.ID

	switch e := ev.(type) {
	case Draft:
		s.Draft = e.Text
		return s, nil

	case Start:
		if s.Action.Status != domain.ActionNotStarted {
			return s.reject(OpStart, "only actions not yet started can be started")
		}
		return s.send(Call{Target: TargetAction, Op: OpStart, ID: id})

	case Complete:
		if s.Action.Status != domain.ActionInProgress {
			return s.reject(OpComplete, "only in-progress actions can be completed")
		}
		text := strings.TrimSpace(e.Conclusion)
		if text == "" {
			text = strings.TrimSpace(s.Draft)
		}
		return s.send(Call{Target: TargetAction, Op: OpComplete, ID: id, Text: text})

	case SetConclusion:
		if s.Action.Status != domain.ActionCompleted {
			return s.reject(OpSetConclusion, ReasonNotCompleted)
		}
		if s.Action.Concluded() {
			return s.reject(OpSetConclusion, ReasonConcluded)
		}
		text := strings.TrimSpace(e.Text)
		if text == "" {
			text = strings.TrimSpace(s.Draft)
		}
		if text == "" {
			s.Err = &failure.ValidationFailure{Fields: map[string]string{"conclusionText": "required"}}
			return s, nil
		}
		return s.send(Call{Target: TargetAction, Op: OpSetConclusion, ID: id, Text: text})

	case Delete:
		if s.Action.Status == domain.ActionCompleted {
			return s.reject(OpDelete, "completed actions cannot be deleted")
		}
		s.AwaitingConfirmation = true
		return s, Confirm{Target: TargetAction, ID: id, Prompt: "Delete action " + s.Action.Title + "? This cannot be undone."}

	case CancelDelete:
		s.AwaitingConfirmation = false
		return s, nil

	case ConfirmDelete:
		if !s.AwaitingConfirmation {
			return s.reject(OpDelete, "deletion was not requested")
		}
		s.AwaitingConfirmation = false
		return s.send(Call{Target: TargetAction, Op: OpDelete, ID: id})

	case Succeeded:
		return s.succeeded(e, now)

	case Failed:
		s.Busy = false
		s.Pending = ""
		s.inFlight = Call{}
		s.Err = e.Err
		return s, Refetch{Target: TargetAction, ID: id}

	case Reloaded:
		if e.Action != nil {
			s.Action = *e.Action
		}
		return s, nil
	}
	return s, nil
}

func (s ActionState) succeeded(e Succeeded, now time.Time) (ActionState, Effect) {
	if e.Op != s.Pending {
		return s, nil
	}
	prev := s.Action
	last := s.inFlight
	s.Busy = false
	s.Pending = ""
	s.inFlight = Call{}
	if e.Action != nil && !e.Action.ID.IsZero() {
		s.Action = *e.Action
	}
	switch e.Op {
	case OpStart:
		s.Action.Status = domain.ActionInProgress
		if s.Action.StartedAt.IsZero() {
			s.Action.StartedAt = domain.NewTimestamp(now)
		}
	case OpComplete:
		s.Action.Status = domain.ActionCompleted
		if s.Action.CompletedAt.IsZero() {
			s.Action.CompletedAt = domain.NewTimestamp(now)
		}
		if !s.Action.Concluded() {
			s.Action.ConclusionText = last.Text
		}
		s.Draft = ""
	case OpSetConclusion:
		if !prev.Concluded() {
			s.Action.ConclusionText = last.Text
		}
		s.Draft = ""
	case OpDelete:
		s.Removed = true
		return s, Leave{Target: TargetAction, ID: prev.ID}
	}
	return s, nil
}

func (s ActionState) send(c Call) (ActionState, Effect) {
	s.Busy = true
	s.Pending = c.Op
	s.inFlight = c
	return s, c
}

func (s ActionState) reject(op Op, reason string) (ActionState, Effect) {
	s.Err = failure.Precondition(string(op), reason)
	return s, nil
}
