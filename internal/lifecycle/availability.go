// Package lifecycle mirrors the backend's project and action status rules so
// the client only offers transitions the backend is expected to accept. The
// backend stays authoritative; every rule here is a presentation decision.
package lifecycle

import "fivew2h/internal/domain"

// Op is a user-triggerable operation on a project or an action.
type Op string

const (
	OpStart         Op = "start"
	OpComplete      Op = "complete"
	OpAddAction     Op = "add_action"
	OpDelete        Op = "delete"
	OpUpdate        Op = "update"
	OpSetConclusion Op = "set_conclusion"
)

// Reasons shown next to disabled or rejected operations.
const (
	ReasonActionsIncomplete = "all actions must be completed first"
	ReasonBusy              = "a request is already in flight"
	ReasonNotEditable       = "only created or in-progress projects can be edited"
	ReasonConcluded         = "conclusion already recorded"
	ReasonNotCompleted      = "conclusion can only be recorded after completion"
	ReasonActionsUnknown    = "the status of some linked actions could not be loaded"
)

// Control is one offered operation. A disabled control is still shown, with
// its reason.
type Control struct {
	Op      Op     `json:"op"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

// Controls is the ordered set of operations offered for one record.
type Controls []Control

// Get returns the control for op if it is offered.
func (cs Controls) Get(op Op) (Control, bool) {
	for _, c := range cs {
		if c.Op == op {
			return c, true
		}
	}
	return Control{}, false
}

// Offered reports whether op is shown at all.
func (cs Controls) Offered(op Op) bool {
	_, ok := cs.Get(op)
	return ok
}

// Enabled reports whether op is shown and may be triggered.
func (cs Controls) Enabled(op Op) bool {
	c, ok := cs.Get(op)
	return ok && c.Enabled
}

func (cs Controls) disable(op Op, reason string) Controls {
	out := make(Controls, len(cs))
	for i, c := range cs {
		if c.Op == op && c.Enabled {
			c.Enabled = false
			c.Reason = reason
		}
		out[i] = c
	}
	return out
}

func (cs Controls) disableAll(reason string) Controls {
	out := make(Controls, len(cs))
	for i, c := range cs {
		if c.Enabled {
			c.Enabled = false
			c.Reason = reason
		}
		out[i] = c
	}
	return out
}

// ActionsComplete reports whether every live child action is completed. An
// empty set qualifies. Soft-deleted actions are ignored.
func ActionsComplete(actions []domain.Action) bool {
	for _, a := range actions {
		if a.IsDeleted {
			continue
		}
		if a.Status != domain.ActionCompleted {
			return false
		}
	}
	return true
}

// ProjectControls lists the operations offered for p given its child actions.
func ProjectControls(p domain.Project, actions []domain.Action) Controls {
	var cs Controls
	if p.Status == domain.ProjectCreated {
		cs = append(cs, Control{Op: OpStart, Enabled: true})
	}
	if p.Status == domain.ProjectInProgress {
		c := Control{Op: OpComplete, Enabled: ActionsComplete(actions)}
		if !c.Enabled {
			c.Reason = ReasonActionsIncomplete
		}
		cs = append(cs, c, Control{Op: OpAddAction, Enabled: true})
	}
	if p.Status != domain.ProjectCompleted {
		update := Control{Op: OpUpdate, Enabled: p.Editable()}
		if !update.Enabled {
			update.Reason = ReasonNotEditable
		}
		cs = append(cs, update, Control{Op: OpDelete, Enabled: true})
	}
	if p.Status == domain.ProjectCompleted && !p.Concluded() {
		cs = append(cs, Control{Op: OpSetConclusion, Enabled: true})
	}
	return cs
}

// ActionControls lists the operations offered for a.
func ActionControls(a domain.Action) Controls {
	var cs Controls
	switch a.Status {
	case domain.ActionNotStarted:
		cs = append(cs, Control{Op: OpStart, Enabled: true})
	case domain.ActionInProgress:
		cs = append(cs, Control{Op: OpComplete, Enabled: true})
	}
	if a.Status == domain.ActionCompleted {
		if !a.Concluded() {
			cs = append(cs, Control{Op: OpSetConclusion, Enabled: true})
		}
	} else {
		cs = append(cs, Control{Op: OpDelete, Enabled: true})
	}
	return cs
}
