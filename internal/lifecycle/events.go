package lifecycle

import "fivew2h/internal/domain"

// Event is an input to a reducer: a user intent or the outcome of a request.
type Event interface{ event() }

type (
	// Start requests the start transition.
	Start struct{}
	// Complete requests completion. An empty Conclusion falls back to the
	// current draft.
	Complete struct{ Conclusion string }
	// Draft edits the conclusion draft.
	Draft struct{ Text string }
	// Delete asks for deletion. Nothing is sent before ConfirmDelete.
	Delete        struct{}
	ConfirmDelete struct{}
	CancelDelete  struct{}
	// Update replaces project metadata.
	Update struct{ Changes ProjectChanges }
	// SetConclusion records the conclusion text after completion.
	SetConclusion struct{ Text string }
	// AddAction opens the action form for a project.
	AddAction struct{}
	// ActionAdded reports an action created and attached to the project.
	ActionAdded struct{ Action domain.Action }

	// Succeeded reports a completed request. Project or Action carries the
	// server's copy when the response had a body.
	Succeeded struct {
		Op      Op
		Project *domain.Project
		Action  *domain.Action
	}
	// Failed reports a rejected request.
	Failed struct {
		Op  Op
		Err error
	}
	// Reloaded replaces local state with a fresh server copy.
	Reloaded struct {
		Project *domain.Project
		Action  *domain.Action
		Actions []domain.Action
		// Unresolved replaces ProjectState.Unresolved along with Actions.
		Unresolved []domain.ID
	}
)

func (Start) event()         {}
func (Complete) event()      {}
func (Draft) event()         {}
func (Delete) event()        {}
func (ConfirmDelete) event() {}
func (CancelDelete) event()  {}
func (Update) event()        {}
func (SetConclusion) event() {}
func (AddAction) event()     {}
func (ActionAdded) event()   {}
func (Succeeded) event()     {}
func (Failed) event()        {}
func (Reloaded) event()      {}

// ProjectChanges are the editable project fields.
type ProjectChanges struct {
	Title        string
	Description  string
	Origin       string
	OriginNumber int
	OriginDate   string
}

// Target names the kind of record an effect concerns.
type Target string

const (
	TargetProject Target = "project"
	TargetAction  Target = "action"
)

// Effect is the side effect a reducer asks its adapter to perform. A nil
// Effect means nothing to do.
type Effect interface{ effect() }

type (
	// Call issues one backend request.
	Call struct {
		Target  Target
		Op      Op
		ID      domain.ID
		Text    string
		Changes *ProjectChanges
	}
	// Refetch reloads the record from the backend.
	Refetch struct {
		Target Target
		ID     domain.ID
	}
	// Confirm asks the user to confirm an irreversible operation.
	Confirm struct {
		Target Target
		ID     domain.ID
		Prompt string
	}
	// Leave tells the view to navigate away; the record is gone.
	Leave struct {
		Target Target
		ID     domain.ID
	}
	// OpenActionForm navigates to the add-action form of a project.
	OpenActionForm struct{ ProjectID domain.ID }
)

func (Call) effect()           {}
func (Refetch) effect()        {}
func (Confirm) effect()        {}
func (Leave) effect()          {}
func (OpenActionForm) effect() {}
