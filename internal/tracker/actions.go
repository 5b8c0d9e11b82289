package tracker

import (
	"context"
	"fmt"

	"fivew2h/internal/domain"
	"fivew2h/internal/events"
	"fivew2h/internal/failure"
	"fivew2h/internal/forms"
	"fivew2h/internal/lifecycle"
)

// OpenAction loads an action into a fresh view-model.
func (t *Tracker) OpenAction(ctx context.Context, id domain.ID) (lifecycle.ActionState, error) {
	a, err := t.API.GetAction(ctx, id)
	if err != nil {
		return lifecycle.ActionState{}, t.check(ctx, err)
	}
	return lifecycle.NewActionState(a), nil
}

// DispatchAction is DispatchProject for a single action.
func (t *Tracker) DispatchAction(ctx context.Context, s lifecycle.ActionState, ev lifecycle.Event) (lifecycle.ActionState, lifecycle.Effect, error) {
	s, eff := s.Apply(ev, t.now())
	for {
		switch e := eff.(type) {
		case lifecycle.Call:
			s, eff = s.Apply(t.runActionCall(ctx, e, s.Action.ProjectID), t.now())
			continue
		case lifecycle.Refetch:
			if ctx.Err() != nil {
				return s, nil, s.Err
			}
			a, err := t.API.GetAction(ctx, e.ID)
			if err != nil {
				t.log().WithError(t.check(ctx, err)).WithField("action_id", e.ID).Warn("refetch after failure")
				return s, nil, s.Err
			}
			s, eff = s.Apply(lifecycle.Reloaded{Action: &a}, t.now())
			continue
		}
		return s, eff, s.Err
	}
}

var actionEventTypes = map[lifecycle.Op]string{
	lifecycle.OpStart:         events.ActionStarted,
	lifecycle.OpComplete:      events.ActionCompleted,
	lifecycle.OpDelete:        events.ActionDeleted,
	lifecycle.OpSetConclusion: events.ActionConcluded,
}

func (t *Tracker) runActionCall(ctx context.Context, c lifecycle.Call, projectID domain.ID) lifecycle.Event {
	var (
		a   *domain.Action
		err error
	)
	switch c.Op {
	case lifecycle.OpStart:
		a, err = t.API.StartAction(ctx, c.ID)
	case lifecycle.OpComplete:
		a, err = t.API.CompleteAction(ctx, c.ID, c.Text)
	case lifecycle.OpDelete:
		err = t.API.DeleteAction(ctx, c.ID)
	case lifecycle.OpSetConclusion:
		err = t.API.SetActionConclusion(ctx, c.ID, c.Text)
	default:
		err = fmt.Errorf("unsupported action operation %q", c.Op)
	}
	log := t.log().WithField("action_id", c.ID).WithField("op", c.Op)
	if err != nil {
		err = t.check(ctx, err)
		log.WithError(err).Info("action operation failed")
		return lifecycle.Failed{Op: c.Op, Err: err}
	}
	log.Debug("action operation done")
	payload := events.EventPayload{}
	if c.Text != "" {
		payload["conclusionText"] = c.Text
	}
	t.record(ctx, events.Entry{
		Type: actionEventTypes[c.Op], Target: string(lifecycle.TargetAction),
		EntityID: c.ID.String(), ProjectID: projectID.String(), Payload: payload,
	})
	return lifecycle.Succeeded{Op: c.Op, Action: a}
}

// CreateAndAttach creates an action and links it to projectID in two
// requests. A failure of the first request is returned classified and may be
// retried. A failure of the second is a *failure.PartialFailure carrying the
// created action's id; retrying the whole operation would duplicate it.
// Concurrent submissions for the same project are rejected while one is in
// flight.
func (t *Tracker) CreateAndAttach(ctx context.Context, projectID domain.ID, form forms.ActionForm) (domain.Action, error) {
	if err := form.Check(); err != nil {
		return domain.Action{}, err
	}
	release, ok := t.guard("action:create:" + projectID.String())
	if !ok {
		return domain.Action{}, failure.Precondition("add action", lifecycle.ReasonBusy)
	}
	defer release()

	a, err := t.API.CreateAction(ctx, form.Input(projectID, t.actor(ctx)))
	if err != nil {
		return domain.Action{}, t.check(ctx, err)
	}
	if a.ID.IsZero() {
		t.log().WithField("project_id", projectID).Warn("create action answered without an id; link skipped")
		return domain.Action{}, &failure.ServerFailure{Message: "the action may have been created but its id was not returned, so it was not linked; check the action list before retrying"}
	}
	t.record(ctx, events.Entry{
		Type: events.ActionCreated, Target: string(lifecycle.TargetAction),
		EntityID: a.ID.String(), ProjectID: projectID.String(),
		Payload: events.EventPayload{"title": a.Title},
	})

	if err := t.API.AttachAction(ctx, projectID, a.ID); err != nil {
		cause := t.check(ctx, err)
		t.record(ctx, events.Entry{
			Type: events.ActionAttachFailed, Target: string(lifecycle.TargetAction),
			EntityID: a.ID.String(), ProjectID: projectID.String(),
			Payload: events.EventPayload{"error": failure.Message(cause)},
		})
		t.log().WithError(cause).WithField("action_id", a.ID).Warn("action created but not linked")
		return a, &failure.PartialFailure{ActionID: a.ID.String(), ProjectID: projectID.String(), Cause: cause}
	}
	t.record(ctx, events.Entry{
		Type: events.ActionAttached, Target: string(lifecycle.TargetAction),
		EntityID: a.ID.String(), ProjectID: projectID.String(),
	})
	a.ProjectID = projectID
	return a, nil
}

// Attach retries only the linking step for an action left unlinked by a
// partial failure.
func (t *Tracker) Attach(ctx context.Context, projectID, actionID domain.ID) error {
	if err := t.API.AttachAction(ctx, projectID, actionID); err != nil {
		return t.check(ctx, err)
	}
	t.record(ctx, events.Entry{
		Type: events.ActionAttached, Target: string(lifecycle.TargetAction),
		EntityID: actionID.String(), ProjectID: projectID.String(),
	})
	return nil
}

// UpdateAction replaces the 5W2H fields of an action that is not completed.
// The project link and the owner are kept.
func (t *Tracker) UpdateAction(ctx context.Context, id domain.ID, form forms.ActionForm) (domain.Action, error) {
	if err := form.Check(); err != nil {
		return domain.Action{}, err
	}
	release, ok := t.guard("action:update:" + id.String())
	if !ok {
		return domain.Action{}, failure.Precondition(string(lifecycle.OpUpdate), lifecycle.ReasonBusy)
	}
	defer release()

	cur, err := t.API.GetAction(ctx, id)
	if err != nil {
		return domain.Action{}, t.check(ctx, err)
	}
	if cur.Status == domain.ActionCompleted {
		return cur, failure.Precondition(string(lifecycle.OpUpdate), "completed actions cannot be edited")
	}
	updated, err := t.API.UpdateAction(ctx, id, form.Input(cur.ProjectID, cur.UserID))
	if err != nil {
		err = t.check(ctx, err)
		t.log().WithError(err).WithField("action_id", id).Info("action update failed")
		return cur, err
	}
	a := form.Apply(cur)
	if updated != nil && !updated.ID.IsZero() {
		a = *updated
	}
	t.record(ctx, events.Entry{
		Type: events.ActionUpdated, Target: string(lifecycle.TargetAction),
		EntityID: id.String(), ProjectID: a.ProjectID.String(),
		Payload: events.EventPayload{"title": a.Title},
	})
	return a, nil
}
