package tracker

import (
	"context"
	"fmt"

	"fivew2h/internal/domain"
	"fivew2h/internal/events"
	"fivew2h/internal/failure"
	"fivew2h/internal/forms"
	"fivew2h/internal/lifecycle"
	"fivew2h/internal/listing"
	w2hsdk "fivew2h/sdk/go"
)

// ScopeKind selects which projects a list view fetches.
type ScopeKind int

const (
	ScopeAll ScopeKind = iota
	ScopeOwn
	ScopeDepartment
)

// Scope is a project list source. ID is the user for ScopeOwn and the
// department for ScopeDepartment.
type Scope struct {
	Kind ScopeKind
	ID   domain.ID
}

// ListProjects fetches the whole scope and paginates locally. Scopes the
// backend pages are pulled page by page until TotalPages is reached.
func (t *Tracker) ListProjects(ctx context.Context, scope Scope, q listing.Query) (listing.Result[domain.Project], error) {
	var (
		projects []domain.Project
		err      error
	)
	switch scope.Kind {
	case ScopeOwn:
		var page w2hsdk.Page[domain.Project]
		page, err = t.API.ListOwnProjects(ctx, scope.ID)
		projects = page.Items
	case ScopeDepartment:
		if scope.ID.IsZero() {
			return listing.Result[domain.Project]{}, failure.Precondition("list department projects", "department not resolved yet")
		}
		projects, err = t.fetchProjects(ctx, func(params w2hsdk.ListParams) (w2hsdk.Page[domain.Project], error) {
			return t.API.ListDepartmentProjects(ctx, scope.ID, params)
		})
	default:
		projects, err = t.fetchProjects(ctx, func(params w2hsdk.ListParams) (w2hsdk.Page[domain.Project], error) {
			return t.API.ListProjects(ctx, params)
		})
	}
	if err != nil {
		return listing.Result[domain.Project]{}, t.check(ctx, err)
	}
	return listing.Page(projects, q, listing.ProjectFields), nil
}

// fetchProjects follows the server's page count. A response without one is
// taken as the whole collection.
func (t *Tracker) fetchProjects(ctx context.Context, fetch func(w2hsdk.ListParams) (w2hsdk.Page[domain.Project], error)) ([]domain.Project, error) {
	params := fetchAll(t.fetchSize())
	var out []domain.Project
	for {
		page, err := fetch(params)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if params.PageNumber >= page.TotalPages || len(page.Items) == 0 {
			return out, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		params.PageNumber++
	}
}

// OpenProject loads a project and its actions into a fresh view-model.
func (t *Tracker) OpenProject(ctx context.Context, id domain.ID) (lifecycle.ProjectState, error) {
	p, actions, unresolved, err := t.loadProject(ctx, id)
	if err != nil {
		return lifecycle.ProjectState{}, err
	}
	s := lifecycle.NewProjectState(p, actions)
	s.Unresolved = unresolved
	return s, nil
}

// loadProject fetches p and its child actions. Linked ids missing from the
// action listing are fetched one by one; those that still cannot be loaded
// are returned as unresolved.
func (t *Tracker) loadProject(ctx context.Context, id domain.ID) (domain.Project, []domain.Action, []domain.ID, error) {
	p, err := t.API.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, nil, nil, t.check(ctx, err)
	}
	all, err := t.API.ListActions(ctx)
	if err != nil {
		return domain.Project{}, nil, nil, t.check(ctx, err)
	}
	actions := projectActions(p, all)

	found := make(map[domain.ID]bool, len(actions))
	for _, a := range actions {
		found[a.ID] = true
	}
	var unresolved []domain.ID
	for _, aid := range p.ActionIDs {
		if found[aid] || aid.IsZero() {
			continue
		}
		found[aid] = true
		a, err := t.API.GetAction(ctx, aid)
		if err != nil {
			err = t.check(ctx, err)
			if failure.IsAuth(err) {
				return domain.Project{}, nil, nil, err
			}
			t.log().WithError(err).WithField("project_id", p.ID).WithField("action_id", aid).Warn("linked action not loaded")
			unresolved = append(unresolved, aid)
			continue
		}
		if a.ProjectID.IsZero() {
			a.ProjectID = p.ID
		}
		actions = append(actions, a)
	}
	return p, actions, unresolved, nil
}

// projectActions picks the actions of p, matching either side of the link.
func projectActions(p domain.Project, all []domain.Action) []domain.Action {
	linked := make(map[domain.ID]bool, len(p.ActionIDs))
	for _, id := range p.ActionIDs {
		linked[id] = true
	}
	var out []domain.Action
	for _, a := range all {
		if a.ProjectID == p.ID || linked[a.ID] {
			if a.ProjectID.IsZero() {
				a.ProjectID = p.ID
			}
			out = append(out, a)
		}
	}
	return out
}

// CreateProject validates the form and creates a project owned by the
// caller.
func (t *Tracker) CreateProject(ctx context.Context, form forms.ProjectForm) (domain.Project, error) {
	if err := form.Check(); err != nil {
		return domain.Project{}, err
	}
	release, ok := t.guard("project:create")
	if !ok {
		return domain.Project{}, failure.Precondition("create project", lifecycle.ReasonBusy)
	}
	defer release()
	p, err := t.API.CreateProject(ctx, form.Input(t.actor(ctx)))
	if err != nil {
		return domain.Project{}, t.check(ctx, err)
	}
	t.record(ctx, events.Entry{
		Type: events.ProjectCreated, Target: string(lifecycle.TargetProject),
		EntityID: p.ID.String(), ProjectID: p.ID.String(),
		Payload: events.EventPayload{"title": p.Title},
	})
	return p, nil
}

// DispatchProject applies ev and runs the resulting effects until one needs
// the caller: a confirmation, navigation, or nothing at all. The returned
// error is the state's failure, if any.
func (t *Tracker) DispatchProject(ctx context.Context, s lifecycle.ProjectState, ev lifecycle.Event) (lifecycle.ProjectState, lifecycle.Effect, error) {
	s, eff := s.Apply(ev, t.now())
	for {
		switch e := eff.(type) {
		case lifecycle.Call:
			s, eff = s.Apply(t.runProjectCall(ctx, e), t.now())
			continue
		case lifecycle.Refetch:
			if ctx.Err() != nil {
				return s, nil, s.Err
			}
			p, actions, unresolved, err := t.loadProject(ctx, e.ID)
			if err != nil {
				t.log().WithError(err).WithField("project_id", e.ID).Warn("refetch after failure")
				return s, nil, s.Err
			}
			if actions == nil {
				actions = []domain.Action{}
			}
			s, eff = s.Apply(lifecycle.Reloaded{Project: &p, Actions: actions, Unresolved: unresolved}, t.now())
			continue
		}
		return s, eff, s.Err
	}
}

var projectEventTypes = map[lifecycle.Op]string{
	lifecycle.OpStart:         events.ProjectStarted,
	lifecycle.OpComplete:      events.ProjectCompleted,
	lifecycle.OpDelete:        events.ProjectDeleted,
	lifecycle.OpUpdate:        events.ProjectUpdated,
	lifecycle.OpSetConclusion: events.ProjectConcluded,
}

func (t *Tracker) runProjectCall(ctx context.Context, c lifecycle.Call) lifecycle.Event {
	var (
		p   *domain.Project
		err error
	)
	switch c.Op {
	case lifecycle.OpStart:
		p, err = t.API.StartProject(ctx, c.ID)
	case lifecycle.OpComplete:
		p, err = t.API.CompleteProject(ctx, c.ID, c.Text)
	case lifecycle.OpDelete:
		err = t.API.DeleteProject(ctx, c.ID)
	case lifecycle.OpSetConclusion:
		err = t.API.SetProjectConclusion(ctx, c.ID, c.Text)
	case lifecycle.OpUpdate:
		var in w2hsdk.ProjectInput
		if c.Changes != nil {
			in = w2hsdk.ProjectInput{
				Title:        c.Changes.Title,
				Description:  c.Changes.Description,
				Origin:       c.Changes.Origin,
				OriginNumber: c.Changes.OriginNumber,
				OriginDate:   c.Changes.OriginDate,
			}
		}
		p, err = t.API.UpdateProject(ctx, c.ID, in)
	default:
		err = fmt.Errorf("unsupported project operation %q", c.Op)
	}
	log := t.log().WithField("project_id", c.ID).WithField("op", c.Op)
	if err != nil {
		err = t.check(ctx, err)
		log.WithError(err).Info("project operation failed")
		return lifecycle.Failed{Op: c.Op, Err: err}
	}
	log.Debug("project operation done")
	payload := events.EventPayload{}
	if c.Text != "" {
		payload["conclusionText"] = c.Text
	}
	t.record(ctx, events.Entry{
		Type: projectEventTypes[c.Op], Target: string(lifecycle.TargetProject),
		EntityID: c.ID.String(), ProjectID: c.ID.String(), Payload: payload,
	})
	return lifecycle.Succeeded{Op: c.Op, Project: p}
}
