package lifecycle_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/onsi/gomega"

	"fivew2h/internal/domain"
	"fivew2h/internal/failure"
	"fivew2h/internal/lifecycle"
)

var now = time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)

func project(status domain.ProjectStatus) domain.Project {
	return domain.Project{ID: "1", Title: "Pilot", Status: status}
}

func action(id domain.ID, status domain.ActionStatus) domain.Action {
	return domain.Action{ID: id, ProjectID: "1", Title: "Survey", Status: status}
}

func TestProjectControls(t *testing.T) {
	RegisterTestingT(t)

	t.Run("project without actions can be completed", func(t *testing.T) {
		cs := lifecycle.ProjectControls(project(domain.ProjectInProgress), nil)
		Expect(cs.Enabled(lifecycle.OpComplete)).To(BeTrue())
	})

	t.Run("incomplete action disables complete with a reason", func(t *testing.T) {
		cs := lifecycle.ProjectControls(project(domain.ProjectInProgress), []domain.Action{
			action("a", domain.ActionCompleted),
			action("b", domain.ActionInProgress),
		})
		c, ok := cs.Get(lifecycle.OpComplete)
		Expect(ok).To(BeTrue())
		Expect(c.Enabled).To(BeFalse())
		Expect(c.Reason).To(Equal("all actions must be completed first"))
	})

	t.Run("all completed actions enable complete", func(t *testing.T) {
		cs := lifecycle.ProjectControls(project(domain.ProjectInProgress), []domain.Action{
			action("a", domain.ActionCompleted),
			action("b", domain.ActionCompleted),
		})
		Expect(cs.Enabled(lifecycle.OpComplete)).To(BeTrue())
	})

	t.Run("deleted actions do not block completion", func(t *testing.T) {
		gone := action("b", domain.ActionNotStarted)
		gone.IsDeleted = true
		Expect(lifecycle.ActionsComplete([]domain.Action{action("a", domain.ActionCompleted), gone})).To(BeTrue())
	})

	t.Run("created offers start update and delete", func(t *testing.T) {
		cs := lifecycle.ProjectControls(project(domain.ProjectCreated), nil)
		Expect(cs.Enabled(lifecycle.OpStart)).To(BeTrue())
		Expect(cs.Offered(lifecycle.OpComplete)).To(BeFalse())
		Expect(cs.Offered(lifecycle.OpAddAction)).To(BeFalse())
		Expect(cs.Enabled(lifecycle.OpUpdate)).To(BeTrue())
		Expect(cs.Enabled(lifecycle.OpDelete)).To(BeTrue())
	})

	t.Run("in progress offers add action", func(t *testing.T) {
		cs := lifecycle.ProjectControls(project(domain.ProjectInProgress), nil)
		Expect(cs.Enabled(lifecycle.OpAddAction)).To(BeTrue())
		Expect(cs.Offered(lifecycle.OpStart)).To(BeFalse())
	})

	t.Run("completed offers only the conclusion editor", func(t *testing.T) {
		p := project(domain.ProjectCompleted)
		cs := lifecycle.ProjectControls(p, nil)
		Expect(cs).To(HaveLen(1))
		Expect(cs.Enabled(lifecycle.OpSetConclusion)).To(BeTrue())

		p.ConclusionText = "done"
		Expect(lifecycle.ProjectControls(p, nil)).To(BeEmpty())
	})

	t.Run("suspended still offers update and delete", func(t *testing.T) {
		cs := lifecycle.ProjectControls(project(domain.ProjectSuspended), nil)
		Expect(cs.Offered(lifecycle.OpUpdate)).To(BeTrue())
		Expect(cs.Enabled(lifecycle.OpDelete)).To(BeTrue())
		Expect(cs.Offered(lifecycle.OpStart)).To(BeFalse())
	})

	t.Run("update is disabled where the edit would be refused", func(t *testing.T) {
		for _, st := range []domain.ProjectStatus{domain.ProjectSuspended, domain.ProjectCancelled} {
			s := lifecycle.NewProjectState(project(st), nil)
			c, ok := s.Controls().Get(lifecycle.OpUpdate)
			Expect(ok).To(BeTrue())
			Expect(c.Enabled).To(BeFalse())
			Expect(c.Reason).To(Equal(lifecycle.ReasonNotEditable))

			_, eff := s.Apply(lifecycle.Update{Changes: lifecycle.ProjectChanges{Title: "Renamed"}}, now)
			Expect(eff).To(BeNil())
		}
	})
}

func TestActionControls(t *testing.T) {
	RegisterTestingT(t)

	cs := lifecycle.ActionControls(action("a", domain.ActionNotStarted))
	Expect(cs.Enabled(lifecycle.OpStart)).To(BeTrue())
	Expect(cs.Enabled(lifecycle.OpDelete)).To(BeTrue())
	Expect(cs.Offered(lifecycle.OpComplete)).To(BeFalse())

	cs = lifecycle.ActionControls(action("a", domain.ActionInProgress))
	Expect(cs.Enabled(lifecycle.OpComplete)).To(BeTrue())
	Expect(cs.Offered(lifecycle.OpStart)).To(BeFalse())

	cs = lifecycle.ActionControls(action("a", domain.ActionOverdue))
	Expect(cs).To(Equal(lifecycle.Controls{{Op: lifecycle.OpDelete, Enabled: true}}))

	done := action("a", domain.ActionCompleted)
	cs = lifecycle.ActionControls(done)
	Expect(cs).To(Equal(lifecycle.Controls{{Op: lifecycle.OpSetConclusion, Enabled: true}}))
	done.ConclusionText = "ok"
	Expect(lifecycle.ActionControls(done)).To(BeEmpty())
}

func TestProjectReducer(t *testing.T) {
	RegisterTestingT(t)

	t.Run("start success sets in progress and started at", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectCreated), nil)
		s, eff := s.Apply(lifecycle.Start{}, now)
		Expect(eff).To(Equal(lifecycle.Call{Target: lifecycle.TargetProject, Op: lifecycle.OpStart, ID: "1"}))
		Expect(s.Busy).To(BeTrue())
		Expect(s.Controls().Enabled(lifecycle.OpStart)).To(BeFalse())

		s, eff = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpStart}, now)
		Expect(eff).To(BeNil())
		Expect(s.Busy).To(BeFalse())
		Expect(s.Project.Status).To(Equal(domain.ProjectInProgress))
		Expect(s.Project.StartedAt.Time).To(Equal(now))
		Expect(s.Controls().Enabled(lifecycle.OpAddAction)).To(BeTrue())
	})

	t.Run("failed start leaves state unchanged and refetches", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectCreated), nil)
		s, _ = s.Apply(lifecycle.Start{}, now)
		boom := errors.New("Projeto já iniciado")
		s, eff := s.Apply(lifecycle.Failed{Op: lifecycle.OpStart, Err: boom}, now)
		Expect(eff).To(Equal(lifecycle.Refetch{Target: lifecycle.TargetProject, ID: "1"}))
		Expect(s.Project.Status).To(Equal(domain.ProjectCreated))
		Expect(s.Project.StartedAt.IsZero()).To(BeTrue())
		Expect(s.Err).To(Equal(boom))
		Expect(s.Busy).To(BeFalse())
	})

	t.Run("second submit while busy is dropped", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectCreated), nil)
		s, _ = s.Apply(lifecycle.Start{}, now)
		s2, eff := s.Apply(lifecycle.Start{}, now)
		Expect(eff).To(BeNil())
		Expect(s2.Busy).To(BeTrue())
	})

	t.Run("complete is rejected while actions are open", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectInProgress), []domain.Action{action("a", domain.ActionInProgress)})
		s, eff := s.Apply(lifecycle.Complete{Conclusion: "x"}, now)
		Expect(eff).To(BeNil())
		var pf *failure.PreconditionFailure
		Expect(errors.As(s.Err, &pf)).To(BeTrue())
		Expect(pf.Reason).To(Equal(lifecycle.ReasonActionsIncomplete))
	})

	t.Run("unresolved linked actions keep complete unavailable", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectInProgress), []domain.Action{action("a", domain.ActionCompleted)})
		s.Unresolved = []domain.ID{"b"}
		c, _ := s.Controls().Get(lifecycle.OpComplete)
		Expect(c.Enabled).To(BeFalse())
		Expect(c.Reason).To(Equal(lifecycle.ReasonActionsUnknown))

		s, eff := s.Apply(lifecycle.Complete{}, now)
		Expect(eff).To(BeNil())
		var pf *failure.PreconditionFailure
		Expect(errors.As(s.Err, &pf)).To(BeTrue())
		Expect(pf.Reason).To(Equal(lifecycle.ReasonActionsUnknown))

		s, _ = s.Apply(lifecycle.Reloaded{Actions: []domain.Action{action("a", domain.ActionCompleted), action("b", domain.ActionCompleted)}}, now)
		Expect(s.Unresolved).To(BeEmpty())
		Expect(s.Controls().Enabled(lifecycle.OpComplete)).To(BeTrue())
	})

	t.Run("complete locks the conclusion", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectInProgress), []domain.Action{action("a", domain.ActionCompleted)})
		s, eff := s.Apply(lifecycle.Complete{Conclusion: " Meta atingida "}, now)
		Expect(eff).To(Equal(lifecycle.Call{Target: lifecycle.TargetProject, Op: lifecycle.OpComplete, ID: "1", Text: "Meta atingida"}))
		s, _ = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpComplete}, now)
		Expect(s.Project.Status).To(Equal(domain.ProjectCompleted))
		Expect(s.Project.CompletedAt.Time).To(Equal(now))
		Expect(s.Project.ConclusionText).To(Equal("Meta atingida"))
		Expect(s.ConclusionEditorVisible()).To(BeFalse())

		s, eff = s.Apply(lifecycle.SetConclusion{Text: "again"}, now)
		Expect(eff).To(BeNil())
		Expect(failure.KindOf(s.Err)).To(Equal(failure.KindPrecondition))

		reloaded := lifecycle.NewProjectState(s.Project, nil)
		Expect(reloaded.ConclusionEditorVisible()).To(BeFalse())
	})

	t.Run("completion without text leaves the editor open once", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectInProgress), nil)
		s, _ = s.Apply(lifecycle.Complete{}, now)
		s, _ = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpComplete}, now)
		Expect(s.ConclusionEditorVisible()).To(BeTrue())

		s, eff := s.Apply(lifecycle.SetConclusion{Text: "   "}, now)
		Expect(eff).To(BeNil())
		Expect(failure.KindOf(s.Err)).To(Equal(failure.KindValidation))

		s, eff = s.Apply(lifecycle.SetConclusion{Text: "Encerrado"}, now)
		Expect(eff).To(Equal(lifecycle.Call{Target: lifecycle.TargetProject, Op: lifecycle.OpSetConclusion, ID: "1", Text: "Encerrado"}))
		s, _ = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpSetConclusion}, now)
		Expect(s.Project.ConclusionText).To(Equal("Encerrado"))
		Expect(s.ConclusionEditorVisible()).To(BeFalse())
	})

	t.Run("delete needs confirmation and then leaves", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectCreated), nil)
		s, eff := s.Apply(lifecycle.ConfirmDelete{}, now)
		Expect(eff).To(BeNil())
		Expect(failure.KindOf(s.Err)).To(Equal(failure.KindPrecondition))

		s, eff = s.Apply(lifecycle.Delete{}, now)
		Expect(eff).To(BeAssignableToTypeOf(lifecycle.Confirm{}))
		s, eff = s.Apply(lifecycle.CancelDelete{}, now)
		Expect(eff).To(BeNil())
		Expect(s.AwaitingConfirmation).To(BeFalse())

		s, _ = s.Apply(lifecycle.Delete{}, now)
		s, eff = s.Apply(lifecycle.ConfirmDelete{}, now)
		Expect(eff).To(Equal(lifecycle.Call{Target: lifecycle.TargetProject, Op: lifecycle.OpDelete, ID: "1"}))
		s, eff = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpDelete}, now)
		Expect(eff).To(Equal(lifecycle.Leave{Target: lifecycle.TargetProject, ID: "1"}))
		Expect(s.Removed).To(BeTrue())
	})

	t.Run("update is rejected outside created and in progress", func(t *testing.T) {
		for _, st := range []domain.ProjectStatus{domain.ProjectSuspended, domain.ProjectCancelled, domain.ProjectCompleted} {
			s := lifecycle.NewProjectState(project(st), nil)
			s, eff := s.Apply(lifecycle.Update{Changes: lifecycle.ProjectChanges{Title: "New"}}, now)
			Expect(eff).To(BeNil())
			Expect(failure.KindOf(s.Err)).To(Equal(failure.KindPrecondition))
		}
	})

	t.Run("update applies the sent fields on an empty response", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectInProgress), nil)
		changes := lifecycle.ProjectChanges{Title: "Pilot 2", Origin: "audit", OriginNumber: 3}
		s, eff := s.Apply(lifecycle.Update{Changes: changes}, now)
		Expect(eff).To(BeAssignableToTypeOf(lifecycle.Call{}))
		s, _ = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpUpdate}, now)
		Expect(s.Project.Title).To(Equal("Pilot 2"))
		Expect(s.Project.OriginNumber).To(Equal(3))
	})

	t.Run("add action only while in progress", func(t *testing.T) {
		s := lifecycle.NewProjectState(project(domain.ProjectCreated), nil)
		s, eff := s.Apply(lifecycle.AddAction{}, now)
		Expect(eff).To(BeNil())
		Expect(s.Err).To(HaveOccurred())

		s = lifecycle.NewProjectState(project(domain.ProjectInProgress), nil)
		s, eff = s.Apply(lifecycle.AddAction{}, now)
		Expect(eff).To(Equal(lifecycle.OpenActionForm{ProjectID: "1"}))
		s, _ = s.Apply(lifecycle.ActionAdded{Action: action("9", domain.ActionNotStarted)}, now)
		Expect(s.Project.ActionIDs).To(ContainElement(domain.ID("9")))
		Expect(s.Controls().Enabled(lifecycle.OpComplete)).To(BeFalse())
	})

	t.Run("reload keeps only the project's live actions", func(t *testing.T) {
		other := action("x", domain.ActionNotStarted)
		other.ProjectID = "2"
		gone := action("y", domain.ActionNotStarted)
		gone.IsDeleted = true
		s := lifecycle.NewProjectState(project(domain.ProjectInProgress), nil)
		s, _ = s.Apply(lifecycle.Reloaded{Actions: []domain.Action{action("a", domain.ActionCompleted), other, gone}}, now)
		Expect(s.Actions).To(HaveLen(1))
		Expect(s.Controls().Enabled(lifecycle.OpComplete)).To(BeTrue())
	})
}

func TestActionReducer(t *testing.T) {
	RegisterTestingT(t)

	t.Run("start then complete with draft", func(t *testing.T) {
		s := lifecycle.NewActionState(action("a", domain.ActionNotStarted))
		s, eff := s.Apply(lifecycle.Start{}, now)
		Expect(eff).To(Equal(lifecycle.Call{Target: lifecycle.TargetAction, Op: lifecycle.OpStart, ID: "a"}))
		s, _ = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpStart}, now)
		Expect(s.Action.Status).To(Equal(domain.ActionInProgress))

		s, _ = s.Apply(lifecycle.Draft{Text: "Feito"}, now)
		s, eff = s.Apply(lifecycle.Complete{}, now)
		Expect(eff).To(Equal(lifecycle.Call{Target: lifecycle.TargetAction, Op: lifecycle.OpComplete, ID: "a", Text: "Feito"}))
		s, _ = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpComplete}, now)
		Expect(s.Action.Status).To(Equal(domain.ActionCompleted))
		Expect(s.Action.ConclusionText).To(Equal("Feito"))
		Expect(s.ConclusionEditorVisible()).To(BeFalse())
	})

	t.Run("server copy wins over local defaults", func(t *testing.T) {
		s := lifecycle.NewActionState(action("a", domain.ActionNotStarted))
		s, _ = s.Apply(lifecycle.Start{}, now)
		server := action("a", domain.ActionInProgress)
		server.StartedAt = domain.NewTimestamp(now.Add(-time.Minute))
		s, _ = s.Apply(lifecycle.Succeeded{Op: lifecycle.OpStart, Action: &server}, now)
		Expect(s.Action.StartedAt.Time).To(Equal(now.Add(-time.Minute)))
	})

	t.Run("set conclusion rejects blank text", func(t *testing.T) {
		s := lifecycle.NewActionState(action("a", domain.ActionCompleted))
		s, eff := s.Apply(lifecycle.SetConclusion{Text: " \t"}, now)
		Expect(eff).To(BeNil())
		var vf *failure.ValidationFailure
		Expect(errors.As(s.Err, &vf)).To(BeTrue())
		_, ok := vf.Field("conclusionText")
		Expect(ok).To(BeTrue())
	})

	t.Run("set conclusion is write once", func(t *testing.T) {
		a := action("a", domain.ActionCompleted)
		a.ConclusionText = "ok"
		s := lifecycle.NewActionState(a)
		s, eff := s.Apply(lifecycle.SetConclusion{Text: "new"}, now)
		Expect(eff).To(BeNil())
		Expect(s.Action.ConclusionText).To(Equal("ok"))
		Expect(failure.KindOf(s.Err)).To(Equal(failure.KindPrecondition))
	})

	t.Run("pending and overdue cannot be started", func(t *testing.T) {
		for _, st := range []domain.ActionStatus{domain.ActionPending, domain.ActionOverdue} {
			s := lifecycle.NewActionState(action("a", st))
			s, eff := s.Apply(lifecycle.Start{}, now)
			Expect(eff).To(BeNil())
			Expect(s.Err).To(HaveOccurred())
		}
	})

	t.Run("failed complete refetches", func(t *testing.T) {
		s := lifecycle.NewActionState(action("a", domain.ActionInProgress))
		s, _ = s.Apply(lifecycle.Complete{Conclusion: "x"}, now)
		s, eff := s.Apply(lifecycle.Failed{Op: lifecycle.OpComplete, Err: errors.New("nope")}, now)
		Expect(eff).To(Equal(lifecycle.Refetch{Target: lifecycle.TargetAction, ID: "a"}))
		Expect(s.Action.Status).To(Equal(domain.ActionInProgress))
	})
}
