package apitest

import (
	"net/http"
	"strconv"
	"strings"

	"fivew2h/internal/domain"
	w2hsdk "fivew2h/sdk/go"
)

type transitionBody struct {
	ID             domain.ID `json:"id"`
	Command        string    `json:"command"`
	ConclusionText string    `json:"conclusionText"`
}

type conclusionBody struct {
	ConclusionText string `json:"conclusionText"`
}

func (b *Backend) transition(w http.ResponseWriter, r *http.Request, command string) (transitionBody, bool) {
	var body transitionBody
	if err := decode(r, &body); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return body, false
	}
	if body.Command != command {
		b.fail(w, http.StatusBadRequest, "unexpected command "+body.Command)
		return body, false
	}
	return body, true
}

// Users.

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req w2hsdk.LoginRequest
	if err := decode(r, &req); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.mu.Lock()
	var found *account
	for _, acc := range b.users {
		if strings.EqualFold(acc.user.Email, req.Email) && !acc.user.IsDeleted {
			found = acc
			break
		}
	}
	b.mu.Unlock()
	if found == nil || found.password != req.Password {
		b.fail(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	b.ok(w, w2hsdk.LoginResponse{Token: b.MintClaims(b.claimsFor(found.user))})
}

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]domain.User, 0, len(b.users))
	for _, acc := range b.users {
		out = append(out, acc.user)
	}
	b.mu.Unlock()
	sortByID(out, func(u domain.User) domain.ID { return u.ID })
	b.ok(w, out)
}

func (b *Backend) getUser(w http.ResponseWriter, r *http.Request) {
	u, ok := b.User(pathID(r, "id"))
	if !ok {
		b.fail(w, http.StatusNotFound, "user not found")
		return
	}
	b.ok(w, u)
}

func (b *Backend) createUser(w http.ResponseWriter, r *http.Request) {
	var in w2hsdk.UserInput
	if err := decode(r, &in); err != nil || in.Email == "" || in.Password == "" {
		b.fail(w, http.StatusBadRequest, "email and password are required")
		return
	}
	b.mu.Lock()
	for _, acc := range b.users {
		if strings.EqualFold(acc.user.Email, in.Email) {
			b.mu.Unlock()
			b.fail(w, http.StatusConflict, "email already registered")
			return
		}
	}
	b.mu.Unlock()
	u := b.AddUser(domain.User{
		FullName: in.FullName, Email: in.Email, Role: in.Role, DepartmentID: in.DepartmentID,
	}, in.Password)
	b.write(w, http.StatusCreated, u, 0)
}

func (b *Backend) updateUser(w http.ResponseWriter, r *http.Request) {
	var in w2hsdk.UserInput
	if err := decode(r, &in); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.mu.Lock()
	acc, ok := b.users[pathID(r, "id")]
	if ok {
		acc.user.FullName = in.FullName
		acc.user.Email = in.Email
		acc.user.Role = in.Role
		acc.user.DepartmentID = in.DepartmentID
		if in.Password != "" {
			acc.password = in.Password
		}
	}
	b.mu.Unlock()
	if !ok {
		b.fail(w, http.StatusNotFound, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) deleteUser(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	acc, ok := b.users[pathID(r, "id")]
	if ok {
		acc.user.IsDeleted = true
	}
	b.mu.Unlock()
	if !ok {
		b.fail(w, http.StatusNotFound, "user not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) changePassword(w http.ResponseWriter, r *http.Request) {
	var req w2hsdk.ChangePasswordRequest
	if err := decode(r, &req); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.mu.Lock()
	acc, ok := b.users[req.UserID]
	matched := ok && acc.password == req.CurrentPassword
	if matched {
		acc.password = req.NewPassword
	}
	b.mu.Unlock()
	switch {
	case !ok:
		b.fail(w, http.StatusNotFound, "user not found")
	case !matched:
		b.fail(w, http.StatusBadRequest, "current password is incorrect")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Projects.

func (b *Backend) listProjects(w http.ResponseWriter, r *http.Request) {
	b.writeProjects(w, r, func(domain.Project) bool { return true })
}

func (b *Backend) listOwnProjects(w http.ResponseWriter, r *http.Request) {
	owner := pathID(r, "userId")
	b.writeProjects(w, r, func(p domain.Project) bool { return p.UserID == owner })
}

func (b *Backend) listDepartmentProjects(w http.ResponseWriter, r *http.Request) {
	dept := pathID(r, "id")
	b.mu.Lock()
	members := map[domain.ID]bool{}
	for _, acc := range b.users {
		if acc.user.DepartmentID == dept {
			members[acc.user.ID] = true
		}
	}
	b.mu.Unlock()
	b.writeProjects(w, r, func(p domain.Project) bool { return members[p.UserID] })
}

// writeProjects applies the listing query parameters. Soft-deleted projects
// are returned like any other.
func (b *Backend) writeProjects(w http.ResponseWriter, r *http.Request, keep func(domain.Project) bool) {
	q := r.URL.Query()
	status := w2hsdk.AllStatuses
	if v := q.Get("status"); v != "" {
		status, _ = strconv.Atoi(v)
	}
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))

	b.mu.Lock()
	var out []domain.Project
	for _, p := range b.projects {
		if !keep(*p) {
			continue
		}
		if status != w2hsdk.AllStatuses && int(p.Status) != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Title), search) {
			continue
		}
		out = append(out, *p)
	}
	b.mu.Unlock()
	sortByID(out, func(p domain.Project) domain.ID { return p.ID })

	totalPages := 0
	size, _ := strconv.Atoi(q.Get("pageSize"))
	number, _ := strconv.Atoi(q.Get("pageNumber"))
	if size > 0 {
		totalPages = (len(out) + size - 1) / size
		if number < 1 {
			number = 1
		}
		start := (number - 1) * size
		switch {
		case start >= len(out):
			out = nil
		case start+size < len(out):
			out = out[start : start+size]
		default:
			out = out[start:]
		}
	}
	if out == nil {
		out = []domain.Project{}
	}
	b.write(w, http.StatusOK, out, totalPages)
}

func (b *Backend) getProject(w http.ResponseWriter, r *http.Request) {
	p, ok := b.Project(pathID(r, "id"))
	if !ok {
		b.fail(w, http.StatusNotFound, "project not found")
		return
	}
	b.ok(w, p)
}

func (b *Backend) createProject(w http.ResponseWriter, r *http.Request) {
	var in w2hsdk.ProjectInput
	if err := decode(r, &in); err != nil || strings.TrimSpace(in.Title) == "" {
		b.fail(w, http.StatusBadRequest, "title is required")
		return
	}
	b.mu.Lock()
	number := len(b.projects) + 1
	b.mu.Unlock()
	p := b.AddProject(domain.Project{
		ProjectNumber: number,
		Title:         in.Title,
		Description:   in.Description,
		Origin:        in.Origin,
		OriginNumber:  in.OriginNumber,
		OriginDate:    in.OriginDate,
		UserID:        in.UserID,
		Status:        domain.ProjectCreated,
	})
	b.write(w, http.StatusCreated, p, 0)
}

// mutateProject runs fn on the stored project under the lock. fn returns a
// client-visible rejection message, or "" to accept.
func (b *Backend) mutateProject(w http.ResponseWriter, r *http.Request, fn func(p *domain.Project) string) (domain.Project, bool) {
	b.mu.Lock()
	p, ok := b.projects[pathID(r, "id")]
	var reject string
	if ok {
		reject = fn(p)
	}
	var out domain.Project
	if ok {
		out = *p
	}
	b.mu.Unlock()
	switch {
	case !ok:
		b.fail(w, http.StatusNotFound, "project not found")
		return out, false
	case reject != "":
		b.fail(w, http.StatusBadRequest, reject)
		return out, false
	}
	return out, true
}

func (b *Backend) updateProject(w http.ResponseWriter, r *http.Request) {
	var in w2hsdk.ProjectInput
	if err := decode(r, &in); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	p, ok := b.mutateProject(w, r, func(p *domain.Project) string {
		if !p.Editable() {
			return "project can no longer be edited"
		}
		p.Title = in.Title
		p.Description = in.Description
		p.Origin = in.Origin
		p.OriginNumber = in.OriginNumber
		p.OriginDate = in.OriginDate
		return ""
	})
	if ok {
		b.transitioned(w, p)
	}
}

func (b *Backend) startProject(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.transition(w, r, "StartProject"); !ok {
		return
	}
	p, ok := b.mutateProject(w, r, func(p *domain.Project) string {
		if p.Status != domain.ProjectCreated {
			return "project has already been started"
		}
		p.Status = domain.ProjectInProgress
		p.StartedAt = domain.NewTimestamp(b.now())
		return ""
	})
	if ok {
		b.transitioned(w, p)
	}
}

func (b *Backend) completeProject(w http.ResponseWriter, r *http.Request) {
	body, ok := b.transition(w, r, "CompleteProject")
	if !ok {
		return
	}
	p, ok := b.mutateProject(w, r, func(p *domain.Project) string {
		if p.Status != domain.ProjectInProgress {
			return "project is not in progress"
		}
		for _, id := range p.ActionIDs {
			if a, ok := b.actions[id]; ok && !a.IsDeleted && a.Status != domain.ActionCompleted {
				return "all actions must be completed first"
			}
		}
		p.Status = domain.ProjectCompleted
		p.CompletedAt = domain.NewTimestamp(b.now())
		p.ConclusionText = body.ConclusionText
		return ""
	})
	if ok {
		b.transitioned(w, p)
	}
}

func (b *Backend) deleteProject(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.transition(w, r, "DeleteProject"); !ok {
		return
	}
	_, ok := b.mutateProject(w, r, func(p *domain.Project) string {
		if p.Status == domain.ProjectCompleted {
			return "completed projects cannot be deleted"
		}
		p.IsDeleted = true
		return ""
	})
	if ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Backend) concludeProject(w http.ResponseWriter, r *http.Request) {
	var body conclusionBody
	if err := decode(r, &body); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	_, ok := b.mutateProject(w, r, func(p *domain.Project) string {
		if p.Status != domain.ProjectCompleted {
			return "project is not completed"
		}
		p.ConclusionText = body.ConclusionText
		return ""
	})
	if ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Backend) attachAction(w http.ResponseWriter, r *http.Request) {
	var assoc w2hsdk.Association
	if err := decode(r, &assoc); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	_, ok := b.mutateProject(w, r, func(p *domain.Project) string {
		a, ok := b.actions[assoc.ActionID]
		if !ok {
			return "action not found"
		}
		for _, id := range p.ActionIDs {
			if id == a.ID {
				return ""
			}
		}
		a.ProjectID = p.ID
		p.ActionIDs = append(p.ActionIDs, a.ID)
		return ""
	})
	if ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

// Actions.

func (b *Backend) listActions(w http.ResponseWriter, r *http.Request) {
	b.ok(w, b.Actions())
}

func (b *Backend) getAction(w http.ResponseWriter, r *http.Request) {
	a, ok := b.Action(pathID(r, "id"))
	if !ok {
		b.fail(w, http.StatusNotFound, "action not found")
		return
	}
	b.ok(w, a)
}

// createAction stores an unlinked action; only attachAction links it.
func (b *Backend) createAction(w http.ResponseWriter, r *http.Request) {
	var in w2hsdk.ActionInput
	if err := decode(r, &in); err != nil || strings.TrimSpace(in.Title) == "" {
		b.fail(w, http.StatusBadRequest, "title is required")
		return
	}
	a := b.AddAction(domain.Action{
		UserID: in.UserID, Title: in.Title,
		What: in.What, Why: in.Why, When: in.When, Where: in.Where,
		Who: in.Who, How: in.How, HowMuch: in.HowMuch,
		Status: domain.ActionNotStarted,
	})
	b.write(w, http.StatusCreated, a, 0)
}

func (b *Backend) mutateAction(w http.ResponseWriter, r *http.Request, fn func(a *domain.Action) string) (domain.Action, bool) {
	b.mu.Lock()
	a, ok := b.actions[pathID(r, "id")]
	var reject string
	var out domain.Action
	if ok {
		reject = fn(a)
		out = *a
	}
	b.mu.Unlock()
	switch {
	case !ok:
		b.fail(w, http.StatusNotFound, "action not found")
		return out, false
	case reject != "":
		b.fail(w, http.StatusBadRequest, reject)
		return out, false
	}
	return out, true
}

func (b *Backend) updateAction(w http.ResponseWriter, r *http.Request) {
	var in w2hsdk.ActionInput
	if err := decode(r, &in); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	a, ok := b.mutateAction(w, r, func(a *domain.Action) string {
		if a.Status == domain.ActionCompleted {
			return "action is completed"
		}
		a.Title, a.What, a.Why, a.When = in.Title, in.What, in.Why, in.When
		a.Where, a.Who, a.How, a.HowMuch = in.Where, in.Who, in.How, in.HowMuch
		return ""
	})
	if ok {
		b.transitioned(w, a)
	}
}

func (b *Backend) startAction(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.transition(w, r, "StartAction"); !ok {
		return
	}
	a, ok := b.mutateAction(w, r, func(a *domain.Action) string {
		if a.Status != domain.ActionNotStarted {
			return "action has already been started"
		}
		a.Status = domain.ActionInProgress
		a.StartedAt = domain.NewTimestamp(b.now())
		return ""
	})
	if ok {
		b.transitioned(w, a)
	}
}

func (b *Backend) completeAction(w http.ResponseWriter, r *http.Request) {
	body, ok := b.transition(w, r, "CompleteAction")
	if !ok {
		return
	}
	a, ok := b.mutateAction(w, r, func(a *domain.Action) string {
		if a.Status != domain.ActionInProgress {
			return "action is not in progress"
		}
		a.Status = domain.ActionCompleted
		a.CompletedAt = domain.NewTimestamp(b.now())
		a.ConclusionText = body.ConclusionText
		return ""
	})
	if ok {
		b.transitioned(w, a)
	}
}

func (b *Backend) deleteAction(w http.ResponseWriter, r *http.Request) {
	if _, ok := b.transition(w, r, "DeleteAction"); !ok {
		return
	}
	_, ok := b.mutateAction(w, r, func(a *domain.Action) string {
		if a.Status == domain.ActionCompleted {
			return "completed actions cannot be deleted"
		}
		a.IsDeleted = true
		return ""
	})
	if ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *Backend) concludeAction(w http.ResponseWriter, r *http.Request) {
	var body conclusionBody
	if err := decode(r, &body); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	_, ok := b.mutateAction(w, r, func(a *domain.Action) string {
		if a.Status != domain.ActionCompleted {
			return "action is not completed"
		}
		a.ConclusionText = body.ConclusionText
		return ""
	})
	if ok {
		w.WriteHeader(http.StatusNoContent)
	}
}

// Departments.

// department returns d with its members embedded. Callers hold b.mu.
func (b *Backend) department(d *domain.Department) domain.Department {
	out := *d
	out.Users = nil
	for _, acc := range b.users {
		if acc.user.DepartmentID == d.ID {
			out.Users = append(out.Users, acc.user)
		}
	}
	sortByID(out.Users, func(u domain.User) domain.ID { return u.ID })
	return out
}

func (b *Backend) listDepartments(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]domain.Department, 0, len(b.departments))
	for _, d := range b.departments {
		out = append(out, b.department(d))
	}
	b.mu.Unlock()
	sortByID(out, func(d domain.Department) domain.ID { return d.ID })
	b.ok(w, out)
}

func (b *Backend) getDepartment(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	d, ok := b.departments[pathID(r, "id")]
	var out domain.Department
	if ok {
		out = b.department(d)
	}
	b.mu.Unlock()
	if !ok {
		b.fail(w, http.StatusNotFound, "department not found")
		return
	}
	b.ok(w, out)
}

func (b *Backend) createDepartment(w http.ResponseWriter, r *http.Request) {
	var in w2hsdk.DepartmentInput
	if err := decode(r, &in); err != nil || strings.TrimSpace(in.Name) == "" {
		b.fail(w, http.StatusBadRequest, "name is required")
		return
	}
	d := b.AddDepartment(domain.Department{Name: in.Name, LiderID: in.LiderID, GestorID: in.GestorID})
	b.write(w, http.StatusCreated, d, 0)
}

func (b *Backend) updateDepartment(w http.ResponseWriter, r *http.Request) {
	var in w2hsdk.DepartmentInput
	if err := decode(r, &in); err != nil {
		b.fail(w, http.StatusBadRequest, "invalid body")
		return
	}
	b.mu.Lock()
	d, ok := b.departments[pathID(r, "id")]
	if ok {
		d.Name, d.LiderID, d.GestorID = in.Name, in.LiderID, in.GestorID
	}
	b.mu.Unlock()
	if !ok {
		b.fail(w, http.StatusNotFound, "department not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
