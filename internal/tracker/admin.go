package tracker

import (
	"context"

	"fivew2h/internal/domain"
	"fivew2h/internal/events"
	"fivew2h/internal/failure"
	"fivew2h/internal/forms"
	"fivew2h/internal/listing"
	w2hsdk "fivew2h/sdk/go"
)

func fetchAll(size int) w2hsdk.ListParams {
	return w2hsdk.ListParams{PageNumber: 1, PageSize: size, Status: w2hsdk.AllStatuses}
}

// ListUsers pages the live users locally.
func (t *Tracker) ListUsers(ctx context.Context, q listing.Query) (listing.Result[domain.User], error) {
	users, err := t.API.ListUsers(ctx)
	if err != nil {
		return listing.Result[domain.User]{}, t.check(ctx, err)
	}
	return listing.Page(users, q, listing.UserFields), nil
}

// RegisterUser creates a user from the registration form.
func (t *Tracker) RegisterUser(ctx context.Context, form forms.UserForm) (domain.User, error) {
	form.ID = ""
	if err := form.Check(); err != nil {
		return domain.User{}, err
	}
	u, err := t.API.CreateUser(ctx, form.Input())
	if err != nil {
		return domain.User{}, t.check(ctx, err)
	}
	t.record(ctx, events.Entry{Type: events.UserRegistered, Target: "user", EntityID: u.ID.String(),
		Payload: events.EventPayload{"email": u.Email, "role": string(u.Role)}})
	return u, nil
}

// UpdateUser edits a profile. form.ID selects the user.
func (t *Tracker) UpdateUser(ctx context.Context, form forms.UserForm) error {
	if form.ID.IsZero() {
		return &failure.ValidationFailure{Fields: map[string]string{"id": "required"}}
	}
	if err := form.Check(); err != nil {
		return err
	}
	if err := t.API.UpdateUser(ctx, form.ID, form.Input()); err != nil {
		return t.check(ctx, err)
	}
	t.record(ctx, events.Entry{Type: events.UserUpdated, Target: "user", EntityID: form.ID.String()})
	return nil
}

// DeleteUser soft-deletes a user. The caller confirms first.
func (t *Tracker) DeleteUser(ctx context.Context, id domain.ID) error {
	if err := t.API.DeleteUser(ctx, id); err != nil {
		return t.check(ctx, err)
	}
	t.record(ctx, events.Entry{Type: events.UserDeleted, Target: "user", EntityID: id.String()})
	return nil
}

// ChangePassword changes the caller's password.
func (t *Tracker) ChangePassword(ctx context.Context, form forms.ChangePasswordForm) error {
	if form.UserID.IsZero() {
		form.UserID = t.actor(ctx)
	}
	if err := form.Check(); err != nil {
		return err
	}
	if err := t.API.ChangePassword(ctx, form.Request()); err != nil {
		return t.check(ctx, err)
	}
	t.record(ctx, events.Entry{Type: events.PasswordChanged, Target: "user", EntityID: form.UserID.String()})
	return nil
}

// ListDepartments pages the live departments locally.
func (t *Tracker) ListDepartments(ctx context.Context, q listing.Query) (listing.Result[domain.Department], error) {
	depts, err := t.API.ListDepartments(ctx)
	if err != nil {
		return listing.Result[domain.Department]{}, t.check(ctx, err)
	}
	return listing.Page(depts, q, listing.DepartmentFields), nil
}

// ManagedDepartments returns the live departments whose gestor is
// gestorID, with their embedded user lists stripped of deleted users.
func (t *Tracker) ManagedDepartments(ctx context.Context, gestorID domain.ID) ([]domain.Department, error) {
	depts, err := t.API.ListDepartments(ctx)
	if err != nil {
		return nil, t.check(ctx, err)
	}
	out := []domain.Department{}
	for _, d := range listing.Active(depts, listing.DepartmentFields.Deleted) {
		if d.GestorID == gestorID {
			d.Users = d.ActiveUsers()
			out = append(out, d)
		}
	}
	return out, nil
}

// DepartmentPickers lists the users eligible as lider and gestor.
func (t *Tracker) DepartmentPickers(ctx context.Context) (lideres, gestores []domain.User, err error) {
	users, err := t.API.ListUsers(ctx)
	if err != nil {
		return nil, nil, t.check(ctx, err)
	}
	lideres, gestores = forms.Pickers(users)
	return lideres, gestores, nil
}

// CreateDepartment validates and creates a department.
func (t *Tracker) CreateDepartment(ctx context.Context, form forms.DepartmentForm) (domain.Department, error) {
	if err := form.Check(); err != nil {
		return domain.Department{}, err
	}
	d, err := t.API.CreateDepartment(ctx, form.Input())
	if err != nil {
		return domain.Department{}, t.check(ctx, err)
	}
	t.record(ctx, events.Entry{Type: events.DepartmentCreated, Target: "department", EntityID: d.ID.String(),
		Payload: events.EventPayload{"name": d.Name}})
	return d, nil
}

// UpdateDepartment validates and replaces a department.
func (t *Tracker) UpdateDepartment(ctx context.Context, id domain.ID, form forms.DepartmentForm) error {
	if err := form.Check(); err != nil {
		return err
	}
	if err := t.API.UpdateDepartment(ctx, id, form.Input()); err != nil {
		return t.check(ctx, err)
	}
	t.record(ctx, events.Entry{Type: events.DepartmentUpdated, Target: "department", EntityID: id.String()})
	return nil
}

// Department fetches one department with its live users.
func (t *Tracker) Department(ctx context.Context, id domain.ID) (domain.Department, error) {
	d, err := t.API.GetDepartment(ctx, id)
	if err != nil {
		return domain.Department{}, t.check(ctx, err)
	}
	d.Users = d.ActiveUsers()
	return d, nil
}

// User fetches one user.
func (t *Tracker) User(ctx context.Context, id domain.ID) (domain.User, error) {
	u, err := t.API.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, t.check(ctx, err)
	}
	return u, nil
}
