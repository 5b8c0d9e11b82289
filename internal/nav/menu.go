// Package nav builds the role-gated menu and guards client routes.
package nav

import (
	"context"
	"fmt"

	"fivew2h/internal/domain"
	"fivew2h/internal/identity"
)

// Key identifies a menu entry independently of its label.
type Key string

const (
	AddCollaborator        Key = "add_collaborator"
	ListAllProjects        Key = "list_all_projects"
	ChangePassword         Key = "change_password"
	Settings               Key = "settings"
	ListDepartmentProjects Key = "list_department_projects"
	ListManagedDepartments Key = "list_managed_departments"
	AddProject             Key = "add_project"
	ListOwnProjects        Key = "list_own_projects"
)

// Item is one menu entry. A pending item has no route yet and must be shown
// disabled.
type Item struct {
	Key     Key    `json:"key"`
	Label   string `json:"label"`
	Route   string `json:"route,omitempty"`
	Pending bool   `json:"pending,omitempty"`
}

// Menu is an ordered list of items.
type Menu []Item

var menus = map[domain.Role]Menu{
	domain.RoleAdmin: {
		{Key: AddCollaborator, Label: "Add Collaborator", Route: RouteRegister},
		{Key: ListAllProjects, Label: "List All Projects", Route: RouteListProjects},
		{Key: ChangePassword, Label: "Change Password", Route: RouteChangePassword},
		{Key: Settings, Label: "Settings", Route: RouteSettings},
	},
	domain.RoleLider: {
		{Key: ListDepartmentProjects, Label: "List Department Projects", Pending: true},
		{Key: ChangePassword, Label: "Change Password", Route: RouteChangePassword},
	},
	domain.RoleGestor: {
		{Key: ListManagedDepartments, Label: "List Managed Departments", Route: RouteDepartments},
	},
	domain.RoleColaborador: {
		{Key: AddProject, Label: "Add Project", Route: RouteAddProject},
		{Key: ListOwnProjects, Label: "List My Projects", Route: RouteListOwnProjects},
		{Key: ChangePassword, Label: "Change Password", Route: RouteChangePassword},
	},
}

// MenuFor returns the static menu of a role. Unknown or empty roles get an
// empty menu. The Lider department link stays pending until WithDepartment.
func MenuFor(role domain.Role) Menu {
	m := menus[role]
	out := make(Menu, len(m))
	copy(out, m)
	return out
}

// WithDepartment resolves the department projects link. A zero id leaves it
// pending.
func (m Menu) WithDepartment(id domain.ID) Menu {
	out := make(Menu, len(m))
	copy(out, m)
	if id.IsZero() {
		return out
	}
	for i := range out {
		if out[i].Key == ListDepartmentProjects {
			out[i].Route = DepartmentProjectsRoute(id)
			out[i].Pending = false
		}
	}
	return out
}

// Labels returns the item labels in order.
func (m Menu) Labels() []string {
	out := make([]string, 0, len(m))
	for _, it := range m {
		out = append(out, it.Label)
	}
	return out
}

// Item returns the entry for key.
func (m Menu) Item(key Key) (Item, bool) {
	for _, it := range m {
		if it.Key == key {
			return it, true
		}
	}
	return Item{}, false
}

// DepartmentResolver looks up the department of a user.
type DepartmentResolver interface {
	DepartmentOf(ctx context.Context, userID domain.ID) (domain.ID, error)
}

// Build returns the menu for the decoded claims, resolving the Lider
// department through r. On lookup failure the menu is still returned with the
// link pending, together with the error.
func Build(ctx context.Context, claims identity.Claims, r DepartmentResolver) (Menu, error) {
	m := MenuFor(claims.Role)
	if claims.Role != domain.RoleLider {
		return m, nil
	}
	if r == nil || !claims.HasUserID() {
		return m, nil
	}
	dept, err := r.DepartmentOf(ctx, claims.UserID)
	if err != nil {
		return m, fmt.Errorf("resolve department of user %s: %w", claims.UserID, err)
	}
	return m.WithDepartment(dept), nil
}
