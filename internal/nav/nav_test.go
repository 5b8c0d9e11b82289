package nav_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fivew2h/internal/domain"
	"fivew2h/internal/identity"
	"fivew2h/internal/nav"
)

type resolverFunc func(ctx context.Context, id domain.ID) (domain.ID, error)

func (f resolverFunc) DepartmentOf(ctx context.Context, id domain.ID) (domain.ID, error) {
	return f(ctx, id)
}

func TestMenuForRoles(t *testing.T) {
	assert.Equal(t, []string{"Add Collaborator", "List All Projects", "Change Password", "Settings"},
		nav.MenuFor(domain.RoleAdmin).Labels())
	assert.Equal(t, []string{"List Department Projects", "Change Password"},
		nav.MenuFor(domain.RoleLider).Labels())
	assert.Equal(t, []string{"List Managed Departments"},
		nav.MenuFor(domain.RoleGestor).Labels())
	assert.Equal(t, []string{"Add Project", "List My Projects", "Change Password"},
		nav.MenuFor(domain.RoleColaborador).Labels())
}

func TestMenuForUnknownRoleIsEmpty(t *testing.T) {
	assert.Empty(t, nav.MenuFor(""))
	assert.Empty(t, nav.MenuFor(domain.Role("Visitante")))
}

func TestLiderLinkPendingUntilResolved(t *testing.T) {
	m := nav.MenuFor(domain.RoleLider)
	item, ok := m.Item(nav.ListDepartmentProjects)
	require.True(t, ok)
	assert.True(t, item.Pending)
	assert.Empty(t, item.Route)

	still := m.WithDepartment("")
	item, _ = still.Item(nav.ListDepartmentProjects)
	assert.True(t, item.Pending)

	resolved := m.WithDepartment("8")
	item, _ = resolved.Item(nav.ListDepartmentProjects)
	assert.False(t, item.Pending)
	assert.Equal(t, "/listar-projetos-setor/8", item.Route)

	// the receiver is untouched
	item, _ = m.Item(nav.ListDepartmentProjects)
	assert.True(t, item.Pending)
}

func TestBuildResolvesLiderDepartment(t *testing.T) {
	var asked domain.ID
	r := resolverFunc(func(_ context.Context, id domain.ID) (domain.ID, error) {
		asked = id
		return "3", nil
	})
	m, err := nav.Build(context.Background(), identity.Claims{Role: domain.RoleLider, UserID: "11"}, r)
	require.NoError(t, err)
	assert.Equal(t, domain.ID("11"), asked)
	item, _ := m.Item(nav.ListDepartmentProjects)
	assert.Equal(t, "/listar-projetos-setor/3", item.Route)
}

func TestBuildKeepsLinkPendingOnLookupError(t *testing.T) {
	r := resolverFunc(func(context.Context, domain.ID) (domain.ID, error) {
		return "", errors.New("boom")
	})
	m, err := nav.Build(context.Background(), identity.Claims{Role: domain.RoleLider, UserID: "11"}, r)
	require.Error(t, err)
	item, ok := m.Item(nav.ListDepartmentProjects)
	require.True(t, ok)
	assert.True(t, item.Pending)
}

func TestBuildSkipsLookupForOtherRoles(t *testing.T) {
	r := resolverFunc(func(context.Context, domain.ID) (domain.ID, error) {
		t.Fatal("lookup must not run")
		return "", nil
	})
	m, err := nav.Build(context.Background(), identity.Claims{Role: domain.RoleGestor, UserID: "2"}, r)
	require.NoError(t, err)
	assert.Len(t, m, 1)
}

func TestGuard(t *testing.T) {
	r := nav.NewRouter()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }
	authed := identity.Claims{Role: domain.RoleColaborador, UserID: "1"}
	expired := identity.Claims{Role: domain.RoleColaborador, UserID: "1", ExpiresAt: now.Add(-time.Second)}

	d := r.Guard("/login", identity.Claims{})
	assert.True(t, d.Allowed)

	for _, path := range []string{"/home", "/projeto/4", "/registro", "/listar-projetos-setor/2"} {
		d = r.Guard(path, identity.Claims{})
		assert.False(t, d.Allowed, path)
		assert.Equal(t, "/login", d.Redirect, path)

		d = r.Guard(path, expired)
		assert.Equal(t, "/login", d.Redirect, path)
	}

	d = r.Guard("/projeto/4/update", authed)
	assert.True(t, d.Allowed)
	assert.Equal(t, nav.RouteUpdateProject, d.Pattern)
	assert.Equal(t, "4", d.Params["id"])

	d = r.Guard("/projeto/9/inserir-acao?x=1", authed)
	assert.True(t, d.Allowed)
	assert.Equal(t, "9", d.Params["projectId"])

	assert.Equal(t, "/home", r.Guard("/", authed).Redirect)
	assert.Equal(t, "/login", r.Guard("/", identity.Claims{}).Redirect)
	assert.Equal(t, "/home", r.Guard("/nowhere", authed).Redirect)
}

func TestRouteHelpers(t *testing.T) {
	assert.Equal(t, "/projeto/5", nav.ProjectRoute("5"))
	assert.Equal(t, "/projeto/5/update", nav.UpdateProjectRoute("5"))
	assert.Equal(t, "/projeto/5/inserir-acao", nav.AddActionRoute("5"))
}
