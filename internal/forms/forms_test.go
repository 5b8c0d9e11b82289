package forms_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fivew2h/internal/domain"
	"fivew2h/internal/failure"
	"fivew2h/internal/forms"
)

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	var vf *failure.ValidationFailure
	require.True(t, errors.As(err, &vf), "expected validation failure, got %v", err)
	return vf.Fields
}

func TestLoginForm(t *testing.T) {
	f := forms.LoginForm{Email: " a@b.com ", Password: "x"}
	require.NoError(t, f.Check())
	assert.Equal(t, "a@b.com", f.Email)

	f = forms.LoginForm{Email: "not-an-email"}
	got := fields(t, f.Check())
	assert.Equal(t, "must be a valid email address", got["email"])
	assert.Equal(t, "required", got["password"])
}

func TestProjectForm(t *testing.T) {
	f := forms.ProjectForm{Title: "Pilot", Origin: "audit", OriginNumber: 12, OriginDate: "2024-01-01"}
	require.NoError(t, f.Check())

	in := f.Input("42")
	assert.Equal(t, domain.ID("42"), in.UserID)
	assert.Equal(t, domain.ProjectCreated, in.Status)
	assert.Equal(t, 12, in.OriginNumber)

	f = forms.ProjectForm{Title: "   ", OriginDate: "01/01/2024", OriginNumber: -1}
	got := fields(t, f.Check())
	assert.Equal(t, "required", got["title"])
	assert.Equal(t, "required", got["origin"])
	assert.Contains(t, got["originDate"], "YYYY-MM-DD")
	assert.Contains(t, got, "originNumber")
	assert.NotContains(t, got, "description")
}

func TestActionFormRequiresEvery5W2HField(t *testing.T) {
	f := forms.ActionForm{Title: "Survey", What: "w"}
	got := fields(t, f.Check())
	for _, k := range []string{"why", "when", "where", "who", "how"} {
		assert.Equal(t, "required", got[k], k)
	}
	assert.NotContains(t, got, "title")
	assert.NotContains(t, got, "howMuch")

	f = forms.ActionForm{Title: "t", What: "a", Why: "b", When: "c", Where: "d", Who: "e", How: "f", HowMuch: 10.5}
	require.NoError(t, f.Check())
	in := f.Input("1", "2")
	assert.Equal(t, domain.ID("1"), in.ProjectID)
	assert.Equal(t, 10.5, in.HowMuch)
}

func TestUserForm(t *testing.T) {
	f := forms.UserForm{FullName: "Ana", Email: "ana@x.com", Role: "colaborador"}
	got := fields(t, f.Check())
	assert.Equal(t, "required", got["password"])
	assert.Equal(t, domain.RoleColaborador, f.Role)

	f.Password = "secret1"
	require.NoError(t, f.Check())

	edit := forms.UserForm{ID: "3", FullName: "Ana", Email: "ana@x.com", Role: domain.RoleAdmin}
	require.NoError(t, edit.Check())

	bad := forms.UserForm{ID: "3", FullName: "Ana", Email: "ana@x.com", Role: "Chefe"}
	assert.Contains(t, fields(t, bad.Check())["role"], "must be one of")
}

func TestChangePasswordForm(t *testing.T) {
	f := forms.ChangePasswordForm{UserID: "1", CurrentPassword: "abcdef", NewPassword: "abcdef", Confirmation: "zzz"}
	got := fields(t, f.Check())
	assert.Equal(t, "must differ from the current password", got["newPassword"])
	assert.Equal(t, "does not match", got["confirmPassword"])

	f = forms.ChangePasswordForm{UserID: "1", CurrentPassword: "abcdef", NewPassword: "ghijkl", Confirmation: "ghijkl"}
	require.NoError(t, f.Check())
	assert.Equal(t, "ghijkl", f.Request().NewPassword)
}

func TestConclusionFormRejectsWhitespace(t *testing.T) {
	f := forms.ConclusionForm{Text: " \n\t "}
	assert.Equal(t, "required", fields(t, f.Check())["conclusionText"])
}

func TestDepartmentFormAndPickers(t *testing.T) {
	f := forms.DepartmentForm{}
	assert.Equal(t, "required", fields(t, f.Check())["name"])

	lideres, gestores := forms.Pickers([]domain.User{
		{ID: "1", Role: domain.RoleLider},
		{ID: "2", Role: domain.RoleGestor},
		{ID: "3", Role: domain.RoleColaborador},
		{ID: "4", Role: domain.RoleLider, IsDeleted: true},
	})
	require.Len(t, lideres, 1)
	require.Len(t, gestores, 1)
	assert.Equal(t, domain.ID("1"), lideres[0].ID)
	assert.Equal(t, domain.ID("2"), gestores[0].ID)
}
