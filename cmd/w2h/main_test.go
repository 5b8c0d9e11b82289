package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fivew2h/internal/apitest"
	"fivew2h/internal/domain"
	"fivew2h/internal/events"
)

type cli struct {
	t   *testing.T
	url string
	dir string
}

func newCLI(t *testing.T, b *apitest.Backend) *cli {
	return &cli{t: t, url: apitest.Serve(t, b), dir: t.TempDir()}
}

// run executes one invocation with stdin as input and returns stdout.
func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"-w", c.dir, "--api", c.url, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (c *cli) ok(args ...string) string {
	c.t.Helper()
	out, err := c.run("", args...)
	require.NoError(c.t, err, "w2h %s: %s", strings.Join(args, " "), describeErrorOrEmpty(err))
	return out
}

func (c *cli) decode(v any, args ...string) {
	c.t.Helper()
	out := c.ok(append([]string{"--json"}, args...)...)
	require.NoError(c.t, json.Unmarshal([]byte(out), v), out)
}

func describeErrorOrEmpty(err error) string {
	if err == nil {
		return ""
	}
	return describeError(err)
}

func seedColaborador(b *apitest.Backend) domain.User {
	return b.AddUser(domain.User{FullName: "Bia", Email: "a@b.com", Role: domain.RoleColaborador}, "secret1")
}

func TestProjectLifecycleFromTheCLI(t *testing.T) {
	b := apitest.New()
	b.Envelope = true
	seedColaborador(b)
	c := newCLI(t, b)

	_, err := c.run("", "home")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/login")

	out := c.ok("login", "--email", "a@b.com", "--password", "secret1")
	assert.Contains(t, out, "Logged in as Bia (Colaborador)")
	assert.Contains(t, c.ok("menu"), "List My Projects")

	var p domain.Project
	c.decode(&p, "project", "create", "--title", "Pilot", "--origin", "audit", "--origin-number", "12", "--origin-date", "2024-01-01")
	require.False(t, p.ID.IsZero())

	mine := c.ok("project", "mine")
	assert.Contains(t, mine, "Pilot")
	assert.Contains(t, mine, "Criado")

	_, err = c.run("", "action", "add", "--project", p.ID.String(), "--title", "t", "--what", "w", "--why", "y",
		"--when", "n", "--where", "h", "--who", "me", "--how", "so")
	require.Error(t, err, "actions need an in-progress project")

	assert.Contains(t, c.ok("project", "start", p.ID.String()), "Em Andamento")

	var act domain.Action
	c.decode(&act, "action", "add", "--project", p.ID.String(), "--title", "Survey", "--what", "w", "--why", "y",
		"--when", "tomorrow", "--where", "hq", "--who", "me", "--how", "form", "--how-much", "10.5")
	stored, ok := b.Project(p.ID)
	require.True(t, ok)
	assert.Contains(t, stored.ActionIDs, act.ID)

	_, err = c.run("", "project", "complete", p.ID.String())
	require.Error(t, err)
	assert.Contains(t, describeError(err), "all actions must be completed first")

	c.ok("action", "start", act.ID.String())
	c.ok("action", "complete", act.ID.String(), "--conclusion", "done")
	out = c.ok("project", "complete", p.ID.String(), "--conclusion", "went well")
	assert.Contains(t, out, "Concluído")
	assert.Contains(t, out, "went well")

	_, err = c.run("", "project", "delete", p.ID.String(), "--yes")
	require.Error(t, err, "completed projects cannot be deleted")

	var rows []domain.Activity
	c.decode(&rows, "activity", "--target", "project")
	types := make([]string, 0, len(rows))
	for _, r := range rows {
		types = append(types, r.Type)
	}
	assert.Equal(t, []string{events.ProjectCompleted, events.ProjectStarted, events.ProjectCreated}, types)

	c.ok("logout")
	_, err = c.run("", "whoami")
	require.Error(t, err)
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	b := apitest.New()
	u := seedColaborador(b)
	p := b.AddProject(domain.Project{Title: "Scratch", UserID: u.ID, Origin: "x", OriginDate: "2024-01-01"})
	c := newCLI(t, b)
	c.ok("login", "--email", "a@b.com", "--password", "secret1")

	out, err := c.run("n\n", "project", "delete", p.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")
	assert.Empty(t, b.Calls(http.MethodDelete, "/api/projects/{id}/delete"))

	out, err = c.run("y\n", "project", "delete", p.ID.String())
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted project "+p.ID.String())
	assert.Len(t, b.Calls(http.MethodDelete, "/api/projects/{id}/delete"), 1)
}

func TestPartialAddPointsAtAttach(t *testing.T) {
	b := apitest.New()
	u := seedColaborador(b)
	p := b.AddProject(domain.Project{Title: "Pilot", UserID: u.ID, Status: domain.ProjectInProgress, Origin: "x", OriginDate: "2024-01-01"})
	c := newCLI(t, b)
	c.ok("login", "--email", "a@b.com", "--password", "secret1")

	b.FailNext(http.MethodPost, "/api/projects/{id}/actions", apitest.Fault{Status: http.StatusInternalServerError})
	_, err := c.run("", "action", "add", "--project", p.ID.String(), "--title", "t", "--what", "w", "--why", "y",
		"--when", "n", "--where", "h", "--who", "me", "--how", "so")
	require.Error(t, err)
	msg := describeError(err)
	assert.Contains(t, msg, "w2h action attach --project "+p.ID.String())

	actions := b.Actions()
	require.Len(t, actions, 1)
	c.ok("action", "attach", "--project", p.ID.String(), "--action", actions[0].ID.String())
	stored, _ := b.Project(p.ID)
	assert.Equal(t, []domain.ID{actions[0].ID}, stored.ActionIDs)
	assert.Len(t, b.Calls(http.MethodPost, "/api/actions"), 1, "the action must not be created twice")
}

func TestRouteAndConfigCommands(t *testing.T) {
	b := apitest.New()
	seedColaborador(b)
	c := newCLI(t, b)

	assert.Contains(t, c.ok("route", "/listar-meus-projetos"), "redirect: /login")
	c.ok("login", "--email", "a@b.com", "--password", "secret1")
	out := c.ok("route", "/projeto/7")
	assert.Contains(t, out, "allowed: /projeto/{id}")
	assert.Contains(t, out, "id=7")
	assert.Contains(t, c.ok("route", "/nowhere"), "redirect: /home")

	assert.Contains(t, c.ok("config", "init"), "w2h.yml")
	assert.Contains(t, c.ok("config", "validate"), "config ok")
	_, err := c.run("", "config", "init")
	require.Error(t, err)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	b := apitest.New()
	seedColaborador(b)
	c := newCLI(t, b)

	_, err := c.run("", "login", "--email", "a@b.com", "--password", "nope")
	require.Error(t, err)
	assert.Contains(t, describeError(err), "invalid email or password")
	_, err = c.run("", "whoami")
	require.Error(t, err)
}

func TestActionUpdateChangesOnlyGivenFields(t *testing.T) {
	b := apitest.New()
	u := seedColaborador(b)
	p := b.AddProject(domain.Project{Title: "Pilot", UserID: u.ID, Status: domain.ProjectInProgress, Origin: "x", OriginDate: "2024-01-01"})
	a := b.AddAction(domain.Action{ProjectID: p.ID, UserID: u.ID, Title: "Survey", What: "w", Why: "y", When: "n",
		Where: "hq", Who: "me", How: "form", HowMuch: 3, Status: domain.ActionInProgress})
	c := newCLI(t, b)
	c.ok("login", "--email", "a@b.com", "--password", "secret1")

	assert.Contains(t, c.ok("action", "update", a.ID.String(), "--where", "branch", "--how-much", "7.5"), "Updated action "+a.ID.String())
	stored, ok := b.Action(a.ID)
	require.True(t, ok)
	assert.Equal(t, "branch", stored.Where)
	assert.Equal(t, 7.5, stored.HowMuch)
	assert.Equal(t, "Survey", stored.Title)
	assert.Equal(t, "form", stored.How)
	assert.Equal(t, p.ID, stored.ProjectID)

	c.ok("action", "complete", a.ID.String(), "--conclusion", "ok")
	_, err := c.run("", "action", "update", a.ID.String(), "--title", "late")
	require.Error(t, err)
	assert.Contains(t, describeError(err), "completed actions cannot be edited")
}
