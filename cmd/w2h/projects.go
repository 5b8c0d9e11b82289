package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fivew2h/internal/app"
	"fivew2h/internal/domain"
	"fivew2h/internal/forms"
	"fivew2h/internal/lifecycle"
	"fivew2h/internal/listing"
	"fivew2h/internal/nav"
	"fivew2h/internal/tracker"
)

func projectCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}
	cmd.AddCommand(projectListCmd(env, "list", "List all projects", tracker.ScopeAll))
	cmd.AddCommand(projectListCmd(env, "mine", "List your own projects", tracker.ScopeOwn))
	cmd.AddCommand(projectListCmd(env, "department", "List the projects of a department", tracker.ScopeDepartment))
	cmd.AddCommand(projectShowCmd(env))
	cmd.AddCommand(projectCreateCmd(env))
	cmd.AddCommand(projectUpdateCmd(env))
	cmd.AddCommand(projectTransitionCmd(env, "start", "Start a created project", func(*cobra.Command) lifecycle.Event { return lifecycle.Start{} }))
	complete := projectTransitionCmd(env, "complete", "Complete an in-progress project", func(c *cobra.Command) lifecycle.Event {
		text, _ := c.Flags().GetString("conclusion")
		return lifecycle.Complete{Conclusion: text}
	})
	complete.Flags().String("conclusion", "", "conclusion text sent with the completion")
	cmd.AddCommand(complete)
	conclude := projectTransitionCmd(env, "conclude", "Record the conclusion of a completed project", func(c *cobra.Command) lifecycle.Event {
		text, _ := c.Flags().GetString("text")
		return lifecycle.SetConclusion{Text: text}
	})
	conclude.Flags().String("text", "", "conclusion text")
	cmd.AddCommand(conclude)
	cmd.AddCommand(projectTransitionCmd(env, "delete", "Delete a project", func(*cobra.Command) lifecycle.Event { return lifecycle.Delete{} }))
	return cmd
}

// listFlags are the search, filter and paging flags of the list commands.
type listFlags struct {
	search   string
	status   string
	page     int
	pageSize int
}

func (f *listFlags) register(cmd *cobra.Command, withStatus bool) {
	cmd.Flags().StringVar(&f.search, "search", "", "case-insensitive search term")
	if withStatus {
		cmd.Flags().StringVar(&f.status, "status", "", "status filter (name or code)")
	}
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "page size (defaults to list.page_size)")
}

func (f *listFlags) query(a *app.Context) (listing.Query, error) {
	q := listing.NewQuery()
	q.Search = f.search
	q.PageNumber = f.page
	q.PageSize = a.Config.List.PageSize
	if f.pageSize > 0 {
		q.PageSize = f.pageSize
	}
	if strings.TrimSpace(f.status) != "" {
		s, err := domain.ParseProjectStatus(f.status)
		if err != nil {
			return q, err
		}
		q.Status = int(s)
	}
	return q, nil
}

func projectListCmd(env *cliEnv, use, short string, kind tracker.ScopeKind) *cobra.Command {
	var flags listFlags
	if kind == tracker.ScopeDepartment {
		use += " [department-id]"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				route := nav.RouteListProjects
				switch kind {
				case tracker.ScopeOwn:
					route = nav.RouteListOwnProjects
				case tracker.ScopeDepartment:
					route = nav.RouteDepartmentProjects
				}
				claims, err := a.Require(ctx, route)
				if err != nil {
					return err
				}
				scope := tracker.Scope{Kind: kind}
				switch kind {
				case tracker.ScopeOwn:
					scope.ID = claims.UserID
				case tracker.ScopeDepartment:
					if len(args) == 1 {
						scope.ID = domain.ID(args[0])
					} else if scope.ID, err = a.Session.DepartmentOf(ctx, claims.UserID); err != nil {
						return err
					}
				}
				q, err := flags.query(a)
				if err != nil {
					return err
				}
				res, err := a.Tracker.ListProjects(ctx, scope, q)
				if err != nil {
					return err
				}
				return env.print(cmd, res, func(w io.Writer) { renderProjects(w, res) })
			})
		},
	}
	flags.register(cmd, true)
	return cmd
}

func renderProjects(w io.Writer, res listing.Result[domain.Project]) {
	tw := newTable(w, table.Row{"ID", "Title", "Origin", "Status", "Created"})
	for _, p := range res.Items {
		tw.AppendRow(table.Row{p.ID, p.Title, p.Origin, p.Status.Label(), p.CreatedAt.Date("-")})
	}
	tw.Render()
	fmt.Fprintf(w, "Page %d of %d (%d matching)\n", res.PageNumber, res.TotalPages, res.Matched)
}

func projectShowCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a project with its actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				id := domain.ID(args[0])
				if _, err := a.Require(ctx, nav.ProjectRoute(id)); err != nil {
					return err
				}
				s, err := a.Tracker.OpenProject(ctx, id)
				if err != nil {
					return err
				}
				return env.print(cmd, projectView(s), func(w io.Writer) { renderProject(w, s) })
			})
		},
	}
}

type projectJSON struct {
	Project    domain.Project     `json:"project"`
	Actions    []domain.Action    `json:"actions"`
	// Unresolved are linked action ids whose status could not be loaded.
	Unresolved []domain.ID        `json:"unresolved,omitempty"`
	Controls   lifecycle.Controls `json:"controls"`
}

func projectView(s lifecycle.ProjectState) projectJSON {
	return projectJSON{Project: s.Project, Actions: s.Actions, Unresolved: s.Unresolved, Controls: s.Controls()}
}

func renderProject(w io.Writer, s lifecycle.ProjectState) {
	p := s.Project
	fmt.Fprintf(w, "%s  [%s]\n", p.Title, p.Status.Label())
	if p.Description != "" {
		fmt.Fprintln(w, p.Description)
	}
	fmt.Fprintf(w, "Origin: %s %d (%s)\n", p.Origin, p.OriginNumber, p.OriginDate)
	fmt.Fprintf(w, "Created: %s  Started: %s  Completed: %s\n", p.CreatedAt.Date("-"), p.StartedAt.Date("-"), p.CompletedAt.Date("-"))
	if p.Concluded() {
		fmt.Fprintf(w, "Conclusion: %s\n", p.ConclusionText)
	}
	fmt.Fprintln(w)
	renderActions(w, s.Actions)
	for _, id := range s.Unresolved {
		fmt.Fprintf(w, "Linked action %s could not be loaded\n", id)
	}
	renderControls(w, s.Controls())
}

func renderControls(w io.Writer, cs lifecycle.Controls) {
	if len(cs) == 0 {
		return
	}
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		if c.Enabled {
			parts = append(parts, string(c.Op))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (disabled: %s)", c.Op, c.Reason))
	}
	fmt.Fprintf(w, "Available: %s\n", strings.Join(parts, ", "))
}

func projectFormFlags(cmd *cobra.Command, f *forms.ProjectForm) {
	cmd.Flags().StringVar(&f.Title, "title", "", "project title")
	cmd.Flags().StringVar(&f.Description, "description", "", "project description")
	cmd.Flags().StringVar(&f.Origin, "origin", "", "origin of the project")
	cmd.Flags().IntVar(&f.OriginNumber, "origin-number", 0, "origin reference number")
	cmd.Flags().StringVar(&f.OriginDate, "origin-date", "", "origin date (YYYY-MM-DD)")
}

func projectCreateCmd(env *cliEnv) *cobra.Command {
	var form forms.ProjectForm
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project owned by you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteAddProject); err != nil {
					return err
				}
				p, err := a.Tracker.CreateProject(ctx, form)
				if err != nil {
					return err
				}
				return env.print(cmd, p, func(w io.Writer) {
					fmt.Fprintf(w, "Created project %s (%s)\n", p.ID, p.Title)
				})
			})
		},
	}
	projectFormFlags(cmd, &form)
	return cmd
}

func projectUpdateCmd(env *cliEnv) *cobra.Command {
	var edit forms.ProjectForm
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit project metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				id := domain.ID(args[0])
				if _, err := a.Require(ctx, nav.UpdateProjectRoute(id)); err != nil {
					return err
				}
				s, err := a.Tracker.OpenProject(ctx, id)
				if err != nil {
					return err
				}
				form := forms.ProjectFormFrom(s.Project)
				changed := cmd.Flags().Changed
				if changed("title") {
					form.Title = edit.Title
				}
				if changed("description") {
					form.Description = edit.Description
				}
				if changed("origin") {
					form.Origin = edit.Origin
				}
				if changed("origin-number") {
					form.OriginNumber = edit.OriginNumber
				}
				if changed("origin-date") {
					form.OriginDate = edit.OriginDate
				}
				if err := form.Check(); err != nil {
					return err
				}
				s, _, err = a.Tracker.DispatchProject(ctx, s, lifecycle.Update{Changes: form.Changes()})
				if err != nil {
					return err
				}
				return env.print(cmd, s.Project, func(w io.Writer) {
					fmt.Fprintf(w, "Updated project %s (%s)\n", s.Project.ID, s.Project.Title)
				})
			})
		},
	}
	projectFormFlags(cmd, &edit)
	return cmd
}

func projectTransitionCmd(env *cliEnv, use, short string, event func(*cobra.Command) lifecycle.Event) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				id := domain.ID(args[0])
				if _, err := a.Require(ctx, nav.ProjectRoute(id)); err != nil {
					return err
				}
				s, err := a.Tracker.OpenProject(ctx, id)
				if err != nil {
					return err
				}
				s, eff, err := a.Tracker.DispatchProject(ctx, s, event(cmd))
				if c, ok := eff.(lifecycle.Confirm); ok && err == nil {
					var answer lifecycle.Event = lifecycle.CancelDelete{}
					if env.confirm(cmd, c.Prompt) {
						answer = lifecycle.ConfirmDelete{}
					}
					s, eff, err = a.Tracker.DispatchProject(ctx, s, answer)
				}
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				switch {
				case s.Removed:
					if _, ok := eff.(lifecycle.Leave); ok {
						fmt.Fprintf(w, "Deleted project %s\n", id)
					}
					return nil
				case use == "delete":
					fmt.Fprintln(w, "Cancelled")
					return nil
				}
				return env.print(cmd, projectView(s), func(w io.Writer) { renderProject(w, s) })
			})
		},
	}
}
