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
	"fivew2h/internal/nav"
	"fivew2h/internal/store"
)

func userCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(userListCmd(env), userShowCmd(env), userRegisterCmd(env), userUpdateCmd(env), userDeleteCmd(env), changePasswordCmd(env))
	return cmd
}

func renderUsers(w io.Writer, users []domain.User) {
	tw := newTable(w, table.Row{"ID", "Name", "Email", "Role", "Department"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.FullName, u.Email, u.Role, u.DepartmentID})
	}
	tw.Render()
}

func userListCmd(env *cliEnv) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteSettings); err != nil {
					return err
				}
				q, err := flags.query(a)
				if err != nil {
					return err
				}
				res, err := a.Tracker.ListUsers(ctx, q)
				if err != nil {
					return err
				}
				return env.print(cmd, res, func(w io.Writer) {
					renderUsers(w, res.Items)
					fmt.Fprintf(w, "Page %d of %d (%d matching)\n", res.PageNumber, res.TotalPages, res.Matched)
				})
			})
		},
	}
	flags.register(cmd, false)
	return cmd
}

func userShowCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show a user; defaults to you",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				claims, err := a.Require(ctx, nav.RouteHome)
				if err != nil {
					return err
				}
				id := claims.UserID
				if len(args) == 1 {
					id = domain.ID(args[0])
				}
				u, err := a.Tracker.User(ctx, id)
				if err != nil {
					return err
				}
				return env.print(cmd, u, func(w io.Writer) { renderUsers(w, []domain.User{u}) })
			})
		},
	}
}

func userFormFlags(cmd *cobra.Command, f *forms.UserForm, role *string, dept *string) {
	cmd.Flags().StringVar(&f.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&f.Email, "email", "", "email")
	cmd.Flags().StringVar(role, "role", "", "role: "+roleList())
	cmd.Flags().StringVar(dept, "department", "", "department id")
}

func roleList() string {
	names := make([]string, 0, len(domain.Roles))
	for _, r := range domain.Roles {
		names = append(names, string(r))
	}
	return strings.Join(names, ", ")
}

func userRegisterCmd(env *cliEnv) *cobra.Command {
	var (
		form       forms.UserForm
		role, dept string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a collaborator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteRegister); err != nil {
					return err
				}
				form.Role = domain.Role(role)
				form.DepartmentID = domain.ID(dept)
				u, err := a.Tracker.RegisterUser(ctx, form)
				if err != nil {
					return err
				}
				return env.print(cmd, u, func(w io.Writer) {
					fmt.Fprintf(w, "Registered %s (%s) as %s\n", u.FullName, u.ID, u.Role)
				})
			})
		},
	}
	userFormFlags(cmd, &form, &role, &dept)
	cmd.Flags().StringVar(&form.Password, "password", "", "initial password")
	return cmd
}

func userUpdateCmd(env *cliEnv) *cobra.Command {
	var (
		edit       forms.UserForm
		role, dept string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				id := domain.ID(args[0])
				if _, err := a.Require(ctx, "/update-user/"+id.String()); err != nil {
					return err
				}
				u, err := a.Tracker.User(ctx, id)
				if err != nil {
					return err
				}
				form := forms.UserForm{ID: id, FullName: u.FullName, Email: u.Email, Role: u.Role, DepartmentID: u.DepartmentID}
				changed := cmd.Flags().Changed
				if changed("name") {
					form.FullName = edit.FullName
				}
				if changed("email") {
					form.Email = edit.Email
				}
				if changed("role") {
					form.Role = domain.Role(role)
				}
				if changed("department") {
					form.DepartmentID = domain.ID(dept)
				}
				if err := a.Tracker.UpdateUser(ctx, form); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated user %s\n", id)
				return nil
			})
		},
	}
	userFormFlags(cmd, &edit, &role, &dept)
	return cmd
}

func userDeleteCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteSettings); err != nil {
					return err
				}
				id := domain.ID(args[0])
				if !env.confirm(cmd, fmt.Sprintf("Delete user %s? This cannot be undone.", id)) {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return nil
				}
				if err := a.Tracker.DeleteUser(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", id)
				return nil
			})
		},
	}
}

func changePasswordCmd(env *cliEnv) *cobra.Command {
	var form forms.ChangePasswordForm
	cmd := &cobra.Command{
		Use:   "change-password",
		Short: "Change your password",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteChangePassword); err != nil {
					return err
				}
				if err := a.Tracker.ChangePassword(ctx, form); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&form.CurrentPassword, "current", "", "current password")
	cmd.Flags().StringVar(&form.NewPassword, "new", "", "new password")
	cmd.Flags().StringVar(&form.Confirmation, "confirm", "", "new password again")
	return cmd
}

func departmentCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "department", Short: "Manage departments"}
	cmd.AddCommand(departmentListCmd(env), departmentManagedCmd(env), departmentShowCmd(env),
		departmentCreateCmd(env), departmentUpdateCmd(env), departmentCandidatesCmd(env))
	return cmd
}

func renderDepartments(w io.Writer, depts []domain.Department) {
	tw := newTable(w, table.Row{"ID", "Name", "Lider", "Gestor", "Users"})
	for _, d := range depts {
		tw.AppendRow(table.Row{d.ID, d.Name, d.LiderID, d.GestorID, len(d.Users)})
	}
	tw.Render()
}

func departmentListCmd(env *cliEnv) *cobra.Command {
	var flags listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteSettings); err != nil {
					return err
				}
				q, err := flags.query(a)
				if err != nil {
					return err
				}
				res, err := a.Tracker.ListDepartments(ctx, q)
				if err != nil {
					return err
				}
				return env.print(cmd, res, func(w io.Writer) {
					renderDepartments(w, res.Items)
					fmt.Fprintf(w, "Page %d of %d (%d matching)\n", res.PageNumber, res.TotalPages, res.Matched)
				})
			})
		},
	}
	flags.register(cmd, false)
	return cmd
}

func departmentManagedCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "managed",
		Short: "List the departments you manage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				claims, err := a.Require(ctx, nav.RouteDepartments)
				if err != nil {
					return err
				}
				depts, err := a.Tracker.ManagedDepartments(ctx, claims.UserID)
				if err != nil {
					return err
				}
				return env.print(cmd, depts, func(w io.Writer) {
					for _, d := range depts {
						fmt.Fprintf(w, "%s (%s)\n", d.Name, d.ID)
						renderUsers(w, d.Users)
					}
				})
			})
		},
	}
}

func departmentShowCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a department with its users",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteDepartments); err != nil {
					return err
				}
				d, err := a.Tracker.Department(ctx, domain.ID(args[0]))
				if err != nil {
					return err
				}
				return env.print(cmd, d, func(w io.Writer) {
					renderDepartments(w, []domain.Department{d})
					renderUsers(w, d.Users)
				})
			})
		},
	}
}

func departmentFormFlags(cmd *cobra.Command, name, lider, gestor *string) {
	cmd.Flags().StringVar(name, "name", "", "department name")
	cmd.Flags().StringVar(lider, "lider", "", "user id of the lider")
	cmd.Flags().StringVar(gestor, "gestor", "", "user id of the gestor")
}

func departmentCreateCmd(env *cliEnv) *cobra.Command {
	var name, lider, gestor string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a department",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteCreateDepartment); err != nil {
					return err
				}
				d, err := a.Tracker.CreateDepartment(ctx, forms.DepartmentForm{Name: name, LiderID: domain.ID(lider), GestorID: domain.ID(gestor)})
				if err != nil {
					return err
				}
				return env.print(cmd, d, func(w io.Writer) {
					fmt.Fprintf(w, "Created department %s (%s)\n", d.Name, d.ID)
				})
			})
		},
	}
	departmentFormFlags(cmd, &name, &lider, &gestor)
	return cmd
}

func departmentUpdateCmd(env *cliEnv) *cobra.Command {
	var name, lider, gestor string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				id := domain.ID(args[0])
				if _, err := a.Require(ctx, "/atualizar-departamento/"+id.String()); err != nil {
					return err
				}
				d, err := a.Tracker.Department(ctx, id)
				if err != nil {
					return err
				}
				form := forms.DepartmentForm{Name: d.Name, LiderID: d.LiderID, GestorID: d.GestorID}
				changed := cmd.Flags().Changed
				if changed("name") {
					form.Name = name
				}
				if changed("lider") {
					form.LiderID = domain.ID(lider)
				}
				if changed("gestor") {
					form.GestorID = domain.ID(gestor)
				}
				if err := a.Tracker.UpdateDepartment(ctx, id, form); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated department %s\n", id)
				return nil
			})
		},
	}
	departmentFormFlags(cmd, &name, &lider, &gestor)
	return cmd
}

func departmentCandidatesCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "List the users eligible as lider or gestor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteCreateDepartment); err != nil {
					return err
				}
				lideres, gestores, err := a.Tracker.DepartmentPickers(ctx)
				if err != nil {
					return err
				}
				out := map[string][]domain.User{"lideres": lideres, "gestores": gestores}
				return env.print(cmd, out, func(w io.Writer) {
					fmt.Fprintln(w, "Lideres:")
					renderUsers(w, lideres)
					fmt.Fprintln(w, "Gestores:")
					renderUsers(w, gestores)
				})
			})
		},
	}
}

func activityCmd(env *cliEnv) *cobra.Command {
	var (
		n      int
		filter store.ActivityFilter
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show the changes made from this workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				rows, err := a.Store.LatestActivity(ctx, n, filter)
				if err != nil {
					return err
				}
				return env.print(cmd, rows, func(w io.Writer) {
					tw := newTable(w, table.Row{"ID", "Time", "Type", "Entity", "Project", "Actor"})
					for _, r := range rows {
						tw.AppendRow(table.Row{r.ID, r.TS, r.Type, r.EntityID, r.ProjectID, r.ActorID})
					}
					tw.Render()
				})
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&filter.Type, "type", "", "activity type, e.g. project.started")
	cmd.Flags().StringVar(&filter.Target, "target", "", "project, action, user, department or session")
	cmd.Flags().StringVar(&filter.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVar(&filter.ProjectID, "project-id", "", "project id")
	cmd.Flags().Int64Var(&filter.Before, "before", 0, "only entries older than this id")
	return cmd
}
