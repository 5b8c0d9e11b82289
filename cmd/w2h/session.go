package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fivew2h/internal/app"
	"fivew2h/internal/config"
	"fivew2h/internal/events"
	"fivew2h/internal/forms"
	"fivew2h/internal/nav"
	"fivew2h/internal/tracker"
)

func configCmd(env *cliEnv) *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "w2h.yml holds the backend URL, request timeout, list sizes and log level. Flags and W2H_* variables override it.",
	}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default w2h.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(env.v.GetString("workspace"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				return printJSON(cmd.OutOrStdout(), a.Config)
			})
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check w2h.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := env.v.GetString("workspace")
			if _, err := config.Load(ws); err != nil {
				return fmt.Errorf("%s: %w", config.Path(ws), err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	})
	return cfg
}

func loginCmd(env *cliEnv) *cobra.Command {
	var form forms.LoginForm
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.Password == "" && !cmd.Flags().Changed("password") {
				fmt.Fprint(cmd.OutOrStdout(), "Password: ")
				line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				form.Password = strings.TrimRight(line, "\r\n")
			}
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				claims, err := a.Session.Login(ctx, a.Client, form)
				if err != nil {
					return err
				}
				if err := a.Activity.Append(ctx, nil, events.Entry{
					Type: events.SessionLoggedIn, Target: "session", ActorID: claims.UserID.String(),
					Payload: events.EventPayload{"role": string(claims.Role)},
				}); err != nil {
					a.Log.WithError(err).Warn("record login")
				}
				out := map[string]any{"userId": claims.UserID, "name": claims.Name, "role": claims.Role, "redirect": nav.RouteHome}
				return env.print(cmd, out, func(w io.Writer) {
					fmt.Fprintf(w, "Logged in as %s (%s)\n", displayName(claims.Name, claims.Email), claims.Role)
				})
			})
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func logoutCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				claims := a.Session.Peek(ctx)
				if err := a.Session.Logout(ctx); err != nil {
					return err
				}
				if err := a.Activity.Append(ctx, nil, events.Entry{
					Type: events.SessionLoggedOut, Target: "session", ActorID: claims.UserID.String(),
				}); err != nil {
					a.Log.WithError(err).Warn("record logout")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func whoamiCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity carried by the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				claims, err := a.Require(ctx, nav.RouteHome)
				if err != nil {
					return err
				}
				out := map[string]any{
					"userId": claims.UserID, "name": claims.Name, "email": claims.Email,
					"role": claims.Role, "expiresAt": claims.ExpiresAt,
				}
				return env.print(cmd, out, func(w io.Writer) {
					fmt.Fprintf(w, "User: %s\nEmail: %s\nRole: %s\n", displayName(claims.Name, claims.UserID.String()), claims.Email, claims.Role)
					if !claims.ExpiresAt.IsZero() {
						fmt.Fprintf(w, "Expires: %s\n", claims.ExpiresAt.Local().Format("02/01/2006 15:04"))
					}
				})
			})
		},
	}
}

func menuCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Show the navigation menu of your role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				claims, err := a.Require(ctx, nav.RouteHome)
				if err != nil {
					return err
				}
				menu, err := nav.Build(ctx, claims, a.Session)
				if err != nil {
					a.Log.WithError(err).Warn("department lookup failed; link left pending")
				}
				return env.print(cmd, menu, func(w io.Writer) {
					tw := newTable(w, table.Row{"Key", "Label", "Route"})
					for _, it := range menu {
						route := it.Route
						if it.Pending {
							route = "(loading)"
						}
						tw.AppendRow(table.Row{it.Key, it.Label, route})
					}
					tw.Render()
				})
			})
		},
	}
}

func routeCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "route <path>",
		Short: "Check where a client path leads for the current session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				claims, _ := a.Session.Claims(ctx)
				d := a.Router.Guard(args[0], claims)
				return env.print(cmd, d, func(w io.Writer) {
					if d.Allowed {
						fmt.Fprintf(w, "allowed: %s\n", d.Pattern)
						for k, val := range d.Params {
							fmt.Fprintf(w, "  %s=%s\n", k, val)
						}
						return
					}
					fmt.Fprintf(w, "redirect: %s\n", d.Redirect)
				})
			})
		},
	}
}

func homeCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "home",
		Short: "Show the dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteHome); err != nil {
					return err
				}
				d, err := a.Tracker.Home(ctx)
				if err != nil {
					return err
				}
				return env.print(cmd, d, func(w io.Writer) { renderHome(w, d) })
			})
		},
	}
}

func renderHome(w io.Writer, d tracker.Dashboard) {
	fmt.Fprintf(w, "Projects: %d  Users: %d  Actions: %d\n\n", d.Projects, d.Users, d.Actions)
	fmt.Fprintln(w, "Recent projects:")
	tw := newTable(w, table.Row{"ID", "Title", "Status", "Created"})
	for _, p := range d.RecentProjects {
		tw.AppendRow(table.Row{p.ID, p.Title, p.Status.Label(), p.CreatedAt.Date("-")})
	}
	tw.Render()
	fmt.Fprintln(w, "\nRecent activity:")
	for _, line := range d.RecentActions {
		fmt.Fprintf(w, "  %s  %s\n", line.Action.CreatedAt.Date("-"), line.Text)
	}
}

func displayName(name, fallback string) string {
	if strings.TrimSpace(name) == "" {
		return fallback
	}
	return name
}
