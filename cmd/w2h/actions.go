package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fivew2h/internal/app"
	"fivew2h/internal/domain"
	"fivew2h/internal/forms"
	"fivew2h/internal/lifecycle"
	"fivew2h/internal/nav"
)

func actionCmd(env *cliEnv) *cobra.Command {
	cmd := &cobra.Command{Use: "action", Short: "Manage the 5W2H actions of a project"}
	cmd.AddCommand(actionListCmd(env))
	cmd.AddCommand(actionShowCmd(env))
	cmd.AddCommand(actionAddCmd(env))
	cmd.AddCommand(actionAttachCmd(env))
	cmd.AddCommand(actionUpdateCmd(env))
	cmd.AddCommand(actionTransitionCmd(env, "start", "Start an action", func(*cobra.Command) lifecycle.Event { return lifecycle.Start{} }))
	complete := actionTransitionCmd(env, "complete", "Complete an in-progress action", func(c *cobra.Command) lifecycle.Event {
		text, _ := c.Flags().GetString("conclusion")
		return lifecycle.Complete{Conclusion: text}
	})
	complete.Flags().String("conclusion", "", "conclusion text sent with the completion")
	cmd.AddCommand(complete)
	conclude := actionTransitionCmd(env, "conclude", "Record the conclusion of a completed action", func(c *cobra.Command) lifecycle.Event {
		text, _ := c.Flags().GetString("text")
		return lifecycle.SetConclusion{Text: text}
	})
	conclude.Flags().String("text", "", "conclusion text")
	cmd.AddCommand(conclude)
	cmd.AddCommand(actionTransitionCmd(env, "delete", "Delete an action", func(*cobra.Command) lifecycle.Event { return lifecycle.Delete{} }))
	return cmd
}

func renderActions(w io.Writer, actions []domain.Action) {
	tw := newTable(w, table.Row{"ID", "Title", "What", "Who", "When", "How much", "Status"})
	for _, a := range actions {
		tw.AppendRow(table.Row{a.ID, a.Title, a.What, a.Who, a.When, fmt.Sprintf("%.2f", a.HowMuch), a.Status.Label()})
	}
	tw.Render()
}

func actionListCmd(env *cliEnv) *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the actions of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				id := domain.ID(projectID)
				if _, err := a.Require(ctx, nav.ProjectRoute(id)); err != nil {
					return err
				}
				s, err := a.Tracker.OpenProject(ctx, id)
				if err != nil {
					return err
				}
				return env.print(cmd, s.Actions, func(w io.Writer) { renderActions(w, s.Actions) })
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

type actionJSON struct {
	Action   domain.Action      `json:"action"`
	Controls lifecycle.Controls `json:"controls"`
}

func renderAction(w io.Writer, s lifecycle.ActionState) {
	act := s.Action
	fmt.Fprintf(w, "%s  [%s]\n", act.Title, act.Status.Label())
	fmt.Fprintf(w, "What: %s\nWhy: %s\nWhen: %s\nWhere: %s\nWho: %s\nHow: %s\nHow much: %.2f\n",
		act.What, act.Why, act.When, act.Where, act.Who, act.How, act.HowMuch)
	fmt.Fprintf(w, "Created: %s  Started: %s  Completed: %s\n", act.CreatedAt.Date("-"), act.StartedAt.Date("-"), act.CompletedAt.Date("-"))
	if act.Concluded() {
		fmt.Fprintf(w, "Conclusion: %s\n", act.ConclusionText)
	}
	renderControls(w, s.Controls())
}

func actionShowCmd(env *cliEnv) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteProjects); err != nil {
					return err
				}
				s, err := a.Tracker.OpenAction(ctx, domain.ID(args[0]))
				if err != nil {
					return err
				}
				return env.print(cmd, actionJSON{Action: s.Action, Controls: s.Controls()}, func(w io.Writer) { renderAction(w, s) })
			})
		},
	}
}

func actionAddCmd(env *cliEnv) *cobra.Command {
	var (
		projectID string
		form      forms.ActionForm
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an action and link it to an in-progress project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				id := domain.ID(projectID)
				if _, err := a.Require(ctx, nav.AddActionRoute(id)); err != nil {
					return err
				}
				s, err := a.Tracker.OpenProject(ctx, id)
				if err != nil {
					return err
				}
				if _, eff, err := a.Tracker.DispatchProject(ctx, s, lifecycle.AddAction{}); err != nil {
					return err
				} else if _, ok := eff.(lifecycle.OpenActionForm); !ok {
					return fmt.Errorf("project %s does not accept actions", id)
				}
				act, err := a.Tracker.CreateAndAttach(ctx, id, form)
				if err != nil {
					return err
				}
				return env.print(cmd, act, func(w io.Writer) {
					fmt.Fprintf(w, "Added action %s (%s) to project %s\n", act.ID, act.Title, id)
				})
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	actionFormFlags(cmd, &form)
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func actionFormFlags(cmd *cobra.Command, form *forms.ActionForm) {
	cmd.Flags().StringVar(&form.Title, "title", "", "action title")
	cmd.Flags().StringVar(&form.What, "what", "", "what will be done")
	cmd.Flags().StringVar(&form.Why, "why", "", "why it will be done")
	cmd.Flags().StringVar(&form.When, "when", "", "when it will be done")
	cmd.Flags().StringVar(&form.Where, "where", "", "where it will be done")
	cmd.Flags().StringVar(&form.Who, "who", "", "who will do it")
	cmd.Flags().StringVar(&form.How, "how", "", "how it will be done")
	cmd.Flags().Float64Var(&form.HowMuch, "how-much", 0, "estimated cost")
}

func actionUpdateCmd(env *cliEnv) *cobra.Command {
	var edit forms.ActionForm
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit the 5W2H fields of an action",
		Long:  "Only the given flags change; the other fields keep their stored values.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteProjects); err != nil {
					return err
				}
				id := domain.ID(args[0])
				s, err := a.Tracker.OpenAction(ctx, id)
				if err != nil {
					return err
				}
				form := forms.ActionFormFrom(s.Action)
				changed := cmd.Flags().Changed
				for flag, field := range map[string]*string{
					"title": &form.Title, "what": &form.What, "why": &form.Why, "when": &form.When,
					"where": &form.Where, "who": &form.Who, "how": &form.How,
				} {
					if changed(flag) {
						v, _ := cmd.Flags().GetString(flag)
						*field = v
					}
				}
				if changed("how-much") {
					form.HowMuch = edit.HowMuch
				}
				act, err := a.Tracker.UpdateAction(ctx, id, form)
				if err != nil {
					return err
				}
				return env.print(cmd, act, func(w io.Writer) {
					fmt.Fprintf(w, "Updated action %s (%s)\n", act.ID, act.Title)
				})
			})
		},
	}
	actionFormFlags(cmd, &edit)
	return cmd
}

func actionAttachCmd(env *cliEnv) *cobra.Command {
	var projectID, actionID string
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Link an existing action to a project",
		Long:  "Finishes an add whose link step failed. The action is not created again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.ProjectRoute(domain.ID(projectID))); err != nil {
					return err
				}
				if err := a.Tracker.Attach(ctx, domain.ID(projectID), domain.ID(actionID)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Linked action %s to project %s\n", actionID, projectID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&actionID, "action", "", "action id")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("action")
	return cmd
}

func actionTransitionCmd(env *cliEnv, use, short string, event func(*cobra.Command) lifecycle.Event) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return env.with(cmd, func(ctx context.Context, a *app.Context) error {
				if _, err := a.Require(ctx, nav.RouteProjects); err != nil {
					return err
				}
				id := domain.ID(args[0])
				s, err := a.Tracker.OpenAction(ctx, id)
				if err != nil {
					return err
				}
				s, eff, err := a.Tracker.DispatchAction(ctx, s, event(cmd))
				if c, ok := eff.(lifecycle.Confirm); ok && err == nil {
					var answer lifecycle.Event = lifecycle.CancelDelete{}
					if env.confirm(cmd, c.Prompt) {
						answer = lifecycle.ConfirmDelete{}
					}
					s, eff, err = a.Tracker.DispatchAction(ctx, s, answer)
				}
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				switch {
				case s.Removed:
					if _, ok := eff.(lifecycle.Leave); ok {
						fmt.Fprintf(w, "Deleted action %s\n", id)
					}
					return nil
				case use == "delete":
					fmt.Fprintln(w, "Cancelled")
					return nil
				}
				return env.print(cmd, actionJSON{Action: s.Action, Controls: s.Controls()}, func(w io.Writer) { renderAction(w, s) })
			})
		},
	}
}
