package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"fivew2h/internal/app"
	"fivew2h/internal/failure"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", describeError(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:   "w2h",
		Short: "5W2H project and action tracker",
		Long: `w2h drives a 5W2H backend from the terminal.
- Projects move Created -> InProgress -> Completed; completion needs every action completed.
- Actions carry the 5W2H fields (what, why, when, where, who, how, how much) and move NotStarted -> InProgress -> Completed.
- The session token and a log of the changes made from this workspace live under .w2h/.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	initConfig(v)
	addPersistentFlags(root, v)

	env := &cliEnv{v: v}
	root.AddCommand(configCmd(env))
	root.AddCommand(loginCmd(env))
	root.AddCommand(logoutCmd(env))
	root.AddCommand(whoamiCmd(env))
	root.AddCommand(menuCmd(env))
	root.AddCommand(routeCmd(env))
	root.AddCommand(homeCmd(env))
	root.AddCommand(projectCmd(env))
	root.AddCommand(actionCmd(env))
	root.AddCommand(userCmd(env))
	root.AddCommand(departmentCmd(env))
	root.AddCommand(activityCmd(env))
	return root
}

func initConfig(v *viper.Viper) {
	v.SetEnvPrefix("W2H")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("api", "W2H_API_BASE_URL")
}

func addPersistentFlags(root *cobra.Command, v *viper.Viper) {
	root.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	root.PersistentFlags().Bool("json", false, "output JSON")
	root.PersistentFlags().String("api", "", "backend base URL (overrides w2h.yml)")
	root.PersistentFlags().String("log-level", "", "log level (overrides w2h.yml)")
	root.PersistentFlags().Bool("yes", false, "answer yes to confirmations")
	for _, name := range []string{"workspace", "json", "api", "log-level", "yes"} {
		_ = v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
}

// cliEnv carries the per-invocation settings shared by every command.
type cliEnv struct {
	v *viper.Viper
	// open replaces app.Open in tests.
	open func(ctx context.Context, opts app.Options) (*app.Context, error)
}

func (e *cliEnv) jsonOutput() bool { return e.v.GetBool("json") }

func (e *cliEnv) options(cmd *cobra.Command) app.Options {
	return app.Options{
		Workspace: e.v.GetString("workspace"),
		BaseURL:   e.v.GetString("api"),
		LogLevel:  e.v.GetString("log-level"),
		LogOutput: cmd.ErrOrStderr(),
	}
}

// with opens the workspace, runs fn and closes it again.
func (e *cliEnv) with(cmd *cobra.Command, fn func(ctx context.Context, a *app.Context) error) error {
	open := e.open
	if open == nil {
		open = app.Open
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx, e.options(cmd))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// confirm asks prompt on the command's streams unless --yes was given.
func (e *cliEnv) confirm(cmd *cobra.Command, prompt string) bool {
	if e.v.GetBool("yes") {
		return true
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func (e *cliEnv) print(cmd *cobra.Command, v any, render func(w io.Writer)) error {
	if e.jsonOutput() || render == nil {
		return printJSON(cmd.OutOrStdout(), v)
	}
	render(cmd.OutOrStdout())
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(header)
	return tw
}

// describeError renders err for the terminal. Local errors such as a bad
// flag or config keep their own text; a partial failure says how to finish
// the link.
func describeError(err error) string {
	var pf *failure.PartialFailure
	switch {
	case errors.As(err, &pf):
		return fmt.Sprintf("%s\nlink it with: w2h action attach --project %s --action %s", failure.Message(err), pf.ProjectID, pf.ActionID)
	case failure.KindOf(err) == "":
		return err.Error()
	}
	return failure.Message(err)
}
