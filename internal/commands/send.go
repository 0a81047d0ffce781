package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
)

var errBackendFailed = errors.New("the backend did not answer")

func newSendCmd(a *app) *cobra.Command {
	var project projectFlags
	cmd := &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, cfg, err := a.session(ctx)
			if err != nil {
				return err
			}
			sess.SetProject(project.context())

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()
			out, err := sess.Submit(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if !out.Accepted {
				return errors.New("message is empty")
			}
			if out.Failed {
				fmt.Fprintln(cmd.ErrOrStderr(), out.Reply.Text)
				return errBackendFailed
			}
			slog.Debug("reply received", "session", sess.ID(), "backend", cfg.Backend)
			fmt.Fprintln(cmd.OutOrStdout(), out.Reply.Text)
			return nil
		},
	}
	project.register(cmd)
	return cmd
}
