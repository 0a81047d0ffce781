package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newAuditCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "audit <session-id>",
		Short: "Print the audited turns of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			if cfg.AuditTable == "" {
				return errors.New("AUDIT_TABLE is not set")
			}
			ctx := cmd.Context()
			store, err := a.deps.OpenAudit(ctx, cfg.AuditTable)
			if err != nil {
				return fmt.Errorf("open audit table: %w", err)
			}

			sessionID := args[0]
			meta, ok, err := store.GetSessionMeta(ctx, sessionID)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no audit trail for session %s", sessionID)
			}
			recs, err := store.ListTurns(ctx, sessionID, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s · %s · %s · last activity %s\n",
				sessionID, meta.Backend, formatTurns(meta.Turns), meta.LastActivity)
			for _, rec := range recs {
				fmt.Fprintf(out, "%s  %-9s  %-9s  %s\n", rec.CreatedAt, rec.Sender, rec.Phase, rec.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of turns to print (0 for all)")
	return cmd
}

func formatTurns(n int) string {
	if n == 1 {
		return "1 turn"
	}
	return strconv.Itoa(n) + " turns"
}
