package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

func newHistoryCommand(o *options) *cobra.Command {
	var (
		sessionID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored messages of a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := o.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			var lim *int
			if cmd.Flags().Changed("limit") {
				lim = &limit
			}
			resp, err := rt.svc.History(logger.ToContext(cmd.Context(), rt.log), o.owner, sessionID, lim)
			if err != nil {
				return err
			}

			if len(resp.Messages) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No messages found.")
				return nil
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-19s  %-9s  %s\n", "TIMESTAMP", "ROLE", "CONTENT")
			for _, m := range resp.Messages {
				fmt.Fprintf(out, "%-19s  %-9s  %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"), m.Role, m.Content)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of messages (default from HISTORYLIMIT)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}
