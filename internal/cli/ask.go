package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/GregMSThompson/agent-bridge/internal/dto"
	"github.com/GregMSThompson/agent-bridge/pkg/logger"
)

func newAskCommand(o *options) *cobra.Command {
	var (
		sessionID  string
		endSession bool
		showTrace  bool
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Send a question to the agent and print its answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sessionID == "" {
				sessionID = uuid.NewString()
				fmt.Fprintf(cmd.ErrOrStderr(), "session: %s\n", sessionID)
			}

			rt, err := o.runtime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			ctx := logger.ToContext(cmd.Context(), rt.log)
			answer, err := rt.svc.Ask(ctx, o.owner, dto.AgentRequest{
				SessionID:  sessionID,
				Question:   strings.Join(args, " "),
				EndSession: dto.LooseBool(endSession),
			})
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(dto.NewAgentQueryResponse(answer))
			}
			if showTrace {
				printTrace(cmd, answer.Trace)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (a new one is generated when empty)")
	cmd.Flags().BoolVar(&endSession, "end-session", false, "end the agent session after this question")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the decode trace to stderr")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response/trace_data document")
	return cmd
}

func printTrace(cmd *cobra.Command, trace []string) {
	for _, line := range trace {
		fmt.Fprintln(cmd.ErrOrStderr(), line)
	}
}
