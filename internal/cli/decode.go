package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/GregMSThompson/agent-bridge/internal/agentstream"
	"github.com/GregMSThompson/agent-bridge/internal/dto"
)

// newDecodeCommand decodes a captured response body offline. It needs no
// configuration or credentials.
func newDecodeCommand() *cobra.Command {
	var (
		concat    bool
		showTrace bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "decode [file|-]",
		Short: "Decode a captured agent response body",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			body, err := readBody(cmd, path)
			if err != nil {
				return err
			}

			var opts []agentstream.Option
			if concat {
				opts = append(opts, agentstream.WithConcatenatedChunks())
			}
			res := agentstream.New(opts...).Decode(body)

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(dto.NewAgentQueryResponse(dto.AgentAnswer{
					Answer: res.Answer,
					Trace:  res.Trace,
				}))
			}
			if showTrace {
				printTrace(cmd, res.Trace)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "mode=%s source=%s frames=%d failed=%d\n", res.Mode, res.Source, len(res.Frames), res.Failed())
			fmt.Fprintln(cmd.OutOrStdout(), res.Answer)
			return nil
		},
	}

	cmd.Flags().BoolVar(&concat, "concat", false, "join all decoded chunks instead of keeping the last")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the decode trace to stderr")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the response/trace_data document")
	return cmd
}

func readBody(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}
