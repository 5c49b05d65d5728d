package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/crossdock-ai/ask-gateway/internal/client"
	"github.com/crossdock-ai/ask-gateway/internal/types"
	"github.com/spf13/cobra"
)

var (
	queryStream bool
	queryUsage  bool
)

var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Ask a single question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		req := types.AskRequest{
			Question: strings.Join(args, " "),
			Language: language,
		}
		_, err := ask(ctx, newClient(), req, queryStream, queryUsage, cmd.OutOrStdout())
		return err
	},
}

func init() {
	queryCmd.Flags().BoolVarP(&queryStream, "stream", "s", false, "print the answer as it is generated")
	queryCmd.Flags().BoolVar(&queryUsage, "usage", false, "print token usage after a buffered answer")
}

// ask sends req and writes the answer to out. It returns the answer text.
func ask(ctx context.Context, c *client.Client, req types.AskRequest, stream, usage bool, out io.Writer) (string, error) {
	if stream {
		answer, err := c.AskStream(ctx, req, func(chunk string) {
			fmt.Fprint(out, chunk)
		})
		fmt.Fprintln(out)
		if err != nil {
			return answer, fmt.Errorf("ask: %w", err)
		}
		return answer, nil
	}

	resp, err := c.Ask(ctx, req)
	if err != nil {
		return "", fmt.Errorf("ask: %w", err)
	}
	fmt.Fprintln(out, resp.Answer)
	if usage && len(resp.Usage) > 0 && string(resp.Usage) != "null" {
		fmt.Fprintf(out, "usage: %s\n", resp.Usage)
	}
	return resp.Answer, nil
}
