package main

import (
	"bufio"
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
	chatHistory  int
	chatNoStream bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session (type 'exit' to quit)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		s := &chatSession{
			client:     newClient(),
			language:   language,
			maxHistory: chatHistory,
			stream:     !chatNoStream,
		}
		return s.run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().IntVar(&chatHistory, "history", 12, "number of previous turns sent with each question")
	chatCmd.Flags().BoolVar(&chatNoStream, "no-stream", false, "wait for complete answers")
}

type chatSession struct {
	client     *client.Client
	language   string
	maxHistory int
	stream     bool

	history []types.Message
}

func (s *chatSession) run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintln(out, "Crossdock AI chat (type 'exit' to quit)")
	fmt.Fprintln(out, "----------------------------------------")

	for {
		fmt.Fprintf(out, "\n%s ", label("You:"))
		if !scanner.Scan() {
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		fmt.Fprintf(out, "\n%s ", label("Crossdock AI:"))
		answer, err := ask(ctx, s.client, types.AskRequest{
			Question: input,
			Language: s.language,
			History:  s.history,
		}, s.stream, false, out)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		s.remember(input, answer)
	}
}

// remember appends a question/answer pair, keeping the last maxHistory turns.
func (s *chatSession) remember(question, answer string) {
	s.history = append(s.history,
		types.Message{Role: types.RoleUser, Content: question},
		types.Message{Role: types.RoleAssistant, Content: answer},
	)
	if s.maxHistory >= 0 && len(s.history) > s.maxHistory {
		s.history = append([]types.Message(nil), s.history[len(s.history)-s.maxHistory:]...)
	}
}
