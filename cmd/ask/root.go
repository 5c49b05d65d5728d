package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/crossdock-ai/ask-gateway/internal/client"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	// Global flags
	endpoint string
	language string
	timeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask the Crossdock logistics advisor",
	Long: `ask sends questions to a running ask gateway and prints the answers.

The gateway endpoint defaults to $ASK_ENDPOINT or http://localhost:8080/ask.
A .env file in the working directory is loaded when present.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if !cmd.Flags().Changed("endpoint") {
			if v := strings.TrimSpace(os.Getenv("ASK_ENDPOINT")); v != "" {
				endpoint = v
			}
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "http://localhost:8080/ask", "ask gateway endpoint URL")
	rootCmd.PersistentFlags().StringVarP(&language, "language", "l", "en", "reply language")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 90*time.Second, "timeout for buffered answers")

	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(chatCmd)
}

func newClient() *client.Client {
	return client.New(endpoint, timeout)
}

var colorEnabled = isatty.IsTerminal(os.Stdout.Fd()) && strings.TrimSpace(os.Getenv("NO_COLOR")) == ""

// label renders a speaker prefix, bold when writing to a terminal.
func label(s string) string {
	if !colorEnabled {
		return s
	}
	return "\x1b[1m" + s + "\x1b[0m"
}
