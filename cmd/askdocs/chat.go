package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/askdocs/pkg/agent"
)

func chatCMD() *cobra.Command {
	var (
		topK       int
		useHistory bool
	)

	var cmd = &cobra.Command{
		Use:   "chat",
		Short: "Chat with your documentation",
		Long: `Starts an interactive session. Type a question to get an answer,
"clear" to forget the conversation, "stats" for collection statistics and
"exit" or "quit" to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.agent.Init(ctx); err != nil {
				return err
			}
			return chatLoop(ctx, a, agent.QueryOptions{TopK: topK, UseHistory: useHistory})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	cmd.Flags().BoolVar(&useHistory, "history", true, "send the conversation so far with every question")

	return cmd
}

// readLines feeds stdin lines into a channel so the loop can also watch ctx.
func readLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func chatLoop(ctx context.Context, a *app, opts agent.QueryOptions) error {
	color.Cyan("\nChat with your documentation (type 'exit' to quit)")
	lines := readLines()

	for {
		userPrompt("\nYou: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Println()
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "clear":
			a.agent.ClearHistory()
			color.Green("✓ Conversation history cleared")
			continue
		case "stats":
			stats, err := a.agent.CollectionStats(ctx)
			if err != nil {
				color.Red("Error: %v", err)
				continue
			}
			printStats(stats)
			continue
		}

		spinner := getSpinner("Thinking...")
		result := a.agent.Query(ctx, line, opts)
		spinner.Finish()
		printResult(result)
	}
}
