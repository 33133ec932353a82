package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solpilot/solpilot/internal/agent"
	"github.com/solpilot/solpilot/internal/config"
	"github.com/solpilot/solpilot/internal/dependency"
	"github.com/solpilot/solpilot/internal/schema"
	"github.com/solpilot/solpilot/internal/session"
	"github.com/solpilot/solpilot/internal/tools"
)

var (
	chatMessage string
	chatSession string
	chatWallet  string
	chatVerbose bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the assistant from the terminal",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Send a single message and exit")
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "cli:direct", "Session key")
	chatCmd.Flags().StringVarP(&chatWallet, "wallet", "w", "", "Wallet address for this session")
	chatCmd.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "Show tool calls and reasoning")
}

var exitCommands = map[string]bool{
	"exit":  true,
	"quit":  true,
	"/exit": true,
	"/quit": true,
	":q":    true,
}

func runChat(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	container, err := dependency.New(cfg)
	if err != nil {
		return err
	}

	dispatcher := container.Dispatcher()
	sessions := container.Sessions()
	sess := sessions.GetOrCreate(chatSession)
	turn := tools.TurnContext{WalletAddress: chatWallet, SessionKey: chatSession}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if chatMessage != "" {
		streamTurn(ctx, dispatcher, sess, chatMessage, turn)
		return sessions.Save(sess)
	}

	fmt.Printf("%s Interactive mode (type 'exit' or Ctrl+C to quit)\n", logo)
	if chatWallet != "" {
		fmt.Printf("Connected wallet: %s\n", chatWallet)
	}
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("You: ")

		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if exitCommands[strings.ToLower(line)] {
			fmt.Println("Goodbye!")
			return nil
		}

		streamTurn(ctx, dispatcher, sess, line, turn)
		if err := sessions.Save(sess); err != nil {
			fmt.Fprintf(os.Stderr, "save session: %v\n", err)
		}

		if ctx.Err() != nil {
			fmt.Println("\nGoodbye!")
			return nil
		}
	}
}

// streamTurn runs one turn and renders its event stream to stdout as it
// arrives.
func streamTurn(ctx context.Context, d *agent.Dispatcher, sess *session.Session, message string, turn tools.TurnContext) {
	fmt.Printf("\n%s solpilot\n", logo)

	inText := false
	for ev := range d.RunTurn(ctx, sess, message, turn) {
		switch ev.Kind {
		case schema.EventTextDelta:
			fmt.Print(ev.Text)
			inText = true
		case schema.EventReasoningDelta:
			if chatVerbose {
				fmt.Fprint(os.Stderr, ev.Text)
			}
		case schema.EventToolCallStart:
			if inText {
				fmt.Println()
				inText = false
			}
			fmt.Printf("  ↳ %s...\n", ev.ToolName)
		case schema.EventToolCallResult:
			if chatVerbose {
				fmt.Printf("  ↳ %s → %s\n", ev.ToolName, ev.Result)
			}
		case schema.EventTurnError:
			if inText {
				fmt.Println()
			}
			fmt.Fprintf(os.Stderr, "error: %s\n", ev.Error)
			return
		case schema.EventTurnEnd:
			// reason carried for transports; nothing to render here
		}
	}
	fmt.Print("\n\n")
}
