package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"docchat/internal/domain"
)

var (
	chatSession string
	chatSources bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat about the documents interactively",
	Long: `Start an interactive conversation. Each line is a question; the session keeps
the history so follow-up questions have context. Type /exit or press Ctrl-D
to leave.`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "session id or name")
	chatCmd.Flags().BoolVar(&chatSources, "sources", false, "list the passages each answer was based on")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c, err := openConversation(ctx, chatSession)
	if err != nil {
		return err
	}
	defer c.close()

	fmt.Printf("Session %s (%s). Type /exit to leave.\n", c.session.Name, c.session.ID)
	if !c.ws.HasIndex() {
		fmt.Println("No documents are indexed yet.")
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Print("\n> ")
		}
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}

		fmt.Println()
		if err := c.ask(ctx, line, chatSources); err != nil {
			if errors.Is(err, domain.ErrEmptyQuery) {
				continue
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	fmt.Println()
	return scanner.Err()
}
